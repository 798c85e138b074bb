package climatology

import (
	"fmt"
	"strings"
	"time"
)

// FormatReport renders site summaries as the plain-text climatology report
// consumed by downstream report assembly: one block per site with the
// twelve monthly means and the MMM scalar. Output is stable for identical
// input so re-runs are byte-identical.
func FormatReport(summaries []Summary) []byte {
	var b strings.Builder
	b.WriteString("NOAA CRW 5km Climatology - site monthly means and MMM\n")
	b.WriteString("=====================================================\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "\nSite: %s (n=%d)\n", s.Site, s.Samples)
		for m := 0; m < 12; m++ {
			fmt.Fprintf(&b, "  %-9s %8.4f\n", time.Month(m+1).String(), s.MonthlyMeans[m])
		}
		fmt.Fprintf(&b, "  MMM       %8.4f\n", s.MMM)
	}
	return []byte(b.String())
}
