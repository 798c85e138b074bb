package alert

import (
	"bytes"
	"fmt"
	"math"
)

// FormatSeries renders one site's daily alert rows as a fixed-width text
// table, one row per day. Absent SST columns print as "--".
func FormatSeries(site string, days []Daily) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "site %s\n", site)
	fmt.Fprintln(&buf, "date        hs90     sst90    dhw    level")
	for _, d := range days {
		fmt.Fprintf(&buf, "%s  %6.2f  %s  %5.2f  %d %s\n",
			d.Date.Format("2006-01-02"), d.HotSpot90, column(d.SST90), d.DHW, int(d.Level), d.Level)
	}
	return buf.Bytes()
}

func column(v float64) string {
	if math.IsNaN(v) {
		return "     --"
	}
	return fmt.Sprintf("%7.2f", v)
}
