package climatology

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fillAllMonths ingests one value per month so Summarize has no empty
// buckets, returning the accumulator for further ingestion.
func fillAllMonths(t *testing.T, site string, value float64) *Accumulator {
	t.Helper()
	acc := NewAccumulator()
	for m := time.January; m <= time.December; m++ {
		require.NoError(t, acc.Ingest(site, date(2024, m, 10), value))
	}
	return acc
}

func TestAccumulator_MonthlyMean(t *testing.T) {
	acc := fillAllMonths(t, "A", 20)

	// Two years on Jan 15 plus one value on Jan 20; with the fill value on
	// Jan 10, January holds [20, 10, 20, 30].
	require.NoError(t, acc.Ingest("A", date(2023, time.January, 15), 10))
	require.NoError(t, acc.Ingest("A", date(2024, time.January, 15), 20))
	require.NoError(t, acc.Ingest("A", date(2024, time.January, 20), 30))

	sum, err := acc.Summarize("A")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, sum.MonthlyMeans[0], 1e-12)
	assert.Equal(t, 15, sum.Samples)
}

func TestAccumulator_InsufficientData(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Ingest("A", date(2023, time.January, 15), 10))
	require.NoError(t, acc.Ingest("A", date(2024, time.January, 15), 20))
	require.NoError(t, acc.Ingest("A", date(2024, time.January, 20), 30))

	_, err := acc.Summarize("A")
	require.Error(t, err)

	var insufficient *InsufficientData
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "A", insufficient.Site)
	assert.Contains(t, insufficient.Months, time.February)
	assert.NotContains(t, insufficient.Months, time.January)
}

func TestAccumulator_MMMSelection(t *testing.T) {
	means := []float64{27.1, 27.3, 28.9, 29.5, 29.1, 28.0, 27.2, 26.8, 27.0, 27.4, 27.6, 27.8}
	acc := NewAccumulator()
	for m, v := range means {
		require.NoError(t, acc.Ingest("GN", date(2024, time.Month(m+1), 1), v))
	}

	sum, err := acc.Summarize("GN")
	require.NoError(t, err)
	assert.Equal(t, 29.5, sum.MMM)
}

func TestAccumulator_IngestValidation(t *testing.T) {
	acc := NewAccumulator()
	assert.Error(t, acc.Ingest("A", date(2024, time.March, 1), math.NaN()))
	assert.Error(t, acc.Ingest("A", time.Time{}, 1.0))
}

func TestAccumulator_DuplicateDatesKept(t *testing.T) {
	acc := fillAllMonths(t, "NP", 28)
	require.NoError(t, acc.Ingest("NP", date(2024, time.June, 10), 30))
	require.NoError(t, acc.Ingest("NP", date(2024, time.June, 10), 32))

	sum, err := acc.Summarize("NP")
	require.NoError(t, err)
	// June holds [28, 30, 32].
	assert.InDelta(t, 30.0, sum.MonthlyMeans[5], 1e-12)
}

func TestAccumulator_SummarizeIsPure(t *testing.T) {
	acc := fillAllMonths(t, "GM", 27)
	require.NoError(t, acc.Ingest("GM", date(2023, time.April, 2), 29.5))
	require.NoError(t, acc.Ingest("GM", date(2025, time.April, 2), 28.5))

	first, err := acc.Summarize("GM")
	require.NoError(t, err)
	second, err := acc.Summarize("GM")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAccumulator_ConcurrentIngest(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := time.January; m <= time.December; m++ {
				_ = acc.Ingest("GM", date(2024, m, 5), 27)
			}
		}()
	}
	wg.Wait()

	sum, err := acc.Summarize("GM")
	require.NoError(t, err)
	assert.Equal(t, 96, sum.Samples)
	assert.Equal(t, 27.0, sum.MMM)
}

func TestAccumulator_Sites(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Ingest("NP", date(2024, time.January, 1), 1))
	require.NoError(t, acc.Ingest("GM", date(2024, time.January, 1), 1))
	assert.Equal(t, []string{"GM", "NP"}, acc.Sites())
}

func TestFormatReport(t *testing.T) {
	sum := Summary{Site: "GM", MMM: 29.5, Samples: 12}
	sum.MonthlyMeans = [12]float64{27.1, 27.3, 28.9, 29.5, 29.1, 28.0, 27.2, 26.8, 27.0, 27.4, 27.6, 27.8}

	out := string(FormatReport([]Summary{sum}))
	assert.Contains(t, out, "Site: GM (n=12)")
	assert.Contains(t, out, "April      29.5000")
	assert.Contains(t, out, "MMM        29.5000")

	again := string(FormatReport([]Summary{sum}))
	assert.Equal(t, out, again)
}
