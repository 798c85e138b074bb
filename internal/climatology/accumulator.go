// Package climatology accumulates multi-year per-site daily values into
// day-of-year buckets and reduces them to monthly means and the MMM
// (maximum of monthly means) baseline used for bleaching-alert derivation.
package climatology

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// dayKey buckets observations by calendar day, ignoring the year. Values
// from "Jan 15 2024" and "Jan 15 2025" land in the same bucket; exact-date
// duplicates are kept, since multi-year accumulation is the point.
type dayKey struct {
	Month time.Month
	Day   int
}

// Summary is the climatological reduction for one site: twelve monthly
// means (index 0 = January) and their maximum.
type Summary struct {
	Site         string
	MonthlyMeans [12]float64
	MMM          float64
	Samples      int
}

// InsufficientData reports months with no samples at summarize time. A
// monthly mean over zero values is undefined, never silently zero.
type InsufficientData struct {
	Site   string
	Months []time.Month
}

func (e *InsufficientData) Error() string {
	return fmt.Sprintf("insufficient climatology data for site %s: no samples in %v", e.Site, e.Months)
}

// Accumulator owns the per-site day-of-year series for one pipeline run.
// It is safe for concurrent ingestion; series only grow.
type Accumulator struct {
	mu     sync.Mutex
	series map[string]map[dayKey][]float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{series: make(map[string]map[dayKey][]float64)}
}

// Ingest appends one daily value for a site. Callers filter no-data before
// ingesting; a NaN here is a programming error upstream and is rejected.
func (a *Accumulator) Ingest(site string, date time.Time, value float64) error {
	if math.IsNaN(value) {
		return fmt.Errorf("ingest for site %s on %s: value is NaN", site, date.Format("2006-01-02"))
	}
	if date.IsZero() {
		return fmt.Errorf("ingest for site %s: date is zero", site)
	}
	key := dayKey{Month: date.Month(), Day: date.Day()}

	a.mu.Lock()
	defer a.mu.Unlock()
	days, ok := a.series[site]
	if !ok {
		days = make(map[dayKey][]float64)
		a.series[site] = days
	}
	days[key] = append(days[key], value)
	return nil
}

// Sites returns the site codes with at least one ingested value, sorted.
func (a *Accumulator) Sites() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	sites := make([]string, 0, len(a.series))
	for site := range a.series {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites
}

// Summarize recomputes the site's summary from the full series. It is a
// pure function of the accumulated data: calling it twice without new
// ingestion yields identical results. A month with zero samples makes the
// whole summary fail with InsufficientData.
func (a *Accumulator) Summarize(site string) (Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	days := a.series[site]
	// Fold in calendar order so float summation order, and therefore the
	// result, is identical run to run.
	keys := make([]dayKey, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Month != keys[j].Month {
			return keys[i].Month < keys[j].Month
		}
		return keys[i].Day < keys[j].Day
	})

	monthly := make([][]float64, 12)
	for _, key := range keys {
		m := int(key.Month) - 1
		monthly[m] = append(monthly[m], days[key]...)
	}

	var out Summary
	out.Site = site
	var empty []time.Month
	for m := 0; m < 12; m++ {
		if len(monthly[m]) == 0 {
			empty = append(empty, time.Month(m+1))
			continue
		}
		out.MonthlyMeans[m] = stat.Mean(monthly[m], nil)
		out.Samples += len(monthly[m])
	}
	if len(empty) > 0 {
		return Summary{}, &InsufficientData{Site: site, Months: empty}
	}
	out.MMM = floats.Max(out.MonthlyMeans[:])
	return out, nil
}
