// Package alert derives NOAA-style Bleaching Alert Area (BAA) categories
// for a site from its daily xyz extracts. The daily HotSpot field is
// reduced to its 90th percentile over the site's pixels, accumulated into
// a rolling degree-heating-weeks figure, and classified on the standard
// five-level scale with a 7-day maximum composite.
package alert

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Level is a BAA category.
type Level int

const (
	NoStress Level = iota
	Watch
	Warning
	AlertLevel1
	AlertLevel2
)

func (l Level) String() string {
	switch l {
	case NoStress:
		return "No Stress"
	case Watch:
		return "Watch"
	case Warning:
		return "Warning"
	case AlertLevel1:
		return "Alert Level 1"
	case AlertLevel2:
		return "Alert Level 2"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

const (
	// dhwWindowDays is the DHW accumulation window: twelve weeks.
	dhwWindowDays = 84
	// compositeWindowDays smooths single-day alert flicker.
	compositeWindowDays = 7
	// stressThreshold is the HotSpot level, in °C above MMM, at which
	// thermal stress starts accumulating toward DHW.
	stressThreshold = 1.0
)

// Daily is one site-day of derived alert state.
type Daily struct {
	Date      time.Time
	HotSpot90 float64 // p90 of the site's HotSpot pixels
	SST90     float64 // SST at the p90 HotSpot pixel, NaN when absent
	SSTA90    float64 // SST anomaly at the p90 HotSpot pixel, NaN when absent
	SSTMin    float64 // NaN when absent
	SSTMax    float64 // NaN when absent
	DHW       float64 // rolling °C-weeks over the 84-day window
	Level     Level   // 7-day maximum composite
}

// Analyzer tracks the rolling stress state for one site. Days must be fed
// in chronological order; the caller owns ordering.
type Analyzer struct {
	site    string
	stress  []float64 // per-day stress contribution, capped at dhwWindowDays
	recent  []Level   // instantaneous levels, capped at compositeWindowDays
	lastDay time.Time
}

// NewAnalyzer starts an analyzer for site with empty windows.
func NewAnalyzer(site string) *Analyzer {
	return &Analyzer{site: site}
}

// ProcessDay folds one day of extracted pixel values into the rolling
// state. hotspot must be non-empty; sst and ssta are optional and, when
// present, parallel to hotspot (same pixel order, same length).
func (a *Analyzer) ProcessDay(date time.Time, hotspot, sst, ssta []float64) (Daily, error) {
	if len(hotspot) == 0 {
		return Daily{}, fmt.Errorf("site %s on %s: no hotspot pixels", a.site, date.Format("2006-01-02"))
	}
	if !a.lastDay.IsZero() && !date.After(a.lastDay) {
		return Daily{}, fmt.Errorf("site %s: day %s not after previous %s",
			a.site, date.Format("2006-01-02"), a.lastDay.Format("2006-01-02"))
	}
	if sst != nil && len(sst) != len(hotspot) {
		return Daily{}, fmt.Errorf("site %s: sst has %d pixels, hotspot %d", a.site, len(sst), len(hotspot))
	}
	if ssta != nil && len(ssta) != len(hotspot) {
		return Daily{}, fmt.Errorf("site %s: ssta has %d pixels, hotspot %d", a.site, len(ssta), len(hotspot))
	}
	a.lastDay = date

	hs90 := percentile90(hotspot)
	pivot := nearestIndex(hotspot, hs90)

	day := Daily{
		Date:      date,
		HotSpot90: math.Max(0, hs90),
		SST90:     math.NaN(),
		SSTA90:    math.NaN(),
		SSTMin:    math.NaN(),
		SSTMax:    math.NaN(),
	}
	if sst != nil {
		day.SST90 = sst[pivot]
		day.SSTMin = slices.Min(sst)
		day.SSTMax = slices.Max(sst)
	}
	if ssta != nil {
		day.SSTA90 = ssta[pivot]
	}

	var dailyStress float64
	if hs90 >= stressThreshold {
		dailyStress = hs90 / 7.0
	}
	a.stress = appendCapped(a.stress, dailyStress, dhwWindowDays)
	for _, s := range a.stress {
		day.DHW += s
	}

	a.recent = appendCapped(a.recent, instantLevel(hs90, day.DHW), compositeWindowDays)
	day.Level = slices.Max(a.recent)
	return day, nil
}

// instantLevel classifies a single day before compositing.
func instantLevel(hs90, dhw float64) Level {
	switch {
	case hs90 <= 0:
		return NoStress
	case hs90 < stressThreshold:
		return Watch
	case dhw < 4:
		return Warning
	case dhw < 8:
		return AlertLevel1
	default:
		return AlertLevel2
	}
}

// percentile90 is the linearly interpolated 90th percentile over the
// order statistics (Hyndman-Fan type 7), matching the convention of the
// archive's own alert products.
func percentile90(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	slices.Sort(sorted)
	h := 0.9 * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo == len(sorted)-1 {
		return sorted[lo]
	}
	return sorted[lo] + (h-math.Floor(h))*(sorted[lo+1]-sorted[lo])
}

// nearestIndex returns the position whose value is closest to target,
// used to sample SST and SSTA at the p90 HotSpot pixel.
func nearestIndex(vals []float64, target float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range vals {
		if d := math.Abs(v - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func appendCapped[T any](window []T, v T, n int) []T {
	window = append(window, v)
	if len(window) > n {
		window = window[len(window)-n:]
	}
	return window
}
