package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/reefwatch/coral-etl/internal/adapter/xyz"
	"github.com/reefwatch/coral-etl/internal/alert"
)

var outputDateRe = regexp.MustCompile(`_(\d{8})\.xyz$`)

// outputDate recovers the date from a stored xyz path.
func outputDate(path string) (time.Time, error) {
	m := outputDateRe.FindStringSubmatch(path)
	if m == nil {
		return time.Time{}, fmt.Errorf("no date in output path %s", path)
	}
	return time.Parse("20060102", m[1])
}

// RunAlert derives each site's bleaching alert series from the stored
// daily HotSpot extracts, sampling SST and SST anomaly where their tables
// exist for the same day. One unit per site.
func (d *Driver) RunAlert(ctx context.Context) (*Manifest, error) {
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	m := newManifest("alert")
	d.addSiteFailures(m)
	d.logger.Info("alert batch started", "run_id", m.RunID)

	for _, site := range d.sites.All() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		unit := UnitResult{Site: site.Code}

		days, points, err := d.siteAlertSeries(ctx, site.Code)
		if err != nil {
			d.failUnit(m, unit, "read", err)
			continue
		}
		if len(days) == 0 {
			d.failUnit(m, unit, "extract", fmt.Errorf("no hotspot tables stored for site %s", site.Code))
			continue
		}
		out := fmt.Sprintf("alert/%s.txt", site.Code)
		if err := d.sink.Store(ctx, out, alert.FormatSeries(site.Code, days)); err != nil {
			d.failUnit(m, unit, "write", err)
			continue
		}
		unit.Output = out
		unit.Points = points
		m.add(unit)
		d.metrics.FilesWritten.Inc()
		d.logger.Info("alert series stored",
			"site", site.Code, "days", len(days), "level", days[len(days)-1].Level.String())
	}

	if err := d.storeManifest(ctx, m); err != nil {
		return nil, err
	}
	if m.Succeeded > 0 {
		d.ready.Store(true)
	}
	d.logger.Info("alert batch finished",
		"run_id", m.RunID, "succeeded", m.Succeeded, "failed", m.Failed)
	return m, nil
}

// siteAlertSeries folds the site's HotSpot tables, in date order, through
// the rolling alert state. Returns the total pixel count read.
func (d *Driver) siteAlertSeries(ctx context.Context, site string) ([]alert.Daily, int, error) {
	hsPaths, err := d.sink.List(ctx, fmt.Sprintf("daily/%s_hs_", site))
	if err != nil {
		return nil, 0, err
	}

	a := alert.NewAnalyzer(site)
	var days []alert.Daily
	points := 0
	for _, hsPath := range hsPaths {
		date, err := outputDate(hsPath)
		if err != nil {
			continue
		}
		hs, err := d.readValues(ctx, hsPath)
		if err != nil {
			return nil, points, err
		}
		if len(hs) == 0 {
			continue
		}
		points += len(hs)

		// Companion tables are optional and must stay pixel-parallel.
		sst, err := d.companionValues(ctx, hsPath, "sst", len(hs))
		if err != nil {
			return nil, points, err
		}
		ssta, err := d.companionValues(ctx, hsPath, "ssta", len(hs))
		if err != nil {
			return nil, points, err
		}

		day, err := a.ProcessDay(date, hs, sst, ssta)
		if err != nil {
			return nil, points, err
		}
		days = append(days, day)
	}
	return days, points, nil
}

func (d *Driver) readValues(ctx context.Context, path string) ([]float64, error) {
	data, err := d.sink.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	records, err := xyz.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	vals := make([]float64, len(records))
	for i, rec := range records {
		vals[i] = rec.Value
	}
	return vals, nil
}

// companionValues reads the same-day table of another product, or nil
// when it is absent or its pixel count differs.
func (d *Driver) companionValues(ctx context.Context, hsPath, product string, want int) ([]float64, error) {
	path := strings.Replace(hsPath, "_hs_", "_"+product+"_", 1)
	ok, err := d.sink.Exists(ctx, path)
	if err != nil || !ok {
		return nil, err
	}
	vals, err := d.readValues(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(vals) != want {
		return nil, nil
	}
	return vals, nil
}
