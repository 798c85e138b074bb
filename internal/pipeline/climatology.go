package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/reefwatch/coral-etl/internal/adapter/xyz"
	"github.com/reefwatch/coral-etl/internal/climatology"
	"github.com/reefwatch/coral-etl/internal/domain"
)

// monthlyVars are the climatology file's twelve gridded variables.
var monthlyVars = [12]string{
	"sst_clim_january", "sst_clim_february", "sst_clim_march",
	"sst_clim_april", "sst_clim_may", "sst_clim_june",
	"sst_clim_july", "sst_clim_august", "sst_clim_september",
	"sst_clim_october", "sst_clim_november", "sst_clim_december",
}

// RunClimatology derives each site's monthly mean temperatures and MMM
// from the gridded climatology file. One unit per site; a site with no
// valid pixels in some month fails without stopping the batch.
func (d *Driver) RunClimatology(ctx context.Context, climPath string) (*Manifest, error) {
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	m := newManifest("climatology")
	d.addSiteFailures(m)
	d.logger.Info("climatology batch started", "run_id", m.RunID, "file", climPath)

	for _, site := range d.sites.All() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		unit := UnitResult{Input: filepath.Base(climPath), Site: site.Code}

		summary, points, err := d.siteClimatology(climPath, site)
		if err != nil {
			d.failUnit(m, unit, "extract", err)
			continue
		}
		out := fmt.Sprintf("climatology/mmm_mean_%s.txt", site.Code)
		if err := d.sink.Store(ctx, out, climatology.FormatReport([]climatology.Summary{summary})); err != nil {
			d.failUnit(m, unit, "write", err)
			continue
		}
		unit.Output = out
		unit.Points = points
		m.add(unit)
		d.metrics.FilesWritten.Inc()
		d.logger.Info("site climatology stored", "site", site.Code, "mmm", summary.MMM)
	}

	if err := d.storeManifest(ctx, m); err != nil {
		return nil, err
	}
	if m.Succeeded > 0 {
		d.ready.Store(true)
	}
	d.logger.Info("climatology batch finished",
		"run_id", m.RunID, "succeeded", m.Succeeded, "failed", m.Failed)
	return m, nil
}

// siteClimatology crops each monthly grid to the window and averages the
// site's pixels. Returns the total pixel count folded in.
func (d *Driver) siteClimatology(climPath string, site *domain.Site) (climatology.Summary, int, error) {
	s := climatology.Summary{Site: site.Code}
	for i, varName := range monthlyVars {
		r, err := d.loader.Load(climPath, varName, time.Time{})
		if err != nil {
			return climatology.Summary{}, 0, fmt.Errorf("load %s: %w", varName, err)
		}
		clipped, err := domain.Clip(r, d.window)
		if err != nil {
			return climatology.Summary{}, 0, err
		}
		points := domain.ExtractPoints(clipped, site)
		if len(points) == 0 {
			return climatology.Summary{}, 0, fmt.Errorf("%s: no valid pixels for site %s", varName, site.Code)
		}
		vals := make([]float64, len(points))
		for j, p := range points {
			vals[j] = p.Value
		}
		s.MonthlyMeans[i] = stat.Mean(vals, nil)
		s.Samples += len(points)
	}
	s.MMM = floats.Max(s.MonthlyMeans[:])
	return s, s.Samples, nil
}

// RunClimatologyFromDaily rebuilds site climatologies from the stored
// daily SST extracts instead of the gridded climatology file. Each stored
// table contributes its spatial mean as one day-of-year sample.
func (d *Driver) RunClimatologyFromDaily(ctx context.Context) (*Manifest, error) {
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	m := newManifest("climatology-daily")
	d.addSiteFailures(m)
	acc := climatology.NewAccumulator()

	for _, site := range d.sites.All() {
		unit := UnitResult{Site: site.Code}

		paths, err := d.sink.List(ctx, fmt.Sprintf("daily/%s_sst_", site.Code))
		if err != nil {
			d.failUnit(m, unit, "read", err)
			continue
		}
		points, err := d.ingestDaily(ctx, acc, site.Code, paths)
		if err != nil {
			d.failUnit(m, unit, "read", err)
			continue
		}

		summary, err := acc.Summarize(site.Code)
		if err != nil {
			d.failUnit(m, unit, "extract", err)
			continue
		}
		out := fmt.Sprintf("climatology/mmm_mean_%s.txt", site.Code)
		if err := d.sink.Store(ctx, out, climatology.FormatReport([]climatology.Summary{summary})); err != nil {
			d.failUnit(m, unit, "write", err)
			continue
		}
		unit.Output = out
		unit.Points = points
		m.add(unit)
		d.metrics.FilesWritten.Inc()
	}

	if err := d.storeManifest(ctx, m); err != nil {
		return nil, err
	}
	if m.Succeeded > 0 {
		d.ready.Store(true)
	}
	return m, nil
}

// ingestDaily feeds one site's stored SST tables into the accumulator and
// returns the number of tables ingested.
func (d *Driver) ingestDaily(ctx context.Context, acc *climatology.Accumulator, site string, paths []string) (int, error) {
	n := 0
	for _, p := range paths {
		date, err := outputDate(p)
		if err != nil {
			continue
		}
		data, err := d.sink.Read(ctx, p)
		if err != nil {
			return n, err
		}
		records, err := xyz.Parse(bytes.NewReader(data))
		if err != nil {
			return n, fmt.Errorf("%s: %w", p, err)
		}
		if len(records) == 0 {
			continue
		}
		vals := make([]float64, len(records))
		for i, rec := range records {
			vals[i] = rec.Value
		}
		if err := acc.Ingest(site, date, stat.Mean(vals, nil)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
