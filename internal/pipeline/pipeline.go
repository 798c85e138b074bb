// Package pipeline orchestrates batch runs over the daily raster archive:
// read, crop, extract per site, and store, with per-unit failure isolation.
// Every run writes a manifest naming what succeeded and what did not.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ctessum/geom"

	"github.com/reefwatch/coral-etl/internal/adapter/netcdf"
	"github.com/reefwatch/coral-etl/internal/adapter/xyz"
	"github.com/reefwatch/coral-etl/internal/domain"
	"github.com/reefwatch/coral-etl/internal/fetch"
	"github.com/reefwatch/coral-etl/internal/observability"
	"github.com/reefwatch/coral-etl/internal/storage"
)

// RasterLoader reads one gridded variable from a file. An empty varName
// selects the file's single data variable.
type RasterLoader interface {
	Load(path, varName string, date time.Time) (*domain.Raster, error)
}

// NetCDFLoader is the production RasterLoader.
type NetCDFLoader struct{}

func (NetCDFLoader) Load(path, varName string, date time.Time) (*domain.Raster, error) {
	return netcdf.LoadVariable(path, varName, date)
}

// SiteIndex yields monitored sites, optionally narrowed to a bounding box.
type SiteIndex interface {
	All() []*domain.Site
	Intersecting(b *geom.Bounds) []*domain.Site
}

// Driver runs batch modes against a fixed crop window and site set.
type Driver struct {
	loader  RasterLoader
	sites   SiteIndex
	sink    storage.Sink
	window  domain.RegionWindow
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[Manifest]

	siteFailures []SiteFailure
}

// SiteFailure records a boundary file that could not be loaded. The
// affected site is skipped but every manifest reports it, so a partial
// site set is visible downstream.
type SiteFailure struct {
	Code string
	Err  error
}

// New creates a Driver with the given stages and observability.
func New(loader RasterLoader, sites SiteIndex, sink storage.Sink, window domain.RegionWindow, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{
		loader:  loader,
		sites:   sites,
		sink:    sink,
		window:  window,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one batch run has stored output.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("no batch run has completed yet")
	}
	return nil
}

// LastManifest returns the most recently completed run's manifest, or nil.
func (d *Driver) LastManifest() *Manifest { return d.last.Load() }

// RecordSiteFailures registers boundary-load failures to be reported in
// every subsequent run's manifest. Call before the first run.
func (d *Driver) RecordSiteFailures(failures ...SiteFailure) {
	d.siteFailures = append(d.siteFailures, failures...)
}

func (d *Driver) addSiteFailures(m *Manifest) {
	for _, f := range d.siteFailures {
		m.add(UnitResult{Site: f.Code, Stage: "geometry", Error: f.Err.Error()})
		d.metrics.UnitFailures.WithLabelValues("geometry").Inc()
	}
}

// RunDaily processes every daily raster file under inputDir: crop to the
// window, extract each intersecting site, and store one xyz table per
// (raster, site) unit. A failed unit is recorded in the manifest and does
// not stop the batch.
func (d *Driver) RunDaily(ctx context.Context, inputDir string) (*Manifest, error) {
	batchStart := time.Now()
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	files, err := discoverDaily(inputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no daily raster files under %s", inputDir)
	}

	m := newManifest("daily")
	d.addSiteFailures(m)
	d.logger.Info("daily batch started", "run_id", m.RunID, "files", len(files))

	for _, f := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.processRaster(ctx, m, f)
	}

	if err := d.storeManifest(ctx, m); err != nil {
		return nil, err
	}
	d.metrics.BatchUnits.Observe(float64(len(m.Units)))
	d.metrics.BatchRunDuration.Observe(time.Since(batchStart).Seconds())
	if m.Succeeded > 0 {
		d.ready.Store(true)
	}
	d.logger.Info("daily batch finished",
		"run_id", m.RunID, "succeeded", m.Succeeded, "failed", m.Failed)
	return m, nil
}

// dailyFile is one archive file scheduled for processing.
type dailyFile struct {
	path    string
	product string
	date    time.Time
}

// discoverDaily lists the raster files under dir whose names carry a
// product prefix and a date. Other files are ignored.
func discoverDaily(dir string) ([]dailyFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.IOFailure{Path: dir, Err: err}
	}
	var files []dailyFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".nc") {
			continue
		}
		date, err := netcdf.ParseDailyFilename(e.Name())
		if err != nil {
			continue
		}
		files = append(files, dailyFile{
			path:    filepath.Join(dir, e.Name()),
			product: productOf(e.Name()),
			date:    date,
		})
	}
	return files, nil
}

// productOf maps a filename to its product code, first by the downloader's
// local prefixes and otherwise by the leading name segment.
func productOf(name string) string {
	for _, p := range fetch.DefaultProducts {
		if strings.HasPrefix(name, p.LocalPrefix+"_") {
			return p.Code
		}
	}
	product, _, _ := strings.Cut(name, "_")
	return strings.ToLower(product)
}

// processRaster handles one file: load, crop, and extract every
// intersecting site. Load and crop failures fail the whole file as a
// single unit; extraction and storage failures fail only that site.
func (d *Driver) processRaster(ctx context.Context, m *Manifest, f dailyFile) {
	base := filepath.Base(f.path)

	r, err := d.loader.Load(f.path, "", f.date)
	if err != nil {
		d.failUnit(m, UnitResult{Input: base, Product: f.product, Date: f.date.Format("2006-01-02")}, "read", err)
		return
	}
	clipped, err := domain.Clip(r, d.window)
	if err != nil {
		d.failUnit(m, UnitResult{Input: base, Product: f.product, Date: f.date.Format("2006-01-02")}, "clip", err)
		return
	}
	d.metrics.RastersProcessed.Inc()

	for _, site := range d.sites.Intersecting(clipped.Grid.Bounds()) {
		unit := UnitResult{
			Input:   base,
			Product: f.product,
			Date:    f.date.Format("2006-01-02"),
			Site:    site.Code,
		}
		points := domain.ExtractPoints(clipped, site)
		out := dailyOutputPath(site.Code, f.product, f.date)
		if err := d.sink.Store(ctx, out, xyz.Encode(points)); err != nil {
			d.failUnit(m, unit, "write", err)
			continue
		}
		unit.Output = out
		unit.Points = len(points)
		m.add(unit)

		d.metrics.PointsExtracted.Add(float64(len(points)))
		d.metrics.SitePointsPerRaster.WithLabelValues(site.Code).Observe(float64(len(points)))
		d.metrics.FilesWritten.Inc()
		d.logger.Debug("unit stored", "output", out, "points", len(points))
	}
}

func (d *Driver) failUnit(m *Manifest, unit UnitResult, stage string, err error) {
	unit.Stage = stage
	unit.Error = err.Error()
	m.add(unit)
	d.metrics.UnitFailures.WithLabelValues(stage).Inc()
	d.logger.Warn("unit failed", "stage", stage, "input", unit.Input, "site", unit.Site, "error", err)
}

// dailyOutputPath names one xyz table, e.g. daily/GM_sst_20240301.xyz.
func dailyOutputPath(site, product string, date time.Time) string {
	return fmt.Sprintf("daily/%s_%s_%s.xyz", site, product, date.Format("20060102"))
}
