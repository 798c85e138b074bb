// Command etl runs the coral reef raster pipeline. The default is a
// one-shot batch in the selected mode; -watch keeps the process alive,
// re-running on an interval and serving health and metrics endpoints.
//
// Modes:
//
//	daily             crop the daily archive and extract per-site xyz tables
//	climatology       site monthly means and MMM from the gridded climatology
//	climatology-daily site climatologies rebuilt from stored daily extracts
//	alert             bleaching alert series from stored daily extracts
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	httpadapter "github.com/reefwatch/coral-etl/internal/adapter/http"
	"github.com/reefwatch/coral-etl/internal/adapter/shapefile"
	"github.com/reefwatch/coral-etl/internal/config"
	"github.com/reefwatch/coral-etl/internal/domain"
	"github.com/reefwatch/coral-etl/internal/fetch"
	"github.com/reefwatch/coral-etl/internal/observability"
	"github.com/reefwatch/coral-etl/internal/pipeline"
	"github.com/reefwatch/coral-etl/internal/storage"
)

func main() {
	mode := flag.String("mode", "daily", "batch mode: daily, climatology, climatology-daily, or alert")
	watch := flag.Bool("watch", false, "keep running, repeating the batch on WATCH_INTERVAL")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(ctx, cfg, logger, metrics, *mode, *watch); err != nil {
		logger.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, mode string, watch bool) error {
	sink, err := newSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	index, siteFailures, err := loadSites(cfg, logger)
	if err != nil {
		return err
	}

	driver := pipeline.New(pipeline.NetCDFLoader{}, index, sink, cfg.Window(), logger, metrics)
	driver.RecordSiteFailures(siteFailures...)

	runOnce := func(ctx context.Context) error {
		m, err := runMode(ctx, cfg, logger, metrics, driver, mode)
		if err != nil {
			return err
		}
		if m.Succeeded == 0 {
			return fmt.Errorf("run %s: all %d units failed", m.RunID, m.Failed)
		}
		return nil
	}

	if !watch {
		return runOnce(ctx)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, driver, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	ticker := domain.NewTicker(cfg.WatchInterval)
	defer ticker.Stop()
	for {
		if err := runOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("batch run failed, will retry on next interval", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-ticker.Chan():
		}
	}
}

// runMode dispatches one batch, downloading inputs first when enabled.
func runMode(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, driver *pipeline.Driver, mode string) (*pipeline.Manifest, error) {
	switch mode {
	case "daily":
		if cfg.FetchEnabled {
			if err := fetchDaily(ctx, cfg, logger, metrics); err != nil {
				return nil, err
			}
		}
		return driver.RunDaily(ctx, cfg.InputDir)
	case "climatology":
		climPath := filepath.Join(cfg.InputDir, fetch.ClimatologyFile)
		if cfg.FetchEnabled {
			f := fetch.New(cfg.FetchBaseURL, cfg.InputDir, logger, metrics)
			var err error
			if climPath, err = f.FetchClimatology(ctx, cfg.FetchClimURL); err != nil {
				return nil, err
			}
		}
		return driver.RunClimatology(ctx, climPath)
	case "climatology-daily":
		return driver.RunClimatologyFromDaily(ctx)
	case "alert":
		return driver.RunAlert(ctx)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// fetchDaily backfills the configured products and date range. Individual
// download failures are tolerated; the batch works with what is on disk.
func fetchDaily(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	start, end, err := cfg.DateRange()
	if err != nil {
		return err
	}
	f := fetch.New(cfg.FetchBaseURL, cfg.InputDir, logger, metrics)
	results := f.FetchRange(ctx, selectProducts(cfg.ProductCodes()), start, end)
	fetched := 0
	for _, r := range results {
		if r.Err == nil {
			fetched++
		}
	}
	logger.Info("archive fetch finished", "fetched", fetched, "failed", len(results)-fetched)
	return ctx.Err()
}

func selectProducts(codes []string) []fetch.Product {
	if len(codes) == 0 {
		return fetch.DefaultProducts
	}
	var products []fetch.Product
	for _, code := range codes {
		for _, p := range fetch.DefaultProducts {
			if p.Code == code {
				products = append(products, p)
			}
		}
	}
	return products
}

func newSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	if cfg.GCSBucket != "" {
		return storage.NewGCS(ctx, cfg.GCSBucket)
	}
	return storage.NewLocal(cfg.OutputDir)
}

// loadSites builds the site index, skipping boundary files that fail to
// load so one broken shapefile does not take down the whole run. Skipped
// sites are returned as failures for the manifest.
func loadSites(cfg *config.Config, logger *slog.Logger) (*shapefile.Index, []pipeline.SiteFailure, error) {
	specs, err := cfg.SiteSpecs()
	if err != nil {
		return nil, nil, err
	}
	sites := make([]*domain.Site, 0, len(specs))
	var failures []pipeline.SiteFailure
	for _, spec := range specs {
		s, err := shapefile.LoadSite(spec.Code, spec.Name, filepath.Join(cfg.SitesDir, spec.File))
		if err != nil {
			logger.Error("site boundary load failed", "site", spec.Code, "file", spec.File, "error", err)
			failures = append(failures, pipeline.SiteFailure{Code: spec.Code, Err: err})
			continue
		}
		sites = append(sites, s)
	}
	if len(sites) == 0 {
		return nil, nil, fmt.Errorf("no site boundaries loaded (%d failed)", len(failures))
	}
	return shapefile.NewIndex(sites...), failures, nil
}
