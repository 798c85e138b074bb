// Package fetch downloads NOAA CRW 5km NetCDF files from the STAR archive
// into a local input directory. It is transfer only: files are verified to
// exist and be non-empty, never parsed here.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/reefwatch/coral-etl/internal/observability"
)

// Product names one CRW daily product and its archive naming quirks. The
// server is inconsistent: SST files are published under the "coraltemp"
// prefix while every other product uses "ct5km_<code>".
type Product struct {
	Code         string // pipeline code: sst, ssta, hs, dhw
	ServerDir    string // folder under the daily archive root
	ServerPrefix string // filename prefix on the server
	LocalPrefix  string // prefix for the downloaded copy
}

// DefaultProducts is the CRW v3.1 daily product suite.
var DefaultProducts = []Product{
	{Code: "sst", ServerDir: "sst", ServerPrefix: "coraltemp", LocalPrefix: "NOAA_SST"},
	{Code: "ssta", ServerDir: "ssta", ServerPrefix: "ct5km_ssta", LocalPrefix: "NOAA_SSTA"},
	{Code: "hs", ServerDir: "hs", ServerPrefix: "ct5km_hs", LocalPrefix: "NOAA_HS"},
	{Code: "dhw", ServerDir: "dhw", ServerPrefix: "ct5km_dhw", LocalPrefix: "NOAA_DHW"},
}

// ClimatologyFile is the fixed-name long-term baseline file.
const ClimatologyFile = "ct5km_climatology_v3.1.nc"

// Fetcher downloads archive files with retries and skips files already on
// disk, so interrupted backfills resume where they stopped.
type Fetcher struct {
	client  *resty.Client
	baseURL string
	destDir string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Fetcher rooted at baseURL writing into destDir.
func New(baseURL, destDir string, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	client := resty.New()
	client.SetTimeout(2 * time.Minute)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(2 * time.Second)

	return &Fetcher{
		client:  client,
		baseURL: baseURL,
		destDir: destDir,
		logger:  logger,
		metrics: metrics,
	}
}

// FetchDaily downloads one product file for one date, returning the local
// path. An existing non-empty local copy short-circuits the download.
func (f *Fetcher) FetchDaily(ctx context.Context, p Product, date time.Time) (string, error) {
	stamp := date.Format("20060102")
	local := filepath.Join(f.destDir, fmt.Sprintf("%s_%s.nc", p.LocalPrefix, stamp))
	if present(local) {
		f.logger.Debug("file already present, skipping", "path", local)
		f.metrics.FetchRequests.WithLabelValues(p.Code, "skipped").Inc()
		return local, nil
	}

	url := fmt.Sprintf("%s/%s/%d/%s_v3.1_%s.nc", f.baseURL, p.ServerDir, date.Year(), p.ServerPrefix, stamp)
	if err := f.download(ctx, url, local); err != nil {
		f.metrics.FetchRequests.WithLabelValues(p.Code, "error").Inc()
		return "", fmt.Errorf("fetch %s for %s: %w", p.Code, stamp, err)
	}
	f.metrics.FetchRequests.WithLabelValues(p.Code, "success").Inc()
	return local, nil
}

// FetchClimatology downloads the baseline climatology file from climURL.
func (f *Fetcher) FetchClimatology(ctx context.Context, climURL string) (string, error) {
	local := filepath.Join(f.destDir, ClimatologyFile)
	if present(local) {
		f.logger.Debug("file already present, skipping", "path", local)
		f.metrics.FetchRequests.WithLabelValues("climatology", "skipped").Inc()
		return local, nil
	}
	if err := f.download(ctx, climURL+"/"+ClimatologyFile, local); err != nil {
		f.metrics.FetchRequests.WithLabelValues("climatology", "error").Inc()
		return "", fmt.Errorf("fetch climatology: %w", err)
	}
	f.metrics.FetchRequests.WithLabelValues("climatology", "success").Inc()
	return local, nil
}

// RangeResult records the outcome of one (product, date) download.
type RangeResult struct {
	Product string
	Date    time.Time
	Path    string
	Err     error
}

// FetchRange downloads every product for every date in [start, end]. One
// failed file never aborts the rest; each outcome is reported so the
// caller can log and retry selectively.
func (f *Fetcher) FetchRange(ctx context.Context, products []Product, start, end time.Time) []RangeResult {
	var results []RangeResult
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		for _, p := range products {
			if ctx.Err() != nil {
				return results
			}
			path, err := f.FetchDaily(ctx, p, date)
			if err != nil {
				f.logger.Warn("download failed, continuing", "product", p.Code,
					"date", date.Format("2006-01-02"), "error", err)
			}
			results = append(results, RangeResult{Product: p.Code, Date: date, Path: path, Err: err})
		}
	}
	return results
}

func (f *Fetcher) download(ctx context.Context, url, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	f.logger.Info("downloading", "url", url)
	start := time.Now()
	defer func() { f.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("server returned %s", resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return fmt.Errorf("server returned empty file")
	}

	// Write to a temp name first so a partial download never looks like a
	// complete input file.
	tmp := local + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, local)
}

func present(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
