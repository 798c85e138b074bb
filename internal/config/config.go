// Package config populates service settings from environment variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// crwDailyBase is the public Coral Reef Watch v3.1 daily archive;
// crwClimBase is the directory holding the monthly mean climatology file.
const (
	crwDailyBase = "https://www.star.nesdis.noaa.gov/pub/sod/mecb/crw/data/5km/v3.1_op/nc/v1.0/daily"
	crwClimBase  = "https://www.star.nesdis.noaa.gov/pub/sod/mecb/crw/data/5km/v3.1_op/climatology/nc"
)

// SiteSpec names one monitored site and the shapefile that bounds it,
// relative to SitesDir.
type SiteSpec struct {
	Code string
	Name string
	File string
}

// defaultSites are the Lombok-area monitoring sites.
var defaultSites = []SiteSpec{
	{Code: "GM", Name: "Gili Matra", File: "gili_matra_buffer_5km.shp"},
	{Code: "GN", Name: "Gita Nada", File: "gita_nada_buffer_5km.shp"},
	{Code: "NP", Name: "Nusa Penida", File: "nusa_penida_buffer_5km.shp"},
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputDir  string `env:"INPUT_DIR, default=data/raw"`
	OutputDir string `env:"OUTPUT_DIR, default=data/processed"`
	SitesDir  string `env:"SITES_DIR, default=data/shapefiles"`
	Sites     string `env:"SITES"` // comma-separated site codes, empty selects all

	// Crop window, default covers the Lombok Strait region.
	MinLon float64 `env:"MIN_LON, default=115.3"`
	MaxLon float64 `env:"MAX_LON, default=116.3"`
	MinLat float64 `env:"MIN_LAT, default=-9.2"`
	MaxLat float64 `env:"MAX_LAT, default=-8.2"`

	Products  string `env:"PRODUCTS"`   // comma-separated product codes, empty selects all
	StartDate string `env:"START_DATE"` // YYYY-MM-DD, empty means today
	EndDate   string `env:"END_DATE"`   // YYYY-MM-DD, empty means StartDate

	FetchEnabled bool   `env:"FETCH_ENABLED"`
	FetchBaseURL string `env:"FETCH_BASE_URL"`
	FetchClimURL string `env:"FETCH_CLIM_URL"`
	GCSBucket    string `env:"GCS_BUCKET"` // empty stores outputs locally

	HTTPAddr        string        `env:"HTTP_ADDR, default=:8080"`
	LogLevel        string        `env:"LOG_LEVEL, default=info"`
	LogFormat       string        `env:"LOG_FORMAT, default=json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`
	WatchInterval   time.Duration `env:"WATCH_INTERVAL, default=6h"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	if cfg.FetchBaseURL == "" {
		cfg.FetchBaseURL = crwDailyBase
	}
	if cfg.FetchClimURL == "" {
		cfg.FetchClimURL = crwClimBase
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Window().Validate(); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive, got %s", c.WatchInterval)
	}
	if _, err := c.SiteSpecs(); err != nil {
		return err
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	return nil
}

// Window returns the configured crop window.
func (c *Config) Window() domain.RegionWindow {
	return domain.RegionWindow{
		MinLon: c.MinLon,
		MaxLon: c.MaxLon,
		MinLat: c.MinLat,
		MaxLat: c.MaxLat,
	}
}

// SiteSpecs resolves the SITES selection against the known site table. An
// empty selection returns every site.
func (c *Config) SiteSpecs() ([]SiteSpec, error) {
	if strings.TrimSpace(c.Sites) == "" {
		return defaultSites, nil
	}
	var specs []SiteSpec
	for _, code := range strings.Split(c.Sites, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		found := false
		for _, s := range defaultSites {
			if s.Code == code {
				specs = append(specs, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("SITES: unknown site code %q", code)
		}
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("SITES: no site codes in %q", c.Sites)
	}
	return specs, nil
}

// ProductCodes returns the PRODUCTS selection, empty meaning all.
func (c *Config) ProductCodes() []string {
	if strings.TrimSpace(c.Products) == "" {
		return nil
	}
	var codes []string
	for _, code := range strings.Split(c.Products, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// DateRange resolves START_DATE and END_DATE. Unset start means today
// (UTC); unset end means a single-day range.
func (c *Config) DateRange() (start, end time.Time, err error) {
	start = domain.Now().UTC().Truncate(24 * time.Hour)
	if c.StartDate != "" {
		start, err = time.Parse("2006-01-02", c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("START_DATE: %w", err)
		}
	}
	end = start
	if c.EndDate != "" {
		end, err = time.Parse("2006-01-02", c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("END_DATE: %w", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("END_DATE %s precedes START_DATE %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}
