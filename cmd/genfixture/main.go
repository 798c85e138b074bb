// Command genfixture writes a synthetic slice of the raster archive for
// local runs and integration testing: daily product files, a monthly
// climatology file, and site boundary shapefiles. It uses the pipeline's
// own encoders so fixtures exercise the real read paths.
//
// Usage:
//
//	go run ./cmd/genfixture -out data -start 2024-03-01 -days 7
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"

	"github.com/reefwatch/coral-etl/internal/adapter/netcdf"
	"github.com/reefwatch/coral-etl/internal/domain"
	"github.com/reefwatch/coral-etl/internal/fetch"
)

// fixtureGrid matches the archive's 0.05 degree cells over the Lombok
// window, with a margin so cropping has something to remove.
var fixtureGrid = domain.GridSpec{
	OriginLon: 115.0, OriginLat: -9.5,
	CellLon: 0.05, CellLat: 0.05,
	NLon: 32, NLat: 32,
}

type siteFeature struct {
	geom.Polygon
	Name string
}

// fixtureSites are circular 5 km-ish buffers around the monitored reefs.
var fixtureSites = []struct {
	file string
	name string
	lon  float64
	lat  float64
}{
	{"gili_matra_buffer_5km.shp", "Gili Matra", 116.05, -8.35},
	{"gita_nada_buffer_5km.shp", "Gita Nada", 115.85, -8.85},
	{"nusa_penida_buffer_5km.shp", "Nusa Penida", 115.55, -8.75},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "base directory for fixture files")
	startStr := flag.String("start", "2024-03-01", "first day of the daily series")
	days := flag.Int("days", 7, "number of days to generate")
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	rawDir := filepath.Join(*out, "raw")
	shapeDir := filepath.Join(*out, "shapefiles")
	for _, dir := range []string{rawDir, shapeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if err := writeDaily(rawDir, start, *days); err != nil {
		return err
	}
	if err := writeClimatology(rawDir); err != nil {
		return err
	}
	if err := writeShapefiles(shapeDir); err != nil {
		return err
	}

	log.Printf("fixtures written under %s: %d days, climatology, %d site shapefiles",
		*out, *days, len(fixtureSites))
	return nil
}

// writeDaily generates one file per product per day. SST follows a gentle
// spatial gradient plus a slow warming trend; the stress products are
// derived from it so alert runs over the fixtures behave plausibly.
func writeDaily(dir string, start time.Time, days int) error {
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		warming := 0.05 * float64(i)

		sst := fillGrid(func(lon, lat float64) float64 {
			return 28.5 + spatialGradient(lon, lat) + warming
		})
		ssta := fillGrid(func(lon, lat float64) float64 {
			return 0.8 + spatialGradient(lon, lat) + warming
		})
		hs := fillGrid(func(lon, lat float64) float64 {
			return math.Max(0, 0.4+spatialGradient(lon, lat)+warming)
		})
		dhw := fillGrid(func(lon, lat float64) float64 {
			return math.Max(0, warming*4)
		})

		grids := map[string]*sparse.DenseArray{"sst": sst, "ssta": ssta, "hs": hs, "dhw": dhw}
		for _, p := range fetch.DefaultProducts {
			r, err := domain.NewRaster(p.Code, date, fixtureGrid, grids[p.Code])
			if err != nil {
				return err
			}
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.nc", p.LocalPrefix, date.Format("20060102")))
			if err := netcdf.WriteFile(path, true, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeClimatology generates the twelve monthly baseline grids with a mild
// seasonal cycle peaking in March.
func writeClimatology(dir string) error {
	rasters := make([]*domain.Raster, 12)
	for month := 1; month <= 12; month++ {
		seasonal := 1.2 * math.Cos(2*math.Pi*float64(month-3)/12)
		data := fillGrid(func(lon, lat float64) float64 {
			return 27.8 + seasonal + spatialGradient(lon, lat)
		})
		name := fmt.Sprintf("sst_clim_%s", monthName(time.Month(month)))
		r, err := domain.NewRaster(name, time.Time{}, fixtureGrid, data)
		if err != nil {
			return err
		}
		rasters[month-1] = r
	}
	return netcdf.WriteFile(filepath.Join(dir, fetch.ClimatologyFile), true, rasters...)
}

func writeShapefiles(dir string) error {
	for _, s := range fixtureSites {
		enc, err := shp.NewEncoder(filepath.Join(dir, s.file), siteFeature{})
		if err != nil {
			return err
		}
		feature := siteFeature{Polygon: geom.Polygon{bufferRing(s.lon, s.lat, 0.045)}, Name: s.name}
		if err := enc.Encode(feature); err != nil {
			enc.Close()
			return err
		}
		enc.Close()
	}
	return nil
}

// bufferRing approximates a circular buffer as a 24-gon.
func bufferRing(lon, lat, radius float64) []geom.Point {
	const segments = 24
	ring := make([]geom.Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		angle := 2 * math.Pi * float64(i) / segments
		ring = append(ring, geom.Point{
			X: lon + radius*math.Cos(angle),
			Y: lat + radius*math.Sin(angle),
		})
	}
	return ring
}

func fillGrid(f func(lon, lat float64) float64) *sparse.DenseArray {
	data := sparse.ZerosDense(fixtureGrid.NLat, fixtureGrid.NLon)
	for row := 0; row < fixtureGrid.NLat; row++ {
		for col := 0; col < fixtureGrid.NLon; col++ {
			data.Set(f(fixtureGrid.Lon(col), fixtureGrid.Lat(row)), row, col)
		}
	}
	// A masked cell, as land pixels are in the real archive.
	data.Set(math.NaN(), 0, 0)
	return data
}

// spatialGradient is a small smooth variation so site means differ.
func spatialGradient(lon, lat float64) float64 {
	return 0.3*math.Sin(lon-115.0) + 0.2*math.Cos(lat+9.0)
}

func monthName(m time.Month) string {
	names := [...]string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}
	return names[m-1]
}
