package netcdf

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// CRW packing conventions, reproduced by the fixture writer so synthetic
// files exercise the same unpack path as archive downloads.
const (
	packedScale = 0.01
	packedFill  = -32768
	floatFill   = -999.0
)

// WriteFile writes rasters to a classic-format NetCDF file at path. All
// rasters must share one grid. With packed set, values are stored as int16
// with a 0.01 scale factor the way CRW daily products are; otherwise as
// float32. NaN cells become the fill value either way.
func WriteFile(path string, packed bool, rasters ...*domain.Raster) error {
	if len(rasters) == 0 {
		return fmt.Errorf("write %s: no rasters", path)
	}
	grid := rasters[0].Grid
	for _, r := range rasters[1:] {
		if r.Grid != grid {
			return fmt.Errorf("write %s: rasters share no common grid", path)
		}
	}

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{grid.NLat, grid.NLon})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	for _, r := range rasters {
		if packed {
			h.AddVariable(r.Product, []string{"lat", "lon"}, []int16{0})
			h.AddAttribute(r.Product, "scale_factor", []float64{packedScale})
			h.AddAttribute(r.Product, "_FillValue", []int16{packedFill})
		} else {
			h.AddVariable(r.Product, []string{"lat", "lon"}, []float32{0})
			h.AddAttribute(r.Product, "_FillValue", []float32{floatFill})
		}
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return &domain.IOFailure{Path: path, Err: err}
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := writeCoord(nc, "lat", grid.OriginLat, grid.CellLat, grid.NLat); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := writeCoord(nc, "lon", grid.OriginLon, grid.CellLon, grid.NLon); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range rasters {
		if err := writeGrid(nc, r, packed); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCoord(nc *cdf.File, name string, origin, step float64, n int) error {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = origin + float64(i)*step
	}
	w := nc.Writer(name, []int{0}, []int{n})
	_, err := w.Write(vals)
	return err
}

func writeGrid(nc *cdf.File, r *domain.Raster, packed bool) error {
	n := r.Grid.NLat * r.Grid.NLon
	end := nc.Header.Lengths(r.Product)
	w := nc.Writer(r.Product, make([]int, len(end)), end)
	if packed {
		buf := make([]int16, n)
		for i, v := range r.Data.Elements {
			if math.IsNaN(v) {
				buf[i] = packedFill
				continue
			}
			buf[i] = int16(math.Round(v / packedScale))
		}
		_, err := w.Write(buf)
		return err
	}
	buf := make([]float32, n)
	for i, v := range r.Data.Elements {
		if math.IsNaN(v) {
			buf[i] = floatFill
			continue
		}
		buf[i] = float32(v)
	}
	_, err := w.Write(buf)
	return err
}
