// Package netcdf reads NOAA CRW rasters from NetCDF (classic format)
// files and writes synthetic fixtures for tests and local runs.
//
// CRW files store values packed (typically int16 with a scale_factor
// attribute) and mark land/missing cells with a _FillValue sentinel. The
// reader unscales to float64, maps fill values to NaN, squeezes a leading
// time dimension of length 1, and normalizes both axes to ascending order
// so the domain grid invariants hold regardless of storage order.
package netcdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/reefwatch/coral-etl/internal/domain"
)

var (
	latNames = []string{"lat", "latitude", "y"}
	lonNames = []string{"lon", "longitude", "x"}

	// auxiliary variables that are never the data grid
	auxNames = map[string]bool{
		"time": true, "crs": true, "mask": true, "spatial_ref": true,
	}

	fileDateRe = regexp.MustCompile(`(\d{8})`)
)

// gridTolerance is the maximum relative deviation between coordinate steps
// for a grid to count as regular.
const gridTolerance = 1e-4

// LoadVariable reads one 2-D (or time-sliced 2-D) variable from the file
// at path into a raster. An empty varName selects the single data variable,
// failing if the choice is ambiguous.
func LoadVariable(path, varName string, date time.Time) (*domain.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.GridError{Unit: filepath.Base(path), Err: err}
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, &domain.GridError{Unit: filepath.Base(path), Err: fmt.Errorf("open netcdf: %w", err)}
	}
	return loadVariable(nc, filepath.Base(path), varName, date)
}

// Variables lists the data variables (2-D over lat/lon) in the file.
func Variables(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.GridError{Unit: filepath.Base(path), Err: err}
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, &domain.GridError{Unit: filepath.Base(path), Err: err}
	}
	return dataVariables(nc), nil
}

func loadVariable(nc *cdf.File, unit, varName string, date time.Time) (*domain.Raster, error) {
	lats, err := coordinate(nc, latNames)
	if err != nil {
		return nil, &domain.GridError{Unit: unit, Err: err}
	}
	lons, err := coordinate(nc, lonNames)
	if err != nil {
		return nil, &domain.GridError{Unit: unit, Err: err}
	}

	if varName == "" {
		candidates := dataVariables(nc)
		switch len(candidates) {
		case 1:
			varName = candidates[0]
		case 0:
			return nil, &domain.GridError{Unit: unit, Err: fmt.Errorf("no data variable found")}
		default:
			return nil, &domain.GridError{Unit: unit, Err: fmt.Errorf(
				"ambiguous data variable, candidates %v", candidates)}
		}
	}

	values, err := readGrid(nc, varName, len(lats), len(lons))
	if err != nil {
		return nil, &domain.GridError{Unit: unit, Err: err}
	}

	// Normalize to ascending axes before deriving the affine spec.
	if len(lats) > 1 && lats[0] > lats[len(lats)-1] {
		reverseRows(values, len(lats), len(lons))
		reverse(lats)
	}
	if len(lons) > 1 && lons[0] > lons[len(lons)-1] {
		reverseCols(values, len(lats), len(lons))
		reverse(lons)
	}

	cellLat, err := regularStep(lats)
	if err != nil {
		return nil, &domain.GridError{Unit: unit, Err: fmt.Errorf("latitude axis: %w", err)}
	}
	cellLon, err := regularStep(lons)
	if err != nil {
		return nil, &domain.GridError{Unit: unit, Err: fmt.Errorf("longitude axis: %w", err)}
	}

	data := sparse.ZerosDense(len(lats), len(lons))
	copy(data.Elements, values)

	raster, err := domain.NewRaster(varName, date, domain.GridSpec{
		OriginLon: lons[0],
		OriginLat: lats[0],
		CellLon:   cellLon,
		CellLat:   cellLat,
		NLon:      len(lons),
		NLat:      len(lats),
	}, data)
	if err != nil {
		return nil, err
	}
	if fill, ok := attrFloat(nc, varName, "_FillValue"); ok {
		raster.FillValue = fill
	}
	return raster, nil
}

// dataVariables returns variables dimensioned over lat and lon, skipping
// coordinates and known auxiliaries.
func dataVariables(nc *cdf.File) []string {
	coords := map[string]bool{}
	for _, n := range append(append([]string{}, latNames...), lonNames...) {
		coords[n] = true
	}
	var out []string
	for _, v := range nc.Header.Variables() {
		if coords[v] || auxNames[v] {
			continue
		}
		if spatialDims(nc, v) {
			out = append(out, v)
		}
	}
	return out
}

// spatialDims reports whether v is laid out as [lat, lon] or [time, lat, lon].
func spatialDims(nc *cdf.File, v string) bool {
	dims := nc.Header.Dimensions(v)
	lengths := nc.Header.Lengths(v)
	if len(dims) == 3 && lengths[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return false
	}
	return axisName(dims[0], latNames) && axisName(dims[1], lonNames)
}

func axisName(dim string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(dim, c) {
			return true
		}
	}
	return false
}

// coordinate reads the first present 1-D coordinate variable among names.
func coordinate(nc *cdf.File, names []string) ([]float64, error) {
	for _, name := range names {
		if !hasVariable(nc, name) {
			continue
		}
		lengths := nc.Header.Lengths(name)
		if len(lengths) != 1 {
			continue
		}
		vals, err := readFloats(nc, name, lengths[0])
		if err != nil {
			return nil, fmt.Errorf("read coordinate %s: %w", name, err)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("coordinate variable not found (tried %v)", names)
}

// readGrid reads variable v as an unpacked float64 grid with fill values
// replaced by NaN. A leading time dimension of length 1 is squeezed; any
// other extra dimension is an error.
func readGrid(nc *cdf.File, v string, nLat, nLon int) ([]float64, error) {
	if !hasVariable(nc, v) {
		return nil, fmt.Errorf("variable %s not found", v)
	}
	lengths := nc.Header.Lengths(v)
	if len(lengths) == 3 && lengths[0] == 1 {
		lengths = lengths[1:]
	}
	if len(lengths) != 2 {
		return nil, fmt.Errorf("variable %s: expected 2-D grid, got shape %v", v, nc.Header.Lengths(v))
	}
	if lengths[0] != nLat || lengths[1] != nLon {
		return nil, fmt.Errorf("variable %s: shape %v does not match coordinates %dx%d",
			v, lengths, nLat, nLon)
	}

	vals, err := readFloats(nc, v, nLat*nLon)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", v, err)
	}

	fill, hasFill := attrFloat(nc, v, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(nc, v, "missing_value")
	}
	scale, hasScale := attrFloat(nc, v, "scale_factor")
	offset, _ := attrFloat(nc, v, "add_offset")

	for i, raw := range vals {
		if hasFill && raw == fill {
			vals[i] = math.NaN()
			continue
		}
		if hasScale {
			vals[i] = raw*scale + offset
		} else if offset != 0 {
			vals[i] = raw + offset
		}
	}
	return vals, nil
}

// readFloats reads n values of v whatever the on-disk numeric type.
func readFloats(nc *cdf.File, v string, n int) ([]float64, error) {
	r := nc.Reader(v, nil, nil)
	out := make([]float64, n)

	switch buf := r.Zero(n).(type) {
	case []int16:
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case []int32:
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case []float32:
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case []float64:
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		copy(out, buf)
	default:
		return nil, fmt.Errorf("variable %s: unsupported storage type %T", v, buf)
	}
	return out, nil
}

func hasVariable(nc *cdf.File, name string) bool {
	for _, v := range nc.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// attrFloat fetches a numeric attribute, tolerating the handful of types
// NetCDF writers use for it.
func attrFloat(nc *cdf.File, v, name string) (float64, bool) {
	val := nc.Header.GetAttribute(v, name)
	if val == nil {
		return 0, false
	}
	switch a := val.(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// regularStep validates constant spacing and returns the (positive) step.
func regularStep(coords []float64) (float64, error) {
	if len(coords) < 2 {
		if len(coords) == 1 {
			return 0.05, nil // single row/col: assume the CRW cell size
		}
		return 0, fmt.Errorf("empty coordinate axis")
	}
	step := coords[1] - coords[0]
	if step <= 0 {
		return 0, fmt.Errorf("axis not ascending at index 0")
	}
	for i := 2; i < len(coords); i++ {
		d := coords[i] - coords[i-1]
		if math.Abs(d-step) > gridTolerance*math.Abs(step) {
			return 0, fmt.Errorf("irregular spacing at index %d: %g vs %g", i, d, step)
		}
	}
	return step, nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseRows(vals []float64, nLat, nLon int) {
	for i, j := 0, nLat-1; i < j; i, j = i+1, j-1 {
		a := vals[i*nLon : (i+1)*nLon]
		b := vals[j*nLon : (j+1)*nLon]
		for k := range a {
			a[k], b[k] = b[k], a[k]
		}
	}
}

func reverseCols(vals []float64, nLat, nLon int) {
	for row := 0; row < nLat; row++ {
		reverse(vals[row*nLon : (row+1)*nLon])
	}
}

// ParseDailyFilename extracts the observation date embedded in CRW daily
// filenames such as coraltemp_v3.1_20260120.nc or ct5km_dhw_v3.1_20260120.nc.
func ParseDailyFilename(name string) (time.Time, error) {
	m := fileDateRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, fmt.Errorf("no YYYYMMDD date in filename %q", name)
	}
	t, err := time.Parse("20060102", m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("filename %q: %w", name, err)
	}
	return t, nil
}
