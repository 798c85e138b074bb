package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// coordEps absorbs float drift when snapping coordinates to grid indices.
// CRW cells are 0.05°, so a tolerance of half a micro-degree is far below
// any meaningful boundary distance.
const coordEps = 5e-7

// GridSpec is the affine mapping from (row, col) to a cell-center
// coordinate. Row 0/column 0 is the south-west corner; latitude and
// longitude both ascend with index.
type GridSpec struct {
	OriginLon float64 // center longitude of column 0
	OriginLat float64 // center latitude of row 0
	CellLon   float64 // cell width, degrees, > 0
	CellLat   float64 // cell height, degrees, > 0
	NLon      int     // number of columns
	NLat      int     // number of rows
}

// Validate reports whether the grid geometry is usable.
func (g GridSpec) Validate() error {
	if g.NLon < 0 || g.NLat < 0 {
		return fmt.Errorf("negative grid shape %dx%d", g.NLat, g.NLon)
	}
	if g.NLon > 0 && g.NLat > 0 && (g.CellLon <= 0 || g.CellLat <= 0) {
		return fmt.Errorf("non-positive cell size %gx%g", g.CellLon, g.CellLat)
	}
	return nil
}

// Lon returns the center longitude of column col.
func (g GridSpec) Lon(col int) float64 { return g.OriginLon + float64(col)*g.CellLon }

// Lat returns the center latitude of row row.
func (g GridSpec) Lat(row int) float64 { return g.OriginLat + float64(row)*g.CellLat }

// Bounds returns the extent covered by all cell centers.
func (g GridSpec) Bounds() *geom.Bounds {
	if g.NLon == 0 || g.NLat == 0 {
		return &geom.Bounds{}
	}
	return &geom.Bounds{
		Min: geom.Point{X: g.OriginLon, Y: g.OriginLat},
		Max: geom.Point{X: g.Lon(g.NLon - 1), Y: g.Lat(g.NLat - 1)},
	}
}

// Raster is a 2-D regular latitude/longitude grid of scalar values.
// Data has shape [NLat, NLon]; no-data cells hold NaN. Rasters are
// immutable once built: Clip and Extract never modify their input.
type Raster struct {
	Product string    // CRW product code: sst, ssta, hs, dhw, or a climatology variable
	Date    time.Time // observation date of the source file (zero for climatology)
	Grid    GridSpec
	Data    *sparse.DenseArray

	// FillValue is the no-data sentinel of the source file, kept for
	// round-tripping. In-memory no-data is always NaN.
	FillValue float64
}

// NewRaster builds a raster over data, which must match the grid shape.
func NewRaster(product string, date time.Time, grid GridSpec, data *sparse.DenseArray) (*Raster, error) {
	if err := grid.Validate(); err != nil {
		return nil, &GridError{Unit: product, Err: err}
	}
	if len(data.Shape) != 2 || data.Shape[0] != grid.NLat || data.Shape[1] != grid.NLon {
		return nil, &GridError{Unit: product, Err: fmt.Errorf(
			"data shape %v does not match grid %dx%d", data.Shape, grid.NLat, grid.NLon)}
	}
	return &Raster{Product: product, Date: date, Grid: grid, Data: data}, nil
}

// Value returns the cell value at (row, col). NaN means no data.
func (r *Raster) Value(row, col int) float64 { return r.Data.Get(row, col) }

// Empty reports whether the raster has no cells.
func (r *Raster) Empty() bool { return r.Grid.NLat == 0 || r.Grid.NLon == 0 }

// RegionWindow is a rectangular cropping window in degrees.
type RegionWindow struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

// Validate checks the min < max invariant on both axes.
func (w RegionWindow) Validate() error {
	if w.MinLon >= w.MaxLon {
		return fmt.Errorf("window longitude range [%g, %g] is empty", w.MinLon, w.MaxLon)
	}
	if w.MinLat >= w.MaxLat {
		return fmt.Errorf("window latitude range [%g, %g] is empty", w.MinLat, w.MaxLat)
	}
	return nil
}

// Clip crops r to the minimal contiguous sub-grid whose cell centers fall
// inside w, boundaries inclusive. A window that misses the raster entirely
// yields an empty raster, not an error. Cell size, product, date, and fill
// value carry over; only the origin translates.
func Clip(r *Raster, w RegionWindow) (*Raster, error) {
	if err := w.Validate(); err != nil {
		return nil, &GridError{Unit: r.Product, Err: err}
	}
	if err := r.Grid.Validate(); err != nil {
		return nil, &GridError{Unit: r.Product, Err: err}
	}

	col0, col1 := axisRange(r.Grid.OriginLon, r.Grid.CellLon, r.Grid.NLon, w.MinLon, w.MaxLon)
	row0, row1 := axisRange(r.Grid.OriginLat, r.Grid.CellLat, r.Grid.NLat, w.MinLat, w.MaxLat)
	if col0 > col1 || row0 > row1 {
		return emptyLike(r), nil
	}

	nLon := col1 - col0 + 1
	nLat := row1 - row0 + 1
	out := sparse.ZerosDense(nLat, nLon)
	for row := 0; row < nLat; row++ {
		for col := 0; col < nLon; col++ {
			out.Set(r.Data.Get(row0+row, col0+col), row, col)
		}
	}

	return &Raster{
		Product: r.Product,
		Date:    r.Date,
		Grid: GridSpec{
			OriginLon: r.Grid.Lon(col0),
			OriginLat: r.Grid.Lat(row0),
			CellLon:   r.Grid.CellLon,
			CellLat:   r.Grid.CellLat,
			NLon:      nLon,
			NLat:      nLat,
		},
		Data:      out,
		FillValue: r.FillValue,
	}, nil
}

// axisRange returns the inclusive index range [i0, i1] of cell centers
// within [min, max] along one axis, clamped to [0, n). i0 > i1 means no
// cell qualifies.
func axisRange(origin, cell float64, n int, min, max float64) (int, int) {
	if n == 0 {
		return 0, -1
	}
	i0 := int(math.Ceil((min - origin - coordEps) / cell))
	i1 := int(math.Floor((max - origin + coordEps) / cell))
	if i0 < 0 {
		i0 = 0
	}
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1
}

func emptyLike(r *Raster) *Raster {
	return &Raster{
		Product: r.Product,
		Date:    r.Date,
		Grid: GridSpec{
			CellLon: r.Grid.CellLon,
			CellLat: r.Grid.CellLat,
		},
		Data:      sparse.ZerosDense(0, 0),
		FillValue: r.FillValue,
	}
}
