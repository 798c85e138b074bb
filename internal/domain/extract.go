package domain

import (
	"iter"
	"math"
	"time"

	"github.com/ctessum/geom"
)

// ExtractedPoint is the atomic output of site extraction: one grid-cell
// center that carries data and falls inside a site boundary.
type ExtractedPoint struct {
	Lon   float64
	Lat   float64
	Value float64
	Date  time.Time
	Site  string // site code
}

// Extract returns the raster cells belonging to site as a restartable
// sequence in row-major order (south to north, west to east). Ordering is
// deterministic so repeated runs produce byte-identical output files.
//
// No-data (NaN) cells are never yielded, even when their centers fall
// inside the boundary. A site that misses the raster entirely yields
// nothing; that is a valid empty extract, not an error.
func Extract(r *Raster, site *Site) iter.Seq[ExtractedPoint] {
	return func(yield func(ExtractedPoint) bool) {
		if r.Empty() || !overlaps(site.Bounds(), r.Grid.Bounds()) {
			return
		}
		for row := 0; row < r.Grid.NLat; row++ {
			lat := r.Grid.Lat(row)
			for col := 0; col < r.Grid.NLon; col++ {
				v := r.Value(row, col)
				if math.IsNaN(v) {
					continue
				}
				lon := r.Grid.Lon(col)
				if !site.Contains(geom.Point{X: lon, Y: lat}) {
					continue
				}
				if !yield(ExtractedPoint{Lon: lon, Lat: lat, Value: v, Date: r.Date, Site: site.Code}) {
					return
				}
			}
		}
	}
}

// ExtractPoints collects Extract into a slice.
func ExtractPoints(r *Raster, site *Site) []ExtractedPoint {
	var points []ExtractedPoint
	for p := range Extract(r, site) {
		points = append(points, p)
	}
	return points
}

func overlaps(a, b *geom.Bounds) bool {
	return a.Min.X <= b.Max.X+coordEps && b.Min.X <= a.Max.X+coordEps &&
		a.Min.Y <= b.Max.Y+coordEps && b.Min.Y <= a.Max.Y+coordEps
}
