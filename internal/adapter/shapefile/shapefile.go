// Package shapefile loads site boundary polygons from ESRI shapefiles and
// indexes them spatially. Boundaries are read once per run and are
// immutable afterwards.
package shapefile

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// siteGeom adapts *domain.Site to geom.Geom so sites can live in the
// r-tree, which only ever consults Bounds.
type siteGeom struct{ site *domain.Site }

func (g siteGeom) Bounds() *geom.Bounds { return g.site.Bounds() }

func (g siteGeom) Len() int {
	var n int
	for _, ring := range g.site.Rings {
		n += len(ring.Points)
	}
	return n
}

func (g siteGeom) Points() func() geom.Point {
	var pts []geom.Point
	for _, ring := range g.site.Rings {
		pts = append(pts, ring.Points...)
	}
	i := 0
	return func() geom.Point {
		p := pts[i]
		i++
		return p
	}
}

func (g siteGeom) Similar(o geom.Geom, _ float64) bool {
	og, ok := o.(siteGeom)
	return ok && og.site == g.site
}

func (g siteGeom) Transform(proj.Transformer) (geom.Geom, error) {
	return nil, fmt.Errorf("site %s: transform not supported", g.site.Code)
}

// LoadSite reads every feature of the shapefile at path and merges their
// rings into one site boundary. Any decode or geometry problem is a
// GeometryError for this site only.
func LoadSite(code, name, path string) (*domain.Site, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, &domain.GeometryError{Site: code, Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer dec.Close()

	var rings []domain.Ring
	for {
		g, _, more := dec.DecodeRowFields()
		if !more {
			break
		}
		polyRings, err := ringsOf(g)
		if err != nil {
			return nil, &domain.GeometryError{Site: code, Err: fmt.Errorf("%s: %w", path, err)}
		}
		rings = append(rings, polyRings...)
	}
	if err := dec.Error(); err != nil {
		return nil, &domain.GeometryError{Site: code, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	if len(rings) == 0 {
		return nil, &domain.GeometryError{Site: code, Err: fmt.Errorf("%s contains no polygon features", path)}
	}
	return domain.NewSite(code, name, rings)
}

// ringsOf converts one decoded feature into tagged rings.
//
// Shapefiles carry no explicit hole flag, only winding order, and real
// files are not always conformant about which way outer rings wind. Per
// polygon, the ring enclosing the largest area sets the outer winding;
// rings winding the same way are outers, opposite-winding rings are holes.
// A single-ring polygon is always an outer.
func ringsOf(g geom.Geom) ([]domain.Ring, error) {
	switch p := g.(type) {
	case geom.Polygon:
		return tagRings(p), nil
	case geom.MultiPolygon:
		var out []domain.Ring
		for _, poly := range p {
			out = append(out, tagRings(poly)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("feature is %T, want polygon", g)
	}
}

func tagRings(p geom.Polygon) []domain.Ring {
	if len(p) == 0 {
		return nil
	}
	var dominant float64
	var maxArea float64
	for _, ring := range p {
		a := domain.RingOrientation(ring)
		if math.Abs(a) > maxArea {
			maxArea = math.Abs(a)
			dominant = a
		}
	}

	out := make([]domain.Ring, 0, len(p))
	for _, ring := range p {
		role := domain.RoleOuter
		if len(p) > 1 && domain.RingOrientation(ring)*dominant < 0 {
			role = domain.RoleHole
		}
		out = append(out, domain.Ring{Points: append([]geom.Point(nil), ring...), Role: role})
	}
	return out
}

// Index holds loaded sites behind an r-tree for raster-extent lookups.
type Index struct {
	tree  *rtree.Rtree
	sites []*domain.Site
}

// NewIndex builds an index over sites.
func NewIndex(sites ...*domain.Site) *Index {
	ix := &Index{tree: rtree.NewTree(25, 50)}
	for _, s := range sites {
		ix.sites = append(ix.sites, s)
		ix.tree.Insert(siteGeom{site: s})
	}
	sort.Slice(ix.sites, func(i, j int) bool { return ix.sites[i].Code < ix.sites[j].Code })
	return ix
}

// All returns every site, ordered by code.
func (ix *Index) All() []*domain.Site { return ix.sites }

// Intersecting returns the sites whose bounds overlap b, ordered by code
// so batch iteration stays deterministic.
func (ix *Index) Intersecting(b *geom.Bounds) []*domain.Site {
	var out []*domain.Site
	for _, item := range ix.tree.SearchIntersect(b) {
		out = append(out, item.(siteGeom).site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
