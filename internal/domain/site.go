package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// RingRole distinguishes outer boundaries from holes. Shapefile rings do
// not carry an explicit flag; the loader derives the role from ring
// orientation and makes it explicit here.
type RingRole int

const (
	RoleOuter RingRole = iota
	RoleHole
)

func (r RingRole) String() string {
	if r == RoleHole {
		return "hole"
	}
	return "outer"
}

// Ring is one closed boundary of a site polygon. Points need not repeat
// the first vertex; closure is implicit.
type Ring struct {
	Points []geom.Point
	Role   RingRole
}

// Site is an immutable named conservation-area boundary: one or more outer
// rings, possibly with holes. Loaded once per run from a boundary file.
type Site struct {
	Code  string // short code used in output filenames, e.g. "GM"
	Name  string // human-readable name, e.g. "Gili Matra"
	Rings []Ring

	bounds *geom.Bounds
}

// NewSite validates the rings and precomputes the site extent.
// A site must have at least one outer ring, and every ring needs at least
// three vertices.
func NewSite(code, name string, rings []Ring) (*Site, error) {
	var outer int
	b := geom.NewBounds()
	for i, ring := range rings {
		if len(ring.Points) < 3 {
			return nil, &GeometryError{Site: code, Err: fmt.Errorf(
				"ring %d has %d vertices, need at least 3", i, len(ring.Points))}
		}
		if ring.Role == RoleOuter {
			outer++
		}
		for _, p := range ring.Points {
			b.Extend(p.Bounds())
		}
	}
	if outer == 0 {
		return nil, &GeometryError{Site: code, Err: fmt.Errorf("no outer ring among %d rings", len(rings))}
	}
	return &Site{Code: code, Name: name, Rings: rings, bounds: b}, nil
}

// Bounds returns the site's bounding box. Satisfies rtree.Spatial so sites
// can be indexed spatially.
func (s *Site) Bounds() *geom.Bounds { return s.bounds }

// Contains reports whether p belongs to the site.
//
// Policy: a point exactly on any ring edge is inside. Otherwise membership
// is the even-odd fold over rings: inside at least one outer ring and
// strictly inside no hole ring. The edge-inclusive convention is a
// deliberate constant of this package (coastal cells whose centers sit on
// a buffer edge must not flicker between runs or geometry libraries) and
// is pinned by tests.
func (s *Site) Contains(p geom.Point) bool {
	if !boundsContain(s.bounds, p) {
		return false
	}
	var inOuter bool
	for _, ring := range s.Rings {
		in, onEdge := ringContains(ring.Points, p)
		if onEdge {
			return true
		}
		if !in {
			continue
		}
		if ring.Role == RoleHole {
			return false
		}
		inOuter = true
	}
	return inOuter
}

func boundsContain(b *geom.Bounds, p geom.Point) bool {
	return p.X >= b.Min.X-coordEps && p.X <= b.Max.X+coordEps &&
		p.Y >= b.Min.Y-coordEps && p.Y <= b.Max.Y+coordEps
}

// ringContains runs even-odd ray casting of p against one closed ring.
// The second result reports that p lies on a ring segment, checked before
// any crossing count so the edge policy cannot depend on ray direction.
func ringContains(ring []geom.Point, p geom.Point) (inside, onEdge bool) {
	n := len(ring)
	for i := 0; i < n; i++ {
		if onSegment(ring[i], ring[(i+1)%n], p) {
			return false, true
		}
	}
	// Even-odd rule with a ray toward +X.
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if (a.Y > p.Y) == (b.Y > p.Y) {
			continue
		}
		x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
		if x > p.X {
			inside = !inside
		}
	}
	return inside, false
}

// onSegment reports whether p lies on segment ab within coordEps.
func onSegment(a, b, p geom.Point) bool {
	if p.X < math.Min(a.X, b.X)-coordEps || p.X > math.Max(a.X, b.X)+coordEps ||
		p.Y < math.Min(a.Y, b.Y)-coordEps || p.Y > math.Max(a.Y, b.Y)+coordEps {
		return false
	}
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	seg := math.Hypot(b.X-a.X, b.Y-a.Y)
	if seg == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y) <= coordEps
	}
	return math.Abs(cross)/seg <= coordEps
}

// RingOrientation returns the signed area of a ring: positive for
// counter-clockwise. Shapefile convention stores outer rings clockwise and
// holes counter-clockwise; the boundary loader uses this to tag roles.
func RingOrientation(ring []geom.Point) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}
