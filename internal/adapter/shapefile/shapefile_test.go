package shapefile

import (
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefwatch/coral-etl/internal/domain"
)

type siteFeature struct {
	geom.Polygon
	Name string
}

func writeShapefile(t *testing.T, path string, polys ...geom.Polygon) {
	t.Helper()
	enc, err := shp.NewEncoder(path, siteFeature{})
	require.NoError(t, err)
	for _, p := range polys {
		require.NoError(t, enc.Encode(siteFeature{Polygon: p, Name: "buffer"}))
	}
	enc.Close()
}

func ring(minX, minY, maxX, maxY float64) []geom.Point {
	return []geom.Point{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
		{X: minX, Y: minY},
	}
}

// reversed flips winding so fixtures can exercise the hole convention.
func reversed(points []geom.Point) []geom.Point {
	out := make([]geom.Point, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

func TestLoadSite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gili_matra_buffer_5km.shp")
	writeShapefile(t, path, geom.Polygon{ring(115.0, -8.5, 115.5, -8.0)})

	site, err := LoadSite("GM", "Gili Matra", path)
	require.NoError(t, err)

	assert.Equal(t, "GM", site.Code)
	assert.Equal(t, "Gili Matra", site.Name)
	assert.True(t, site.Contains(geom.Point{X: 115.25, Y: -8.25}))
	assert.False(t, site.Contains(geom.Point{X: 116.0, Y: -8.25}))
}

func TestLoadSite_WithHole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.shp")
	writeShapefile(t, path, geom.Polygon{
		ring(0, 0, 10, 10),
		reversed(ring(4, 4, 6, 6)),
	})

	site, err := LoadSite("NP", "Nusa Penida", path)
	require.NoError(t, err)

	assert.True(t, site.Contains(geom.Point{X: 2, Y: 2}))
	assert.False(t, site.Contains(geom.Point{X: 5, Y: 5}), "point in hole must be excluded")
}

func TestLoadSite_MissingFile(t *testing.T) {
	_, err := LoadSite("GN", "Gita Nada", filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)

	var geomErr *domain.GeometryError
	require.ErrorAs(t, err, &geomErr)
	assert.Equal(t, "GN", geomErr.Site)
}

func mustSite(t *testing.T, code string, minX, minY, maxX, maxY float64) *domain.Site {
	t.Helper()
	s, err := domain.NewSite(code, code, []domain.Ring{
		{Points: ring(minX, minY, maxX, maxY), Role: domain.RoleOuter},
	})
	require.NoError(t, err)
	return s
}

func TestIndexIntersecting(t *testing.T) {
	gm := mustSite(t, "GM", 116.00, -8.40, 116.15, -8.30)
	gn := mustSite(t, "GN", 115.75, -8.95, 116.10, -8.60)
	np := mustSite(t, "NP", 115.40, -8.85, 115.70, -8.65)
	ix := NewIndex(np, gm, gn)

	t.Run("all ordered by code", func(t *testing.T) {
		codes := []string{}
		for _, s := range ix.All() {
			codes = append(codes, s.Code)
		}
		assert.Equal(t, []string{"GM", "GN", "NP"}, codes)
	})

	t.Run("window hits subset", func(t *testing.T) {
		hits := ix.Intersecting(&geom.Bounds{
			Min: geom.Point{X: 115.3, Y: -9.0},
			Max: geom.Point{X: 115.9, Y: -8.5},
		})
		codes := []string{}
		for _, s := range hits {
			codes = append(codes, s.Code)
		}
		assert.Equal(t, []string{"GN", "NP"}, codes)
	})

	t.Run("window misses everything", func(t *testing.T) {
		hits := ix.Intersecting(&geom.Bounds{
			Min: geom.Point{X: 120, Y: 0},
			Max: geom.Point{X: 121, Y: 1},
		})
		assert.Empty(t, hits)
	})
}
