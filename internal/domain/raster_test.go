package domain

import (
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid4x4 builds a 4x4 raster with cell centers at lon 115.0..115.3 and
// lat -9.0..-8.7 (0.1° cells) holding values row*10+col.
func grid4x4(t *testing.T) *Raster {
	t.Helper()
	data := sparse.ZerosDense(4, 4)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			data.Set(float64(row*10+col), row, col)
		}
	}
	r, err := NewRaster("sst", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), GridSpec{
		OriginLon: 115.0,
		OriginLat: -9.0,
		CellLon:   0.1,
		CellLat:   0.1,
		NLon:      4,
		NLat:      4,
	}, data)
	require.NoError(t, err)
	return r
}

func TestClip(t *testing.T) {
	t.Run("inner 2x2", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 115.05, MaxLon: 115.25, MinLat: -8.95, MaxLat: -8.75})
		require.NoError(t, err)

		assert.Equal(t, 2, clipped.Grid.NLon)
		assert.Equal(t, 2, clipped.Grid.NLat)
		assert.InDelta(t, 115.1, clipped.Grid.OriginLon, 1e-9)
		assert.InDelta(t, -8.9, clipped.Grid.OriginLat, 1e-9)
		assert.Equal(t, 11.0, clipped.Value(0, 0))
		assert.Equal(t, 12.0, clipped.Value(0, 1))
		assert.Equal(t, 21.0, clipped.Value(1, 0))
		assert.Equal(t, 22.0, clipped.Value(1, 1))
	})

	t.Run("window edge on cell center is inclusive", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 115.1, MaxLon: 115.2, MinLat: -8.9, MaxLat: -8.8})
		require.NoError(t, err)

		// Centers exactly on the window boundary stay in.
		assert.Equal(t, 2, clipped.Grid.NLon)
		assert.Equal(t, 2, clipped.Grid.NLat)
		assert.Equal(t, 11.0, clipped.Value(0, 0))
	})

	t.Run("window fully outside yields empty raster", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 130, MaxLon: 131, MinLat: 5, MaxLat: 6})
		require.NoError(t, err)

		assert.True(t, clipped.Empty())
		assert.Equal(t, 0, clipped.Grid.NLon)
		assert.Equal(t, 0, clipped.Grid.NLat)
		// Cell size survives even when no cells do.
		assert.Equal(t, 0.1, clipped.Grid.CellLon)
	})

	t.Run("window between cell centers yields empty raster", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 115.11, MaxLon: 115.19, MinLat: -8.89, MaxLat: -8.81})
		require.NoError(t, err)
		assert.True(t, clipped.Empty())
	})

	t.Run("partial overlap clamps to raster extent", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 114.0, MaxLon: 115.05, MinLat: -10, MaxLat: -8.0})
		require.NoError(t, err)

		assert.Equal(t, 1, clipped.Grid.NLon)
		assert.Equal(t, 4, clipped.Grid.NLat)
		assert.Equal(t, 0.0, clipped.Value(0, 0))
		assert.Equal(t, 30.0, clipped.Value(3, 0))
	})

	t.Run("whole raster", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 100, MaxLon: 120, MinLat: -20, MaxLat: 0})
		require.NoError(t, err)

		assert.Equal(t, r.Grid, clipped.Grid)
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				assert.Equal(t, r.Value(row, col), clipped.Value(row, col))
			}
		}
	})

	t.Run("clip does not mutate input", func(t *testing.T) {
		r := grid4x4(t)
		clipped, err := Clip(r, RegionWindow{MinLon: 115.05, MaxLon: 115.25, MinLat: -8.95, MaxLat: -8.75})
		require.NoError(t, err)

		clipped.Data.Set(999, 0, 0)
		assert.Equal(t, 11.0, r.Value(1, 1))
	})

	t.Run("inverted window is a grid error", func(t *testing.T) {
		r := grid4x4(t)
		_, err := Clip(r, RegionWindow{MinLon: 116, MaxLon: 115, MinLat: -9, MaxLat: -8})
		require.Error(t, err)

		var gridErr *GridError
		require.ErrorAs(t, err, &gridErr)
		assert.Equal(t, "sst", gridErr.Unit)
	})

	t.Run("no-data cells survive clipping as NaN", func(t *testing.T) {
		r := grid4x4(t)
		r.Data.Set(math.NaN(), 1, 1)
		clipped, err := Clip(r, RegionWindow{MinLon: 115.05, MaxLon: 115.25, MinLat: -8.95, MaxLat: -8.75})
		require.NoError(t, err)
		assert.True(t, math.IsNaN(clipped.Value(0, 0)))
	})
}

func TestNewRaster_ShapeMismatch(t *testing.T) {
	_, err := NewRaster("dhw", time.Time{}, GridSpec{NLon: 3, NLat: 3, CellLon: 0.05, CellLat: 0.05},
		sparse.ZerosDense(2, 3))
	require.Error(t, err)

	var gridErr *GridError
	assert.ErrorAs(t, err, &gridErr)
}

func TestRegionWindowValidate(t *testing.T) {
	tests := []struct {
		name    string
		window  RegionWindow
		wantErr bool
	}{
		{"valid", RegionWindow{MinLon: 115.3, MaxLon: 116.3, MinLat: -9.2, MaxLat: -8.2}, false},
		{"inverted lon", RegionWindow{MinLon: 116.3, MaxLon: 115.3, MinLat: -9.2, MaxLat: -8.2}, true},
		{"inverted lat", RegionWindow{MinLon: 115.3, MaxLon: 116.3, MinLat: -8.2, MaxLat: -9.2}, true},
		{"degenerate", RegionWindow{MinLon: 115.3, MaxLon: 115.3, MinLat: -9.2, MaxLat: -8.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClipIdempotent(t *testing.T) {
	r := grid4x4(t)
	w := RegionWindow{MinLon: 115.05, MaxLon: 115.25, MinLat: -8.95, MaxLat: -8.75}

	once, err := Clip(r, w)
	require.NoError(t, err)
	twice, err := Clip(once, w)
	require.NoError(t, err)

	assert.Equal(t, once.Grid, twice.Grid)
	assert.Equal(t, once.Data.Elements, twice.Data.Elements)
}
