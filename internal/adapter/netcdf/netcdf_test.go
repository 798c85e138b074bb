package netcdf

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefwatch/coral-etl/internal/domain"
)

func testRaster(t *testing.T, product string) *domain.Raster {
	t.Helper()
	data := sparse.ZerosDense(3, 4)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			data.Set(25.0+float64(row)+0.25*float64(col), row, col)
		}
	}
	r, err := domain.NewRaster(product, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), domain.GridSpec{
		OriginLon: 115.025,
		OriginLat: -9.175,
		CellLon:   0.05,
		CellLat:   0.05,
		NLon:      4,
		NLat:      3,
	}, data)
	require.NoError(t, err)
	return r
}

func TestRoundTrip_Packed(t *testing.T) {
	src := testRaster(t, "analysed_sst")
	src.Data.Set(math.NaN(), 1, 2)
	path := filepath.Join(t.TempDir(), "coraltemp_v3.1_20260120.nc")
	require.NoError(t, WriteFile(path, true, src))

	got, err := LoadVariable(path, "analysed_sst", src.Date)
	require.NoError(t, err)

	assert.Equal(t, src.Grid.NLon, got.Grid.NLon)
	assert.Equal(t, src.Grid.NLat, got.Grid.NLat)
	assert.InDelta(t, src.Grid.OriginLon, got.Grid.OriginLon, 1e-6)
	assert.InDelta(t, src.Grid.OriginLat, got.Grid.OriginLat, 1e-6)
	assert.InDelta(t, 0.05, got.Grid.CellLon, 1e-6)

	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			want := src.Value(row, col)
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(got.Value(row, col)), "cell (%d,%d)", row, col)
				continue
			}
			// int16 packing at 0.01 resolution.
			assert.InDelta(t, want, got.Value(row, col), 0.005, "cell (%d,%d)", row, col)
		}
	}
	assert.Equal(t, float64(packedFill), got.FillValue)
}

func TestRoundTrip_Float(t *testing.T) {
	src := testRaster(t, "sst_clim_january")
	path := filepath.Join(t.TempDir(), "clim.nc")
	require.NoError(t, WriteFile(path, false, src))

	got, err := LoadVariable(path, "sst_clim_january", time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, src.Value(2, 3), got.Value(2, 3), 1e-5)
	assert.True(t, got.Date.IsZero())
}

func TestLoad_AutoSelectsSingleVariable(t *testing.T) {
	src := testRaster(t, "degree_heating_week")
	path := filepath.Join(t.TempDir(), "ct5km_dhw_v3.1_20260120.nc")
	require.NoError(t, WriteFile(path, true, src))

	got, err := LoadVariable(path, "", src.Date)
	require.NoError(t, err)
	assert.Equal(t, "degree_heating_week", got.Product)
}

func TestLoad_AmbiguousVariableFails(t *testing.T) {
	a := testRaster(t, "sst_clim_january")
	b := testRaster(t, "sst_clim_february")
	path := filepath.Join(t.TempDir(), "clim.nc")
	require.NoError(t, WriteFile(path, false, a, b))

	_, err := LoadVariable(path, "", time.Time{})
	require.Error(t, err)

	var gridErr *domain.GridError
	assert.ErrorAs(t, err, &gridErr)

	// Explicit selection still works.
	got, err := LoadVariable(path, "sst_clim_february", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "sst_clim_february", got.Product)
}

func TestLoad_NormalizesDescendingLatitude(t *testing.T) {
	// Build a file whose latitude axis runs north to south, the way some
	// archive files are stored.
	data := sparse.ZerosDense(3, 2)
	for row := 0; row < 3; row++ {
		for col := 0; col < 2; col++ {
			data.Set(float64(10*row+col), row, col)
		}
	}
	down := &domain.Raster{
		Product: "analysed_sst",
		Grid: domain.GridSpec{
			OriginLon: 115.0,
			OriginLat: -8.0, // row 0 is the NORTH edge here
			CellLon:   0.05,
			CellLat:   -0.05,
			NLon:      2,
			NLat:      3,
		},
		Data: data,
	}
	path := filepath.Join(t.TempDir(), "descending.nc")
	require.NoError(t, WriteFile(path, false, down))

	got, err := LoadVariable(path, "analysed_sst", time.Time{})
	require.NoError(t, err)

	// After normalization row 0 is the southernmost latitude.
	assert.InDelta(t, -8.1, got.Grid.OriginLat, 1e-6)
	assert.InDelta(t, 0.05, got.Grid.CellLat, 1e-6)
	assert.InDelta(t, 20.0, got.Value(0, 0), 1e-6)
	assert.InDelta(t, 0.0, got.Value(2, 0), 1e-6)
	assert.InDelta(t, 1.0, got.Value(2, 1), 1e-6)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadVariable(filepath.Join(t.TempDir(), "nope.nc"), "", time.Time{})
	var gridErr *domain.GridError
	require.ErrorAs(t, err, &gridErr)
}

func TestVariables(t *testing.T) {
	a := testRaster(t, "sst_clim_january")
	b := testRaster(t, "sst_clim_february")
	path := filepath.Join(t.TempDir(), "clim.nc")
	require.NoError(t, WriteFile(path, false, a, b))

	vars, err := Variables(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sst_clim_january", "sst_clim_february"}, vars)
}

func TestParseDailyFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    time.Time
		wantErr bool
	}{
		{"coraltemp", "coraltemp_v3.1_20260120.nc", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), false},
		{"dhw", "ct5km_dhw_v3.1_20251231.nc", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"with path", "/data/in/ct5km_ssta_v3.1_20260101.nc", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"no date", "climatology.nc", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDailyFilename(tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
