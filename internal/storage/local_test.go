package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefwatch/coral-etl/internal/domain"
)

func TestLocalSink(t *testing.T) {
	ctx := context.Background()
	sink, err := NewLocal(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer sink.Close()

	t.Run("store creates nested directories", func(t *testing.T) {
		err := sink.Store(ctx, "daily/2026/GM_NOAA_SST_20260120.xyz", []byte("115.0 -8.7 29.1\n"))
		require.NoError(t, err)

		exists, err := sink.Exists(ctx, "daily/2026/GM_NOAA_SST_20260120.xyz")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("read returns stored bytes", func(t *testing.T) {
		want := []byte("115.0 -8.7 29.1\n")
		require.NoError(t, sink.Store(ctx, "a.xyz", want))

		got, err := sink.Read(ctx, "a.xyz")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("store overwrites", func(t *testing.T) {
		require.NoError(t, sink.Store(ctx, "b.xyz", []byte("old\n")))
		require.NoError(t, sink.Store(ctx, "b.xyz", []byte("new\n")))

		got, err := sink.Read(ctx, "b.xyz")
		require.NoError(t, err)
		assert.Equal(t, []byte("new\n"), got)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, sink.Store(ctx, "alert/GM_hs_20260121.xyz", []byte("1\n")))
		require.NoError(t, sink.Store(ctx, "alert/GM_hs_20260120.xyz", []byte("1\n")))
		require.NoError(t, sink.Store(ctx, "alert/NP_hs_20260120.xyz", []byte("1\n")))

		paths, err := sink.List(ctx, "alert/GM_")
		require.NoError(t, err)
		assert.Equal(t, []string{"alert/GM_hs_20260120.xyz", "alert/GM_hs_20260121.xyz"}, paths)
	})

	t.Run("missing file", func(t *testing.T) {
		exists, err := sink.Exists(ctx, "nope.xyz")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = sink.Read(ctx, "nope.xyz")
		var ioErr *domain.IOFailure
		assert.ErrorAs(t, err, &ioErr)
	})
}
