package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemoteSource_Scheme(t *testing.T) {
	_, err := NewRemoteSource(RemoteSourceOptions{BaseURL: "ftp://archive.example.org/daily"})
	require.NoError(t, err)

	_, err = NewRemoteSource(RemoteSourceOptions{BaseURL: "https://archive.example.org/daily"})
	require.NoError(t, err)

	_, err = NewRemoteSource(RemoteSourceOptions{BaseURL: "gopher://archive.example.org"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive scheme")
}

func TestRemoteSource_QueryHTTP(t *testing.T) {
	grid := "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n5\n"

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/daily/rainfall_20240805.asc", "/daily/rainfall_20240807.asc":
			w.Write([]byte(grid))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src, err := NewRemoteSource(RemoteSourceOptions{
		BaseURL:           srv.URL + "/daily",
		CacheDir:          t.TempDir(),
		CadenceDays:       1,
		EPSG:              4326,
		RequestsPerSecond: 100,
	})
	require.NoError(t, err)

	start := time.Date(2024, time.August, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.August, 7, 0, 0, 0, 0, time.UTC)

	snaps, err := src.Query(context.Background(), "rainfall", start, end)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, start, snaps[0].Date)
	assert.Equal(t, end, snaps[1].Date)
	assert.Equal(t, 4326, snaps[0].EPSG)
	assert.FileExists(t, snaps[0].Path)

	// Second query serves from cache: only the missing date is re-checked.
	before := hits.Load()
	snaps, err = src.Query(context.Background(), "rainfall", start, end)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, before+1, hits.Load())
}
