package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/storage"
)

func TestNewer(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"patch", "1.0.1", "1.0.0", true},
		{"minor", "v1.1.0", "1.0.9", true},
		{"major beats minor", "2.0.0", "1.10.0", true},
		{"numeric not lexical", "1.10.0", "1.9.0", true},
		{"same", "v1.0.0", "1.0.0", false},
		{"older", "1.0.0", "1.0.1", false},
		{"prerelease suffix ignored", "1.2.0-rc1", "1.1.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Newer(tt.a, tt.b))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev (development build)", FormatVersion("dev", "x", "y"))
	assert.Equal(t, "v1.0.0 (commit: abc, built: 2026-01-01)", FormatVersion("v1.0.0", "abc", "2026-01-01"))
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	store := storage.NewStorage(t.TempDir()+"/kimo.db", nil)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	return cache.New(store, logger.NewNop(), nil)
}

func TestCheckUpdateIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"tag_name":"v1.2.0","html_url":"https://example.com/r"}`))
	}))
	defer srv.Close()

	ch := NewChecker(newTestCache(t))
	ch.URL = srv.URL

	latest, err := ch.CheckUpdate(context.Background(), "v1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", latest)

	latest, err = ch.CheckUpdate(context.Background(), "v1.2.0")
	require.NoError(t, err)
	assert.Empty(t, latest)

	assert.Equal(t, int32(1), hits.Load())
}

func TestCheckUpdateDevBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v9.9.9"}`))
	}))
	defer srv.Close()

	ch := NewChecker(nil)
	ch.URL = srv.URL

	latest, err := ch.CheckUpdate(context.Background(), "dev")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestCheckUpdateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewChecker(nil)
	ch.URL = srv.URL

	_, err := ch.CheckUpdate(context.Background(), "v1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
