package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/tablerizer/internal/version"
)

func TestNewChecker_UsesRunningVersion(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	c, err := NewChecker()
	require.NoError(t, err)
	assert.Equal(t, version.Short(), c.Current)
	assert.Equal(t, releasesURL, c.URL)
	assert.Equal(t, cache, filepath.Dir(c.CacheDir))
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "1.0.0 < 1.0.1", a: "1.0.0", b: "1.0.1", want: -1},
		{name: "1.0.1 > 1.0.0", a: "1.0.1", b: "1.0.0", want: 1},
		{name: "1.0.0 == 1.0.0", a: "1.0.0", b: "1.0.0", want: 0},

		{name: "v1.0.0 < 1.0.1", a: "v1.0.0", b: "1.0.1", want: -1},
		{name: "v1.0.0 == v1.0.0", a: "v1.0.0", b: "v1.0.0", want: 0},

		{name: "1.0.0 < 2.0.0", a: "1.0.0", b: "2.0.0", want: -1},
		{name: "2.0.0 > 1.9.9", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "1.2 == 1.2.0", a: "1.2", b: "1.2.0", want: 0},

		{name: "dev > 1.0.0", a: "dev", b: "1.0.0", want: 1},
		{name: "1.0.0 < dev", a: "1.0.0", b: "dev", want: -1},
		{name: "dev == dev", a: "dev", b: "dev", want: 0},

		{name: "1.0.0-beta == 1.0.0", a: "1.0.0-beta", b: "1.0.0", want: 0},
		{name: "0.10.0 > 0.9.0", a: "0.10.0", b: "0.9.0", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareVersions(tt.a, tt.b))
		})
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := cacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "tablerizer"), dir)
}

func newTestChecker(t *testing.T, current string) (*Checker, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "tablerizer/"+current, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","html_url":"https://github.com/pthm/tablerizer/releases/tag/v1.4.0"}`))
	}))
	t.Cleanup(srv.Close)

	return &Checker{
		URL:      srv.URL,
		CacheDir: t.TempDir(),
		Current:  current,
		Client:   srv.Client(),
	}, &hits
}

func TestCheck_FetchesAndCaches(t *testing.T) {
	c, hits := newTestChecker(t, "1.3.2")

	info, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", info.LatestVersion)
	assert.True(t, info.UpdateAvailable)
	assert.Equal(t, "https://github.com/pthm/tablerizer/releases/tag/v1.4.0", info.ReleaseURL)

	// A second check within the TTL is answered from the cache.
	c.Current = "1.4.0"
	info, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, info.UpdateAvailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCheck_ExpiredCacheRefetches(t *testing.T) {
	c, hits := newTestChecker(t, "1.4.0")
	_, err := c.Check(context.Background())
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(cacheTTL + time.Minute) }
	_, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCheck_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &Checker{URL: srv.URL, CacheDir: t.TempDir(), Current: "1.0.0", Client: srv.Client()}
	_, err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
