// Package update looks up the latest tablerizer release on GitHub.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pthm/tablerizer/internal/version"
)

const (
	releasesURL = "https://api.github.com/repos/pthm/tablerizer/releases/latest"
	cacheTTL    = 24 * time.Hour
	cacheFile   = "update-check.json"
)

// Info contains update check results.
type Info struct {
	LatestVersion   string    `json:"latest_version"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	CurrentVersion  string    `json:"current_version"`
	CheckedAt       time.Time `json:"checked_at"`
	UpdateAvailable bool      `json:"update_available"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker fetches release information, caching the answer on disk for a day.
type Checker struct {
	URL      string
	CacheDir string
	Current  string
	Client   *http.Client
	now      func() time.Time
}

// NewChecker returns a Checker for the running binary using the user cache
// directory.
func NewChecker() (*Checker, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return &Checker{
		URL:      releasesURL,
		CacheDir: dir,
		Current:  version.Short(),
		Client:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// CheckWithCache checks for updates using the default Checker.
func CheckWithCache(ctx context.Context) (*Info, error) {
	c, err := NewChecker()
	if err != nil {
		return nil, err
	}
	return c.Check(ctx)
}

// Check returns the cached answer when it is fresh, otherwise asks GitHub and
// refreshes the cache.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}

	if info, err := c.loadCache(); err == nil && now().Sub(info.CheckedAt) < cacheTTL {
		info.CurrentVersion = c.Current
		info.UpdateAvailable = compareVersions(c.Current, info.LatestVersion) < 0
		return info, nil
	}

	release, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	latest := strings.TrimPrefix(release.TagName, "v")
	info := &Info{
		LatestVersion:   latest,
		ReleaseURL:      release.HTMLURL,
		CurrentVersion:  c.Current,
		CheckedAt:       now(),
		UpdateAvailable: compareVersions(c.Current, latest) < 0,
	}

	if err := c.saveCache(info); err != nil {
		log.WithError(err).Debug("could not write update cache")
	}
	return info, nil
}

func (c *Checker) fetch(ctx context.Context) (*githubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "tablerizer/"+c.Current)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("release has no tag")
	}
	return &release, nil
}

// cacheDir honours XDG_CACHE_HOME and falls back to ~/.cache.
func cacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "tablerizer"), nil
}

func (c *Checker) loadCache() (*Info, error) {
	data, err := os.ReadFile(filepath.Join(c.CacheDir, cacheFile))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Checker) saveCache(info *Info) error {
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.CacheDir, cacheFile), data, 0o644)
}

// compareVersions compares two dotted versions numerically and returns -1,
// 0 or 1. Pre-release suffixes are ignored and "dev" sorts above everything.
func compareVersions(a, b string) int {
	a, b = strings.TrimPrefix(a, "v"), strings.TrimPrefix(b, "v")
	switch {
	case a == b:
		return 0
	case a == "dev":
		return 1
	case b == "dev":
		return -1
	}

	pa, pb := versionParts(a), versionParts(b)
	for i := 0; i < max(len(pa), len(pb)); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionParts(v string) []int {
	v, _, _ = strings.Cut(v, "-")
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		parts[i], _ = strconv.Atoi(f)
	}
	return parts
}
