package version

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/khanglvm/kimo/internal/cache"
)

const (
	RepoOwner = "khanglvm"
	RepoName  = "kimo"
	UpdateURL = "https://api.github.com/repos/" + RepoOwner + "/" + RepoName + "/releases/latest"

	updateCacheKey = "version:latest"
	updateCacheTTL = 24 * time.Hour
)

// GitHubRelease represents a GitHub release API response.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker looks up the latest release, remembering the answer for a day.
type Checker struct {
	URL    string
	Client *http.Client
	Cache  *cache.Cache
}

// NewChecker returns a Checker for the public releases endpoint. c may be
// nil, which disables caching.
func NewChecker(c *cache.Cache) *Checker {
	return &Checker{
		URL:    UpdateURL,
		Client: &http.Client{Timeout: 10 * time.Second},
		Cache:  c,
	}
}

// Latest returns the newest release, served from cache when checked in the
// last 24h.
func (ch *Checker) Latest(ctx context.Context) (GitHubRelease, error) {
	if ch.Cache != nil {
		if rel, ok, err := cache.GetJSON[GitHubRelease](ctx, ch.Cache, updateCacheKey); err == nil && ok {
			return rel, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ch.URL, nil)
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := ch.Client.Do(req)
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to check for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GitHubRelease{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to read response: %w", err)
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if ch.Cache != nil {
		// best effort; a failed write only costs another request tomorrow
		_ = cache.PutJSON(ctx, ch.Cache, updateCacheKey, release, updateCacheTTL)
	}
	return release, nil
}

// CheckUpdate returns the latest version if it is newer than current, or
// "" when current is up to date. Dev builds never report an update.
func (ch *Checker) CheckUpdate(ctx context.Context, current string) (string, error) {
	release, err := ch.Latest(ctx)
	if err != nil {
		return "", err
	}
	if current == "dev" || !Newer(release.TagName, current) {
		return "", nil
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// Newer reports whether version a is strictly newer than b. Both may carry
// a "v" prefix; pre-release suffixes are ignored.
func Newer(a, b string) bool {
	pa, pb := parts(a), parts(b)
	for i := range 3 {
		if pa[i] != pb[i] {
			return pa[i] > pb[i]
		}
	}
	return false
}

func parts(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]int
	for i, p := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}
