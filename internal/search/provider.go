package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxResults = 10
	defaultUserAgent  = "kimo/1.0 (+https://github.com/khanglvm/kimo)"

	// maxResponseBytes caps provider response bodies.
	maxResponseBytes = 4 << 20
)

// ProviderConfig holds the settings shared by HTTP providers.
type ProviderConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gte=0"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int           `koanf:"burst" validate:"gte=0"`
	MaxResults    int           `koanf:"max_results" validate:"gte=0,lte=50"`
	UserAgent     string        `koanf:"user_agent"`

	// APIKey and EngineID are only used by Google Custom Search.
	APIKey   string `koanf:"api_key"`
	EngineID string `koanf:"engine_id"`
}

// httpBackend is the transport half every provider embeds.
type httpBackend struct {
	name       string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxResults int
}

func newHTTPBackend(name, defaultBase string, cfg ProviderConfig, client *http.Client) httpBackend {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return httpBackend{
		name:       name,
		baseURL:    base,
		client:     client,
		limiter:    rate.NewLimiter(limit, burst),
		userAgent:  ua,
		maxResults: maxResults,
	}
}

// getJSON waits for the rate limiter, performs a GET and decodes the body
// into out.
func (b httpBackend) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", b.name, err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		// url.Error carries the full URL, which may include an API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("%s: request failed: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", b.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", b.name, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", b.name, err)
	}
	return nil
}

// StripHTML returns the visible text of an HTML fragment with entities
// decoded and whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" || string(name) == "p" {
				sb.WriteByte(' ')
			}
		}
	}
}
