package search

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khanglvm/kimo/internal/errs"
)

const googleBase = "https://www.googleapis.com"

// ErrGoogleNotConfigured is returned when the API key or engine ID is
// missing.
var ErrGoogleNotConfigured = errors.New("google custom search requires api_key and engine_id")

// Google queries the Custom Search JSON API.
type Google struct {
	httpBackend
	apiKey   string
	engineID string
}

// NewGoogle creates the provider. client may be nil.
func NewGoogle(cfg ProviderConfig, client *http.Client) *Google {
	return &Google{
		httpBackend: newHTTPBackend("google", googleBase, cfg, client),
		apiKey:      cfg.APIKey,
		engineID:    cfg.EngineID,
	}
}

func (g *Google) Name() string { return g.name }

type googleResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		HTMLSnippet string `json:"htmlSnippet"`
	} `json:"items"`
}

func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Invalid("empty query")
	}
	if g.apiKey == "" || g.engineID == "" {
		return nil, ErrGoogleNotConfigured
	}

	// The API caps num at 10.
	num := g.maxResults
	if num > 10 {
		num = 10
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	var resp googleResponse
	if err := g.getJSON(ctx, g.baseURL+"/customsearch/v1?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		desc := item.Snippet
		if item.HTMLSnippet != "" {
			desc = StripHTML(item.HTMLSnippet)
		}
		results = append(results, Result{
			Title:       StripHTML(item.Title),
			Link:        item.Link,
			Description: desc,
			Source:      g.name,
		})
	}
	return results, nil
}
