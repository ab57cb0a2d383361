package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khanglvm/kimo/internal/errs"
)

const wikipediaBase = "https://en.wikipedia.org"

// Wikipedia queries the MediaWiki full-text search API.
type Wikipedia struct {
	httpBackend
}

// NewWikipedia creates the provider. client may be nil.
func NewWikipedia(cfg ProviderConfig, client *http.Client) *Wikipedia {
	return &Wikipedia{httpBackend: newHTTPBackend("wikipedia", wikipediaBase, cfg, client)}
}

func (w *Wikipedia) Name() string { return w.name }

type wikiResponse struct {
	Query struct {
		Search []struct {
			Title     string `json:"title"`
			Snippet   string `json:"snippet"`
			Timestamp string `json:"timestamp"`
		} `json:"search"`
	} `json:"query"`
}

func (w *Wikipedia) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Invalid("empty query")
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(w.maxResults))
	params.Set("format", "json")
	params.Set("utf8", "1")

	var resp wikiResponse
	if err := w.getJSON(ctx, w.baseURL+"/w/api.php?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		r := Result{
			Title:       hit.Title,
			Link:        w.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_")),
			Description: StripHTML(hit.Snippet),
			Source:      w.name,
		}
		if ts, err := time.Parse(time.RFC3339, hit.Timestamp); err == nil {
			r.Date = ts
		}
		results = append(results, r)
	}
	return results, nil
}
