package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/khanglvm/kimo/internal/errs"
)

const duckDuckGoBase = "https://api.duckduckgo.com"

// DuckDuckGo queries the Instant Answer API.
type DuckDuckGo struct {
	httpBackend
}

// NewDuckDuckGo creates the provider. client may be nil.
func NewDuckDuckGo(cfg ProviderConfig, client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{httpBackend: newHTTPBackend("duckduckgo", duckDuckGoBase, cfg, client)}
}

func (d *DuckDuckGo) Name() string { return d.name }

type ddgResponse struct {
	Heading        string     `json:"Heading"`
	AbstractText   string     `json:"AbstractText"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
	Results        []ddgTopic `json:"Results"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Invalid("empty query")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := d.getJSON(ctx, d.baseURL+"/?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, d.maxResults)
	if resp.AbstractURL != "" {
		results = append(results, Result{
			Title:       resp.Heading,
			Link:        resp.AbstractURL,
			Description: resp.AbstractText,
			Source:      d.name,
		})
	}

	topics := append(append([]ddgTopic{}, resp.Results...), resp.RelatedTopics...)
	for _, t := range flattenTopics(topics) {
		if len(results) >= d.maxResults {
			break
		}
		title, desc := splitTopicText(t.Text)
		results = append(results, Result{
			Title:       title,
			Link:        t.FirstURL,
			Description: desc,
			Source:      d.name,
		})
	}
	return results, nil
}

// flattenTopics expands grouped topics in place, dropping entries without
// a link.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	flat := make([]ddgTopic, 0, len(topics))
	for _, t := range topics {
		if len(t.Topics) > 0 {
			flat = append(flat, flattenTopics(t.Topics)...)
			continue
		}
		if t.FirstURL != "" && t.Text != "" {
			flat = append(flat, t)
		}
	}
	return flat
}

// splitTopicText splits "Title - description" topic text.
func splitTopicText(text string) (string, string) {
	if title, desc, ok := strings.Cut(text, " - "); ok {
		return strings.TrimSpace(title), strings.TrimSpace(desc)
	}
	return text, text
}
