package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/errs"
)

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Heading": "Go (programming language)",
			"AbstractText": "Go is a statically typed language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
			"RelatedTopics": [
				{"Text": "Gopher - The Go mascot", "FirstURL": "https://duckduckgo.com/Gopher"},
				{"Name": "Tools", "Topics": [
					{"Text": "gofmt - Formatter for Go", "FirstURL": "https://duckduckgo.com/gofmt"}
				]},
				{"Text": "", "FirstURL": ""}
			]
		}`))
	}))
	defer srv.Close()

	p := NewDuckDuckGo(ProviderConfig{BaseURL: srv.URL}, srv.Client())
	results, err := p.Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Go (programming language)", results[0].Title)
	assert.Equal(t, "Gopher", results[1].Title)
	assert.Equal(t, "The Go mascot", results[1].Description)
	assert.Equal(t, "https://duckduckgo.com/gofmt", results[2].Link)
	assert.Equal(t, "duckduckgo", results[2].Source)
}

func TestWikipediaSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "search", r.URL.Query().Get("list"))
		_, _ = w.Write([]byte(`{"query":{"search":[
			{"title":"Go (programming language)","snippet":"<span class=\"searchmatch\">Go</span> is a &amp; language","timestamp":"2026-02-01T10:00:00Z"}
		]}}`))
	}))
	defer srv.Close()

	p := NewWikipedia(ProviderConfig{BaseURL: srv.URL}, srv.Client())
	results, err := p.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, srv.URL+"/wiki/Go_%28programming_language%29", results[0].Link)
	assert.Equal(t, "Go is a & language", results[0].Description)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), results[0].Date)
}

func TestGoogleRequiresCredentials(t *testing.T) {
	p := NewGoogle(ProviderConfig{}, nil)
	_, err := p.Search(context.Background(), "go")
	assert.ErrorIs(t, err, ErrGoogleNotConfigured)
}

func TestGoogleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "cx1", r.URL.Query().Get("cx"))
		_, _ = w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev","snippet":"plain","htmlSnippet":"<b>Go</b> home"}]}`))
	}))
	defer srv.Close()

	p := NewGoogle(ProviderConfig{BaseURL: srv.URL, APIKey: "k", EngineID: "cx1"}, srv.Client())
	results, err := p.Search(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go home", results[0].Description)
}

func TestProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewWikipedia(ProviderConfig{BaseURL: srv.URL}, srv.Client())
	_, err := p.Search(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestProviderRejectsEmptyQuery(t *testing.T) {
	_, err := NewDuckDuckGo(ProviderConfig{}, nil).Search(context.Background(), " ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b & c", StripHTML("<p>a</p><br/>b &amp; <i>c</i>"))
	assert.Equal(t, "plain text", StripHTML("plain   text"))
}
