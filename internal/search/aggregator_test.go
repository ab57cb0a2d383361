package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/logger"
)

type staticProvider struct {
	name    string
	results []Result
	err     error
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) Search(context.Context, string) ([]Result, error) {
	return p.results, p.err
}

func TestAggregatorMergesInProviderOrder(t *testing.T) {
	a := NewAggregator([]Provider{
		staticProvider{name: "first", results: []Result{
			{Title: "A", Link: "https://a.com/"},
			{Title: "B", Link: "https://b.com"},
		}},
		staticProvider{name: "second", results: []Result{
			{Title: "A again", Link: "https://A.com#top"},
			{Title: "C", Link: "https://c.com", Source: "custom"},
			{Title: "no link"},
		}},
	}, logger.NewNop(), nil)

	results, err := a.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "A", results[0].Title)
	assert.Equal(t, "first", results[0].Source)
	assert.Equal(t, "B", results[1].Title)
	assert.Equal(t, "C", results[2].Title)
	assert.Equal(t, "custom", results[2].Source)
}

func TestAggregatorToleratesProviderFailure(t *testing.T) {
	a := NewAggregator([]Provider{
		staticProvider{name: "broken", err: errors.New("timeout")},
		staticProvider{name: "ok", results: []Result{{Title: "X", Link: "https://x.com"}}},
	}, nil, nil)

	results, err := a.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestAggregatorAllFailed(t *testing.T) {
	a := NewAggregator([]Provider{
		staticProvider{name: "one", err: errors.New("down")},
		staticProvider{name: "two", err: errors.New("down")},
	}, nil, nil)

	_, err := a.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one")
	assert.Contains(t, err.Error(), "two")
}

func TestAggregatorNoProviders(t *testing.T) {
	results, err := NewAggregator(nil, nil, nil).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, NewAggregator(nil, nil, nil).Providers())
}
