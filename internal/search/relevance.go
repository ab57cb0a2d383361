package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/khanglvm/kimo/internal/logger"
)

// Relevance scores result text against the query with BM25.
type Relevance struct {
	mapping mapping.IndexMapping
	log     logger.Logger
}

// NewRelevance creates a Relevance scorer.
func NewRelevance(log logger.Logger) *Relevance {
	if log == nil {
		log = logger.NewNop()
	}
	return &Relevance{mapping: buildIndexMapping(), log: log}
}

// buildIndexMapping indexes title and description as text; link is kept
// out of the score.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("description", bleve.NewTextFieldMapping())

	linkMapping := bleve.NewTextFieldMapping()
	linkMapping.Index = false
	linkMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("link", linkMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Apply returns a copy of results where every unscored result carries a
// BM25 score normalized to [0,1]. Results that already have a score are
// left alone. On any index error the input is returned unchanged.
func (r *Relevance) Apply(query string, results []Result) []Result {
	if len(results) == 0 || strings.TrimSpace(query) == "" {
		return results
	}

	scores, err := r.score(query, results)
	if err != nil {
		r.log.Warn("relevance scoring failed", logger.Error(err))
		return results
	}

	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Score == 0 {
			out[i].Score = scores[i]
		}
	}
	return out
}

func (r *Relevance) score(query string, results []Result) ([]float64, error) {
	index, err := bleve.NewMemOnly(r.mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, res := range results {
		doc := map[string]interface{}{
			"title":       res.Title,
			"description": res.Description,
			"link":        res.Link,
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			return nil, fmt.Errorf("failed to index result %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to batch index results: %w", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), len(results), 0, false)
	hits, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	scores := make([]float64, len(results))
	for _, hit := range hits.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(results) {
			continue
		}
		scores[i] = hit.Score
	}
	return normalizeScores(scores), nil
}

// normalizeScores scales scores into [0,1] by the maximum, so non-matches
// stay at 0 and the best match is 1.
func normalizeScores(scores []float64) []float64 {
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return scores
	}

	normalized := make([]float64, len(scores))
	for i, s := range scores {
		normalized[i] = s / maxScore
	}
	return normalized
}
