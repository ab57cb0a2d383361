package summarize

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
)

// FrequencySummarizer ranks sentences by the normalized frequency of their
// content words and keeps the best ones, in original order, within the
// word budget.
type FrequencySummarizer struct {
	stopwords map[string]struct{}

	// MinLengthRatio is the fraction of maxLength the summary should reach
	// when the input allows it.
	MinLengthRatio float64
}

// NewFrequencySummarizer creates a frequency-based extractive summarizer.
func NewFrequencySummarizer(minLengthRatio float64) *FrequencySummarizer {
	return &FrequencySummarizer{
		stopwords:      defaultStopwords(),
		MinLengthRatio: minLengthRatio,
	}
}

type rankedSentence struct {
	idx   int
	text  string
	words int
	score float64
}

// Summarize returns at most maxLength words drawn from the highest scoring
// sentences.
func (s *FrequencySummarizer) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if maxLength <= 0 {
		maxLength = 150
	}

	sentences := s.rank(text)
	if len(sentences) == 0 {
		return "", nil
	}

	minWords := int(math.Ceil(float64(maxLength) * s.MinLengthRatio))

	var (
		selected []rankedSentence
		total    int
		skipped  []rankedSentence
	)
	for _, sent := range sentences {
		if total+sent.words <= maxLength {
			selected = append(selected, sent)
			total += sent.words
		} else {
			skipped = append(skipped, sent)
		}
		if total >= maxLength {
			break
		}
	}

	// Nothing fit, or too little did: take the best skipped sentence and
	// truncate the result to the budget below.
	if (len(selected) == 0 || total < minWords) && len(skipped) > 0 {
		selected = append(selected, skipped[0])
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].idx < selected[j].idx })

	parts := make([]string, len(selected))
	for i, sent := range selected {
		parts[i] = sent.text
	}
	words := strings.Fields(strings.Join(parts, " "))
	if len(words) > maxLength {
		words = words[:maxLength]
	}
	return strings.Join(words, " "), nil
}

// rank splits text into sentences and orders them by score, best first.
func (s *FrequencySummarizer) rank(text string) []rankedSentence {
	raw := sentencePattern.FindAllString(text, -1)

	sentences := make([]rankedSentence, 0, len(raw))
	tokens := make([][]string, 0, len(raw))
	freq := map[string]float64{}

	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		toks := s.tokens(r)
		sentences = append(sentences, rankedSentence{
			idx:   len(sentences),
			text:  r,
			words: len(strings.Fields(r)),
		})
		tokens = append(tokens, toks)
		for _, tok := range toks {
			if _, stop := s.stopwords[tok]; !stop {
				freq[tok]++
			}
		}
	}

	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid bias.
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		sentences[i].score = score
	}

	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].score > sentences[j].score
	})
	return sentences
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "has", "have", "had", "not", "no", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
