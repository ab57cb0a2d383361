/*
Package summarize produces short summaries of text.

Two backends implement Summarizer: an extractive FrequencySummarizer that
runs in-process, and a RemoteSummarizer that calls an HTTP endpoint behind
a circuit breaker. Service picks a backend per request, caches successful
summaries and never fails: when every backend is unavailable it returns a
truncation of the input marked as a fallback.
*/
package summarize

import (
	"context"
	"strings"
)

// Summarizer condenses text to at most maxLength words.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength int) (string, error)
}

// Fallback returns the first maxLength words of text followed by "...".
func Fallback(text string, maxLength int) string {
	words := strings.Fields(text)
	if maxLength > 0 && len(words) > maxLength {
		words = words[:maxLength]
	}
	return strings.Join(words, " ") + "..."
}

// chunkText splits text on word boundaries into chunks of at most
// maxChunk characters. A single word longer than maxChunk gets its own
// chunk.
func chunkText(text string, maxChunk int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxChunk <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	for _, w := range words {
		if current.Len() > 0 && current.Len()+1+len(w) > maxChunk {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
