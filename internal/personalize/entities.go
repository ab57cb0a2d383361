package personalize

import (
	"strings"
	"unicode"
)

// minEntityLength is the shortest token kept as an entity.
const minEntityLength = 4

var stopWords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"also": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "could": {}, "does": {}, "doing": {},
	"down": {}, "during": {}, "each": {}, "from": {}, "further": {},
	"have": {}, "having": {}, "here": {}, "into": {}, "just": {},
	"more": {}, "most": {}, "once": {}, "only": {}, "other": {},
	"over": {}, "same": {}, "should": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"through": {}, "under": {}, "until": {}, "very": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"whom": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"your": {}, "yours": {}, "best": {}, "find": {}, "make": {},
}

// ExtractEntities returns the distinct content terms of query, in order of
// first appearance. Tokens are lower-cased and stripped of anything that is
// not a letter or digit.
func ExtractEntities(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	entities := make([]string, 0, len(fields))

	for _, f := range fields {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)

		if len([]rune(token)) < minEntityLength {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		entities = append(entities, token)
	}
	return entities
}
