package problems

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// MatchTopic resolves query to one of topics. A case-insensitive exact
// match wins; otherwise the best fuzzy match is used. It returns false when
// nothing matches.
func MatchTopic(query string, topics []string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || len(topics) == 0 {
		return "", false
	}
	lowered := make([]string, len(topics))
	for i, t := range topics {
		lowered[i] = strings.ToLower(t)
		if lowered[i] == q {
			return t, true
		}
	}
	matches := fuzzy.Find(q, lowered)
	if len(matches) == 0 {
		return "", false
	}
	return topics[matches[0].Index], true
}
