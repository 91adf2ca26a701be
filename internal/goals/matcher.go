package goals

import (
	"strings"

	"github.com/verso-app/verso/internal/types"
)

// Matcher decides whether an incoming goal description refers to one of
// the user's existing non-terminal goals. The tracker filters terminal
// goals out before calling Match, so implementations only see candidates
// that are still open.
//
// The default heuristic is intentionally simple and has known edge
// cases: truncated prefixes can falsely merge unrelated goals, and a
// paraphrased restatement with a different opening creates a duplicate
// row. An embedding-similarity matcher can replace it without touching
// callers.
type Matcher interface {
	Match(candidates []*types.Goal, description string) *types.Goal
}

// PrefixMatcher matches when an existing description contains the first
// PrefixLen characters of the incoming one as a substring.
type PrefixMatcher struct {
	PrefixLen int
}

// DefaultMatcher returns the stock 30-character prefix matcher.
func DefaultMatcher() Matcher {
	return PrefixMatcher{PrefixLen: 30}
}

// Match implements Matcher.
func (m PrefixMatcher) Match(candidates []*types.Goal, description string) *types.Goal {
	prefix := description
	if len(prefix) > m.PrefixLen {
		prefix = prefix[:m.PrefixLen]
	}
	if prefix == "" {
		return nil
	}
	for _, g := range candidates {
		if strings.Contains(g.Description, prefix) {
			return g
		}
	}
	return nil
}
