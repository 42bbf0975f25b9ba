// internal/stages/merge-candidates/models.go
package mergecandidates

import "pokemon-research/internal/models"

type Input struct {
	Intent models.Intent         `json:"intent"`
	Sets   []models.CandidateSet `json:"sets"`
	// ForceUnion overrides the intent's combine rule. Set during fallback
	// relaxation when an intersection produced nothing.
	ForceUnion bool `json:"force_union,omitempty"`
}

type Output struct {
	// IDs is the merged candidate list, deduplicated and sorted.
	IDs []string `json:"ids"`
	// ZeroCandidates reports an empty merge result. It is a signal for the
	// fallback stage, not a failure.
	ZeroCandidates bool `json:"zero_candidates"`
}
