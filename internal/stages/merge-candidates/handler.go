// internal/stages/merge-candidates/handler.go
package mergecandidates

import (
	"context"
	"sort"

	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/models"
)

const (
	StageName = "merge-candidates"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute combines per-facet candidate sets into one list. Include sets are
// combined under the intent's rule (intersection or union), then the union
// of all exclude sets is subtracted. An intent with no include sets produces
// an empty result rather than the universe of candidates.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	includes, excludes := partition(input.Sets)

	rule := input.Intent.Rule()
	if input.ForceUnion {
		rule = models.CombineUnion
	}

	var merged map[string]struct{}
	switch rule {
	case models.CombineIntersection:
		merged = intersect(includes)
	default:
		merged = union(includes)
	}

	for id := range union(excludes) {
		delete(merged, id)
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fields := map[string]interface{}{
		"intent":       string(input.Intent),
		"combine_rule": rule.String(),
		"include_sets": len(includes),
		"exclude_sets": len(excludes),
		"candidates":   len(ids),
	}
	if len(ids) == 0 {
		h.logger.WithError(cerrors.NewZeroCandidatesError(string(input.Intent))).Warn("merge produced zero candidates", fields)
	} else {
		h.logger.Info("candidates merged", fields)
	}
	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return &Output{
		IDs:            ids,
		ZeroCandidates: len(ids) == 0,
	}, nil
}

func partition(sets []models.CandidateSet) (includes, excludes []models.CandidateSet) {
	for _, s := range sets {
		if s.Facet.Exclude {
			excludes = append(excludes, s)
		} else {
			includes = append(includes, s)
		}
	}
	return includes, excludes
}

func union(sets []models.CandidateSet) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range sets {
		for _, id := range s.IDs {
			out[id] = struct{}{}
		}
	}
	return out
}

func intersect(sets []models.CandidateSet) map[string]struct{} {
	out := make(map[string]struct{})
	if len(sets) == 0 {
		return out
	}

	for _, id := range sets[0].IDs {
		out[id] = struct{}{}
	}

	for _, s := range sets[1:] {
		member := make(map[string]struct{}, len(s.IDs))
		for _, id := range s.IDs {
			member[id] = struct{}{}
		}
		for id := range out {
			if _, ok := member[id]; !ok {
				delete(out, id)
			}
		}
	}
	return out
}
