// internal/stages/rank-results/handler.go
package rankresults

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/common/validation"
	"pokemon-research/internal/models"
)

const (
	StageName = "rank-results"
)

var (
	ErrRankingFailed = errors.New("RANKING_FAILED")
)

// responseSchema is applied to the reasoning service's reply before any
// field is trusted.
var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"ranking"},
	"properties": map[string]interface{}{
		"ranking": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"identifier", "explanation"},
				"properties": map[string]interface{}{
					"identifier":  map[string]interface{}{"type": "string"},
					"explanation": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

type Reasoner interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error)
}

type Handler struct {
	config   *Config
	reasoner Reasoner
	logger   logger.Logger
}

func NewHandler(config *Config, reasoner Reasoner, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reasoner: reasoner,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute asks the reasoning service to order the candidates against the
// original question and explain each pick. The reply is schema-checked and
// filtered to the candidate set; anything unparseable degrades to an
// unranked passthrough of the candidates. Only context cancellation is a
// real error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ids := input.IDs
	if len(ids) > h.config.CandidateCap {
		ids = ids[:h.config.CandidateCap]
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.reasoner.CompleteJSON(ctx, systemPrompt, h.userPrompt(input.Query.Text, ids, input.Attributes))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, err
		}
		return h.degrade(ids, fmt.Errorf("%w: %v", ErrRankingFailed, err)), nil
	}

	entries, err := h.parse(raw, ids)
	if err != nil {
		return h.degrade(ids, err), nil
	}

	h.logger.Info("candidates ranked", map[string]interface{}{
		"query_id": input.Query.ID,
		"entries":  len(entries),
	})
	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return &Output{Result: models.RankedResult{Entries: entries}}, nil
}

// parse validates and filters the reply. Identifiers outside the candidate
// set are discarded; duplicates keep their first occurrence. An empty result
// after filtering counts as a ranking failure.
func (h *Handler) parse(raw []byte, ids []string) ([]models.RankedEntry, error) {
	if err := validation.ValidateJSON(raw, responseSchema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRankingFailed, err)
	}

	var resp rankingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRankingFailed, err)
	}

	candidates := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		candidates[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(resp.Ranking))
	entries := make([]models.RankedEntry, 0, len(resp.Ranking))
	for _, e := range resp.Ranking {
		id := strings.ToLower(strings.TrimSpace(e.Identifier))
		if _, ok := candidates[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, models.RankedEntry{Identifier: id, Explanation: e.Explanation})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no usable entries in response", ErrRankingFailed)
	}
	return entries, nil
}

// degrade returns the candidates in their existing stable order with no
// explanations.
func (h *Handler) degrade(ids []string, cause error) *Output {
	h.logger.WithError(cerrors.NewRankingFailedError(cause)).Warn("ranking degraded to passthrough", map[string]interface{}{
		"candidates": len(ids),
	})
	metrics.StageFailed.WithLabelValues(StageName, "RANKING_FAILED").Inc()

	entries := make([]models.RankedEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, models.RankedEntry{Identifier: id})
	}
	return &Output{Result: models.RankedResult{Entries: entries, Unranked: true}}
}

const systemPrompt = `You rank Pokemon candidates against a trainer's question.
Given the question and a candidate list, order the candidates from best to
worst fit and explain each pick in one sentence. Only use identifiers from
the provided list. Respond with JSON:
{"ranking": [{"identifier": "...", "explanation": "..."}]}`

func (h *Handler) userPrompt(query string, ids []string, attrs map[string][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nCandidates:\n", query)
	for _, id := range ids {
		if types, ok := attrs[id]; ok {
			fmt.Fprintf(&b, "- %s (types: %s)\n", id, strings.Join(types, ", "))
		} else {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return b.String()
}
