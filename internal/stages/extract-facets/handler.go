// internal/stages/extract-facets/handler.go
package extractfacets

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
	StageName = "extract-facets"
)

var (
	ErrExtractionFailed = errors.New("EXTRACTION_FAILED")
)

// facetAttributes is the fixed attribute vocabulary seeded into the prompt.
// Attributes outside this list may still come back from the service; the
// endpoint mapper drops the ones it has no wiring for.
var facetAttributes = []string{
	"name", "type", "color", "shape", "habitat",
	"generation", "egg-group", "ability", "move",
}

// responseSchema is the contract the reasoning service's JSON must satisfy.
// The response is untrusted input; anything that fails this schema is
// discarded wholesale rather than partially salvaged.
var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"intent", "facets"},
	"properties": map[string]interface{}{
		"intent": map[string]interface{}{"type": "string"},
		"facets": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"attribute", "value"},
				"properties": map[string]interface{}{
					"attribute": map[string]interface{}{"type": "string"},
					"value":     map[string]interface{}{"type": "string"},
					"exclude":   map[string]interface{}{"type": "boolean"},
				},
			},
		},
	},
}

// Reasoner is the slice of the reasoning client this stage needs.
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

// Execute classifies the query and extracts facets. It always returns a
// usable typed tuple: on any extraction failure the output degrades to the
// general-question intent with zero facets, deferring to the fallback
// strategy instead of aborting the pipeline.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.reasoner.CompleteJSON(ctx, h.systemPrompt(), h.userPrompt(input.Query.Text))
	if err != nil {
		return h.degrade(fmt.Errorf("%w: %v", ErrExtractionFailed, err)), nil
	}

	output, err := h.parse(raw)
	if err != nil {
		return h.degrade(err), nil
	}

	h.logger.Info("facets extracted", map[string]interface{}{
		"queryId":    input.Query.ID,
		"intent":     output.Intent,
		"facetCount": len(output.Facets),
	})
	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return output, nil
}

func (h *Handler) degrade(err error) *Output {
	h.logger.WithError(cerrors.NewExtractionFailedError(err)).Warn("extraction degraded to defaults", map[string]interface{}{
		"intent": string(models.IntentGeneralQuestion),
	})
	metrics.StageFailed.WithLabelValues(StageName, "EXTRACTION_FAILED").Inc()

	return &Output{
		Intent:   models.IntentGeneralQuestion,
		Facets:   []models.Facet{},
		Degraded: true,
	}
}

func (h *Handler) parse(raw []byte) (*Output, error) {
	if err := validation.ValidateJSON(raw, responseSchema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var parsed struct {
		Intent string `json:"intent"`
		Facets []struct {
			Attribute string `json:"attribute"`
			Value     string `json:"value"`
			Exclude   bool   `json:"exclude"`
		} `json:"facets"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrExtractionFailed, err)
	}

	intent := models.Intent(strings.TrimSpace(parsed.Intent))
	if !intent.Known() {
		intent = models.IntentGeneralQuestion
	}

	seen := make(map[models.Facet]bool)
	facets := make([]models.Facet, 0, len(parsed.Facets))
	for _, f := range parsed.Facets {
		facet := models.Facet{
			Attribute: normalize(f.Attribute),
			Value:     normalize(f.Value),
			Exclude:   f.Exclude,
		}
		if facet.Attribute == "" || facet.Value == "" {
			continue
		}
		if seen[facet] {
			continue
		}
		seen[facet] = true
		facets = append(facets, facet)
	}

	return &Output{Intent: intent, Facets: facets}, nil
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func (h *Handler) systemPrompt() string {
	intents := models.KnownIntents()
	labels := make([]string, len(intents))
	for i, it := range intents {
		labels[i] = string(it)
	}

	var b strings.Builder
	b.WriteString("You are a Pokemon query analysis expert. Classify the user's query and extract search facets.\n\n")
	b.WriteString("Known intent labels (choose exactly one):\n")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\n\nRecognized facet attributes:\n")
	b.WriteString(strings.Join(facetAttributes, ", "))
	b.WriteString("\n\nMark a facet with \"exclude\": true when the user wants it filtered out ")
	b.WriteString("(e.g. \"but not Mew or Mewtwo\" yields two excluded name facets).\n")
	b.WriteString("Return JSON only: {\"intent\": \"...\", \"facets\": [{\"attribute\": \"...\", \"value\": \"...\", \"exclude\": false}]}")
	return b.String()
}

func (h *Handler) userPrompt(query string) string {
	return fmt.Sprintf("Analyze this Pokemon query: %q", query)
}
