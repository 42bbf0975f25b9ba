// internal/stages/map-endpoints/handler.go
package mapendpoints

import (
	"context"

	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/models"
	"pokemon-research/pkg/catalog"
)

const (
	StageName = "map-endpoints"
)

// attributeResources is the static facet-attribute to resource-family table.
// Multi-call expansions are declared here, never improvised at call time:
// a name facet queries both the Pokémon and the species resource because
// either form may be what the user named.
var attributeResources = map[string][]string{
	"name":       {"pokemon", "pokemon-species"},
	"type":       {"type"},
	"color":      {"pokemon-color"},
	"shape":      {"pokemon-shape"},
	"habitat":    {"pokemon-habitat"},
	"generation": {"generation"},
	"egg-group":  {"egg-group"},
	"ability":    {"ability"},
	"move":       {"move"},
}

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

// Execute translates facets into endpoint calls via the static table. It is
// a pure lookup: unknown attributes are dropped and logged, never an error,
// so the system degrades gracefully as extraction learns new facet types
// before they are wired to an endpoint.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	output := &Output{
		Calls: make([]FacetCall, 0, len(input.Facets)),
	}

	for _, facet := range input.Facets {
		resources, ok := attributeResources[facet.Attribute]
		if !ok {
			h.logger.WithError(cerrors.NewMappingGapError(facet.Attribute)).Warn("no endpoint mapping for attribute, dropping facet", map[string]interface{}{
				"attribute": facet.Attribute,
				"value":     facet.Value,
			})
			metrics.StageFailed.WithLabelValues(StageName, "MAPPING_GAP").Inc()
			output.Dropped = append(output.Dropped, facet)
			continue
		}

		for _, resource := range resources {
			if !catalog.Valid(resource) {
				// Table and catalog drifting apart is a programming error;
				// treat it like a mapping gap rather than failing the query.
				h.logger.Error("mapped resource missing from catalog", map[string]interface{}{
					"resource": resource,
				})
				continue
			}
			output.Calls = append(output.Calls, FacetCall{
				Facet: facet,
				Call: models.EndpointCall{
					Resource:  resource,
					Parameter: facet.Value,
				},
			})
		}
	}

	h.logger.Debug("facets mapped", map[string]interface{}{
		"intent":    input.Intent,
		"callCount": len(output.Calls),
		"dropped":   len(output.Dropped),
	})
	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return output, nil
}
