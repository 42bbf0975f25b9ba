// internal/stages/fallback-strategy/handler.go
package fallbackstrategy

import (
	"context"
	"fmt"

	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/models"
	fetchcandidates "pokemon-research/internal/stages/fetch-candidates"
	mapendpoints "pokemon-research/internal/stages/map-endpoints"
	mergecandidates "pokemon-research/internal/stages/merge-candidates"
)

const (
	StageName = "fallback-strategy"
)

// facetSpecificity orders facet attributes from most to least narrowing.
// Relaxation drops the lowest-scored include facet first, so a broad
// constraint like a type goes before a precise one like a name.
var facetSpecificity = map[string]int{
	"name":       100,
	"move":       90,
	"ability":    80,
	"egg-group":  70,
	"habitat":    60,
	"shape":      50,
	"generation": 40,
	"color":      30,
	"type":       20,
}

// broadCalls gives each intent one wide endpoint call used as the last
// relaxation step when facet-driven retrieval has produced nothing.
var broadCalls = map[models.Intent]models.EndpointCall{
	models.IntentTeamBuilding:    {Resource: "type", Parameter: "normal"},
	models.IntentLocationFinding: {Resource: "pokemon-habitat", Parameter: "grassland"},
	models.IntentBreedingInfo:    {Resource: "egg-group", Parameter: "monster"},
}

var defaultBroadCall = models.EndpointCall{Resource: "generation", Parameter: "generation-i"}

type Mapper interface {
	Execute(ctx context.Context, input *mapendpoints.Input) (*mapendpoints.Output, error)
}

type Fetcher interface {
	Execute(ctx context.Context, input *fetchcandidates.Input) (*fetchcandidates.Output, error)
}

type Merger interface {
	Execute(ctx context.Context, input *mergecandidates.Input) (*mergecandidates.Output, error)
}

type Handler struct {
	config  *Config
	mapper  Mapper
	fetcher Fetcher
	merger  Merger
	logger  logger.Logger
}

func NewHandler(config *Config, mapper Mapper, fetcher Fetcher, merger Merger, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		mapper:  mapper,
		fetcher: fetcher,
		merger:  merger,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute relaxes the query step by step until some candidates appear or the
// relaxation depth runs out. The ladder: drop the least-specific include facet,
// then force a union combine, then issue one broad category call for the
// intent. Running out of steps is a terminal no-matches outcome, not an
// error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	facets := append([]models.Facet(nil), input.Facets...)
	relaxations := []string{}
	forceUnion := false
	broadTried := false

	for depth := 0; depth < h.config.MaxDepth && !broadTried; depth++ {
		step := h.nextStep(facets, input.Intent, forceUnion)

		switch step {
		case "drop-facet":
			var dropped models.Facet
			facets, dropped = dropLeastSpecific(facets)
			relaxations = append(relaxations, fmt.Sprintf("drop-facet:%s=%s", dropped.Attribute, dropped.Value))
		case "force-union":
			forceUnion = true
			relaxations = append(relaxations, "force-union")
		case "broad-call":
			broadTried = true
			relaxations = append(relaxations, "broad-call")
		}
		metrics.FallbackRelaxations.WithLabelValues(step).Inc()

		h.logger.Info("applying relaxation", map[string]interface{}{
			"query_id": input.Query.ID,
			"step":     step,
			"depth":    depth + 1,
		})

		var ids []string
		var err error
		if step == "broad-call" {
			ids, err = h.runBroad(ctx, input.Intent)
		} else {
			ids, err = h.runFacets(ctx, input.Intent, facets, forceUnion)
		}
		if err != nil {
			return nil, err
		}

		if len(ids) > 0 {
			metrics.StageCompleted.WithLabelValues(StageName).Inc()
			return &Output{IDs: ids, Relaxations: relaxations}, nil
		}
	}

	h.logger.WithError(cerrors.NewNoMatchesError(len(relaxations))).Warn("relaxation exhausted, no matches", map[string]interface{}{
		"query_id":    input.Query.ID,
		"relaxations": relaxations,
	})
	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return &Output{IDs: []string{}, Relaxations: relaxations, Exhausted: true}, nil
}

// nextStep picks the first applicable rung of the ladder given the current
// state. Dropping and union-forcing only apply while at least two include
// facets remain under an intersection rule; an empty union means every set
// was empty, so only the broad call is left.
func (h *Handler) nextStep(facets []models.Facet, intent models.Intent, forcedUnion bool) string {
	includes := 0
	for _, f := range facets {
		if !f.Exclude {
			includes++
		}
	}

	intersecting := !forcedUnion && intent.Rule() == models.CombineIntersection

	if includes > 2 && intersecting {
		return "drop-facet"
	}
	if includes > 1 && intersecting {
		return "force-union"
	}
	return "broad-call"
}

func (h *Handler) runFacets(ctx context.Context, intent models.Intent, facets []models.Facet, forceUnion bool) ([]string, error) {
	mapped, err := h.mapper.Execute(ctx, &mapendpoints.Input{Intent: intent, Facets: facets})
	if err != nil {
		return nil, err
	}
	if len(mapped.Calls) == 0 {
		return nil, nil
	}

	fetched, err := h.fetcher.Execute(ctx, &fetchcandidates.Input{Calls: mapped.Calls})
	if err != nil {
		return nil, err
	}

	merged, err := h.merger.Execute(ctx, &mergecandidates.Input{
		Intent:     intent,
		Sets:       fetched.Sets,
		ForceUnion: forceUnion,
	})
	if err != nil {
		return nil, err
	}
	return merged.IDs, nil
}

func (h *Handler) runBroad(ctx context.Context, intent models.Intent) ([]string, error) {
	call, ok := broadCalls[intent]
	if !ok {
		call = defaultBroadCall
	}

	facet := models.Facet{Attribute: call.Resource, Value: call.Parameter}
	fetched, err := h.fetcher.Execute(ctx, &fetchcandidates.Input{
		Calls: []mapendpoints.FacetCall{{Facet: facet, Call: call}},
	})
	if err != nil {
		return nil, err
	}

	merged, err := h.merger.Execute(ctx, &mergecandidates.Input{
		Intent:     intent,
		Sets:       fetched.Sets,
		ForceUnion: true,
	})
	if err != nil {
		return nil, err
	}
	return merged.IDs, nil
}

func dropLeastSpecific(facets []models.Facet) ([]models.Facet, models.Facet) {
	lowest := -1
	for i, f := range facets {
		if f.Exclude {
			continue
		}
		if lowest == -1 || specificity(f) < specificity(facets[lowest]) {
			lowest = i
		}
	}
	dropped := facets[lowest]
	out := make([]models.Facet, 0, len(facets)-1)
	out = append(out, facets[:lowest]...)
	out = append(out, facets[lowest+1:]...)
	return out, dropped
}

func specificity(f models.Facet) int {
	if s, ok := facetSpecificity[f.Attribute]; ok {
		return s
	}
	return 10
}
