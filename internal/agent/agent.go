// internal/agent/agent.go
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/common/observability"
	"pokemon-research/internal/models"
	extractfacets "pokemon-research/internal/stages/extract-facets"
	fallbackstrategy "pokemon-research/internal/stages/fallback-strategy"
	fetchcandidates "pokemon-research/internal/stages/fetch-candidates"
	mapendpoints "pokemon-research/internal/stages/map-endpoints"
	mergecandidates "pokemon-research/internal/stages/merge-candidates"
	rankresults "pokemon-research/internal/stages/rank-results"
)

type Extractor interface {
	Execute(ctx context.Context, input *extractfacets.Input) (*extractfacets.Output, error)
}

type Mapper interface {
	Execute(ctx context.Context, input *mapendpoints.Input) (*mapendpoints.Output, error)
}

type Fetcher interface {
	Execute(ctx context.Context, input *fetchcandidates.Input) (*fetchcandidates.Output, error)
	FetchTypes(ctx context.Context, ids []string, limit int) map[string][]string
}

type Merger interface {
	Execute(ctx context.Context, input *mergecandidates.Input) (*mergecandidates.Output, error)
}

type Fallback interface {
	Execute(ctx context.Context, input *fallbackstrategy.Input) (*fallbackstrategy.Output, error)
}

type Ranker interface {
	Execute(ctx context.Context, input *rankresults.Input) (*rankresults.Output, error)
}

type Config struct {
	// EnrichmentLimit bounds how many candidates get per-candidate attribute
	// lookups before ranking. Zero disables enrichment.
	EnrichmentLimit int
}

// Agent runs one query through the full pipeline and assembles the report
// bundle for the sink.
type Agent struct {
	config    *Config
	extractor Extractor
	mapper    Mapper
	fetcher   Fetcher
	merger    Merger
	fallback  Fallback
	ranker    Ranker
	obs       *observability.Observability
	logger    logger.Logger
}

func New(config *Config, extractor Extractor, mapper Mapper, fetcher Fetcher, merger Merger, fallback Fallback, ranker Ranker, obs *observability.Observability, log logger.Logger) *Agent {
	return &Agent{
		config:    config,
		extractor: extractor,
		mapper:    mapper,
		fetcher:   fetcher,
		merger:    merger,
		fallback:  fallback,
		ranker:    ranker,
		obs:       obs,
		logger:    log.With(map[string]interface{}{"component": "agent"}),
	}
}

// Research answers one question. Stage failures that have in-stage
// degradation (extraction, ranking) never surface here; an error return
// means the pipeline itself could not run, typically context cancellation.
func (a *Agent) Research(ctx context.Context, text string) (*models.ResearchReport, error) {
	query := models.Query{
		ID:         uuid.New().String(),
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}

	a.logger.Info("research started", map[string]interface{}{
		"query_id": query.ID,
		"text":     text,
	})

	timings := make([]models.StageTiming, 0, 6)
	timed := func(stage string, fn func() error) error {
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		timings = append(timings, models.StageTiming{Stage: stage, Duration: elapsed})
		metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		return err
	}

	var extracted *extractfacets.Output
	if err := timed(extractfacets.StageName, func() error {
		var err error
		extracted, err = a.extractor.Execute(ctx, &extractfacets.Input{Query: query})
		return err
	}); err != nil {
		return nil, a.finish(ctx, nil, query, err)
	}

	var mapped *mapendpoints.Output
	if err := timed(mapendpoints.StageName, func() error {
		var err error
		mapped, err = a.mapper.Execute(ctx, &mapendpoints.Input{
			Intent: extracted.Intent,
			Facets: extracted.Facets,
		})
		return err
	}); err != nil {
		return nil, a.finish(ctx, nil, query, err)
	}

	merged := models.MergedCandidates{IDs: []string{}}
	status := models.StatusCompleted

	if len(mapped.Calls) == 0 {
		// Merging is never attempted on zero calls; relax immediately.
		out, err := a.relax(ctx, &timings, query, extracted)
		if err != nil {
			return nil, a.finish(ctx, nil, query, err)
		}
		merged.IDs = out.IDs
		merged.Relaxations = out.Relaxations
		if out.Exhausted {
			status = models.StatusNoMatches
		}
	} else {
		var fetched *fetchcandidates.Output
		if err := timed(fetchcandidates.StageName, func() error {
			var err error
			fetched, err = a.fetcher.Execute(ctx, &fetchcandidates.Input{Calls: mapped.Calls})
			return err
		}); err != nil {
			return nil, a.finish(ctx, nil, query, err)
		}

		var combined *mergecandidates.Output
		if err := timed(mergecandidates.StageName, func() error {
			var err error
			combined, err = a.merger.Execute(ctx, &mergecandidates.Input{
				Intent: extracted.Intent,
				Sets:   fetched.Sets,
			})
			return err
		}); err != nil {
			return nil, a.finish(ctx, nil, query, err)
		}

		merged.IDs = combined.IDs

		if combined.ZeroCandidates {
			out, err := a.relax(ctx, &timings, query, extracted)
			if err != nil {
				return nil, a.finish(ctx, nil, query, err)
			}
			merged.IDs = out.IDs
			merged.Relaxations = out.Relaxations
			if out.Exhausted {
				status = models.StatusNoMatches
			}
		}
	}

	ranked := models.RankedResult{Entries: []models.RankedEntry{}}
	if status == models.StatusCompleted && len(merged.IDs) > 0 {
		attrs := a.fetcher.FetchTypes(ctx, merged.IDs, a.config.EnrichmentLimit)

		var rankOut *rankresults.Output
		if err := timed(rankresults.StageName, func() error {
			var err error
			rankOut, err = a.ranker.Execute(ctx, &rankresults.Input{
				Query:      query,
				IDs:        merged.IDs,
				Attributes: attrs,
			})
			return err
		}); err != nil {
			return nil, a.finish(ctx, nil, query, err)
		}
		ranked = rankOut.Result
	}

	report := &models.ResearchReport{
		Query:      query,
		Intent:     extracted.Intent,
		Facets:     extracted.Facets,
		Calls:      calls(mapped.Calls),
		Merged:     merged,
		Ranked:     ranked,
		Status:     status,
		Timings:    timings,
		FinishedAt: time.Now().UTC(),
	}
	report.Duration = report.FinishedAt.Sub(query.ReceivedAt)

	return report, a.finish(ctx, report, query, nil)
}

func (a *Agent) relax(ctx context.Context, timings *[]models.StageTiming, query models.Query, extracted *extractfacets.Output) (*fallbackstrategy.Output, error) {
	start := time.Now()
	out, err := a.fallback.Execute(ctx, &fallbackstrategy.Input{
		Query:  query,
		Intent: extracted.Intent,
		Facets: extracted.Facets,
	})
	elapsed := time.Since(start)
	*timings = append(*timings, models.StageTiming{Stage: fallbackstrategy.StageName, Duration: elapsed})
	metrics.StageDuration.WithLabelValues(fallbackstrategy.StageName).Observe(elapsed.Seconds())
	return out, err
}

func (a *Agent) finish(ctx context.Context, report *models.ResearchReport, query models.Query, err error) error {
	status := "error"
	var duration time.Duration
	if err == nil && report != nil {
		status = string(report.Status)
		duration = report.Duration
	} else {
		duration = time.Since(query.ReceivedAt)
	}

	if a.obs != nil {
		a.obs.RecordQueryProcessed(ctx, status)
		a.obs.RecordQueryDuration(ctx, duration, status)
	}

	fields := map[string]interface{}{
		"query_id": query.ID,
		"status":   status,
		"duration": duration.String(),
	}
	if err != nil {
		a.logger.WithError(err).Error("research failed", fields)
		return err
	}
	a.logger.Info("research finished", fields)
	return nil
}

func calls(fcs []mapendpoints.FacetCall) []models.EndpointCall {
	out := make([]models.EndpointCall, 0, len(fcs))
	for _, fc := range fcs {
		out = append(out, fc.Call)
	}
	return out
}
