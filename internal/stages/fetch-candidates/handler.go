// internal/stages/fetch-candidates/handler.go
package fetchcandidates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pokemon-research/internal/common/cache"
	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/metrics"
	"pokemon-research/internal/models"
	"pokemon-research/pkg/catalog"
)

const (
	StageName = "fetch-candidates"
)

var (
	ErrFetchFailed = errors.New("FETCH_FAILED")
	ErrRateLimited = errors.New("RATE_LIMITED")
	errNotFound    = errors.New("resource not found")
)

// ResponseCache is the slice of the redis cache the gateway needs. A nil
// cache disables caching.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}) error
}

type Handler struct {
	config   *Config
	client   *http.Client
	cache    ResponseCache
	limiter  *rate.Limiter
	inFlight *atomic.Int64
	logger   logger.Logger
}

func NewHandler(config *Config, respCache ResponseCache, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		cache:    respCache,
		limiter:  rate.NewLimiter(rate.Limit(config.RequestsPerSec), config.RateLimitBurst),
		inFlight: atomic.NewInt64(0),
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute fetches all mapped endpoint calls concurrently, bounded by the
// in-flight limit. Partial failure is tolerated: a call that times out, is
// rate-limited past its retries, or names a missing resource yields an empty
// candidate set for that call only. The returned sets match call order and
// Execute itself never fails.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	sets := make([]models.CandidateSet, len(input.Calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.MaxInFlight)

	for i, fc := range input.Calls {
		g.Go(func() error {
			ids := h.fetchOne(gctx, fc.Call)
			sets[i] = models.CandidateSet{Facet: fc.Facet, IDs: ids}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	metrics.StageCompleted.WithLabelValues(StageName).Inc()

	return &Output{Sets: sets}, nil
}

// FetchTypes fetches the type names of up to limit candidates, used to
// enrich the ranking prompt. Failures leave the candidate unadorned.
func (h *Handler) FetchTypes(ctx context.Context, ids []string, limit int) map[string][]string {
	if limit <= 0 {
		return map[string][]string{}
	}
	if limit > len(ids) {
		limit = len(ids)
	}

	attrs := make(map[string][]string, limit)
	results := make([][]string, limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.MaxInFlight)

	for i := 0; i < limit; i++ {
		g.Go(func() error {
			body, err := h.request(gctx, models.EndpointCall{Resource: "pokemon", Parameter: ids[i]})
			if err != nil {
				return nil
			}
			for _, t := range gjson.GetBytes(body, "types.#.type.name").Array() {
				results[i] = append(results[i], t.String())
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := 0; i < limit; i++ {
		if len(results[i]) > 0 {
			attrs[ids[i]] = results[i]
		}
	}

	return attrs
}

func (h *Handler) fetchOne(ctx context.Context, call models.EndpointCall) []string {
	resource, ok := catalog.Lookup(call.Resource)
	if !ok {
		h.logger.Warn("resource not in catalog, returning empty set", map[string]interface{}{
			"resource": call.Resource,
		})
		metrics.EndpointCalls.WithLabelValues(call.Resource, "invalid").Inc()
		return []string{}
	}

	body, err := h.request(ctx, call)
	if err != nil {
		outcome := "error"
		callErr := error(cerrors.NewFetchFailedError(call.Resource, call.Parameter, err))
		if errors.Is(err, errNotFound) {
			outcome = "not_found"
			callErr = err
		} else if errors.Is(err, ErrRateLimited) {
			outcome = "rate_limited"
			callErr = cerrors.NewRateLimitedError(call.Resource)
		}
		h.logger.WithError(callErr).Warn("endpoint call failed, returning empty set", map[string]interface{}{
			"resource":  call.Resource,
			"parameter": call.Parameter,
			"outcome":   outcome,
		})
		metrics.EndpointCalls.WithLabelValues(call.Resource, outcome).Inc()
		return []string{}
	}

	metrics.EndpointCalls.WithLabelValues(call.Resource, "ok").Inc()

	return extractIDs(body, resource.IDsPath)
}

// request returns the raw response body for one call, consulting the cache
// first and retrying transient failures with backoff. 404 is permanent and
// never retried.
func (h *Handler) request(ctx context.Context, call models.EndpointCall) ([]byte, error) {
	key := cache.Key(call.Resource, call.Parameter)

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, key); err == nil {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return []byte(cached), nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	url := fmt.Sprintf("%s/%s/%s", h.config.BaseURL, call.Resource, call.Parameter)

	var body []byte
	err := retry.Do(
		func() error {
			if err := h.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			h.inFlight.Inc()
			defer h.inFlight.Dec()

			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := h.client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				body, err = io.ReadAll(resp.Body)
				return err
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(errNotFound)
			case resp.StatusCode == http.StatusTooManyRequests:
				return fmt.Errorf("%w: status 429", ErrRateLimited)
			default:
				return fmt.Errorf("status %d", resp.StatusCode)
			}
		},
		retry.Attempts(uint(h.config.MaxRetries)),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, string(body)); err != nil {
			h.logger.Debug("cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	return body, nil
}

// extractIDs pulls the identifier list out of a response body using the
// catalog's gjson path. Single-object lookups (path "name") yield a
// one-element set.
func extractIDs(body []byte, path string) []string {
	result := gjson.GetBytes(body, path)

	if !result.Exists() {
		return []string{}
	}

	if !result.IsArray() {
		if s := result.String(); s != "" {
			return []string{s}
		}
		return []string{}
	}

	values := result.Array()
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s := v.String(); s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

// InFlight reports the number of endpoint calls currently executing.
func (h *Handler) InFlight() int64 {
	return h.inFlight.Load()
}
