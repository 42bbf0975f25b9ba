// cmd/research-agent/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pokemon-research/internal/agent"
	"pokemon-research/internal/common/cache"
	"pokemon-research/internal/common/config"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/common/observability"
	"pokemon-research/internal/reasoning"
	"pokemon-research/internal/report"
	ef "pokemon-research/internal/stages/extract-facets"
	fb "pokemon-research/internal/stages/fallback-strategy"
	fc "pokemon-research/internal/stages/fetch-candidates"
	me "pokemon-research/internal/stages/map-endpoints"
	mc "pokemon-research/internal/stages/merge-candidates"
	rr "pokemon-research/internal/stages/rank-results"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: research-agent \"<question>\"")
		os.Exit(2)
	}
	question := strings.Join(os.Args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting research agent...")

	obs := observability.New("research-agent")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis cache with retry (optional) ---
	var respCache fc.ResponseCache
	if cfg.Cache.Enabled {
		var redisCache *cache.RedisCache
		err = retryWithBackoff(func() error {
			var err error
			redisCache, err = cache.New(cfg.Cache)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redisCache.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			respCache = redisCache
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Init reasoning client ---
	reasoner := reasoning.NewClient(cfg.Reasoning, log)

	// --- Build pipeline stages ---
	extractor := ef.NewHandler(
		&ef.Config{
			Timeout: config.GetDuration(cfg.Reasoning.Timeout),
		},
		reasoner, log,
	)

	mapper := me.NewHandler(&me.Config{}, log)

	fetcher := fc.NewHandler(
		&fc.Config{
			BaseURL:        cfg.PokeAPI.BaseURL,
			Timeout:        time.Duration(cfg.PokeAPI.Timeout) * time.Millisecond,
			MaxRetries:     cfg.PokeAPI.MaxRetries,
			MaxInFlight:    cfg.PokeAPI.MaxInFlight,
			RequestsPerSec: cfg.PokeAPI.RequestsPerSec,
			RateLimitBurst: cfg.PokeAPI.RateLimitBurst,
		},
		respCache, log,
	)

	merger := mc.NewHandler(&mc.Config{}, log)

	fallback := fb.NewHandler(
		&fb.Config{
			MaxDepth: cfg.Pipeline.MaxRelaxationDepth,
		},
		mapper, fetcher, merger, log,
	)

	ranker := rr.NewHandler(
		&rr.Config{
			Timeout:      config.GetDuration(cfg.Reasoning.Timeout),
			CandidateCap: cfg.Pipeline.CandidateCap,
		},
		reasoner, log,
	)

	researcher := agent.New(
		&agent.Config{
			EnrichmentLimit: cfg.PokeAPI.EnrichmentLimit,
		},
		extractor, mapper, fetcher, merger, fallback, ranker, obs, log,
	)

	// --- Health & Metrics Server ---
	if cfg.Metrics.Enabled {
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Run the query ---
	result, err := researcher.Research(ctx, question)
	if err != nil {
		zapLog.Fatal("research failed", zap.Error(err))
	}

	writer := report.NewWriter(cfg.Reports.Dir, log)
	path, err := writer.Write(result)
	if err != nil {
		zapLog.Error("report write failed", zap.Error(err))
	} else {
		zapLog.Info("report saved", zap.String("path", path))
	}

	fmt.Println(report.Render(result))
}
