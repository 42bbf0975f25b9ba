// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokemon-research/internal/agent"
	"pokemon-research/internal/common/cache"
	"pokemon-research/internal/common/config"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/models"
	"pokemon-research/internal/reasoning"
	"pokemon-research/internal/report"
	extractfacets "pokemon-research/internal/stages/extract-facets"
	fallbackstrategy "pokemon-research/internal/stages/fallback-strategy"
	fetchcandidates "pokemon-research/internal/stages/fetch-candidates"
	mapendpoints "pokemon-research/internal/stages/map-endpoints"
	mergecandidates "pokemon-research/internal/stages/merge-candidates"
	rankresults "pokemon-research/internal/stages/rank-results"
)

// ==========================
// Fake External Services
// ==========================

// fakePokeAPI serves a tiny fixed dataset of the real API's shapes.
func fakePokeAPI(t *testing.T) *httptest.Server {
	routes := map[string]string{
		"/pokemon-color/yellow":    `{"pokemon_species": [{"name": "pikachu"}, {"name": "dracozolt"}, {"name": "psyduck"}]}`,
		"/type/electric":           `{"pokemon": [{"pokemon": {"name": "pikachu"}}, {"pokemon": {"name": "dracozolt"}}, {"pokemon": {"name": "magnemite"}}]}`,
		"/type/flying":             `{"pokemon": [{"pokemon": {"name": "dracozolt"}}, {"pokemon": {"name": "pidgey"}}]}`,
		"/type/bug":                `{"pokemon": [{"pokemon": {"name": "caterpie"}}, {"pokemon": {"name": "scyther"}}]}`,
		"/generation/generation-i": `{"pokemon_species": [{"name": "bulbasaur"}, {"name": "charmander"}, {"name": "squirtle"}]}`,
		"/pokemon/pikachu":         `{"name": "pikachu", "types": [{"type": {"name": "electric"}}]}`,
		"/pokemon/caterpie":        `{"name": "caterpie", "types": [{"type": {"name": "bug"}}]}`,
		"/pokemon/scyther":         `{"name": "scyther", "types": [{"type": {"name": "bug"}}, {"type": {"name": "flying"}}]}`,
		"/pokemon/bulbasaur":       `{"name": "bulbasaur", "types": [{"type": {"name": "grass"}}]}`,
		"/pokemon/charmander":      `{"name": "charmander", "types": [{"type": {"name": "fire"}}]}`,
		"/pokemon/squirtle":        `{"name": "squirtle", "types": [{"type": {"name": "water"}}]}`,
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

// fakeReasoningService answers the extraction prompt with scripted facets
// and the ranking prompt with a scripted order.
func fakeReasoningService(t *testing.T, extraction, ranking string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		content := ranking
		if strings.Contains(req.Messages[0].Content, "query analysis expert") {
			content = extraction
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

// ==========================
// Pipeline Assembly
// ==========================

func buildAgent(t *testing.T, pokeAPIURL, reasoningURL string, respCache fetchcandidates.ResponseCache) *agent.Agent {
	log := logger.NewTestLogger(t)

	reasoner := reasoning.NewClient(config.ReasoningConfig{
		BaseURL:    reasoningURL,
		Model:      "test-model",
		Timeout:    30000,
		MaxRetries: 1,
	}, log)

	extractor := extractfacets.NewHandler(&extractfacets.Config{Timeout: 10 * time.Second}, reasoner, log)
	mapper := mapendpoints.NewHandler(&mapendpoints.Config{}, log)
	fetcher := fetchcandidates.NewHandler(&fetchcandidates.Config{
		BaseURL:        pokeAPIURL,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		MaxInFlight:    5,
		RequestsPerSec: 1000,
		RateLimitBurst: 1000,
	}, respCache, log)
	merger := mergecandidates.NewHandler(&mergecandidates.Config{}, log)
	fallback := fallbackstrategy.NewHandler(&fallbackstrategy.Config{MaxDepth: 3}, mapper, fetcher, merger, log)
	ranker := rankresults.NewHandler(&rankresults.Config{Timeout: 10 * time.Second, CandidateCap: 30}, reasoner, log)

	return agent.New(&agent.Config{EnrichmentLimit: 10}, extractor, mapper, fetcher, merger, fallback, ranker, nil, log)
}

// ==========================
// End-to-End Scenarios
// ==========================

func TestPipeline_FilteringWithExclusion(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	// yellow ∩ electric − flying: pikachu and dracozolt are yellow electrics,
	// dracozolt is excluded for being part flying.
	reasoningSvc := fakeReasoningService(t,
		`{"intent": "pokemon_filtering", "facets": [
			{"attribute": "color", "value": "yellow"},
			{"attribute": "type", "value": "electric"},
			{"attribute": "type", "value": "flying", "exclude": true}
		]}`,
		`{"ranking": [{"identifier": "pikachu", "explanation": "only yellow electric non-flier"}]}`,
	)
	defer reasoningSvc.Close()

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, nil)

	result, err := a.Research(context.Background(), "yellow electric pokemon but not flying types")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, models.IntentPokemonFiltering, result.Intent)
	assert.Equal(t, []string{"pikachu"}, result.Merged.IDs)
	require.Len(t, result.Ranked.Entries, 1)
	assert.Equal(t, "pikachu", result.Ranked.Entries[0].Identifier)
	assert.False(t, result.Ranked.Unranked)
}

func TestPipeline_TeamBuildingUnion(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	reasoningSvc := fakeReasoningService(t,
		`{"intent": "team_building", "facets": [{"attribute": "type", "value": "bug"}]}`,
		`{"ranking": [
			{"identifier": "scyther", "explanation": "strong attacker"},
			{"identifier": "caterpie", "explanation": "early evolution"}
		]}`,
	)
	defer reasoningSvc.Close()

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, nil)

	result, err := a.Research(context.Background(), "build me a bug team")

	require.NoError(t, err)
	assert.Equal(t, []string{"caterpie", "scyther"}, result.Merged.IDs)
	assert.Equal(t, "scyther", result.Ranked.Entries[0].Identifier)
}

func TestPipeline_ExtractionFailureFallsBackToBroadCall(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	// Extraction returns garbage; the extractor degrades to zero facets, the
	// mapper yields zero calls and the fallback issues the broad call.
	reasoningSvc := fakeReasoningService(t,
		"complete nonsense, not json",
		`{"ranking": [{"identifier": "bulbasaur", "explanation": "a classic"}]}`,
	)
	defer reasoningSvc.Close()

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, nil)

	result, err := a.Research(context.Background(), "???")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, models.IntentGeneralQuestion, result.Intent)
	assert.Contains(t, result.Merged.Relaxations, "broad-call")
	assert.ElementsMatch(t, []string{"bulbasaur", "charmander", "squirtle"}, result.Merged.IDs)
}

func TestPipeline_RankingFailurePassesThrough(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	reasoningSvc := fakeReasoningService(t,
		`{"intent": "team_building", "facets": [{"attribute": "type", "value": "bug"}]}`,
		"broken ranking output",
	)
	defer reasoningSvc.Close()

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, nil)

	result, err := a.Research(context.Background(), "bug team please")

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.True(t, result.Ranked.Unranked)
	require.Len(t, result.Ranked.Entries, 2)
	assert.Equal(t, "caterpie", result.Ranked.Entries[0].Identifier)
}

func TestPipeline_CachedFetchesAcrossRuns(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	reasoningSvc := fakeReasoningService(t,
		`{"intent": "team_building", "facets": [{"attribute": "type", "value": "bug"}]}`,
		`{"ranking": [{"identifier": "caterpie", "explanation": "ok"}]}`,
	)
	defer reasoningSvc.Close()

	mr := miniredis.RunT(t)
	respCache := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, respCache)

	_, err := a.Research(context.Background(), "bug team")
	require.NoError(t, err)
	assert.True(t, mr.Exists("pokeapi:type:bug"))

	// Second run answers from the cache even with the API gone.
	pokeAPI.Close()
	result, err := a.Research(context.Background(), "bug team")
	require.NoError(t, err)
	assert.Equal(t, []string{"caterpie", "scyther"}, result.Merged.IDs)
}

func TestPipeline_ReportRoundTrip(t *testing.T) {
	pokeAPI := fakePokeAPI(t)
	defer pokeAPI.Close()

	reasoningSvc := fakeReasoningService(t,
		`{"intent": "team_building", "facets": [{"attribute": "type", "value": "bug"}]}`,
		`{"ranking": [{"identifier": "scyther", "explanation": "sharp"}]}`,
	)
	defer reasoningSvc.Close()

	a := buildAgent(t, pokeAPI.URL, reasoningSvc.URL, nil)

	result, err := a.Research(context.Background(), "bug team")
	require.NoError(t, err)

	writer := report.NewWriter(t.TempDir(), logger.NewTestLogger(t))
	path, err := writer.Write(result)

	require.NoError(t, err)
	assert.NotEmpty(t, path)
}
