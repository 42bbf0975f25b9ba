// internal/stages/fetch-candidates/handler_test.go
package fetchcandidates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokemon-research/internal/common/cache"
	"pokemon-research/internal/common/logger"
	"pokemon-research/internal/models"
	mapendpoints "pokemon-research/internal/stages/map-endpoints"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		MaxInFlight:    5,
		RequestsPerSec: 1000, // effectively unlimited in tests
		RateLimitBurst: 1000,
	}
}

func facetCall(attribute, value, resource string) mapendpoints.FacetCall {
	return mapendpoints.FacetCall{
		Facet: models.Facet{Attribute: attribute, Value: value},
		Call:  models.EndpointCall{Resource: resource, Parameter: value},
	}
}

func newCacheForTest(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewWithClient(client, time.Hour), mr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/type/electric":
			w.Write([]byte(`{"pokemon": [{"pokemon": {"name": "pikachu"}}, {"pokemon": {"name": "magnemite"}}]}`))
		case "/pokemon-color/yellow":
			w.Write([]byte(`{"pokemon_species": [{"name": "pikachu"}, {"name": "psyduck"}]}`))
		case "/pokemon/pikachu":
			w.Write([]byte(`{"name": "pikachu"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{
			facetCall("type", "electric", "type"),
			facetCall("color", "yellow", "pokemon-color"),
			facetCall("name", "pikachu", "pokemon"),
		},
	})

	assert.NoError(t, err)
	require.Len(t, output.Sets, 3)

	// Result order matches call order regardless of completion order.
	assert.Equal(t, "type", output.Sets[0].Facet.Attribute)
	assert.Equal(t, []string{"pikachu", "magnemite"}, output.Sets[0].IDs)
	assert.Equal(t, []string{"pikachu", "psyduck"}, output.Sets[1].IDs)
	assert.Equal(t, []string{"pikachu"}, output.Sets[2].IDs)
}

func TestHandler_Execute_NotFoundYieldsEmptySet(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{facetCall("name", "missingno", "pokemon")},
	})

	assert.NoError(t, err)
	require.Len(t, output.Sets, 1)
	assert.Empty(t, output.Sets[0].IDs)
	// 404 is permanent, never retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestHandler_Execute_RetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"pokemon_species": [{"name": "bulbasaur"}]}`))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{facetCall("generation", "generation-i", "generation")},
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"bulbasaur"}, output.Sets[0].IDs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHandler_Execute_ExhaustedRetriesYieldEmptySet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{facetCall("type", "fire", "type")},
	})

	// Partial failure is absorbed, never surfaced as an error.
	assert.NoError(t, err)
	assert.Empty(t, output.Sets[0].IDs)
}

func TestHandler_Request_RateLimitedSurvivesRetryWrap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	_, err := handler.request(context.Background(), models.EndpointCall{Resource: "type", Parameter: "fire"})

	// The quota rejection stays identifiable through the retry wrapper so
	// fetchOne can count it as rate_limited rather than a generic error.
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHandler_Execute_OneSlowCallDoesNotBlockOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/type/slow" {
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte(`{"pokemon": [{"pokemon": {"name": "squirtle"}}]}`))
	}))
	defer server.Close()

	config := createTestConfig(server.URL)
	config.Timeout = 100 * time.Millisecond
	config.MaxRetries = 1
	handler := NewHandler(config, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{
			facetCall("type", "slow", "type"),
			facetCall("type", "water", "type"),
		},
	})

	assert.NoError(t, err)
	assert.Empty(t, output.Sets[0].IDs)
	assert.Equal(t, []string{"squirtle"}, output.Sets[1].IDs)
}

func TestHandler_Execute_UnknownResourceYieldsEmptySet(t *testing.T) {
	handler := NewHandler(createTestConfig("http://unused"), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{facetCall("weather", "rainy", "weather")},
	})

	assert.NoError(t, err)
	assert.Empty(t, output.Sets[0].IDs)
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_Execute_CachesResponses(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"pokemon_species": [{"name": "zubat"}]}`))
	}))
	defer server.Close()

	respCache, mr := newCacheForTest(t)
	handler := NewHandler(createTestConfig(server.URL), respCache, logger.NewTestLogger(t))

	input := &Input{
		Calls: []mapendpoints.FacetCall{facetCall("habitat", "cave", "pokemon-habitat")},
	}

	first, err := handler.Execute(context.Background(), input)
	assert.NoError(t, err)
	assert.Equal(t, []string{"zubat"}, first.Sets[0].IDs)

	second, err := handler.Execute(context.Background(), input)
	assert.NoError(t, err)
	assert.Equal(t, []string{"zubat"}, second.Sets[0].IDs)

	// Second run was served from the cache.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.True(t, mr.Exists("pokeapi:pokemon-habitat:cave"))
}

func TestHandler_Execute_CacheUnavailableFallsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pokemon_species": [{"name": "zubat"}]}`))
	}))
	defer server.Close()

	respCache, mr := newCacheForTest(t)
	mr.Close() // redis gone

	handler := NewHandler(createTestConfig(server.URL), respCache, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Calls: []mapendpoints.FacetCall{facetCall("habitat", "cave", "pokemon-habitat")},
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"zubat"}, output.Sets[0].IDs)
}

// ==========================
// Enrichment Tests
// ==========================

func TestHandler_FetchTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pokemon/pikachu":
			w.Write([]byte(`{"types": [{"type": {"name": "electric"}}]}`))
		case "/pokemon/dragonite":
			w.Write([]byte(`{"types": [{"type": {"name": "dragon"}}, {"type": {"name": "flying"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	attrs := handler.FetchTypes(context.Background(), []string{"pikachu", "dragonite", "missingno"}, 10)

	assert.Equal(t, []string{"electric"}, attrs["pikachu"])
	assert.Equal(t, []string{"dragon", "flying"}, attrs["dragonite"])
	_, ok := attrs["missingno"]
	assert.False(t, ok)
}

func TestHandler_FetchTypes_HonorsLimit(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"types": [{"type": {"name": "normal"}}]}`))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	ids := []string{"a", "b", "c", "d", "e"}
	attrs := handler.FetchTypes(context.Background(), ids, 2)

	assert.Len(t, attrs, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

// ==========================
// Unit Tests
// ==========================

func TestExtractIDs(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		path     string
		expected []string
	}{
		{
			name:     "array path",
			body:     `{"pokemon_species": [{"name": "a"}, {"name": "b"}]}`,
			path:     "pokemon_species.#.name",
			expected: []string{"a", "b"},
		},
		{
			name:     "single object path",
			body:     `{"name": "pikachu"}`,
			path:     "name",
			expected: []string{"pikachu"},
		},
		{
			name:     "missing path",
			body:     `{"other": true}`,
			path:     "pokemon_species.#.name",
			expected: []string{},
		},
		{
			name:     "empty array",
			body:     `{"pokemon_species": []}`,
			path:     "pokemon_species.#.name",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractIDs([]byte(tt.body), tt.path))
		})
	}
}
