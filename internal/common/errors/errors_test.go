// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_Error(t *testing.T) {
	err := NewMappingGapError("flavor")

	assert.Equal(t, "StandardError[MAPPING_GAP]: No endpoint mapping for attribute", err.Error())
	assert.Equal(t, "attribute: flavor", err.Details)
	assert.False(t, err.Retryable)
	assert.False(t, err.Timestamp.IsZero())
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		retryable bool
	}{
		{"extraction failures are retryable", NewExtractionFailedError(fmt.Errorf("boom")), true},
		{"reasoning timeouts are retryable", NewReasoningTimeoutError("rank-results"), true},
		{"fetch failures are retryable", NewFetchFailedError("type", "electric", fmt.Errorf("boom")), true},
		{"rate limits are retryable", NewRateLimitedError("pokemon"), true},
		{"ranking failures are not", NewRankingFailedError(fmt.Errorf("boom")), false},
		{"zero candidates is not", NewZeroCandidatesError("pokemon_filtering"), false},
		{"no matches is not", NewNoMatchesError(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestIsSignal(t *testing.T) {
	assert.True(t, IsSignal(ErrCodeZeroCandidates))
	assert.True(t, IsSignal(ErrCodeNoMatches))

	assert.False(t, IsSignal(ErrCodeExtractionFailed))
	assert.False(t, IsSignal(ErrCodeFetchFailed))
	assert.False(t, IsSignal(ErrCodeMappingGap))
}
