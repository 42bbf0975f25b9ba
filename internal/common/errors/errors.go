// Package errors provides the standardized error taxonomy of the research
// pipeline. Most conditions here are signals that degrade the result rather
// than abort the query; only reasoning-service timeouts and exhausted
// fallback strategies surface to the caller.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Reasoning-service boundary.
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	ErrCodeReasoningTimeout ErrorCode = "REASONING_TIMEOUT"
	ErrCodeRankingFailed    ErrorCode = "RANKING_FAILED"

	// Endpoint mapping.
	ErrCodeMappingGap ErrorCode = "MAPPING_GAP"

	// Data-API gateway.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Merge / fallback signals, not failures.
	ErrCodeZeroCandidates ErrorCode = "ZERO_CANDIDATES"
	ErrCodeNoMatches      ErrorCode = "NO_MATCHES"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewExtractionFailedError marks a reasoning-service extraction failure. The
// pipeline recovers by defaulting to empty facets and the fallback strategy.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Facet extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReasoningTimeoutError marks a reasoning-service timeout. This is the one
// condition that fails the whole query when it happens during ranking with no
// passthrough possible.
func NewReasoningTimeoutError(stage string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReasoningTimeout,
		Message:   "Reasoning service timeout",
		Details:   fmt.Sprintf("stage: %s", stage),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRankingFailedError marks an unparseable ranking response. Recovered by
// unranked passthrough.
func NewRankingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRankingFailed,
		Message:   "Ranking response could not be parsed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMappingGapError marks an attribute with no endpoint wiring. Recovered by
// silently dropping the facet.
func NewMappingGapError(attribute string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMappingGap,
		Message:   "No endpoint mapping for attribute",
		Details:   fmt.Sprintf("attribute: %s", attribute),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError marks a per-call fetch failure after retries. Recovered
// by an empty candidate set for that call.
func NewFetchFailedError(resource, parameter string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Endpoint fetch failed",
		Details:   fmt.Sprintf("resource: %s, parameter: %s, error: %s", resource, parameter, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError marks a quota rejection from the data API.
func NewRateLimitedError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Data API rate limit hit",
		Details:   fmt.Sprintf("resource: %s", resource),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewZeroCandidatesError signals an empty merge result. Routed to the
// fallback strategy, never surfaced as a failure.
func NewZeroCandidatesError(intent string) *StandardError {
	return &StandardError{
		Code:      ErrCodeZeroCandidates,
		Message:   "Merge produced zero candidates",
		Details:   fmt.Sprintf("intent: %s", intent),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoMatchesError is the terminal outcome after all fallback relaxations
// are exhausted. Non-error from the user's perspective.
func NewNoMatchesError(depth int) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoMatches,
		Message:   "No matches after exhausting fallback strategies",
		Details:   fmt.Sprintf("relaxationDepth: %d", depth),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsSignal reports whether the code is a pipeline routing signal rather than
// a real failure.
func IsSignal(code ErrorCode) bool {
	return code == ErrCodeZeroCandidates || code == ErrCodeNoMatches
}
