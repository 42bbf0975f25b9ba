package models

import "time"

// Query is the raw user question. Immutable once received.
type Query struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Facet is one attribute/value pair extracted from a query. Exclude-flagged
// facets are evaluated only at merge time, never inside an endpoint call.
type Facet struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	Exclude   bool   `json:"exclude"`
}

// EndpointCall is one REST call derived from a facet via the static mapping
// table.
type EndpointCall struct {
	Resource  string `json:"resource"`
	Parameter string `json:"parameter"`
}

// CandidateSet is the set of Pokémon identifiers one endpoint call returned,
// tagged with the facet that produced it.
type CandidateSet struct {
	Facet Facet    `json:"facet"`
	IDs   []string `json:"ids"`
}

// MergedCandidates is the combined, exclusion-filtered, deduplicated result.
// Relaxations records which fallback steps were applied, empty for a clean
// first-pass merge.
type MergedCandidates struct {
	IDs         []string `json:"ids"`
	Relaxations []string `json:"relaxations,omitempty"`
}

// RankedEntry pairs a candidate identifier with the reasoning service's
// explanation for its position.
type RankedEntry struct {
	Identifier  string `json:"identifier"`
	Explanation string `json:"explanation"`
}

// RankedResult is the final presentation order, rank 1 first. Unranked is set
// when the reasoning service failed and candidates passed through in stable
// order without explanations.
type RankedResult struct {
	Entries  []RankedEntry `json:"entries"`
	Unranked bool          `json:"unranked,omitempty"`
}

// ResearchStatus is the terminal state of one pipeline run.
type ResearchStatus string

const (
	StatusCompleted ResearchStatus = "completed"
	StatusNoMatches ResearchStatus = "no_matches"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// ResearchReport is the bundle handed to the report sink. The core defines
// only this shape; rendering and storage belong to the sink.
type ResearchReport struct {
	Query      Query            `json:"query"`
	Intent     Intent           `json:"intent"`
	Facets     []Facet          `json:"facets"`
	Calls      []EndpointCall   `json:"calls"`
	Merged     MergedCandidates `json:"merged"`
	Ranked     RankedResult     `json:"ranked"`
	Status     ResearchStatus   `json:"status"`
	Timings    []StageTiming    `json:"timings,omitempty"`
	FinishedAt time.Time        `json:"finishedAt"`
	Duration   time.Duration    `json:"duration"`
}
