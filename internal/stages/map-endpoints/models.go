// internal/stages/map-endpoints/models.go
package mapendpoints

import "pokemon-research/internal/models"

type Input struct {
	Intent models.Intent  `json:"intent"`
	Facets []models.Facet `json:"facets"`
}

// FacetCall keeps the originating facet attached to each endpoint call so
// the merger can later tell which facet contributed which candidate set.
type FacetCall struct {
	Facet models.Facet        `json:"facet"`
	Call  models.EndpointCall `json:"call"`
}

type Output struct {
	Calls []FacetCall `json:"calls"`
	// Dropped lists facets whose attribute had no endpoint wiring.
	Dropped []models.Facet `json:"dropped,omitempty"`
}
