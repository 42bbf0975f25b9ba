// internal/stages/fetch-candidates/models.go
package fetchcandidates

import (
	mapendpoints "pokemon-research/internal/stages/map-endpoints"

	"pokemon-research/internal/models"
)

type Input struct {
	Calls []mapendpoints.FacetCall `json:"calls"`
}

// Output.Sets is index-aligned with Input.Calls, so which facet contributed
// which results stays traceable to the caller.
type Output struct {
	Sets []models.CandidateSet `json:"sets"`
}
