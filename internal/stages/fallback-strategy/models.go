// internal/stages/fallback-strategy/models.go
package fallbackstrategy

import "pokemon-research/internal/models"

type Input struct {
	Query  models.Query   `json:"query"`
	Intent models.Intent  `json:"intent"`
	Facets []models.Facet `json:"facets"`
}

type Output struct {
	// IDs is the candidate list the relaxation produced. Empty when Exhausted.
	IDs []string `json:"ids"`
	// Relaxations describes the steps taken, in order, for the report.
	Relaxations []string `json:"relaxations"`
	// Exhausted is set when every relaxation step was spent without finding
	// any candidates. It maps to the NO_MATCHES terminal status.
	Exhausted bool `json:"exhausted"`
}
