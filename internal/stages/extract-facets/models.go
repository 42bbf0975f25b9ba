// internal/stages/extract-facets/models.go
package extractfacets

import "pokemon-research/internal/models"

type Input struct {
	Query models.Query `json:"query"`
}

type Output struct {
	Intent models.Intent  `json:"intent"`
	Facets []models.Facet `json:"facets"`
	// Degraded marks that extraction failed and the defaults were substituted;
	// the pipeline routes such runs through the fallback strategy.
	Degraded bool `json:"degraded,omitempty"`
}
