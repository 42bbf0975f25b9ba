// internal/stages/rank-results/models.go
package rankresults

import "pokemon-research/internal/models"

type Input struct {
	Query models.Query `json:"query"`
	// IDs is the merged candidate list, already deduplicated and sorted.
	IDs []string `json:"ids"`
	// Attributes carries optional per-candidate enrichment (such as type
	// names) included in the ranking prompt.
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type Output struct {
	Result models.RankedResult `json:"result"`
}

type rankingResponse struct {
	Ranking []rankingEntry `json:"ranking"`
}

type rankingEntry struct {
	Identifier  string `json:"identifier"`
	Explanation string `json:"explanation"`
}
