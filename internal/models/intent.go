package models

// Intent is the classified query type. It selects both the endpoint set and
// the merge rule applied to the fetched candidate sets.
type Intent string

const (
	IntentTeamBuilding     Intent = "team_building"
	IntentPokemonFiltering Intent = "pokemon_filtering"
	IntentBattleAnalysis   Intent = "battle_analysis"
	IntentEvolutionInfo    Intent = "evolution_info"
	IntentBreedingInfo     Intent = "breeding_info"
	IntentLocationFinding  Intent = "location_finding"
	IntentStatComparison   Intent = "stat_comparison"
	IntentMoveAnalysis     Intent = "move_analysis"
	IntentAbilityResearch  Intent = "ability_research"
	IntentGeneralQuestion  Intent = "general_question"
)

// CombineRule determines how per-facet candidate sets are combined.
type CombineRule int

const (
	CombineIntersection CombineRule = iota
	CombineUnion
)

func (r CombineRule) String() string {
	if r == CombineUnion {
		return "union"
	}
	return "intersection"
}

// combineRules is the full intent-to-rule table. Filter-style intents demand
// that every facet matches; recommendation-style intents accept any match.
var combineRules = map[Intent]CombineRule{
	IntentTeamBuilding:     CombineUnion,
	IntentPokemonFiltering: CombineIntersection,
	IntentBattleAnalysis:   CombineIntersection,
	IntentEvolutionInfo:    CombineIntersection,
	IntentBreedingInfo:     CombineIntersection,
	IntentLocationFinding:  CombineIntersection,
	IntentStatComparison:   CombineIntersection,
	IntentMoveAnalysis:     CombineIntersection,
	IntentAbilityResearch:  CombineIntersection,
	IntentGeneralQuestion:  CombineUnion,
}

// Rule returns the combination rule bound to the intent. Unknown intents get
// the general-question treatment.
func (i Intent) Rule() CombineRule {
	if rule, ok := combineRules[i]; ok {
		return rule
	}
	return CombineUnion
}

// Known reports whether the intent is part of the closed label set.
func (i Intent) Known() bool {
	_, ok := combineRules[i]
	return ok
}

// KnownIntents lists the closed intent vocabulary in a stable order, used to
// seed the reasoning-service prompt.
func KnownIntents() []Intent {
	return []Intent{
		IntentTeamBuilding,
		IntentPokemonFiltering,
		IntentBattleAnalysis,
		IntentEvolutionInfo,
		IntentBreedingInfo,
		IntentLocationFinding,
		IntentStatComparison,
		IntentMoveAnalysis,
		IntentAbilityResearch,
		IntentGeneralQuestion,
	}
}
