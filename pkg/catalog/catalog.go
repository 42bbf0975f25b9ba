// Package catalog is the declarative registry of PokeAPI resource families
// the system is allowed to call. Keeping the list closed prevents the
// reasoning service from steering the gateway toward invented endpoints.
package catalog

// Resource describes one API resource family and where, in its response
// body, the Pokémon identifier list lives (a gjson path).
type Resource struct {
	Name        string `json:"name"`
	IDsPath     string `json:"idsPath"`
	Description string `json:"description"`
}

var resources = map[string]Resource{
	"pokemon": {
		Name:        "pokemon",
		IDsPath:     "name",
		Description: "Single Pokémon lookup by name or id",
	},
	"pokemon-species": {
		Name:        "pokemon-species",
		IDsPath:     "name",
		Description: "Species-level lookup by name or id",
	},
	"type": {
		Name:        "type",
		IDsPath:     "pokemon.#.pokemon.name",
		Description: "All Pokémon of one type, both offensive and defensive profile",
	},
	"pokemon-color": {
		Name:        "pokemon-color",
		IDsPath:     "pokemon_species.#.name",
		Description: "All species of one Pokédex color",
	},
	"pokemon-shape": {
		Name:        "pokemon-shape",
		IDsPath:     "pokemon_species.#.name",
		Description: "All species of one body shape",
	},
	"pokemon-habitat": {
		Name:        "pokemon-habitat",
		IDsPath:     "pokemon_species.#.name",
		Description: "All species found in one habitat",
	},
	"generation": {
		Name:        "generation",
		IDsPath:     "pokemon_species.#.name",
		Description: "All species introduced in one generation",
	},
	"egg-group": {
		Name:        "egg-group",
		IDsPath:     "pokemon_species.#.name",
		Description: "All species sharing one egg group",
	},
	"ability": {
		Name:        "ability",
		IDsPath:     "pokemon.#.pokemon.name",
		Description: "All Pokémon that can have one ability",
	},
	"move": {
		Name:        "move",
		IDsPath:     "learned_by_pokemon.#.name",
		Description: "All Pokémon that can learn one move",
	},
}

// Lookup returns the catalog entry for a resource family.
func Lookup(name string) (Resource, bool) {
	r, ok := resources[name]
	return r, ok
}

// Valid reports whether the resource family is part of the closed catalog.
func Valid(name string) bool {
	_, ok := resources[name]
	return ok
}
