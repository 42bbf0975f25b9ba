// internal/stages/fallback-strategy/config.go
package fallbackstrategy

type Config struct {
	// MaxDepth bounds how many relaxation attempts a single query may make.
	MaxDepth int
}

func LoadConfig() *Config {
	return &Config{
		MaxDepth: 3,
	}
}
