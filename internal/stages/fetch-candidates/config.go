// internal/stages/fetch-candidates/config.go
package fetchcandidates

import "time"

type Config struct {
	BaseURL        string
	Timeout        time.Duration // per endpoint call
	MaxRetries     int
	MaxInFlight    int
	RequestsPerSec float64
	RateLimitBurst int
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:        "https://pokeapi.co/api/v2",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		MaxInFlight:    5,
		RequestsPerSec: 2,
		RateLimitBurst: 2,
	}
}
