// internal/stages/rank-results/config.go
package rankresults

import "time"

type Config struct {
	Timeout time.Duration
	// CandidateCap bounds how many merged candidates are sent to the
	// reasoning service in one ranking prompt.
	CandidateCap int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      60 * time.Second,
		CandidateCap: 30,
	}
}
