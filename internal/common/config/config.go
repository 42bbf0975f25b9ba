package config

// Config is the main application configuration struct. It is assembled once
// at startup and passed explicitly into each stage at construction; stages
// never read the environment themselves.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	PokeAPI   PokeAPIConfig   `mapstructure:"pokeapi"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ReasoningConfig holds settings for the external reasoning service used by
// facet extraction and ranking.
type ReasoningConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// PokeAPIConfig holds settings for the data-API gateway.
type PokeAPIConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	Timeout         int     `mapstructure:"timeout"` // milliseconds, per call
	MaxRetries      int     `mapstructure:"max_retries"`
	MaxInFlight     int     `mapstructure:"max_in_flight"`
	RequestsPerSec  float64 `mapstructure:"requests_per_sec"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
	EnrichmentLimit int     `mapstructure:"enrichment_limit"`
}

type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// PipelineConfig holds pipeline-wide knobs.
type PipelineConfig struct {
	MaxRelaxationDepth int `mapstructure:"max_relaxation_depth"`
	CandidateCap       int `mapstructure:"candidate_cap"`
}

type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
