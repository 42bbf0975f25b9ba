package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like REASONING_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Per-environment overlay, ignored if absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env in the usual places, the project root included, so
// tests running from nested package dirs still pick it up.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills credentials straight from the environment when
// the YAML left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Reasoning.APIKey == "" {
		if val := os.Getenv("REASONING_API_KEY"); val != "" {
			cfg.Reasoning.APIKey = val
		}
	}
	if cfg.Reasoning.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.Reasoning.APIKey = val
		}
	}
	if cfg.Reasoning.BaseURL == "" {
		if val := os.Getenv("REASONING_BASE_URL"); val != "" {
			cfg.Reasoning.BaseURL = val
		}
	}
	if cfg.Cache.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Cache.Address = val
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pokemon-research"
	}

	if cfg.Reasoning.BaseURL == "" {
		cfg.Reasoning.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Reasoning.Model == "" {
		cfg.Reasoning.Model = "gpt-4o"
	}
	if cfg.Reasoning.Timeout == 0 {
		cfg.Reasoning.Timeout = 60000
	}
	if cfg.Reasoning.MaxRetries == 0 {
		cfg.Reasoning.MaxRetries = 2
	}

	if cfg.PokeAPI.BaseURL == "" {
		cfg.PokeAPI.BaseURL = "https://pokeapi.co/api/v2"
	}
	if cfg.PokeAPI.Timeout == 0 {
		cfg.PokeAPI.Timeout = 30000
	}
	if cfg.PokeAPI.MaxRetries == 0 {
		cfg.PokeAPI.MaxRetries = 3
	}
	if cfg.PokeAPI.MaxInFlight == 0 {
		cfg.PokeAPI.MaxInFlight = 5
	}
	if cfg.PokeAPI.RequestsPerSec == 0 {
		cfg.PokeAPI.RequestsPerSec = 2
	}
	if cfg.PokeAPI.RateLimitBurst == 0 {
		cfg.PokeAPI.RateLimitBurst = 2
	}
	if cfg.PokeAPI.EnrichmentLimit == 0 {
		cfg.PokeAPI.EnrichmentLimit = 10
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 3600
	}

	if cfg.Pipeline.MaxRelaxationDepth == 0 {
		cfg.Pipeline.MaxRelaxationDepth = 3
	}
	if cfg.Pipeline.CandidateCap == 0 {
		cfg.Pipeline.CandidateCap = 30
	}

	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = "reports"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning.api_key is required")
	}

	if cfg.PokeAPI.BaseURL == "" {
		return fmt.Errorf("pokeapi.base_url is required")
	}

	if cfg.Cache.Enabled && cfg.Cache.Address == "" {
		return fmt.Errorf("cache.address is required when cache is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
