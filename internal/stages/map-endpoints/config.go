// internal/stages/map-endpoints/config.go
package mapendpoints

type Config struct{}

func LoadConfig() *Config {
	return &Config{}
}
