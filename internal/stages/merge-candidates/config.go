// internal/stages/merge-candidates/config.go
package mergecandidates

// Config is empty today; the merge stage is pure computation. It exists so
// the stage constructor matches the shape of the others.
type Config struct{}

func LoadConfig() *Config {
	return &Config{}
}
