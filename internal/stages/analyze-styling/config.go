// internal/stages/analyze-styling/config.go
package analyzestyling

import "time"

type Config struct {
	// Budget is the stage's time allowance, owned by the orchestrator and
	// reported here only in timeout errors.
	Budget time.Duration
	// NeutralFitScore is the score handed out when the wardrobe offers no
	// candidates and the model is not consulted.
	NeutralFitScore int
}

func LoadConfig() *Config {
	return &Config{
		Budget:          15 * time.Second,
		NeutralFitScore: 50,
	}
}
