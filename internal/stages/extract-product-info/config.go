// internal/stages/extract-product-info/config.go
package extractproductinfo

import "time"

type Config struct {
	HTMLMaxChars int
	// Budget is the stage's time allowance. The orchestrator owns the
	// context deadline; the stage only reports it in timeout errors.
	Budget time.Duration
}

func LoadConfig() *Config {
	return &Config{
		HTMLMaxChars: 30000,
		Budget:       10 * time.Second,
	}
}
