// internal/stages/generate-tryon-images/config.go
package generatetryonimages

import "time"

type Config struct {
	// PrimaryBudget is reported in timeout errors; the orchestrator owns
	// the primary call's context deadline.
	PrimaryBudget time.Duration
	// AngleBudget bounds each fan-out call. The stage owns these deadlines
	// because the three calls run concurrently under one parent context.
	AngleBudget time.Duration
	// MaxWardrobeRefs caps how many selected-item images ride along as
	// references. With the user photo and the product capture this keeps
	// the total at or under the model's five-reference limit.
	MaxWardrobeRefs int
}

func LoadConfig() *Config {
	return &Config{
		PrimaryBudget:   20 * time.Second,
		AngleBudget:     15 * time.Second,
		MaxWardrobeRefs: 3,
	}
}
