// internal/common/config/loader.go
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
	// Load .env from multiple possible locations
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DB_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// Load base config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Merge environment-specific config
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// Expand ${VAR} placeholders
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// Direct override if still empty
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from several locations so binaries and tests can
// run from different directories.
func loadEnvFile() {
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up (for tests in test/e2e/)
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found in any location, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}

	// Storage overrides
	if cfg.Storage.S3.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Storage.S3.Region = val
		}
	}
	if cfg.Storage.S3.Bucket == "" {
		if val := os.Getenv("S3_BUCKET"); val != "" {
			cfg.Storage.S3.Bucket = val
		}
	}

	// Wardrobe overrides
	if cfg.Wardrobe.CatalogPath == "" {
		if val := os.Getenv("WARDROBE_CATALOG_PATH"); val != "" {
			cfg.Wardrobe.CatalogPath = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
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

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		// The full pipeline can legitimately run for about a minute.
		cfg.Server.WriteTimeout = 90000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Stage budget defaults
	if cfg.Pipeline.ExtractTimeout == 0 {
		cfg.Pipeline.ExtractTimeout = 10000
	}
	if cfg.Pipeline.AnalysisTimeout == 0 {
		cfg.Pipeline.AnalysisTimeout = 15000
	}
	if cfg.Pipeline.PrimaryTimeout == 0 {
		cfg.Pipeline.PrimaryTimeout = 20000
	}
	if cfg.Pipeline.AngleTimeout == 0 {
		cfg.Pipeline.AngleTimeout = 15000
	}
	if cfg.Pipeline.HTMLMaxChars == 0 {
		cfg.Pipeline.HTMLMaxChars = 30000
	}
	if cfg.Pipeline.MaxImageRefs == 0 {
		cfg.Pipeline.MaxImageRefs = 5
	}
	if cfg.Pipeline.MaxWardrobeRefs == 0 {
		cfg.Pipeline.MaxWardrobeRefs = 3
	}

	// Model defaults
	if cfg.Models.Structured == "" {
		cfg.Models.Structured = "gemini-3-flash-preview"
	}
	if cfg.Models.PrimaryImage == "" {
		cfg.Models.PrimaryImage = "gemini-3-pro-image-preview"
	}
	if cfg.Models.AngleImage == "" {
		cfg.Models.AngleImage = "gemini-2.5-flash-image"
	}
	if cfg.Models.Temperature == 0 {
		cfg.Models.Temperature = 0.5
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Storage defaults
	if cfg.Storage.HTTP.FetchTimeout == 0 {
		cfg.Storage.HTTP.FetchTimeout = 10000
	}

	// Wardrobe defaults
	if cfg.Wardrobe.Source == "" {
		cfg.Wardrobe.Source = "catalog"
	}

	// Status defaults
	if cfg.Status.ChannelPrefix == "" {
		cfg.Status.ChannelPrefix = "styling:status:"
	}
	if cfg.Status.RetainTTL == 0 {
		cfg.Status.RetainTTL = 3600000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Wardrobe.Source {
	case "catalog":
		if cfg.Wardrobe.CatalogPath == "" {
			return fmt.Errorf("wardrobe.catalog_path is required when wardrobe.source is catalog")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("wardrobe.source must be catalog or postgres, got %q", cfg.Wardrobe.Source)
	}

	if cfg.Status.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when status publishing is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// StageBudget returns the time budget for a named pipeline stage.
func StageBudget(cfg *Config, stage string) time.Duration {
	switch stage {
	case "extract":
		return GetDuration(cfg.Pipeline.ExtractTimeout)
	case "analysis":
		return GetDuration(cfg.Pipeline.AnalysisTimeout)
	case "primary":
		return GetDuration(cfg.Pipeline.PrimaryTimeout)
	case "angle":
		return GetDuration(cfg.Pipeline.AngleTimeout)
	default:
		return 15 * time.Second
	}
}
