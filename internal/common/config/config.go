// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Models        ModelsConfig       `mapstructure:"models"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Wardrobe      WardrobeConfig     `mapstructure:"wardrobe"`
	Status        StatusConfig       `mapstructure:"status"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP front door settings.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

// PipelineConfig holds the per-stage time budgets and payload limits.
// Budgets are owned here, not by the stages: each stage receives an
// already-bounded context.
type PipelineConfig struct {
	ExtractTimeout  int `mapstructure:"extract_timeout"`  // milliseconds
	AnalysisTimeout int `mapstructure:"analysis_timeout"` // milliseconds
	PrimaryTimeout  int `mapstructure:"primary_timeout"`  // milliseconds
	AngleTimeout    int `mapstructure:"angle_timeout"`    // milliseconds per angle

	HTMLMaxChars    int `mapstructure:"html_max_chars"`
	MaxImageRefs    int `mapstructure:"max_image_refs"`
	MaxWardrobeRefs int `mapstructure:"max_wardrobe_refs"`
}

// ModelsConfig names the models behind each capability.
type ModelsConfig struct {
	Structured   string  `mapstructure:"structured"`
	PrimaryImage string  `mapstructure:"primary_image"`
	AngleImage   string  `mapstructure:"angle_image"`
	Temperature  float32 `mapstructure:"temperature"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Specific Configuration Sections ---

// StorageConfig holds settings for resolving image handles.
type StorageConfig struct {
	S3 struct {
		Region string `mapstructure:"region"`
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"s3"`
	HTTP struct {
		FetchTimeout int `mapstructure:"fetch_timeout"` // milliseconds
	} `mapstructure:"http"`
}

// WardrobeConfig selects where profile and wardrobe data come from.
// Source is either "catalog" (a JSON file) or "postgres".
type WardrobeConfig struct {
	Source      string `mapstructure:"source"`
	CatalogPath string `mapstructure:"catalog_path"`
}

// StatusConfig controls the Redis progress publisher.
type StatusConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	RetainTTL     int    `mapstructure:"retain_ttl"` // milliseconds
}

// NotificationConfig holds settings for the completion notifier.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
		// OnFailureOnly limits texts to failed runs; successes go by email.
		OnFailureOnly bool `mapstructure:"on_failure_only"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
