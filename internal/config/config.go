// Package config loads process configuration from the environment
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level settings read from environment variables.
// User-facing simulation settings live in models.Settings.
type Config struct {
	HTTPPort string `envconfig:"HTTP_PORT" default:"8501"`
	LogMode  string `envconfig:"LOG_MODE" default:"development"` // "production" for JSON logs

	ModelPath     string `envconfig:"MODEL_PATH" default:"model/halflife.json"`
	DrugTablePath string `envconfig:"DRUG_TABLE_PATH"` // Optional YAML overlay
	SettingsPath  string `envconfig:"SETTINGS_PATH"`   // Empty means the user config dir

	// Optional S3-compatible export target
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"bioclear"`
}

// S3Enabled reports whether enough is configured to upload exports
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Key != "" && c.S3Secret != ""
}

// Load reads an optional .env file and decodes the environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
