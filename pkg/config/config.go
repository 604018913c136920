// Package config loads and validates the navigator runtime configuration
// from environment variables and an optional navigator.yaml file.
package config

import (
	"time"
)

// Environment selects development or production behaviour.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ModelType selects the inference path agents should prefer.
type ModelType string

const (
	ModelTypePrimary     ModelType = "primary"
	ModelTypeAccelerated ModelType = "accelerated"
)

// StoreBackend selects the session store implementation.
type StoreBackend string

const (
	StoreBackendDocument StoreBackend = "document"
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendFile     StoreBackend = "file"
)

// Config is the complete runtime configuration. Built by Load, validated
// by Validate, then treated as read-only.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Identity & signing
	TrustedServiceAccounts []string `yaml:"trusted_service_accounts"`
	SigningKey             string   `yaml:"signing_key"`
	UsePBKDF2              bool     `yaml:"use_pbkdf2"`
	PBKDF2Iterations       int      `yaml:"pbkdf2_iterations"`

	// ID-token verification (optional; enables the bearer-JWT receiver path)
	IDTokenAudience string `yaml:"id_token_audience"`
	IDTokenJWKSURL  string `yaml:"id_token_jwks_url"`

	// Workflow
	ModelType              ModelType `yaml:"model_type"`
	MaxWorkflowDuration    time.Duration
	MaxConcurrentWorkflows int `yaml:"max_concurrent_workflows"`

	// Session store
	StoreBackend       StoreBackend  `yaml:"session_store_backend"`
	StoreTimeout       time.Duration // per-call bound on store operations
	FileStoreDir       string        `yaml:"file_store_dir"`
	HistoryCapacity    int           `yaml:"history_capacity_per_session"`
	EventBufferCap     int           `yaml:"event_buffer_capacity"`
	MessageQueueCap    int           `yaml:"message_queue_capacity"`
	ClockSkewTolerance time.Duration

	// Retention. Zero days disables the sweeper.
	SessionRetentionDays int           `yaml:"session_retention_days"`
	CleanupInterval      time.Duration // how often the retention sweep runs

	// HTTP surface
	HTTPPort string `yaml:"http_port"`
}

// IsProduction reports whether the runtime is in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func defaults() *Config {
	return &Config{
		Environment:            EnvDevelopment,
		PBKDF2Iterations:       100_000,
		ModelType:              ModelTypePrimary,
		MaxWorkflowDuration:    600 * time.Second,
		MaxConcurrentWorkflows: 8,
		StoreBackend:           StoreBackendMemory,
		StoreTimeout:           2 * time.Second,
		FileStoreDir:           "./data/sessions",
		HistoryCapacity:        1_000,
		EventBufferCap:         256,
		MessageQueueCap:        1_024,
		ClockSkewTolerance:     5 * time.Second,
		SessionRetentionDays:   30,
		CleanupInterval:        time.Hour,
		HTTPPort:               "8080",
	}
}
