package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlFile mirrors the env keys for the optional navigator.yaml file.
// Environment variables win over YAML values.
type yamlFile struct {
	Environment            string   `yaml:"environment"`
	TrustedServiceAccounts []string `yaml:"trusted_service_accounts"`
	SigningKey             string   `yaml:"signing_key"`
	UsePBKDF2              *bool    `yaml:"use_pbkdf2"`
	PBKDF2Iterations       *int     `yaml:"pbkdf2_iterations"`
	IDTokenAudience        string   `yaml:"id_token_audience"`
	IDTokenJWKSURL         string   `yaml:"id_token_jwks_url"`
	ModelType              string   `yaml:"model_type"`
	MaxWorkflowDurationSec *int     `yaml:"max_workflow_duration_seconds"`
	MaxConcurrentWorkflows *int     `yaml:"max_concurrent_workflows"`
	SessionStoreBackend    string   `yaml:"session_store_backend"`
	FileStoreDir           string   `yaml:"file_store_dir"`
	HistoryCapacity        *int     `yaml:"history_capacity_per_session"`
	EventBufferCapacity    *int     `yaml:"event_buffer_capacity"`
	MessageQueueCapacity   *int     `yaml:"message_queue_capacity"`
	ClockSkewToleranceSec  *int     `yaml:"clock_skew_tolerance_seconds"`
	SessionRetentionDays   *int     `yaml:"session_retention_days"`
	CleanupIntervalSec     *int     `yaml:"cleanup_interval_seconds"`
	HTTPPort               string   `yaml:"http_port"`
}

// Load builds a Config from the optional YAML file at path (empty or
// missing file is fine) overlaid with environment variables, then
// validates it. Returns a config_invalid error on any violation.
func Load(yamlPath string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if err := applyYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"model_type", cfg.ModelType,
		"use_pbkdf2", cfg.UsePBKDF2,
		"trusted_accounts", len(cfg.TrustedServiceAccounts))
	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No YAML config file, using environment only", "path", path)
			return nil
		}
		return fmt.Errorf("config_invalid: cannot read %s: %w", path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config_invalid: cannot parse %s: %w", path, err)
	}

	if f.Environment != "" {
		cfg.Environment = Environment(f.Environment)
	}
	if len(f.TrustedServiceAccounts) > 0 {
		cfg.TrustedServiceAccounts = f.TrustedServiceAccounts
	}
	if f.SigningKey != "" {
		cfg.SigningKey = f.SigningKey
	}
	if f.UsePBKDF2 != nil {
		cfg.UsePBKDF2 = *f.UsePBKDF2
	}
	if f.PBKDF2Iterations != nil {
		cfg.PBKDF2Iterations = *f.PBKDF2Iterations
	}
	if f.IDTokenAudience != "" {
		cfg.IDTokenAudience = f.IDTokenAudience
	}
	if f.IDTokenJWKSURL != "" {
		cfg.IDTokenJWKSURL = f.IDTokenJWKSURL
	}
	if f.ModelType != "" {
		cfg.ModelType = ModelType(f.ModelType)
	}
	if f.MaxWorkflowDurationSec != nil {
		cfg.MaxWorkflowDuration = time.Duration(*f.MaxWorkflowDurationSec) * time.Second
	}
	if f.MaxConcurrentWorkflows != nil {
		cfg.MaxConcurrentWorkflows = *f.MaxConcurrentWorkflows
	}
	if f.SessionStoreBackend != "" {
		cfg.StoreBackend = StoreBackend(f.SessionStoreBackend)
	}
	if f.FileStoreDir != "" {
		cfg.FileStoreDir = f.FileStoreDir
	}
	if f.HistoryCapacity != nil {
		cfg.HistoryCapacity = *f.HistoryCapacity
	}
	if f.EventBufferCapacity != nil {
		cfg.EventBufferCap = *f.EventBufferCapacity
	}
	if f.MessageQueueCapacity != nil {
		cfg.MessageQueueCap = *f.MessageQueueCapacity
	}
	if f.ClockSkewToleranceSec != nil {
		cfg.ClockSkewTolerance = time.Duration(*f.ClockSkewToleranceSec) * time.Second
	}
	if f.SessionRetentionDays != nil {
		cfg.SessionRetentionDays = *f.SessionRetentionDays
	}
	if f.CleanupIntervalSec != nil {
		cfg.CleanupInterval = time.Duration(*f.CleanupIntervalSec) * time.Second
	}
	if f.HTTPPort != "" {
		cfg.HTTPPort = f.HTTPPort
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("NAVIGATOR_ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("NAVIGATOR_TRUSTED_SERVICE_ACCOUNTS"); v != "" {
		parts := strings.Split(v, ",")
		accounts := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				accounts = append(accounts, trimmed)
			}
		}
		cfg.TrustedServiceAccounts = accounts
	}
	if v := os.Getenv("NAVIGATOR_SIGNING_KEY"); v != "" {
		cfg.SigningKey = v
	}
	if v := os.Getenv("NAVIGATOR_USE_PBKDF2"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config_invalid: NAVIGATOR_USE_PBKDF2=%q is not a boolean", v)
		}
		cfg.UsePBKDF2 = b
	}
	if err := envInt("NAVIGATOR_PBKDF2_ITERATIONS", &cfg.PBKDF2Iterations); err != nil {
		return err
	}
	if v := os.Getenv("NAVIGATOR_ID_TOKEN_AUDIENCE"); v != "" {
		cfg.IDTokenAudience = v
	}
	if v := os.Getenv("NAVIGATOR_ID_TOKEN_JWKS_URL"); v != "" {
		cfg.IDTokenJWKSURL = v
	}
	if v := os.Getenv("NAVIGATOR_MODEL_TYPE"); v != "" {
		cfg.ModelType = ModelType(v)
	}
	if err := envSeconds("NAVIGATOR_MAX_WORKFLOW_DURATION_SECONDS", &cfg.MaxWorkflowDuration); err != nil {
		return err
	}
	if err := envInt("NAVIGATOR_MAX_CONCURRENT_WORKFLOWS", &cfg.MaxConcurrentWorkflows); err != nil {
		return err
	}
	if v := os.Getenv("NAVIGATOR_SESSION_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = StoreBackend(v)
	}
	if v := os.Getenv("NAVIGATOR_FILE_STORE_DIR"); v != "" {
		cfg.FileStoreDir = v
	}
	if err := envInt("NAVIGATOR_HISTORY_CAPACITY", &cfg.HistoryCapacity); err != nil {
		return err
	}
	if err := envInt("NAVIGATOR_EVENT_BUFFER_CAPACITY", &cfg.EventBufferCap); err != nil {
		return err
	}
	if err := envInt("NAVIGATOR_MESSAGE_QUEUE_CAPACITY", &cfg.MessageQueueCap); err != nil {
		return err
	}
	if err := envSeconds("NAVIGATOR_CLOCK_SKEW_TOLERANCE_SECONDS", &cfg.ClockSkewTolerance); err != nil {
		return err
	}
	if err := envInt("NAVIGATOR_SESSION_RETENTION_DAYS", &cfg.SessionRetentionDays); err != nil {
		return err
	}
	if err := envSeconds("NAVIGATOR_CLEANUP_INTERVAL_SECONDS", &cfg.CleanupInterval); err != nil {
		return err
	}
	if v := os.Getenv("NAVIGATOR_HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config_invalid: %s=%q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func envSeconds(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config_invalid: %s=%q is not an integer", key, v)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}
