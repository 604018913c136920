package config

import (
	"fmt"
)

// Validate enforces the startup invariants. Any violation is a
// config_invalid error and the process must not start.
func Validate(cfg *Config) error {
	switch cfg.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("config_invalid: environment %q must be development or production", cfg.Environment)
	}

	if cfg.SigningKey == "" {
		return fmt.Errorf("config_invalid: signing_key is required")
	}
	if cfg.IsProduction() && len(cfg.TrustedServiceAccounts) == 0 {
		return fmt.Errorf("config_invalid: trusted_service_accounts must be non-empty in production")
	}
	if cfg.UsePBKDF2 && cfg.PBKDF2Iterations < 100_000 {
		return fmt.Errorf("config_invalid: pbkdf2_iterations %d is below the 100000 minimum", cfg.PBKDF2Iterations)
	}

	switch cfg.ModelType {
	case ModelTypePrimary, ModelTypeAccelerated:
	default:
		return fmt.Errorf("config_invalid: model_type %q must be primary or accelerated", cfg.ModelType)
	}

	switch cfg.StoreBackend {
	case StoreBackendDocument, StoreBackendMemory, StoreBackendFile:
	default:
		return fmt.Errorf("config_invalid: session_store_backend %q must be document, memory or file", cfg.StoreBackend)
	}
	if cfg.StoreBackend == StoreBackendFile && cfg.FileStoreDir == "" {
		return fmt.Errorf("config_invalid: file_store_dir is required for the file backend")
	}

	if cfg.MaxWorkflowDuration <= 0 {
		return fmt.Errorf("config_invalid: max_workflow_duration_seconds must be positive")
	}
	if cfg.MaxConcurrentWorkflows <= 0 {
		return fmt.Errorf("config_invalid: max_concurrent_workflows must be positive")
	}
	if cfg.HistoryCapacity <= 0 {
		return fmt.Errorf("config_invalid: history_capacity_per_session must be positive")
	}
	if cfg.EventBufferCap <= 0 {
		return fmt.Errorf("config_invalid: event_buffer_capacity must be positive")
	}
	if cfg.MessageQueueCap <= 0 {
		return fmt.Errorf("config_invalid: message_queue_capacity must be positive")
	}
	if cfg.ClockSkewTolerance < 0 {
		return fmt.Errorf("config_invalid: clock_skew_tolerance_seconds must not be negative")
	}
	if cfg.SessionRetentionDays < 0 {
		return fmt.Errorf("config_invalid: session_retention_days must not be negative")
	}
	if cfg.SessionRetentionDays > 0 && cfg.CleanupInterval <= 0 {
		return fmt.Errorf("config_invalid: cleanup_interval_seconds must be positive when retention is enabled")
	}
	return nil
}
