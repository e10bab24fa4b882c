// Package core contains the business logic of mpt: the access policy, the
// task mutation and audit-diff engine, and the project, membership, task
// and assignment services built on top of them.
package core

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/mpt/pkg/models"
)

// ConfigFileName is the name of the configuration file, without extension.
const ConfigFileName = ".mptconfig"

// ConfigurationManager loads and validates the .mptconfig configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and MPT_* environment overrides.
type viperConfigManager struct {
	// basePath is the directory where .mptconfig resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads the
// configuration file from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Storage: models.StorageConfig{Driver: "file"},
		Log:     models.LogConfig{Level: "info", Format: "text"},
		Notifications: models.NotificationConfig{
			FrontendBaseURL: "http://localhost:8080",
		},
		Alerts: models.AlertConfig{
			MaxAuditFailures:        0,
			MaxNotificationFailures: 3,
		},
	}
}

// LoadGlobalConfig reads .mptconfig from the base path. Missing keys, or a
// missing file, fall back to defaults; MPT_* environment variables override
// both (MPT_STORAGE_DRIVER overrides storage.driver).
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	def := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("MPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.driver", def.Storage.Driver)
	v.SetDefault("storage.postgres_dsn", def.Storage.PostgresDSN)
	v.SetDefault("actor.user_id", def.Actor.UserID)
	v.SetDefault("actor.admin", def.Actor.Admin)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("notifications.enabled", def.Notifications.Enabled)
	v.SetDefault("notifications.webhook_url", def.Notifications.WebhookURL)
	v.SetDefault("notifications.frontend_base_url", def.Notifications.FrontendBaseURL)
	v.SetDefault("alerts.max_audit_failures", def.Alerts.MaxAuditFailures)
	v.SetDefault("alerts.max_notification_failures", def.Alerts.MaxNotificationFailures)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
		// No config file: defaults plus environment.
	}

	return &models.GlobalConfig{
		Storage: models.StorageConfig{
			Driver:      strings.ToLower(v.GetString("storage.driver")),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Actor: models.ActorConfig{
			UserID: v.GetInt64("actor.user_id"),
			Admin:  v.GetBool("actor.admin"),
		},
		Log: models.LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Notifications: models.NotificationConfig{
			Enabled:         v.GetBool("notifications.enabled"),
			WebhookURL:      v.GetString("notifications.webhook_url"),
			FrontendBaseURL: v.GetString("notifications.frontend_base_url"),
		},
		Alerts: models.AlertConfig{
			MaxAuditFailures:        v.GetInt("alerts.max_audit_failures"),
			MaxNotificationFailures: v.GetInt("alerts.max_notification_failures"),
		},
	}, nil
}

var (
	validDrivers    = map[string]bool{"file": true, "postgres": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// ValidateConfig checks cfg for invalid values and reports every problem
// found in a single error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validDrivers[cfg.Storage.Driver] {
		errs = append(errs, fmt.Sprintf("storage.driver %q is invalid, must be one of: file, postgres", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == "postgres" && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, "storage.postgres_dsn is required when storage.driver is postgres")
	}
	if cfg.Actor.UserID < 0 {
		errs = append(errs, fmt.Sprintf("actor.user_id must be non-negative, got %d", cfg.Actor.UserID))
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: text, json", cfg.Log.Format))
	}
	if cfg.Notifications.Enabled {
		if cfg.Notifications.WebhookURL == "" {
			errs = append(errs, "notifications.webhook_url is required when notifications are enabled")
		} else if !isHTTPURL(cfg.Notifications.WebhookURL) {
			errs = append(errs, fmt.Sprintf("notifications.webhook_url %q must be an http(s) URL", cfg.Notifications.WebhookURL))
		}
	}
	if cfg.Notifications.FrontendBaseURL != "" && !isHTTPURL(cfg.Notifications.FrontendBaseURL) {
		errs = append(errs, fmt.Sprintf("notifications.frontend_base_url %q must be an http(s) URL", cfg.Notifications.FrontendBaseURL))
	}
	if cfg.Alerts.MaxAuditFailures < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_audit_failures must be non-negative, got %d", cfg.Alerts.MaxAuditFailures))
	}
	if cfg.Alerts.MaxNotificationFailures < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_notification_failures must be non-negative, got %d", cfg.Alerts.MaxNotificationFailures))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
