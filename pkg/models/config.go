package models

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
}

// ActorConfig is the identity used when no --as flag is given.
type ActorConfig struct {
	UserID int64 `yaml:"user_id" mapstructure:"user_id"`
	Admin  bool  `yaml:"admin" mapstructure:"admin"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NotificationConfig holds the assignment notification settings.
type NotificationConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL      string `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
	FrontendBaseURL string `yaml:"frontend_base_url" mapstructure:"frontend_base_url"`
}

// AlertConfig holds thresholds for the alert engine.
type AlertConfig struct {
	MaxAuditFailures        int `yaml:"max_audit_failures" mapstructure:"max_audit_failures"`
	MaxNotificationFailures int `yaml:"max_notification_failures" mapstructure:"max_notification_failures"`
}

// GlobalConfig holds system-wide settings read from .mptconfig via Viper.
type GlobalConfig struct {
	Storage       StorageConfig      `yaml:"storage" mapstructure:"storage"`
	Actor         ActorConfig        `yaml:"actor" mapstructure:"actor"`
	Log           LogConfig          `yaml:"log" mapstructure:"log"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
}
