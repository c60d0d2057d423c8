package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Rates    RatesConfig
	Prober   ProberConfig
	Watcher  WatcherConfig
	Notify   NotifyConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// RatesConfig holds price feed settings
type RatesConfig struct {
	BaseURL         string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
}

// ProberConfig holds blockchain indexer settings
type ProberConfig struct {
	BaseURL               string
	Token                 string
	RequestTimeout        time.Duration
	RequiredConfirmations int
}

// WatcherConfig holds deposit watcher settings
type WatcherConfig struct {
	InitialDelay          time.Duration
	PollInterval          time.Duration
	SettleDelay           time.Duration
	ScanInterval          time.Duration
	MaxAttempts           int
	RequiredConfirmations int
}

// NotifyConfig holds webhook notification settings
type NotifyConfig struct {
	WebhookURL     string
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	BotName        string
	AvatarURL      string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	JWTSecret       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}
