// Package config provides configuration management for the trading platform.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Trading       TradingConfig      `mapstructure:"trading"`
	Storage       StorageConfig      `mapstructure:"storage"`
	MarketData    MarketDataConfig   `mapstructure:"market_data"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"` // default cash for new portfolios
	Commission  float64 `mapstructure:"commission"`   // flat commission per fill
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	Path string `mapstructure:"path"` // SQLite database path
}

// MarketDataConfig holds quote provider configuration.
type MarketDataConfig struct {
	Provider    string             `mapstructure:"provider"` // "sim"
	Volatility  float64            `mapstructure:"volatility"`
	StartPrices map[string]float64 `mapstructure:"start_prices"`
}

// AuthConfig holds session configuration.
type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// Default returns the built-in configuration, used when no config file
// exists yet.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Trading: TradingConfig{InitialCash: 100000, Commission: 0},
		Storage: StorageConfig{Path: filepath.Join(DefaultConfigDir(), "trader.db")},
		MarketData: MarketDataConfig{
			Provider:   "sim",
			Volatility: 0.01,
		},
		Auth: AuthConfig{SessionTTL: 8 * time.Hour},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
			Path:    filepath.Join(DefaultConfigDir(), "logs", "trader.log"),
		},
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ai-trader"
	}
	return filepath.Join(home, ".config", "ai-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("trading.initial_cash", 100000.0)
	v.SetDefault("trading.commission", 0.0)
	v.SetDefault("storage.path", filepath.Join(DefaultConfigDir(), "trader.db"))
	v.SetDefault("market_data.provider", "sim")
	v.SetDefault("market_data.volatility", 0.01)
	v.SetDefault("auth.session_ttl", "8h")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.path", filepath.Join(DefaultConfigDir(), "logs", "trader.log"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AI_TRADER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AI_TRADER_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("AI_TRADER_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
		cfg.Notifications.Webhook.Enabled = true
		cfg.Notifications.Enabled = true
	}
	if v := os.Getenv("AI_TRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Trading.InitialCash < 0 {
		return fmt.Errorf("trading.initial_cash must be non-negative")
	}
	if c.Trading.Commission < 0 {
		return fmt.Errorf("trading.commission must be non-negative")
	}
	if c.MarketData.Volatility < 0 || c.MarketData.Volatility > 1 {
		return fmt.Errorf("market_data.volatility must be between 0 and 1")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("notifications.webhook.url required when webhook is enabled")
	}
	return nil
}
