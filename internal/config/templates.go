package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# AI Trader Configuration

[server]
# Listen address for the REST API
addr = ":8080"
# Graceful shutdown timeout (e.g. "10s")
shutdown_timeout = "10s"

[trading]
# Default cash balance for newly created portfolios
initial_cash = 100000.0
# Flat commission per fill
commission = 0.0

[storage]
# SQLite database path (defaults to the config directory)
path = ""

[market_data]
# Quote provider: "sim" (simulated random walk)
provider = "sim"
# Per-quote volatility for the simulated provider (0.0 - 1.0)
volatility = 0.01

# Seed prices for the simulated provider
[market_data.start_prices]
AAPL = 150.25
MSFT = 420.00
GOOGL = 175.50
AMZN = 185.00
META = 500.00

[auth]
# Session token lifetime (e.g. "8h", "30m")
session_ttl = "8h"

[notifications]
enabled = false

[notifications.webhook]
enabled = false
url = ""

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
# Log file path (defaults to the config directory)
path = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}

// WriteTemplate writes the default config template to configDir, without
// overwriting an existing file.
func WriteTemplate(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}
