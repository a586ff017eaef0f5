package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Tasmota core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BrokerConfig contains MQTT broker connection settings.
//
// The vendor protocol runs MQTT over WebSocket: plaintext on Port,
// TLS on TLSPort. Path is the WebSocket endpoint path on the broker.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLSPort  int    `yaml:"tls_port"`
	Path     string `yaml:"path"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RegistryConfig contains settings for the persisted device registry.
//
// The registry database is owned by the surrounding application; the core
// only reads it once at startup.
type RegistryConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TASMOCORE_SECTION_KEY
// For example: TASMOCORE_BROKER_HOST, TASMOCORE_REGISTRY_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The WebSocket ports match the vendor convention: 8083 plaintext,
// 8884 TLS, endpoint path /mqtt.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:    "localhost",
			Port:    8083,
			TLSPort: 8884,
			Path:    "/mqtt",
		},
		Registry: RegistryConfig{
			Path:        "./data/tasmocore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TASMOCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Broker
	if v := os.Getenv("TASMOCORE_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("TASMOCORE_BROKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Broker.Port = port
		}
	}
	if v := os.Getenv("TASMOCORE_BROKER_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv("TASMOCORE_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("TASMOCORE_BROKER_TLS"); v != "" {
		cfg.Broker.TLS = v == "true" || v == "1"
	}

	// Registry
	if v := os.Getenv("TASMOCORE_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.TLSPort < 1 || c.Broker.TLSPort > 65535 {
		errs = append(errs, "broker.tls_port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Broker.Path, "/") {
		errs = append(errs, "broker.path must start with /")
	}

	// Registry validation
	if c.Registry.Path == "" {
		errs = append(errs, "registry.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
