// Package config loads and validates the drift agent configuration.
//
// Configuration is resolved in three layers: built-in defaults, the YAML
// file at <config dir>/agent.yaml, and DRIFT_* environment variables. Later
// layers win. The config directory defaults to ~/.drift and also holds the
// persisted device identity and debug logs.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the agent configuration file inside the config dir.
const FileName = "agent.yaml"

// Config holds the agent configuration.
type Config struct {
	// CoordinatorURL is the WebSocket address of the coordinator
	// (e.g., "ws://coordinator.local:5000/agent")
	CoordinatorURL string

	// NodeName is a human-readable label for this device, reported alongside
	// the generated device ID
	NodeName string

	// DataPath is the mount point of the primary data partition to report
	// storage usage for
	DataPath string

	// ProbeAddr is a host:port dialed to confirm network reachability when
	// the interface scan is inconclusive. Empty means derive it from the
	// coordinator URL.
	ProbeAddr string

	// HeartbeatInterval is the cadence between heartbeats (default: 5s)
	HeartbeatInterval time.Duration

	// AckTimeout is how long to wait for a registration ack before streaming
	// anyway (default: 5s)
	AckTimeout time.Duration

	// BackoffBase is the initial reconnect delay (default: 5s)
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay (default: 60s)
	BackoffMax time.Duration

	// Debug enables verbose debug logging
	Debug bool
}

// fileConfig is the on-disk YAML shape. Durations are whole seconds so the
// file stays hand-editable.
type fileConfig struct {
	CoordinatorURL     string `yaml:"coordinator_url"`
	NodeName           string `yaml:"node_name"`
	DataPath           string `yaml:"data_path,omitempty"`
	ProbeAddr          string `yaml:"probe_addr,omitempty"`
	HeartbeatSeconds   int    `yaml:"heartbeat_seconds,omitempty"`
	AckTimeoutSeconds  int    `yaml:"ack_timeout_seconds,omitempty"`
	BackoffBaseSeconds int    `yaml:"backoff_base_seconds,omitempty"`
	BackoffMaxSeconds  int    `yaml:"backoff_max_seconds,omitempty"`
	Debug              bool   `yaml:"debug,omitempty"`
}

// Default returns a Config with sensible defaults applied on top of
// DRIFT_* environment variables.
func Default() *Config {
	return &Config{
		CoordinatorURL:    os.Getenv("DRIFT_COORDINATOR_URL"),
		NodeName:          getEnvOrDefault("DRIFT_NODE_NAME", hostnameOrEmpty()),
		DataPath:          getEnvOrDefault("DRIFT_DATA_PATH", defaultDataPath()),
		ProbeAddr:         os.Getenv("DRIFT_PROBE_ADDR"),
		HeartbeatInterval: time.Duration(getEnvInt("DRIFT_HEARTBEAT_INTERVAL", 5)) * time.Second,
		AckTimeout:        time.Duration(getEnvInt("DRIFT_ACK_TIMEOUT", 5)) * time.Second,
		BackoffBase:       time.Duration(getEnvInt("DRIFT_BACKOFF_BASE", 5)) * time.Second,
		BackoffMax:        time.Duration(getEnvInt("DRIFT_BACKOFF_MAX", 60)) * time.Second,
		Debug:             getEnvBool("DRIFT_DEBUG", false),
	}
}

// Dir returns the agent config directory, creating it if necessary.
func Dir() (string, error) {
	if dir := os.Getenv("DRIFT_CONFIG_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0o755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".drift")
	return dir, os.MkdirAll(dir, 0o755)
}

// Load reads agent.yaml from the config dir, layered over Default().
// A missing file is not an error; the defaults are returned as-is.
func Load() (*Config, error) {
	cfg := Default()
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	fc.apply(cfg)
	return cfg, nil
}

// apply overlays the non-zero file values onto cfg.
func (fc *fileConfig) apply(cfg *Config) {
	if fc.CoordinatorURL != "" {
		cfg.CoordinatorURL = fc.CoordinatorURL
	}
	if fc.NodeName != "" {
		cfg.NodeName = fc.NodeName
	}
	if fc.DataPath != "" {
		cfg.DataPath = fc.DataPath
	}
	if fc.ProbeAddr != "" {
		cfg.ProbeAddr = fc.ProbeAddr
	}
	if fc.HeartbeatSeconds > 0 {
		cfg.HeartbeatInterval = time.Duration(fc.HeartbeatSeconds) * time.Second
	}
	if fc.AckTimeoutSeconds > 0 {
		cfg.AckTimeout = time.Duration(fc.AckTimeoutSeconds) * time.Second
	}
	if fc.BackoffBaseSeconds > 0 {
		cfg.BackoffBase = time.Duration(fc.BackoffBaseSeconds) * time.Second
	}
	if fc.BackoffMaxSeconds > 0 {
		cfg.BackoffMax = time.Duration(fc.BackoffMaxSeconds) * time.Second
	}
	if fc.Debug {
		cfg.Debug = true
	}
}

// Save writes the configuration to agent.yaml in the config dir.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	fc := fileConfig{
		CoordinatorURL:     c.CoordinatorURL,
		NodeName:           c.NodeName,
		DataPath:           c.DataPath,
		ProbeAddr:          c.ProbeAddr,
		HeartbeatSeconds:   int(c.HeartbeatInterval / time.Second),
		AckTimeoutSeconds:  int(c.AckTimeout / time.Second),
		BackoffBaseSeconds: int(c.BackoffBase / time.Second),
		BackoffMaxSeconds:  int(c.BackoffMax / time.Second),
		Debug:              c.Debug,
	}
	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// Validate checks that the configuration is usable. A failure here is fatal:
// the agent cannot construct a transport from an invalid coordinator address
// and must surface the problem to the operator instead of retrying forever.
func (c *Config) Validate() error {
	if c.CoordinatorURL == "" {
		return ErrMissingCoordinator
	}
	u, err := url.Parse(c.CoordinatorURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return ErrInvalidCoordinator
	}
	if c.HeartbeatInterval < time.Second {
		return ErrInvalidInterval
	}
	if c.BackoffBase <= 0 || c.BackoffBase > c.BackoffMax {
		return ErrInvalidBackoff
	}
	return nil
}

// ResolveProbeAddr returns the address used for the TCP reachability probe,
// falling back to the coordinator host when none is configured.
func (c *Config) ResolveProbeAddr() string {
	if c.ProbeAddr != "" {
		return c.ProbeAddr
	}
	u, err := url.Parse(c.CoordinatorURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "wss":
			host += ":443"
		default:
			host += ":80"
		}
	}
	return host
}

func defaultDataPath() string {
	// Termux and other Android environments expose storage under /data
	if _, err := os.Stat("/data/data/com.termux"); err == nil {
		return "/data"
	}
	return "/"
}

func hostnameOrEmpty() string {
	name, _ := os.Hostname()
	return name
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
