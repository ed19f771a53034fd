package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the daemon's on-disk config file name within its
// data directory.
const ConfigFileName = "swapengine.yaml"

// DaemonConfig is the top-level on-disk configuration for the swap
// engine daemon: network selection, swap timing/security parameters,
// watcher polling, and the relay/data-dir knobs the CLI needs.
type DaemonConfig struct {
	Network  NetworkType   `yaml:"network_type"`
	DataDir  string        `yaml:"data_dir"`
	LogLevel string        `yaml:"log_level"`
	RelayURL string        `yaml:"relay_url"`
	Swap     SwapConfig    `yaml:"swap"`
	Watcher  WatcherConfig `yaml:"watcher"`
}

// DefaultDaemonConfig returns the daemon's built-in defaults, used both
// as the starting point for LoadDaemonConfig and to seed a freshly
// written config file on first run.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Network:  Mainnet,
		DataDir:  "~/.swapengine",
		LogLevel: "info",
		RelayURL: "wss://relay.example/swap-channel",
		Swap:     DefaultSwapConfig(),
		Watcher:  DefaultWatcherConfig(),
	}
}

// DaemonConfigPath returns the full path to the config file for the
// given data directory.
func DaemonConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// LoadDaemonConfig loads the daemon config from dataDir, writing a
// fresh default file if none exists yet.
func LoadDaemonConfig(dataDir string) (*DaemonConfig, error) {
	expandedDir := expandPath(dataDir)
	configPath := filepath.Join(expandedDir, ConfigFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultDaemonConfig()
		cfg.DataDir = dataDir
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("config: create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	cfg := DefaultDaemonConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file at path.
func (c *DaemonConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal config: %w", err)
	}

	header := []byte("# swapengine daemon configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}
	return nil
}

// Validate checks the loaded config for the ordering the protocol
// depends on: the initiator's lock-time must exceed the acceptor's by
// at least MinLockTimeDelta, so the acceptor can always refund before
// the initiator's payment becomes refundable.
func (c *DaemonConfig) Validate() error {
	if c.Swap.InitiatorLockTime <= c.Swap.ResponderLockTime {
		return fmt.Errorf("config: InitiatorLockTime (%s) must exceed ResponderLockTime (%s)",
			c.Swap.InitiatorLockTime, c.Swap.ResponderLockTime)
	}
	if gap := c.Swap.InitiatorLockTime - c.Swap.ResponderLockTime; gap < c.Swap.MinLockTimeDelta {
		return fmt.Errorf("config: lock-time gap %s below MinLockTimeDelta %s",
			gap, c.Swap.MinLockTimeDelta)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// expandPath is the unexported alias used within this file.
func expandPath(path string) string { return ExpandPath(path) }
