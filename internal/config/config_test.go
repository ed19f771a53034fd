package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSwapConfigLockTimeOrdering(t *testing.T) {
	cfg := DefaultSwapConfig()

	if cfg.InitiatorLockTime <= cfg.ResponderLockTime {
		t.Fatalf("InitiatorLockTime (%s) must exceed ResponderLockTime (%s)",
			cfg.InitiatorLockTime, cfg.ResponderLockTime)
	}
	if gap := cfg.InitiatorLockTime - cfg.ResponderLockTime; gap < cfg.MinLockTimeDelta {
		t.Fatalf("lock-time gap %s below MinLockTimeDelta %s", gap, cfg.MinLockTimeDelta)
	}
}

func TestDefaultWatcherConfigBounded(t *testing.T) {
	cfg := DefaultWatcherConfig()

	if cfg.DefaultGetTransactionAttempts <= 0 {
		t.Error("DefaultGetTransactionAttempts must be positive")
	}
	if cfg.MaxCounterpartyAttempts <= 0 {
		t.Error("MaxCounterpartyAttempts must be positive")
	}
	for name, d := range map[string]time.Duration{
		"GetTransactionInterval":   cfg.GetTransactionInterval,
		"OutputSpentCheckInterval": cfg.OutputSpentCheckInterval,
		"CounterpartyPollInterval": cfg.CounterpartyPollInterval,
		"ForceRefundInterval":      cfg.ForceRefundInterval,
	} {
		if d <= 0 {
			t.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if cfg.RedeemReserve <= 0 {
		t.Error("RedeemReserve must be positive")
	}
	if cfg.RedeemReserve >= DefaultSwapConfig().ResponderLockTime {
		t.Error("RedeemReserve must leave a redeem window before the acceptor lock-time")
	}
}

func TestDaemonConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DaemonConfig)
		wantErr bool
	}{
		{"defaults are valid", func(c *DaemonConfig) {}, false},
		{"initiator lock not after responder", func(c *DaemonConfig) {
			c.Swap.InitiatorLockTime = c.Swap.ResponderLockTime
		}, true},
		{"lock spread below minimum delta", func(c *DaemonConfig) {
			c.Swap.InitiatorLockTime = c.Swap.ResponderLockTime + time.Minute
			c.Swap.MinLockTimeDelta = time.Hour
		}, true},
		{"empty data dir", func(c *DaemonConfig) {
			c.DataDir = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDaemonConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadDaemonConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadDaemonConfig(dir)
	if err != nil {
		t.Fatalf("LoadDaemonConfig: %v", err)
	}
	if cfg.Network != Mainnet {
		t.Errorf("default network = %s, want %s", cfg.Network, Mainnet)
	}

	path := DaemonConfigPath(dir)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written at %s: %v", path, err)
	}

	// Second load reads the file it just wrote.
	again, err := LoadDaemonConfig(dir)
	if err != nil {
		t.Fatalf("LoadDaemonConfig (reload): %v", err)
	}
	if again.Swap.InitiatorLockTime != cfg.Swap.InitiatorLockTime {
		t.Errorf("reloaded InitiatorLockTime = %s, want %s",
			again.Swap.InitiatorLockTime, cfg.Swap.InitiatorLockTime)
	}
}

func TestLoadDaemonConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultDaemonConfig()
	cfg.Network = Testnet
	cfg.RelayURL = "wss://relay.test/swaps"
	cfg.Swap.InitiatorLockTime = 6 * time.Hour
	cfg.Swap.ResponderLockTime = 3 * time.Hour
	cfg.Swap.MinLockTimeDelta = time.Hour
	if err := cfg.Save(filepath.Join(dir, ConfigFileName)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadDaemonConfig(dir)
	if err != nil {
		t.Fatalf("LoadDaemonConfig: %v", err)
	}
	if loaded.Network != Testnet {
		t.Errorf("network = %s, want %s", loaded.Network, Testnet)
	}
	if loaded.RelayURL != cfg.RelayURL {
		t.Errorf("relay URL = %s, want %s", loaded.RelayURL, cfg.RelayURL)
	}
	if loaded.Swap.InitiatorLockTime != 6*time.Hour {
		t.Errorf("InitiatorLockTime = %s, want 6h", loaded.Swap.InitiatorLockTime)
	}
}

func TestLoadDaemonConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultDaemonConfig()
	cfg.Swap.InitiatorLockTime = time.Hour
	cfg.Swap.ResponderLockTime = 2 * time.Hour
	if err := cfg.Save(filepath.Join(dir, ConfigFileName)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := LoadDaemonConfig(dir); err == nil {
		t.Fatal("expected LoadDaemonConfig to reject inverted lock-times")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}

	got := ExpandPath("~/swapengine-data")
	want := filepath.Join(home, "swapengine-data")
	if got != want {
		t.Errorf("ExpandPath(~/swapengine-data) = %s, want %s", got, want)
	}

	abs := "/var/lib/swapengine"
	if got := ExpandPath(abs); got != abs {
		t.Errorf("ExpandPath(%s) = %s, want unchanged", abs, got)
	}
}
