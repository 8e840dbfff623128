package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidateRequiresLedger(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}

	cfg.Ledger.RPCURL = "https://rpc.example.org"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig for missing contract, got %v", err)
	}

	cfg.Ledger.ContractAddress = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed contract address")
	}

	cfg.Ledger.ContractAddress = "0x1111111111111111111111111111111111111111"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadBootstrapAddr(t *testing.T) {
	cfg := Default()
	cfg.Ledger.RPCURL = "https://rpc.example.org"
	cfg.Ledger.ContractAddress = "0x1111111111111111111111111111111111111111"
	cfg.Network.BootstrapNodes = []string{"/dns4/boot.example.org/tcp/60000"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected multiaddr to parse, got %v", err)
	}

	cfg.Network.BootstrapNodes = []string{"definitely not a multiaddr"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed bootstrap node")
	}
}

func TestLoadFromPathMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
ledger:
  rpcUrl: https://file.example.org
  contractAddress: "0x2222222222222222222222222222222222222222"
poll:
  interval: 5s
  maxAttempts: 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHAINCHAT_LEDGER_RPC_URL", "https://env.example.org")
	t.Setenv("CHAINCHAT_METRICS_ADDR", "127.0.0.1:9290")

	cfg := LoadFromPath(path)
	if cfg.Ledger.RPCURL != "https://env.example.org" {
		t.Fatalf("env must override file, got %q", cfg.Ledger.RPCURL)
	}
	if cfg.Ledger.ContractAddress != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("file value must survive, got %q", cfg.Ledger.ContractAddress)
	}
	if cfg.Poll.Interval != 5*time.Second || cfg.Poll.MaxAttempts != 10 {
		t.Fatalf("poll settings not merged: %+v", cfg.Poll)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9290" {
		t.Fatalf("metrics addr not applied: %q", cfg.Metrics.ListenAddr)
	}
	if cfg.RateLimit.PerSenderBurst != 5 {
		t.Fatalf("default rate limit must survive merge, got %d", cfg.RateLimit.PerSenderBurst)
	}
}

func TestLoadFromPathMissingFileKeepsDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Poll.Interval != 2*time.Second || cfg.Poll.MaxAttempts != 30 {
		t.Fatalf("expected default poll settings, got %+v", cfg.Poll)
	}
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("CHAINCHAT_BOOTSTRAP_NODES", " /dns4/a/tcp/1 , ,/dns4/b/tcp/2")
	got := envCSV("CHAINCHAT_BOOTSTRAP_NODES")
	if len(got) != 2 || got[0] != "/dns4/a/tcp/1" || got[1] != "/dns4/b/tcp/2" {
		t.Fatalf("unexpected parse: %#v", got)
	}
}
