// Package config loads the daemon configuration: defaults, then an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ma "github.com/multiformats/go-multiaddr"
	"gopkg.in/yaml.v3"

	"chainchat/go-backend/internal/waku"
)

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Ledger    LedgerConfig    `yaml:"ledger"`
	Identity  IdentityConfig  `yaml:"identity"`
	Network   waku.Config     `yaml:"network"`
	Poll      PollConfig      `yaml:"poll"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type LedgerConfig struct {
	// RPCURL carries the endpoint credential; both it and the contract
	// address are required for startup.
	RPCURL          string `yaml:"rpcUrl"`
	ContractAddress string `yaml:"contractAddress"`
	ChainID         int64  `yaml:"chainId"`
}

type IdentityConfig struct {
	Mnemonic      string `yaml:"mnemonic"`
	PrivateKeyHex string `yaml:"privateKey"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

type MetricsConfig struct {
	// ListenAddr enables the prometheus endpoint when non-empty.
	ListenAddr string `yaml:"listenAddr"`
}

type RateLimitConfig struct {
	PerSenderRPS   float64 `yaml:"perSenderRps"`
	PerSenderBurst int     `yaml:"perSenderBurst"`
}

func Default() Config {
	return Config{
		Network: waku.DefaultConfig(),
		Poll: PollConfig{
			Interval:    2 * time.Second,
			MaxAttempts: 30,
		},
		RateLimit: RateLimitConfig{
			PerSenderRPS:   1,
			PerSenderBurst: 5,
		},
	}
}

// LoadFromPath merges defaults, the first readable YAML candidate, and
// env overrides. A missing file is not an error; a missing required
// field surfaces later via Validate.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := []string{configPath}
	if configPath == "" {
		candidates = []string{"configs/config.yaml"}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merge(&cfg, parsed)
		break
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func merge(dst *Config, src Config) {
	if src.Ledger.RPCURL != "" {
		dst.Ledger.RPCURL = src.Ledger.RPCURL
	}
	if src.Ledger.ContractAddress != "" {
		dst.Ledger.ContractAddress = src.Ledger.ContractAddress
	}
	if src.Ledger.ChainID != 0 {
		dst.Ledger.ChainID = src.Ledger.ChainID
	}
	if src.Identity.Mnemonic != "" {
		dst.Identity.Mnemonic = src.Identity.Mnemonic
	}
	if src.Identity.PrivateKeyHex != "" {
		dst.Identity.PrivateKeyHex = src.Identity.PrivateKeyHex
	}
	if src.Network.Transport != "" {
		dst.Network.Transport = src.Network.Transport
	}
	if src.Network.Port != 0 {
		dst.Network.Port = src.Network.Port
	}
	if src.Network.AdvertiseAddress != "" {
		dst.Network.AdvertiseAddress = src.Network.AdvertiseAddress
	}
	if src.Network.BootstrapNodes != nil {
		dst.Network.BootstrapNodes = src.Network.BootstrapNodes
	}
	if src.Network.MinPeers != 0 {
		dst.Network.MinPeers = src.Network.MinPeers
	}
	if src.Network.ReconnectInterval != 0 {
		dst.Network.ReconnectInterval = src.Network.ReconnectInterval
	}
	if src.Network.ReconnectBackoffMax != 0 {
		dst.Network.ReconnectBackoffMax = src.Network.ReconnectBackoffMax
	}
	if src.Poll.Interval != 0 {
		dst.Poll.Interval = src.Poll.Interval
	}
	if src.Poll.MaxAttempts != 0 {
		dst.Poll.MaxAttempts = src.Poll.MaxAttempts
	}
	if src.Metrics.ListenAddr != "" {
		dst.Metrics.ListenAddr = src.Metrics.ListenAddr
	}
	if src.RateLimit.PerSenderRPS != 0 {
		dst.RateLimit.PerSenderRPS = src.RateLimit.PerSenderRPS
	}
	if src.RateLimit.PerSenderBurst != 0 {
		dst.RateLimit.PerSenderBurst = src.RateLimit.PerSenderBurst
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := envString("CHAINCHAT_LEDGER_RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := envString("CHAINCHAT_CONTRACT_ADDRESS"); v != "" {
		cfg.Ledger.ContractAddress = v
	}
	if v := envInt64("CHAINCHAT_CHAIN_ID", 0); v != 0 {
		cfg.Ledger.ChainID = v
	}
	if v := envString("CHAINCHAT_MNEMONIC"); v != "" {
		cfg.Identity.Mnemonic = v
	}
	if v := envString("CHAINCHAT_PRIVATE_KEY"); v != "" {
		cfg.Identity.PrivateKeyHex = v
	}
	if v := envString("CHAINCHAT_NETWORK_TRANSPORT"); v != "" {
		cfg.Network.Transport = v
	}
	if nodes := envCSV("CHAINCHAT_BOOTSTRAP_NODES"); nodes != nil {
		cfg.Network.BootstrapNodes = nodes
	}
	if v := envString("CHAINCHAT_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// Validate enforces the startup-fatal requirements: the ledger endpoint,
// a well-formed contract address, and parseable bootstrap addresses.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Ledger.RPCURL) == "" {
		return fmt.Errorf("%w: ledger rpc url", ErrMissingConfig)
	}
	if strings.TrimSpace(c.Ledger.ContractAddress) == "" {
		return fmt.Errorf("%w: contract address", ErrMissingConfig)
	}
	if !common.IsHexAddress(c.Ledger.ContractAddress) {
		return fmt.Errorf("contract address %q is not a valid hex address", c.Ledger.ContractAddress)
	}
	for _, addr := range c.Network.BootstrapNodes {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("bootstrap node %q: %w", addr, err)
		}
	}
	return nil
}
