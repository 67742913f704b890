package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Chain    ChainConfig
	Signer   SignerConfig
	Platform PlatformConfig
	Fees     FeesConfig
	Wallet   WalletConfig
	Redis    RedisConfig
	Server   ServerConfig
}

type ChainConfig struct {
	ChainID         int64  `mapstructure:"chain_id"`
	RPCURL          string `mapstructure:"rpc_url"`
	RegistryAddress string `mapstructure:"registry_address"`
}

type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type PlatformConfig struct {
	Owner string `mapstructure:"owner"`
	// RandomnessOracles is a comma-separated address list granted the
	// randomness role at deployment.
	RandomnessOracles string `mapstructure:"randomness_oracles"`
}

type FeesConfig struct {
	DefaultRateBps uint64 `mapstructure:"default_rate_bps"`
}

type WalletConfig struct {
	// Owners is "addr:weight,addr:weight,...".
	Owners         string `mapstructure:"owners"`
	ConsensusRatio uint64 `mapstructure:"consensus_ratio"`
	MinLimit       uint64 `mapstructure:"min_limit"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// WalletOwner is one parsed entry of WALLET_OWNERS.
type WalletOwner struct {
	Addr   common.Address
	Weight uint64
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("chain.chain_id", 16602)
	v.SetDefault("fees.default_rate_bps", 500)
	v.SetDefault("wallet.consensus_ratio", 66)
	v.SetDefault("wallet.min_limit", 1)
	v.SetDefault("redis.addr", "redis:6379")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"chain.chain_id":              "CHAIN_ID",
		"chain.rpc_url":               "RPC_URL",
		"chain.registry_address":      "REGISTRY_ADDRESS",
		"signer.private_key":          "SIGNER_KEY",
		"platform.owner":              "PLATFORM_OWNER",
		"platform.randomness_oracles": "RANDOMNESS_ORACLES",
		"fees.default_rate_bps":       "DEFAULT_FEE_RATE_BPS",
		"wallet.owners":               "WALLET_OWNERS",
		"wallet.consensus_ratio":      "WALLET_CONSENSUS_RATIO",
		"wallet.min_limit":            "WALLET_MIN_LIMIT",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"server.port":                 "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Signer.PrivateKey, "SIGNER_KEY"},
		{c.Platform.Owner, "PLATFORM_OWNER"},
		{c.Wallet.Owners, "WALLET_OWNERS"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	if !common.IsHexAddress(c.Platform.Owner) {
		return fmt.Errorf("invalid PLATFORM_OWNER: %q", c.Platform.Owner)
	}
	if c.Fees.DefaultRateBps >= 10_000 {
		return fmt.Errorf("DEFAULT_FEE_RATE_BPS must be below 10000, got %d", c.Fees.DefaultRateBps)
	}
	if c.Wallet.ConsensusRatio == 0 || c.Wallet.ConsensusRatio > 100 {
		return fmt.Errorf("WALLET_CONSENSUS_RATIO must be in 1..100, got %d", c.Wallet.ConsensusRatio)
	}
	if _, err := c.WalletOwners(); err != nil {
		return err
	}
	if _, err := c.Oracles(); err != nil {
		return err
	}
	return nil
}

// Oracles parses Platform.RandomnessOracles. Empty means none.
func (c *Config) Oracles() ([]common.Address, error) {
	var out []common.Address
	for _, part := range strings.Split(c.Platform.RandomnessOracles, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("invalid RANDOMNESS_ORACLES entry %q", part)
		}
		out = append(out, common.HexToAddress(part))
	}
	return out, nil
}

// WalletOwners parses Wallet.Owners.
func (c *Config) WalletOwners() ([]WalletOwner, error) {
	return ParseOwners(c.Wallet.Owners)
}

// ParseOwners parses "addr:weight,addr:weight,...". A bare address has
// weight 1.
func ParseOwners(s string) ([]WalletOwner, error) {
	var owners []WalletOwner
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, weight, hasWeight := strings.Cut(part, ":")
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid wallet owner address %q", addr)
		}
		o := WalletOwner{Addr: common.HexToAddress(addr), Weight: 1}
		if hasWeight {
			w, err := strconv.ParseUint(weight, 10, 64)
			if err != nil || w == 0 {
				return nil, fmt.Errorf("invalid weight for wallet owner %s: %q", addr, weight)
			}
			o.Weight = w
		}
		owners = append(owners, o)
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("required config missing: WALLET_OWNERS")
	}
	return owners, nil
}
