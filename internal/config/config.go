// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/utils/logger"
)

// EnvPrefix prefixes every environment override, e.g. YOZOON_RPC_URL.
const EnvPrefix = "YOZOON"

type Config struct {
	RPCURL       string `mapstructure:"rpc_url"`
	WebSocketURL string `mapstructure:"ws_url"`
	Commitment   string `mapstructure:"commitment"`
	ProgramID    string `mapstructure:"program_id"`
	KeypairPath  string `mapstructure:"keypair_path"`
	PostgresURL  string `mapstructure:"postgres_url"`
	Retries      int    `mapstructure:"retries"`

	Log       logger.Config        `mapstructure:"log"`
	Sale      sale.Params          `mapstructure:"sale"`
	Migration sale.MigrationPolicy `mapstructure:"migration"`
}

const (
	DefaultRPCURL     = rpc.DevNet_RPC
	DefaultWSURL      = rpc.DevNet_WS
	DefaultCommitment = string(rpc.CommitmentConfirmed)
	DefaultRetries    = 3
)

func defaults() map[string]interface{} {
	params := sale.DefaultParams()
	logCfg := logger.DefaultConfig()
	return map[string]interface{}{
		"rpc_url":      DefaultRPCURL,
		"ws_url":       DefaultWSURL,
		"commitment":   DefaultCommitment,
		"program_id":   yozoon.ProgramID.String(),
		"keypair_path": "~/.config/solana/id.json",
		"postgres_url": "",
		"retries":      DefaultRetries,

		"log.file":        logCfg.File,
		"log.max_size":    logCfg.MaxSize,
		"log.max_age":     logCfg.MaxAge,
		"log.max_backups": logCfg.MaxBackups,
		"log.compress":    logCfg.Compress,
		"log.development": logCfg.Development,
		"log.pretty":      logCfg.Pretty,

		"sale.min_sol_purchase":   params.MinSolPurchase,
		"sale.max_fee_bps":        params.MaxFeeBps,
		"sale.max_price_points":   params.MaxPricePoints,
		"sale.max_supply":         params.MaxSupply,
		"sale.airdrop_allocation": params.AirdropAllocation,

		"migration.min_sol":               params.Migration.MinSol,
		"migration.max_sol":               params.Migration.MaxSol,
		"migration.lock_above_max":        params.Migration.LockAboveMax,
		"migration.pool_token_allocation": params.Migration.PoolTokenAllocation,
		"migration.pool_fee_bps":          params.Migration.PoolFeeBps,
	}
}

// LoadConfig reads path (optional) over the defaults; YOZOON_* environment
// variables win over both.
func LoadConfig(path string) (*Config, error) {
	return load(path, nil)
}

// LoadConfigWithFlags is LoadConfig with command line flags on top. flags
// maps a config key to the name of the flag that sets it; only flags that
// were set explicitly take effect.
func LoadConfigWithFlags(path string, fs *pflag.FlagSet, flags map[string]string) (*Config, error) {
	return load(path, func(v *viper.Viper) error {
		for key, name := range flags {
			f := fs.Lookup(name)
			if f == nil {
				return fmt.Errorf("unknown flag %q for %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		return nil
	})
}

func load(path string, bind func(v *viper.Viper) error) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if bind != nil {
		if err := bind(v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

// Params returns the protocol constants assembled from the sale and
// migration sections.
func (c *Config) Params() sale.Params {
	p := c.Sale
	p.Migration = c.Migration
	return p
}

// Program returns the configured program ID.
func (c *Config) Program() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.ProgramID)
}

func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is empty")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if cfg.WebSocketURL != "" {
		if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
			return fmt.Errorf("invalid ws_url: %w", err)
		}
	}
	if cfg.PostgresURL != "" {
		if err := validateURLWithCache(cfg.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("invalid postgres_url: %w", err)
		}
	}
	switch rpc.CommitmentType(cfg.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if _, err := cfg.Program(); err != nil {
		return fmt.Errorf("invalid program_id: %w", err)
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Sale.MaxPricePoints > curve.DefaultMaxPricePoints {
		return fmt.Errorf("sale.max_price_points above account capacity %d", curve.DefaultMaxPricePoints)
	}
	if err := cfg.Params().Validate(); err != nil {
		return err
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	key := protocol + "|" + rawURL
	if _, ok := urlCache.Load(key); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(key, parsed)
	return nil
}
