package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	"github.com/defistate/ammquote-go/quoter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Snapshot source modes.
const (
	ModePoll   = "poll"
	ModeStream = "stream"
)

// Environment variables that override the file.
const (
	EnvRPCURL    = "QUOTER_RPC_URL"
	EnvStreamURL = "QUOTER_STREAM_URL"
	EnvHTTPAddr  = "QUOTER_HTTP_ADDR"
	EnvLogLevel  = "QUOTER_LOG_LEVEL"
)

const (
	DefaultHTTPAddr     = ":8080"
	DefaultPollInterval = 12 * time.Second
	DefaultFeeBps       = 30
	DefaultSlippageBps  = 50
	DefaultZapSplitBps  = 5000
)

// DefaultSlippagePresets are offered when the file lists none.
var DefaultSlippagePresets = []uint16{10, 50, 100, 300}

var ErrMissingURL = errors.New("missing snapshot source url")

type TokenConfig struct {
	ID       uint64 `yaml:"id"`
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// PoolConfig declares a pair by the symbols of its tokens. Address may be left out when a
// factory is configured; it is then derived with CREATE2.
type PoolConfig struct {
	ID         uint64  `yaml:"id"`
	Address    string  `yaml:"address"`
	TokenA     string  `yaml:"token_a"`
	TokenB     string  `yaml:"token_b"`
	FeeBps     *uint16 `yaml:"fee_bps"`
	OracleFeed string  `yaml:"oracle_feed"`
}

type FactoryConfig struct {
	Address      string `yaml:"address"`
	InitCodeHash string `yaml:"init_code_hash"`
}

type DefaultsConfig struct {
	SlippageBps     *uint16  `yaml:"slippage_bps"`
	SlippagePresets []uint16 `yaml:"slippage_presets"`
	ZapSplitBps     *uint16  `yaml:"zap_split_bps"`
	FeeTiers        []uint16 `yaml:"fee_tiers"`
	// Intermediates are token symbols.
	Intermediates []string `yaml:"intermediates"`
}

// Config is the quoter's configuration file.
type Config struct {
	ChainID      uint64         `yaml:"chain_id"`
	Mode         string         `yaml:"mode"`
	RPCURL       string         `yaml:"rpc_url"`
	StreamURL    string         `yaml:"stream_url"`
	HTTPAddr     string         `yaml:"http_addr"`
	LogLevel     string         `yaml:"log_level"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	AllowOrigins []string       `yaml:"allow_origins"`
	Factory      *FactoryConfig `yaml:"factory"`
	Tokens       []TokenConfig  `yaml:"tokens"`
	Pools        []PoolConfig   `yaml:"pools"`
	Defaults     DefaultsConfig `yaml:"defaults"`
}

// LoadConfig reads the yaml file at path, applies .env and environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	// a missing .env is fine
	_ = godotenv.Load()
	return Parse(data)
}

// Parse decodes a yaml document and applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		EnvRPCURL:    &c.RPCURL,
		EnvStreamURL: &c.StreamURL,
		EnvHTTPAddr:  &c.HTTPAddr,
		EnvLogLevel:  &c.LogLevel,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModePoll
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.ChainID == 0 {
		return errors.New("config: chain_id is required")
	}
	switch c.Mode {
	case ModePoll:
		if c.RPCURL == "" {
			return fmt.Errorf("%w: poll mode needs rpc_url or %s", ErrMissingURL, EnvRPCURL)
		}
	case ModeStream:
		if c.StreamURL == "" {
			return fmt.Errorf("%w: stream mode needs stream_url or %s", ErrMissingURL, EnvStreamURL)
		}
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Factory != nil {
		if !common.IsHexAddress(c.Factory.Address) {
			return fmt.Errorf("config: invalid factory address %q", c.Factory.Address)
		}
		if len(common.FromHex(c.Factory.InitCodeHash)) != common.HashLength {
			return fmt.Errorf("config: invalid init code hash %q", c.Factory.InitCodeHash)
		}
	}

	// token and pool references are checked by building them
	tokens, err := c.TokenList()
	if err != nil {
		return err
	}
	if _, err := c.PoolRegistry(tokens); err != nil {
		return err
	}
	if _, err := c.QuoterDefaults(tokens); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel. Unknown names mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TokenList converts the configured tokens.
func (c *Config) TokenList() ([]tokenregistry.Token, error) {
	seenID := make(map[uint64]bool, len(c.Tokens))
	seenSymbol := make(map[string]bool, len(c.Tokens))
	tokens := make([]tokenregistry.Token, 0, len(c.Tokens))

	for i, t := range c.Tokens {
		if t.ID == 0 {
			return nil, fmt.Errorf("config: token %d has no id", i)
		}
		if seenID[t.ID] {
			return nil, fmt.Errorf("config: duplicate token id %d", t.ID)
		}
		if !common.IsHexAddress(t.Address) {
			return nil, fmt.Errorf("config: token %d has invalid address %q", t.ID, t.Address)
		}
		symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("config: token %d has no symbol", t.ID)
		}
		if seenSymbol[symbol] {
			return nil, fmt.Errorf("config: duplicate token symbol %s", symbol)
		}
		seenID[t.ID], seenSymbol[symbol] = true, true

		tokens = append(tokens, tokenregistry.Token{
			ID:       t.ID,
			Address:  common.HexToAddress(t.Address),
			Name:     t.Name,
			Symbol:   strings.TrimSpace(t.Symbol),
			Decimals: t.Decimals,
		})
	}
	return tokens, nil
}

func bySymbol(tokens []tokenregistry.Token, symbol string) (tokenregistry.Token, bool) {
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, strings.TrimSpace(symbol)) {
			return t, true
		}
	}
	return tokenregistry.Token{}, false
}

// PoolRegistry converts the configured pools. Token0 and Token1 follow address order.
func (c *Config) PoolRegistry(tokens []tokenregistry.Token) (poolregistry.PoolRegistry, error) {
	seen := make(map[uint64]bool, len(c.Pools))
	registry := poolregistry.PoolRegistry{Pools: make([]poolregistry.Pool, 0, len(c.Pools))}

	for i, p := range c.Pools {
		if p.ID == 0 {
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d has no id", i)
		}
		if seen[p.ID] {
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: duplicate pool id %d", p.ID)
		}
		seen[p.ID] = true

		a, ok := bySymbol(tokens, p.TokenA)
		if !ok {
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d references unknown token %q", p.ID, p.TokenA)
		}
		b, ok := bySymbol(tokens, p.TokenB)
		if !ok {
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d references unknown token %q", p.ID, p.TokenB)
		}

		fee := uint16(DefaultFeeBps)
		if p.FeeBps != nil {
			fee = *p.FeeBps
		}
		key, err := poolregistry.NewPoolKey(a.Address, b.Address, fee)
		if err != nil {
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d: %w", p.ID, err)
		}

		var address common.Address
		switch {
		case p.Address != "":
			if !common.IsHexAddress(p.Address) {
				return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d has invalid address %q", p.ID, p.Address)
			}
			address = common.HexToAddress(p.Address)
		case c.Factory != nil:
			address, err = poolregistry.PairAddress(
				common.HexToAddress(c.Factory.Address),
				common.HexToHash(c.Factory.InitCodeHash),
				a.Address, b.Address,
			)
			if err != nil {
				return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d: %w", p.ID, err)
			}
		default:
			return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d has no address and no factory is configured", p.ID)
		}

		var feed common.Address
		if p.OracleFeed != "" {
			if !common.IsHexAddress(p.OracleFeed) {
				return poolregistry.PoolRegistry{}, fmt.Errorf("config: pool %d has invalid oracle feed %q", p.ID, p.OracleFeed)
			}
			feed = common.HexToAddress(p.OracleFeed)
		}

		token0, token1 := a, b
		if first, _, _ := poolregistry.SortTokens(a.Address, b.Address); first != a.Address {
			token0, token1 = b, a
		}
		registry.Pools = append(registry.Pools, poolregistry.Pool{
			ID:         p.ID,
			Key:        key,
			Address:    address,
			Token0:     token0.ID,
			Token1:     token1.ID,
			FeeBps:     fee,
			OracleFeed: feed,
		})
	}
	return registry, nil
}

// QuoterDefaults resolves the defaults section, filling what the file leaves out.
func (c *Config) QuoterDefaults(tokens []tokenregistry.Token) (quoter.Defaults, error) {
	d := quoter.Defaults{
		SlippageBps:     DefaultSlippageBps,
		SlippagePresets: slices.Clone(DefaultSlippagePresets),
		ZapSplitBps:     DefaultZapSplitBps,
		FeeTiers:        c.Defaults.FeeTiers,
	}
	if c.Defaults.SlippageBps != nil {
		d.SlippageBps = *c.Defaults.SlippageBps
	}
	if len(c.Defaults.SlippagePresets) > 0 {
		d.SlippagePresets = c.Defaults.SlippagePresets
	}
	if c.Defaults.ZapSplitBps != nil {
		d.ZapSplitBps = *c.Defaults.ZapSplitBps
	}
	for _, symbol := range c.Defaults.Intermediates {
		t, ok := bySymbol(tokens, symbol)
		if !ok {
			return quoter.Defaults{}, fmt.Errorf("config: unknown intermediate token %q", symbol)
		}
		d.Intermediates = append(d.Intermediates, t.ID)
	}
	return d, nil
}
