package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/levquote/types"
	"github.com/michaelpento.lv/levquote/utils/math"
)

var (
	ErrInvalidConfig = errors.New("configuration validation failed")
	ErrUnknownToken  = errors.New("token not in registry")
)

type Config struct {
	// Chain and network settings
	ChainID     uint64        `json:"chain_id" yaml:"chain_id"`
	RPCEndpoint string        `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	Slippage     SlippageConfig  `json:"slippage" yaml:"slippage"`
	RPCRateLimit RateLimitConfig `json:"rpc_rate_limit" yaml:"rpc_rate_limit"`
	Cache        CacheConfig     `json:"cache" yaml:"cache"`

	// Token registry and oracle feeds. Feeds refer to tokens by symbol.
	Tokens []types.Token `json:"tokens" yaml:"tokens"`
	Feeds  []FeedConfig  `json:"feeds" yaml:"feeds"`
}

type SlippageConfig struct {
	DefaultBps math.BasisPoints `json:"default_bps" yaml:"default_bps"`
	MaxBps     math.BasisPoints `json:"max_bps" yaml:"max_bps"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size"`
}

type CacheConfig struct {
	// Capacity bounds cached prices; zero keeps all until refreshed.
	Capacity int `json:"capacity" yaml:"capacity"`
}

type FeedConfig struct {
	Base    string         `json:"base" yaml:"base"`
	Quote   string         `json:"quote" yaml:"quote"`
	Address common.Address `json:"address" yaml:"address"`
	MaxAge  time.Duration  `json:"max_age" yaml:"max_age"`
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errs = append(errs, "rpc_endpoint must be specified")
	}
	if c.CallTimeout < 0 {
		errs = append(errs, "call_timeout must not be negative")
	}

	if err := c.Slippage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("slippage error: %v", err))
	}
	if err := c.RPCRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("RPC rate limit error: %v", err))
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, "cache capacity must not be negative")
	}

	seen := make(map[string]bool)
	for i, t := range c.Tokens {
		sym := strings.ToUpper(t.Symbol)
		switch {
		case sym == "":
			errs = append(errs, fmt.Sprintf("tokens[%d]: symbol must be specified", i))
		case seen[sym]:
			errs = append(errs, fmt.Sprintf("tokens[%d]: duplicate symbol %s", i, t.Symbol))
		}
		seen[sym] = true
		if t.ChainID != c.ChainID {
			errs = append(errs, fmt.Sprintf("tokens[%d]: chain_id %d does not match %d", i, t.ChainID, c.ChainID))
		}
	}

	for i, f := range c.Feeds {
		if !seen[strings.ToUpper(f.Base)] {
			errs = append(errs, fmt.Sprintf("feeds[%d]: unknown base token %q", i, f.Base))
		}
		if !seen[strings.ToUpper(f.Quote)] {
			errs = append(errs, fmt.Sprintf("feeds[%d]: unknown quote token %q", i, f.Quote))
		}
		if f.Address == (common.Address{}) {
			errs = append(errs, fmt.Sprintf("feeds[%d]: address must be specified", i))
		}
		if f.MaxAge < 0 {
			errs = append(errs, fmt.Sprintf("feeds[%d]: max_age must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func (s *SlippageConfig) Validate() error {
	if err := s.MaxBps.Validate(); err != nil {
		return err
	}
	if s.DefaultBps > s.MaxBps {
		return fmt.Errorf("default %s exceeds max %s", s.DefaultBps.Percent(), s.MaxBps.Percent())
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	return nil
}

// Token looks a token up by symbol, ignoring case.
func (c *Config) Token(symbol string) (types.Token, error) {
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	return types.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".levquote.json"), nil
}

// LoadConfig reads cfgFile on top of DefaultConfig, applies environment
// overrides and validates the result. With an empty cfgFile the default
// path is tried and the defaults are used if it does not exist.
func LoadConfig(cfgFile string) (*Config, error) {
	explicit := cfgFile != ""
	if !explicit {
		p, err := defaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	config := DefaultConfig()
	data, err := os.ReadFile(cfgFile)
	switch {
	case err == nil:
		if err := decode(data, isYAML(cfgFile), config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", cfgFile, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	config.fillTokenChains()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(data []byte, asYAML bool, config *Config) error {
	if asYAML {
		return yaml.UnmarshalStrict(data, config)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(config)
}

// tokens without a chain id belong to the configured chain
func (c *Config) fillTokenChains() {
	for i := range c.Tokens {
		if c.Tokens[i].ChainID == 0 {
			c.Tokens[i].ChainID = c.ChainID
		}
	}
}

// Write encodes cfg to w as YAML or indented JSON.
func Write(w io.Writer, cfg *Config, asYAML bool) error {
	if asYAML {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

// SaveConfig writes cfg to cfgFile, choosing the format by extension.
func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		cfgFile = p
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	return Write(file, cfg, isYAML(cfgFile))
}

// Mainnet defaults
var (
	mainnetUSDC = types.Token{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		ChainID:  1,
		Symbol:   "USDC",
		Decimals: 6,
	}
	mainnetWETH = types.Token{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		ChainID:  1,
		Symbol:   "WETH",
		Decimals: 18,
	}
	mainnetDAI = types.Token{
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		ChainID:  1,
		Symbol:   "DAI",
		Decimals: 18,
	}
)

func DefaultConfig() *Config {
	return &Config{
		ChainID:     1,
		RPCEndpoint: "http://localhost:8545",
		CallTimeout: 10 * time.Second,
		Slippage: SlippageConfig{
			DefaultBps: 50,
			MaxBps:     500,
		},
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
		},
		Cache: CacheConfig{
			Capacity: 256,
		},
		Tokens: []types.Token{mainnetUSDC, mainnetWETH, mainnetDAI},
		Feeds: []FeedConfig{
			{
				// ETH / USD, with USDC standing in for USD
				Base:    "WETH",
				Quote:   "USDC",
				Address: common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"),
				MaxAge:  time.Hour,
			},
			{
				Base:    "DAI",
				Quote:   "USDC",
				Address: common.HexToAddress("0xAed0c38402a5d19df6E4c03F4E2DceD6e29c1ee9"),
				MaxAge:  time.Hour,
			},
		},
	}
}
