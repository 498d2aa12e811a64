package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration. Every field has a safe default so
// the process always starts; unconfigured chain and PIX backends resolve to
// the in-process simulators.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"development"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"dotpix.db"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"dotpix-secret-key"`

	// Chain
	ChainNodeURL    string        `env:"CHAIN_NODE_URL"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	SignerSeed      string        `env:"SIGNER_SEED"`
	ChainTimeout    time.Duration `env:"CHAIN_TIMEOUT" envDefault:"15s"`

	// PIX
	PixProvider    string        `env:"PIX_PROVIDER" envDefault:"mock"`
	PixAPIURL      string        `env:"PIX_API_URL"`
	PixAPIKey      string        `env:"PIX_API_KEY"`
	PixTimeout     time.Duration `env:"PIX_TIMEOUT" envDefault:"10s"`
	PixMerchant    string        `env:"PIX_MERCHANT_NAME" envDefault:"DotPix LP"`
	PixMerchantCity string       `env:"PIX_MERCHANT_CITY" envDefault:"Sao Paulo"`

	// Rates
	RatesURL      string        `env:"RATES_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price"`
	RatesCacheTTL time.Duration `env:"RATES_CACHE_TTL" envDefault:"60s"`
	FallbackUSD   string        `env:"FALLBACK_DOT_USD" envDefault:"7.0"`
	FallbackBRL   string        `env:"FALLBACK_DOT_BRL" envDefault:"35.0"`

	// Order policy
	LpFeePercentage string        `env:"LP_FEE_PERCENTAGE" envDefault:"2.0"`
	OrderExpiry     time.Duration `env:"ORDER_EXPIRY" envDefault:"15m"`

	// Default limits applied to users created on first authentication
	DefaultBuyLimitUSD      string `env:"DEFAULT_BUY_LIMIT_USD" envDefault:"1.0"`
	DefaultBuyOrdersPerDay  int    `env:"DEFAULT_BUY_ORDERS_PER_DAY" envDefault:"1"`
	DefaultSellLimitUSD     string `env:"DEFAULT_SELL_LIMIT_USD" envDefault:"100.0"`
	DefaultSellOrdersPerDay int    `env:"DEFAULT_SELL_ORDERS_PER_DAY" envDefault:"10"`
}

// Load reads configuration from the environment, loading .env first if one
// exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ChainSimulated reports whether the in-process chain simulator should be
// used instead of a real node connection.
func (c *Config) ChainSimulated() bool {
	return c.ChainNodeURL == "" || c.SignerSeed == ""
}

// LpFee returns the LP fee percentage as a decimal, falling back to 2% on a
// malformed value.
func (c *Config) LpFee() decimal.Decimal {
	return parseDecimal(c.LpFeePercentage, "2.0")
}

func (c *Config) FallbackRateUSD() decimal.Decimal { return parseDecimal(c.FallbackUSD, "7.0") }
func (c *Config) FallbackRateBRL() decimal.Decimal { return parseDecimal(c.FallbackBRL, "35.0") }

func (c *Config) BuyLimitUSD() decimal.Decimal  { return parseDecimal(c.DefaultBuyLimitUSD, "1.0") }
func (c *Config) SellLimitUSD() decimal.Decimal { return parseDecimal(c.DefaultSellLimitUSD, "100.0") }

func parseDecimal(value, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}
