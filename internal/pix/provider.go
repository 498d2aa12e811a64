// Package pix abstracts the instant-payment rail behind swappable providers.
// Exactly one provider is active per process, resolved once at startup; the
// in-process mock is the safe default and the fallback whenever a real
// backend cannot be constructed.
package pix

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Charge statuses reported by CheckStatus.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

var (
	ErrChargeNotFound = errors.New("pix: charge not found")
	ErrChargeFailed   = errors.New("pix: charge creation failed")
	ErrInvalidKey     = errors.New("pix: invalid key for type")
)

// Charge is an issued payment request.
type Charge struct {
	TxID    string          `json:"txid"`
	Payload string          `json:"payload"` // copy-paste PIX code
	PixKey  string          `json:"pix_key"`
	Amount  decimal.Decimal `json:"amount"`
}

// Provider is the payment-rail capability consumed by the order engine.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, pixKey string, amount decimal.Decimal, recipientName string) (*Charge, error)
	CheckStatus(ctx context.Context, txid string) (string, error)
}

// Options selects and configures the active provider.
type Options struct {
	Provider string // "mock" or "bank"
	APIURL   string
	APIKey   string
	Merchant string
	City     string
}

// NewProvider resolves the configured backend. Unknown names, missing
// credentials, or a failed construction all fall back to the mock so startup
// never fails on an unconfigured payment rail.
func NewProvider(opts Options) Provider {
	switch strings.ToLower(opts.Provider) {
	case "", "mock":
		log.Warn().Msg("pix provider is mock - charges are simulated in-process")
		return NewMockProvider(opts.Merchant, opts.City)

	case "bank":
		if opts.APIURL == "" || opts.APIKey == "" {
			log.Warn().Msg("pix provider 'bank' selected but credentials missing, falling back to mock")
			return NewMockProvider(opts.Merchant, opts.City)
		}
		provider, err := NewBankProvider(opts.APIURL, opts.APIKey, opts.Merchant)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize bank pix provider, falling back to mock")
			return NewMockProvider(opts.Merchant, opts.City)
		}
		log.Info().Str("provider", provider.Name()).Msg("pix provider initialized")
		return provider

	default:
		log.Warn().Str("provider", opts.Provider).Msg("unknown pix provider, falling back to mock")
		return NewMockProvider(opts.Merchant, opts.City)
	}
}

var (
	digitsOnly = regexp.MustCompile(`\D`)
	emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateKey checks the format of a PIX key for its declared type. Format
// only: registry lookups are a bank concern.
func ValidateKey(key, keyType string) bool {
	switch strings.ToLower(keyType) {
	case "cpf":
		return len(digitsOnly.ReplaceAllString(key, "")) == 11
	case "email":
		return emailShape.MatchString(key)
	case "phone":
		return len(digitsOnly.ReplaceAllString(key, "")) >= 10
	case "random":
		// EVP keys are 32-character opaque tokens.
		return len(key) == 32
	default:
		return false
	}
}
