// Package rates fetches and caches DOT exchange rates. Fetch failures never
// propagate to callers: the service degrades to the configured static rates.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/types"
)

const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Service caches DOT→USD and DOT→BRL rates with a TTL.
type Service struct {
	endpoint    string
	ttl         time.Duration
	fallbackUSD decimal.Decimal
	fallbackBRL decimal.Decimal
	httpClient  *http.Client

	mu        sync.Mutex
	cached    *types.RatesResponse
	fetchedAt time.Time
}

// NewService creates a rate service against a CoinGecko-compatible simple
// price endpoint.
func NewService(endpoint string, ttl time.Duration, fallbackUSD, fallbackBRL decimal.Decimal) *Service {
	return &Service{
		endpoint:    endpoint,
		ttl:         ttl,
		fallbackUSD: fallbackUSD,
		fallbackBRL: fallbackBRL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetRates returns the current rates, serving from cache within the TTL and
// falling back to the static defaults when the upstream fetch fails.
func (s *Service) GetRates(ctx context.Context) types.RatesResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		return *s.cached
	}

	fetched, err := s.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("exchange rate fetch failed, using fallback rates")
		fallback := types.RatesResponse{
			DotToUsd: s.fallbackUSD,
			DotToBrl: s.fallbackBRL,
			Source:   SourceFallback,
		}
		// A stale live rate beats the static default.
		if s.cached != nil && s.cached.Source == SourceLive {
			stale := *s.cached
			return stale
		}
		s.cached = &fallback
		s.fetchedAt = time.Now()
		return fallback
	}

	s.cached = fetched
	s.fetchedAt = time.Now()

	log.Info().
		Str("dot_to_usd", fetched.DotToUsd.String()).
		Str("dot_to_brl", fetched.DotToBrl.String()).
		Msg("exchange rates refreshed")

	return *fetched
}

type priceResponse struct {
	Polkadot struct {
		USD decimal.Decimal `json:"usd"`
		BRL decimal.Decimal `json:"brl"`
	} `json:"polkadot"`
}

func (s *Service) fetch(ctx context.Context) (*types.RatesResponse, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid rates endpoint: %w", err)
	}
	q := u.Query()
	q.Set("ids", "polkadot")
	q.Set("vs_currencies", "usd,brl")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var prices priceResponse
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, fmt.Errorf("decoding rates response: %w", err)
	}

	if prices.Polkadot.USD.IsZero() || prices.Polkadot.BRL.IsZero() {
		return nil, fmt.Errorf("rates response missing polkadot prices")
	}

	return &types.RatesResponse{
		DotToUsd: prices.Polkadot.USD,
		DotToBrl: prices.Polkadot.BRL,
		Source:   SourceLive,
	}, nil
}
