package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGetRatesLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "polkadot", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"polkadot":{"usd":6.5,"brl":32.1}}`))
	}))
	defer server.Close()

	svc := NewService(server.URL, time.Minute, decimal.NewFromInt(7), decimal.NewFromInt(35))

	rates := svc.GetRates(context.Background())
	assert.Equal(t, SourceLive, rates.Source)
	assert.True(t, rates.DotToUsd.Equal(decimal.RequireFromString("6.5")))
	assert.True(t, rates.DotToBrl.Equal(decimal.RequireFromString("32.1")))
}

func TestGetRatesServesFromCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"polkadot":{"usd":6.5,"brl":32.1}}`))
	}))
	defer server.Close()

	svc := NewService(server.URL, time.Minute, decimal.NewFromInt(7), decimal.NewFromInt(35))

	svc.GetRates(context.Background())
	svc.GetRates(context.Background())
	svc.GetRates(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetRatesFallsBackOnFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(server.URL, time.Minute, decimal.NewFromInt(7), decimal.NewFromInt(35))

	rates := svc.GetRates(context.Background())
	assert.Equal(t, SourceFallback, rates.Source)
	assert.True(t, rates.DotToUsd.Equal(decimal.NewFromInt(7)))
	assert.True(t, rates.DotToBrl.Equal(decimal.NewFromInt(35)))
}

func TestGetRatesStaleLiveBeatsFallback(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"polkadot":{"usd":6.5,"brl":32.1}}`))
	}))
	defer server.Close()

	// Zero TTL so every call refetches.
	svc := NewService(server.URL, 0, decimal.NewFromInt(7), decimal.NewFromInt(35))

	first := svc.GetRates(context.Background())
	assert.Equal(t, SourceLive, first.Source)

	fail.Store(true)
	second := svc.GetRates(context.Background())
	assert.Equal(t, SourceLive, second.Source)
	assert.True(t, second.DotToUsd.Equal(first.DotToUsd))
}

func TestGetRatesRejectsIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"polkadot":{"usd":6.5}}`))
	}))
	defer server.Close()

	svc := NewService(server.URL, time.Minute, decimal.NewFromInt(7), decimal.NewFromInt(35))

	rates := svc.GetRates(context.Background())
	assert.Equal(t, SourceFallback, rates.Source)
}
