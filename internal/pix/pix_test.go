package pix

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		keyType string
		want    bool
	}{
		{name: "cpf plain digits", key: "12345678901", keyType: "cpf", want: true},
		{name: "cpf formatted", key: "123.456.789-01", keyType: "cpf", want: true},
		{name: "cpf too short", key: "1234567890", keyType: "cpf", want: false},
		{name: "email valid", key: "user@example.com", keyType: "email", want: true},
		{name: "email missing domain", key: "user@", keyType: "email", want: false},
		{name: "phone with country code", key: "+55 11 98765-4321", keyType: "phone", want: true},
		{name: "phone too short", key: "12345", keyType: "phone", want: false},
		{name: "random evp key", key: strings.Repeat("a", 32), keyType: "random", want: true},
		{name: "random wrong length", key: strings.Repeat("a", 31), keyType: "random", want: false},
		{name: "unknown type", key: "whatever", keyType: "iban", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateKey(tt.key, tt.keyType))
		})
	}
}

func TestMockProviderChargeLifecycle(t *testing.T) {
	provider := NewMockProvider("Test Merchant", "Sao Paulo")
	ctx := context.Background()

	charge, err := provider.CreateCharge(ctx, "user@example.com", decimal.RequireFromString("150.50"), "")
	require.NoError(t, err)
	assert.Len(t, charge.TxID, 25)
	assert.Contains(t, charge.Payload, "KEY:user@example.com")
	assert.Contains(t, charge.Payload, "AMOUNT:150.50")
	assert.Contains(t, charge.Payload, "NAME:Test Merchant")

	status, err := provider.CheckStatus(ctx, charge.TxID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	assert.True(t, provider.ConfirmPayment(charge.TxID))

	status, err = provider.CheckStatus(ctx, charge.TxID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status)
}

func TestMockProviderRejectsNonPositiveAmount(t *testing.T) {
	provider := NewMockProvider("", "")
	_, err := provider.CreateCharge(context.Background(), "user@example.com", decimal.Zero, "")
	assert.ErrorIs(t, err, ErrChargeFailed)
}

func TestMockProviderUnknownCharge(t *testing.T) {
	provider := NewMockProvider("", "")
	_, err := provider.CheckStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChargeNotFound)
	assert.False(t, provider.ConfirmPayment("missing"))
}

func TestNewProviderFallsBackToMock(t *testing.T) {
	// Bank without credentials degrades to mock.
	provider := NewProvider(Options{Provider: "bank"})
	assert.Equal(t, "mock", provider.Name())

	// Unknown names degrade to mock.
	provider = NewProvider(Options{Provider: "something-else"})
	assert.Equal(t, "mock", provider.Name())

	// Empty selects mock directly.
	provider = NewProvider(Options{})
	assert.Equal(t, "mock", provider.Name())
}

func TestNewProviderBank(t *testing.T) {
	provider := NewProvider(Options{Provider: "bank", APIURL: "https://pix.example", APIKey: "key"})
	assert.Equal(t, "bank", provider.Name())
}

func TestBankProviderCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/charges", r.URL.Path)
		w.Write([]byte(`{"txid":"TX123","payload":"emv-payload","status":"pending"}`))
	}))
	defer server.Close()

	provider, err := NewBankProvider(server.URL, "test-key", "Merchant")
	require.NoError(t, err)

	charge, err := provider.CreateCharge(context.Background(), "user@example.com", decimal.NewFromInt(100), "")
	require.NoError(t, err)
	assert.Equal(t, "TX123", charge.TxID)
	assert.Equal(t, "emv-payload", charge.Payload)
}

func TestBankProviderCheckStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewBankProvider(server.URL, "test-key", "Merchant")
	require.NoError(t, err)

	_, err = provider.CheckStatus(context.Background(), "TX404")
	assert.ErrorIs(t, err, ErrChargeNotFound)
}
