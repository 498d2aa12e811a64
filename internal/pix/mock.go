package pix

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockProvider simulates the payment rail entirely in process. Charges live
// in memory and are lost on restart; payments are confirmed manually via
// ConfirmPayment (the stand-in for a bank webhook).
type MockProvider struct {
	merchant string
	city     string

	mu      sync.Mutex
	charges map[string]*mockCharge
}

type mockCharge struct {
	charge *Charge
	status string
}

func NewMockProvider(merchant, city string) *MockProvider {
	if merchant == "" {
		merchant = "DotPix LP"
	}
	if city == "" {
		city = "Sao Paulo"
	}
	return &MockProvider{
		merchant: merchant,
		city:     city,
		charges:  make(map[string]*mockCharge),
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) CreateCharge(_ context.Context, pixKey string, amount decimal.Decimal, recipientName string) (*Charge, error) {
	if amount.Sign() <= 0 {
		return nil, ErrChargeFailed
	}
	if recipientName == "" {
		recipientName = p.merchant
	}

	txid := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:25]

	// Simplified payload; real providers emit the central-bank EMV format.
	payload := fmt.Sprintf("PIX|KEY:%s|AMOUNT:%s|TXID:%s|NAME:%s|CITY:%s",
		pixKey, amount.StringFixed(2), txid, recipientName, p.city)

	charge := &Charge{
		TxID:    txid,
		Payload: payload,
		PixKey:  pixKey,
		Amount:  amount,
	}

	p.mu.Lock()
	p.charges[txid] = &mockCharge{charge: charge, status: StatusPending}
	p.mu.Unlock()

	return charge, nil
}

func (p *MockProvider) CheckStatus(_ context.Context, txid string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.charges[txid]
	if !ok {
		return "", ErrChargeNotFound
	}
	return entry.status, nil
}

// ConfirmPayment marks a charge as paid. Only the mock exposes this; real
// providers confirm through webhooks.
func (p *MockProvider) ConfirmPayment(txid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.charges[txid]
	if !ok {
		return false
	}
	entry.status = StatusConfirmed
	return true
}
