package pix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// BankProvider talks to a hosted PIX API over HTTP. The concrete upstream is
// interchangeable as long as it exposes charge creation and status lookup.
type BankProvider struct {
	baseURL    string
	apiKey     string
	merchant   string
	httpClient *http.Client
}

func NewBankProvider(baseURL, apiKey, merchant string) (*BankProvider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("pix: bank provider requires api url and key")
	}
	return &BankProvider{
		baseURL:  baseURL,
		apiKey:   apiKey,
		merchant: merchant,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (p *BankProvider) Name() string { return "bank" }

type bankChargeRequest struct {
	PixKey        string `json:"pix_key"`
	Amount        string `json:"amount"`
	RecipientName string `json:"recipient_name"`
}

type bankChargeResponse struct {
	TxID    string `json:"txid"`
	Payload string `json:"payload"`
	Status  string `json:"status"`
}

func (p *BankProvider) CreateCharge(ctx context.Context, pixKey string, amount decimal.Decimal, recipientName string) (*Charge, error) {
	if recipientName == "" {
		recipientName = p.merchant
	}

	body, err := json.Marshal(bankChargeRequest{
		PixKey:        pixKey,
		Amount:        amount.StringFixed(2),
		RecipientName: recipientName,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, http.MethodPost, "/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var created bankChargeResponse
	if err := json.Unmarshal(resp, &created); err != nil {
		return nil, fmt.Errorf("%w: decoding charge response: %v", ErrChargeFailed, err)
	}
	if created.TxID == "" {
		return nil, ErrChargeFailed
	}

	return &Charge{
		TxID:    created.TxID,
		Payload: created.Payload,
		PixKey:  pixKey,
		Amount:  amount,
	}, nil
}

func (p *BankProvider) CheckStatus(ctx context.Context, txid string) (string, error) {
	resp, err := p.do(ctx, http.MethodGet, "/v1/charges/"+txid, nil)
	if err != nil {
		return "", err
	}

	var charge bankChargeResponse
	if err := json.Unmarshal(resp, &charge); err != nil {
		return "", fmt.Errorf("pix: decoding status response: %w", err)
	}

	switch charge.Status {
	case StatusPending, StatusConfirmed, StatusFailed:
		return charge.Status, nil
	default:
		return "", fmt.Errorf("pix: unknown charge status %q", charge.Status)
	}
}

func (p *BankProvider) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrChargeNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: upstream status %d", ErrChargeFailed, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
