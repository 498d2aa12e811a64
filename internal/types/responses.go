package types

import "github.com/shopspring/decimal"

// RatesResponse carries the current DOT exchange rates.
type RatesResponse struct {
	DotToBrl decimal.Decimal `json:"dot_to_brl"`
	DotToUsd decimal.Decimal `json:"dot_to_usd"`
	Source   string          `json:"source"` // "live" or "fallback"
}

// BlockchainView compares the local record with the chain's view of the same
// order. Divergence is surfaced, never auto-corrected.
type BlockchainView struct {
	Local      *Order      `json:"local"`
	Chain      *ChainOrder `json:"chain"`
	SyncStatus string      `json:"sync_status"` // "synced" or "out_of_sync"
}

// ChainOrder is the contract's view of an order, already mapped back into the
// local status vocabulary and DOT units.
type ChainOrder struct {
	OrderID   uint64          `json:"order_id"`
	Status    OrderStatus     `json:"status"`
	DotAmount decimal.Decimal `json:"dot_amount"`
	LpFee     decimal.Decimal `json:"lp_fee"`
	Buyer     string          `json:"buyer,omitempty"`
	Seller    string          `json:"seller,omitempty"`
}
