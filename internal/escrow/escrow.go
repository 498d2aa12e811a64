// Package escrow wraps the on-chain escrow contract behind a request/response
// gateway. Write operations require a connected node and a signing identity
// and fail fast otherwise; no call panics across the package boundary.
package escrow

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/types"
)

var (
	ErrNotConnected  = errors.New("escrow: not connected to chain node")
	ErrNoSigner      = errors.New("escrow: no signing identity configured")
	ErrCallFailed    = errors.New("escrow: contract call failed")
	ErrOrderNotFound = errors.New("escrow: order not found on chain")
	ErrInvalidStatus = errors.New("escrow: order not in required status")
	ErrBadAmount     = errors.New("escrow: amount not representable in planck")
)

// CallResult is the successful outcome of a state-changing contract call.
// OrderID is populated only by CreateOrder.
type CallResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	OrderID     uint64 `json:"order_id,omitempty"`
}

// Gateway exposes the escrow contract's order lifecycle. Implementations:
// ChainGateway (websocket JSON-RPC against a node) and Simulator (in-process).
type Gateway interface {
	Connected() bool
	CreateOrder(ctx context.Context, orderType types.OrderType, amount decimal.Decimal) (*CallResult, error)
	AcceptOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error)
	AcceptBuyOrder(ctx context.Context, chainOrderID uint64, amount decimal.Decimal) (*CallResult, error)
	ConfirmPaymentSent(ctx context.Context, chainOrderID uint64) (*CallResult, error)
	CompleteOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error)
	CancelOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error)
	CreateDispute(ctx context.Context, chainOrderID uint64) (*CallResult, error)
	ResolveDispute(ctx context.Context, chainOrderID uint64, favorBuyer bool) (*CallResult, error)
	GetOrder(ctx context.Context, chainOrderID uint64) (*types.ChainOrder, error)
}

// planckExp is the chain's scaling factor: 1 DOT = 10^10 planck.
const planckExp = 10

// ToPlanck converts a DOT quantity to the chain's indivisible unit. Amounts
// with sub-planck precision or outside the uint64 range are rejected.
func ToPlanck(dot decimal.Decimal) (uint64, error) {
	if dot.Sign() <= 0 {
		return 0, ErrBadAmount
	}
	scaled := dot.Shift(planckExp)
	if !scaled.IsInteger() {
		return 0, ErrBadAmount
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, ErrBadAmount
	}
	return bi.Uint64(), nil
}

// FromPlanck converts a planck quantity back to DOT.
func FromPlanck(planck uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(planck), -planckExp)
}
