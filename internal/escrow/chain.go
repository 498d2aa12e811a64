package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/types"
)

// ChainGateway drives the escrow contract through a node's JSON-RPC sidecar.
// Writes are signed server-side by the node using the configured seed, so a
// missing signer makes every state-changing call fail before touching the
// network.
type ChainGateway struct {
	client   *rpcClient
	contract string
	signer   string
	timeout  time.Duration
}

// NewChainGateway constructs the gateway and attempts an initial connection.
// A failed dial is logged, not fatal: calls fail fast until the node is back.
func NewChainGateway(nodeURL, contract, signerSeed string, timeout time.Duration) *ChainGateway {
	g := &ChainGateway{
		client:   newRPCClient(nodeURL),
		contract: contract,
		signer:   signerSeed,
		timeout:  timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := g.client.Connect(ctx); err != nil {
		log.Warn().Err(err).Str("url", nodeURL).Msg("initial chain connection failed")
	}

	return g
}

// Connected reports whether the node socket is up. Used by the health check.
func (g *ChainGateway) Connected() bool {
	return g.client.Connected()
}

// Close tears down the node connection.
func (g *ChainGateway) Close() {
	g.client.Close()
}

type submitParams struct {
	Contract string            `json:"contract"`
	Method   string            `json:"method"`
	Args     map[string]uint64 `json:"args"`
	Value    uint64            `json:"value,omitempty"`
	Signer   string            `json:"signer"`
}

type readParams struct {
	Contract string            `json:"contract"`
	Method   string            `json:"method"`
	Args     map[string]uint64 `json:"args"`
}

type submitResult struct {
	TxHash      string          `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
	Result      json.RawMessage `json:"result"`
}

// submit performs one signed contract call and never lets a transport error
// escape as anything but a plain error value.
func (g *ChainGateway) submit(ctx context.Context, method string, args map[string]uint64, value uint64) (*submitResult, error) {
	if g.signer == "" {
		return nil, ErrNoSigner
	}
	if !g.client.Connected() {
		return nil, ErrNotConnected
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Call(callCtx, "contracts_submit", submitParams{
		Contract: g.contract,
		Method:   method,
		Args:     args,
		Value:    value,
		Signer:   g.signer,
	})
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("contract call failed")
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, method)
	}

	var result submitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding %s result: %v", ErrCallFailed, method, err)
	}

	log.Info().
		Str("method", method).
		Str("tx_hash", result.TxHash).
		Uint64("block_number", result.BlockNumber).
		Msg("contract call submitted")

	return &result, nil
}

func (g *ChainGateway) CreateOrder(ctx context.Context, orderType types.OrderType, amount decimal.Decimal) (*CallResult, error) {
	planck, err := ToPlanck(amount)
	if err != nil {
		return nil, err
	}

	// SELL escrows the user's DOT at creation; BUY creates an empty order the
	// accepting LP funds later.
	value := uint64(0)
	if orderType == types.OrderTypeSell {
		value = planck
	}

	res, err := g.submit(ctx, "create_order", map[string]uint64{"amount": planck}, value)
	if err != nil {
		return nil, err
	}

	var orderID uint64
	if err := json.Unmarshal(res.Result, &orderID); err != nil {
		return nil, fmt.Errorf("%w: decoding created order id: %v", ErrCallFailed, err)
	}

	return &CallResult{TxHash: res.TxHash, BlockNumber: res.BlockNumber, OrderID: orderID}, nil
}

func (g *ChainGateway) AcceptOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error) {
	return g.simple(ctx, "accept_order", chainOrderID, 0)
}

func (g *ChainGateway) AcceptBuyOrder(ctx context.Context, chainOrderID uint64, amount decimal.Decimal) (*CallResult, error) {
	planck, err := ToPlanck(amount)
	if err != nil {
		return nil, err
	}
	return g.simple(ctx, "accept_buy_order", chainOrderID, planck)
}

func (g *ChainGateway) ConfirmPaymentSent(ctx context.Context, chainOrderID uint64) (*CallResult, error) {
	return g.simple(ctx, "confirm_payment_sent", chainOrderID, 0)
}

func (g *ChainGateway) CompleteOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error) {
	return g.simple(ctx, "complete_order", chainOrderID, 0)
}

func (g *ChainGateway) CancelOrder(ctx context.Context, chainOrderID uint64) (*CallResult, error) {
	return g.simple(ctx, "cancel_order", chainOrderID, 0)
}

func (g *ChainGateway) CreateDispute(ctx context.Context, chainOrderID uint64) (*CallResult, error) {
	return g.simple(ctx, "create_dispute", chainOrderID, 0)
}

func (g *ChainGateway) ResolveDispute(ctx context.Context, chainOrderID uint64, favorBuyer bool) (*CallResult, error) {
	favor := uint64(0)
	if favorBuyer {
		favor = 1
	}
	res, err := g.submit(ctx, "resolve_dispute", map[string]uint64{
		"order_id":    chainOrderID,
		"favor_buyer": favor,
	}, 0)
	if err != nil {
		return nil, err
	}
	return &CallResult{TxHash: res.TxHash, BlockNumber: res.BlockNumber}, nil
}

func (g *ChainGateway) simple(ctx context.Context, method string, chainOrderID, value uint64) (*CallResult, error) {
	res, err := g.submit(ctx, method, map[string]uint64{"order_id": chainOrderID}, value)
	if err != nil {
		return nil, err
	}
	return &CallResult{TxHash: res.TxHash, BlockNumber: res.BlockNumber}, nil
}

type chainOrderPayload struct {
	ID     uint64 `json:"id"`
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
	Amount uint64 `json:"amount"`
	LpFee  uint64 `json:"lp_fee"`
	Status int    `json:"status"`
}

// GetOrder is a read: it needs no signer, only a live connection.
func (g *ChainGateway) GetOrder(ctx context.Context, chainOrderID uint64) (*types.ChainOrder, error) {
	if !g.client.Connected() {
		return nil, ErrNotConnected
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Call(callCtx, "contracts_read", readParams{
		Contract: g.contract,
		Method:   "get_order",
		Args:     map[string]uint64{"order_id": chainOrderID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get_order", ErrCallFailed)
	}

	if string(raw) == "null" {
		return nil, ErrOrderNotFound
	}

	var payload chainOrderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding get_order result: %v", ErrCallFailed, err)
	}

	return &types.ChainOrder{
		OrderID:   payload.ID,
		Status:    StatusFromChain(payload.Status),
		DotAmount: FromPlanck(payload.Amount),
		LpFee:     FromPlanck(payload.LpFee),
		Buyer:     payload.Buyer,
		Seller:    payload.Seller,
	}, nil
}
