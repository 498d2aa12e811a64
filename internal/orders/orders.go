// Package orders owns the order lifecycle state machine. Every transition
// validates its preconditions locally, performs the chain (and, for BUY
// accepts, payment) call, and only then commits the new status, so the local
// record never moves ahead of the chain.
package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dotpix/dotpix-api/internal/escrow"
	"github.com/dotpix/dotpix-api/internal/limits"
	"github.com/dotpix/dotpix-api/internal/pix"
	"github.com/dotpix/dotpix-api/internal/rates"
	"github.com/dotpix/dotpix-api/internal/types"
)

var (
	ErrInvalidInput     = errors.New("orders: invalid input")
	ErrLimitsExceeded   = errors.New("orders: user limits exceeded")
	ErrWrongStatus      = errors.New("orders: order not in required status")
	ErrOrderExpired     = errors.New("orders: order has expired")
	ErrNotOwner         = errors.New("orders: caller does not own this order")
	ErrNotParticipant   = errors.New("orders: caller is not a participant of this order")
	ErrNotAdmin         = errors.New("orders: administrator role required")
	ErrLPIneligible     = errors.New("orders: liquidity provider not eligible for this order")
	ErrLPNotFound       = errors.New("orders: caller is not a registered liquidity provider")
	ErrNotFound         = errors.New("orders: order not found")
	ErrEscrowFailed     = errors.New("orders: escrow call failed")
	ErrChargeFailed     = errors.New("orders: payment charge failed")
	ErrConcurrentUpdate = errors.New("orders: order was modified concurrently")
)

// Sync statuses reported by GetBlockchainView.
const (
	SyncStatusSynced    = "synced"
	SyncStatusOutOfSync = "out_of_sync"
)

// Service is the order lifecycle engine. All collaborators are injected.
type Service struct {
	db     *Database
	chain  escrow.Gateway
	pix    pix.Provider
	rates  *rates.Service
	locks  *orderLocks
	feePct decimal.Decimal
	expiry time.Duration
}

func NewService(gormDB *gorm.DB, chain escrow.Gateway, provider pix.Provider, rateSvc *rates.Service, feePct decimal.Decimal, expiry time.Duration) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		chain:  chain,
		pix:    provider,
		rates:  rateSvc,
		locks:  newOrderLocks(),
		feePct: feePct,
		expiry: expiry,
	}
}

// CreateOrderInput is the caller's request to open an order.
type CreateOrderInput struct {
	OrderType types.OrderType `json:"order_type" binding:"required"`
	DotAmount decimal.Decimal `json:"dot_amount" binding:"required"`
	PixKey    string          `json:"pix_key"`
}

// CreateOrder opens a new order: amounts are computed at the locked rate,
// limits checked, the local record inserted, and the escrow created on
// chain. If the chain call fails the local record is deleted again; local
// and chain never diverge on existence.
func (s *Service) CreateOrder(ctx context.Context, callerWallet string, input CreateOrderInput) (*types.Order, error) {
	logger := log.With().
		Str("wallet_address", callerWallet).
		Str("order_type", string(input.OrderType)).
		Str("service", "orders").
		Logger()

	if input.OrderType != types.OrderTypeBuy && input.OrderType != types.OrderTypeSell {
		return nil, ErrInvalidInput
	}
	if input.DotAmount.Sign() <= 0 {
		return nil, ErrInvalidInput
	}
	// SELL orders need somewhere to receive the fiat leg.
	if input.OrderType == types.OrderTypeSell && input.PixKey == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.db.GetUserByWallet(callerWallet)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	current := s.rates.GetRates(ctx)
	brlAmount := input.DotAmount.Mul(current.DotToBrl).Round(2)
	usdAmount := input.DotAmount.Mul(current.DotToUsd).Round(2)
	lpFee := brlAmount.Mul(s.feePct).Div(decimal.NewFromInt(100)).Round(2)

	if !limits.WithinUserLimit(input.OrderType, usdAmount, user) {
		logger.Warn().Str("usd_amount", usdAmount.String()).Msg("order exceeds user limit")
		return nil, ErrLimitsExceeded
	}

	dayStart := time.Now().Truncate(24 * time.Hour)
	countToday, err := s.db.CountOrdersToday(user.ID, input.OrderType, dayStart)
	if err != nil {
		return nil, err
	}
	if !limits.UnderDailyCount(input.OrderType, countToday, user) {
		logger.Warn().Int("orders_today", countToday).Msg("daily order count reached")
		return nil, ErrLimitsExceeded
	}

	now := time.Now()
	order := &types.Order{
		OrderRef:           uuid.New().String(),
		OrderType:          input.OrderType,
		Status:             types.StatusPending,
		DotAmount:          input.DotAmount,
		BrlAmount:          brlAmount,
		UsdAmount:          usdAmount,
		ExchangeRateDotBrl: current.DotToBrl,
		LpFeeAmount:        lpFee,
		UserID:             user.ID,
		PixKey:             input.PixKey,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.expiry),
	}

	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}

	result, err := s.chain.CreateOrder(ctx, input.OrderType, input.DotAmount)
	if err != nil {
		logger.Error().Err(err).Str("order_ref", order.OrderRef).Msg("escrow creation failed, deleting local order")
		if delErr := s.db.DeleteOrder(order); delErr != nil {
			logger.Error().Err(delErr).Str("order_ref", order.OrderRef).Msg("compensating delete failed")
		}
		return nil, ErrEscrowFailed
	}

	if err := s.db.AttachChainRefs(order, result.OrderID, result.TxHash, result.BlockNumber); err != nil {
		return nil, err
	}

	logger.Info().
		Str("order_ref", order.OrderRef).
		Uint64("chain_order_id", result.OrderID).
		Str("tx_hash", result.TxHash).
		Msg("order created")

	return order, nil
}

// AcceptOrder lets a liquidity provider take a PENDING order. SELL orders
// accept without a deposit (the seller escrowed at creation); BUY orders
// deposit the DOT and issue the PIX charge the buyer will pay, all within
// one locked transition.
func (s *Service) AcceptOrder(ctx context.Context, orderRef, lpWallet string) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	logger := log.With().
		Str("order_ref", orderRef).
		Str("wallet_address", lpWallet).
		Str("service", "orders").
		Logger()

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != types.StatusPending {
		return nil, ErrWrongStatus
	}
	if order.Expired(time.Now()) {
		return nil, ErrOrderExpired
	}

	lpUser, err := s.db.GetUserByWallet(lpWallet)
	if err != nil {
		return nil, err
	}
	if lpUser == nil {
		return nil, ErrLPNotFound
	}
	lp, err := s.db.GetLPByUserID(lpUser.ID)
	if err != nil {
		return nil, err
	}
	if lp == nil {
		return nil, ErrLPNotFound
	}
	if !limits.LPEligible(lp, order.UsdAmount) {
		return nil, ErrLPIneligible
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	// For BUY orders the charge is issued before the chain accept: a spare
	// pending charge is harmless, an accepted escrow without a charge is a
	// stuck order.
	var charge *pix.Charge
	if order.OrderType == types.OrderTypeBuy {
		charge, err = s.pix.CreateCharge(ctx, lp.PixKey, order.BrlAmount, "")
		if err != nil {
			logger.Error().Err(err).Msg("payment charge failed")
			return nil, ErrChargeFailed
		}
	}

	var result *escrow.CallResult
	if order.OrderType == types.OrderTypeSell {
		result, err = s.chain.AcceptOrder(ctx, *order.ChainOrderID)
	} else {
		result, err = s.chain.AcceptBuyOrder(ctx, *order.ChainOrderID, order.DotAmount)
	}
	if err != nil {
		logger.Error().Err(err).Msg("escrow accept failed")
		return nil, ErrEscrowFailed
	}

	now := time.Now()
	updates := map[string]interface{}{
		"lp_id":        lp.ID,
		"status":       types.StatusAccepted,
		"accepted_at":  now,
		"last_tx_hash": result.TxHash,
	}
	if charge != nil {
		updates["pix_qr_code"] = charge.Payload
		updates["pix_tx_id"] = charge.TxID
	}

	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypeAccept,
		BlockNumber: result.BlockNumber,
	}

	if err := s.db.CommitTransition(order, types.StatusPending, updates, audit, nil); err != nil {
		return nil, err
	}

	logger.Info().Uint("lp_id", lp.ID).Str("tx_hash", result.TxHash).Msg("order accepted")
	return order, nil
}

// ConfirmPayment marks the fiat leg as sent for an ACCEPTED order.
func (s *Service) ConfirmPayment(ctx context.Context, orderRef, pixTxID, paymentProof string) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != types.StatusAccepted {
		return nil, ErrWrongStatus
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	result, err := s.chain.ConfirmPaymentSent(ctx, *order.ChainOrderID)
	if err != nil {
		log.Error().Err(err).Str("order_ref", orderRef).Msg("escrow payment confirmation failed")
		return nil, ErrEscrowFailed
	}

	updates := map[string]interface{}{
		"status":            types.StatusPaymentSent,
		"payment_sent_at":   time.Now(),
		"last_tx_hash":      result.TxHash,
		"pix_payment_proof": paymentProof,
	}
	if pixTxID != "" {
		updates["pix_tx_id"] = pixTxID
	}

	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypePayment,
		BlockNumber: result.BlockNumber,
	}

	if err := s.db.CommitTransition(order, types.StatusAccepted, updates, audit, nil); err != nil {
		return nil, err
	}

	log.Info().Str("order_ref", orderRef).Msg("payment confirmed")
	return order, nil
}

// CompleteOrder releases the escrow for a PAYMENT_SENT order and updates
// participant stats in the same transaction as the status flip.
func (s *Service) CompleteOrder(ctx context.Context, orderRef string) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	logger := log.With().Str("order_ref", orderRef).Str("service", "orders").Logger()

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != types.StatusPaymentSent {
		return nil, ErrWrongStatus
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	// Best-effort payment verification; the LP completing the order is the
	// authoritative confirmation that fiat arrived.
	if order.PixTxID != "" {
		if status, err := s.pix.CheckStatus(ctx, order.PixTxID); err == nil && status != pix.StatusConfirmed {
			logger.Warn().Str("pix_status", status).Msg("completing order with unconfirmed pix charge")
		}
	}

	result, err := s.chain.CompleteOrder(ctx, *order.ChainOrderID)
	if err != nil {
		logger.Error().Err(err).Msg("escrow completion failed")
		return nil, ErrEscrowFailed
	}

	updates := map[string]interface{}{
		"status":       types.StatusCompleted,
		"completed_at": time.Now(),
		"last_tx_hash": result.TxHash,
	}

	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypeRelease,
		BlockNumber: result.BlockNumber,
	}

	err = s.db.CommitTransition(order, types.StatusPaymentSent, updates, audit, func(tx *gorm.DB) error {
		return s.applyCompletionStats(tx, order, true)
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("tx_hash", result.TxHash).Msg("order completed")
	return order, nil
}

// CancelOrder refunds a PENDING or ACCEPTED order. Only the owner may cancel.
func (s *Service) CancelOrder(ctx context.Context, orderRef, callerWallet string) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	caller, err := s.db.GetUserByWallet(callerWallet)
	if err != nil {
		return nil, err
	}
	if caller == nil || caller.ID != order.UserID {
		return nil, ErrNotOwner
	}

	if order.Status != types.StatusPending && order.Status != types.StatusAccepted {
		return nil, ErrWrongStatus
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	result, err := s.chain.CancelOrder(ctx, *order.ChainOrderID)
	if err != nil {
		log.Error().Err(err).Str("order_ref", orderRef).Msg("escrow cancellation failed")
		return nil, ErrEscrowFailed
	}

	expected := order.Status
	updates := map[string]interface{}{
		"status":       types.StatusCancelled,
		"cancelled_at": time.Now(),
		"last_tx_hash": result.TxHash,
	}

	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypeRefund,
		BlockNumber: result.BlockNumber,
	}

	if err := s.db.CommitTransition(order, expected, updates, audit, nil); err != nil {
		return nil, err
	}

	log.Info().Str("order_ref", orderRef).Msg("order cancelled")
	return order, nil
}

// CreateDispute freezes a PAYMENT_SENT order. Only the two participants may
// open a dispute.
func (s *Service) CreateDispute(ctx context.Context, orderRef, callerWallet, reason string) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	participant, err := s.isParticipant(order, callerWallet)
	if err != nil {
		return nil, err
	}
	if !participant {
		return nil, ErrNotParticipant
	}

	if order.Status != types.StatusPaymentSent {
		return nil, ErrWrongStatus
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	result, err := s.chain.CreateDispute(ctx, *order.ChainOrderID)
	if err != nil {
		log.Error().Err(err).Str("order_ref", orderRef).Msg("escrow dispute creation failed")
		return nil, ErrEscrowFailed
	}

	updates := map[string]interface{}{
		"status":         types.StatusDisputed,
		"dispute_reason": reason,
		"last_tx_hash":   result.TxHash,
	}

	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypeDispute,
		BlockNumber: result.BlockNumber,
	}

	if err := s.db.CommitTransition(order, types.StatusPaymentSent, updates, audit, nil); err != nil {
		return nil, err
	}

	log.Info().Str("order_ref", orderRef).Str("reason", reason).Msg("dispute created")
	return order, nil
}

// ResolveDispute terminates a DISPUTED order as COMPLETED, with the contract
// transferring funds to the favored side. Admin only; the persisted role is
// checked before any chain call.
func (s *Service) ResolveDispute(ctx context.Context, orderRef, adminWallet string, favorBuyer bool) (*types.Order, error) {
	release := s.locks.acquire(orderRef)
	defer release()

	logger := log.With().
		Str("order_ref", orderRef).
		Bool("favor_buyer", favorBuyer).
		Str("service", "orders").
		Logger()

	admin, err := s.db.GetUserByWallet(adminWallet)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.IsAdmin {
		return nil, ErrNotAdmin
	}

	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.Status != types.StatusDisputed {
		return nil, ErrWrongStatus
	}
	if order.ChainOrderID == nil {
		return nil, ErrWrongStatus
	}

	result, err := s.chain.ResolveDispute(ctx, *order.ChainOrderID, favorBuyer)
	if err != nil {
		logger.Error().Err(err).Msg("escrow dispute resolution failed")
		return nil, ErrEscrowFailed
	}

	updates := map[string]interface{}{
		"status":       types.StatusCompleted,
		"completed_at": time.Now(),
		"last_tx_hash": result.TxHash,
	}

	// The contract releases the escrowed funds when it resolves, so the order
	// gets a release row like any other completion, plus the resolve marker.
	audit := &types.Transaction{
		TxHash:      result.TxHash,
		TxType:      types.TxTypeRelease,
		BlockNumber: result.BlockNumber,
	}

	err = s.db.CommitTransition(order, types.StatusDisputed, updates, audit, func(tx *gorm.DB) error {
		marker := &types.Transaction{
			OrderID:     order.ID,
			TxHash:      result.TxHash,
			TxType:      types.TxTypeResolve,
			BlockNumber: result.BlockNumber,
		}
		if err := tx.Create(marker).Error; err != nil {
			return err
		}
		// A resolved dispute counts toward totals but not successes.
		return s.applyCompletionStats(tx, order, false)
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("tx_hash", result.TxHash).Msg("dispute resolved")
	return order, nil
}

// applyCompletionStats updates the owner's and provider's cumulative stats
// inside the completing transaction. LP earnings follow the fixed decimal
// policy: fee converted to USD at the order's locked rates, rounded to cents.
func (s *Service) applyCompletionStats(tx *gorm.DB, order *types.Order, successful bool) error {
	userUpdates := map[string]interface{}{
		"total_orders": gorm.Expr("total_orders + 1"),
	}
	if successful {
		userUpdates["successful_orders"] = gorm.Expr("successful_orders + 1")
	}
	if err := tx.Model(&types.User{}).Where("id = ?", order.UserID).Updates(userUpdates).Error; err != nil {
		return err
	}

	if order.LPID == nil {
		return nil
	}

	var lp types.LiquidityProvider
	if err := tx.First(&lp, *order.LPID).Error; err != nil {
		return err
	}

	earningsUSD := decimal.Zero
	if order.BrlAmount.Sign() > 0 {
		earningsUSD = order.LpFeeAmount.Mul(order.UsdAmount).Div(order.BrlAmount).Round(2)
	}

	return tx.Model(&lp).Updates(map[string]interface{}{
		"total_orders_processed": gorm.Expr("total_orders_processed + 1"),
		"total_volume_usd":       lp.TotalVolumeUSD.Add(order.UsdAmount),
		"total_earnings_usd":     lp.TotalEarningsUSD.Add(earningsUSD),
	}).Error
}

func (s *Service) isParticipant(order *types.Order, wallet string) (bool, error) {
	caller, err := s.db.GetUserByWallet(wallet)
	if err != nil {
		return false, err
	}
	if caller == nil {
		return false, nil
	}
	if caller.ID == order.UserID {
		return true, nil
	}
	if order.LPID != nil {
		lp, err := s.db.GetLPByID(*order.LPID)
		if err != nil {
			return false, err
		}
		if lp != nil && lp.UserID == caller.ID {
			return true, nil
		}
	}
	return false, nil
}

// GetOrder retrieves an order by its ref.
func (s *Service) GetOrder(orderRef string) (*types.Order, error) {
	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

// ListActiveOrders returns unexpired PENDING orders, optionally filtered by type.
func (s *Service) ListActiveOrders(typeFilter *types.OrderType) ([]types.Order, error) {
	return s.db.ListActiveOrders(typeFilter, time.Now())
}

// ListOrdersForWallet returns all orders created by a wallet's user.
func (s *Service) ListOrdersForWallet(wallet string) ([]types.Order, error) {
	user, err := s.db.GetUserByWallet(wallet)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return s.db.ListOrdersForUser(user.ID)
}

// ListTransactions returns the append-only chain audit trail for an order.
func (s *Service) ListTransactions(orderRef string) ([]types.Transaction, error) {
	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return s.db.ListTransactions(order.ID)
}

// GetExchangeRates surfaces the cached rates.
func (s *Service) GetExchangeRates(ctx context.Context) types.RatesResponse {
	return s.rates.GetRates(ctx)
}

// GetBlockchainView fetches the chain's view of an order and compares it with
// the local record. Divergence is reported, never corrected: the chain is the
// source of truth for custody and any re-sync needs an explicit policy.
func (s *Service) GetBlockchainView(ctx context.Context, orderRef string) (*types.BlockchainView, error) {
	order, err := s.db.GetOrderByRef(orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	view := &types.BlockchainView{
		Local:      order,
		SyncStatus: SyncStatusOutOfSync,
	}

	if order.ChainOrderID == nil {
		return view, nil
	}

	chainOrder, err := s.chain.GetOrder(ctx, *order.ChainOrderID)
	if err != nil {
		log.Error().Err(err).Str("order_ref", orderRef).Msg("failed to read chain order")
		return nil, ErrEscrowFailed
	}

	view.Chain = chainOrder
	if strings.EqualFold(string(order.Status), string(chainOrder.Status)) {
		view.SyncStatus = SyncStatusSynced
	} else {
		log.Warn().
			Str("order_ref", orderRef).
			Str("local_status", string(order.Status)).
			Str("chain_status", string(chainOrder.Status)).
			Msg("local and chain order status diverged")
	}

	return view, nil
}
