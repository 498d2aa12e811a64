package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order. The same vocabulary is
// used by the escrow contract; see escrow.StatusFromChain for the mapping.
type OrderStatus string

const (
	StatusPending     OrderStatus = "PENDING"
	StatusAccepted    OrderStatus = "ACCEPTED"
	StatusPaymentSent OrderStatus = "PAYMENT_SENT"
	StatusCompleted   OrderStatus = "COMPLETED"
	StatusDisputed    OrderStatus = "DISPUTED"
	StatusCancelled   OrderStatus = "CANCELLED"
)

// OrderType distinguishes who custodies DOT at creation time.
// BUY: user wants DOT and pays BRL via PIX, the accepting LP deposits DOT.
// SELL: user escrows DOT at creation and receives BRL via PIX.
type OrderType string

const (
	OrderTypeBuy  OrderType = "BUY"
	OrderTypeSell OrderType = "SELL"
)

// Transaction types recorded in the audit trail.
const (
	TxTypeEscrow  = "escrow"
	TxTypeAccept  = "accept"
	TxTypePayment = "payment"
	TxTypeRelease = "release"
	TxTypeRefund  = "refund"
	TxTypeDispute = "dispute"
	TxTypeResolve = "resolve"
)

type User struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	WalletAddress string `gorm:"uniqueIndex" json:"wallet_address"`

	// Limits
	BuyLimitUSD      decimal.Decimal `gorm:"type:decimal(20,2)" json:"buy_limit_usd"`
	BuyOrdersPerDay  int             `json:"buy_orders_per_day"`
	SellLimitUSD     decimal.Decimal `gorm:"type:decimal(20,2)" json:"sell_limit_usd"`
	SellOrdersPerDay int             `json:"sell_orders_per_day"`

	// Stats
	TotalOrders      int     `json:"total_orders"`
	SuccessfulOrders int     `json:"successful_orders"`
	Rating           float64 `json:"rating"`

	// Verification
	IsVerified        bool `json:"is_verified"`
	VerificationLevel int  `json:"verification_level"`
	IsAdmin           bool `json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LiquidityProvider struct {
	ID     uint `gorm:"primarykey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	// PIX payout details
	PixKey     string `json:"pix_key"`
	PixKeyType string `json:"pix_key_type"` // cpf, email, phone, random

	// Stats
	TotalOrdersProcessed int             `json:"total_orders_processed"`
	TotalVolumeUSD       decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_volume_usd"`
	TotalEarningsUSD     decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_earnings_usd"`
	Rating               float64         `json:"rating"`

	// Status
	IsActive    bool `json:"is_active"`
	IsAvailable bool `json:"is_available"`

	// Order size limits in fiat-equivalent USD
	MinOrderSizeUSD decimal.Decimal `gorm:"type:decimal(20,2)" json:"min_order_size_usd"`
	MaxOrderSizeUSD decimal.Decimal `gorm:"type:decimal(20,2)" json:"max_order_size_usd"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	OrderRef string `gorm:"uniqueIndex" json:"order_ref"`

	OrderType OrderType   `json:"order_type"`
	Status    OrderStatus `json:"status"`

	// Amounts. The exchange rate is locked at creation and immutable after.
	DotAmount          decimal.Decimal `gorm:"type:decimal(30,10)" json:"dot_amount"`
	BrlAmount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"brl_amount"`
	UsdAmount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"usd_amount"`
	ExchangeRateDotBrl decimal.Decimal `gorm:"type:decimal(20,8)" json:"exchange_rate_dot_brl"`
	LpFeeAmount        decimal.Decimal `gorm:"type:decimal(20,2)" json:"lp_fee_amount"`

	// Participants. LPID is set exactly when the order is accepted.
	UserID uint  `json:"user_id"`
	LPID   *uint `gorm:"column:lp_id" json:"lp_id"`

	// PIX leg
	PixKey          string `json:"pix_key,omitempty"`
	PixQRCode       string `json:"pix_qr_code,omitempty"`
	PixTxID         string `json:"pix_txid,omitempty"`
	PixPaymentProof string `json:"pix_payment_proof,omitempty"`

	// Chain leg. ChainOrderID is set only after successful escrow creation;
	// LastTxHash is overwritten on every successful chain call, with the full
	// history kept in Transaction rows.
	ChainOrderID *uint64 `json:"chain_order_id"`
	LastTxHash   string  `json:"last_tx_hash,omitempty"`

	DisputeReason string `json:"dispute_reason,omitempty"`
	Notes         string `json:"notes,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
	PaymentSentAt *time.Time `json:"payment_sent_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// Expired reports whether the order's acceptance window has closed.
func (o *Order) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// Transaction is the append-only audit record of chain calls. Rows are never
// mutated or deleted.
type Transaction struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	OrderID     uint      `gorm:"index" json:"order_id"`
	TxHash      string    `json:"tx_hash"`
	TxType      string    `json:"tx_type"`
	BlockNumber uint64    `json:"block_number"`
	CreatedAt   time.Time `json:"created_at"`
}
