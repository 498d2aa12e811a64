// Package lp manages liquidity provider registration, availability and
// earnings reporting.
package lp

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dotpix/dotpix-api/internal/pix"
	"github.com/dotpix/dotpix-api/internal/types"
)

var (
	ErrAlreadyRegistered = errors.New("lp: wallet is already a registered provider")
	ErrNotRegistered     = errors.New("lp: wallet is not a registered provider")
	ErrInvalidPixKey     = errors.New("lp: invalid pix key for key type")
	ErrInvalidLimits     = errors.New("lp: invalid order size limits")
	ErrUserNotFound      = errors.New("lp: user not found")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetUserByWallet(wallet string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) GetByUserID(userID uint) (*types.LiquidityProvider, error) {
	var lp types.LiquidityProvider
	if err := d.db.Where("user_id = ?", userID).First(&lp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lp, nil
}

func (d *Database) Create(lp *types.LiquidityProvider) error {
	return d.db.Create(lp).Error
}

func (d *Database) Save(lp *types.LiquidityProvider) error {
	return d.db.Save(lp).Error
}

// ListAvailableOrders returns unexpired PENDING orders within the provider's
// size limits, newest first.
func (d *Database) ListAvailableOrders(lp *types.LiquidityProvider, now time.Time) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.
		Where("status = ? AND expires_at > ?", types.StatusPending, now).
		Where("usd_amount >= ? AND usd_amount <= ?", lp.MinOrderSizeUSD, lp.MaxOrderSizeUSD).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CompletedOrdersForLP returns the provider's COMPLETED orders, newest first.
func (d *Database) CompletedOrdersForLP(lpID uint) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.
		Where("lp_id = ? AND status = ?", lpID, types.StatusCompleted).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Service handles the liquidity provider side of the exchange.
type Service struct {
	db *Database
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: NewDatabase(db)}
}

// RegisterInput is a wallet's request to become a liquidity provider.
type RegisterInput struct {
	PixKey          string          `json:"pix_key" binding:"required"`
	PixKeyType      string          `json:"pix_key_type" binding:"required"`
	MinOrderSizeUSD decimal.Decimal `json:"min_order_size_usd"`
	MaxOrderSizeUSD decimal.Decimal `json:"max_order_size_usd"`
}

// Register creates a provider profile for a wallet. One profile per user;
// the payout key must be valid for its declared type.
func (s *Service) Register(wallet string, input RegisterInput) (*types.LiquidityProvider, error) {
	user, err := s.db.GetUserByWallet(wallet)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.db.GetByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	if !pix.ValidateKey(input.PixKey, input.PixKeyType) {
		return nil, ErrInvalidPixKey
	}
	if input.MinOrderSizeUSD.Sign() < 0 || input.MaxOrderSizeUSD.Sign() <= 0 {
		return nil, ErrInvalidLimits
	}
	if input.MaxOrderSizeUSD.LessThan(input.MinOrderSizeUSD) {
		return nil, ErrInvalidLimits
	}

	lp := &types.LiquidityProvider{
		UserID:          user.ID,
		PixKey:          input.PixKey,
		PixKeyType:      input.PixKeyType,
		Rating:          5.0,
		IsActive:        true,
		IsAvailable:     true,
		MinOrderSizeUSD: input.MinOrderSizeUSD,
		MaxOrderSizeUSD: input.MaxOrderSizeUSD,
	}
	if err := s.db.Create(lp); err != nil {
		return nil, err
	}

	log.Info().
		Str("wallet_address", wallet).
		Uint("lp_id", lp.ID).
		Str("pix_key_type", input.PixKeyType).
		Msg("liquidity provider registered")

	return lp, nil
}

// Profile returns the provider profile bound to a wallet.
func (s *Service) Profile(wallet string) (*types.LiquidityProvider, error) {
	lp, err := s.lpByWallet(wallet)
	if err != nil {
		return nil, err
	}
	return lp, nil
}

// SetAvailability toggles whether the provider is currently taking orders.
func (s *Service) SetAvailability(wallet string, available bool) (*types.LiquidityProvider, error) {
	lp, err := s.lpByWallet(wallet)
	if err != nil {
		return nil, err
	}

	lp.IsAvailable = available
	if err := s.db.Save(lp); err != nil {
		return nil, err
	}

	log.Info().Uint("lp_id", lp.ID).Bool("available", available).Msg("provider availability updated")
	return lp, nil
}

// UpdateInput changes a provider's payout key or order size limits.
type UpdateInput struct {
	PixKey          *string          `json:"pix_key"`
	PixKeyType      *string          `json:"pix_key_type"`
	MinOrderSizeUSD *decimal.Decimal `json:"min_order_size_usd"`
	MaxOrderSizeUSD *decimal.Decimal `json:"max_order_size_usd"`
}

// Update applies partial changes to the provider profile. Key and key type
// change together so the pair always validates.
func (s *Service) Update(wallet string, input UpdateInput) (*types.LiquidityProvider, error) {
	lp, err := s.lpByWallet(wallet)
	if err != nil {
		return nil, err
	}

	if input.PixKey != nil || input.PixKeyType != nil {
		key := lp.PixKey
		keyType := lp.PixKeyType
		if input.PixKey != nil {
			key = *input.PixKey
		}
		if input.PixKeyType != nil {
			keyType = *input.PixKeyType
		}
		if !pix.ValidateKey(key, keyType) {
			return nil, ErrInvalidPixKey
		}
		lp.PixKey = key
		lp.PixKeyType = keyType
	}

	if input.MinOrderSizeUSD != nil {
		lp.MinOrderSizeUSD = *input.MinOrderSizeUSD
	}
	if input.MaxOrderSizeUSD != nil {
		lp.MaxOrderSizeUSD = *input.MaxOrderSizeUSD
	}
	if lp.MinOrderSizeUSD.Sign() < 0 || lp.MaxOrderSizeUSD.Sign() <= 0 {
		return nil, ErrInvalidLimits
	}
	if lp.MaxOrderSizeUSD.LessThan(lp.MinOrderSizeUSD) {
		return nil, ErrInvalidLimits
	}

	if err := s.db.Save(lp); err != nil {
		return nil, err
	}
	return lp, nil
}

// AvailableOrders lists the PENDING orders this provider could accept.
func (s *Service) AvailableOrders(wallet string) ([]types.Order, error) {
	lp, err := s.lpByWallet(wallet)
	if err != nil {
		return nil, err
	}
	return s.db.ListAvailableOrders(lp, time.Now())
}

// EarningsReport summarizes a provider's processed volume and fees.
type EarningsReport struct {
	TotalOrdersProcessed int             `json:"total_orders_processed"`
	TotalVolumeUSD       decimal.Decimal `json:"total_volume_usd"`
	TotalEarningsUSD     decimal.Decimal `json:"total_earnings_usd"`
	CompletedOrders      []types.Order   `json:"completed_orders"`
}

// Earnings returns the provider's cumulative stats with the completed orders
// behind them.
func (s *Service) Earnings(wallet string) (*EarningsReport, error) {
	lp, err := s.lpByWallet(wallet)
	if err != nil {
		return nil, err
	}

	completed, err := s.db.CompletedOrdersForLP(lp.ID)
	if err != nil {
		return nil, err
	}

	return &EarningsReport{
		TotalOrdersProcessed: lp.TotalOrdersProcessed,
		TotalVolumeUSD:       lp.TotalVolumeUSD,
		TotalEarningsUSD:     lp.TotalEarningsUSD,
		CompletedOrders:      completed,
	}, nil
}

func (s *Service) lpByWallet(wallet string) (*types.LiquidityProvider, error) {
	user, err := s.db.GetUserByWallet(wallet)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	lp, err := s.db.GetByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	if lp == nil {
		return nil, ErrNotRegistered
	}
	return lp, nil
}
