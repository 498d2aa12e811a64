package lp

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dotpix/dotpix-api/internal/database"
	"github.com/dotpix/dotpix-api/internal/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "lp.db"))
	require.NoError(t, err)
	return NewService(db), db
}

func createUser(t *testing.T, db *gorm.DB, wallet string) *types.User {
	t.Helper()
	user := &types.User{WalletAddress: wallet, Rating: 5.0}
	require.NoError(t, db.Create(user).Error)
	return user
}

func validInput() RegisterInput {
	return RegisterInput{
		PixKey:          "lp@example.com",
		PixKeyType:      "email",
		MinOrderSizeUSD: decimal.NewFromInt(10),
		MaxOrderSizeUSD: decimal.NewFromInt(1000),
	}
}

func TestRegister(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")

	lp, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	assert.True(t, lp.IsActive)
	assert.True(t, lp.IsAvailable)
	assert.Equal(t, 5.0, lp.Rating)
	assert.Equal(t, "email", lp.PixKeyType)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")

	_, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	_, err = svc.Register("lp-wallet", validInput())
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterValidation(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")

	input := validInput()
	input.PixKey = "not-an-email"
	_, err := svc.Register("lp-wallet", input)
	assert.ErrorIs(t, err, ErrInvalidPixKey)

	input = validInput()
	input.MinOrderSizeUSD = decimal.NewFromInt(500)
	input.MaxOrderSizeUSD = decimal.NewFromInt(100)
	_, err = svc.Register("lp-wallet", input)
	assert.ErrorIs(t, err, ErrInvalidLimits)

	_, err = svc.Register("unknown-wallet", validInput())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetAvailability(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")
	_, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	lp, err := svc.SetAvailability("lp-wallet", false)
	require.NoError(t, err)
	assert.False(t, lp.IsAvailable)

	lp, err = svc.SetAvailability("lp-wallet", true)
	require.NoError(t, err)
	assert.True(t, lp.IsAvailable)
}

func TestProfileNotRegistered(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "plain-wallet")

	_, err := svc.Profile("plain-wallet")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestUpdate(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")
	_, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	newKey := "11987654321"
	newType := "phone"
	lp, err := svc.Update("lp-wallet", UpdateInput{PixKey: &newKey, PixKeyType: &newType})
	require.NoError(t, err)
	assert.Equal(t, "phone", lp.PixKeyType)
	assert.Equal(t, "11987654321", lp.PixKey)

	// Changing the key without its type must still validate against the
	// existing type.
	badKey := "short"
	_, err = svc.Update("lp-wallet", UpdateInput{PixKey: &badKey})
	assert.ErrorIs(t, err, ErrInvalidPixKey)

	newMax := decimal.NewFromInt(5)
	_, err = svc.Update("lp-wallet", UpdateInput{MaxOrderSizeUSD: &newMax})
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestAvailableOrdersFiltersBySize(t *testing.T) {
	svc, db := newTestService(t)
	createUser(t, db, "lp-wallet")
	_, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	seller := createUser(t, db, "seller-wallet")
	inRange := &types.Order{
		OrderRef:  "in-range",
		OrderType: types.OrderTypeSell,
		Status:    types.StatusPending,
		UsdAmount: decimal.NewFromInt(500),
		UserID:    seller.ID,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	tooBig := &types.Order{
		OrderRef:  "too-big",
		OrderType: types.OrderTypeSell,
		Status:    types.StatusPending,
		UsdAmount: decimal.NewFromInt(5000),
		UserID:    seller.ID,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	expired := &types.Order{
		OrderRef:  "expired",
		OrderType: types.OrderTypeSell,
		Status:    types.StatusPending,
		UsdAmount: decimal.NewFromInt(500),
		UserID:    seller.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(inRange).Error)
	require.NoError(t, db.Create(tooBig).Error)
	require.NoError(t, db.Create(expired).Error)

	orders, err := svc.AvailableOrders("lp-wallet")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "in-range", orders[0].OrderRef)
}

func TestEarnings(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db, "lp-wallet")
	registered, err := svc.Register("lp-wallet", validInput())
	require.NoError(t, err)

	require.NoError(t, db.Model(registered).Updates(map[string]interface{}{
		"total_orders_processed": 3,
		"total_volume_usd":       decimal.NewFromInt(210),
		"total_earnings_usd":     decimal.RequireFromString("4.20"),
	}).Error)

	completed := &types.Order{
		OrderRef:  "done",
		OrderType: types.OrderTypeSell,
		Status:    types.StatusCompleted,
		UsdAmount: decimal.NewFromInt(70),
		UserID:    user.ID,
		LPID:      &registered.ID,
		ExpiresAt: time.Now(),
	}
	require.NoError(t, db.Create(completed).Error)

	report, err := svc.Earnings("lp-wallet")
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalOrdersProcessed)
	assert.True(t, report.TotalVolumeUSD.Equal(decimal.NewFromInt(210)))
	assert.True(t, report.TotalEarningsUSD.Equal(decimal.RequireFromString("4.2")))
	require.Len(t, report.CompletedOrders, 1)
	assert.Equal(t, "done", report.CompletedOrders[0].OrderRef)
}
