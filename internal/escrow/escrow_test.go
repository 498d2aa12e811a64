package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotpix/dotpix-api/internal/types"
)

func TestToPlanck(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    uint64
		wantErr bool
	}{
		{name: "one dot", amount: "1", want: 10000000000},
		{name: "fractional dot", amount: "2.5", want: 25000000000},
		{name: "smallest unit", amount: "0.0000000001", want: 1},
		{name: "zero rejected", amount: "0", wantErr: true},
		{name: "negative rejected", amount: "-1", wantErr: true},
		{name: "sub planck precision rejected", amount: "0.00000000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)

			planck, err := ToPlanck(amount)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, planck)
		})
	}
}

func TestFromPlanckRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("123.4567890123")
	planck, err := ToPlanck(amount)
	require.NoError(t, err)
	assert.True(t, amount.Equal(FromPlanck(planck)))
}

func TestStatusFromChain(t *testing.T) {
	assert.Equal(t, types.StatusPending, StatusFromChain(0))
	assert.Equal(t, types.StatusAccepted, StatusFromChain(1))
	assert.Equal(t, types.StatusPaymentSent, StatusFromChain(2))
	assert.Equal(t, types.StatusCompleted, StatusFromChain(3))
	assert.Equal(t, types.StatusDisputed, StatusFromChain(4))
	assert.Equal(t, types.StatusCancelled, StatusFromChain(5))
}

func TestSimulatorLifecycle(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	created, err := sim.CreateOrder(ctx, types.OrderTypeSell, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.NotZero(t, created.OrderID)
	assert.NotEmpty(t, created.TxHash)

	chainOrder, err := sim.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, chainOrder.Status)
	// 2% of 10 DOT
	assert.True(t, chainOrder.LpFee.Equal(decimal.RequireFromString("0.2")), chainOrder.LpFee.String())

	_, err = sim.AcceptOrder(ctx, created.OrderID)
	require.NoError(t, err)

	_, err = sim.ConfirmPaymentSent(ctx, created.OrderID)
	require.NoError(t, err)

	_, err = sim.CompleteOrder(ctx, created.OrderID)
	require.NoError(t, err)

	chainOrder, err = sim.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, chainOrder.Status)
}

func TestSimulatorRejectsInvalidTransitions(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	created, err := sim.CreateOrder(ctx, types.OrderTypeSell, decimal.NewFromInt(5))
	require.NoError(t, err)

	// Cannot complete or dispute straight from Pending.
	_, err = sim.CompleteOrder(ctx, created.OrderID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = sim.CreateDispute(ctx, created.OrderID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = sim.AcceptOrder(ctx, created.OrderID)
	require.NoError(t, err)

	// Accepting twice fails.
	_, err = sim.AcceptOrder(ctx, created.OrderID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// Cancel is allowed from Accepted, then nothing else is.
	_, err = sim.CancelOrder(ctx, created.OrderID)
	require.NoError(t, err)
	_, err = sim.ConfirmPaymentSent(ctx, created.OrderID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSimulatorDisputeResolution(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	created, err := sim.CreateOrder(ctx, types.OrderTypeBuy, decimal.NewFromInt(3))
	require.NoError(t, err)

	_, err = sim.AcceptBuyOrder(ctx, created.OrderID, decimal.NewFromInt(3))
	require.NoError(t, err)
	_, err = sim.ConfirmPaymentSent(ctx, created.OrderID)
	require.NoError(t, err)
	_, err = sim.CreateDispute(ctx, created.OrderID)
	require.NoError(t, err)

	_, err = sim.ResolveDispute(ctx, created.OrderID, true)
	require.NoError(t, err)

	chainOrder, err := sim.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, chainOrder.Status)
}

func TestSimulatorAcceptBuyOrderAmountMismatch(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	created, err := sim.CreateOrder(ctx, types.OrderTypeBuy, decimal.NewFromInt(3))
	require.NoError(t, err)

	_, err = sim.AcceptBuyOrder(ctx, created.OrderID, decimal.NewFromInt(4))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSimulatorFeeOnLargeOrder(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	// 1.5 billion DOT is 1.5e19 planck, past the int64 range.
	created, err := sim.CreateOrder(ctx, types.OrderTypeSell, decimal.NewFromInt(1_500_000_000))
	require.NoError(t, err)

	chainOrder, err := sim.GetOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.True(t, chainOrder.LpFee.Equal(decimal.NewFromInt(30_000_000)), chainOrder.LpFee.String())
}

func TestSimulatorFailNext(t *testing.T) {
	sim := NewSimulator(200)
	ctx := context.Background()

	boom := errors.New("boom")
	sim.FailNext(boom)

	_, err := sim.CreateOrder(ctx, types.OrderTypeSell, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, boom)

	// The failure is consumed; the next call succeeds.
	_, err = sim.CreateOrder(ctx, types.OrderTypeSell, decimal.NewFromInt(1))
	assert.NoError(t, err)
}

func TestSimulatorGetOrderUnknown(t *testing.T) {
	sim := NewSimulator(200)
	_, err := sim.GetOrder(context.Background(), 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
