package escrow

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/types"
)

// Simulator is a fully in-process escrow contract. It enforces the same
// transition rules as the deployed contract and is the default backend when
// no node is configured, as well as the test double for the engine.
type Simulator struct {
	mu       sync.Mutex
	nextID   uint64
	block    uint64
	orders   map[uint64]*simOrder
	feeBps   int64
	failNext []error
}

type simOrder struct {
	id     uint64
	buyer  string
	seller string
	amount uint64
	lpFee  uint64
	status int
}

// simFee computes the fee in planck without overflowing uint64: the full
// planck range times any feeBps would not fit a 64-bit multiply.
func simFee(planck uint64, feeBps int64) uint64 {
	fee := new(big.Int).SetUint64(planck)
	fee.Mul(fee, big.NewInt(feeBps))
	fee.Div(fee, big.NewInt(10000))
	return fee.Uint64()
}

// NewSimulator creates a simulator charging the given LP fee in basis points.
func NewSimulator(feeBps int64) *Simulator {
	return &Simulator{
		nextID: 1,
		block:  1,
		orders: make(map[uint64]*simOrder),
		feeBps: feeBps,
	}
}

// FailNext queues an error to be returned by the next call, for exercising
// collaborator-failure paths in tests.
func (s *Simulator) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, err)
}

// Connected always reports true: the simulator cannot lose its "node".
func (s *Simulator) Connected() bool { return true }

func (s *Simulator) takeFailure() error {
	if len(s.failNext) == 0 {
		return nil
	}
	err := s.failNext[0]
	s.failNext = s.failNext[1:]
	return err
}

func (s *Simulator) result() *CallResult {
	s.block++
	return &CallResult{
		TxHash:      "0x" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		BlockNumber: s.block,
	}
}

func (s *Simulator) CreateOrder(_ context.Context, orderType types.OrderType, amount decimal.Decimal) (*CallResult, error) {
	planck, err := ToPlanck(amount)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	order := &simOrder{
		id:     s.nextID,
		buyer:  "sim-user",
		amount: planck,
		lpFee:  simFee(planck, s.feeBps),
		status: chainStatusPending,
	}
	_ = orderType // both types open in Pending; custody differs only in transferred value
	s.orders[order.id] = order
	s.nextID++

	res := s.result()
	res.OrderID = order.id
	return res, nil
}

func (s *Simulator) transition(id uint64, from []int, to int) (*CallResult, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}

	allowed := false
	for _, f := range from {
		if order.status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidStatus
	}

	order.status = to
	return s.result(), nil
}

func (s *Simulator) AcceptOrder(_ context.Context, chainOrderID uint64) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.transition(chainOrderID, []int{chainStatusPending}, chainStatusAccepted)
	if err == nil {
		s.orders[chainOrderID].seller = "sim-lp"
	}
	return res, err
}

func (s *Simulator) AcceptBuyOrder(_ context.Context, chainOrderID uint64, amount decimal.Decimal) (*CallResult, error) {
	planck, err := ToPlanck(amount)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[chainOrderID]; ok && order.amount != planck {
		return nil, ErrInvalidStatus
	}

	res, err := s.transition(chainOrderID, []int{chainStatusPending}, chainStatusAccepted)
	if err == nil {
		s.orders[chainOrderID].seller = "sim-lp"
	}
	return res, err
}

func (s *Simulator) ConfirmPaymentSent(_ context.Context, chainOrderID uint64) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(chainOrderID, []int{chainStatusAccepted}, chainStatusPaymentSent)
}

func (s *Simulator) CompleteOrder(_ context.Context, chainOrderID uint64) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(chainOrderID, []int{chainStatusPaymentSent}, chainStatusCompleted)
}

func (s *Simulator) CancelOrder(_ context.Context, chainOrderID uint64) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(chainOrderID, []int{chainStatusPending, chainStatusAccepted}, chainStatusCancelled)
}

func (s *Simulator) CreateDispute(_ context.Context, chainOrderID uint64) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(chainOrderID, []int{chainStatusPaymentSent}, chainStatusDisputed)
}

func (s *Simulator) ResolveDispute(_ context.Context, chainOrderID uint64, favorBuyer bool) (*CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The contract transfers funds to the favored side; either way the order
	// terminates as Completed.
	return s.transition(chainOrderID, []int{chainStatusDisputed}, chainStatusCompleted)
}

func (s *Simulator) GetOrder(_ context.Context, chainOrderID uint64) (*types.ChainOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	order, ok := s.orders[chainOrderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	return &types.ChainOrder{
		OrderID:   order.id,
		Status:    StatusFromChain(order.status),
		DotAmount: FromPlanck(order.amount),
		LpFee:     FromPlanck(order.lpFee),
		Buyer:     order.buyer,
		Seller:    order.seller,
	}, nil
}
