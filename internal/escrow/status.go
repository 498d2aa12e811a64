package escrow

import "github.com/dotpix/dotpix-api/internal/types"

// Contract-side status enum values, in declaration order.
const (
	chainStatusPending = iota
	chainStatusAccepted
	chainStatusPaymentSent
	chainStatusCompleted
	chainStatusDisputed
	chainStatusCancelled
)

var chainToLocal = map[int]types.OrderStatus{
	chainStatusPending:     types.StatusPending,
	chainStatusAccepted:    types.StatusAccepted,
	chainStatusPaymentSent: types.StatusPaymentSent,
	chainStatusCompleted:   types.StatusCompleted,
	chainStatusDisputed:    types.StatusDisputed,
	chainStatusCancelled:   types.StatusCancelled,
}

// StatusFromChain maps the contract's integer status to the local vocabulary.
// Unknown values map to an empty status, which never compares equal to a
// local one.
func StatusFromChain(code int) types.OrderStatus {
	return chainToLocal[code]
}
