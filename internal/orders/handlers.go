package orders

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dotpix/dotpix-api/internal/types"
	"github.com/dotpix/dotpix-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order lifecycle endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// handleError maps domain sentinels to HTTP responses. Anything unmapped
// falls through to response.Handle.
func handleError(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, "Invalid order request")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Order not found")
	case errors.Is(err, ErrLPNotFound):
		response.Forbidden(c, "Caller is not a registered liquidity provider")
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(c, "Only the order owner may perform this action")
	case errors.Is(err, ErrNotParticipant):
		response.Forbidden(c, "Only order participants may perform this action")
	case errors.Is(err, ErrNotAdmin):
		response.Forbidden(c, "Administrator role required")
	case errors.Is(err, ErrLimitsExceeded):
		response.UnprocessableEntity(c, "Order exceeds your limits")
	case errors.Is(err, ErrLPIneligible):
		response.UnprocessableEntity(c, "Order is outside your provider limits")
	case errors.Is(err, ErrWrongStatus):
		response.Conflict(c, "Order is not in the required status")
	case errors.Is(err, ErrOrderExpired):
		response.Conflict(c, "Order has expired")
	case errors.Is(err, ErrConcurrentUpdate):
		response.Conflict(c, "Order was modified concurrently, retry")
	case errors.Is(err, ErrEscrowFailed):
		response.BadGateway(c, "Escrow operation failed")
	case errors.Is(err, ErrChargeFailed):
		response.BadGateway(c, "Payment charge could not be created")
	default:
		response.Handle(c, data, err)
	}
}

// CreateOrderHandler handles POST requests to open a new order.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.CreateOrder(c.Request.Context(), c.GetString("wallet_address"), input)
		handleError(c, order, err)
	}
}

// ListOrdersHandler returns the public book of unexpired PENDING orders,
// optionally filtered with ?type=BUY|SELL.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var typeFilter *types.OrderType
		if raw := c.Query("type"); raw != "" {
			t := types.OrderType(raw)
			if t != types.OrderTypeBuy && t != types.OrderTypeSell {
				response.BadRequest(c, "Invalid order type filter")
				return
			}
			typeFilter = &t
		}

		orders, err := h.service.ListActiveOrders(typeFilter)
		handleError(c, orders, err)
	}
}

// MyOrdersHandler returns the authenticated user's orders.
func (h *GinHandlers) MyOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListOrdersForWallet(c.GetString("wallet_address"))
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "User not found")
			return
		}
		handleError(c, orders, err)
	}
}

// GetOrderHandler returns a single order by ref.
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetOrder(c.Param("order_ref"))
		handleError(c, order, err)
	}
}

// AcceptOrderHandler handles a liquidity provider accepting a PENDING order.
func (h *GinHandlers) AcceptOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.AcceptOrder(c.Request.Context(), c.Param("order_ref"), c.GetString("wallet_address"))
		handleError(c, order, err)
	}
}

type confirmPaymentRequest struct {
	PixTxID      string `json:"pix_txid"`
	PaymentProof string `json:"payment_proof"`
}

// ConfirmPaymentHandler marks the fiat leg of an ACCEPTED order as sent.
func (h *GinHandlers) ConfirmPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.ConfirmPayment(c.Request.Context(), c.Param("order_ref"), req.PixTxID, req.PaymentProof)
		handleError(c, order, err)
	}
}

// CompleteOrderHandler releases the escrow of a PAYMENT_SENT order.
func (h *GinHandlers) CompleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.CompleteOrder(c.Request.Context(), c.Param("order_ref"))
		handleError(c, order, err)
	}
}

// CancelOrderHandler refunds a PENDING or ACCEPTED order, owner only.
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.CancelOrder(c.Request.Context(), c.Param("order_ref"), c.GetString("wallet_address"))
		handleError(c, order, err)
	}
}

type disputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DisputeHandler opens a dispute on a PAYMENT_SENT order.
func (h *GinHandlers) DisputeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req disputeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Dispute reason is required")
			return
		}

		order, err := h.service.CreateDispute(c.Request.Context(), c.Param("order_ref"), c.GetString("wallet_address"), req.Reason)
		handleError(c, order, err)
	}
}

type resolveDisputeRequest struct {
	FavorBuyer *bool `json:"favor_buyer" binding:"required"`
}

// ResolveDisputeHandler terminates a DISPUTED order, admin only.
func (h *GinHandlers) ResolveDisputeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveDisputeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "favor_buyer is required")
			return
		}

		order, err := h.service.ResolveDispute(c.Request.Context(), c.Param("order_ref"), c.GetString("wallet_address"), *req.FavorBuyer)
		handleError(c, order, err)
	}
}

// TransactionsHandler returns the chain audit trail of an order.
func (h *GinHandlers) TransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := h.service.ListTransactions(c.Param("order_ref"))
		handleError(c, txs, err)
	}
}

// BlockchainViewHandler compares the local record with the chain's view.
func (h *GinHandlers) BlockchainViewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.service.GetBlockchainView(c.Request.Context(), c.Param("order_ref"))
		handleError(c, view, err)
	}
}

// RatesHandler returns the current DOT exchange rates.
func (h *GinHandlers) RatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.service.GetExchangeRates(c.Request.Context()))
	}
}
