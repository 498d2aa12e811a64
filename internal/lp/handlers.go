package lp

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/dotpix/dotpix-api/pkg/response"
)

// GinHandlers contains HTTP handlers for liquidity provider endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for provider endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func handleError(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, ErrNotRegistered):
		response.NotFound(c, "Provider profile not found")
	case errors.Is(err, ErrAlreadyRegistered):
		response.Conflict(c, "Wallet is already a registered provider")
	case errors.Is(err, ErrInvalidPixKey):
		response.UnprocessableEntity(c, "Pix key does not match its declared type")
	case errors.Is(err, ErrInvalidLimits):
		response.UnprocessableEntity(c, "Invalid order size limits")
	default:
		response.Handle(c, data, err)
	}
}

// RegisterHandler handles POST requests to register as a provider.
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		lp, err := h.service.Register(c.GetString("wallet_address"), input)
		handleError(c, lp, err)
	}
}

// ProfileHandler returns the caller's provider profile.
func (h *GinHandlers) ProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lp, err := h.service.Profile(c.GetString("wallet_address"))
		handleError(c, lp, err)
	}
}

// UpdateHandler applies partial changes to the caller's provider profile.
func (h *GinHandlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input UpdateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		lp, err := h.service.Update(c.GetString("wallet_address"), input)
		handleError(c, lp, err)
	}
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// AvailabilityHandler toggles whether the provider is taking orders.
func (h *GinHandlers) AvailabilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req availabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "available is required")
			return
		}

		lp, err := h.service.SetAvailability(c.GetString("wallet_address"), *req.Available)
		handleError(c, lp, err)
	}
}

// AvailableOrdersHandler lists PENDING orders within the provider's limits.
func (h *GinHandlers) AvailableOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.AvailableOrders(c.GetString("wallet_address"))
		handleError(c, orders, err)
	}
}

// EarningsHandler returns the provider's volume and fee totals.
func (h *GinHandlers) EarningsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.service.Earnings(c.GetString("wallet_address"))
		handleError(c, report, err)
	}
}
