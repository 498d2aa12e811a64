// Package limits holds the pure order-limit and LP-eligibility policy.
// Everything here is a function of its arguments; no I/O.
package limits

import (
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/types"
)

// WithinUserLimit reports whether the USD-equivalent amount of a requested
// order is within the caller's type-specific ceiling.
func WithinUserLimit(orderType types.OrderType, usdAmount decimal.Decimal, user *types.User) bool {
	if orderType == types.OrderTypeBuy {
		return usdAmount.LessThanOrEqual(user.BuyLimitUSD)
	}
	return usdAmount.LessThanOrEqual(user.SellLimitUSD)
}

// UnderDailyCount reports whether the caller may place another order of the
// given type today. countToday is the number of orders of that type the user
// already created in the current window.
func UnderDailyCount(orderType types.OrderType, countToday int, user *types.User) bool {
	if orderType == types.OrderTypeBuy {
		return countToday < user.BuyOrdersPerDay
	}
	return countToday < user.SellOrdersPerDay
}

// LPEligible reports whether the provider may accept an order of the given
// USD-equivalent size.
func LPEligible(lp *types.LiquidityProvider, usdAmount decimal.Decimal) bool {
	if !lp.IsActive || !lp.IsAvailable {
		return false
	}
	return usdAmount.GreaterThanOrEqual(lp.MinOrderSizeUSD) &&
		usdAmount.LessThanOrEqual(lp.MaxOrderSizeUSD)
}
