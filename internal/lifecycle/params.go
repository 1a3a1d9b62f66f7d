package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidParams = errors.New("vault parameters are invalid")
)

// OptionAuctionParams tune the option-selling phase.
type OptionAuctionParams struct {
	InitIVSpread   float64
	IVSpreadPerMin float64
	MaxIVSpread    float64
	// AuctionDuration is the nominal length; the auction keeps running past
	// it until the target size is fully sold.
	AuctionDuration time.Duration
	// PriceChangeTolerance suppresses replaces for sub-tolerance price moves.
	PriceChangeTolerance decimal.Decimal
}

// SpotAuctionParams tune the cash/spot rebalance phase.
type SpotAuctionParams struct {
	InitSpread   float64
	SpreadPerMin float64
	MaxSpread    float64
	// AuctionDuration is the nominal length; past it the auction stops once
	// the residual cash is inside MaxCash.
	AuctionDuration time.Duration
	// MaxCash is the acceptable residual cash magnitude.
	MaxCash decimal.Decimal
	// RoundUpSells is the sell-side rounding policy knob; round-down is the
	// documented default.
	RoundUpSells bool
}

// Params configure one covered-call vault instance.
type Params struct {
	// Currency of the options to sell, e.g. "ETH".
	Currency string
	// SpotName is the collateral asset backing the calls, e.g. "RSETH".
	SpotName string
	// CashName is the cash-leg asset, e.g. "USDC".
	CashName string

	// ExpiryDays is the option expiry horizon in days.
	ExpiryDays int
	// MinExpiryHours is the expiry floor; the vault stays collateral-only
	// until an option at least this far out is listed.
	MinExpiryHours int

	TargetDelta decimal.Decimal
	MaxDelta    decimal.Decimal

	// OptionAuctionDelay gates the option phase after the cycle anchor.
	OptionAuctionDelay time.Duration
	// SpotAuctionDelay gates the spot phase after settlement.
	SpotAuctionDelay time.Duration

	OptionAuction OptionAuctionParams
	SpotAuction   SpotAuctionParams
}

// Validate rejects parameter sets that could never run a cycle.
func (p Params) Validate() error {
	if p.Currency == "" || p.SpotName == "" || p.CashName == "" {
		return fmt.Errorf("%w: currency, spot and cash names are required", ErrInvalidParams)
	}
	if p.ExpiryDays <= 0 {
		return fmt.Errorf("%w: expiry days must be positive", ErrInvalidParams)
	}
	if p.MinExpiryHours < 0 {
		return fmt.Errorf("%w: min expiry hours must not be negative", ErrInvalidParams)
	}
	if !p.TargetDelta.IsPositive() || !p.MaxDelta.IsPositive() {
		return fmt.Errorf("%w: delta targets must be positive", ErrInvalidParams)
	}
	if p.MaxDelta.LessThan(p.TargetDelta) {
		return fmt.Errorf("%w: max delta must not be below target delta", ErrInvalidParams)
	}
	return nil
}

// ExpiryHorizon is the furthest acceptable expiry from now.
func (p Params) ExpiryHorizon() time.Duration {
	return time.Duration(p.ExpiryDays) * 24 * time.Hour
}

// MinExpiry is the expiry floor from now.
func (p Params) MinExpiry() time.Duration {
	return time.Duration(p.MinExpiryHours) * time.Hour
}

// OptionAuctionStart gates the option phase: offset from the next option's
// expiry back by the horizon, plus the configured delay.
func (p Params) OptionAuctionStart(optionExpiry int64) time.Time {
	return time.Unix(optionExpiry, 0).Add(-p.ExpiryHorizon()).Add(p.OptionAuctionDelay)
}

// SpotAuctionStart gates the spot phase after the settled option's expiry.
func (p Params) SpotAuctionStart(settledExpiry int64) time.Time {
	return time.Unix(settledExpiry, 0).Add(p.SpotAuctionDelay)
}

// SpotInstrumentName is the hedge trading pair, e.g. "RSETH-USDC".
func (p Params) SpotInstrumentName() string {
	return p.SpotName + "-" + p.CashName
}
