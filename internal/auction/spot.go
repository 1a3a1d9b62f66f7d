package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTickerNotFound = errors.New("ticker not found in market state")
)

// SpotParams is the spot rebalance pricing policy: it trues up the cash leg
// by trading the hedge asset, paying a spread that widens with time to
// guarantee eventual fills.
type SpotParams struct {
	// CashName is the cash-leg instrument whose signed balance drives
	// direction and size.
	CashName string
	// InitSpread is the spread fraction at auction start (e.g. 0.001).
	InitSpread float64
	// SpreadPerMin widens the spread each elapsed minute.
	SpreadPerMin float64
	// MaxSpread caps the spread.
	MaxSpread float64
	// MaxCash is the residual cash band: once the nominal duration has
	// elapsed and |cash| is inside the band, the auction stops rather than
	// forcing an uneconomical fill.
	MaxCash decimal.Decimal
	// RoundUpSells rounds sell sizes up instead of down, overselling
	// slightly to fully cover a cash deficit. Round-down is the default.
	RoundUpSells bool
}

// Spread returns the current spread fraction given elapsed minutes.
func (p SpotParams) Spread(elapsedMin float64) float64 {
	return spread(p.InitSpread, p.SpreadPerMin, p.MaxSpread, elapsedMin)
}

// DesiredPrice derives the limit price from the spot mark shifted by the
// spread: buys shift up, sells shift down. Zero is the no-op sentinel when
// the cash position is absent or flat.
func (p SpotParams) DesiredPrice(state *market.State, a *Auction) (decimal.Decimal, error) {
	ticker, ok := state.GetTicker(a.InstrumentName)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrTickerNotFound, a.InstrumentName)
	}
	cash, ok := state.GetPosition(p.CashName)
	if !ok || cash.Amount.IsZero() {
		return decimal.Zero, nil
	}

	s := p.Spread(a.ElapsedMinutes())
	var shift decimal.Decimal
	if cash.Amount.IsPositive() {
		// positive cash buys the hedge asset at a premium
		shift = decimal.NewFromFloat(1.0 + s)
	} else {
		shift = decimal.NewFromFloat(1.0 - s)
	}

	price := ticker.MarkPrice.Mul(shift)
	return ticker.RoundPriceToTick(price), nil
}

// DesiredAmount sizes the order as |cash/price| rounded to the amount step.
// Zero size is returned when there is nothing to do: flat cash, residual
// inside the band after the nominal duration, or a size below the
// instrument minimum.
func (p SpotParams) DesiredAmount(state *market.State, a *Auction, price decimal.Decimal) (types.Direction, decimal.Decimal, error) {
	ticker, ok := state.GetTicker(a.InstrumentName)
	if !ok {
		return types.DirectionSell, decimal.Zero, fmt.Errorf("%w: %s", ErrTickerNotFound, a.InstrumentName)
	}
	cash, ok := state.GetPosition(p.CashName)
	if !ok || price.IsZero() {
		return types.DirectionSell, decimal.Zero, nil
	}
	if a.Remaining() <= 0 && cash.Amount.Abs().LessThanOrEqual(p.MaxCash) {
		return types.DirectionSell, decimal.Zero, nil
	}

	raw := cash.Amount.Div(price)
	direction := types.DirectionBuy
	if !raw.IsPositive() {
		direction = types.DirectionSell
		raw = raw.Neg()
	}

	roundUp := p.RoundUpSells && direction == types.DirectionSell
	amount := ticker.RoundAmountToStep(raw, roundUp)
	if amount.LessThan(ticker.MinimumAmount) {
		return types.DirectionSell, decimal.Zero, nil
	}
	return direction, amount, nil
}
