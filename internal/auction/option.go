package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotAnOption  = errors.New("instrument has no option pricing data")
	ErrInvalidIV    = errors.New("implied volatility is invalid")
	ErrNoTargetSize = errors.New("option auction target size must be positive")
)

const secondsPerYear = 365.25 * 24 * 3600

// OptionParams is the option auction pricing policy. The auction direction
// is fixed by the vault phase (selling the hedge leg), not derived from a
// position sign; the spread is applied in implied-volatility space and the
// limit price comes out of Black-76.
type OptionParams struct {
	// Direction of the auction, fixed at construction.
	Direction types.Direction
	// TargetSize is the total size to trade over the auction's life.
	TargetSize decimal.Decimal
	// InitIVSpread is the IV spread at auction start (e.g. 0.02 vols).
	InitIVSpread float64
	// IVSpreadPerMin widens the IV spread each elapsed minute.
	IVSpreadPerMin float64
	// MaxIVSpread caps the IV spread.
	MaxIVSpread float64
}

// IVSpread returns the current IV spread given elapsed minutes.
func (p OptionParams) IVSpread(elapsedMin float64) float64 {
	return spread(p.InitIVSpread, p.IVSpreadPerMin, p.MaxIVSpread, elapsedMin)
}

// DesiredPrice shifts the live implied vol by the spread (sells shift down,
// buys shift up) and reprices the option via Black-76 from the shifted vol.
func (p OptionParams) DesiredPrice(state *market.State, a *Auction) (decimal.Decimal, error) {
	ticker, ok := state.GetTicker(a.InstrumentName)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrTickerNotFound, a.InstrumentName)
	}
	if ticker.OptionDetails == nil || ticker.OptionPricing == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNotAnOption, a.InstrumentName)
	}

	iv, _ := ticker.OptionPricing.IV.Float64()
	if iv <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidIV, ticker.OptionPricing.IV.String())
	}

	s := p.IVSpread(a.ElapsedMinutes())
	if p.Direction == types.DirectionSell {
		iv -= s
	} else {
		iv += s
	}
	if iv < 0 {
		iv = 0
	}

	forward, _ := ticker.OptionPricing.ForwardPrice.Float64()
	strike, _ := ticker.OptionDetails.Strike.Float64()
	expiry := time.Unix(ticker.OptionDetails.Expiry, 0)
	timeToExpiry := expiry.Sub(a.now()).Seconds() / secondsPerYear

	contract := OptionContract{
		Strike:       strike,
		Forward:      forward,
		Vol:          iv,
		TimeToExpiry: timeToExpiry,
		IsCall:       ticker.OptionDetails.OptionType.IsCall(),
	}
	price := decimal.NewFromFloat(contract.Price())
	return ticker.RoundPriceToTick(price), nil
}

// DesiredAmount returns the unfilled remainder of the target size, rounded
// down to the amount step. Once the target has been fully traded the policy
// caps at zero size, which also terminates the auction.
func (p OptionParams) DesiredAmount(state *market.State, a *Auction, price decimal.Decimal) (types.Direction, decimal.Decimal, error) {
	ticker, ok := state.GetTicker(a.InstrumentName)
	if !ok {
		return p.Direction, decimal.Zero, fmt.Errorf("%w: %s", ErrTickerNotFound, a.InstrumentName)
	}
	if !p.TargetSize.IsPositive() {
		return p.Direction, decimal.Zero, ErrNoTargetSize
	}
	if price.IsZero() {
		return p.Direction, decimal.Zero, nil
	}

	// Progress toward the target: short exposure counts for sells, long
	// exposure for buys.
	var progress decimal.Decimal
	if pos, ok := state.GetPosition(a.InstrumentName); ok {
		if p.Direction == types.DirectionSell {
			progress = pos.Amount.Neg()
		} else {
			progress = pos.Amount
		}
	}

	remaining := p.TargetSize.Sub(progress)
	amount := ticker.RoundAmountToStep(remaining, false)
	if amount.LessThan(ticker.MinimumAmount) {
		return p.Direction, decimal.Zero, nil
	}
	return p.Direction, amount, nil
}
