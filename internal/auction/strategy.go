package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

// Auction is the clock and identity of one auction instance. Fields are set
// at construction and never change for the auction's life.
type Auction struct {
	InstrumentName string
	SubaccountID   int64
	StartTime      time.Time
	Duration       time.Duration

	// Now is the clock source, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (a *Auction) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Elapsed returns time since auction start.
func (a *Auction) Elapsed() time.Duration {
	return a.now().Sub(a.StartTime)
}

// ElapsedMinutes returns the elapsed time in fractional minutes, the unit
// the spread schedules are expressed in.
func (a *Auction) ElapsedMinutes() float64 {
	return a.Elapsed().Minutes()
}

// Remaining returns time until the nominal end of the auction. The duration
// is a soft target: engines keep ticking past zero until the strategy's
// residual tolerance is met.
func (a *Auction) Remaining() time.Duration {
	return a.Duration - a.Elapsed()
}

// Strategy supplies the moving price/size target for an auction. Methods are
// pure functions of the market snapshot and the auction clock: identical
// inputs must yield identical outputs.
//
// A zero price or a zero/below-minimum size is the no-op sentinel: nothing
// is submitted that tick. Once the nominal duration has elapsed, a no-op
// sentinel also signals that residual risk is within tolerance and the
// auction can finish.
type Strategy interface {
	DesiredPrice(state *market.State, a *Auction) (decimal.Decimal, error)
	DesiredAmount(state *market.State, a *Auction, price decimal.Decimal) (types.Direction, decimal.Decimal, error)
}

// spread returns a linearly widening spread, starting at init and growing
// per elapsed minute, capped at max.
func spread(initSpread, perMin, maxSpread, elapsedMin float64) float64 {
	s := initSpread + elapsedMin*perMin
	if s > maxSpread {
		return maxSpread
	}
	return s
}
