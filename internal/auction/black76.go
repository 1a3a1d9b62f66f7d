package auction

import (
	"math"
)

// OptionContract prices a European option under Black-76: forward-based,
// zero rate, settlement in quote terms.
type OptionContract struct {
	Strike       float64
	Forward      float64
	Vol          float64 // annualized implied volatility
	TimeToExpiry float64 // years
	IsCall       bool
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// Price returns the Black-76 option value. Expired or vol-less contracts
// collapse to intrinsic value.
func (c OptionContract) Price() float64 {
	if c.TimeToExpiry <= 0 || c.Vol <= 0 {
		return c.intrinsic()
	}
	sqrtT := math.Sqrt(c.TimeToExpiry)
	d1 := (math.Log(c.Forward/c.Strike) + 0.5*c.Vol*c.Vol*c.TimeToExpiry) / (c.Vol * sqrtT)
	d2 := d1 - c.Vol*sqrtT
	if c.IsCall {
		return c.Forward*normCDF(d1) - c.Strike*normCDF(d2)
	}
	return c.Strike*normCDF(-d2) - c.Forward*normCDF(-d1)
}

func (c OptionContract) intrinsic() float64 {
	if c.IsCall {
		return math.Max(c.Forward-c.Strike, 0)
	}
	return math.Max(c.Strike-c.Forward, 0)
}
