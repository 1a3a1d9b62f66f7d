package types

import (
	"github.com/shopspring/decimal"
)

// Position is one subaccount position: positive amounts are long, negative
// short. Entries are replaced wholesale on each position sync.
type Position struct {
	InstrumentName string          `json:"instrument_name"`
	Amount         decimal.Decimal `json:"amount"`
}

// IsOpen reports whether the position has any exposure.
func (p *Position) IsOpen() bool {
	return !p.Amount.IsZero()
}
