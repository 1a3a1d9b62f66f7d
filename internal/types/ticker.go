package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAssetAddress = errors.New("base asset address is invalid")
	ErrInvalidSubID        = errors.New("base asset sub id is invalid")
)

// OptionType identifies a call or put leg.
type OptionType string

const (
	OptionTypeCall OptionType = "C"
	OptionTypePut  OptionType = "P"
)

func (t OptionType) IsCall() bool {
	return t == OptionTypeCall
}

// OptionDetails carries the static option metadata used for instrument selection.
type OptionDetails struct {
	OptionType OptionType      `json:"option_type"`
	Strike     decimal.Decimal `json:"strike"`
	Expiry     int64           `json:"expiry"` // unix seconds
}

// OptionPricing is the live pricing block published with option tickers.
type OptionPricing struct {
	Delta        decimal.Decimal `json:"delta"`
	IV           decimal.Decimal `json:"iv"` // annualized implied vol, e.g. 0.55
	ForwardPrice decimal.Decimal `json:"forward_price"`
}

// Ticker is an immutable snapshot of one instrument's live market data.
// Each update replaces the whole entry in the market state; fields are never
// mutated in place.
type Ticker struct {
	InstrumentName   string          `json:"instrument_name"`
	MarkPrice        decimal.Decimal `json:"mark_price"`
	IndexPrice       decimal.Decimal `json:"index_price"`
	TickSize         decimal.Decimal `json:"tick_size"`
	MinPrice         decimal.Decimal `json:"min_price"`
	AmountStep       decimal.Decimal `json:"amount_step"`
	MinimumAmount    decimal.Decimal `json:"minimum_amount"`
	MakerFeeRate     decimal.Decimal `json:"maker_fee_rate"`
	TakerFeeRate     decimal.Decimal `json:"taker_fee_rate"`
	BaseAssetAddress string          `json:"base_asset_address"`
	BaseAssetSubID   string          `json:"base_asset_sub_id"` // uint256 decimal string
	OptionDetails    *OptionDetails  `json:"option_details,omitempty"`
	OptionPricing    *OptionPricing  `json:"option_pricing,omitempty"`
	UpdatedAt        time.Time       `json:"-"`
}

var three = decimal.NewFromInt(3)

// MaxFee returns the signed fee cap for orders on this instrument:
// three times the taker fee per unit at the current index price.
func (t *Ticker) MaxFee() decimal.Decimal {
	return three.Mul(t.TakerFeeRate).Mul(t.IndexPrice)
}

// AssetAddress parses the collateral asset address for order signing.
func (t *Ticker) AssetAddress() (common.Address, error) {
	if !common.IsHexAddress(t.BaseAssetAddress) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidAssetAddress, t.BaseAssetAddress)
	}
	return common.HexToAddress(t.BaseAssetAddress), nil
}

// SubID parses the asset sub id for order signing.
func (t *Ticker) SubID() (*big.Int, error) {
	subID, ok := new(big.Int).SetString(t.BaseAssetSubID, 10)
	if !ok || subID.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSubID, t.BaseAssetSubID)
	}
	return subID, nil
}

// fractionalDigits returns the number of decimal places implied by a tick or
// step size, e.g. 0.01 -> 2, 5 -> 0.
func fractionalDigits(d decimal.Decimal) int32 {
	if d.Exponent() >= 0 {
		return 0
	}
	return -d.Exponent()
}

// RoundPriceToTick rounds a price to the instrument's tick size and floors it
// at the instrument's minimum price.
func (t *Ticker) RoundPriceToTick(price decimal.Decimal) decimal.Decimal {
	rounded := price.Round(fractionalDigits(t.TickSize))
	if rounded.LessThan(t.MinPrice) {
		return t.MinPrice
	}
	return rounded
}

// RoundAmountToStep rounds an order size to the instrument's amount step.
// Rounding down is the default; roundUp is a tuning knob for sell legs that
// may oversell slightly to fully cover a cash deficit.
func (t *Ticker) RoundAmountToStep(amount decimal.Decimal, roundUp bool) decimal.Decimal {
	digits := fractionalDigits(t.AmountStep)
	if roundUp {
		return amount.RoundCeil(digits)
	}
	return amount.RoundFloor(digits)
}

// IsOptionName reports whether an instrument name follows the option naming
// convention, e.g. ETH-20240329-2400-C.
func IsOptionName(name string) bool {
	return strings.HasSuffix(name, "-"+string(OptionTypeCall)) ||
		strings.HasSuffix(name, "-"+string(OptionTypePut))
}

// Instrument is the static instrument record returned by instrument queries.
type Instrument struct {
	InstrumentName string         `json:"instrument_name"`
	IsActive       bool           `json:"is_active"`
	OptionDetails  *OptionDetails `json:"option_details,omitempty"`
}
