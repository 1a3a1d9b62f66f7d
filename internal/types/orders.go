package types

import (
	"github.com/shopspring/decimal"
)

// Direction is the side of an order.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// IsBid reports whether the direction maps to the bid side of the book.
func (d Direction) IsBid() bool {
	return d == DirectionBuy
}

// TimeInForce controls how long an order rests on the book.
type TimeInForce string

const (
	TimeInForceGTC      TimeInForce = "gtc"
	TimeInForcePostOnly TimeInForce = "post_only"
	TimeInForceIOC      TimeInForce = "ioc"
	TimeInForceFOK      TimeInForce = "fok"
)

// OrderType is the order kind submitted to the exchange.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderParams is the full wire payload for a new order submission. The
// signature fields are produced by the order authorizer and must not be
// modified afterwards; any change invalidates the signature.
type OrderParams struct {
	InstrumentName     string          `json:"instrument_name"`
	SubaccountID       int64           `json:"subaccount_id"`
	Amount             decimal.Decimal `json:"amount"`
	LimitPrice         decimal.Decimal `json:"limit_price"`
	Direction          Direction       `json:"direction"`
	TimeInForce        TimeInForce     `json:"time_in_force"`
	OrderType          OrderType       `json:"order_type"`
	MMP                bool            `json:"mmp"`
	MaxFee             decimal.Decimal `json:"max_fee"`
	Label              string          `json:"label"`
	Nonce              int64           `json:"nonce"`
	RejectTimestamp    int64           `json:"reject_timestamp"` // unix millis, advisory
	SignatureExpirySec int64           `json:"signature_expiry_sec"`
	Signer             string          `json:"signer"`
	Signature          string          `json:"signature"`
	ReduceOnly         bool            `json:"reduce_only"`
	ReferralCode       string          `json:"referral_code"`
}

// ReplaceParams atomically cancels a resting order and submits a replacement.
type ReplaceParams struct {
	OrderParams
	OrderIDToCancel string `json:"order_id_to_cancel"`
}

// OrderResponse is the exchange's acknowledgment of an order or replace.
type OrderResponse struct {
	OrderID        string          `json:"order_id"`
	InstrumentName string          `json:"instrument_name"`
	Status         string          `json:"order_status"`
	FilledAmount   decimal.Decimal `json:"filled_amount"`
}
