package signer

import (
	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/types"
)

// OrderArgs are the caller-chosen parameters of one order submission. The
// rest of the wire payload (fees, nonce, timestamps, signature) is derived.
type OrderArgs struct {
	Amount      decimal.Decimal
	LimitPrice  decimal.Decimal
	Direction   types.Direction
	TimeInForce types.TimeInForce
	OrderType   types.OrderType
	Label       string
	MMP         bool
}

// BuildOrder assembles and signs a complete order payload for the given
// instrument. The returned params are immutable from the caller's
// perspective: mutating any signed field invalidates the signature.
func (a *Authorizer) BuildOrder(ticker *types.Ticker, subaccountID int64, args OrderArgs) (*types.OrderParams, error) {
	params, err := a.buildParams(ticker, subaccountID, args)
	if err != nil {
		return nil, err
	}
	return params, nil
}

// BuildReplace assembles and signs a replace payload that atomically cancels
// orderIDToCancel and rests the new order in its place.
func (a *Authorizer) BuildReplace(ticker *types.Ticker, subaccountID int64, orderIDToCancel string, args OrderArgs) (*types.ReplaceParams, error) {
	params, err := a.buildParams(ticker, subaccountID, args)
	if err != nil {
		return nil, err
	}
	return &types.ReplaceParams{
		OrderParams:     *params,
		OrderIDToCancel: orderIDToCancel,
	}, nil
}

func (a *Authorizer) buildParams(ticker *types.Ticker, subaccountID int64, args OrderArgs) (*types.OrderParams, error) {
	assetAddress, err := ticker.AssetAddress()
	if err != nil {
		return nil, err
	}
	assetSubID, err := ticker.SubID()
	if err != nil {
		return nil, err
	}

	maxFee := ticker.MaxFee()
	nonce, rejectTimestamp, signatureExpirySec := a.Timestamps()

	signature, err := a.Sign(Trade{
		AssetAddress: assetAddress,
		AssetSubID:   assetSubID,
		LimitPrice:   args.LimitPrice,
		Amount:       args.Amount,
		MaxFee:       maxFee,
		SubaccountID: subaccountID,
		IsBid:        args.Direction.IsBid(),
	}, nonce, signatureExpirySec)
	if err != nil {
		return nil, err
	}

	return &types.OrderParams{
		InstrumentName:     ticker.InstrumentName,
		SubaccountID:       subaccountID,
		Amount:             args.Amount,
		LimitPrice:         args.LimitPrice,
		Direction:          args.Direction,
		TimeInForce:        args.TimeInForce,
		OrderType:          args.OrderType,
		MMP:                args.MMP,
		MaxFee:             maxFee,
		Label:              args.Label,
		Nonce:              nonce,
		RejectTimestamp:    rejectTimestamp,
		SignatureExpirySec: signatureExpirySec,
		Signer:             a.SignerAddress().Hex(),
		Signature:          signature,
	}, nil
}
