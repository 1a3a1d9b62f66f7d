package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/optionvault/ove/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotConnected   = errors.New("exchange client is not connected")
	ErrLoginRequired  = errors.New("exchange session is not authenticated")
	ErrRequestTimeout = errors.New("rpc request timed out")
)

// RPCError is a typed error result returned by the exchange.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("exchange rpc error %d: %s", e.Code, e.Message)
}

// TradeClient is the order-submission side of the exchange transport used by
// the auction engine. Submissions for one auction are strictly sequential:
// the engine never issues a new call before the previous result is known.
type TradeClient interface {
	SendOrder(ctx context.Context, params *types.OrderParams) (*types.OrderResponse, error)
	SendReplace(ctx context.Context, params *types.ReplaceParams) (*types.OrderResponse, error)
}

// InstrumentClient serves one-shot instrument metadata queries.
type InstrumentClient interface {
	GetInstruments(ctx context.Context, currency string, expired bool) ([]types.Instrument, error)
}
