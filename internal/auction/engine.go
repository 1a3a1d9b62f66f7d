package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/exchange"
	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/signer"
	"github.com/optionvault/ove/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidEngineConfig = errors.New("auction engine configuration is invalid")
)

// Config wires one auction engine instance.
type Config struct {
	Auction    Auction
	Strategy   Strategy
	State      *market.State
	Authorizer *signer.Authorizer
	Trade      exchange.TradeClient

	// TickInterval is the recompute cadence.
	TickInterval time.Duration
	// PriceChangeTolerance suppresses replaces when the desired price moved
	// less than this from the resting order.
	PriceChangeTolerance decimal.Decimal
	// Label tags every order this auction submits.
	Label string
	// OnSubmit, if set, observes every acknowledged submission.
	OnSubmit func(params *types.OrderParams, resp *types.OrderResponse)
}

// Engine manages a single resting order toward the strategy's moving target.
// It recomputes price and size every tick and submits an order or replace;
// submissions are strictly sequential, so at most one order ever rests per
// auction. The engine runs past the nominal duration until the strategy
// reports residual risk within tolerance by returning the no-op sentinel.
type Engine struct {
	cfg Config
	log zerolog.Logger

	restingOrderID string
	restingPrice   decimal.Decimal
	restingAmount  decimal.Decimal
}

// NewEngine validates the wiring and returns an engine ready to run.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("%w: strategy cannot be nil", ErrInvalidEngineConfig)
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("%w: market state cannot be nil", ErrInvalidEngineConfig)
	}
	if cfg.Authorizer == nil {
		return nil, fmt.Errorf("%w: authorizer cannot be nil", ErrInvalidEngineConfig)
	}
	if cfg.Trade == nil {
		return nil, fmt.Errorf("%w: trade client cannot be nil", ErrInvalidEngineConfig)
	}
	if cfg.Auction.InstrumentName == "" {
		return nil, fmt.Errorf("%w: instrument name cannot be empty", ErrInvalidEngineConfig)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive", ErrInvalidEngineConfig)
	}
	return &Engine{
		cfg: cfg,
		log: logger.GetForComponent("auction_engine").With().
			Str("instrument", cfg.Auction.InstrumentName).
			Str("label", cfg.Label).
			Logger(),
	}, nil
}

// Run drives the auction to completion. Domain and submission failures are
// logged and retried on the next tick; only context cancellation aborts.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().
		Time("start", e.cfg.Auction.StartTime).
		Dur("duration", e.cfg.Auction.Duration).
		Msg("Auction started")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		done, err := e.Tick(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("Auction tick failed, retrying next tick")
		}
		if done {
			e.log.Info().Msg("Auction finished")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one recompute/submit cycle and reports whether the auction
// is done.
func (e *Engine) Tick(ctx context.Context) (bool, error) {
	snapshot, ok := e.cfg.State.GetTicker(e.cfg.Auction.InstrumentName)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTickerNotFound, e.cfg.Auction.InstrumentName)
	}

	price, err := e.cfg.Strategy.DesiredPrice(e.cfg.State, &e.cfg.Auction)
	if err != nil {
		return false, err
	}
	direction, amount, err := e.cfg.Strategy.DesiredAmount(e.cfg.State, &e.cfg.Auction, price)
	if err != nil {
		return false, err
	}

	// No-op sentinel: nothing to submit this tick. Past the nominal
	// duration it also means residual risk is within tolerance.
	if price.IsZero() || amount.IsZero() || amount.LessThan(snapshot.MinimumAmount) {
		if e.cfg.Auction.Remaining() <= 0 {
			return true, nil
		}
		e.log.Debug().Msg("No-op tick, nothing to submit")
		return false, nil
	}

	if e.restingOrderID != "" &&
		amount.Equal(e.restingAmount) &&
		price.Sub(e.restingPrice).Abs().LessThanOrEqual(e.cfg.PriceChangeTolerance) {
		e.log.Debug().
			Str("price", price.String()).
			Str("resting", e.restingPrice.String()).
			Msg("Desired price within tolerance of resting order, skipping replace")
		return false, nil
	}

	return false, e.submit(ctx, &snapshot, direction, price, amount)
}

// submit signs and sends an order or replace, then records the new resting
// order. Each attempt builds a fresh authorization (new nonce/expiry); a
// failed submission is never re-sent as-is.
func (e *Engine) submit(ctx context.Context, snapshot *types.Ticker, direction types.Direction, price, amount decimal.Decimal) error {
	args := signer.OrderArgs{
		Amount:      amount,
		LimitPrice:  price,
		Direction:   direction,
		TimeInForce: types.TimeInForceGTC,
		OrderType:   types.OrderTypeLimit,
		Label:       e.cfg.Label,
	}

	var (
		resp   *types.OrderResponse
		params *types.OrderParams
		err    error
	)
	if e.restingOrderID == "" {
		params, err = e.cfg.Authorizer.BuildOrder(snapshot, e.cfg.Auction.SubaccountID, args)
		if err != nil {
			return err
		}
		resp, err = e.cfg.Trade.SendOrder(ctx, params)
	} else {
		var replace *types.ReplaceParams
		replace, err = e.cfg.Authorizer.BuildReplace(snapshot, e.cfg.Auction.SubaccountID, e.restingOrderID, args)
		if err != nil {
			return err
		}
		params = &replace.OrderParams
		resp, err = e.cfg.Trade.SendReplace(ctx, replace)
	}
	if err != nil {
		return fmt.Errorf("order submission failed: %w", err)
	}

	e.restingOrderID = resp.OrderID
	e.restingPrice = price
	e.restingAmount = amount

	e.log.Info().
		Str("orderId", resp.OrderID).
		Str("direction", string(direction)).
		Str("price", price.String()).
		Str("amount", amount.String()).
		Msg("Order resting")

	if e.cfg.OnSubmit != nil {
		e.cfg.OnSubmit(params, resp)
	}
	return nil
}
