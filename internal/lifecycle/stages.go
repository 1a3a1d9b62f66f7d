package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/auction"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/selector"
	"github.com/optionvault/ove/internal/types"
)

// Stage is one phase of the vault cycle. Running a stage consumes it and
// produces the next one; each stage value owns exactly the state its phase
// needs, so a transition can never carry stale phase data forward.
type Stage interface {
	Name() string
	run(ctx context.Context, e *Executor) (Stage, error)
}

// CollateralOnly holds deposits and waits for a sellable option. It is both
// the cycle entry point and the recovery point after a restart.
type CollateralOnly struct{}

// OptionAuction sells calls on the chosen instrument until the target size
// is fully placed.
type OptionAuction struct {
	InstrumentName string
	Expiry         int64
}

// AwaitSettlement waits for the sold option to expire and its position to be
// settled away by the exchange.
type AwaitSettlement struct {
	InstrumentName string
	Expiry         int64
}

// SpotAuction converts the cash leg (premium plus settlement proceeds) back
// into the collateral asset. A zero SettledExpiry means the phase was entered
// for recovery and runs without a delay gate.
type SpotAuction struct {
	SettledExpiry int64
}

func (CollateralOnly) Name() string  { return "collateral_only" }
func (OptionAuction) Name() string   { return "option_auction" }
func (AwaitSettlement) Name() string { return "await_settlement" }
func (SpotAuction) Name() string     { return "spot_auction" }

func (CollateralOnly) run(ctx context.Context, e *Executor) (Stage, error) {
	for !e.state.PositionsSynced() {
		e.log.Info().Msg("Waiting for the first position sync")
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
	}

	for {
		// Restart resilience: an option already on the book resumes its
		// cycle instead of opening a second one.
		name, ok, err := selector.MaybeSelectFromPositions(e.state)
		if err != nil {
			return nil, err
		}
		if ok {
			expiry, err := e.resolveExpiry(ctx, name)
			if err != nil {
				return nil, err
			}
			e.log.Info().Str("instrument", name).Msg("Resuming cycle from open option position")
			return OptionAuction{InstrumentName: name, Expiry: expiry}, nil
		}

		// A cash imbalance above the band (e.g. a crash mid spot phase)
		// is rebalanced before selling the next option.
		if cash, ok := e.state.GetPosition(e.params.CashName); ok &&
			cash.Amount.Abs().GreaterThan(e.params.SpotAuction.MaxCash) {
			e.log.Info().
				Str("cash", cash.Amount.String()).
				Msg("Cash leg outside the residual band, rebalancing first")
			return SpotAuction{}, nil
		}

		name, err = e.selector.SelectOption(ctx)
		switch {
		case err == nil:
			expiry, err := e.resolveExpiry(ctx, name)
			if err != nil {
				return nil, err
			}
			return OptionAuction{InstrumentName: name, Expiry: expiry}, nil
		case errors.Is(err, selector.ErrNoCandidateExpiry),
			errors.Is(err, selector.ErrNoCandidateInstrument):
			e.log.Info().Err(err).Msg("No sellable option yet, staying collateral-only")
		default:
			e.log.Warn().Err(err).Msg("Option selection failed, retrying")
		}
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (s OptionAuction) run(ctx context.Context, e *Executor) (Stage, error) {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go market.RunTickerSync(stageCtx, e.stream, e.state, []string{s.InstrumentName}, market.Interval100Ms)

	if err := e.waitUntil(ctx, e.params.OptionAuctionStart(s.Expiry)); err != nil {
		return nil, err
	}

	target, err := e.optionTargetSize(ctx)
	if err != nil {
		return nil, err
	}
	if !target.IsPositive() {
		e.log.Warn().Msg("No collateral to back an option sale, returning to collateral-only")
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
		return CollateralOnly{}, nil
	}

	p := e.params.OptionAuction
	engine, err := auction.NewEngine(auction.Config{
		Auction: auction.Auction{
			InstrumentName: s.InstrumentName,
			SubaccountID:   e.subaccountID,
			StartTime:      time.Now(),
			Duration:       p.AuctionDuration,
		},
		Strategy: auction.OptionParams{
			Direction:      types.DirectionSell,
			TargetSize:     target,
			InitIVSpread:   p.InitIVSpread,
			IVSpreadPerMin: p.IVSpreadPerMin,
			MaxIVSpread:    p.MaxIVSpread,
		},
		State:                e.state,
		Authorizer:           e.auth,
		Trade:                e.trade,
		TickInterval:         e.tickInterval,
		PriceChangeTolerance: p.PriceChangeTolerance,
		Label:                e.newLabel("call"),
		OnSubmit:             e.recordOrder,
	})
	if err != nil {
		return nil, err
	}
	if err := engine.Run(ctx); err != nil {
		return nil, err
	}
	return AwaitSettlement{InstrumentName: s.InstrumentName, Expiry: s.Expiry}, nil
}

func (s AwaitSettlement) run(ctx context.Context, e *Executor) (Stage, error) {
	expiry := time.Unix(s.Expiry, 0)
	e.log.Info().
		Str("instrument", s.InstrumentName).
		Time("expiry", expiry).
		Msg("Awaiting option settlement")

	for {
		pos, held := e.state.GetPosition(s.InstrumentName)
		settled := time.Now().After(expiry) && (!held || !pos.IsOpen())
		if settled {
			e.log.Info().Str("instrument", s.InstrumentName).Msg("Option settled")
			return SpotAuction{SettledExpiry: s.Expiry}, nil
		}
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
	}
}

func (s SpotAuction) run(ctx context.Context, e *Executor) (Stage, error) {
	if s.SettledExpiry != 0 {
		if err := e.waitUntil(ctx, e.params.SpotAuctionStart(s.SettledExpiry)); err != nil {
			return nil, err
		}
	}

	p := e.params.SpotAuction
	engine, err := auction.NewEngine(auction.Config{
		Auction: auction.Auction{
			InstrumentName: e.params.SpotInstrumentName(),
			SubaccountID:   e.subaccountID,
			StartTime:      time.Now(),
			Duration:       p.AuctionDuration,
		},
		Strategy: auction.SpotParams{
			CashName:     e.params.CashName,
			InitSpread:   p.InitSpread,
			SpreadPerMin: p.SpreadPerMin,
			MaxSpread:    p.MaxSpread,
			MaxCash:      p.MaxCash,
			RoundUpSells: p.RoundUpSells,
		},
		State:        e.state,
		Authorizer:   e.auth,
		Trade:        e.trade,
		TickInterval: e.tickInterval,
		Label:        e.newLabel("rebalance"),
		OnSubmit:     e.recordOrder,
	})
	if err != nil {
		return nil, err
	}
	if err := engine.Run(ctx); err != nil {
		return nil, err
	}
	return CollateralOnly{}, nil
}

// optionTargetSize is the collateral balance backing the next call sale,
// never negative.
func (e *Executor) optionTargetSize(_ context.Context) (decimal.Decimal, error) {
	pos, ok := e.state.GetPosition(e.params.SpotName)
	if !ok {
		return decimal.Zero, nil
	}
	if pos.Amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: collateral balance %s is negative", ErrInvalidParams, pos.Amount.String())
	}
	return pos.Amount, nil
}

func (e *Executor) newLabel(phase string) string {
	return fmt.Sprintf("%s-%s-%s", e.vaultName, phase, uuid.New().String()[:8])
}
