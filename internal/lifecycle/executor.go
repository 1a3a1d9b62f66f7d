package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/optionvault/ove/internal/exchange"
	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/selector"
	"github.com/optionvault/ove/internal/signer"
	"github.com/optionvault/ove/internal/types"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultTickInterval = 5 * time.Second
	expiryResolveWait   = 3 * time.Second
)

// Recorder observes stage transitions and order submissions for telemetry.
// Implementations must tolerate failures silently; recording never gates
// execution.
type Recorder interface {
	RecordStage(vaultName, stage, instrument string)
	RecordOrder(vaultName string, params *types.OrderParams, resp *types.OrderResponse)
}

// ExecutorConfig wires one vault executor.
type ExecutorConfig struct {
	VaultName    string
	SubaccountID int64
	Params       Params

	State       *market.State
	Stream      market.Stream
	Instruments exchange.InstrumentClient
	Trade       exchange.TradeClient
	Authorizer  *signer.Authorizer

	// Recorder is optional telemetry.
	Recorder Recorder

	// PollInterval is the cadence for waiting phases; zero means the default.
	PollInterval time.Duration
	// TickInterval is the auction recompute cadence; zero means the default.
	TickInterval time.Duration
}

// Executor drives the vault through its cyclic lifecycle:
// collateral-only -> option auction -> await settlement -> spot auction ->
// collateral-only. There is no terminal stage; the loop runs for the life of
// the process and the current stage is always recoverable from exchange
// positions alone.
type Executor struct {
	vaultName    string
	subaccountID int64
	params       Params

	state       *market.State
	stream      market.Stream
	instruments exchange.InstrumentClient
	trade       exchange.TradeClient
	auth        *signer.Authorizer
	selector    *selector.Selector
	recorder    Recorder

	pollInterval time.Duration
	tickInterval time.Duration

	stageName atomic.Value
	log       zerolog.Logger
}

// NewExecutor validates the wiring and returns an executor ready to run.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.State == nil || cfg.Stream == nil || cfg.Instruments == nil || cfg.Trade == nil || cfg.Authorizer == nil {
		return nil, fmt.Errorf("%w: executor wiring is incomplete", ErrInvalidParams)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	e := &Executor{
		vaultName:    cfg.VaultName,
		subaccountID: cfg.SubaccountID,
		params:       cfg.Params,
		state:        cfg.State,
		stream:       cfg.Stream,
		instruments:  cfg.Instruments,
		trade:        cfg.Trade,
		auth:         cfg.Authorizer,
		recorder:     cfg.Recorder,
		pollInterval: cfg.PollInterval,
		tickInterval: cfg.TickInterval,
		selector: selector.New(selector.Config{
			Currency:      cfg.Params.Currency,
			ExpiryHorizon: cfg.Params.ExpiryHorizon(),
			MinExpiry:     cfg.Params.MinExpiry(),
			TargetDelta:   cfg.Params.TargetDelta,
			MaxDelta:      cfg.Params.MaxDelta,
		}, cfg.Instruments, cfg.Stream),
		log: logger.GetForComponent("lifecycle").With().
			Str("vault", cfg.VaultName).
			Logger(),
	}
	e.stageName.Store(CollateralOnly{}.Name())
	return e, nil
}

// Run drives the stage machine until the context is cancelled or a fatal
// error surfaces. Fatal errors terminate the instance rather than being
// retried: the machine's recovery path is a process restart, which re-derives
// the stage from exchange positions.
func (e *Executor) Run(ctx context.Context) error {
	var stage Stage = CollateralOnly{}
	for {
		e.stageName.Store(stage.Name())
		e.log.Info().Str("stage", stage.Name()).Msg("Entering stage")
		if e.recorder != nil {
			e.recorder.RecordStage(e.vaultName, stage.Name(), stageInstrument(stage))
		}

		next, err := stage.run(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				e.log.Info().Str("stage", stage.Name()).Msg("Executor stopped")
				return ctx.Err()
			}
			return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
		stage = next
	}
}

// CurrentStage reports the stage name, safe to call from other goroutines.
func (e *Executor) CurrentStage() string {
	if v, ok := e.stageName.Load().(string); ok {
		return v
	}
	return ""
}

func stageInstrument(s Stage) string {
	switch v := s.(type) {
	case OptionAuction:
		return v.InstrumentName
	case AwaitSettlement:
		return v.InstrumentName
	default:
		return ""
	}
}

// resolveExpiry reads the option expiry off a live ticker, subscribing
// briefly if the instrument is not in state yet.
func (e *Executor) resolveExpiry(ctx context.Context, instrument string) (int64, error) {
	for attempt := 0; attempt < 3; attempt++ {
		if t, ok := e.state.GetTicker(instrument); ok && t.OptionDetails != nil {
			return t.OptionDetails.Expiry, nil
		}
		market.AwaitTickers(ctx, e.stream, e.state, []string{instrument}, market.Interval1000Ms, expiryResolveWait)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("no option details available for %s", instrument)
}

func (e *Executor) recordOrder(params *types.OrderParams, resp *types.OrderResponse) {
	if e.recorder != nil {
		e.recorder.RecordOrder(e.vaultName, params, resp)
	}
}

// waitUntil blocks until the wall clock reaches t, logging once if a real
// wait is needed.
func (e *Executor) waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	e.log.Info().Time("until", t).Dur("wait", d).Msg("Waiting for phase gate")
	return e.sleep(ctx, d)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
