package selector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/exchange"
	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoCandidateExpiry     = errors.New("no option expiry satisfies the selection constraints")
	ErrNoCandidateInstrument = errors.New("no option instrument satisfies the delta constraints")
	ErrMultipleOpenOptions   = errors.New("subaccount holds more than one open option position")
)

var selectorLogger = logger.GetForComponent("option_selector")

const tickerConvergeTimeout = 3 * time.Second

// Config bounds the fresh option selection.
type Config struct {
	// Currency of the underlying, e.g. "ETH".
	Currency string
	// ExpiryHorizon is the furthest acceptable option expiry from now.
	ExpiryHorizon time.Duration
	// MinExpiry is the expiry floor: options closer than this are skipped,
	// keeping the vault in its collateral-only stage until one is listed.
	MinExpiry time.Duration
	// TargetDelta is the preferred option delta.
	TargetDelta decimal.Decimal
	// MaxDelta excludes instruments whose live delta exceeds it.
	MaxDelta decimal.Decimal
}

// Selector picks the option instrument a vault cycle should trade.
type Selector struct {
	cfg         Config
	instruments exchange.InstrumentClient
	stream      market.Stream
}

// New returns a selector over the given instrument and market-data sources.
func New(cfg Config, instruments exchange.InstrumentClient, stream market.Stream) *Selector {
	return &Selector{cfg: cfg, instruments: instruments, stream: stream}
}

// SelectOption performs a fresh selection: among active, non-expired call
// options on the configured underlying, restrict to the latest expiry bucket
// inside [now+MinExpiry, now+ExpiryHorizon], subscribe live tickers for that
// bucket, exclude deltas above MaxDelta, and pick the instrument closest to
// TargetDelta.
func (s *Selector) SelectOption(ctx context.Context) (string, error) {
	instruments, err := s.instruments.GetInstruments(ctx, s.cfg.Currency, false)
	if err != nil {
		return "", fmt.Errorf("instrument query failed: %w", err)
	}

	now := time.Now().Unix()
	minExpiry := now + int64(s.cfg.MinExpiry.Seconds())
	maxExpiry := now + int64(s.cfg.ExpiryHorizon.Seconds())

	var latestExpiry int64
	for _, inst := range instruments {
		details := inst.OptionDetails
		if !inst.IsActive || details == nil || !details.OptionType.IsCall() {
			continue
		}
		if details.Expiry < minExpiry || details.Expiry > maxExpiry {
			continue
		}
		if details.Expiry > latestExpiry {
			latestExpiry = details.Expiry
		}
	}
	if latestExpiry == 0 {
		return "", ErrNoCandidateExpiry
	}

	var bucket []string
	for _, inst := range instruments {
		details := inst.OptionDetails
		if !inst.IsActive || details == nil || !details.OptionType.IsCall() {
			continue
		}
		if details.Expiry == latestExpiry {
			bucket = append(bucket, inst.InstrumentName)
		}
	}

	selectorLogger.Info().
		Int64("expiry", latestExpiry).
		Int("candidates", len(bucket)).
		Msg("Selected expiry bucket, awaiting live deltas")

	// Brief live subscription so deltas are populated; proceed on whatever
	// converged when the timeout elapses.
	state := market.NewState()
	market.AwaitTickers(ctx, s.stream, state, bucket, market.Interval1000Ms, tickerConvergeTimeout)

	return PickByDelta(state.Tickers(), s.cfg.TargetDelta, s.cfg.MaxDelta)
}

// PickByDelta chooses the ticker whose live delta is nearest the target,
// excluding deltas above the cap.
func PickByDelta(tickers []types.Ticker, targetDelta, maxDelta decimal.Decimal) (string, error) {
	var (
		best     string
		bestDist decimal.Decimal
	)
	for _, t := range tickers {
		if t.OptionPricing == nil {
			continue
		}
		delta := t.OptionPricing.Delta
		if delta.GreaterThan(maxDelta) {
			continue
		}
		dist := delta.Sub(targetDelta).Abs()
		if best == "" || dist.LessThan(bestDist) {
			best = t.InstrumentName
			bestDist = dist
		}
	}
	if best == "" {
		return "", ErrNoCandidateInstrument
	}
	return best, nil
}

// MaybeSelectFromPositions scans open positions for option instruments.
// Zero matches means no selection (callers fall through to a fresh
// selection); exactly one match reuses it; more than one is an invariant
// violation — a vault subaccount must hold at most one open option.
func MaybeSelectFromPositions(state *market.State) (string, bool, error) {
	var matches []string
	for _, pos := range state.Positions() {
		if pos.IsOpen() && types.IsOptionName(pos.InstrumentName) {
			matches = append(matches, pos.InstrumentName)
		}
	}
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	default:
		return "", false, fmt.Errorf("%w: found %d", ErrMultipleOpenOptions, len(matches))
	}
}
