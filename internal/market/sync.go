package market

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/optionvault/ove/internal/logger"
	"github.com/optionvault/ove/internal/types"
)

var syncLogger = logger.GetForComponent("market_sync")

// TickerInterval is the exchange-side publish interval for ticker streams.
type TickerInterval int

const (
	Interval100Ms  TickerInterval = 100
	Interval1000Ms TickerInterval = 1000
)

// Stream is the market-data side of the exchange transport. Subscribe calls
// block until the stream terminates or errors; updates arrive through the
// apply callbacks.
type Stream interface {
	SubscribeTickers(ctx context.Context, instruments []string, interval TickerInterval, apply func(types.Ticker)) error
	SubscribePositions(ctx context.Context, subaccountID int64, apply func([]types.Position)) error
}

// SubscribeTickers feeds ticker notifications for the given instruments into
// the state until the stream terminates.
func SubscribeTickers(ctx context.Context, stream Stream, state *State, instruments []string, interval TickerInterval) error {
	return stream.SubscribeTickers(ctx, instruments, interval, state.SetTicker)
}

// AwaitTickers subscribes and waits at most timeout for the stream. Whichever
// of stream termination or timeout elapse happens first wins; on timeout the
// caller proceeds on whatever state has converged so far. This is an explicit
// staleness tolerance, not a failure. The subscription is torn down on
// return: callers read the state immediately afterwards, so nothing ever
// needs updates past this point.
func AwaitTickers(ctx context.Context, stream Stream, state *State, instruments []string, interval TickerInterval, timeout time.Duration) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- SubscribeTickers(subCtx, stream, state, instruments, interval)
	}()
	select {
	case err := <-done:
		if err != nil {
			syncLogger.Warn().Err(err).Msg("Ticker subscription ended before timeout")
		}
	case <-time.After(timeout):
		syncLogger.Debug().
			Dur("timeout", timeout).
			Int("instruments", len(instruments)).
			Msg("Proceeding on current ticker state after convergence timeout")
	case <-ctx.Done():
	}
}

// RunTickerSync keeps a ticker subscription alive for the life of the
// context, resubscribing with backoff after stream drops.
func RunTickerSync(ctx context.Context, stream Stream, state *State, instruments []string, interval TickerInterval) {
	runResilient(ctx, "ticker", func() error {
		return SubscribeTickers(ctx, stream, state, instruments, interval)
	})
}

// RunPositionSync keeps a position subscription alive for the life of the
// context, resubscribing with backoff after stream drops.
func RunPositionSync(ctx context.Context, stream Stream, state *State, subaccountID int64) {
	runResilient(ctx, "position", func() error {
		return stream.SubscribePositions(ctx, subaccountID, state.ReplacePositions)
	})
}

// runResilient retries a blocking subscription with bounded backoff, forever.
// A stream that returns nil has still terminated and must be re-established.
func runResilient(ctx context.Context, name string, subscribe func() error) {
	for {
		if ctx.Err() != nil {
			syncLogger.Info().Str("stream", name).Msg("Market sync stopped")
			return
		}
		err := retry.Do(
			func() error {
				if err := subscribe(); err != nil {
					return err
				}
				return ctx.Err()
			},
			retry.Context(ctx),
			retry.Attempts(5),
			retry.Delay(time.Second),
			retry.DelayType(retry.BackOffDelay),
			retry.OnRetry(func(n uint, err error) {
				syncLogger.Warn().
					Uint("attempt", n).
					Str("stream", name).
					Err(err).
					Msg("Market stream dropped, resubscribing")
			}),
		)
		if err != nil && ctx.Err() == nil {
			syncLogger.Error().Str("stream", name).Err(err).Msg("Market stream retries exhausted, restarting")
			time.Sleep(5 * time.Second)
		}
	}
}
