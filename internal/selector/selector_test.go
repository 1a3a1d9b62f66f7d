package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func optionTicker(name, delta string) types.Ticker {
	return types.Ticker{
		InstrumentName: name,
		OptionPricing:  &types.OptionPricing{Delta: dec(delta)},
	}
}

func TestPickByDelta(t *testing.T) {
	tickers := []types.Ticker{
		optionTicker("ETH-A-C", "0.2"),
		optionTicker("ETH-B-C", "0.35"),
		optionTicker("ETH-C-C", "0.5"),
	}

	got, err := PickByDelta(tickers, dec("0.3"), dec("0.4"))
	if err != nil {
		t.Fatalf("PickByDelta error: %v", err)
	}
	// 0.5 is excluded by the cap; 0.35 is nearer 0.3 than 0.2.
	if got != "ETH-B-C" {
		t.Errorf("PickByDelta = %s, want ETH-B-C", got)
	}
}

func TestPickByDeltaAllExcluded(t *testing.T) {
	tickers := []types.Ticker{
		optionTicker("ETH-A-C", "0.6"),
		optionTicker("ETH-B-C", "0.7"),
	}
	_, err := PickByDelta(tickers, dec("0.3"), dec("0.4"))
	if !errors.Is(err, ErrNoCandidateInstrument) {
		t.Errorf("want ErrNoCandidateInstrument, got %v", err)
	}
}

func TestPickByDeltaIgnoresTickersWithoutPricing(t *testing.T) {
	tickers := []types.Ticker{
		{InstrumentName: "ETH-A-C"},
		optionTicker("ETH-B-C", "0.25"),
	}
	got, err := PickByDelta(tickers, dec("0.3"), dec("0.4"))
	if err != nil {
		t.Fatalf("PickByDelta error: %v", err)
	}
	if got != "ETH-B-C" {
		t.Errorf("PickByDelta = %s, want ETH-B-C", got)
	}
}

type fakeInstruments struct {
	instruments []types.Instrument
}

func (f fakeInstruments) GetInstruments(context.Context, string, bool) ([]types.Instrument, error) {
	return f.instruments, nil
}

// scriptedStream serves canned tickers for whatever gets subscribed and then
// lets the stream terminate, so selection proceeds without waiting out the
// convergence timeout.
type scriptedStream struct {
	tickers    map[string]types.Ticker
	subscribed [][]string
}

func (s *scriptedStream) SubscribeTickers(_ context.Context, instruments []string, _ market.TickerInterval, apply func(types.Ticker)) error {
	s.subscribed = append(s.subscribed, instruments)
	for _, name := range instruments {
		if tk, ok := s.tickers[name]; ok {
			apply(tk)
		}
	}
	return nil
}

func (s *scriptedStream) SubscribePositions(ctx context.Context, _ int64, _ func([]types.Position)) error {
	<-ctx.Done()
	return ctx.Err()
}

func callInstrument(name string, expiry int64) types.Instrument {
	return types.Instrument{
		InstrumentName: name,
		IsActive:       true,
		OptionDetails:  &types.OptionDetails{OptionType: types.OptionTypeCall, Expiry: expiry},
	}
}

func testSelectorConfig() Config {
	return Config{
		Currency:      "ETH",
		ExpiryHorizon: 7 * 24 * time.Hour,
		MinExpiry:     24 * time.Hour,
		TargetDelta:   dec("0.3"),
		MaxDelta:      dec("0.4"),
	}
}

func TestSelectOptionPicksLatestExpiryBucket(t *testing.T) {
	now := time.Now().Unix()
	earlier := now + 2*24*3600
	later := now + 5*24*3600

	put := types.Instrument{
		InstrumentName: "ETH-B-2600-P",
		IsActive:       true,
		OptionDetails:  &types.OptionDetails{OptionType: types.OptionTypePut, Expiry: later},
	}
	delisted := callInstrument("ETH-B-3000-C", later)
	delisted.IsActive = false

	instruments := fakeInstruments{instruments: []types.Instrument{
		// Exactly on target, but in the earlier bucket: must not win.
		callInstrument("ETH-A-2500-C", earlier),
		callInstrument("ETH-B-2400-C", later),
		callInstrument("ETH-B-2600-C", later),
		callInstrument("ETH-B-2800-C", later),
		put,
		delisted,
	}}
	stream := &scriptedStream{tickers: map[string]types.Ticker{
		"ETH-A-2500-C": optionTicker("ETH-A-2500-C", "0.3"),
		"ETH-B-2400-C": optionTicker("ETH-B-2400-C", "0.55"),
		"ETH-B-2600-C": optionTicker("ETH-B-2600-C", "0.28"),
		"ETH-B-2800-C": optionTicker("ETH-B-2800-C", "0.12"),
	}}

	s := New(testSelectorConfig(), instruments, stream)
	got, err := s.SelectOption(context.Background())
	if err != nil {
		t.Fatalf("SelectOption error: %v", err)
	}
	// Within the later bucket, 0.55 is capped out and 0.28 is nearest 0.3.
	if got != "ETH-B-2600-C" {
		t.Errorf("SelectOption = %s, want ETH-B-2600-C", got)
	}

	if len(stream.subscribed) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(stream.subscribed))
	}
	want := []string{"ETH-B-2400-C", "ETH-B-2600-C", "ETH-B-2800-C"}
	if len(stream.subscribed[0]) != len(want) {
		t.Fatalf("subscribed to %v, want the active calls of the later bucket %v", stream.subscribed[0], want)
	}
	for i, name := range want {
		if stream.subscribed[0][i] != name {
			t.Errorf("subscribed[%d] = %s, want %s", i, stream.subscribed[0][i], name)
		}
	}
}

func TestSelectOptionExpiryWindow(t *testing.T) {
	now := time.Now().Unix()
	tests := []struct {
		name   string
		expiry int64
	}{
		{"below the floor", now + 2*3600},
		{"beyond the horizon", now + 10*24*3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instruments := fakeInstruments{instruments: []types.Instrument{
				callInstrument("ETH-X-2600-C", tt.expiry),
			}}
			s := New(testSelectorConfig(), instruments, &scriptedStream{})
			_, err := s.SelectOption(context.Background())
			if !errors.Is(err, ErrNoCandidateExpiry) {
				t.Errorf("want ErrNoCandidateExpiry, got %v", err)
			}
		})
	}
}

func TestMaybeSelectFromPositions(t *testing.T) {
	t.Run("no open options", func(t *testing.T) {
		state := market.NewState()
		state.ReplacePositions([]types.Position{
			{InstrumentName: "USDC", Amount: dec("100")},
			{InstrumentName: "ETH-20260904-2600-C", Amount: decimal.Zero},
		})
		name, ok, err := MaybeSelectFromPositions(state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || name != "" {
			t.Errorf("got (%q, %v), want no selection", name, ok)
		}
	})

	t.Run("one open option is reused", func(t *testing.T) {
		state := market.NewState()
		state.ReplacePositions([]types.Position{
			{InstrumentName: "ETH-20260904-2600-C", Amount: dec("-4")},
			{InstrumentName: "RSETH", Amount: dec("10")},
		})
		name, ok, err := MaybeSelectFromPositions(state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok || name != "ETH-20260904-2600-C" {
			t.Errorf("got (%q, %v), want the open option", name, ok)
		}
	})

	t.Run("two open options violate the invariant", func(t *testing.T) {
		state := market.NewState()
		state.ReplacePositions([]types.Position{
			{InstrumentName: "ETH-20260904-2600-C", Amount: dec("-4")},
			{InstrumentName: "ETH-20260911-2700-C", Amount: dec("-1")},
		})
		_, _, err := MaybeSelectFromPositions(state)
		if !errors.Is(err, ErrMultipleOpenOptions) {
			t.Errorf("want ErrMultipleOpenOptions, got %v", err)
		}
	})
}
