package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/types"
)

func TestSetTickerReplacesWholeEntry(t *testing.T) {
	state := NewState()
	state.SetTicker(types.Ticker{InstrumentName: "RSETH-USDC", MarkPrice: decimal.NewFromInt(10)})
	state.SetTicker(types.Ticker{InstrumentName: "RSETH-USDC", MarkPrice: decimal.NewFromInt(11)})

	got, ok := state.GetTicker("RSETH-USDC")
	if !ok {
		t.Fatal("ticker not found")
	}
	if !got.MarkPrice.Equal(decimal.NewFromInt(11)) {
		t.Errorf("MarkPrice = %s, want 11", got.MarkPrice)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt must be stamped on write")
	}
	if len(state.Tickers()) != 1 {
		t.Errorf("Tickers() = %d entries, want 1", len(state.Tickers()))
	}
}

func TestReplacePositionsSwapsWholesale(t *testing.T) {
	state := NewState()
	state.ReplacePositions([]types.Position{
		{InstrumentName: "USDC", Amount: decimal.NewFromInt(100)},
		{InstrumentName: "RSETH", Amount: decimal.NewFromInt(5)},
	})
	state.ReplacePositions([]types.Position{
		{InstrumentName: "USDC", Amount: decimal.NewFromInt(50)},
	})

	if _, ok := state.GetPosition("RSETH"); ok {
		t.Error("a position absent from the new sync must disappear")
	}
	got, ok := state.GetPosition("USDC")
	if !ok {
		t.Fatal("USDC position not found")
	}
	if !got.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Amount = %s, want 50", got.Amount)
	}
}

func TestPositionsSynced(t *testing.T) {
	state := NewState()
	if state.PositionsSynced() {
		t.Error("fresh state must not report positions synced")
	}
	state.ReplacePositions(nil)
	if !state.PositionsSynced() {
		t.Error("an empty sync still counts as synced")
	}
}

func TestStaleness(t *testing.T) {
	state := NewState()
	tickerAge, positionAge := state.Staleness()
	if tickerAge != 0 || positionAge != 0 {
		t.Errorf("fresh state ages = (%v, %v), want zero", tickerAge, positionAge)
	}

	state.SetTicker(types.Ticker{InstrumentName: "RSETH-USDC"})
	time.Sleep(time.Millisecond)
	tickerAge, positionAge = state.Staleness()
	if tickerAge <= 0 {
		t.Errorf("ticker age = %v, want positive after an update", tickerAge)
	}
	if positionAge != 0 {
		t.Errorf("position age = %v, want zero without a sync", positionAge)
	}
}
