package auction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func spotState(cash string) *market.State {
	state := market.NewState()
	state.SetTicker(types.Ticker{
		InstrumentName: "RSETH-USDC",
		MarkPrice:      dec("10"),
		TickSize:       dec("0.01"),
		MinPrice:       dec("0.01"),
		AmountStep:     dec("0.1"),
		MinimumAmount:  dec("0.1"),
	})
	if cash != "" {
		state.ReplacePositions([]types.Position{
			{InstrumentName: "USDC", Amount: dec(cash)},
		})
	} else {
		state.ReplacePositions(nil)
	}
	return state
}

func spotAuction(elapsed, duration time.Duration) *Auction {
	start := time.Now().Add(-elapsed)
	return &Auction{
		InstrumentName: "RSETH-USDC",
		SubaccountID:   1,
		StartTime:      start,
		Duration:       duration,
	}
}

func TestSpotSpreadWidensAndCaps(t *testing.T) {
	p := SpotParams{InitSpread: 0.001, SpreadPerMin: 0.001, MaxSpread: 0.005}
	if got := p.Spread(0); got != 0.001 {
		t.Errorf("Spread(0) = %v, want 0.001", got)
	}
	if got := p.Spread(2); got != 0.003 {
		t.Errorf("Spread(2) = %v, want 0.003", got)
	}
	if got := p.Spread(60); got != 0.005 {
		t.Errorf("Spread(60) = %v, want cap 0.005", got)
	}
}

func TestSpotSellsOnNegativeCash(t *testing.T) {
	p := SpotParams{CashName: "USDC", InitSpread: 0, MaxSpread: 0.005, MaxCash: dec("1")}
	state := spotState("-100")
	a := spotAuction(0, time.Hour)

	price, err := p.DesiredPrice(state, a)
	if err != nil {
		t.Fatalf("DesiredPrice error: %v", err)
	}
	if !price.Equal(dec("10")) {
		t.Errorf("price = %s, want 10 (mark, zero spread)", price)
	}

	direction, amount, err := p.DesiredAmount(state, a, price)
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if direction != types.DirectionSell {
		t.Errorf("direction = %s, want sell", direction)
	}
	if !amount.Equal(dec("10")) {
		t.Errorf("amount = %s, want 10", amount)
	}
}

func TestSpotBuysOnPositiveCash(t *testing.T) {
	p := SpotParams{CashName: "USDC", InitSpread: 0.001, MaxSpread: 0.005, MaxCash: dec("1")}
	state := spotState("50")
	a := spotAuction(0, time.Hour)

	price, err := p.DesiredPrice(state, a)
	if err != nil {
		t.Fatalf("DesiredPrice error: %v", err)
	}
	// buys pay the spread above mark: 10 * 1.001 = 10.01
	if !price.Equal(dec("10.01")) {
		t.Errorf("price = %s, want 10.01", price)
	}

	direction, amount, err := p.DesiredAmount(state, a, price)
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if direction != types.DirectionBuy {
		t.Errorf("direction = %s, want buy", direction)
	}
	// 50 / 10.01 = 4.995..., floored to the 0.1 step
	if !amount.Equal(dec("4.9")) {
		t.Errorf("amount = %s, want 4.9", amount)
	}
}

func TestSpotSellRoundsDownByDefaultAndUpWhenConfigured(t *testing.T) {
	state := spotState("-99.5")
	a := spotAuction(0, time.Hour)

	down := SpotParams{CashName: "USDC", MaxCash: dec("1")}
	_, amount, err := down.DesiredAmount(state, a, dec("10"))
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if !amount.Equal(dec("9.9")) {
		t.Errorf("round-down amount = %s, want 9.9", amount)
	}

	up := SpotParams{CashName: "USDC", MaxCash: dec("1"), RoundUpSells: true}
	_, amount, err = up.DesiredAmount(state, a, dec("10"))
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if !amount.Equal(dec("10")) {
		t.Errorf("round-up amount = %s, want 10", amount)
	}
}

func TestSpotNoOpOnFlatOrMissingCash(t *testing.T) {
	p := SpotParams{CashName: "USDC", MaxCash: dec("1")}
	a := spotAuction(0, time.Hour)

	for _, cash := range []string{"", "0"} {
		state := spotState(cash)
		price, err := p.DesiredPrice(state, a)
		if err != nil {
			t.Fatalf("DesiredPrice error: %v", err)
		}
		if !price.IsZero() {
			t.Errorf("cash=%q: price = %s, want zero sentinel", cash, price)
		}
	}
}

func TestSpotStopsInsideBandAfterDuration(t *testing.T) {
	p := SpotParams{CashName: "USDC", MaxCash: dec("1")}
	state := spotState("-0.5")

	// Past the nominal duration with |cash| inside the band: no-op.
	late := spotAuction(2*time.Hour, time.Hour)
	_, amount, err := p.DesiredAmount(state, late, dec("10"))
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if !amount.IsZero() {
		t.Errorf("amount = %s, want zero inside band after duration", amount)
	}

	// Inside the band but before the duration has elapsed: keep trading.
	// (0.5/10 = 0.05 is below the minimum amount here, so still zero; use a
	// bigger residual to see the difference.)
	state = spotState("-5")
	early := spotAuction(0, time.Hour)
	_, amount, err = p.DesiredAmount(state, early, dec("10"))
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if !amount.Equal(dec("0.5")) {
		t.Errorf("amount = %s, want 0.5 before duration", amount)
	}
}

func TestSpotSkipsBelowMinimumAmount(t *testing.T) {
	p := SpotParams{CashName: "USDC", MaxCash: dec("0.1")}
	state := spotState("-0.5")
	a := spotAuction(0, time.Hour)

	_, amount, err := p.DesiredAmount(state, a, dec("10"))
	if err != nil {
		t.Fatalf("DesiredAmount error: %v", err)
	}
	if !amount.IsZero() {
		t.Errorf("amount = %s, want zero below instrument minimum", amount)
	}
}

func TestSpotMissingTickerIsAnError(t *testing.T) {
	p := SpotParams{CashName: "USDC"}
	state := market.NewState()
	a := spotAuction(0, time.Hour)
	if _, err := p.DesiredPrice(state, a); err == nil {
		t.Error("DesiredPrice should fail without a ticker")
	}
}
