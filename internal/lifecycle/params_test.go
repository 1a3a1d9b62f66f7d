package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validParams() Params {
	return Params{
		Currency:           "ETH",
		SpotName:           "RSETH",
		CashName:           "USDC",
		ExpiryDays:         7,
		MinExpiryHours:     24,
		TargetDelta:        decimal.RequireFromString("0.3"),
		MaxDelta:           decimal.RequireFromString("0.4"),
		OptionAuctionDelay: 2 * time.Hour,
		SpotAuctionDelay:   30 * time.Minute,
	}
}

func TestValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"missing currency", func(p *Params) { p.Currency = "" }},
		{"missing spot name", func(p *Params) { p.SpotName = "" }},
		{"zero expiry days", func(p *Params) { p.ExpiryDays = 0 }},
		{"negative min expiry", func(p *Params) { p.MinExpiryHours = -1 }},
		{"zero target delta", func(p *Params) { p.TargetDelta = decimal.Zero }},
		{"max below target", func(p *Params) { p.MaxDelta = decimal.RequireFromString("0.2") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

func TestExpiryWindows(t *testing.T) {
	p := validParams()
	if got := p.ExpiryHorizon(); got != 7*24*time.Hour {
		t.Errorf("ExpiryHorizon() = %v, want 168h", got)
	}
	if got := p.MinExpiry(); got != 24*time.Hour {
		t.Errorf("MinExpiry() = %v, want 24h", got)
	}
}

func TestOptionAuctionStart(t *testing.T) {
	p := validParams()
	expiry := time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)
	// horizon back from expiry, plus the option delay
	want := expiry.Add(-7 * 24 * time.Hour).Add(2 * time.Hour)
	if got := p.OptionAuctionStart(expiry.Unix()); !got.Equal(want) {
		t.Errorf("OptionAuctionStart = %v, want %v", got, want)
	}
}

func TestSpotAuctionStart(t *testing.T) {
	p := validParams()
	settled := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
	want := settled.Add(30 * time.Minute)
	if got := p.SpotAuctionStart(settled.Unix()); !got.Equal(want) {
		t.Errorf("SpotAuctionStart = %v, want %v", got, want)
	}
}

func TestSpotInstrumentName(t *testing.T) {
	if got := validParams().SpotInstrumentName(); got != "RSETH-USDC" {
		t.Errorf("SpotInstrumentName() = %s, want RSETH-USDC", got)
	}
}
