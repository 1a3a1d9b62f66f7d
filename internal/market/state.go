package market

import (
	"sync"
	"time"

	"github.com/optionvault/ove/internal/types"
)

// State is the shared cache of live ticker and position data for one vault
// instance. The sync task is the sole writer; every other component reads.
// Each update replaces a whole entry under the write lock, so readers always
// observe internally consistent snapshots — possibly slightly stale, never
// torn.
type State struct {
	mu        sync.RWMutex
	tickers   map[string]types.Ticker
	positions map[string]types.Position

	lastTickerAt   time.Time
	lastPositionAt time.Time
}

// NewState creates an empty market state.
func NewState() *State {
	return &State{
		tickers:   make(map[string]types.Ticker),
		positions: make(map[string]types.Position),
	}
}

// SetTicker replaces the ticker entry for its instrument.
func (s *State) SetTicker(t types.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.UpdatedAt = time.Now()
	s.tickers[t.InstrumentName] = t
	s.lastTickerAt = t.UpdatedAt
}

// ReplacePositions swaps in a fresh position map from one subaccount sync.
func (s *State) ReplacePositions(positions []types.Position) {
	next := make(map[string]types.Position, len(positions))
	for _, p := range positions {
		next[p.InstrumentName] = p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = next
	s.lastPositionAt = time.Now()
}

// GetTicker returns the ticker snapshot for an instrument, if present.
func (s *State) GetTicker(instrument string) (types.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[instrument]
	return t, ok
}

// GetPosition returns the position for an instrument, if present.
func (s *State) GetPosition(instrument string) (types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[instrument]
	return p, ok
}

// Tickers returns a snapshot copy of all tickers.
func (s *State) Tickers() []types.Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Ticker, 0, len(s.tickers))
	for _, t := range s.tickers {
		out = append(out, t)
	}
	return out
}

// Positions returns a snapshot copy of all positions.
func (s *State) Positions() []types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// PositionsSynced reports whether at least one position sync has landed.
// Position-derived decisions must not run against the empty pre-sync map.
func (s *State) PositionsSynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastPositionAt.IsZero()
}

// Staleness reports how old the newest ticker and position updates are.
// Zero times mean no update has arrived yet.
func (s *State) Staleness() (tickerAge, positionAge time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	if !s.lastTickerAt.IsZero() {
		tickerAge = now.Sub(s.lastTickerAt)
	}
	if !s.lastPositionAt.IsZero() {
		positionAge = now.Sub(s.lastPositionAt)
	}
	return tickerAge, positionAge
}
