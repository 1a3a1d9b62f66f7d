package auction

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/optionvault/ove/internal/config"
	"github.com/optionvault/ove/internal/market"
	"github.com/optionvault/ove/internal/signer"
	"github.com/optionvault/ove/internal/types"
)

type fakeTradeClient struct {
	orders   []*types.OrderParams
	replaces []*types.ReplaceParams
	nextID   int
}

func (f *fakeTradeClient) SendOrder(_ context.Context, params *types.OrderParams) (*types.OrderResponse, error) {
	f.orders = append(f.orders, params)
	f.nextID++
	return &types.OrderResponse{OrderID: orderID(f.nextID), InstrumentName: params.InstrumentName}, nil
}

func (f *fakeTradeClient) SendReplace(_ context.Context, params *types.ReplaceParams) (*types.OrderResponse, error) {
	f.replaces = append(f.replaces, params)
	f.nextID++
	return &types.OrderResponse{OrderID: orderID(f.nextID), InstrumentName: params.InstrumentName}, nil
}

func orderID(n int) string {
	return "order-" + string(rune('0'+n))
}

// scriptedStrategy returns a fixed direction and pops one price/amount pair
// per tick.
type scriptedStrategy struct {
	prices  []decimal.Decimal
	amounts []decimal.Decimal
	tick    int
}

func (s *scriptedStrategy) DesiredPrice(_ *market.State, _ *Auction) (decimal.Decimal, error) {
	return s.prices[min(s.tick, len(s.prices)-1)], nil
}

func (s *scriptedStrategy) DesiredAmount(_ *market.State, _ *Auction, _ decimal.Decimal) (types.Direction, decimal.Decimal, error) {
	amount := s.amounts[min(s.tick, len(s.amounts)-1)]
	s.tick++
	return types.DirectionSell, amount, nil
}

func engineAuthorizer(t *testing.T) *signer.Authorizer {
	t.Helper()
	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	var typehash, separator [32]byte
	typehash[0] = 1
	separator[0] = 2
	auth, err := signer.NewAuthorizer(config.Signing{
		OwnerAddress:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		SessionKey:         key,
		ActionTypehash:     typehash,
		DomainSeparator:    separator,
		TradeModuleAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SignatureExpiry:    600 * time.Second,
	})
	require.NoError(t, err)
	return auth
}

func engineState(t *testing.T) *market.State {
	t.Helper()
	state := market.NewState()
	state.SetTicker(types.Ticker{
		InstrumentName:   "RSETH-USDC",
		MarkPrice:        dec("10"),
		IndexPrice:       dec("10"),
		TakerFeeRate:     dec("0.0005"),
		TickSize:         dec("0.01"),
		MinPrice:         dec("0.01"),
		AmountStep:       dec("0.1"),
		MinimumAmount:    dec("0.1"),
		BaseAssetAddress: "0x3333333333333333333333333333333333333333",
		BaseAssetSubID:   "12345",
	})
	return state
}

func engineConfig(t *testing.T, strategy Strategy, trade *fakeTradeClient, duration time.Duration) Config {
	t.Helper()
	return Config{
		Auction: Auction{
			InstrumentName: "RSETH-USDC",
			SubaccountID:   1,
			StartTime:      time.Now(),
			Duration:       duration,
		},
		Strategy:             strategy,
		State:                engineState(t),
		Authorizer:           engineAuthorizer(t),
		Trade:                trade,
		TickInterval:         time.Millisecond,
		PriceChangeTolerance: dec("0.05"),
		Label:                "test",
	}
}

func TestEngineSubmitsThenReplaces(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10"), dec("10.5")},
		amounts: []decimal.Decimal{dec("5"), dec("5")},
	}
	engine, err := NewEngine(engineConfig(t, strategy, trade, time.Hour))
	require.NoError(t, err)

	done, err := engine.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, done)
	require.Len(t, trade.orders, 1, "first tick submits a fresh order")

	done, err = engine.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, done)
	require.Len(t, trade.replaces, 1, "a price move beyond tolerance replaces the resting order")
	require.Equal(t, trade.orders[0].InstrumentName, trade.replaces[0].InstrumentName)
	require.NotEmpty(t, trade.replaces[0].OrderIDToCancel)
	// fresh authorization per submission
	require.NotEqual(t, trade.orders[0].Nonce, trade.replaces[0].Nonce)
}

func TestEngineSkipsReplaceWithinTolerance(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10"), dec("10.01")},
		amounts: []decimal.Decimal{dec("5"), dec("5")},
	}
	engine, err := NewEngine(engineConfig(t, strategy, trade, time.Hour))
	require.NoError(t, err)

	_, err = engine.Tick(context.Background())
	require.NoError(t, err)
	_, err = engine.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, trade.orders, 1)
	require.Empty(t, trade.replaces, "a sub-tolerance price move must not replace")
}

func TestEngineNeverSubmitsBelowMinimum(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10")},
		amounts: []decimal.Decimal{dec("0.05")}, // below the 0.1 instrument minimum
	}
	engine, err := NewEngine(engineConfig(t, strategy, trade, time.Hour))
	require.NoError(t, err)

	done, err := engine.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, done, "auction keeps running before the nominal duration")
	require.Empty(t, trade.orders)
	require.Empty(t, trade.replaces)
}

func TestEngineFinishesOnNoOpAfterDuration(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10")},
		amounts: []decimal.Decimal{decimal.Zero},
	}
	cfg := engineConfig(t, strategy, trade, time.Minute)
	cfg.Auction.StartTime = time.Now().Add(-2 * time.Minute)
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	done, err := engine.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, done, "zero size past the nominal duration finishes the auction")
	require.Empty(t, trade.orders)
}

func TestEngineRunTerminates(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10"), dec("10")},
		amounts: []decimal.Decimal{dec("5"), decimal.Zero},
	}
	cfg := engineConfig(t, strategy, trade, time.Millisecond)
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Run(ctx))
	require.Len(t, trade.orders, 1)
}

func TestEngineOnSubmitCallback(t *testing.T) {
	trade := &fakeTradeClient{}
	strategy := &scriptedStrategy{
		prices:  []decimal.Decimal{dec("10")},
		amounts: []decimal.Decimal{dec("5")},
	}
	cfg := engineConfig(t, strategy, trade, time.Hour)
	var seen []*types.OrderResponse
	cfg.OnSubmit = func(_ *types.OrderParams, resp *types.OrderResponse) {
		seen = append(seen, resp)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	_, err = engine.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 1)
}

func TestNewEngineValidatesWiring(t *testing.T) {
	_, err := NewEngine(Config{})
	require.ErrorIs(t, err, ErrInvalidEngineConfig)
}
