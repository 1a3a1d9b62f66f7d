package lifecycle

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

type fakeStream struct{}

func (fakeStream) SubscribeTickers(ctx context.Context, _ []string, _ market.TickerInterval, _ func(types.Ticker)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (fakeStream) SubscribePositions(ctx context.Context, _ int64, _ func([]types.Position)) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeInstruments struct {
	instruments []types.Instrument
}

func (f fakeInstruments) GetInstruments(context.Context, string, bool) ([]types.Instrument, error) {
	return f.instruments, nil
}

type fakeTrade struct{}

func (fakeTrade) SendOrder(context.Context, *types.OrderParams) (*types.OrderResponse, error) {
	return &types.OrderResponse{OrderID: "order-1"}, nil
}

func (fakeTrade) SendReplace(context.Context, *types.ReplaceParams) (*types.OrderResponse, error) {
	return &types.OrderResponse{OrderID: "order-2"}, nil
}

func testExecutor(t *testing.T, state *market.State) *Executor {
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

	e, err := NewExecutor(ExecutorConfig{
		VaultName:    "testvault",
		SubaccountID: 1,
		Params:       validParams(),
		State:        state,
		Stream:       fakeStream{},
		Instruments:  fakeInstruments{},
		Trade:        fakeTrade{},
		Authorizer:   auth,
		PollInterval: 5 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return e
}

func TestNewExecutorValidatesWiring(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{Params: validParams()})
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = NewExecutor(ExecutorConfig{})
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestStageNames(t *testing.T) {
	require.Equal(t, "collateral_only", CollateralOnly{}.Name())
	require.Equal(t, "option_auction", OptionAuction{}.Name())
	require.Equal(t, "await_settlement", AwaitSettlement{}.Name())
	require.Equal(t, "spot_auction", SpotAuction{}.Name())
}

func TestAwaitSettlementWaitsForPositionToClear(t *testing.T) {
	state := market.NewState()
	state.ReplacePositions([]types.Position{
		{InstrumentName: "ETH-20260828-2600-C", Amount: decimal.RequireFromString("-4")},
	})
	e := testExecutor(t, state)

	stage := AwaitSettlement{
		InstrumentName: "ETH-20260828-2600-C",
		Expiry:         time.Now().Add(-time.Hour).Unix(),
	}

	done := make(chan Stage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		next, err := stage.run(ctx, e)
		if err != nil {
			close(done)
			return
		}
		done <- next
	}()

	// Still held: the stage must keep polling.
	select {
	case <-done:
		t.Fatal("stage finished while the option position was still open")
	case <-time.After(30 * time.Millisecond):
	}

	// Settlement removes the position from the sync.
	state.ReplacePositions(nil)
	select {
	case next := <-done:
		spot, ok := next.(SpotAuction)
		require.True(t, ok, "next stage must be the spot auction")
		require.Equal(t, stage.Expiry, spot.SettledExpiry)
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not finish after settlement")
	}
}

func TestAwaitSettlementHoldsUntilExpiry(t *testing.T) {
	state := market.NewState()
	state.ReplacePositions(nil)
	e := testExecutor(t, state)

	// Position already gone, but expiry is still in the future.
	stage := AwaitSettlement{
		InstrumentName: "ETH-20260904-2600-C",
		Expiry:         time.Now().Add(time.Hour).Unix(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := stage.run(ctx, e)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCurrentStageDefaultsToCollateralOnly(t *testing.T) {
	e := testExecutor(t, market.NewState())
	require.Equal(t, "collateral_only", e.CurrentStage())
}
