package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/optionvault/ove/internal/config"
	"github.com/optionvault/ove/internal/logger"
)

// MaxDepositsPerCall caps the batch size of one processDeposits transaction
// so the call stays within block gas limits.
const MaxDepositsPerCall = 32

const (
	receiptPollInterval = 2 * time.Second
	receiptWaitTimeout  = 2 * time.Minute
)

// Reconciler clears the vault contract's deposit queue. Each pass scans the
// recent event window, diffs initiated against processed deposit ids, and
// submits one processDeposits batch for a capped subset of the backlog. The
// loop is idempotent: re-submitting an already processed id is harmless
// because the next scan no longer reports it pending.
type Reconciler struct {
	backend Backend
	cfg     config.Chain
	vault   common.Address
	sender  common.Address

	vaultABI       abi.ABI
	initiatedTopic common.Hash
	processedTopic common.Hash

	receiptPoll time.Duration

	log zerolog.Logger
}

// NewReconciler validates the chain wiring and returns a reconciler.
func NewReconciler(backend Backend, cfg config.Chain) (*Reconciler, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend cannot be nil", ErrInvalidChainConfig)
	}
	if cfg.TxKey == nil {
		return nil, fmt.Errorf("%w: transaction key cannot be nil", ErrInvalidChainConfig)
	}
	if cfg.GasPriceWei == nil || cfg.GasPriceWei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: gas price must be positive", ErrInvalidChainConfig)
	}
	if cfg.GasFactor == 0 {
		return nil, fmt.Errorf("%w: gas factor must be positive", ErrInvalidChainConfig)
	}
	if !common.IsHexAddress(cfg.VaultAddress) {
		return nil, fmt.Errorf("%w: vault address %q is not a hex address", ErrInvalidChainConfig, cfg.VaultAddress)
	}

	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		backend:        backend,
		cfg:            cfg,
		vault:          common.HexToAddress(cfg.VaultAddress),
		sender:         crypto.PubkeyToAddress(cfg.TxKey.PublicKey),
		vaultABI:       parsed,
		initiatedTopic: parsed.Events["DepositInitiated"].ID,
		processedTopic: parsed.Events["DepositProcessed"].ID,
		receiptPoll:    receiptPollInterval,
		log: logger.GetForComponent("deposit_reconciler").With().
			Str("vault", cfg.VaultAddress).
			Logger(),
	}, nil
}

// Run reconciles on the given cadence until the context is cancelled. A
// failed pass is logged and retried next interval; the backlog carries over.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := r.ProcessPending(ctx); err != nil {
			r.log.Warn().Err(err).Msg("Deposit reconciliation pass failed, retrying next interval")
		}
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Deposit reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessPending runs one reconciliation pass: scan, diff, submit.
func (r *Reconciler) ProcessPending(ctx context.Context) error {
	pending, err := r.PendingDeposits(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		r.log.Debug().Msg("No pending deposits")
		return nil
	}
	if len(pending) > MaxDepositsPerCall {
		r.log.Info().
			Int("pending", len(pending)).
			Int("batch", MaxDepositsPerCall).
			Msg("Deposit backlog exceeds batch cap, processing a subset")
		pending = pending[:MaxDepositsPerCall]
	}
	return r.submitBatch(ctx, pending)
}

// PendingDeposits scans the lookback window and returns initiated deposit
// ids with no matching processed event, in initiation order. Deposits
// initiated before the window are assumed already processed.
func (r *Reconciler) PendingDeposits(ctx context.Context) ([]*big.Int, error) {
	head, err := r.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number query failed: %w", err)
	}
	from := uint64(0)
	if head > r.cfg.LookbackBlocks {
		from = head - r.cfg.LookbackBlocks
	}

	initiated, err := r.queryDepositIDs(ctx, from, r.initiatedTopic)
	if err != nil {
		return nil, fmt.Errorf("initiated event query failed: %w", err)
	}
	processed, err := r.queryDepositIDs(ctx, from, r.processedTopic)
	if err != nil {
		return nil, fmt.Errorf("processed event query failed: %w", err)
	}

	pending := PendingSet(initiated, processed)
	r.log.Info().
		Int("initiated", len(initiated)).
		Int("processed", len(processed)).
		Int("pending", len(pending)).
		Uint64("fromBlock", from).
		Msg("Deposit scan complete")
	return pending, nil
}

// PendingSet subtracts processed ids from initiated ids, preserving the
// initiation order.
func PendingSet(initiated, processed []*big.Int) []*big.Int {
	done := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		done[id.String()] = struct{}{}
	}
	var pending []*big.Int
	for _, id := range initiated {
		if _, ok := done[id.String()]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

func (r *Reconciler) queryDepositIDs(ctx context.Context, fromBlock uint64, topic common.Hash) ([]*big.Int, error) {
	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{r.vault},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]*big.Int, 0, len(logs))
	for _, l := range logs {
		// depositId is the first indexed argument
		if len(l.Topics) < 2 {
			continue
		}
		ids = append(ids, new(big.Int).SetBytes(l.Topics[1].Bytes()))
	}
	return ids, nil
}

// submitBatch signs and sends one processDeposits call for the given ids,
// with an estimated gas limit widened by the configured factor and the
// explicit configured gas price, then awaits the receipt. A reverted
// transaction is this pass's error; the backlog carries to the next pass.
func (r *Reconciler) submitBatch(ctx context.Context, ids []*big.Int) error {
	calldata, err := r.vaultABI.Pack("processDeposits", ids)
	if err != nil {
		return fmt.Errorf("processDeposits calldata pack failed: %w", err)
	}

	gas, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     r.sender,
		To:       &r.vault,
		GasPrice: r.cfg.GasPriceWei,
		Data:     calldata,
	})
	if err != nil {
		return fmt.Errorf("gas estimation failed: %w", err)
	}
	gas *= r.cfg.GasFactor

	nonce, err := r.backend.PendingNonceAt(ctx, r.sender)
	if err != nil {
		return fmt.Errorf("nonce query failed: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &r.vault,
		Gas:      gas,
		GasPrice: r.cfg.GasPriceWei,
		Data:     calldata,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(r.cfg.ChainID)), r.cfg.TxKey)
	if err != nil {
		return fmt.Errorf("transaction signing failed: %w", err)
	}
	if err := r.backend.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("transaction send failed: %w", err)
	}
	r.log.Info().
		Str("txHash", signed.Hash().Hex()).
		Int("deposits", len(ids)).
		Uint64("gasLimit", gas).
		Msg("Submitted deposit processing batch, awaiting receipt")

	receipt, err := r.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return fmt.Errorf("receipt wait failed: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("processDeposits transaction %s reverted", signed.Hash().Hex())
	}

	r.log.Info().
		Str("txHash", signed.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("Deposit processing batch confirmed")
	return nil
}

// waitReceipt polls for the transaction receipt until it lands or the wait
// budget runs out. A receipt that never appears leaves the backlog intact
// for the next reconciliation pass.
func (r *Reconciler) waitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(receiptWaitTimeout)
	for {
		receipt, err := r.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no receipt for %s within %s", txHash.Hex(), receiptWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.receiptPoll):
		}
	}
}
