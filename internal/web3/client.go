package web3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidChainConfig = errors.New("chain configuration is invalid")
)

// vaultABIJSON is the slice of the vault contract surface the engine touches:
// the two deposit-queue events and the batch processing call.
const vaultABIJSON = `[
	{"type":"event","name":"DepositInitiated","inputs":[
		{"name":"depositId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"DepositProcessed","inputs":[
		{"name":"depositId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"shares","type":"uint256","indexed":false}]},
	{"type":"function","name":"processDeposits","stateMutability":"nonpayable",
		"inputs":[{"name":"depositIds","type":"uint256[]"}],"outputs":[]}
]`

// VaultABI parses the vault contract ABI. The JSON is a compile-time
// constant, so a parse failure is a programming error.
func VaultABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("vault ABI parse failed: %w", err)
	}
	return parsed, nil
}

// Backend is the slice of the Ethereum client the reconciler uses. The
// concrete implementation is *ethclient.Client; tests substitute fakes.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to the settlement chain RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain RPC dial failed: %w", err)
	}
	return client, nil
}
