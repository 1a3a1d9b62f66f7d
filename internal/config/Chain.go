package config

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
)

// Chain holds the settlement-chain parameters for deposit reconciliation.
type Chain struct {
	// RPCURL is the EVM JSON-RPC endpoint.
	RPCURL string
	// ChainID of the settlement chain, used for transaction signing.
	ChainID int64
	// VaultAddress is the on-chain vault contract emitting deposit events.
	VaultAddress string
	// TxKey signs processDeposits transactions.
	TxKey *ecdsa.PrivateKey
	// GasPriceWei is the explicit gas price for vault transactions.
	GasPriceWei *big.Int
	// GasFactor is the safety multiplier applied to estimated gas.
	GasFactor uint64
	// LookbackBlocks bounds the deposit event scan window. Deposits initiated
	// before the window are assumed already processed.
	LookbackBlocks uint64
}

func loadChain() (Chain, error) {
	rpcURL, err := getEnv("CHAIN_RPC_URL")
	if err != nil {
		return Chain{}, err
	}

	chainID, err := getEnvAsInt64("CHAIN_ID")
	if err != nil {
		return Chain{}, err
	}

	vaultAddr, err := getEnv("VAULT_CONTRACT_ADDRESS")
	if err != nil {
		return Chain{}, err
	}
	if _, err := parseAddress(vaultAddr); err != nil {
		return Chain{}, err
	}

	keyStr, err := getEnv("CHAIN_PRIVATE_KEY")
	if err != nil {
		return Chain{}, err
	}
	txKey, err := parsePrivateKey(keyStr)
	if err != nil {
		return Chain{}, err
	}

	gasPriceStr, err := getEnv("GAS_PRICE_WEI")
	if err != nil {
		return Chain{}, err
	}
	gasPrice, ok := new(big.Int).SetString(gasPriceStr, 10)
	if !ok || gasPrice.Sign() <= 0 {
		return Chain{}, errors.New("environment variable GAS_PRICE_WEI must be a positive integer, got: " + gasPriceStr)
	}

	gasFactor, err := getEnvAsUint64("GAS_FACTOR")
	if err != nil {
		return Chain{}, err
	}

	lookback := uint64(100_000)
	if getEnvOr("DEPOSIT_LOOKBACK_BLOCKS", "") != "" {
		lookback, err = getEnvAsUint64("DEPOSIT_LOOKBACK_BLOCKS")
		if err != nil {
			return Chain{}, err
		}
	}

	return Chain{
		RPCURL:         rpcURL,
		ChainID:        chainID,
		VaultAddress:   vaultAddr,
		TxKey:          txKey,
		GasPriceWei:    gasPrice,
		GasFactor:      gasFactor,
		LookbackBlocks: lookback,
	}, nil
}
