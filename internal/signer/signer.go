package signer

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/optionvault/ove/internal/config"
	"github.com/optionvault/ove/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrMissingSigningConfig = errors.New("signing configuration is incomplete")
	ErrEncodingFailed       = errors.New("trade encoding failed")
	ErrSigningFailed        = errors.New("digest signing failed")
)

var signerLogger = logger.GetForComponent("order_signer")

var (
	addressTy = mustABIType("address")
	uint256Ty = mustABIType("uint256")
	int256Ty  = mustABIType("int256")
	bytes32Ty = mustABIType("bytes32")
	boolTy    = mustABIType("bool")

	tradeDataArgs = abi.Arguments{
		{Type: addressTy}, // collateral asset address
		{Type: uint256Ty}, // asset sub id
		{Type: int256Ty},  // limit price, 1e18 fixed point
		{Type: int256Ty},  // amount, 1e18 fixed point
		{Type: uint256Ty}, // max fee, 1e18 fixed point
		{Type: uint256Ty}, // subaccount id
		{Type: boolTy},    // is bid
	}

	actionDataArgs = abi.Arguments{
		{Type: bytes32Ty}, // action typehash
		{Type: uint256Ty}, // subaccount id
		{Type: uint256Ty}, // nonce
		{Type: addressTy}, // trade module address
		{Type: bytes32Ty}, // trade data hash
		{Type: uint256Ty}, // signature expiry, unix seconds
		{Type: addressTy}, // owner address
		{Type: addressTy}, // signer address
	}
)

func mustABIType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// Trade is the exact parameter tuple covered by a trade authorization.
type Trade struct {
	AssetAddress common.Address
	AssetSubID   *big.Int
	LimitPrice   decimal.Decimal
	Amount       decimal.Decimal
	MaxFee       decimal.Decimal
	SubaccountID int64
	IsBid        bool
}

// Authorizer builds and signs deterministic trade authorizations accepted by
// the exchange's on-chain settlement module. The encoding is bit-exact; any
// deviation invalidates the signature.
type Authorizer struct {
	cfg config.Signing
}

// NewAuthorizer validates the signing configuration and returns an
// authorizer. Missing or zero-valued parameters fail fast, before any
// network activity.
func NewAuthorizer(cfg config.Signing) (*Authorizer, error) {
	if cfg.SessionKey == nil {
		return nil, fmt.Errorf("%w: session key not set", ErrMissingSigningConfig)
	}
	if cfg.OwnerAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner address not set", ErrMissingSigningConfig)
	}
	if cfg.TradeModuleAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: trade module address not set", ErrMissingSigningConfig)
	}
	if cfg.ActionTypehash == ([32]byte{}) {
		return nil, fmt.Errorf("%w: action typehash not set", ErrMissingSigningConfig)
	}
	if cfg.DomainSeparator == ([32]byte{}) {
		return nil, fmt.Errorf("%w: domain separator not set", ErrMissingSigningConfig)
	}
	if cfg.SignatureExpiry <= 0 {
		return nil, fmt.Errorf("%w: signature expiry not set", ErrMissingSigningConfig)
	}
	return &Authorizer{cfg: cfg}, nil
}

// SignerAddress returns the session key's address, submitted alongside orders.
func (a *Authorizer) SignerAddress() common.Address {
	return crypto.PubkeyToAddress(a.cfg.SessionKey.PublicKey)
}

// OwnerAddress returns the subaccount owner on whose behalf trades are signed.
func (a *Authorizer) OwnerAddress() common.Address {
	return a.cfg.OwnerAddress
}

// SignatureExpiry returns the configured validity window for authorizations.
func (a *Authorizer) SignatureExpiry() time.Duration {
	return a.cfg.SignatureExpiry
}

// TradeHash encodes the trade record as a head-only concatenation of 32-byte
// words in field order and hashes it with keccak256.
func (a *Authorizer) TradeHash(t Trade) ([32]byte, error) {
	var hash [32]byte
	limitPrice, err := DecimalToWireInt(t.LimitPrice)
	if err != nil {
		return hash, err
	}
	amount, err := DecimalToWireInt(t.Amount)
	if err != nil {
		return hash, err
	}
	maxFee, err := DecimalToWireUint(t.MaxFee)
	if err != nil {
		return hash, err
	}

	encoded, err := tradeDataArgs.Pack(
		t.AssetAddress,
		t.AssetSubID,
		limitPrice,
		amount,
		maxFee,
		big.NewInt(t.SubaccountID),
		t.IsBid,
	)
	if err != nil {
		return hash, errors.Join(ErrEncodingFailed, err)
	}
	copy(hash[:], crypto.Keccak256(encoded))
	return hash, nil
}

// Digest computes the final signing digest:
// keccak256(0x1901 || domain separator || keccak256(action data)).
func (a *Authorizer) Digest(tradeHash [32]byte, subaccountID, nonce, expirySec int64) ([32]byte, error) {
	var digest [32]byte
	encoded, err := actionDataArgs.Pack(
		a.cfg.ActionTypehash,
		big.NewInt(subaccountID),
		big.NewInt(nonce),
		a.cfg.TradeModuleAddress,
		tradeHash,
		big.NewInt(expirySec),
		a.cfg.OwnerAddress,
		a.SignerAddress(),
	)
	if err != nil {
		return digest, errors.Join(ErrEncodingFailed, err)
	}
	actionHash := crypto.Keccak256(encoded)

	raw := make([]byte, 0, 2+32+32)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, a.cfg.DomainSeparator[:]...)
	raw = append(raw, actionHash...)
	copy(digest[:], crypto.Keccak256(raw))
	return digest, nil
}

// Sign produces the canonical hex signature over the trade authorization
// digest. Nonce and expiry come from Timestamps; callers must rebuild a fresh
// authorization on retry since the nonce changes each attempt.
func (a *Authorizer) Sign(t Trade, nonce, expirySec int64) (string, error) {
	tradeHash, err := a.TradeHash(t)
	if err != nil {
		return "", err
	}
	digest, err := a.Digest(tradeHash, t.SubaccountID, nonce, expirySec)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest[:], a.cfg.SessionKey)
	if err != nil {
		return "", errors.Join(ErrSigningFailed, err)
	}
	sig[64] += 27

	signerLogger.Debug().
		Str("tradeHash", common.Bytes2Hex(tradeHash[:])).
		Str("digest", common.Bytes2Hex(digest[:])).
		Int64("nonce", nonce).
		Msg("Trade authorization signed")

	return "0x" + common.Bytes2Hex(sig), nil
}

// Timestamps returns the per-submission timing tuple: a microsecond nonce
// (unique per signing without a counter), an advisory reject timestamp 5s out
// (not part of the signed digest), and the signature expiry in unix seconds.
func (a *Authorizer) Timestamps() (nonce, rejectTimestamp, signatureExpirySec int64) {
	now := time.Now()
	nonce = now.UnixMicro()
	rejectTimestamp = now.Add(5 * time.Second).UnixMilli()
	signatureExpirySec = now.Add(a.cfg.SignatureExpiry).Unix()
	return nonce, rejectTimestamp, signatureExpirySec
}
