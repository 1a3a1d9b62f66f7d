package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAddress    = errors.New("address is invalid")
	ErrInvalidTypehash   = errors.New("action typehash is invalid")
	ErrInvalidSeparator  = errors.New("domain separator is invalid")
	ErrInvalidPrivateKey = errors.New("private key is invalid")
)

const defaultSignatureExpiry = 600 * time.Second

// Signing holds everything needed to build and sign trade authorizations.
// Every field is required and validated here; the order authorizer assumes
// the config is well-formed.
type Signing struct {
	// OwnerAddress is the subaccount owner (the vault contract).
	OwnerAddress common.Address
	// SessionKey signs trade authorizations on the owner's behalf.
	SessionKey *ecdsa.PrivateKey
	// ActionTypehash is the 32-byte action type identifier of the settlement protocol.
	ActionTypehash [32]byte
	// DomainSeparator identifies the deployed settlement contracts and chain.
	DomainSeparator [32]byte
	// TradeModuleAddress is the settlement module that verifies trade signatures.
	TradeModuleAddress common.Address
	// SignatureExpiry is how long a signed authorization stays valid.
	SignatureExpiry time.Duration
}

// SessionAddress returns the address of the session signing key.
func (s *Signing) SessionAddress() common.Address {
	return crypto.PubkeyToAddress(s.SessionKey.PublicKey)
}

func loadSigning() (Signing, error) {
	ownerStr, err := getEnv("OWNER_ADDRESS")
	if err != nil {
		return Signing{}, err
	}
	owner, err := parseAddress(ownerStr)
	if err != nil {
		return Signing{}, err
	}

	keyStr, err := getEnv("SESSION_PRIVATE_KEY")
	if err != nil {
		return Signing{}, err
	}
	sessionKey, err := parsePrivateKey(keyStr)
	if err != nil {
		return Signing{}, err
	}

	typehashStr, err := getEnv("ACTION_TYPEHASH")
	if err != nil {
		return Signing{}, err
	}
	typehash, err := parseHash32(typehashStr)
	if err != nil {
		return Signing{}, errors.Join(ErrInvalidTypehash, err)
	}

	separatorStr, err := getEnv("DOMAIN_SEPARATOR")
	if err != nil {
		return Signing{}, err
	}
	separator, err := parseHash32(separatorStr)
	if err != nil {
		return Signing{}, errors.Join(ErrInvalidSeparator, err)
	}

	moduleStr, err := getEnv("TRADE_MODULE_ADDRESS")
	if err != nil {
		return Signing{}, err
	}
	module, err := parseAddress(moduleStr)
	if err != nil {
		return Signing{}, err
	}

	expiry := defaultSignatureExpiry
	if expirySecStr := getEnvOr("SIGNATURE_EXPIRY_SEC", ""); expirySecStr != "" {
		expirySec, err := getEnvAsInt64("SIGNATURE_EXPIRY_SEC")
		if err != nil {
			return Signing{}, err
		}
		expiry = time.Duration(expirySec) * time.Second
	}

	return Signing{
		OwnerAddress:       owner,
		SessionKey:         sessionKey,
		ActionTypehash:     typehash,
		DomainSeparator:    separator,
		TradeModuleAddress: module,
		SignatureExpiry:    expiry,
	}, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Join(ErrInvalidAddress, errors.New(s))
	}
	return common.HexToAddress(s), nil
}

func parsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Join(ErrInvalidPrivateKey, err)
	}
	return key, nil
}

func parseHash32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, errors.New("expected 32 bytes, got " + s)
	}
	copy(out[:], raw)
	return out, nil
}
