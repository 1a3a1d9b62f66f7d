package signer

import (
	"errors"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoginCredentials is the signed triple the exchange accepts as session
// authentication: the owner wallet, a millisecond timestamp, and the session
// key's signature over that timestamp.
type LoginCredentials struct {
	Wallet    string `json:"wallet"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

// Login signs the current timestamp with the session key. Credentials are
// single-use; build fresh ones for every login attempt.
func (a *Authorizer) Login() (LoginCredentials, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	digest := accounts.TextHash([]byte(timestamp))
	sig, err := crypto.Sign(digest, a.cfg.SessionKey)
	if err != nil {
		return LoginCredentials{}, errors.Join(ErrSigningFailed, err)
	}
	sig[64] += 27
	return LoginCredentials{
		Wallet:    a.cfg.OwnerAddress.Hex(),
		Timestamp: timestamp,
		Signature: "0x" + common.Bytes2Hex(sig),
	}, nil
}
