package signer

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	DefaultBIP39Passphrase = ""
	DefaultETHHDPath       = "m/44'/60'/0'/0/0"
)

// Signer produces recoverable secp256k1 signatures with v in {27, 28}.
type Signer interface {
	// Sign signs a 32-byte digest as is. Any other input is hashed with
	// keccak256 first.
	Sign(data []byte) ([]byte, error)
	Address() common.Address
	PublicKey() []byte
	Destroy()
}

func digestOf(data []byte) common.Hash {
	if len(data) == 32 {
		return common.BytesToHash(data)
	}
	return common.BytesToHash(crypto.Keccak256(data))
}

// SignPersonal signs data behind the EIP-191 "Ethereum Signed Message"
// prefix, the form the API expects for request authentication.
func SignPersonal(s Signer, data []byte) ([]byte, error) {
	return s.Sign(accounts.TextHash(data))
}
