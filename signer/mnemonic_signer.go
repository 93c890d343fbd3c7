package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

type MnemonicSigner struct {
	address    common.Address
	privateKey *ecdsa.PrivateKey
}

var _ Signer = &MnemonicSigner{}

// PrivateKeyFromMnemonic derives the key at hdPath, or at the default
// Ethereum path when hdPath is empty.
func PrivateKeyFromMnemonic(mnemonic string, hdPath string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	if hdPath == "" {
		hdPath = DefaultETHHDPath
	}

	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	path, err := accounts.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, fmt.Errorf("invalid hd path %q: %w", hdPath, err)
	}

	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}

	return wallet.PrivateKey(account)
}

func NewMnemonicSigner(mnemonic string, hdPath string) (*MnemonicSigner, error) {
	privateKey, err := PrivateKeyFromMnemonic(mnemonic, hdPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}
	return NewPrivateKeySigner(privateKey), nil
}

func NewPrivateKeySigner(privateKey *ecdsa.PrivateKey) *MnemonicSigner {
	return &MnemonicSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

func (s *MnemonicSigner) Destroy() {}

func (s *MnemonicSigner) Sign(data []byte) ([]byte, error) {
	hash := digestOf(data)
	signature, err := crypto.Sign(hash[:], s.privateKey)
	if err != nil {
		return nil, err
	}

	if signature[64] == 0 || signature[64] == 1 {
		signature[64] += 27
	}

	return signature, nil
}

func (s *MnemonicSigner) Address() common.Address {
	return s.address
}

func (s *MnemonicSigner) PublicKey() []byte {
	return crypto.CompressPubkey(&s.privateKey.PublicKey)
}
