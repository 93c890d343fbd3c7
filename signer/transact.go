package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactOpts lets s authorize contract transactions on chainID, so a KMS
// key can send them the same way a mnemonic key does.
func TransactOpts(s Signer, chainID *big.Int) *bind.TransactOpts {
	txSigner := types.LatestSignerForChainID(chainID)
	return &bind.TransactOpts{
		From: s.Address(),
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != s.Address() {
				return nil, bind.ErrNotAuthorized
			}
			sig, err := s.Sign(txSigner.Hash(tx).Bytes())
			if err != nil {
				return nil, err
			}
			sig = append([]byte{}, sig...)
			sig[64] -= 27
			return tx.WithSignature(txSigner, sig)
		},
	}
}
