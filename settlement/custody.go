package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CustodyState is the persisted part of a custody account. The held amount
// is always the live ledger balance of the core.
type CustodyState struct {
	Asset    common.Address
	Reserved *big.Int
	Frozen   *big.Int
}

func newCustodyState(asset common.Address) CustodyState {
	return CustodyState{Asset: asset, Reserved: new(big.Int), Frozen: new(big.Int)}
}

func (s CustodyState) clone() CustodyState {
	return CustodyState{
		Asset:    s.Asset,
		Reserved: cloneInt(s.Reserved),
		Frozen:   cloneInt(s.Frozen),
	}
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// CustodyAccount is a custody state joined with the held balance.
type CustodyAccount struct {
	CustodyState
	Held *big.Int
}

// Available is held − reserved − frozen, clamped at zero.
func (a CustodyAccount) Available() *big.Int {
	available := new(big.Int).Sub(a.Held, a.Reserved)
	available.Sub(available, a.Frozen)
	if available.Sign() < 0 {
		return new(big.Int)
	}
	return available
}

// Unreserved is held − reserved, clamped at zero. Frozen funds may never
// exceed it.
func (a CustodyAccount) Unreserved() *big.Int {
	unreserved := new(big.Int).Sub(a.Held, a.Reserved)
	if unreserved.Sign() < 0 {
		return new(big.Int)
	}
	return unreserved
}
