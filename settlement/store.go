package settlement

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("not found")

// TokenLedger moves fungible balances. Transfer moves funds on the core's
// authority, TransferFrom spends an allowance the owner granted to the core.
// ReturnFrom undoes a TransferFrom of amount from owner to holder, giving the
// spent allowance back where the ledger can.
type TokenLedger interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, owner, to common.Address, amount *big.Int) error
	ReturnFrom(ctx context.Context, token, owner, holder common.Address, amount *big.Int) error
	Mint(ctx context.Context, token, to common.Address, amount *big.Int) error
	Burn(ctx context.Context, token, from common.Address, amount *big.Int) error
}

// RewardsSink records distributable income for a snapshot.
type RewardsSink interface {
	Deposit(ctx context.Context, snapshotID [32]byte, amount *big.Int) error
	Revert(ctx context.Context, snapshotID [32]byte, amount *big.Int) error
}

// Locker serializes engine operations across processes.
type Locker interface {
	XLock(resourceId string) (string, error)
	Unlock(lockId string) error
}

// UsedNonce marks (Requester, Nonce) as consumed.
type UsedNonce struct {
	Requester common.Address
	Nonce     *big.Int
	OrderType OrderType
	UsedAt    time.Time
}

// RequestUpdate moves a stored request out of From.
type RequestUpdate struct {
	Request RedeemRequest
	From    RedeemStatus
}

// ChangeSet is everything an operation persists. A store applies it
// atomically or not at all.
type ChangeSet struct {
	Nonces         []UsedNonce
	NewRequests    []RedeemRequest
	RequestUpdates []RequestUpdate
	Windows        map[LimitKind]RateLimitWindow
	Custody        map[common.Address]CustodyState
}

func (c *ChangeSet) Empty() bool {
	return len(c.Nonces) == 0 && len(c.NewRequests) == 0 && len(c.RequestUpdates) == 0 &&
		len(c.Windows) == 0 && len(c.Custody) == 0
}

// Store persists settlement state.
//
// Commit must fail with ErrInvalidNonce when a nonce was already used and
// with ErrInvalidRedeemRequest when a new request id exists or an updated
// request is no longer in its From status.
type Store interface {
	NonceChecker
	GetRedeemRequest(ctx context.Context, id string) (RedeemRequest, error)
	GetRateLimitWindow(ctx context.Context, kind LimitKind) (RateLimitWindow, bool, error)
	GetCustodyState(ctx context.Context, asset common.Address) (CustodyState, bool, error)
	Commit(ctx context.Context, changes ChangeSet) error
}
