package settlement

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

type RedeemStatus string

const (
	RedeemPending   RedeemStatus = "pending"
	RedeemApproved  RedeemStatus = "approved"
	RedeemRejected  RedeemStatus = "rejected"
	RedeemWithdrawn RedeemStatus = "withdrawn"
)

var redeemTransitions = map[RedeemStatus][]RedeemStatus{
	RedeemPending: {RedeemApproved, RedeemRejected, RedeemWithdrawn},
}

func (s RedeemStatus) Terminal() bool {
	return len(redeemTransitions[s]) == 0
}

func (s RedeemStatus) canTransitionTo(next RedeemStatus) bool {
	for _, allowed := range redeemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RedeemRequest holds yUSD in the core until a funds manager settles it or
// the requester withdraws after expiry.
type RedeemRequest struct {
	ID                 string
	Requester          common.Address
	Order              Order
	Status             RedeemStatus
	ReleasedCollateral *big.Int
	SettledBy          common.Address
	Reason             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// transition moves the request to next, returning the updated copy.
func (r RedeemRequest) transition(next RedeemStatus, by common.Address, now time.Time) (RedeemRequest, error) {
	if !r.Status.canTransitionTo(next) {
		return r, fmt.Errorf("%w: %s is %s", ErrInvalidRedeemRequest, r.ID, r.Status)
	}
	r.Status = next
	r.SettledBy = by
	r.UpdatedAt = now
	return r, nil
}

// redeemNamespace scopes ids derived for orders without an embedded id.
var redeemNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("yusd.redeem-request"))

// RedeemRequestID returns the id a redeem order creates its request under.
func RedeemRequestID(order Order) string {
	if id, ok := order.EmbeddedID(); ok {
		return hexutil.Encode(id[:])
	}
	name := order.Requester.Hex() + ":" + amountString(order.Nonce)
	return uuid.NewSHA1(redeemNamespace, []byte(name)).String()
}

// RedeemOutcome is returned by approval so callers can tell a graceful
// rejection from a release.
type RedeemOutcome struct {
	Request  RedeemRequest
	Rejected bool
	Reason   string
}
