package settlement

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type OrderType uint8

const (
	OrderTypeMint OrderType = iota
	OrderTypeRedeem
	OrderTypeDepositIncome
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMint:
		return "mint"
	case OrderTypeRedeem:
		return "redeem"
	case OrderTypeDepositIncome:
		return "deposit_income"
	default:
		return fmt.Sprintf("order_type(%d)", uint8(t))
	}
}

// Order is a signed instruction to mint, redeem or deposit income.
//
// SlippageAdjustedAmount is the minimum yUSD accepted for mint and deposit
// income orders and the minimum collateral accepted for redeem orders.
// AdditionalData of exactly 32 bytes carries an embedded id: the redeem
// request id for redeem orders, the rewards snapshot id for income deposits.
type Order struct {
	OrderType              OrderType
	Requester              common.Address
	Delegate               common.Address
	CollateralAsset        common.Address
	CollateralAmount       *big.Int
	YusdAmount             *big.Int
	SlippageAdjustedAmount *big.Int
	Expiry                 uint64
	Nonce                  *big.Int
	AdditionalData         []byte
}

// Validate checks the structural rules every order must satisfy before its
// signature is even looked at.
func (o Order) Validate() error {
	if o.OrderType > OrderTypeDepositIncome {
		return fmt.Errorf("%w: unknown order type %d", ErrInvalidOrder, o.OrderType)
	}
	if o.Requester == (common.Address{}) {
		return fmt.Errorf("%w: missing requester", ErrInvalidOrder)
	}
	if o.CollateralAsset == (common.Address{}) {
		return ErrInvalidAssetAddress
	}
	if o.Nonce == nil || o.Nonce.Sign() < 0 {
		return fmt.Errorf("%w: missing nonce", ErrInvalidOrder)
	}
	if !positive(o.CollateralAmount) || !positive(o.YusdAmount) {
		return ErrInvalidAmount
	}
	if o.SlippageAdjustedAmount == nil || o.SlippageAdjustedAmount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Expired reports whether the order can no longer be executed at now.
func (o Order) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= o.Expiry
}

// EmbeddedID returns the 32-byte identifier carried in AdditionalData.
func (o Order) EmbeddedID() ([32]byte, bool) {
	var id [32]byte
	if len(o.AdditionalData) != 32 {
		return id, false
	}
	copy(id[:], o.AdditionalData)
	return id, true
}

func positive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}
