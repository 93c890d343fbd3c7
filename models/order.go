package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionNonces          = "nonces"
	CollectionRedeemRequests  = "redeem_requests"
	CollectionRateLimits      = "rate_limits"
	CollectionCustodyAccounts = "custody_accounts"
)

// Order is the persisted and wire form of a signed order. Amounts and the
// nonce are base-10 integer strings, addresses are hex.
type Order struct {
	OrderType              uint8  `bson:"order_type" json:"order_type"`
	Requester              string `bson:"requester" json:"requester"`
	Delegate               string `bson:"delegate" json:"delegate,omitempty"`
	CollateralAsset        string `bson:"collateral_asset" json:"collateral_asset"`
	CollateralAmount       string `bson:"collateral_amount" json:"collateral_amount"`
	YusdAmount             string `bson:"yusd_amount" json:"yusd_amount"`
	SlippageAdjustedAmount string `bson:"slippage_adjusted_amount" json:"slippage_adjusted_amount"`
	Expiry                 int64  `bson:"expiry" json:"expiry"`
	Nonce                  string `bson:"nonce" json:"nonce"`
	AdditionalData         string `bson:"additional_data" json:"additional_data,omitempty"`
}

type Nonce struct {
	Id        *primitive.ObjectID `bson:"_id,omitempty"`
	Requester string              `bson:"requester"`
	Nonce     string              `bson:"nonce"`
	OrderType uint8               `bson:"order_type"`
	CreatedAt time.Time           `bson:"created_at"`
}

// types of redeem request status
const (
	RedeemStatusPending   = "pending"
	RedeemStatusApproved  = "approved"
	RedeemStatusRejected  = "rejected"
	RedeemStatusWithdrawn = "withdrawn"
)

type RedeemRequest struct {
	Id                 *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RequestId          string              `bson:"request_id" json:"request_id"`
	Requester          string              `bson:"requester" json:"requester"`
	Order              Order               `bson:"order" json:"order"`
	Status             string              `bson:"status" json:"status"`
	ReleasedCollateral string              `bson:"released_collateral" json:"released_collateral"`
	SettledBy          string              `bson:"settled_by" json:"settled_by,omitempty"`
	Reason             string              `bson:"reason" json:"reason,omitempty"`
	CreatedAt          time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at" json:"updated_at"`
}

const (
	RateLimitMint   = "mint"
	RateLimitRedeem = "redeem"
)

type RateLimit struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty"`
	Kind        string              `bson:"kind"`
	PeriodStart time.Time           `bson:"period_start"`
	Accumulated string              `bson:"accumulated"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

type CustodyAccount struct {
	Id        *primitive.ObjectID `bson:"_id,omitempty"`
	Asset     string              `bson:"asset"`
	Reserved  string              `bson:"reserved"`
	Frozen    string              `bson:"frozen"`
	UpdatedAt time.Time           `bson:"updated_at"`
}
