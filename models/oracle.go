package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionOraclePrices     = "oracle_prices"
	CollectionRewardsSnapshots = "rewards_snapshots"
	CollectionRewardsClaims    = "rewards_claims"
)

type OraclePrice struct {
	Id        *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Feed      string              `bson:"feed" json:"feed"`
	Price     string              `bson:"price" json:"price"`
	UpdatedBy string              `bson:"updated_by" json:"updated_by"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}

// RewardsSnapshot totals are Decimal128 so deposits can be applied with $inc.
type RewardsSnapshot struct {
	Id         *primitive.ObjectID  `bson:"_id,omitempty"`
	SnapshotId string               `bson:"snapshot_id"`
	Total      primitive.Decimal128 `bson:"total"`
	Claimed    primitive.Decimal128 `bson:"claimed"`
	Deposits   int64                `bson:"deposits"`
	CreatedAt  time.Time            `bson:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at"`
}

type RewardsClaim struct {
	Id         *primitive.ObjectID `bson:"_id,omitempty"`
	SnapshotId string              `bson:"snapshot_id"`
	Account    string              `bson:"account"`
	Amount     string              `bson:"amount"`
	CreatedAt  time.Time           `bson:"created_at"`
}
