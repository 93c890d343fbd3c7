package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionSubmissions = "submissions"
)

// kinds of queued submissions
const (
	SubmissionMint          = "mint"
	SubmissionRedeem        = "redeem"
	SubmissionDepositIncome = "deposit_income"
	SubmissionApprove       = "approve"
	SubmissionReject        = "reject"
	SubmissionWithdraw      = "withdraw"
)

// types of submission status
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusSuccess    = "success"
	SubmissionStatusFailed     = "failed"
)

type Submission struct {
	Id               *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Kind             string              `bson:"kind" json:"kind"`
	Caller           string              `bson:"caller" json:"caller"`
	Order            *Order              `bson:"order" json:"order,omitempty"`
	Signature        string              `bson:"signature" json:"signature,omitempty"`
	RequestId        string              `bson:"request_id" json:"request_id,omitempty"`
	CollateralAmount string              `bson:"collateral_amount" json:"collateral_amount,omitempty"`
	Status           string              `bson:"status" json:"status"`
	Result           string              `bson:"result" json:"result,omitempty"`
	Error            string              `bson:"error" json:"error,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
}
