package intake

import (
	"errors"
	"fmt"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUnknownKind = errors.New("unknown submission kind")

func orderKind(kind string) bool {
	switch kind {
	case models.SubmissionMint, models.SubmissionRedeem, models.SubmissionDepositIncome:
		return true
	}
	return false
}

func requestKind(kind string) bool {
	switch kind {
	case models.SubmissionApprove, models.SubmissionReject, models.SubmissionWithdraw:
		return true
	}
	return false
}

// validate checks that a submission carries what its kind needs. It does not
// authenticate the order.
func validate(sub models.Submission) error {
	switch {
	case orderKind(sub.Kind):
		if sub.Order == nil {
			return fmt.Errorf("%w: %s submission without an order", settlement.ErrInvalidOrder, sub.Kind)
		}
		if _, err := store.OrderFromModel(*sub.Order); err != nil {
			return err
		}
		if _, err := hexutil.Decode(sub.Signature); err != nil {
			return fmt.Errorf("%w: %v", settlement.ErrInvalidSignature, err)
		}
	case requestKind(sub.Kind):
		if sub.RequestId == "" {
			return fmt.Errorf("%w: %s submission without a request id", settlement.ErrInvalidRedeemRequest, sub.Kind)
		}
		if sub.Kind == models.SubmissionApprove {
			if _, err := store.ParseAmount(sub.CollateralAmount); err != nil {
				return fmt.Errorf("%w: collateral amount", settlement.ErrInvalidAmount)
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, sub.Kind)
	}
	return nil
}

// Enqueue stores sub as pending on behalf of caller.
func Enqueue(caller common.Address, sub models.Submission) (models.Submission, error) {
	if err := validate(sub); err != nil {
		return models.Submission{}, err
	}

	now := time.Now()
	sub.Id = nil
	sub.Caller = store.Address(caller)
	sub.Status = models.SubmissionStatusPending
	sub.Result = ""
	sub.Error = ""
	sub.CreatedAt = now
	sub.UpdatedAt = now

	id, err := app.DB.InsertOne(models.CollectionSubmissions, sub)
	if err != nil {
		return models.Submission{}, err
	}
	sub.Id = &id
	return sub, nil
}

func FindSubmission(id primitive.ObjectID) (models.Submission, error) {
	var sub models.Submission
	err := app.DB.FindOne(models.CollectionSubmissions, bson.M{"_id": id}, &sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sub, settlement.ErrNotFound
	}
	return sub, err
}
