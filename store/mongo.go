package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Mongo persists settlement state in app.DB.
type Mongo struct{}

var _ settlement.Store = &Mongo{}

func NewMongo() *Mongo {
	return &Mongo{}
}

func (s *Mongo) IsNonceUsed(_ context.Context, requester common.Address, nonce *big.Int) (bool, error) {
	filter := bson.M{
		"requester": Address(requester),
		"nonce":     amount(nonce),
	}
	var used models.Nonce
	err := app.DB.FindOne(models.CollectionNonces, filter, &used)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Mongo) GetRedeemRequest(_ context.Context, id string) (settlement.RedeemRequest, error) {
	var stored models.RedeemRequest
	err := app.DB.FindOne(models.CollectionRedeemRequests, bson.M{"request_id": id}, &stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return settlement.RedeemRequest{}, settlement.ErrNotFound
	}
	if err != nil {
		return settlement.RedeemRequest{}, err
	}
	return RedeemRequestFromModel(stored)
}

// ListRedeemRequests returns requests in creation order, optionally only
// those in status.
func (s *Mongo) ListRedeemRequests(status string, limit int64) ([]settlement.RedeemRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	sort := bson.M{"created_at": 1}

	var stored []models.RedeemRequest
	if err := app.DB.FindManySorted(models.CollectionRedeemRequests, filter, sort, limit, &stored); err != nil {
		return nil, err
	}

	requests := make([]settlement.RedeemRequest, 0, len(stored))
	for _, m := range stored {
		request, err := RedeemRequestFromModel(m)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (s *Mongo) GetRateLimitWindow(_ context.Context, kind settlement.LimitKind) (settlement.RateLimitWindow, bool, error) {
	var stored models.RateLimit
	err := app.DB.FindOne(models.CollectionRateLimits, bson.M{"kind": string(kind)}, &stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return settlement.RateLimitWindow{}, false, nil
	}
	if err != nil {
		return settlement.RateLimitWindow{}, false, err
	}
	accumulated, err := ParseAmount(stored.Accumulated)
	if err != nil {
		return settlement.RateLimitWindow{}, false, fmt.Errorf("stored %s limit: %w", kind, err)
	}
	return settlement.RateLimitWindow{
		Kind:        kind,
		StartTime:   stored.PeriodStart,
		Accumulated: accumulated,
	}, true, nil
}

func (s *Mongo) GetCustodyState(_ context.Context, asset common.Address) (settlement.CustodyState, bool, error) {
	var stored models.CustodyAccount
	err := app.DB.FindOne(models.CollectionCustodyAccounts, bson.M{"asset": Address(asset)}, &stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return settlement.CustodyState{}, false, nil
	}
	if err != nil {
		return settlement.CustodyState{}, false, err
	}
	reserved, err := ParseAmount(stored.Reserved)
	if err != nil {
		return settlement.CustodyState{}, false, fmt.Errorf("stored custody of %s: %w", stored.Asset, err)
	}
	frozen, err := ParseAmount(stored.Frozen)
	if err != nil {
		return settlement.CustodyState{}, false, fmt.Errorf("stored custody of %s: %w", stored.Asset, err)
	}
	return settlement.CustodyState{
		Asset:    asset,
		Reserved: reserved,
		Frozen:   frozen,
	}, true, nil
}

// Commit writes the change set in one transaction.
func (s *Mongo) Commit(_ context.Context, changes settlement.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	err := app.DB.WithTransaction(func(tx models.Database) error {
		return commit(tx, changes, time.Now())
	})
	if err != nil {
		log.Error("[STORE] Error committing changes: ", err)
		return err
	}

	log.Debug("[STORE] Committed changes")
	return nil
}

func commit(tx models.Database, changes settlement.ChangeSet, now time.Time) error {
	for _, used := range changes.Nonces {
		_, err := tx.InsertOne(models.CollectionNonces, models.Nonce{
			Requester: Address(used.Requester),
			Nonce:     amount(used.Nonce),
			OrderType: uint8(used.OrderType),
			CreatedAt: used.UsedAt,
		})
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s already used by %s", settlement.ErrInvalidNonce, amount(used.Nonce), used.Requester.Hex())
		}
		if err != nil {
			return err
		}
	}

	for _, request := range changes.NewRequests {
		_, err := tx.InsertOne(models.CollectionRedeemRequests, RedeemRequestToModel(request))
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s already exists", settlement.ErrInvalidRedeemRequest, request.ID)
		}
		if err != nil {
			return err
		}
	}

	for _, update := range changes.RequestUpdates {
		filter := bson.M{
			"request_id": update.Request.ID,
			"status":     string(update.From),
		}
		set := bson.M{"$set": bson.M{
			"status":              string(update.Request.Status),
			"released_collateral": amount(update.Request.ReleasedCollateral),
			"settled_by":          optionalAddress(update.Request.SettledBy),
			"reason":              update.Request.Reason,
			"updated_at":          update.Request.UpdatedAt,
		}}
		matched, err := tx.UpdateOne(models.CollectionRedeemRequests, filter, set)
		if err != nil {
			return err
		}
		if matched == 0 {
			return fmt.Errorf("%w: %s changed concurrently", settlement.ErrInvalidRedeemRequest, update.Request.ID)
		}
	}

	for kind, window := range changes.Windows {
		set := bson.M{"$set": bson.M{
			"period_start": window.StartTime,
			"accumulated":  amount(window.Accumulated),
			"updated_at":   now,
		}}
		if _, err := tx.UpsertOne(models.CollectionRateLimits, bson.M{"kind": string(kind)}, set); err != nil {
			return err
		}
	}

	for asset, state := range changes.Custody {
		set := bson.M{"$set": bson.M{
			"reserved":   amount(state.Reserved),
			"frozen":     amount(state.Frozen),
			"updated_at": now,
		}}
		if _, err := tx.UpsertOne(models.CollectionCustodyAccounts, bson.M{"asset": Address(asset)}, set); err != nil {
			return err
		}
	}

	return nil
}
