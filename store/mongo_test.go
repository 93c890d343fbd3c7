package store

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/app/mocks"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func init() {
	log.SetOutput(io.Discard)
}

func newMockDB(t *testing.T) *mocks.MockDatabase {
	mockDB := mocks.NewMockDatabase(t)
	app.DB = mockDB
	return mockDB
}

func expectTransaction(mockDB *mocks.MockDatabase) {
	mockDB.EXPECT().WithTransaction(mock.Anything).RunAndReturn(func(fn func(models.Database) error) error {
		return fn(mockDB)
	})
}

var duplicateKey = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}

func TestIsNonceUsed(t *testing.T) {
	filter := bson.M{"requester": Address(requester), "nonce": "7"}

	t.Run("Unused", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionNonces, filter, mock.Anything).Return(mongo.ErrNoDocuments)

		used, err := NewMongo().IsNonceUsed(context.Background(), requester, big.NewInt(7))
		assert.NoError(t, err)
		assert.False(t, used)
	})

	t.Run("Used", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionNonces, filter, mock.Anything).Return(nil)

		used, err := NewMongo().IsNonceUsed(context.Background(), requester, big.NewInt(7))
		assert.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("Error", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionNonces, filter, mock.Anything).Return(errors.New("error"))

		_, err := NewMongo().IsNonceUsed(context.Background(), requester, big.NewInt(7))
		assert.EqualError(t, err, "error")
	})
}

func TestGetRedeemRequest(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockDB := newMockDB(t)
		stored := RedeemRequestToModel(settlement.RedeemRequest{
			ID:        "request",
			Requester: requester,
			Order:     testOrder(),
			Status:    settlement.RedeemPending,
		})
		mockDB.EXPECT().FindOne(models.CollectionRedeemRequests, bson.M{"request_id": "request"}, mock.Anything).
			Run(func(_ string, _ interface{}, result interface{}) {
				*result.(*models.RedeemRequest) = stored
			}).
			Return(nil)

		request, err := NewMongo().GetRedeemRequest(context.Background(), "request")
		require.NoError(t, err)
		assert.Equal(t, settlement.RedeemPending, request.Status)
		assert.Equal(t, testOrder(), request.Order)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionRedeemRequests, mock.Anything, mock.Anything).Return(mongo.ErrNoDocuments)

		_, err := NewMongo().GetRedeemRequest(context.Background(), "request")
		assert.ErrorIs(t, err, settlement.ErrNotFound)
	})
}

func TestListRedeemRequests(t *testing.T) {
	mockDB := newMockDB(t)
	stored := []models.RedeemRequest{
		RedeemRequestToModel(settlement.RedeemRequest{ID: "a", Order: testOrder(), Status: settlement.RedeemPending}),
		RedeemRequestToModel(settlement.RedeemRequest{ID: "b", Order: testOrder(), Status: settlement.RedeemPending}),
	}
	mockDB.EXPECT().FindManySorted(models.CollectionRedeemRequests, bson.M{"status": "pending"}, bson.M{"created_at": 1}, int64(10), mock.Anything).
		Run(func(_ string, _ interface{}, _ interface{}, _ int64, result interface{}) {
			*result.(*[]models.RedeemRequest) = stored
		}).
		Return(nil)

	requests, err := NewMongo().ListRedeemRequests("pending", 10)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "a", requests[0].ID)
	assert.Equal(t, "b", requests[1].ID)
}

func TestGetRateLimitWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Stored", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionRateLimits, bson.M{"kind": "mint"}, mock.Anything).
			Run(func(_ string, _ interface{}, result interface{}) {
				*result.(*models.RateLimit) = models.RateLimit{Kind: "mint", PeriodStart: start, Accumulated: "15"}
			}).
			Return(nil)

		window, ok, err := NewMongo().GetRateLimitWindow(context.Background(), settlement.LimitMint)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, start, window.StartTime)
		assert.Equal(t, big.NewInt(15), window.Accumulated)
	})

	t.Run("Missing", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionRateLimits, mock.Anything, mock.Anything).Return(mongo.ErrNoDocuments)

		_, ok, err := NewMongo().GetRateLimitWindow(context.Background(), settlement.LimitRedeem)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGetCustodyState(t *testing.T) {
	mockDB := newMockDB(t)
	mockDB.EXPECT().FindOne(models.CollectionCustodyAccounts, bson.M{"asset": Address(usdc)}, mock.Anything).
		Run(func(_ string, _ interface{}, result interface{}) {
			*result.(*models.CustodyAccount) = models.CustodyAccount{Asset: Address(usdc), Reserved: "10", Frozen: ""}
		}).
		Return(nil)

	state, ok, err := NewMongo().GetCustodyState(context.Background(), usdc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, usdc, state.Asset)
	assert.Equal(t, big.NewInt(10), state.Reserved)
	assert.Equal(t, 0, state.Frozen.Sign())
}

func TestCommit(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	request := settlement.RedeemRequest{
		ID:        "request",
		Requester: requester,
		Order:     testOrder(),
		Status:    settlement.RedeemPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	changes := func() settlement.ChangeSet {
		return settlement.ChangeSet{
			Nonces: []settlement.UsedNonce{{Requester: requester, Nonce: big.NewInt(7), OrderType: settlement.OrderTypeRedeem, UsedAt: now}},
			NewRequests: []settlement.RedeemRequest{request},
			Windows: map[settlement.LimitKind]settlement.RateLimitWindow{
				settlement.LimitRedeem: {Kind: settlement.LimitRedeem, StartTime: now, Accumulated: big.NewInt(100)},
			},
			Custody: map[common.Address]settlement.CustodyState{
				usdc: {Asset: usdc, Reserved: big.NewInt(99), Frozen: big.NewInt(0)},
			},
		}
	}

	t.Run("Empty", func(t *testing.T) {
		newMockDB(t)
		assert.NoError(t, NewMongo().Commit(context.Background(), settlement.ChangeSet{}))
	})

	t.Run("Writes Everything", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)

		mockDB.EXPECT().InsertOne(models.CollectionNonces, models.Nonce{
			Requester: Address(requester),
			Nonce:     "7",
			OrderType: 1,
			CreatedAt: now,
		}).Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().InsertOne(models.CollectionRedeemRequests, RedeemRequestToModel(request)).Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().UpsertOne(models.CollectionRateLimits, bson.M{"kind": "redeem"}, mock.Anything).
			Run(func(_ string, _ interface{}, update interface{}) {
				set := update.(bson.M)["$set"].(bson.M)
				assert.Equal(t, now, set["period_start"])
				assert.Equal(t, "100", set["accumulated"])
			}).
			Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().UpsertOne(models.CollectionCustodyAccounts, bson.M{"asset": Address(usdc)}, mock.Anything).
			Run(func(_ string, _ interface{}, update interface{}) {
				set := update.(bson.M)["$set"].(bson.M)
				assert.Equal(t, "99", set["reserved"])
				assert.Equal(t, "0", set["frozen"])
			}).
			Return(primitive.NewObjectID(), nil)

		assert.NoError(t, NewMongo().Commit(context.Background(), changes()))
	})

	t.Run("Used Nonce", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		mockDB.EXPECT().InsertOne(models.CollectionNonces, mock.Anything).Return(primitive.NilObjectID, duplicateKey)

		err := NewMongo().Commit(context.Background(), changes())
		assert.ErrorIs(t, err, settlement.ErrInvalidNonce)
	})

	t.Run("Existing Request", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		mockDB.EXPECT().InsertOne(models.CollectionNonces, mock.Anything).Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().InsertOne(models.CollectionRedeemRequests, mock.Anything).Return(primitive.NilObjectID, duplicateKey)

		err := NewMongo().Commit(context.Background(), changes())
		assert.ErrorIs(t, err, settlement.ErrInvalidRedeemRequest)
	})

	t.Run("Request Moved On", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)

		approved := request
		approved.Status = settlement.RedeemApproved
		update := settlement.ChangeSet{
			RequestUpdates: []settlement.RequestUpdate{{Request: approved, From: settlement.RedeemPending}},
		}
		mockDB.EXPECT().UpdateOne(models.CollectionRedeemRequests, bson.M{"request_id": "request", "status": "pending"}, mock.Anything).
			Return(int64(0), nil)

		err := NewMongo().Commit(context.Background(), update)
		assert.ErrorIs(t, err, settlement.ErrInvalidRedeemRequest)
	})

	t.Run("Transaction Error", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().WithTransaction(mock.Anything).Return(errors.New("no replica set"))

		err := NewMongo().Commit(context.Background(), changes())
		assert.EqualError(t, err, "no replica set")
	})
}
