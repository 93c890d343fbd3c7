package rewards

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/app/mocks"
	"github.com/dan13ram/yusd-settlement/ledger"
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

var (
	yusd    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	holder  = common.HexToAddress("0x000000000000000000000000000000000000f00d")
	account = common.HexToAddress("0x000000000000000000000000000000000000a1ce")

	snapshotID = [32]byte{1, 2, 3}
)

var duplicateKey = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}

func newMockDB(t *testing.T) *mocks.MockDatabase {
	mockDB := mocks.NewMockDatabase(t)
	app.DB = mockDB
	return mockDB
}

func mustDecimal(t *testing.T, value string) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(value)
	require.NoError(t, err)
	return d
}

func newDistributor(balance int64) (*Distributor, *ledger.Memory) {
	l := ledger.NewMemory(holder)
	if balance > 0 {
		_ = l.Mint(context.Background(), yusd, holder, big.NewInt(balance))
	}
	return NewDistributor(l, yusd, holder), l
}

func balanceOf(t *testing.T, l *ledger.Memory, who common.Address) *big.Int {
	b, err := l.BalanceOf(context.Background(), yusd, who)
	require.NoError(t, err)
	return b
}

func expectSnapshot(mockDB *mocks.MockDatabase, total, claimed primitive.Decimal128) {
	mockDB.EXPECT().FindOne(models.CollectionRewardsSnapshots, bson.M{"snapshot_id": SnapshotID(snapshotID)}, mock.Anything).
		Run(func(_ string, _ interface{}, result interface{}) {
			*result.(*models.RewardsSnapshot) = models.RewardsSnapshot{
				SnapshotId: SnapshotID(snapshotID),
				Total:      total,
				Claimed:    claimed,
				Deposits:   1,
			}
		}).
		Return(nil)
}

func TestSnapshotID(t *testing.T) {
	assert.Equal(t, "0x0102030000000000000000000000000000000000000000000000000000000000", SnapshotID(snapshotID))
}

func TestDecimalRoundTrip(t *testing.T) {
	large, _ := new(big.Int).SetString("123456789000000000000000000", 10)
	d, err := toDecimal(large)
	require.NoError(t, err)
	back, err := fromDecimal(d)
	require.NoError(t, err)
	assert.Equal(t, large, back)

	back, err = fromDecimal(mustDecimal(t, "1.500E+3"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), back)

	_, err = fromDecimal(mustDecimal(t, "1.5"))
	assert.Error(t, err)

	back, err = fromDecimal(zeroDecimal())
	require.NoError(t, err)
	assert.Equal(t, 0, back.Sign())
}

func TestDeposit(t *testing.T) {
	t.Run("Deposits Are Additive", func(t *testing.T) {
		mockDB := newMockDB(t)
		total := new(big.Int)
		mockDB.EXPECT().UpsertOne(models.CollectionRewardsSnapshots, bson.M{"snapshot_id": SnapshotID(snapshotID)}, mock.Anything).
			Run(func(_ string, _ interface{}, update interface{}) {
				inc := update.(bson.M)["$inc"].(bson.M)
				assert.Equal(t, int64(1), inc["deposits"])
				amount, err := fromDecimal(inc["total"].(primitive.Decimal128))
				require.NoError(t, err)
				total.Add(total, amount)

				onInsert := update.(bson.M)["$setOnInsert"].(bson.M)
				assert.Equal(t, SnapshotID(snapshotID), onInsert["snapshot_id"])
			}).
			Return(primitive.NewObjectID(), nil).
			Times(2)

		d, _ := newDistributor(0)
		assert.NoError(t, d.Deposit(context.Background(), snapshotID, big.NewInt(100)))
		assert.NoError(t, d.Deposit(context.Background(), snapshotID, big.NewInt(50)))
		assert.Equal(t, big.NewInt(150), total)
	})

	t.Run("Invalid Amount", func(t *testing.T) {
		newMockDB(t)
		d, _ := newDistributor(0)
		assert.ErrorIs(t, d.Deposit(context.Background(), snapshotID, big.NewInt(0)), settlement.ErrInvalidAmount)
		assert.ErrorIs(t, d.Deposit(context.Background(), snapshotID, nil), settlement.ErrInvalidAmount)
	})

	t.Run("Database Error", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().UpsertOne(mock.Anything, mock.Anything, mock.Anything).Return(primitive.NilObjectID, errors.New("error"))

		d, _ := newDistributor(0)
		assert.EqualError(t, d.Deposit(context.Background(), snapshotID, big.NewInt(1)), "error")
	})
}

func TestRevert(t *testing.T) {
	mockDB := newMockDB(t)
	mockDB.EXPECT().UpsertOne(models.CollectionRewardsSnapshots, mock.Anything, mock.Anything).
		Run(func(_ string, _ interface{}, update interface{}) {
			inc := update.(bson.M)["$inc"].(bson.M)
			assert.Equal(t, int64(-1), inc["deposits"])
			amount, err := fromDecimal(inc["total"].(primitive.Decimal128))
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(-25), amount)
		}).
		Return(primitive.NilObjectID, nil)

	d, _ := newDistributor(0)
	assert.NoError(t, d.Revert(context.Background(), snapshotID, big.NewInt(25)))
}

func TestSnapshot(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "30"))

		d, _ := newDistributor(0)
		snapshot, err := d.Snapshot(context.Background(), snapshotID)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(100), snapshot.Total)
		assert.Equal(t, big.NewInt(70), snapshot.Unclaimed())
		assert.Equal(t, int64(1), snapshot.Deposits)
	})

	t.Run("Unknown", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().FindOne(models.CollectionRewardsSnapshots, mock.Anything, mock.Anything).Return(mongo.ErrNoDocuments)

		d, _ := newDistributor(0)
		_, err := d.Snapshot(context.Background(), snapshotID)
		assert.ErrorIs(t, err, settlement.ErrUnknownRewards)
	})
}

func TestClaim(t *testing.T) {
	expectTransaction := func(mockDB *mocks.MockDatabase) {
		mockDB.EXPECT().WithTransaction(mock.Anything).RunAndReturn(func(fn func(models.Database) error) error {
			return fn(mockDB)
		})
	}

	t.Run("Success", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "0"))
		mockDB.EXPECT().InsertOne(models.CollectionRewardsClaims, mock.Anything).
			Run(func(_ string, data interface{}) {
				claim := data.(models.RewardsClaim)
				assert.Equal(t, "0x000000000000000000000000000000000000a1ce", claim.Account)
				assert.Equal(t, "40", claim.Amount)
			}).
			Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().UpdateOne(models.CollectionRewardsSnapshots, bson.M{"snapshot_id": SnapshotID(snapshotID)}, mock.Anything).
			Return(int64(1), nil)

		d, l := newDistributor(100)
		assert.NoError(t, d.Claim(context.Background(), snapshotID, account, big.NewInt(40)))
		assert.Equal(t, big.NewInt(40), balanceOf(t, l, account))
		assert.Equal(t, big.NewInt(60), balanceOf(t, l, holder))
	})

	t.Run("Unknown Snapshot", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		mockDB.EXPECT().FindOne(models.CollectionRewardsSnapshots, mock.Anything, mock.Anything).Return(mongo.ErrNoDocuments)

		d, _ := newDistributor(100)
		err := d.Claim(context.Background(), snapshotID, account, big.NewInt(40))
		assert.ErrorIs(t, err, settlement.ErrUnknownRewards)
	})

	t.Run("Already Claimed", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "40"))
		mockDB.EXPECT().InsertOne(models.CollectionRewardsClaims, mock.Anything).Return(primitive.NilObjectID, duplicateKey)

		d, l := newDistributor(100)
		err := d.Claim(context.Background(), snapshotID, account, big.NewInt(40))
		assert.ErrorIs(t, err, settlement.ErrAlreadyClaimed)
		assert.Equal(t, 0, balanceOf(t, l, account).Sign())
	})

	t.Run("Not Enough Unclaimed", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "80"))

		d, _ := newDistributor(100)
		err := d.Claim(context.Background(), snapshotID, account, big.NewInt(40))
		assert.ErrorIs(t, err, settlement.ErrNotEnoughFunds)
	})

	t.Run("Payment Fails", func(t *testing.T) {
		mockDB := newMockDB(t)
		expectTransaction(mockDB)
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "0"))
		mockDB.EXPECT().InsertOne(models.CollectionRewardsClaims, mock.Anything).Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().UpdateOne(models.CollectionRewardsSnapshots, mock.Anything, mock.Anything).Return(int64(1), nil)

		d, _ := newDistributor(10)
		err := d.Claim(context.Background(), snapshotID, account, big.NewInt(40))
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	})

	t.Run("Commit Fails After Payment", func(t *testing.T) {
		mockDB := newMockDB(t)
		mockDB.EXPECT().WithTransaction(mock.Anything).RunAndReturn(func(fn func(models.Database) error) error {
			if err := fn(mockDB); err != nil {
				return err
			}
			return errors.New("commit failed")
		})
		expectSnapshot(mockDB, mustDecimal(t, "100"), mustDecimal(t, "0"))
		mockDB.EXPECT().InsertOne(models.CollectionRewardsClaims, mock.Anything).Return(primitive.NewObjectID(), nil)
		mockDB.EXPECT().UpdateOne(models.CollectionRewardsSnapshots, mock.Anything, mock.Anything).Return(int64(1), nil)

		d, l := newDistributor(100)
		err := d.Claim(context.Background(), snapshotID, account, big.NewInt(40))
		assert.EqualError(t, err, "commit failed")
		assert.Equal(t, 0, balanceOf(t, l, account).Sign())
		assert.Equal(t, big.NewInt(100), balanceOf(t, l, holder))
	})

	t.Run("Invalid Amount", func(t *testing.T) {
		newMockDB(t)
		d, _ := newDistributor(100)
		assert.ErrorIs(t, d.Claim(context.Background(), snapshotID, account, big.NewInt(-1)), settlement.ErrInvalidAmount)
	})
}
