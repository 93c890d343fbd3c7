package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Distributor tracks income deposited into rewards snapshots and pays
// claims out of the rewards destination.
type Distributor struct {
	ledger settlement.TokenLedger
	token  common.Address
	holder common.Address
	clock  func() time.Time
}

var _ settlement.RewardsSink = &Distributor{}

// Snapshot is the state of one rewards snapshot.
type Snapshot struct {
	ID       string
	Total    *big.Int
	Claimed  *big.Int
	Deposits int64
}

func (s Snapshot) Unclaimed() *big.Int {
	return new(big.Int).Sub(s.Total, s.Claimed)
}

func SnapshotID(id [32]byte) string {
	return hexutil.Encode(id[:])
}

func toDecimal(amount *big.Int) (primitive.Decimal128, error) {
	d, ok := primitive.ParseDecimal128FromBigInt(amount, 0)
	if !ok {
		return primitive.Decimal128{}, fmt.Errorf("%w: %s does not fit a decimal128", settlement.ErrInvalidAmount, amount)
	}
	return d, nil
}

func fromDecimal(d primitive.Decimal128) (*big.Int, error) {
	if d.IsZero() {
		return new(big.Int), nil
	}
	mantissa, exp, err := d.BigInt()
	if err != nil {
		return nil, err
	}
	if exp >= 0 {
		return mantissa.Mul(mantissa, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)), nil
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil)
	quotient, remainder := new(big.Int).QuoRem(mantissa, scale, new(big.Int))
	if remainder.Sign() != 0 {
		return nil, fmt.Errorf("fractional amount %s", d)
	}
	return quotient, nil
}

func zeroDecimal() primitive.Decimal128 {
	zero, _ := primitive.ParseDecimal128("0")
	return zero
}

func (d *Distributor) inc(snapshotID [32]byte, amount *big.Int, deposits int64) error {
	if amount == nil || amount.Sign() <= 0 {
		return settlement.ErrInvalidAmount
	}
	signed := new(big.Int).Set(amount)
	if deposits < 0 {
		signed.Neg(signed)
	}
	delta, err := toDecimal(signed)
	if err != nil {
		return err
	}

	now := d.clock()
	filter := bson.M{"snapshot_id": SnapshotID(snapshotID)}
	update := bson.M{
		"$inc":         bson.M{"total": delta, "deposits": deposits},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"snapshot_id": SnapshotID(snapshotID), "claimed": zeroDecimal(), "created_at": now},
	}
	_, err = app.DB.UpsertOne(models.CollectionRewardsSnapshots, filter, update)
	return err
}

// Deposit adds amount to the snapshot, creating it on first use. Deposits
// into one snapshot are additive.
func (d *Distributor) Deposit(_ context.Context, snapshotID [32]byte, amount *big.Int) error {
	if err := d.inc(snapshotID, amount, 1); err != nil {
		log.Error("[REWARDS] Error depositing into snapshot ", SnapshotID(snapshotID), ": ", err)
		return err
	}
	log.Info("[REWARDS] Deposited ", amount, " into snapshot ", SnapshotID(snapshotID))
	return nil
}

// Revert takes back a deposit whose order did not complete.
func (d *Distributor) Revert(_ context.Context, snapshotID [32]byte, amount *big.Int) error {
	if err := d.inc(snapshotID, amount, -1); err != nil {
		log.Error("[REWARDS] Error reverting deposit into snapshot ", SnapshotID(snapshotID), ": ", err)
		return err
	}
	log.Warn("[REWARDS] Reverted deposit of ", amount, " into snapshot ", SnapshotID(snapshotID))
	return nil
}

func findSnapshot(db models.Database, snapshotID [32]byte) (Snapshot, error) {
	var stored models.RewardsSnapshot
	err := db.FindOne(models.CollectionRewardsSnapshots, bson.M{"snapshot_id": SnapshotID(snapshotID)}, &stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, fmt.Errorf("%w: snapshot %s", settlement.ErrUnknownRewards, SnapshotID(snapshotID))
	}
	if err != nil {
		return Snapshot{}, err
	}

	total, err := fromDecimal(stored.Total)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s total: %w", stored.SnapshotId, err)
	}
	claimed, err := fromDecimal(stored.Claimed)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s claimed: %w", stored.SnapshotId, err)
	}
	return Snapshot{
		ID:       stored.SnapshotId,
		Total:    total,
		Claimed:  claimed,
		Deposits: stored.Deposits,
	}, nil
}

func (d *Distributor) Snapshot(_ context.Context, snapshotID [32]byte) (Snapshot, error) {
	return findSnapshot(app.DB, snapshotID)
}

// Claim pays amount of the snapshot to account. Each account claims a
// snapshot at most once.
func (d *Distributor) Claim(ctx context.Context, snapshotID [32]byte, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return settlement.ErrInvalidAmount
	}
	delta, err := toDecimal(amount)
	if err != nil {
		return err
	}

	paid := false
	err = app.DB.WithTransaction(func(tx models.Database) error {
		snapshot, err := findSnapshot(tx, snapshotID)
		if err != nil {
			return err
		}
		if snapshot.Unclaimed().Cmp(amount) < 0 {
			return fmt.Errorf("%w: snapshot %s has %s unclaimed", settlement.ErrNotEnoughFunds, snapshot.ID, snapshot.Unclaimed())
		}

		_, err = tx.InsertOne(models.CollectionRewardsClaims, models.RewardsClaim{
			SnapshotId: snapshot.ID,
			Account:    store.Address(account),
			Amount:     amount.String(),
			CreatedAt:  d.clock(),
		})
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s from snapshot %s", settlement.ErrAlreadyClaimed, account.Hex(), snapshot.ID)
		}
		if err != nil {
			return err
		}

		update := bson.M{"$inc": bson.M{"claimed": delta}, "$set": bson.M{"updated_at": d.clock()}}
		if _, err := tx.UpdateOne(models.CollectionRewardsSnapshots, bson.M{"snapshot_id": snapshot.ID}, update); err != nil {
			return err
		}

		if !paid {
			if err := d.ledger.Transfer(ctx, d.token, d.holder, account, amount); err != nil {
				return fmt.Errorf("failed to pay claim: %w", err)
			}
			paid = true
		}
		return nil
	})
	if err != nil {
		if paid {
			if undo := d.ledger.Transfer(ctx, d.token, account, d.holder, amount); undo != nil {
				log.Error("[REWARDS] Error reverting claim payment to ", account.Hex(), ": ", undo)
			}
		}
		log.Error("[REWARDS] Error claiming from snapshot ", SnapshotID(snapshotID), ": ", err)
		return err
	}

	log.Info("[REWARDS] ", account.Hex(), " claimed ", amount, " from snapshot ", SnapshotID(snapshotID))
	return nil
}

// NewDistributor pays claims in token held by holder.
func NewDistributor(ledger settlement.TokenLedger, token common.Address, holder common.Address) *Distributor {
	return &Distributor{
		ledger: ledger,
		token:  token,
		holder: holder,
		clock:  time.Now,
	}
}
