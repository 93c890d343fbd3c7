package oracle

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
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const StablecoinFeed = "yusd"

// PushOracle serves the yUSD price last pushed by an allowed operator.
type PushOracle struct {
	pushers map[common.Address]bool
	clock   func() time.Time
}

var _ settlement.PushOracle = &PushOracle{}

func (o *PushOracle) LatestStablecoinPrice(_ context.Context) (*big.Int, bool, error) {
	var stored models.OraclePrice
	err := app.DB.FindOne(models.CollectionOraclePrices, bson.M{"feed": StablecoinFeed}, &stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	price, ok := new(big.Int).SetString(stored.Price, 10)
	if !ok {
		return nil, false, fmt.Errorf("%w: stored price %q", settlement.ErrInvalidPrice, stored.Price)
	}
	return price, true, nil
}

// Push records price, an 18-decimal USD value of one yUSD.
func (o *PushOracle) Push(pusher common.Address, price *big.Int) error {
	if !o.pushers[pusher] {
		return fmt.Errorf("%w: %s may not push prices", settlement.ErrUnauthorized, pusher.Hex())
	}
	if price == nil || price.Sign() <= 0 {
		return settlement.ErrInvalidPrice
	}

	update := bson.M{"$set": bson.M{
		"price":      price.String(),
		"updated_by": store.Address(pusher),
		"updated_at": o.clock(),
	}}
	if _, err := app.DB.UpsertOne(models.CollectionOraclePrices, bson.M{"feed": StablecoinFeed}, update); err != nil {
		log.Error("[ORACLE] Error storing price: ", err)
		return err
	}

	log.Info("[ORACLE] Price ", price, " pushed by ", pusher.Hex())
	return nil
}

func NewPushOracle(pushers []common.Address) *PushOracle {
	allowed := make(map[common.Address]bool, len(pushers))
	for _, pusher := range pushers {
		allowed[pusher] = true
	}
	return &PushOracle{
		pushers: allowed,
		clock:   time.Now,
	}
}
