package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dan13ram/yusd-settlement/eth/client"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// ChainlinkFeed reads AggregatorV3 price feeds.
type ChainlinkFeed struct {
	binder func(feed common.Address) client.AggregatorContract

	mu        sync.Mutex
	contracts map[common.Address]client.AggregatorContract
	decimals  map[common.Address]uint8
}

var _ settlement.PriceFeed = &ChainlinkFeed{}

func (f *ChainlinkFeed) contract(feed common.Address) client.AggregatorContract {
	f.mu.Lock()
	defer f.mu.Unlock()
	contract, ok := f.contracts[feed]
	if !ok {
		contract = f.binder(feed)
		f.contracts[feed] = contract
	}
	return contract
}

func (f *ChainlinkFeed) feedDecimals(opts *bind.CallOpts, feed common.Address, contract client.AggregatorContract) (uint8, error) {
	f.mu.Lock()
	decimals, ok := f.decimals[feed]
	f.mu.Unlock()
	if ok {
		return decimals, nil
	}

	decimals, err := contract.Decimals(opts)
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.decimals[feed] = decimals
	f.mu.Unlock()
	return decimals, nil
}

func (f *ChainlinkFeed) LatestPrice(ctx context.Context, feed common.Address) (settlement.PriceData, error) {
	contract := f.contract(feed)
	opts := &bind.CallOpts{Context: ctx}

	decimals, err := f.feedDecimals(opts, feed, contract)
	if err != nil {
		log.Error("[FEED] Error reading decimals of ", feed.Hex(), ": ", err)
		return settlement.PriceData{}, fmt.Errorf("feed %s decimals: %w", feed.Hex(), err)
	}

	round, err := contract.LatestRoundData(opts)
	if err != nil {
		log.Error("[FEED] Error reading round of ", feed.Hex(), ": ", err)
		return settlement.PriceData{}, fmt.Errorf("feed %s round: %w", feed.Hex(), err)
	}

	if round.AnsweredInRound != nil && round.RoundId != nil && round.AnsweredInRound.Cmp(round.RoundId) < 0 {
		return settlement.PriceData{}, fmt.Errorf("%w: feed %s answered in round %s of %s", settlement.ErrStalePrice, feed.Hex(), round.AnsweredInRound, round.RoundId)
	}
	if round.UpdatedAt == nil || !round.UpdatedAt.IsInt64() || round.UpdatedAt.Sign() == 0 {
		return settlement.PriceData{}, fmt.Errorf("%w: feed %s has no update time", settlement.ErrStalePrice, feed.Hex())
	}

	log.Debug("[FEED] Read ", feed.Hex(), " price ", round.Answer, " with ", decimals, " decimals")
	return settlement.PriceData{
		Price:     round.Answer,
		Decimals:  decimals,
		UpdatedAt: time.Unix(round.UpdatedAt.Int64(), 0),
	}, nil
}

// NewChainlinkFeed reads feeds through caller.
func NewChainlinkFeed(caller bind.ContractCaller) *ChainlinkFeed {
	return newChainlinkFeed(func(feed common.Address) client.AggregatorContract {
		return client.NewAggregatorContract(feed, caller)
	})
}

func newChainlinkFeed(binder func(feed common.Address) client.AggregatorContract) *ChainlinkFeed {
	return &ChainlinkFeed{
		binder:    binder,
		contracts: make(map[common.Address]client.AggregatorContract),
		decimals:  make(map[common.Address]uint8),
	}
}
