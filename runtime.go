package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dan13ram/yusd-settlement/api"
	"github.com/dan13ram/yusd-settlement/app"
	eth "github.com/dan13ram/yusd-settlement/eth/client"
	"github.com/dan13ram/yusd-settlement/ledger"
	"github.com/dan13ram/yusd-settlement/oracle"
	"github.com/dan13ram/yusd-settlement/rewards"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/signer"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

var ErrDevLedger = errors.New("in-memory ledger requires settlement.dev_ledger")

// newLedger sends token movements on chain when ethereum is enabled. The
// in-memory ledger starts empty and is only allowed for local runs.
func newLedger(core common.Address) (settlement.TokenLedger, error) {
	if !app.Config.Ethereum.Enabled {
		if !app.Config.Settlement.DevLedger {
			return nil, ErrDevLedger
		}
		log.Warn("[RUNTIME] Using the in-memory dev ledger, balances are not persisted")
		return ledger.NewMemory(core), nil
	}

	s, err := app.CreateEthereumSigner()
	if err != nil {
		return nil, fmt.Errorf("error initializing ethereum signer: %w", err)
	}
	if s.Address() != core {
		return nil, fmt.Errorf("ethereum signer %s is not the core address %s", s.Address().Hex(), core.Hex())
	}
	chainID, err := app.ChainID()
	if err != nil {
		return nil, err
	}

	backend := eth.Client.GetBackend()
	binder := func(token common.Address) ledger.TokenContract {
		return eth.NewTokenContract(token, backend, backend)
	}
	timeout := time.Duration(app.Config.Ethereum.TxTimeoutMillis) * time.Millisecond
	log.Info("[RUNTIME] Sending token transactions from ", s.Address().Hex())
	return ledger.NewERC20(backend, signer.TransactOpts(s, chainID), binder, timeout), nil
}

// Runtime holds the collaborators the services share.
type Runtime struct {
	Engine  *settlement.Engine
	Store   *store.Mongo
	Ledger  settlement.TokenLedger
	Oracle  *oracle.PushOracle
	Rewards *rewards.Distributor
}

func NewRuntime() (*Runtime, error) {
	cfg, err := app.SettlementConfig()
	if err != nil {
		return nil, fmt.Errorf("settlement config: %w", err)
	}

	tokens, err := newLedger(cfg.CoreAddress)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		Store:  store.NewMongo(),
		Ledger: tokens,
	}
	deps := settlement.Dependencies{
		Ledger: r.Ledger,
		Store:  r.Store,
		Locker: app.DB,
	}

	if app.Config.Ethereum.Enabled {
		deps.ChainID = eth.Client.ChainID
		deps.Feed = oracle.NewChainlinkFeed(eth.Client.GetCaller())
		log.Info("[RUNTIME] Reading chain id and price feeds from the ethereum node")
	} else {
		chainID, err := app.ChainID()
		if err != nil {
			return nil, err
		}
		deps.ChainID = settlement.StaticChainID(chainID)
		log.Warn("[RUNTIME] Ethereum disabled, assets with a price feed cannot be priced")
	}

	if app.Config.PushOracle.Enabled {
		var pushers []common.Address
		for _, pusher := range app.Config.PushOracle.Pushers {
			pushers = append(pushers, common.HexToAddress(pusher))
		}
		r.Oracle = oracle.NewPushOracle(pushers)
		deps.Oracle = r.Oracle
	}

	if cfg.RewardsDestination != (common.Address{}) {
		r.Rewards = rewards.NewDistributor(r.Ledger, cfg.YusdToken, cfg.RewardsDestination)
		deps.Rewards = r.Rewards
	}

	r.Engine, err = settlement.NewEngine(cfg, deps)
	if err != nil {
		return nil, err
	}
	log.Info("[RUNTIME] Settlement engine initialized for core ", cfg.CoreAddress.Hex())
	return r, nil
}

func (r *Runtime) APIOptions() api.Options {
	opts := api.Options{
		Engine:   r.Engine,
		Requests: r.Store,
	}
	if r.Oracle != nil {
		opts.Oracle = r.Oracle
	}
	if r.Rewards != nil {
		opts.Rewards = r.Rewards
	}
	return opts
}
