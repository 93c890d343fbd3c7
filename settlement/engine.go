package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	LockResource = "settlement"

	lockRetryInterval = 25 * time.Millisecond
	lockWait          = 5 * time.Second
)

// rejection reasons reported by ApproveRedeemRequest
const (
	ReasonExpired          = "order expired"
	ReasonInvalidAmount    = "invalid collateral amount"
	ReasonPriceUnavailable = "price unavailable"
	ReasonSlippage         = "price slippage"
	ReasonManual           = "rejected by funds manager"
	ReasonWithdrawn        = "withdrawn after expiry"
)

type Config struct {
	Domain             Domain
	CoreAddress        common.Address
	YusdToken          common.Address
	TrustedSigners     []common.Address
	Delegates          []common.Address
	FundsManagers      []common.Address
	CollateralManagers []common.Address
	Custodians         []common.Address
	Assets             []Asset
	MintLimit          LimitConfig
	RedeemLimit        LimitConfig
	MintFeeBP          uint64
	RedeemFeeBP        uint64
	IncomeFeeBP        uint64
	FeeDestination     common.Address
	RewardsDestination common.Address
}

// Dependencies are the collaborators an engine is built on. Feed, Oracle,
// Rewards and Locker are optional.
type Dependencies struct {
	Ledger  TokenLedger
	Store   Store
	ChainID ChainIDSource
	Feed    PriceFeed
	Oracle  PushOracle
	Rewards RewardsSink
	Locker  Locker
}

type MintResult struct {
	Minted *big.Int
	Fee    *big.Int
}

type IncomeResult struct {
	Amount  *big.Int
	Rewards *big.Int
	Fee     *big.Int
}

// Engine executes settlement operations one at a time. Each operation either
// completes or leaves ledger and store exactly as it found them.
type Engine struct {
	mu sync.Mutex

	cfg                Config
	assets             map[common.Address]Asset
	fundsManagers      map[common.Address]bool
	collateralManagers map[common.Address]bool
	custodians         map[common.Address]bool

	verifier *Verifier
	prices   *PriceResolver
	ledger   TokenLedger
	store    Store
	rewards  RewardsSink
	locker   Locker

	clock   func() time.Time
	tracer  trace.Tracer
	metrics *engineMetrics
}

func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.CoreAddress == (common.Address{}) {
		return nil, errors.New("core address is required")
	}
	if cfg.YusdToken == (common.Address{}) {
		return nil, errors.New("yusd token is required")
	}
	if deps.Ledger == nil || deps.Store == nil || deps.ChainID == nil {
		return nil, errors.New("ledger, store and chain id source are required")
	}
	for _, bp := range []uint64{cfg.MintFeeBP, cfg.RedeemFeeBP, cfg.IncomeFeeBP} {
		if bp > bpsDenom {
			return nil, fmt.Errorf("fee of %d bps exceeds %d", bp, bpsDenom)
		}
	}

	e := &Engine{
		cfg:                cfg,
		assets:             make(map[common.Address]Asset, len(cfg.Assets)),
		fundsManagers:      toSet(cfg.FundsManagers),
		collateralManagers: toSet(cfg.CollateralManagers),
		custodians:         toSet(cfg.Custodians),
		ledger:             deps.Ledger,
		store:              deps.Store,
		rewards:            deps.Rewards,
		locker:             deps.Locker,
		clock:              time.Now,
		tracer:             otel.Tracer("yusd/settlement"),
		metrics:            Metrics(),
	}
	for _, asset := range cfg.Assets {
		if asset.Address == (common.Address{}) {
			return nil, ErrInvalidAssetAddress
		}
		e.assets[asset.Address] = asset
	}

	now := func() time.Time { return e.clock() }
	e.verifier = NewVerifier(cfg.Domain, deps.ChainID, cfg.TrustedSigners, cfg.Delegates)
	e.verifier.clock = now
	e.prices = NewPriceResolver(deps.Feed, deps.Oracle, now)

	return e, nil
}

// SetClock replaces the time source. Used by tests.
func (e *Engine) SetClock(clock func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Asset(address common.Address) (Asset, error) {
	asset, ok := e.assets[address]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s is not whitelisted", ErrInvalidAssetAddress, address.Hex())
	}
	return asset, nil
}

func (e *Engine) IsFundsManager(account common.Address) bool {
	return e.fundsManagers[account]
}

func (e *Engine) IsCollateralManager(account common.Address) bool {
	return e.collateralManagers[account]
}

// Mint pulls the order's collateral into the core and mints the
// conservatively priced yUSD, less the mint fee, to the requester.
func (e *Engine) Mint(ctx context.Context, caller common.Address, order Order, signature []byte) (MintResult, error) {
	var result MintResult
	err := e.run(ctx, "mint", orderAttributes(order), func(ctx context.Context, tx *txn) error {
		if order.OrderType != OrderTypeMint {
			return fmt.Errorf("%w: expected mint order, got %s", ErrInvalidOrder, order.OrderType)
		}
		asset, err := e.Asset(order.CollateralAsset)
		if err != nil {
			return err
		}
		if err := tx.verify(ctx, caller, order, signature); err != nil {
			return err
		}

		gross, err := e.prices.YusdFor(ctx, asset, order.CollateralAmount, order.YusdAmount)
		if err != nil {
			return err
		}
		if gross.Cmp(order.SlippageAdjustedAmount) < 0 {
			return fmt.Errorf("%w: resolved %s yUSD, minimum %s", ErrPriceSlippage, gross, order.SlippageAdjustedAmount)
		}
		if err := tx.consumeLimit(ctx, LimitMint, gross); err != nil {
			return err
		}

		if err := tx.pull(ctx, asset.Address, order.Requester, order.CollateralAmount); err != nil {
			return err
		}
		net, fee := e.fee(gross, e.cfg.MintFeeBP)
		if err := tx.journal.mint(ctx, e.cfg.YusdToken, order.Requester, net); err != nil {
			return fmt.Errorf("failed to mint yusd: %w", err)
		}
		if err := tx.journal.mint(ctx, e.cfg.YusdToken, e.cfg.FeeDestination, fee); err != nil {
			return fmt.Errorf("failed to mint fee: %w", err)
		}

		result = MintResult{Minted: net, Fee: fee}
		log.Debugf("[ENGINE] Minted %s yUSD to %s with fee %s", net, order.Requester.Hex(), fee)
		return nil
	})
	return result, err
}

// RequestRedeem escrows the order's yUSD in the core, reserves the declared
// collateral and opens a pending redeem request.
func (e *Engine) RequestRedeem(ctx context.Context, caller common.Address, order Order, signature []byte) (RedeemRequest, error) {
	var request RedeemRequest
	err := e.run(ctx, "request_redeem", orderAttributes(order), func(ctx context.Context, tx *txn) error {
		if order.OrderType != OrderTypeRedeem {
			return fmt.Errorf("%w: expected redeem order, got %s", ErrInvalidOrder, order.OrderType)
		}
		asset, err := e.Asset(order.CollateralAsset)
		if err != nil {
			return err
		}
		if err := tx.verify(ctx, caller, order, signature); err != nil {
			return err
		}
		if order.CollateralAmount.Cmp(order.SlippageAdjustedAmount) < 0 {
			return fmt.Errorf("%w: collateral %s below minimum %s", ErrPriceSlippage, order.CollateralAmount, order.SlippageAdjustedAmount)
		}

		id := RedeemRequestID(order)
		_, err = e.store.GetRedeemRequest(ctx, id)
		if err == nil {
			return fmt.Errorf("%w: %s already exists", ErrInvalidRedeemRequest, id)
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to read redeem request: %w", err)
		}

		if err := tx.consumeLimit(ctx, LimitRedeem, order.YusdAmount); err != nil {
			return err
		}
		account, err := tx.custody(ctx, asset.Address)
		if err != nil {
			return err
		}
		state := account.CustodyState
		state.Reserved.Add(state.Reserved, order.CollateralAmount)
		tx.stageCustody(state)

		if err := tx.pull(ctx, e.cfg.YusdToken, order.Requester, order.YusdAmount); err != nil {
			return err
		}

		request = RedeemRequest{
			ID:                 id,
			Requester:          order.Requester,
			Order:              order,
			Status:             RedeemPending,
			ReleasedCollateral: new(big.Int),
			CreatedAt:          tx.now,
			UpdatedAt:          tx.now,
		}
		tx.changes.NewRequests = append(tx.changes.NewRequests, request)
		log.Debugf("[ENGINE] Created redeem request %s for %s", id, order.Requester.Hex())
		return nil
	})
	return request, err
}

// ApproveRedeemRequest settles a pending request. When the order expired,
// the amount is out of range or the price no longer covers the slippage
// floor, the request is rejected with a full refund and no error.
func (e *Engine) ApproveRedeemRequest(ctx context.Context, caller common.Address, id string, collateralAmount *big.Int) (RedeemOutcome, error) {
	var outcome RedeemOutcome
	err := e.run(ctx, "approve_redeem", []attribute.KeyValue{attribute.String("redeem.id", id)}, func(ctx context.Context, tx *txn) error {
		if !e.fundsManagers[caller] {
			return ErrUnauthorized
		}
		request, err := tx.pendingRequest(ctx, id)
		if err != nil {
			return err
		}
		asset, err := e.Asset(request.Order.CollateralAsset)
		if err != nil {
			return err
		}

		release, reason, err := e.releaseAmount(ctx, tx.now, asset, request.Order, collateralAmount)
		if err != nil {
			return err
		}
		if reason != "" {
			rejected, err := tx.refund(ctx, request, RedeemRejected, caller, reason)
			if err != nil {
				return err
			}
			outcome = RedeemOutcome{Request: rejected, Rejected: true, Reason: reason}
			e.metrics.ObserveRejection(reason)
			log.Infof("[ENGINE] Rejected redeem request %s: %s", id, reason)
			return nil
		}

		held, err := e.ledger.BalanceOf(ctx, asset.Address, e.cfg.CoreAddress)
		if err != nil {
			return fmt.Errorf("failed to read core balance: %w", err)
		}
		if held.Cmp(release) < 0 {
			return fmt.Errorf("%w: need %s %s, core holds %s", ErrInsufficientContractBalance, release, asset.Symbol, held)
		}

		burn, fee := e.fee(request.Order.YusdAmount, e.cfg.RedeemFeeBP)
		if err := tx.journal.transfer(ctx, e.cfg.YusdToken, e.cfg.CoreAddress, e.cfg.FeeDestination, fee); err != nil {
			return fmt.Errorf("failed to pay redeem fee: %w", err)
		}
		if err := tx.journal.burn(ctx, e.cfg.YusdToken, e.cfg.CoreAddress, burn); err != nil {
			return fmt.Errorf("failed to burn yusd: %w", err)
		}
		if err := tx.journal.transfer(ctx, asset.Address, e.cfg.CoreAddress, request.Requester, release); err != nil {
			return fmt.Errorf("failed to release collateral: %w", err)
		}
		if err := tx.releaseReservation(ctx, request.Order); err != nil {
			return err
		}

		approved, err := request.transition(RedeemApproved, caller, tx.now)
		if err != nil {
			return err
		}
		approved.ReleasedCollateral = release
		tx.stageRequest(approved, RedeemPending)

		outcome = RedeemOutcome{Request: approved}
		log.Infof("[ENGINE] Approved redeem request %s releasing %s %s", id, release, asset.Symbol)
		return nil
	})
	return outcome, err
}

// RejectRedeemRequest refunds a pending request.
func (e *Engine) RejectRedeemRequest(ctx context.Context, caller common.Address, id string) (RedeemRequest, error) {
	var request RedeemRequest
	err := e.run(ctx, "reject_redeem", []attribute.KeyValue{attribute.String("redeem.id", id)}, func(ctx context.Context, tx *txn) error {
		if !e.fundsManagers[caller] {
			return ErrUnauthorized
		}
		pending, err := tx.pendingRequest(ctx, id)
		if err != nil {
			return err
		}
		request, err = tx.refund(ctx, pending, RedeemRejected, caller, ReasonManual)
		return err
	})
	return request, err
}

// WithdrawRedeemRequest lets anyone refund a pending request whose order has
// expired. The refund always goes to the requester.
func (e *Engine) WithdrawRedeemRequest(ctx context.Context, caller common.Address, id string) (RedeemRequest, error) {
	var request RedeemRequest
	err := e.run(ctx, "withdraw_redeem", []attribute.KeyValue{attribute.String("redeem.id", id)}, func(ctx context.Context, tx *txn) error {
		pending, err := tx.pendingRequest(ctx, id)
		if err != nil {
			return err
		}
		if !pending.Order.Expired(tx.now) {
			return fmt.Errorf("%w: %s has not expired", ErrInvalidRedeemRequest, id)
		}
		request, err = tx.refund(ctx, pending, RedeemWithdrawn, caller, ReasonWithdrawn)
		return err
	})
	return request, err
}

// DepositIncome brings custodied income back into the core and mints it as
// rewards.
func (e *Engine) DepositIncome(ctx context.Context, caller common.Address, order Order, signature []byte) (IncomeResult, error) {
	var result IncomeResult
	err := e.run(ctx, "deposit_income", orderAttributes(order), func(ctx context.Context, tx *txn) error {
		if !e.fundsManagers[caller] {
			return ErrUnauthorized
		}
		if order.OrderType != OrderTypeDepositIncome {
			return fmt.Errorf("%w: expected deposit income order, got %s", ErrInvalidOrder, order.OrderType)
		}
		if e.cfg.RewardsDestination == (common.Address{}) {
			return fmt.Errorf("%w: no rewards destination configured", ErrInvalidOrder)
		}
		asset, err := e.Asset(order.CollateralAsset)
		if err != nil {
			return err
		}
		if err := tx.verify(ctx, caller, order, signature); err != nil {
			return err
		}

		amount, err := e.prices.YusdFor(ctx, asset, order.CollateralAmount, order.YusdAmount)
		if err != nil {
			return err
		}
		if amount.Cmp(order.SlippageAdjustedAmount) < 0 {
			return fmt.Errorf("%w: resolved %s yUSD, minimum %s", ErrPriceSlippage, amount, order.SlippageAdjustedAmount)
		}

		if err := tx.pull(ctx, asset.Address, order.Requester, order.CollateralAmount); err != nil {
			return err
		}
		rewards, fee := e.fee(amount, e.cfg.IncomeFeeBP)
		if err := tx.journal.mint(ctx, e.cfg.YusdToken, e.cfg.RewardsDestination, rewards); err != nil {
			return fmt.Errorf("failed to mint rewards: %w", err)
		}
		if err := tx.journal.mint(ctx, e.cfg.YusdToken, e.cfg.FeeDestination, fee); err != nil {
			return fmt.Errorf("failed to mint income fee: %w", err)
		}

		if snapshotID, ok := order.EmbeddedID(); ok && e.rewards != nil && rewards.Sign() > 0 {
			if err := e.rewards.Deposit(ctx, snapshotID, rewards); err != nil {
				return fmt.Errorf("failed to record rewards: %w", err)
			}
			tx.journal.record(func(ctx context.Context) error {
				return e.rewards.Revert(ctx, snapshotID, rewards)
			})
		}

		result = IncomeResult{Amount: amount, Rewards: rewards, Fee: fee}
		log.Infof("[ENGINE] Deposited income of %s yUSD, fee %s", rewards, fee)
		return nil
	})
	return result, err
}

// TransferToCustody sends available collateral to a registered custodian.
func (e *Engine) TransferToCustody(ctx context.Context, caller, custodian, asset common.Address, amount *big.Int) error {
	return e.run(ctx, "transfer_to_custody", custodyAttributes(custodian, asset), func(ctx context.Context, tx *txn) error {
		if err := e.checkCustodyTransfer(caller, custodian, asset); err != nil {
			return err
		}
		if !positive(amount) {
			return ErrInvalidAmount
		}
		account, err := tx.custody(ctx, asset)
		if err != nil {
			return err
		}
		if available := account.Available(); amount.Cmp(available) > 0 {
			return fmt.Errorf("%w: requested %s, available %s", ErrNotEnoughFunds, amount, available)
		}
		return tx.journal.transfer(ctx, asset, e.cfg.CoreAddress, custodian, amount)
	})
}

// ForceTransferToCustody sweeps the whole available balance of asset.
func (e *Engine) ForceTransferToCustody(ctx context.Context, caller, custodian, asset common.Address) (*big.Int, error) {
	var swept *big.Int
	err := e.run(ctx, "force_transfer_to_custody", custodyAttributes(custodian, asset), func(ctx context.Context, tx *txn) error {
		if err := e.checkCustodyTransfer(caller, custodian, asset); err != nil {
			return err
		}
		account, err := tx.custody(ctx, asset)
		if err != nil {
			return err
		}
		available := account.Available()
		if available.Sign() == 0 {
			return fmt.Errorf("%w: nothing available", ErrNotEnoughFunds)
		}
		swept = available
		return tx.journal.transfer(ctx, asset, e.cfg.CoreAddress, custodian, available)
	})
	return swept, err
}

// FreezeFunds excludes amount of asset from custody transfers.
func (e *Engine) FreezeFunds(ctx context.Context, caller, asset common.Address, amount *big.Int) error {
	return e.run(ctx, "freeze_funds", []attribute.KeyValue{attribute.String("asset", asset.Hex())}, func(ctx context.Context, tx *txn) error {
		account, err := e.frozenAccount(ctx, tx, caller, asset, amount)
		if err != nil {
			return err
		}
		frozen := new(big.Int).Add(account.Frozen, amount)
		if unreserved := account.Unreserved(); frozen.Cmp(unreserved) > 0 {
			return fmt.Errorf("%w: frozen %s would exceed unreserved %s", ErrNotEnoughFunds, frozen, unreserved)
		}
		state := account.CustodyState
		state.Frozen = frozen
		tx.stageCustody(state)
		return nil
	})
}

// UnfreezeFunds returns frozen funds to the available balance.
func (e *Engine) UnfreezeFunds(ctx context.Context, caller, asset common.Address, amount *big.Int) error {
	return e.run(ctx, "unfreeze_funds", []attribute.KeyValue{attribute.String("asset", asset.Hex())}, func(ctx context.Context, tx *txn) error {
		account, err := e.frozenAccount(ctx, tx, caller, asset, amount)
		if err != nil {
			return err
		}
		if amount.Cmp(account.Frozen) > 0 {
			return fmt.Errorf("%w: only %s frozen", ErrNotEnoughFunds, account.Frozen)
		}
		state := account.CustodyState
		state.Frozen = new(big.Int).Sub(account.Frozen, amount)
		tx.stageCustody(state)
		return nil
	})
}

// CustodyAvailableAssetBalance is the amount of asset that may be sent to
// custodians right now.
func (e *Engine) CustodyAvailableAssetBalance(ctx context.Context, asset common.Address) (*big.Int, error) {
	account, err := e.CustodyAccount(ctx, asset)
	if err != nil {
		return nil, err
	}
	return account.Available(), nil
}

func (e *Engine) CustodyAccount(ctx context.Context, asset common.Address) (CustodyAccount, error) {
	if _, err := e.Asset(asset); err != nil {
		return CustodyAccount{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := e.newTxn()
	return tx.custody(ctx, asset)
}

func (e *Engine) GetRedeemRequest(ctx context.Context, id string) (RedeemRequest, error) {
	return e.store.GetRedeemRequest(ctx, id)
}

func (e *Engine) MintLimit(ctx context.Context) (RateLimitWindow, error) {
	return e.limit(ctx, LimitMint)
}

func (e *Engine) RedeemLimit(ctx context.Context) (RateLimitWindow, error) {
	return e.limit(ctx, LimitRedeem)
}

func (e *Engine) limit(ctx context.Context, kind LimitKind) (RateLimitWindow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := e.newTxn()
	window, err := tx.window(ctx, kind)
	if err != nil {
		return RateLimitWindow{}, err
	}
	return window.Current(tx.now), nil
}

func (e *Engine) checkCustodyTransfer(caller, custodian, asset common.Address) error {
	if !e.collateralManagers[caller] {
		return ErrUnauthorized
	}
	if _, err := e.Asset(asset); err != nil {
		return err
	}
	if !e.custodians[custodian] {
		return fmt.Errorf("%w: %s is not a custodian", ErrInvalidCustodianAddress, custodian.Hex())
	}
	return nil
}

func (e *Engine) frozenAccount(ctx context.Context, tx *txn, caller, asset common.Address, amount *big.Int) (CustodyAccount, error) {
	if !e.fundsManagers[caller] {
		return CustodyAccount{}, ErrUnauthorized
	}
	if _, err := e.Asset(asset); err != nil {
		return CustodyAccount{}, err
	}
	if !positive(amount) {
		return CustodyAccount{}, ErrInvalidAmount
	}
	return tx.custody(ctx, asset)
}

// releaseAmount decides how much collateral an approval releases. A
// non-empty reason means the request must be rejected instead.
func (e *Engine) releaseAmount(ctx context.Context, now time.Time, asset Asset, order Order, requested *big.Int) (*big.Int, string, error) {
	if order.Expired(now) {
		return nil, ReasonExpired, nil
	}
	if !positive(requested) || requested.Cmp(order.CollateralAmount) > 0 {
		return nil, ReasonInvalidAmount, nil
	}
	resolved, err := e.prices.CollateralFor(ctx, asset, order.YusdAmount, order.CollateralAmount)
	if err != nil {
		if isPriceFailure(err) {
			log.Warn("[ENGINE] Price unavailable during approval: ", err)
			return nil, ReasonPriceUnavailable, nil
		}
		return nil, "", err
	}
	release := new(big.Int).Set(requested)
	if resolved.Cmp(release) < 0 {
		release = resolved
	}
	if release.Cmp(order.SlippageAdjustedAmount) < 0 {
		return nil, ReasonSlippage, nil
	}
	return release, "", nil
}

// fee splits gross into the part kept by the user and the fee. Without a
// fee destination nothing is charged.
func (e *Engine) fee(gross *big.Int, bp uint64) (*big.Int, *big.Int) {
	if e.cfg.FeeDestination == (common.Address{}) {
		return new(big.Int).Set(gross), new(big.Int)
	}
	return splitFee(gross, bp)
}

func (e *Engine) run(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context, tx *txn) error) error {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "settlement."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	err := e.execute(ctx, operation, fn)
	e.metrics.Observe(operation, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithField("class", ClassOf(err).String()).Debugf("[ENGINE] %s failed: %s", operation, err)
		return err
	}
	span.SetStatus(codes.Ok, operation+" committed")
	return nil
}

func (e *Engine) execute(ctx context.Context, operation string, fn func(ctx context.Context, tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.locker != nil {
		lockId, err := e.acquireLock(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.locker.Unlock(lockId); err != nil {
				log.Error("[ENGINE] Error unlocking settlement: ", err)
			}
		}()
	}

	tx := e.newTxn()
	err := fn(ctx, tx)
	if err == nil && !tx.changes.Empty() {
		err = e.store.Commit(ctx, tx.changes)
		if err != nil {
			err = fmt.Errorf("failed to commit %s: %w", operation, err)
		}
	}
	if err != nil {
		tx.journal.rollback(ctx)
		return err
	}
	return nil
}

func (e *Engine) acquireLock(ctx context.Context) (string, error) {
	deadline := time.Now().Add(lockWait)
	for {
		lockId, err := e.locker.XLock(LockResource)
		if err == nil {
			return lockId, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("failed to lock %s: %w", LockResource, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (e *Engine) newTxn() *txn {
	return &txn{
		engine:  e,
		now:     e.clock(),
		journal: newJournal(e.ledger),
		changes: ChangeSet{
			Windows: make(map[LimitKind]RateLimitWindow),
			Custody: make(map[common.Address]CustodyState),
		},
	}
}

func orderAttributes(order Order) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("order.type", order.OrderType.String()),
		attribute.String("order.requester", order.Requester.Hex()),
		attribute.String("order.nonce", amountString(order.Nonce)),
	}
}

func custodyAttributes(custodian, asset common.Address) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("custodian", custodian.Hex()),
		attribute.String("asset", asset.Hex()),
	}
}

func toSet(addresses []common.Address) map[common.Address]bool {
	set := make(map[common.Address]bool, len(addresses))
	for _, a := range addresses {
		set[a] = true
	}
	return set
}
