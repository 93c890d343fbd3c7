package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// txn is the working state of one engine operation: staged persistence and
// journaled ledger effects.
type txn struct {
	engine  *Engine
	now     time.Time
	journal *journal
	changes ChangeSet
}

// IsNonceUsed also sees nonces staged by this operation.
func (t *txn) IsNonceUsed(ctx context.Context, requester common.Address, nonce *big.Int) (bool, error) {
	for _, used := range t.changes.Nonces {
		if used.Requester == requester && used.Nonce.Cmp(nonce) == 0 {
			return true, nil
		}
	}
	return t.engine.store.IsNonceUsed(ctx, requester, nonce)
}

// verify authenticates order and stages its nonce before any other effect.
func (t *txn) verify(ctx context.Context, caller common.Address, order Order, signature []byte) error {
	if _, err := t.engine.verifier.Verify(ctx, caller, order, signature, t); err != nil {
		return err
	}
	t.changes.Nonces = append(t.changes.Nonces, UsedNonce{
		Requester: order.Requester,
		Nonce:     new(big.Int).Set(order.Nonce),
		OrderType: order.OrderType,
		UsedAt:    t.now,
	})
	return nil
}

func (t *txn) window(ctx context.Context, kind LimitKind) (RateLimitWindow, error) {
	if staged, ok := t.changes.Windows[kind]; ok {
		return staged, nil
	}
	cfg := t.engine.cfg.MintLimit
	if kind == LimitRedeem {
		cfg = t.engine.cfg.RedeemLimit
	}
	window := newWindow(kind, cfg)
	stored, ok, err := t.engine.store.GetRateLimitWindow(ctx, kind)
	if err != nil {
		return RateLimitWindow{}, fmt.Errorf("failed to read %s limit: %w", kind, err)
	}
	if ok {
		window.StartTime = stored.StartTime
		window.Accumulated = new(big.Int).Set(stored.Accumulated)
	}
	return window, nil
}

func (t *txn) consumeLimit(ctx context.Context, kind LimitKind, amount *big.Int) error {
	window, err := t.window(ctx, kind)
	if err != nil {
		return err
	}
	if window.Disabled() {
		return nil
	}
	next, err := window.Apply(t.now, amount)
	if err != nil {
		return err
	}
	t.changes.Windows[kind] = next
	return nil
}

// custody returns a copy of the asset's custody account as this operation
// sees it.
func (t *txn) custody(ctx context.Context, asset common.Address) (CustodyAccount, error) {
	state, ok := t.changes.Custody[asset]
	if ok {
		state = state.clone()
	} else {
		stored, found, err := t.engine.store.GetCustodyState(ctx, asset)
		if err != nil {
			return CustodyAccount{}, fmt.Errorf("failed to read custody of %s: %w", asset.Hex(), err)
		}
		state = newCustodyState(asset)
		if found {
			state = stored.clone()
		}
	}
	held, err := t.engine.ledger.BalanceOf(ctx, asset, t.engine.cfg.CoreAddress)
	if err != nil {
		return CustodyAccount{}, fmt.Errorf("failed to read core balance of %s: %w", asset.Hex(), err)
	}
	return CustodyAccount{CustodyState: state, Held: held}, nil
}

func (t *txn) stageCustody(state CustodyState) {
	t.changes.Custody[state.Asset] = state
}

func (t *txn) releaseReservation(ctx context.Context, order Order) error {
	account, err := t.custody(ctx, order.CollateralAsset)
	if err != nil {
		return err
	}
	state := account.CustodyState
	state.Reserved.Sub(state.Reserved, order.CollateralAmount)
	if state.Reserved.Sign() < 0 {
		state.Reserved.SetInt64(0)
	}
	t.stageCustody(state)
	return nil
}

// pull moves amount of token from owner into the core.
func (t *txn) pull(ctx context.Context, token, owner common.Address, amount *big.Int) error {
	balance, err := t.engine.ledger.BalanceOf(ctx, token, owner)
	if err != nil {
		return fmt.Errorf("failed to read balance of %s: %w", owner.Hex(), err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrNotEnoughFunds, owner.Hex(), balance, token.Hex(), amount)
	}
	if err := t.journal.transferFrom(ctx, token, owner, t.engine.cfg.CoreAddress, amount); err != nil {
		return fmt.Errorf("failed to pull %s from %s: %w", token.Hex(), owner.Hex(), err)
	}
	return nil
}

func (t *txn) pendingRequest(ctx context.Context, id string) (RedeemRequest, error) {
	request, err := t.engine.store.GetRedeemRequest(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return RedeemRequest{}, fmt.Errorf("%w: %s not found", ErrInvalidRedeemRequest, id)
	}
	if err != nil {
		return RedeemRequest{}, fmt.Errorf("failed to read redeem request: %w", err)
	}
	if request.Status != RedeemPending {
		return RedeemRequest{}, fmt.Errorf("%w: %s is %s", ErrInvalidRedeemRequest, id, request.Status)
	}
	return request, nil
}

func (t *txn) stageRequest(request RedeemRequest, from RedeemStatus) {
	t.changes.RequestUpdates = append(t.changes.RequestUpdates, RequestUpdate{Request: request, From: from})
}

// refund returns the escrowed yUSD to the requester and closes the request
// with status.
func (t *txn) refund(ctx context.Context, request RedeemRequest, status RedeemStatus, by common.Address, reason string) (RedeemRequest, error) {
	cfg := t.engine.cfg
	if err := t.journal.transfer(ctx, cfg.YusdToken, cfg.CoreAddress, request.Requester, request.Order.YusdAmount); err != nil {
		return RedeemRequest{}, fmt.Errorf("failed to refund yusd: %w", err)
	}
	if err := t.releaseReservation(ctx, request.Order); err != nil {
		return RedeemRequest{}, err
	}
	closed, err := request.transition(status, by, t.now)
	if err != nil {
		return RedeemRequest{}, err
	}
	closed.Reason = reason
	t.stageRequest(closed, request.Status)
	return closed, nil
}
