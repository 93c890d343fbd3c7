package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// journal applies ledger effects and remembers how to undo them.
type journal struct {
	ledger TokenLedger
	undo   []func(ctx context.Context) error
}

func newJournal(ledger TokenLedger) *journal {
	return &journal{ledger: ledger}
}

func (j *journal) record(undo func(ctx context.Context) error) {
	j.undo = append(j.undo, undo)
}

func (j *journal) transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.Transfer(ctx, token, from, to, amount); err != nil {
		return err
	}
	j.record(func(ctx context.Context) error {
		return j.ledger.Transfer(ctx, token, to, from, amount)
	})
	return nil
}

func (j *journal) transferFrom(ctx context.Context, token, owner, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.TransferFrom(ctx, token, owner, to, amount); err != nil {
		return err
	}
	j.record(func(ctx context.Context) error {
		return j.ledger.ReturnFrom(ctx, token, owner, to, amount)
	})
	return nil
}

func (j *journal) mint(ctx context.Context, token, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.Mint(ctx, token, to, amount); err != nil {
		return err
	}
	j.record(func(ctx context.Context) error {
		return j.ledger.Burn(ctx, token, to, amount)
	})
	return nil
}

func (j *journal) burn(ctx context.Context, token, from common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := j.ledger.Burn(ctx, token, from, amount); err != nil {
		return err
	}
	j.record(func(ctx context.Context) error {
		return j.ledger.Mint(ctx, token, from, amount)
	})
	return nil
}

// rollback undoes every recorded effect, newest first. Failures are logged
// and the remaining effects are still undone.
func (j *journal) rollback(ctx context.Context) {
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](ctx); err != nil {
			log.Error("[ENGINE] Error rolling back ledger effect: ", err)
		}
	}
	j.undo = nil
}
