package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
)

var ErrTransactionReverted = errors.New("transaction reverted")

// TokenContract is the slice of an ERC-20 binding the ledger sends through.
type TokenContract interface {
	BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error)
	Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
	TransferFrom(opts *bind.TransactOpts, from, to common.Address, amount *big.Int) (*types.Transaction, error)
	Mint(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
	Burn(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	BurnFrom(opts *bind.TransactOpts, account common.Address, amount *big.Int) (*types.Transaction, error)
}

// ERC20 moves tokens on chain from the operator account. The operator is
// the spender of every TransferFrom and must hold the minter role on the
// yUSD token.
type ERC20 struct {
	operator common.Address
	opts     *bind.TransactOpts
	binder   func(token common.Address) TokenContract
	wait     func(ctx context.Context, tx *types.Transaction) error
	timeout  time.Duration

	sendMu    sync.Mutex
	mu        sync.Mutex
	contracts map[common.Address]TokenContract
}

func newERC20(opts *bind.TransactOpts, binder func(common.Address) TokenContract, wait func(context.Context, *types.Transaction) error) *ERC20 {
	return &ERC20{
		operator:  opts.From,
		opts:      opts,
		binder:    binder,
		wait:      wait,
		contracts: make(map[common.Address]TokenContract),
	}
}

// NewERC20 sends transactions signed by opts through the contracts binder
// returns and waits on backend for each to be mined. A send that is not
// mined within timeout fails.
func NewERC20(backend bind.DeployBackend, opts *bind.TransactOpts, binder func(token common.Address) TokenContract, timeout time.Duration) *ERC20 {
	wait := func(ctx context.Context, tx *types.Transaction) error {
		receipt, err := bind.WaitMined(ctx, backend, tx)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return fmt.Errorf("%w: %s", ErrTransactionReverted, tx.Hash().Hex())
		}
		return nil
	}
	l := newERC20(opts, binder, wait)
	l.timeout = timeout
	return l
}

func (l *ERC20) contract(token common.Address) TokenContract {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contracts[token]
	if !ok {
		c = l.binder(token)
		l.contracts[token] = c
	}
	return c
}

func (l *ERC20) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *l.opts
	opts.Context = ctx
	return &opts
}

// send submits a transaction and waits for its receipt. Sends are
// serialized so the pending nonce is read after the previous one is mined.
func (l *ERC20) send(ctx context.Context, action string, submit func(opts *bind.TransactOpts) (*types.Transaction, error)) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := submit(l.transactOpts(ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	log.Debug("[LEDGER] Sent ", action, " in ", tx.Hash().Hex())
	if err := l.wait(ctx, tx); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l *ERC20) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return l.contract(token).BalanceOf(&bind.CallOpts{Context: ctx}, account)
}

// Transfer moves the operator's own tokens directly. Any other sender must
// have approved the operator.
func (l *ERC20) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	c := l.contract(token)
	if from == l.operator {
		return l.send(ctx, "transfer", func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.Transfer(opts, to, amount)
		})
	}
	return l.TransferFrom(ctx, token, from, to, amount)
}

func (l *ERC20) TransferFrom(ctx context.Context, token, owner, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	c := l.contract(token)
	return l.send(ctx, "transferFrom", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.TransferFrom(opts, owner, to, amount)
	})
}

// ReturnFrom sends the tokens back to owner. An ERC-20 spender cannot raise
// its own allowance, so the owner has to approve again before retrying.
func (l *ERC20) ReturnFrom(ctx context.Context, token, owner, holder common.Address, amount *big.Int) error {
	return l.Transfer(ctx, token, holder, owner, amount)
}

func (l *ERC20) Mint(ctx context.Context, token, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	c := l.contract(token)
	return l.send(ctx, "mint", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.Mint(opts, to, amount)
	})
}

func (l *ERC20) Burn(ctx context.Context, token, from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	c := l.contract(token)
	if from == l.operator {
		return l.send(ctx, "burn", func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.Burn(opts, amount)
		})
	}
	return l.send(ctx, "burnFrom", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.BurnFrom(opts, from, amount)
	})
}
