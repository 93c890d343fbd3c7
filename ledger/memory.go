package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type balanceKey struct {
	token   common.Address
	account common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Memory is an in-process multi-token ledger. The spender of TransferFrom
// is fixed to the operator the ledger was created for.
type Memory struct {
	mu         sync.RWMutex
	operator   common.Address
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	supply     map[common.Address]*big.Int
}

func NewMemory(operator common.Address) *Memory {
	return &Memory{
		operator:   operator,
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		supply:     make(map[common.Address]*big.Int),
	}
}

func (m *Memory) BalanceOf(_ context.Context, token, account common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.balance(token, account)), nil
}

func (m *Memory) TotalSupply(token common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.supply[token]; ok {
		return new(big.Int).Set(s)
	}
	return new(big.Int)
}

func (m *Memory) Allowance(token, owner, spender common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (m *Memory) Approve(token, owner, spender common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

func (m *Memory) Transfer(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(token, from, to, amount)
}

func (m *Memory) TransferFrom(_ context.Context, token, owner, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := allowanceKey{token, owner, m.operator}
	allowance, ok := m.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowed %s to spend less than %s", ErrInsufficientAllowance, owner.Hex(), m.operator.Hex(), amount)
	}
	if err := m.move(token, owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// ReturnFrom moves amount from holder back to owner and restores the
// allowance the matching TransferFrom spent.
func (m *Memory) ReturnFrom(_ context.Context, token, owner, holder common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.move(token, holder, owner, amount); err != nil {
		return err
	}
	key := allowanceKey{token, owner, m.operator}
	allowance, ok := m.allowances[key]
	if !ok {
		allowance = new(big.Int)
		m.allowances[key] = allowance
	}
	allowance.Add(allowance, amount)
	return nil
}

func (m *Memory) Mint(_ context.Context, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setBalance(token, to, new(big.Int).Add(m.balance(token, to), amount))
	supply, ok := m.supply[token]
	if !ok {
		supply = new(big.Int)
		m.supply[token] = supply
	}
	supply.Add(supply, amount)
	return nil
}

func (m *Memory) Burn(_ context.Context, token, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balance(token, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	m.setBalance(token, from, new(big.Int).Sub(balance, amount))
	if supply, ok := m.supply[token]; ok {
		supply.Sub(supply, amount)
	}
	return nil
}

func (m *Memory) move(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance := m.balance(token, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, sending %s", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	m.setBalance(token, from, new(big.Int).Sub(balance, amount))
	m.setBalance(token, to, new(big.Int).Add(m.balance(token, to), amount))
	return nil
}

func (m *Memory) balance(token, account common.Address) *big.Int {
	if b, ok := m.balances[balanceKey{token, account}]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Memory) setBalance(token, account common.Address, amount *big.Int) {
	m.balances[balanceKey{token, account}] = amount
}
