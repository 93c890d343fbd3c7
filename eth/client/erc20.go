package client

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Mint and burn follow the OpenZeppelin ERC20Burnable and minter role
// layout used by the yUSD token.
const erc20ABI = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"from","type":"address"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"value","type":"uint256"}],"name":"burn","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"}],"name":"burnFrom","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Backend is what the token binding needs from a node: calls, signed
// transactions and receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type TokenContract interface {
	BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error)
	Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error)
	Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
	TransferFrom(opts *bind.TransactOpts, from, to common.Address, amount *big.Int) (*types.Transaction, error)
	Mint(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
	Burn(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	BurnFrom(opts *bind.TransactOpts, account common.Address, amount *big.Int) (*types.Transaction, error)
}

type tokenContract struct {
	contract *bind.BoundContract
}

var parsedERC20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func (x *tokenContract) callUint(opts *bind.CallOpts, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := x.contract.Call(opts, &out, method, params...); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (x *tokenContract) BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	return x.callUint(opts, "balanceOf", account)
}

func (x *tokenContract) Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error) {
	return x.callUint(opts, "allowance", owner, spender)
}

func (x *tokenContract) Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return x.contract.Transact(opts, "transfer", to, amount)
}

func (x *tokenContract) TransferFrom(opts *bind.TransactOpts, from, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return x.contract.Transact(opts, "transferFrom", from, to, amount)
}

func (x *tokenContract) Mint(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return x.contract.Transact(opts, "mint", to, amount)
}

func (x *tokenContract) Burn(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return x.contract.Transact(opts, "burn", amount)
}

func (x *tokenContract) BurnFrom(opts *bind.TransactOpts, account common.Address, amount *big.Int) (*types.Transaction, error) {
	return x.contract.Transact(opts, "burnFrom", account, amount)
}

// NewTokenContract binds an ERC-20 at address. transactor may be nil for
// read-only use.
func NewTokenContract(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor) TokenContract {
	return &tokenContract{
		contract: bind.NewBoundContract(address, parsedERC20ABI, caller, transactor, nil),
	}
}
