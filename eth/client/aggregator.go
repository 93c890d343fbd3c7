package client

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const aggregatorABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

// RoundData is the answer of an AggregatorV3 latestRoundData call.
type RoundData struct {
	RoundId         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

type AggregatorContract interface {
	Decimals(opts *bind.CallOpts) (uint8, error)
	LatestRoundData(opts *bind.CallOpts) (RoundData, error)
}

type aggregatorContract struct {
	contract *bind.BoundContract
}

var parsedAggregatorABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func (x *aggregatorContract) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := x.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("decimals returned %d values", len(out))
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (x *aggregatorContract) LatestRoundData(opts *bind.CallOpts) (RoundData, error) {
	var out []interface{}
	if err := x.contract.Call(opts, &out, "latestRoundData"); err != nil {
		return RoundData{}, err
	}
	if len(out) != 5 {
		return RoundData{}, fmt.Errorf("latestRoundData returned %d values", len(out))
	}
	return RoundData{
		RoundId:         *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Answer:          *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		StartedAt:       *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		UpdatedAt:       *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		AnsweredInRound: *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
	}, nil
}

// NewAggregatorContract binds a read-only AggregatorV3 at address.
func NewAggregatorContract(address common.Address, caller bind.ContractCaller) AggregatorContract {
	return &aggregatorContract{
		contract: bind.NewBoundContract(address, parsedAggregatorABI, caller, nil, nil),
	}
}
