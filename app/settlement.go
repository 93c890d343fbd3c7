package app

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const yusdDecimals = 18

func addresses(values []string) []common.Address {
	var result []common.Address
	for _, value := range values {
		result = append(result, common.HexToAddress(value))
	}
	return result
}

func optionalAddress(value string) common.Address {
	if strings.TrimSpace(value) == "" {
		return common.Address{}
	}
	return common.HexToAddress(value)
}

// ParseAmount scales a human decimal amount to base units.
func ParseAmount(value string, decimals uint8) (*big.Int, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	return scaled.BigInt(), nil
}

func limitConfig(cfg models.RateLimitConfig) (settlement.LimitConfig, error) {
	if cfg.PeriodMillis <= 0 {
		return settlement.LimitConfig{}, nil
	}
	amount, err := ParseAmount(cfg.MaxAmount, yusdDecimals)
	if err != nil {
		return settlement.LimitConfig{}, err
	}
	return settlement.LimitConfig{
		Period:    time.Duration(cfg.PeriodMillis) * time.Millisecond,
		MaxAmount: amount,
	}, nil
}

// ChainID parses the configured chain id.
func ChainID() (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(Config.Ethereum.ChainID), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", Config.Ethereum.ChainID)
	}
	return id, nil
}

// SettlementConfig converts the loaded config into engine parameters.
func SettlementConfig() (settlement.Config, error) {
	s := Config.Settlement

	mintLimit, err := limitConfig(Config.MintLimit)
	if err != nil {
		return settlement.Config{}, fmt.Errorf("mint limit: %w", err)
	}
	redeemLimit, err := limitConfig(Config.RedeemLimit)
	if err != nil {
		return settlement.Config{}, fmt.Errorf("redeem limit: %w", err)
	}

	var assets []settlement.Asset
	for _, asset := range Config.Assets {
		assets = append(assets, settlement.Asset{
			Address:   common.HexToAddress(asset.Address),
			Symbol:    asset.Symbol,
			Decimals:  asset.Decimals,
			Feed:      optionalAddress(asset.FeedAddress),
			Heartbeat: time.Duration(asset.HeartbeatMillis) * time.Millisecond,
		})
	}

	// orders are signed against the core unless another contract is named
	verifyingContract := optionalAddress(s.VerifyingContract)
	if verifyingContract == (common.Address{}) {
		verifyingContract = common.HexToAddress(s.CoreAddress)
	}

	return settlement.Config{
		Domain: settlement.Domain{
			Name:              s.DomainName,
			Version:           s.DomainVersion,
			VerifyingContract: verifyingContract,
		},
		CoreAddress:        common.HexToAddress(s.CoreAddress),
		YusdToken:          common.HexToAddress(s.YusdToken),
		TrustedSigners:     addresses(s.TrustedSigners),
		Delegates:          addresses(s.Delegates),
		FundsManagers:      addresses(s.FundsManagers),
		CollateralManagers: addresses(s.CollateralManagers),
		Custodians:         addresses(s.Custodians),
		Assets:             assets,
		MintLimit:          mintLimit,
		RedeemLimit:        redeemLimit,
		MintFeeBP:          s.MintFeeBP,
		RedeemFeeBP:        s.RedeemFeeBP,
		IncomeFeeBP:        s.IncomeFeeBP,
		FeeDestination:     optionalAddress(s.FeeDestination),
		RewardsDestination: optionalAddress(s.RewardsDestination),
	}, nil
}
