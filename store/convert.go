package store

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Address is the stored form of an address.
func Address(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func optionalAddress(address common.Address) string {
	if address == (common.Address{}) {
		return ""
	}
	return Address(address)
}

func amount(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", settlement.ErrInvalidOrder, field)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	x, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an integer", settlement.ErrInvalidOrder, field)
	}
	return x, nil
}

// ParseAmount reads a stored base-10 amount, treating empty as zero.
func ParseAmount(value string) (*big.Int, error) {
	x, err := parseAmount("amount", value)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return new(big.Int), nil
	}
	return x, nil
}

func OrderToModel(order settlement.Order) models.Order {
	var additionalData string
	if len(order.AdditionalData) > 0 {
		additionalData = hexutil.Encode(order.AdditionalData)
	}
	return models.Order{
		OrderType:              uint8(order.OrderType),
		Requester:              Address(order.Requester),
		Delegate:               optionalAddress(order.Delegate),
		CollateralAsset:        Address(order.CollateralAsset),
		CollateralAmount:       amount(order.CollateralAmount),
		YusdAmount:             amount(order.YusdAmount),
		SlippageAdjustedAmount: amount(order.SlippageAdjustedAmount),
		Expiry:                 int64(order.Expiry),
		Nonce:                  amount(order.Nonce),
		AdditionalData:         additionalData,
	}
}

// OrderFromModel parses a wire order. Structural problems are reported as
// settlement.ErrInvalidOrder.
func OrderFromModel(m models.Order) (settlement.Order, error) {
	var err error
	order := settlement.Order{
		OrderType: settlement.OrderType(m.OrderType),
	}
	if m.Expiry < 0 {
		return order, fmt.Errorf("%w: negative expiry", settlement.ErrInvalidOrder)
	}
	order.Expiry = uint64(m.Expiry)

	if order.Requester, err = parseAddress("requester", m.Requester); err != nil {
		return order, err
	}
	if order.Delegate, err = parseAddress("delegate", m.Delegate); err != nil {
		return order, err
	}
	if order.CollateralAsset, err = parseAddress("collateral_asset", m.CollateralAsset); err != nil {
		return order, err
	}
	if order.CollateralAmount, err = parseAmount("collateral_amount", m.CollateralAmount); err != nil {
		return order, err
	}
	if order.YusdAmount, err = parseAmount("yusd_amount", m.YusdAmount); err != nil {
		return order, err
	}
	if order.SlippageAdjustedAmount, err = parseAmount("slippage_adjusted_amount", m.SlippageAdjustedAmount); err != nil {
		return order, err
	}
	if order.Nonce, err = parseAmount("nonce", m.Nonce); err != nil {
		return order, err
	}
	if m.AdditionalData != "" {
		if order.AdditionalData, err = hexutil.Decode(m.AdditionalData); err != nil {
			return order, fmt.Errorf("%w: additional_data: %v", settlement.ErrInvalidOrder, err)
		}
	}
	return order, nil
}

func RedeemRequestToModel(request settlement.RedeemRequest) models.RedeemRequest {
	return models.RedeemRequest{
		RequestId:          request.ID,
		Requester:          Address(request.Requester),
		Order:              OrderToModel(request.Order),
		Status:             string(request.Status),
		ReleasedCollateral: amount(request.ReleasedCollateral),
		SettledBy:          optionalAddress(request.SettledBy),
		Reason:             request.Reason,
		CreatedAt:          request.CreatedAt,
		UpdatedAt:          request.UpdatedAt,
	}
}

func RedeemRequestFromModel(m models.RedeemRequest) (settlement.RedeemRequest, error) {
	order, err := OrderFromModel(m.Order)
	if err != nil {
		return settlement.RedeemRequest{}, fmt.Errorf("stored request %s: %w", m.RequestId, err)
	}
	released, err := ParseAmount(m.ReleasedCollateral)
	if err != nil {
		return settlement.RedeemRequest{}, fmt.Errorf("stored request %s: %w", m.RequestId, err)
	}
	return settlement.RedeemRequest{
		ID:                 m.RequestId,
		Requester:          common.HexToAddress(m.Requester),
		Order:              order,
		Status:             settlement.RedeemStatus(m.Status),
		ReleasedCollateral: released,
		SettledBy:          common.HexToAddress(m.SettledBy),
		Reason:             m.Reason,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}
