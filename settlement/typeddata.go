package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const orderPrimaryType = "Order"

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	orderPrimaryType: []apitypes.Type{
		{Name: "orderType", Type: "uint8"},
		{Name: "requester", Type: "address"},
		{Name: "delegate", Type: "address"},
		{Name: "collateralAsset", Type: "address"},
		{Name: "collateralAmount", Type: "uint256"},
		{Name: "yusdAmount", Type: "uint256"},
		{Name: "slippageAdjustedAmount", Type: "uint256"},
		{Name: "expiry", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "additionalData", Type: "bytes"},
	},
}

// Domain is the EIP-712 signing domain without its chain id, which is read
// from the network at signing time.
type Domain struct {
	Name              string
	Version           string
	VerifyingContract common.Address
}

// ChainIDSource reports the chain id the domain separator is bound to.
type ChainIDSource func(ctx context.Context) (*big.Int, error)

// StaticChainID returns a source that always reports id.
func StaticChainID(id *big.Int) ChainIDSource {
	return func(context.Context) (*big.Int, error) {
		return new(big.Int).Set(id), nil
	}
}

func (d Domain) typedData(chainID *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: orderPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
	}
}

func orderMessage(order Order) apitypes.TypedDataMessage {
	additionalData := make([]byte, len(order.AdditionalData))
	copy(additionalData, order.AdditionalData)

	return apitypes.TypedDataMessage{
		"orderType":              fmt.Sprintf("%d", order.OrderType),
		"requester":              order.Requester.Hex(),
		"delegate":               order.Delegate.Hex(),
		"collateralAsset":        order.CollateralAsset.Hex(),
		"collateralAmount":       amountString(order.CollateralAmount),
		"yusdAmount":             amountString(order.YusdAmount),
		"slippageAdjustedAmount": amountString(order.SlippageAdjustedAmount),
		"expiry":                 fmt.Sprintf("%d", order.Expiry),
		"nonce":                  amountString(order.Nonce),
		"additionalData":         additionalData,
	}
}

func amountString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

// HashOrder returns the EIP-712 digest of order under domain and chainID.
func HashOrder(domain Domain, chainID *big.Int, order Order) ([]byte, error) {
	data := domain.typedData(chainID)
	separator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	return hashWithSeparator(data, separator, order)
}

func hashWithSeparator(data apitypes.TypedData, separator []byte, order Order) ([]byte, error) {
	orderHash, err := data.HashStruct(orderPrimaryType, orderMessage(order))
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(separator), string(orderHash)))
	return crypto.Keccak256(rawData), nil
}

// orderHasher caches the domain separator and recomputes it only when the
// chain id source reports a different id.
type orderHasher struct {
	domain  Domain
	chainID ChainIDSource

	mu        sync.Mutex
	cachedID  *big.Int
	data      apitypes.TypedData
	separator []byte
}

func newOrderHasher(domain Domain, chainID ChainIDSource) *orderHasher {
	return &orderHasher{domain: domain, chainID: chainID}
}

func (h *orderHasher) digest(ctx context.Context, order Order) ([]byte, error) {
	chainID, err := h.chainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	h.mu.Lock()
	if h.cachedID == nil || h.cachedID.Cmp(chainID) != 0 {
		data := h.domain.typedData(chainID)
		separator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
		if err != nil {
			h.mu.Unlock()
			return nil, fmt.Errorf("failed to hash domain: %w", err)
		}
		h.cachedID = chainID
		h.data = data
		h.separator = separator
	}
	data, separator := h.data, h.separator
	h.mu.Unlock()

	return hashWithSeparator(data, separator, order)
}
