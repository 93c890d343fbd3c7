package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	requester = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	usdc      = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
)

func testOrder() settlement.Order {
	return settlement.Order{
		OrderType:              settlement.OrderTypeRedeem,
		Requester:              requester,
		CollateralAsset:        usdc,
		CollateralAmount:       big.NewInt(99_000_000),
		YusdAmount:             new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		SlippageAdjustedAmount: big.NewInt(98_000_000),
		Expiry:                 1_700_000_000,
		Nonce:                  big.NewInt(7),
		AdditionalData:         common.HexToHash("0x01").Bytes(),
	}
}

func TestOrderToModel(t *testing.T) {
	m := OrderToModel(testOrder())

	assert.Equal(t, models.Order{
		OrderType:              1,
		Requester:              "0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
		Delegate:               "",
		CollateralAsset:        "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0",
		CollateralAmount:       "99000000",
		YusdAmount:             "100000000000000000000",
		SlippageAdjustedAmount: "98000000",
		Expiry:                 1_700_000_000,
		Nonce:                  "7",
		AdditionalData:         "0x0000000000000000000000000000000000000000000000000000000000000001",
	}, m)
}

func TestOrderFromModel(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		order, err := OrderFromModel(OrderToModel(testOrder()))
		require.NoError(t, err)
		assert.Equal(t, testOrder(), order)
	})

	invalid := map[string]func(m *models.Order){
		"Bad Requester":       func(m *models.Order) { m.Requester = "alice" },
		"Bad Delegate":        func(m *models.Order) { m.Delegate = "0x12" },
		"Bad Amount":          func(m *models.Order) { m.CollateralAmount = "1.5" },
		"Bad Nonce":           func(m *models.Order) { m.Nonce = "seven" },
		"Bad Additional Data": func(m *models.Order) { m.AdditionalData = "zz" },
		"Negative Expiry":     func(m *models.Order) { m.Expiry = -1 },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			m := OrderToModel(testOrder())
			mutate(&m)
			_, err := OrderFromModel(m)
			assert.ErrorIs(t, err, settlement.ErrInvalidOrder)
		})
	}

	t.Run("Missing Amounts Stay Nil", func(t *testing.T) {
		m := OrderToModel(testOrder())
		m.YusdAmount = ""
		order, err := OrderFromModel(m)
		require.NoError(t, err)
		assert.Nil(t, order.YusdAmount)
		assert.ErrorIs(t, order.Validate(), settlement.ErrInvalidAmount)
	})
}

func TestRedeemRequestModel(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	request := settlement.RedeemRequest{
		ID:                 "0x01",
		Requester:          requester,
		Order:              testOrder(),
		Status:             settlement.RedeemApproved,
		ReleasedCollateral: big.NewInt(98_500_000),
		SettledBy:          common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
		CreatedAt:          now,
		UpdatedAt:          now.Add(time.Minute),
	}

	m := RedeemRequestToModel(request)
	assert.Equal(t, "approved", m.Status)
	assert.Equal(t, "98500000", m.ReleasedCollateral)
	assert.Equal(t, "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc", m.SettledBy)

	back, err := RedeemRequestFromModel(m)
	require.NoError(t, err)
	assert.Equal(t, request, back)
}
