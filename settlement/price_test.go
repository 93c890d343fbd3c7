package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceResolver(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	ctx := context.Background()

	newFeed := func(price string) *stubFeed {
		feed := &stubFeed{prices: make(map[common.Address]PriceData)}
		feed.set(usdcFeed, price, 8, now)
		return feed
	}

	t.Run("Face Value Caps Feed", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("1.02"), nil, clock)

		amount, err := resolver.YusdFor(ctx, usdcAsset, usdc("100"), yusd("100"))
		require.NoError(t, err)
		assertAmount(t, yusd("100"), amount)

		collateral, err := resolver.CollateralFor(ctx, usdcAsset, yusd("100"), usdc("100"))
		require.NoError(t, err)
		assertAmount(t, usdc("98.039215"), collateral)
	})

	t.Run("Feed Below Par", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("0.995"), nil, clock)

		amount, err := resolver.YusdFor(ctx, usdcAsset, usdc("100"), yusd("100"))
		require.NoError(t, err)
		assertAmount(t, yusd("99.5"), amount)

		collateral, err := resolver.CollateralFor(ctx, usdcAsset, yusd("100"), usdc("100"))
		require.NoError(t, err)
		assertAmount(t, usdc("100"), collateral)
	})

	t.Run("Oracle", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("1"), &stubOracle{price: yusd("2")}, clock)

		amount, err := resolver.YusdFor(ctx, usdcAsset, usdc("100"), yusd("100"))
		require.NoError(t, err)
		assertAmount(t, yusd("50"), amount)

		resolver = NewPriceResolver(newFeed("1"), &stubOracle{price: yusd("0.5")}, clock)
		collateral, err := resolver.CollateralFor(ctx, usdcAsset, yusd("100"), usdc("100"))
		require.NoError(t, err)
		assertAmount(t, usdc("50"), collateral)
	})

	t.Run("Oracle Without Published Price", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("1"), &stubOracle{}, clock)

		amount, err := resolver.YusdFor(ctx, usdcAsset, usdc("10"), yusd("10"))
		require.NoError(t, err)
		assertAmount(t, yusd("10"), amount)
	})

	t.Run("Oracle Error", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("1"), &stubOracle{err: errors.New("mongo down")}, clock)

		_, err := resolver.YusdFor(ctx, usdcAsset, usdc("10"), yusd("10"))
		assert.Error(t, err)
		assert.False(t, isPriceFailure(err))
	})

	t.Run("Asset Without Feed", func(t *testing.T) {
		resolver := NewPriceResolver(nil, nil, clock)
		asset := usdcAsset
		asset.Feed = common.Address{}

		amount, err := resolver.YusdFor(ctx, asset, usdc("10"), yusd("9"))
		require.NoError(t, err)
		assertAmount(t, yusd("9"), amount)
	})

	t.Run("Stale", func(t *testing.T) {
		feed := &stubFeed{prices: make(map[common.Address]PriceData)}
		feed.set(usdcFeed, "1", 8, now.Add(-time.Hour-time.Second))
		resolver := NewPriceResolver(feed, nil, clock)

		_, err := resolver.YusdFor(ctx, usdcAsset, usdc("10"), yusd("10"))
		assert.ErrorIs(t, err, ErrStalePrice)
		assert.True(t, isPriceFailure(err))
	})

	t.Run("Non Positive", func(t *testing.T) {
		resolver := NewPriceResolver(newFeed("0"), nil, clock)

		_, err := resolver.CollateralFor(ctx, usdcAsset, yusd("10"), usdc("10"))
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("Eighteen Decimal Collateral", func(t *testing.T) {
		feed := &stubFeed{prices: make(map[common.Address]PriceData)}
		feed.set(usdcFeed, "1", 18, now)
		asset := Asset{Address: usdcAddress, Decimals: 18, Feed: usdcFeed, Heartbeat: time.Hour}
		resolver := NewPriceResolver(feed, nil, clock)

		amount, err := resolver.YusdFor(ctx, asset, yusd("3"), yusd("3"))
		require.NoError(t, err)
		assertAmount(t, yusd("3"), amount)
	})
}

func TestSplitFee(t *testing.T) {
	net, fee := splitFee(big.NewInt(10_000), 0)
	assertAmount(t, big.NewInt(10_000), net)
	assertAmount(t, big.NewInt(0), fee)

	net, fee = splitFee(big.NewInt(10_000), 25)
	assertAmount(t, big.NewInt(9_975), net)
	assertAmount(t, big.NewInt(25), fee)

	net, fee = splitFee(big.NewInt(999), 10)
	assertAmount(t, big.NewInt(998), net)
	assertAmount(t, big.NewInt(1), fee)

	net, fee = splitFee(big.NewInt(500), 20_000)
	assertAmount(t, big.NewInt(0), net)
	assertAmount(t, big.NewInt(500), fee)
}

func TestNormalize(t *testing.T) {
	assertAmount(t, yusd("1"), normalize(usdc("1"), 6))
	assertAmount(t, usdc("1"), denormalize(yusd("1"), 6))
	assertAmount(t, big.NewInt(1), normalize(big.NewInt(1_000), 21))
	assertAmount(t, big.NewInt(1_000), denormalize(big.NewInt(1), 21))
	assertAmount(t, big.NewInt(0), denormalize(big.NewInt(999_999_999_999), 6))
}
