package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	yusdDecimals = 18
	bpsDenom     = 10000
)

var wad = pow10(yusdDecimals)

// PriceData is one reading of a heartbeat price feed.
type PriceData struct {
	Price     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceFeed reports the USD price of a collateral asset.
type PriceFeed interface {
	LatestPrice(ctx context.Context, feed common.Address) (PriceData, error)
}

// PushOracle reports the USD price of yUSD with 18 decimals. ok is false when
// no price has been published, in which case the source is skipped.
type PushOracle interface {
	LatestStablecoinPrice(ctx context.Context) (price *big.Int, ok bool, err error)
}

// Asset is a whitelisted collateral asset.
type Asset struct {
	Address   common.Address
	Symbol    string
	Decimals  uint8
	Feed      common.Address
	Heartbeat time.Duration
}

func (a Asset) hasFeed() bool {
	return a.Feed != (common.Address{})
}

type quote struct {
	asset      Asset
	collateral *big.Int
	yusd       *big.Int
}

// priceSource converts between collateral and yUSD. ok is false when the
// source has nothing to say about the asset.
type priceSource interface {
	name() string
	toYusd(ctx context.Context, q quote) (amount *big.Int, ok bool, err error)
	toCollateral(ctx context.Context, q quote) (amount *big.Int, ok bool, err error)
}

// PriceResolver folds every configured source with min so that the user
// always receives the least favourable amount.
type PriceResolver struct {
	sources []priceSource
}

func NewPriceResolver(feed PriceFeed, oracle PushOracle, clock func() time.Time) *PriceResolver {
	feedSrc := &feedSource{feed: feed, clock: clock}
	sources := []priceSource{faceValueSource{}, feedSrc}
	if oracle != nil {
		sources = append(sources, &oracleSource{oracle: oracle, feed: feedSrc})
	}
	return &PriceResolver{sources: sources}
}

// YusdFor returns the yUSD amount collateral is worth, capped by the declared
// yusd amount.
func (r *PriceResolver) YusdFor(ctx context.Context, asset Asset, collateral, declaredYusd *big.Int) (*big.Int, error) {
	return r.fold(ctx, quote{asset: asset, collateral: collateral, yusd: declaredYusd}, priceSource.toYusd)
}

// CollateralFor returns the collateral amount yusd is worth, capped by the
// declared collateral amount.
func (r *PriceResolver) CollateralFor(ctx context.Context, asset Asset, yusd, declaredCollateral *big.Int) (*big.Int, error) {
	return r.fold(ctx, quote{asset: asset, collateral: declaredCollateral, yusd: yusd}, priceSource.toCollateral)
}

func (r *PriceResolver) fold(ctx context.Context, q quote, convert func(priceSource, context.Context, quote) (*big.Int, bool, error)) (*big.Int, error) {
	var result *big.Int
	for _, src := range r.sources {
		amount, ok, err := convert(src, ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s price source: %w", src.name(), err)
		}
		if !ok {
			continue
		}
		if result == nil || amount.Cmp(result) < 0 {
			result = amount
		}
	}
	if result == nil {
		return nil, ErrInvalidPrice
	}
	return result, nil
}

type faceValueSource struct{}

func (faceValueSource) name() string { return "face value" }

func (faceValueSource) toYusd(_ context.Context, q quote) (*big.Int, bool, error) {
	return new(big.Int).Set(q.yusd), true, nil
}

func (faceValueSource) toCollateral(_ context.Context, q quote) (*big.Int, bool, error) {
	return new(big.Int).Set(q.collateral), true, nil
}

type feedSource struct {
	feed  PriceFeed
	clock func() time.Time
}

func (s *feedSource) name() string { return "feed" }

func (s *feedSource) read(ctx context.Context, asset Asset) (PriceData, bool, error) {
	if s.feed == nil || !asset.hasFeed() {
		return PriceData{}, false, nil
	}
	data, err := s.feed.LatestPrice(ctx, asset.Feed)
	if err != nil {
		return PriceData{}, false, err
	}
	if data.Price == nil || data.Price.Sign() <= 0 {
		return PriceData{}, false, ErrInvalidPrice
	}
	if asset.Heartbeat > 0 && s.clock().Sub(data.UpdatedAt) > asset.Heartbeat {
		return PriceData{}, false, ErrStalePrice
	}
	return data, true, nil
}

// usdValue is the 18-decimal USD value of collateral.
func (s *feedSource) usdValue(ctx context.Context, asset Asset, collateral *big.Int) (*big.Int, bool, error) {
	data, ok, err := s.read(ctx, asset)
	if err != nil || !ok {
		return nil, ok, err
	}
	value := new(big.Int).Mul(normalize(collateral, asset.Decimals), data.Price)
	return value.Quo(value, pow10(data.Decimals)), true, nil
}

// collateralFor is the collateral worth usd, in asset units.
func (s *feedSource) collateralFor(ctx context.Context, asset Asset, usd *big.Int) (*big.Int, bool, error) {
	data, ok, err := s.read(ctx, asset)
	if err != nil || !ok {
		return nil, ok, err
	}
	amount := new(big.Int).Mul(usd, pow10(data.Decimals))
	amount.Quo(amount, data.Price)
	return denormalize(amount, asset.Decimals), true, nil
}

func (s *feedSource) toYusd(ctx context.Context, q quote) (*big.Int, bool, error) {
	return s.usdValue(ctx, q.asset, q.collateral)
}

func (s *feedSource) toCollateral(ctx context.Context, q quote) (*big.Int, bool, error) {
	return s.collateralFor(ctx, q.asset, q.yusd)
}

type oracleSource struct {
	oracle PushOracle
	feed   *feedSource
}

func (s *oracleSource) name() string { return "oracle" }

func (s *oracleSource) price(ctx context.Context) (*big.Int, bool, error) {
	price, ok, err := s.oracle.LatestStablecoinPrice(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, false, ErrInvalidPrice
	}
	return price, true, nil
}

func (s *oracleSource) toYusd(ctx context.Context, q quote) (*big.Int, bool, error) {
	yusdPrice, ok, err := s.price(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	usd, hasFeed, err := s.feed.usdValue(ctx, q.asset, q.collateral)
	if err != nil {
		return nil, false, err
	}
	if !hasFeed {
		usd = normalize(q.collateral, q.asset.Decimals)
	}
	amount := new(big.Int).Mul(usd, wad)
	return amount.Quo(amount, yusdPrice), true, nil
}

func (s *oracleSource) toCollateral(ctx context.Context, q quote) (*big.Int, bool, error) {
	yusdPrice, ok, err := s.price(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	usd := new(big.Int).Mul(q.yusd, yusdPrice)
	usd.Quo(usd, wad)
	amount, hasFeed, err := s.feed.collateralFor(ctx, q.asset, usd)
	if err != nil {
		return nil, false, err
	}
	if !hasFeed {
		amount = denormalize(usd, q.asset.Decimals)
	}
	return amount, true, nil
}

// splitFee returns gross·(10000−bp)/10000 and the remainder. Truncation
// favours the fee side.
func splitFee(gross *big.Int, bp uint64) (net *big.Int, fee *big.Int) {
	if bp == 0 {
		return new(big.Int).Set(gross), new(big.Int)
	}
	if bp > bpsDenom {
		bp = bpsDenom
	}
	net = new(big.Int).Mul(gross, big.NewInt(int64(bpsDenom-bp)))
	net.Quo(net, big.NewInt(bpsDenom))
	fee = new(big.Int).Sub(gross, net)
	return net, fee
}

// normalize scales amount from decimals to 18 decimals.
func normalize(amount *big.Int, decimals uint8) *big.Int {
	switch {
	case decimals < yusdDecimals:
		return new(big.Int).Mul(amount, pow10(yusdDecimals-decimals))
	case decimals > yusdDecimals:
		return new(big.Int).Quo(amount, pow10(decimals-yusdDecimals))
	default:
		return new(big.Int).Set(amount)
	}
}

// denormalize scales an 18-decimal amount to decimals, truncating.
func denormalize(amount *big.Int, decimals uint8) *big.Int {
	switch {
	case decimals < yusdDecimals:
		return new(big.Int).Quo(amount, pow10(yusdDecimals-decimals))
	case decimals > yusdDecimals:
		return new(big.Int).Mul(amount, pow10(decimals-yusdDecimals))
	default:
		return new(big.Int).Set(amount)
	}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
