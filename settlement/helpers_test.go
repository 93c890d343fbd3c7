package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/dan13ram/yusd-settlement/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

const signerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	coreAddress       = common.HexToAddress("0x00000000000000000000000000000000000c0de0")
	yusdAddress       = common.HexToAddress("0x0000000000000000000000000000000000005d00")
	usdcAddress       = common.HexToAddress("0x000000000000000000000000000000000000c0c0")
	usdcFeed          = common.HexToAddress("0x000000000000000000000000000000000000fee0")
	requester         = common.HexToAddress("0x000000000000000000000000000000000000a1ce")
	router            = common.HexToAddress("0x0000000000000000000000000000000000000707")
	stranger          = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	fundsManager      = common.HexToAddress("0x00000000000000000000000000000000000f0f0f")
	collateralManager = common.HexToAddress("0x00000000000000000000000000000000000c0c0c")
	custodian         = common.HexToAddress("0x000000000000000000000000000000000000ca5e")
	feeAddress        = common.HexToAddress("0x0000000000000000000000000000000000000fee")
	rewardsAddress    = common.HexToAddress("0x000000000000000000000000000000000000beef")

	testDomain = Domain{
		Name:              "yUSD Core",
		Version:           "1",
		VerifyingContract: coreAddress,
	}

	usdcAsset = Asset{
		Address:   usdcAddress,
		Symbol:    "USDC",
		Decimals:  6,
		Feed:      usdcFeed,
		Heartbeat: time.Hour,
	}
)

func units(amount string, decimals int32) *big.Int {
	return decimal.RequireFromString(amount).Shift(decimals).BigInt()
}

func usdc(amount string) *big.Int { return units(amount, 6) }

func yusd(amount string) *big.Int { return units(amount, 18) }

func assertAmount(t *testing.T, expected *big.Int, actual *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, actual, msgAndArgs...)
	assert.Equal(t, expected.String(), actual.String(), msgAndArgs...)
}

type stubFeed struct {
	prices map[common.Address]PriceData
	err    error
}

func (s *stubFeed) LatestPrice(_ context.Context, feed common.Address) (PriceData, error) {
	if s.err != nil {
		return PriceData{}, s.err
	}
	data, ok := s.prices[feed]
	if !ok {
		return PriceData{}, errors.New("no round data")
	}
	return data, nil
}

func (s *stubFeed) set(feed common.Address, price string, decimals uint8, at time.Time) {
	s.prices[feed] = PriceData{Price: units(price, int32(decimals)), Decimals: decimals, UpdatedAt: at}
}

type stubOracle struct {
	price *big.Int
	err   error
}

func (s *stubOracle) LatestStablecoinPrice(context.Context) (*big.Int, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.price == nil {
		return nil, false, nil
	}
	return new(big.Int).Set(s.price), true, nil
}

type stubRewards struct {
	deposits map[[32]byte]*big.Int
	err      error
}

func (s *stubRewards) Deposit(_ context.Context, snapshotID [32]byte, amount *big.Int) error {
	if s.err != nil {
		return s.err
	}
	total, ok := s.deposits[snapshotID]
	if !ok {
		total = new(big.Int)
		s.deposits[snapshotID] = total
	}
	total.Add(total, amount)
	return nil
}

func (s *stubRewards) Revert(_ context.Context, snapshotID [32]byte, amount *big.Int) error {
	if total, ok := s.deposits[snapshotID]; ok {
		total.Sub(total, amount)
	}
	return nil
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	engine  *Engine
	ledger  *ledger.Memory
	store   *MemoryStore
	feed    *stubFeed
	oracle  *stubOracle
	rewards *stubRewards
	key     *ecdsa.PrivateKey
	now     time.Time
	nonce   int64
}

func newFixture(t *testing.T, configure ...func(*Config)) *fixture {
	t.Helper()

	key, err := crypto.HexToECDSA(signerKeyHex)
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		ledger:  ledger.NewMemory(coreAddress),
		store:   NewMemoryStore(),
		feed:    &stubFeed{prices: make(map[common.Address]PriceData)},
		oracle:  &stubOracle{},
		rewards: &stubRewards{deposits: make(map[[32]byte]*big.Int)},
		key:     key,
		now:     time.Unix(1_700_000_000, 0),
	}
	f.feed.set(usdcFeed, "1", 8, f.now)

	cfg := Config{
		Domain:             testDomain,
		CoreAddress:        coreAddress,
		YusdToken:          yusdAddress,
		TrustedSigners:     []common.Address{crypto.PubkeyToAddress(key.PublicKey)},
		Delegates:          []common.Address{router, fundsManager},
		FundsManagers:      []common.Address{fundsManager},
		CollateralManagers: []common.Address{collateralManager},
		Custodians:         []common.Address{custodian},
		Assets:             []Asset{usdcAsset},
		RewardsDestination: rewardsAddress,
	}
	for _, c := range configure {
		c(&cfg)
	}

	engine, err := NewEngine(cfg, Dependencies{
		Ledger:  f.ledger,
		Store:   f.store,
		ChainID: StaticChainID(big.NewInt(1)),
		Feed:    f.feed,
		Oracle:  f.oracle,
		Rewards: f.rewards,
	})
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return f.now })
	f.engine = engine
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// fund mints amount of token to account and lets the core spend it.
func (f *fixture) fund(token, account common.Address, amount *big.Int) {
	require.NoError(f.t, f.ledger.Mint(f.ctx, token, account, amount))
	f.ledger.Approve(token, account, coreAddress, new(big.Int).Lsh(big.NewInt(1), 200))
}

func (f *fixture) balance(token, account common.Address) *big.Int {
	balance, err := f.ledger.BalanceOf(f.ctx, token, account)
	require.NoError(f.t, err)
	return balance
}

func (f *fixture) order(orderType OrderType, collateral, yusdAmount, minimum *big.Int) Order {
	f.nonce++
	return Order{
		OrderType:              orderType,
		Requester:              requester,
		CollateralAsset:        usdcAddress,
		CollateralAmount:       collateral,
		YusdAmount:             yusdAmount,
		SlippageAdjustedAmount: minimum,
		Expiry:                 uint64(f.now.Add(time.Hour).Unix()),
		Nonce:                  big.NewInt(f.nonce),
	}
}

func (f *fixture) sign(order Order) []byte {
	return signWith(f.t, f.key, big.NewInt(1), order)
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, order Order) []byte {
	t.Helper()
	digest, err := HashOrder(testDomain, chainID, order)
	require.NoError(t, err)
	signature, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	signature[64] += 27
	return signature
}

// mint runs a mint order for requester, funding the collateral first.
func (f *fixture) mint(collateral, yusdAmount *big.Int) MintResult {
	f.fund(usdcAddress, requester, collateral)
	order := f.order(OrderTypeMint, collateral, yusdAmount, yusdAmount)
	result, err := f.engine.Mint(f.ctx, requester, order, f.sign(order))
	require.NoError(f.t, err)
	return result
}

func (f *fixture) requestRedeem(collateral, yusdAmount, minimum *big.Int) RedeemRequest {
	f.ledger.Approve(yusdAddress, requester, coreAddress, new(big.Int).Lsh(big.NewInt(1), 200))
	order := f.order(OrderTypeRedeem, collateral, yusdAmount, minimum)
	request, err := f.engine.RequestRedeem(f.ctx, requester, order, f.sign(order))
	require.NoError(f.t, err)
	return request
}
