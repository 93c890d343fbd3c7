package settlement

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	window := newWindow(LimitMint, LimitConfig{Period: time.Minute, MaxAmount: big.NewInt(100)})

	next, err := window.Apply(start, big.NewInt(60))
	require.NoError(t, err)
	assert.Equal(t, start, next.StartTime)
	assertAmount(t, big.NewInt(60), next.Accumulated)
	assertAmount(t, big.NewInt(0), window.Accumulated)

	_, err = next.Apply(start.Add(30*time.Second), big.NewInt(41))
	assert.ErrorIs(t, err, ErrLimitReached)
	assertAmount(t, big.NewInt(60), next.Accumulated)

	next, err = next.Apply(start.Add(30*time.Second), big.NewInt(40))
	require.NoError(t, err)
	assertAmount(t, big.NewInt(100), next.Accumulated)
	assertAmount(t, big.NewInt(0), next.Remaining(start.Add(59*time.Second)))

	after := start.Add(time.Minute)
	assertAmount(t, big.NewInt(100), next.Remaining(after))
	next, err = next.Apply(after, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, after, next.StartTime)
	assertAmount(t, big.NewInt(100), next.Accumulated)
}

func TestRateLimitWindowDisabled(t *testing.T) {
	window := newWindow(LimitRedeem, LimitConfig{})
	assert.True(t, window.Disabled())
	assert.Nil(t, window.Remaining(time.Now()))

	next, err := window.Apply(time.Now(), yusd("1000000000"))
	require.NoError(t, err)
	assertAmount(t, big.NewInt(0), next.Accumulated)
}
