package curve

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lamportsPerSol = uint64(1_000_000_000)
	wholeToken     = Precision
)

// 0.001 SOL per token up to 1M tokens, 0.002 SOL afterwards.
func twoStepTable(t *testing.T) Table {
	t.Helper()
	table, err := NewTable([]PricePoint{
		{Supply: 0, PricePerToken: 1_000_000},
		{Supply: 1_000_000 * wholeToken, PricePerToken: 2_000_000},
	}, 0)
	require.NoError(t, err)
	return table
}

func multiStepTable(t *testing.T) Table {
	t.Helper()
	table, err := NewTable([]PricePoint{
		{Supply: 0, PricePerToken: 1_000},
		{Supply: 10 * wholeToken, PricePerToken: 1_500},
		{Supply: 25 * wholeToken, PricePerToken: 4_000},
		{Supply: 40 * wholeToken, PricePerToken: 4_000},
		{Supply: 100 * wholeToken, PricePerToken: 9_999},
	}, 0)
	require.NoError(t, err)
	return table
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		points  []PricePoint
		max     int
		wantErr bool
	}{
		{
			name:   "two ascending points",
			points: []PricePoint{{0, 10}, {100, 20}},
		},
		{
			name:    "single point",
			points:  []PricePoint{{0, 10}},
			wantErr: true,
		},
		{
			name:    "equal thresholds",
			points:  []PricePoint{{0, 10}, {0, 20}},
			wantErr: true,
		},
		{
			name:    "descending thresholds",
			points:  []PricePoint{{100, 10}, {50, 20}},
			wantErr: true,
		},
		{
			name:    "zero price",
			points:  []PricePoint{{0, 0}, {100, 20}},
			wantErr: true,
		},
		{
			name:    "decreasing price",
			points:  []PricePoint{{0, 30}, {100, 20}},
			wantErr: true,
		},
		{
			name:    "too many points",
			points:  []PricePoint{{0, 1}, {1, 2}, {2, 3}},
			max:     2,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(tt.points, tt.max)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPricePoints)
				assert.Nil(t, table)
				return
			}
			require.NoError(t, err)
			assert.Len(t, table, len(tt.points))
		})
	}
}

func TestNewTableCopiesInput(t *testing.T) {
	points := []PricePoint{{0, 10}, {100, 20}}
	table, err := NewTable(points, 0)
	require.NoError(t, err)

	points[0].PricePerToken = 99
	assert.Equal(t, uint64(10), table[0].PricePerToken)
}

func TestPriceAtSupply(t *testing.T) {
	table, err := NewTable([]PricePoint{{100, 10}, {200, 20}, {300, 30}}, 0)
	require.NoError(t, err)

	tests := []struct {
		supply uint64
		want   uint64
	}{
		{0, 10},
		{99, 10},
		{100, 10},
		{199, 10},
		{200, 20},
		{299, 20},
		{300, 30},
		{1 << 62, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceAtSupply(table, tt.supply), "supply %d", tt.supply)
	}
}

func TestPriceAtSupplyNonDecreasing(t *testing.T) {
	table := multiStepTable(t)
	rng := rand.New(rand.NewSource(7))

	prev := uint64(0)
	supply := uint64(0)
	for i := 0; i < 2000; i++ {
		supply += uint64(rng.Int63n(int64(wholeToken)))
		price := PriceAtSupply(table, supply)
		assert.GreaterOrEqual(t, price, prev)
		prev = price
	}
}

func TestTokensForSolSegmentSplit(t *testing.T) {
	table := twoStepTable(t)

	toThreshold, err := SolCostForTokens(table, 0, 1_000_000*wholeToken)
	require.NoError(t, err)
	assert.Equal(t, 1_000*lamportsPerSol, toThreshold)

	extra := uint64(500_000) // 0.0005 SOL
	q, err := TokensForSol(table, 0, toThreshold+extra, 0)
	require.NoError(t, err)

	// 1,000,000 tokens + 0.0005 / 0.002 = 1,000,000.25 tokens
	assert.Equal(t, 1_000_000*wholeToken+250_000_000, q.Tokens)
	assert.Equal(t, toThreshold+extra, q.SolConsumed)
	assert.Equal(t, uint64(1_000_000), q.StartPrice)
	assert.Equal(t, uint64(2_000_000), q.EndPrice)

	naiveLow := (toThreshold + extra) * (wholeToken / 1_000_000)
	assert.NotEqual(t, naiveLow, q.Tokens)
}

func TestTokensForSolSpanIsBetweenSinglePriceBounds(t *testing.T) {
	table := twoStepTable(t)
	start := 999_000 * wholeToken
	sol := 10 * lamportsPerSol // crosses the threshold at 1M tokens

	q, err := TokensForSol(table, start, sol, 0)
	require.NoError(t, err)
	require.Greater(t, start+q.Tokens, 1_000_000*wholeToken)

	allAtHigh := sol * wholeToken / 2_000_000
	allAtLow := sol * wholeToken / 1_000_000
	assert.Greater(t, q.Tokens, allAtHigh)
	assert.Less(t, q.Tokens, allAtLow)
}

func TestTokensForSolWithinSegment(t *testing.T) {
	table := twoStepTable(t)

	q, err := TokensForSol(table, 0, lamportsPerSol, 0)
	require.NoError(t, err)
	assert.Equal(t, 1_000*wholeToken, q.Tokens)
	assert.Equal(t, lamportsPerSol, q.SolConsumed)
}

func TestTokensForSolDust(t *testing.T) {
	table, err := NewTable([]PricePoint{{0, 3 * Precision}, {wholeToken, 4 * Precision}}, 0)
	require.NoError(t, err)

	// one atomic unit costs 3 lamports
	q, err := TokensForSol(table, 0, 2, 0)
	require.NoError(t, err)
	assert.Zero(t, q.Tokens)
	assert.Zero(t, q.SolConsumed)
}

func TestTokensForSolMaxSupply(t *testing.T) {
	table := twoStepTable(t)

	_, err := TokensForSol(table, 0, 1_000*lamportsPerSol, 500_000*wholeToken)
	assert.ErrorIs(t, err, ErrSupplyExceeded)

	q, err := TokensForSol(table, 0, 1_000*lamportsPerSol, 1_000_000*wholeToken)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000*wholeToken, q.Tokens)
}

func TestTokensForSolOverflow(t *testing.T) {
	table, err := NewTable([]PricePoint{{0, 1}, {10, 2}}, 0)
	require.NoError(t, err)

	_, err = TokensForSol(table, 0, ^uint64(0), 0)
	assert.True(t, errors.Is(err, ErrMathOverflow))
}

func TestSolForTokens(t *testing.T) {
	table := twoStepTable(t)
	supply := 1_000_000*wholeToken + 250_000_000

	sol, err := SolForTokens(table, supply, 250_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), sol)

	sol, err = SolForTokens(table, supply, supply)
	require.NoError(t, err)
	assert.Equal(t, 1_000*lamportsPerSol+500_000, sol)

	_, err = SolForTokens(table, supply, supply+1)
	assert.ErrorIs(t, err, ErrInsufficientSupply)

	sol, err = SolForTokens(table, supply, 0)
	require.NoError(t, err)
	assert.Zero(t, sol)
}

func TestSolForTokensBelowFirstThreshold(t *testing.T) {
	table, err := NewTable([]PricePoint{{100 * wholeToken, 2_000}, {200 * wholeToken, 4_000}}, 0)
	require.NoError(t, err)

	sol, err := SolForTokens(table, 150*wholeToken, 150*wholeToken)
	require.NoError(t, err)
	// 100 tokens at the first price below the first threshold, 50 at 2_000
	assert.Equal(t, uint64(150*2_000), sol)
}

func TestRoundTrip(t *testing.T) {
	table := multiStepTable(t)
	rng := rand.New(rand.NewSource(42))
	maxPrice := table[len(table)-1].PricePerToken
	tolerance := uint64(len(table)) + maxPrice/Precision + 1

	for i := 0; i < 500; i++ {
		start := uint64(rng.Int63n(int64(120 * wholeToken)))
		sol := uint64(rng.Int63n(int64(2*lamportsPerSol))) + 1

		q, err := TokensForSol(table, start, sol, 0)
		require.NoError(t, err)

		back, err := SolForTokens(table, start+q.Tokens, q.Tokens)
		require.NoError(t, err)

		require.LessOrEqual(t, back, sol, "start=%d sol=%d", start, sol)
		require.LessOrEqual(t, sol-back, tolerance, "start=%d sol=%d", start, sol)
	}
}

func TestSolCostForTokensMatchesTokensForSol(t *testing.T) {
	table := multiStepTable(t)

	for _, start := range []uint64{0, 5 * wholeToken, 24 * wholeToken, 99 * wholeToken} {
		cost, err := SolCostForTokens(table, start, 30*wholeToken)
		require.NoError(t, err)

		q, err := TokensForSol(table, start, cost, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q.Tokens, 30*wholeToken, "start %d", start)
	}
}
