package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/yozoon/internal/curve"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.001", 1_000_000, false},
		{" 2.5 ", 2_500_000_000, false},
		{"0.000000001", 1, false},
		{"18446744073.709551615", 18446744073709551615, false},
		{"0", 0, false},
		{"0.0000000001", 0, true},
		{"18446744073.709551616", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1", formatAmount(1_000_000_000))
	assert.Equal(t, "0.001", formatAmount(1_000_000))
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "18446744073.709551615", formatAmount(^uint64(0)))
	assert.Equal(t, "1.5 SOL", formatSol(1_500_000_000))
	assert.Equal(t, "1%", formatBps(100))
	assert.Equal(t, "0.25%", formatBps(25))
}

func TestParsePricePoint(t *testing.T) {
	p, err := parsePricePoint("1000000:0.002")
	require.NoError(t, err)
	assert.Equal(t, curve.PricePoint{Supply: 1_000_000 * curve.Precision, PricePerToken: 2_000_000}, p)

	for _, bad := range []string{"1000", "x:1", "1:x"} {
		_, err := parsePricePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseBps(t *testing.T) {
	v, err := parseBps("250")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), v)

	_, err = parseBps("10001")
	assert.Error(t, err)
	_, err = parseBps("-1")
	assert.Error(t, err)
}
