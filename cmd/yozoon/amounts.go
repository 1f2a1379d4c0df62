package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

// Both SOL and the token carry 9 decimals.
const decimals = 9

var maxAtomic = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// parseAmount converts a decimal amount such as "1.5" to atomic units.
func parseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", s)
	}
	atomic := d.Shift(decimals)
	if !atomic.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimals", s, decimals)
	}
	if atomic.GreaterThan(maxAtomic) {
		return 0, fmt.Errorf("amount %s is too large", s)
	}
	return atomic.BigInt().Uint64(), nil
}

// formatAmount is the inverse of parseAmount without trailing zeros.
func formatAmount(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals).String()
}

func formatSol(lamports uint64) string { return formatAmount(lamports) + " SOL" }

func formatTokens(atomic uint64) string { return formatAmount(atomic) + " YOZ" }

func formatBps(bps uint64) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

// parsePricePoint reads "supply:price", supply in tokens and price in SOL
// per token.
func parsePricePoint(s string) (curve.PricePoint, error) {
	supply, price, ok := strings.Cut(s, ":")
	if !ok {
		return curve.PricePoint{}, fmt.Errorf("price point %q: want supply:price", s)
	}
	var (
		p   curve.PricePoint
		err error
	)
	if p.Supply, err = parseAmount(supply); err != nil {
		return p, fmt.Errorf("price point %q: supply: %w", s, err)
	}
	if p.PricePerToken, err = parseAmount(price); err != nil {
		return p, fmt.Errorf("price point %q: price: %w", s, err)
	}
	return p, nil
}

func parseBps(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid basis points %q: %w", s, err)
	}
	if v > sale.BpsDenominator {
		return 0, fmt.Errorf("basis points %d exceed %d", v, sale.BpsDenominator)
	}
	return v, nil
}
