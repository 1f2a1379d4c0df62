// =============================
// File: internal/curve/table.go
// =============================
package curve

import (
	"errors"
	"fmt"
	"sort"
)

// Precision is the number of atomic token units in one whole token.
// Prices are quoted in lamports per whole token.
const Precision uint64 = 1_000_000_000

// DefaultMaxPricePoints bounds the table size accepted by NewTable.
const DefaultMaxPricePoints = 100

var (
	ErrInvalidPricePoints = errors.New("invalid price points")
	ErrMathOverflow       = errors.New("math overflow")
	ErrInsufficientSupply = errors.New("insufficient sold supply")
	ErrSupplyExceeded     = errors.New("max supply exceeded")
)

// PricePoint is one step of the price function: from Supply (atomic units sold)
// onward every token costs PricePerToken lamports.
type PricePoint struct {
	Supply        uint64 `json:"supply"`
	PricePerToken uint64 `json:"pricePerToken"`
}

// Table is an ordered, validated set of price points.
type Table []PricePoint

// NewTable validates points and returns them as a Table. Thresholds must be
// strictly ascending, prices positive and non-decreasing.
func NewTable(points []PricePoint, maxPoints int) (Table, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPricePoints
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidPricePoints, len(points))
	}
	if len(points) > maxPoints {
		return nil, fmt.Errorf("%w: %d points exceeds limit %d", ErrInvalidPricePoints, len(points), maxPoints)
	}
	for i, p := range points {
		if p.PricePerToken == 0 {
			return nil, fmt.Errorf("%w: zero price at index %d", ErrInvalidPricePoints, i)
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		if p.Supply <= prev.Supply {
			return nil, fmt.Errorf("%w: threshold %d at index %d is not above %d",
				ErrInvalidPricePoints, p.Supply, i, prev.Supply)
		}
		if p.PricePerToken < prev.PricePerToken {
			return nil, fmt.Errorf("%w: price decreases at index %d", ErrInvalidPricePoints, i)
		}
	}

	t := make(Table, len(points))
	copy(t, points)
	return t, nil
}

// index returns the position of the last threshold <= supply, or 0 when
// supply sits below the first threshold.
func (t Table) index(supply uint64) int {
	// first threshold strictly above supply
	i := sort.Search(len(t), func(i int) bool { return t[i].Supply > supply })
	if i == 0 {
		return 0
	}
	return i - 1
}

// nextThreshold returns the first threshold strictly above supply.
func (t Table) nextThreshold(supply uint64) (uint64, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Supply > supply })
	if i == len(t) {
		return 0, false
	}
	return t[i].Supply, true
}

// lowerBound returns the start of the segment that contains supply-1, i.e. the
// segment a seller walks back through. Below the first threshold it is zero.
func (t Table) lowerBound(supply uint64) uint64 {
	if supply == 0 {
		return 0
	}
	i := sort.Search(len(t), func(i int) bool { return t[i].Supply > supply-1 })
	if i == 0 {
		return 0
	}
	return t[i-1].Supply
}

// Clone returns a copy that shares no memory with t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}
