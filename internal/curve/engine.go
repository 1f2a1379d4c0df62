// ==============================
// File: internal/curve/engine.go
// ==============================
package curve

import (
	"fmt"

	"lukechampine.com/uint128"
)

// Quote is the result of pricing a purchase.
type Quote struct {
	Tokens      uint64 // atomic units issued
	SolConsumed uint64 // lamports attributable to the issued tokens
	StartPrice  uint64
	EndPrice    uint64
}

// PriceAtSupply returns the price of the last threshold not exceeding supply.
// Below the first threshold the first price applies.
func PriceAtSupply(t Table, supply uint64) uint64 {
	if len(t) == 0 {
		return 0
	}
	return t[t.index(supply)].PricePerToken
}

// TokensForSol integrates the price function forward from supply, spending
// sol across as many segments as it reaches. Every completed segment is
// charged its ceiling cost; the last partial segment issues the floor of what
// the remainder buys. maxSupply of zero leaves the terminal segment unbounded.
func TokensForSol(t Table, supply, sol, maxSupply uint64) (Quote, error) {
	if len(t) == 0 {
		return Quote{}, ErrInvalidPricePoints
	}

	q := Quote{StartPrice: PriceAtSupply(t, supply)}
	cursor := supply
	remaining := sol
	tokens := uint128.Zero

	for remaining > 0 {
		price := PriceAtSupply(t, cursor)
		affordable := uint128.From64(remaining).Mul64(Precision).Div64(price)

		next, bounded := t.nextThreshold(cursor)
		if bounded {
			capacity := next - cursor
			if affordable.Cmp64(capacity) >= 0 {
				cost := ceilDiv(uint128.From64(capacity).Mul64(price), Precision)
				remaining -= cost.Lo
				tokens = tokens.Add64(capacity)
				cursor = next
				continue
			}
		}

		// partial or terminal segment
		if affordable.Hi != 0 {
			return Quote{}, fmt.Errorf("%w: token output", ErrMathOverflow)
		}
		spent := ceilDiv(affordable.Mul64(price), Precision)
		tokens = tokens.Add(affordable)
		remaining -= spent.Lo
		if tokens.Hi != 0 || tokens.Lo > ^uint64(0)-supply {
			return Quote{}, fmt.Errorf("%w: sold supply", ErrMathOverflow)
		}
		cursor = supply + tokens.Lo
		break
	}

	if tokens.Hi != 0 {
		return Quote{}, fmt.Errorf("%w: token output", ErrMathOverflow)
	}
	if maxSupply > 0 && (tokens.Lo > maxSupply || supply > maxSupply-tokens.Lo) {
		return Quote{}, fmt.Errorf("%w: %d + %d > %d", ErrSupplyExceeded, supply, tokens.Lo, maxSupply)
	}

	q.Tokens = tokens.Lo
	q.SolConsumed = sol - remaining
	q.EndPrice = PriceAtSupply(t, cursor)
	return q, nil
}

// SolForTokens integrates the price function backward from supply and returns
// the floor of the lamports owed for tokens.
func SolForTokens(t Table, supply, tokens uint64) (uint64, error) {
	if len(t) == 0 {
		return 0, ErrInvalidPricePoints
	}
	if tokens > supply {
		return 0, fmt.Errorf("%w: selling %d of %d", ErrInsufficientSupply, tokens, supply)
	}

	numerator := uint128.Zero
	cursor := supply
	remaining := tokens
	for remaining > 0 {
		lower := t.lowerBound(cursor)
		chunk := cursor - lower
		if chunk > remaining {
			chunk = remaining
		}
		price := PriceAtSupply(t, cursor-1)
		numerator = numerator.Add(uint128.From64(chunk).Mul64(price))
		remaining -= chunk
		cursor -= chunk
	}

	out := numerator.Div64(Precision)
	if out.Hi != 0 {
		return 0, fmt.Errorf("%w: sol output", ErrMathOverflow)
	}
	return out.Lo, nil
}

// SolCostForTokens returns the lamports a buyer must pay to receive exactly
// tokens starting at supply, rounding each segment up.
func SolCostForTokens(t Table, supply, tokens uint64) (uint64, error) {
	if len(t) == 0 {
		return 0, ErrInvalidPricePoints
	}
	if tokens > ^uint64(0)-supply {
		return 0, fmt.Errorf("%w: sold supply", ErrMathOverflow)
	}

	total := uint128.Zero
	cursor := supply
	remaining := tokens
	for remaining > 0 {
		chunk := remaining
		if next, ok := t.nextThreshold(cursor); ok && next-cursor < chunk {
			chunk = next - cursor
		}
		price := PriceAtSupply(t, cursor)
		total = total.Add(ceilDiv(uint128.From64(chunk).Mul64(price), Precision))
		remaining -= chunk
		cursor += chunk
	}

	if total.Hi != 0 {
		return 0, fmt.Errorf("%w: sol cost", ErrMathOverflow)
	}
	return total.Lo, nil
}

func ceilDiv(n uint128.Uint128, d uint64) uint128.Uint128 {
	q, r := n.QuoRem64(d)
	if r != 0 {
		q = q.Add64(1)
	}
	return q
}
