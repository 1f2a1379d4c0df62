// ============================
// File: internal/sale/trade.go
// ============================
package sale

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/events"
)

type BuyArgs struct {
	SolAmount         uint64
	MinTokensExpected uint64
}

type BuyResult struct {
	TokensIssued   uint64
	ReferralFee    uint64
	TreasuryAmount uint64
	Price          uint64
}

type SellArgs struct {
	TokenAmount    uint64
	MinSolExpected uint64
}

type SellResult struct {
	SolReturned uint64
	Price       uint64
}

// BuyQuote previews a purchase without committing it.
type BuyQuote struct {
	curve.Quote
	ReferralFee uint64
}

// SellQuote previews a sale. ReserveSufficient is false when the sale would
// currently fail with InsufficientReserve.
type SellQuote struct {
	SolReturned       uint64
	ReserveSufficient bool
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrMathOverflow.Wrapf("%d + %d", a, b)
	}
	return a + b, nil
}

// feeFor returns floor(amount * bps / 10000).
func feeFor(amount, bps uint64) uint64 {
	return uint128.From64(amount).Mul64(bps).Div64(BpsDenominator).Lo
}

func (tx *txn) buy(buyer solana.PublicKey, args BuyArgs, referrer *solana.PublicKey) (*BuyResult, error) {
	if err := requireSigner(buyer); err != nil {
		return nil, err
	}
	cfg, err := requireConfig(tx.st)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(tx.st)
	if err != nil {
		return nil, err
	}

	if cfg.IsPaused {
		return nil, ErrProtocolPaused
	}
	if c.IsMigrated() {
		return nil, ErrAlreadyMigrated
	}
	if args.SolAmount == 0 || args.SolAmount < tx.params.MinSolPurchase {
		return nil, ErrInsufficientSolAmount.Wrapf("%d lamports, minimum %d", args.SolAmount, tx.params.MinSolPurchase)
	}

	// tokens are priced on the full amount; the referral split only decides
	// where the SOL lands
	q, err := curve.TokensForSol(c.PricePoints, c.TotalSoldSupply, args.SolAmount, tx.params.MaxSupply)
	if err != nil {
		return nil, fromCurve(err)
	}
	if q.Tokens == 0 {
		return nil, ErrDustAmount
	}
	if q.Tokens < args.MinTokensExpected {
		return nil, ErrSlippageExceeded.Wrapf("got %d tokens, expected at least %d", q.Tokens, args.MinTokensExpected)
	}

	var (
		ref *Referral
		fee uint64
	)
	if referrer != nil {
		if referrer.Equals(buyer) {
			return nil, ErrSelfReferral
		}
		if r, ok := tx.st.Referrals[*referrer]; ok {
			ref = r
			fee = feeFor(args.SolAmount, r.FeeBps)
		}
	}
	toTreasury := args.SolAmount - fee

	sold, err := checkedAdd(c.TotalSoldSupply, q.Tokens)
	if err != nil {
		return nil, err
	}
	raised, err := checkedAdd(c.TotalSolRaised, args.SolAmount)
	if err != nil {
		return nil, err
	}
	reserve, err := checkedAdd(c.SolReserve, toTreasury)
	if err != nil {
		return nil, err
	}
	balance, err := checkedAdd(tx.st.Holdings[buyer], q.Tokens)
	if err != nil {
		return nil, err
	}
	var earned uint64
	if ref != nil {
		if earned, err = checkedAdd(ref.TotalEarned, fee); err != nil {
			return nil, err
		}
	}

	c.TotalSoldSupply = sold
	c.TotalSolRaised = raised
	c.SolReserve = reserve
	tx.st.Holdings[buyer] = balance

	purchase := &events.TokenPurchaseEvent{
		Buyer:        buyer,
		SolAmount:    args.SolAmount,
		TokensIssued: q.Tokens,
		ReferralFee:  fee,
		Price:        q.StartPrice,
		Time:         tx.now,
	}
	if ref != nil {
		ref.TotalEarned = earned
		ref.TotalReferrals++
		r := ref.Referrer
		purchase.Referrer = &r
	}
	tx.emit(purchase)
	if fee > 0 {
		tx.emit(&events.ReferralPaymentEvent{
			Referrer: ref.Referrer,
			Buyer:    buyer,
			Amount:   fee,
			Time:     tx.now,
		})
	}
	tx.evaluateMigration(c)

	return &BuyResult{
		TokensIssued:   q.Tokens,
		ReferralFee:    fee,
		TreasuryAmount: toTreasury,
		Price:          q.StartPrice,
	}, nil
}

func (tx *txn) sell(seller solana.PublicKey, args SellArgs) (*SellResult, error) {
	if err := requireSigner(seller); err != nil {
		return nil, err
	}
	cfg, err := requireConfig(tx.st)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(tx.st)
	if err != nil {
		return nil, err
	}

	if cfg.IsPaused {
		return nil, ErrProtocolPaused
	}
	if c.IsMigrated() {
		return nil, ErrAlreadyMigrated
	}
	if args.TokenAmount == 0 {
		return nil, ErrMinimumSaleAmount
	}
	held := tx.st.Holdings[seller]
	if held < args.TokenAmount {
		return nil, ErrInsufficientTokenBalance.Wrapf("holds %d, selling %d", held, args.TokenAmount)
	}
	if args.TokenAmount > c.TotalSoldSupply {
		return nil, ErrInsufficientSupply.Wrapf("selling %d of %d sold", args.TokenAmount, c.TotalSoldSupply)
	}

	sol, err := curve.SolForTokens(c.PricePoints, c.TotalSoldSupply, args.TokenAmount)
	if err != nil {
		return nil, fromCurve(err)
	}
	if sol == 0 {
		return nil, ErrDustAmount
	}
	if sol < args.MinSolExpected {
		return nil, ErrSlippageExceeded.Wrapf("got %d lamports, expected at least %d", sol, args.MinSolExpected)
	}
	if sol > c.SolReserve {
		return nil, ErrInsufficientReserve.Wrapf("owed %d, reserve %d", sol, c.SolReserve)
	}

	price := curve.PriceAtSupply(c.PricePoints, c.TotalSoldSupply-1)

	c.TotalSoldSupply -= args.TokenAmount
	c.SolReserve -= sol
	if held == args.TokenAmount {
		delete(tx.st.Holdings, seller)
	} else {
		tx.st.Holdings[seller] = held - args.TokenAmount
	}

	tx.emit(&events.TokenSaleEvent{
		Seller:      seller,
		TokenAmount: args.TokenAmount,
		SolReturned: sol,
		Price:       price,
		Time:        tx.now,
	})

	return &SellResult{SolReturned: sol, Price: price}, nil
}

func (tx *txn) calculateCurrentPrice() (uint64, error) {
	c, err := requireCurve(tx.st)
	if err != nil {
		return 0, err
	}
	price := c.CurrentPrice()
	tx.emit(&events.PriceCalculatedEvent{
		Supply: c.TotalSoldSupply,
		Price:  price,
		Time:   tx.now,
	})
	return price, nil
}

// QuoteBuy prices a purchase against the committed state.
func (p *Program) QuoteBuy(ctx context.Context, solAmount uint64, referrer *solana.PublicKey) (*BuyQuote, error) {
	st, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(st)
	if err != nil {
		return nil, err
	}
	q, err := curve.TokensForSol(c.PricePoints, c.TotalSoldSupply, solAmount, p.params.MaxSupply)
	if err != nil {
		return nil, fromCurve(err)
	}
	out := &BuyQuote{Quote: q}
	if referrer != nil {
		if r, ok := st.Referrals[*referrer]; ok {
			out.ReferralFee = feeFor(solAmount, r.FeeBps)
		}
	}
	return out, nil
}

// QuoteSell prices a sale against the committed state.
func (p *Program) QuoteSell(ctx context.Context, tokenAmount uint64) (*SellQuote, error) {
	st, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(st)
	if err != nil {
		return nil, err
	}
	sol, err := curve.SolForTokens(c.PricePoints, c.TotalSoldSupply, tokenAmount)
	if err != nil {
		return nil, fromCurve(err)
	}
	return &SellQuote{SolReturned: sol, ReserveSufficient: sol <= c.SolReserve}, nil
}
