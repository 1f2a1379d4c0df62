// ==================================
// File: internal/client/operations.go
// ==================================
package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

// BuyOrder describes a purchase. When MinTokens is zero and SlippageBps is
// set, the minimum is derived from the local quote.
type BuyOrder struct {
	Lamports    uint64
	MinTokens   uint64
	SlippageBps uint64
	Referrer    *solana.PublicKey
}

// SellOrder describes a sale. MinSol follows the same rule as BuyOrder.MinTokens.
type SellOrder struct {
	Tokens      uint64
	MinSol      uint64
	SlippageBps uint64
}

// BuyOutcome pairs the landed transaction with the locally expected result.
type BuyOutcome struct {
	*TxResult
	Expected  *sale.BuyResult
	MinTokens uint64
}

type SellOutcome struct {
	*TxResult
	Expected *sale.SellQuote
	MinSol   uint64
}

// withSlippage returns amount reduced by bps.
func withSlippage(amount, bps uint64) (uint64, error) {
	if bps > sale.BpsDenominator {
		return 0, fmt.Errorf("slippage %d bps exceeds %d", bps, sale.BpsDenominator)
	}
	return uint128.From64(amount).Mul64(sale.BpsDenominator - bps).Div64(sale.BpsDenominator).Lo, nil
}

func requireConfig(st *sale.State) (*sale.Config, error) {
	if st.Config == nil {
		return nil, sale.ErrNotInitialized.Wrapf("config")
	}
	return st.Config, nil
}

// InitializeMint creates the config and the token mint. mint must be a fresh
// keypair; the wallet becomes admin.
func (c *Client) InitializeMint(ctx context.Context, mint solana.PrivateKey, treasury solana.PublicKey, defaultReferralFee uint64) (*TxResult, error) {
	if defaultReferralFee > c.params.MaxFeeBps {
		return nil, sale.ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", defaultReferralFee, c.params.MaxFeeBps)
	}
	ix, err := c.builder.InitializeMint(c.wallet.PublicKey, mint.PublicKey(), treasury, defaultReferralFee)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxInitializeMint, []solana.Instruction{ix}, mint)
}

func (c *Client) InitializeBondingCurve(ctx context.Context, points []curve.PricePoint) (*TxResult, error) {
	if _, err := curve.NewTable(points, c.params.MaxPricePoints); err != nil {
		return nil, sale.ErrInvalidPricePoints.Wrap(err)
	}
	ix, err := c.builder.InitializeBondingCurve(c.wallet.PublicKey, points)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxInitializeBondingCurve, []solana.Instruction{ix})
}

// Buy dry-runs the purchase on the fetched state, then submits it together
// with an idempotent create of the buyer's token account.
func (c *Client) Buy(ctx context.Context, order BuyOrder) (*BuyOutcome, error) {
	buyer := c.wallet.PublicKey
	owners := []solana.PublicKey{buyer}
	if order.Referrer != nil {
		owners = append(owners, *order.Referrer)
	}
	st, err := c.FetchState(ctx, owners...)
	if err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}

	referrer := order.Referrer
	if referrer != nil {
		if _, ok := st.Referrals[*referrer]; !ok {
			c.logger.Warn("Referrer has no referral account, buying without referral",
				zap.String("referrer", referrer.String()))
			referrer = nil
		}
	}

	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	args := sale.BuyArgs{SolAmount: order.Lamports, MinTokensExpected: order.MinTokens}
	var expected *sale.BuyResult
	if referrer != nil {
		expected, err = prog.BuyTokensWithReferral(ctx, buyer, args, *referrer)
	} else {
		expected, err = prog.BuyTokens(ctx, buyer, args)
	}
	if err != nil {
		return nil, err
	}
	if args.MinTokensExpected == 0 && order.SlippageBps > 0 {
		if args.MinTokensExpected, err = withSlippage(expected.TokensIssued, order.SlippageBps); err != nil {
			return nil, err
		}
	}

	createATA, err := c.wallet.CreateATAIdempotent(buyer, cfg.TokenMint)
	if err != nil {
		return nil, err
	}
	acc := yozoon.TradeAccounts{Trader: buyer, Mint: cfg.TokenMint, Treasury: cfg.Treasury}
	var (
		ix solana.Instruction
		op = yozoon.IxBuyTokens
	)
	if referrer != nil {
		op = yozoon.IxBuyTokensWithReferral
		ix, err = c.builder.BuyTokensWithReferral(acc, *referrer, args.SolAmount, args.MinTokensExpected)
	} else {
		ix, err = c.builder.BuyTokens(acc, args.SolAmount, args.MinTokensExpected)
	}
	if err != nil {
		return nil, err
	}

	res, err := c.send(ctx, op, []solana.Instruction{createATA, ix})
	if err != nil {
		return nil, err
	}
	return &BuyOutcome{TxResult: res, Expected: expected, MinTokens: args.MinTokensExpected}, nil
}

func (c *Client) Sell(ctx context.Context, order SellOrder) (*SellOutcome, error) {
	if order.Tokens == 0 {
		return nil, sale.ErrMinimumSaleAmount
	}
	st, err := c.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, sale.ErrProtocolPaused
	}
	if st.Curve != nil && st.Curve.IsMigrated() {
		return nil, sale.ErrAlreadyMigrated
	}
	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	quote, err := prog.QuoteSell(ctx, order.Tokens)
	if err != nil {
		return nil, err
	}
	if !quote.ReserveSufficient {
		return nil, sale.ErrInsufficientReserve.Wrapf("returns %d lamports, reserve %d", quote.SolReturned, st.Curve.SolReserve)
	}
	minSol := order.MinSol
	if minSol == 0 && order.SlippageBps > 0 {
		if minSol, err = withSlippage(quote.SolReturned, order.SlippageBps); err != nil {
			return nil, err
		}
	}

	ix, err := c.builder.SellTokens(yozoon.TradeAccounts{
		Trader:   c.wallet.PublicKey,
		Mint:     cfg.TokenMint,
		Treasury: cfg.Treasury,
	}, order.Tokens, minSol)
	if err != nil {
		return nil, err
	}
	res, err := c.send(ctx, yozoon.IxSellTokens, []solana.Instruction{ix})
	if err != nil {
		return nil, err
	}
	return &SellOutcome{TxResult: res, Expected: quote, MinSol: minSol}, nil
}

// CalculateCurrentPrice simulates the price instruction and reads the price
// from the emitted event. Nothing is submitted.
func (c *Client) CalculateCurrentPrice(ctx context.Context) (uint64, error) {
	ix, err := c.builder.CalculateCurrentPrice()
	if err != nil {
		return 0, err
	}
	tx, err := c.buildTransaction(ctx, []solana.Instruction{ix})
	if err != nil {
		return 0, err
	}
	sim, err := c.simulate(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", yozoon.IxCalculateCurrentPrice, err)
	}
	evs, err := yozoon.ParseEvents(c.ProgramID(), sim.Logs)
	if err != nil {
		return 0, err
	}
	for _, ev := range evs {
		if pc, ok := ev.(*events.PriceCalculatedEvent); ok {
			return pc.Price, nil
		}
	}
	return 0, fmt.Errorf("%s: no %s event in simulation logs", yozoon.IxCalculateCurrentPrice, events.PriceCalculated)
}

func (c *Client) CreateReferral(ctx context.Context, feeOverride *uint64) (*TxResult, error) {
	if feeOverride != nil && *feeOverride > c.params.MaxFeeBps {
		return nil, sale.ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", *feeOverride, c.params.MaxFeeBps)
	}
	ix, err := c.builder.CreateReferral(c.wallet.PublicKey, feeOverride)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxCreateReferral, []solana.Instruction{ix})
}

// UpdateReferralFee changes the default fee, or one referrer's fee when
// referrer is set.
func (c *Client) UpdateReferralFee(ctx context.Context, feeBps uint64, referrer *solana.PublicKey) (*TxResult, error) {
	if feeBps > c.params.MaxFeeBps {
		return nil, sale.ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", feeBps, c.params.MaxFeeBps)
	}
	ix, err := c.builder.UpdateReferralFee(c.wallet.PublicKey, feeBps, referrer)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxUpdateReferralFee, []solana.Instruction{ix})
}

func (c *Client) CreateAirdrop(ctx context.Context, recipient solana.PublicKey, amount uint64) (*TxResult, error) {
	if amount == 0 {
		return nil, sale.ErrInvalidAmount
	}
	ix, err := c.builder.CreateAirdrop(c.wallet.PublicKey, recipient, amount)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxCreateAirdrop, []solana.Instruction{ix})
}

// ClaimAirdrop claims the wallet's airdrop into its token account.
func (c *Client) ClaimAirdrop(ctx context.Context) (*TxResult, error) {
	recipient := c.wallet.PublicKey
	st, err := c.FetchState(ctx, recipient)
	if err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}
	drop, ok := st.Airdrops[recipient]
	if !ok {
		return nil, sale.ErrAirdropNotFound
	}
	if drop.Claimed() {
		return nil, sale.ErrAirdropAlreadyClaimed
	}

	createATA, err := c.wallet.CreateATAIdempotent(recipient, cfg.TokenMint)
	if err != nil {
		return nil, err
	}
	ix, err := c.builder.ClaimAirdrop(recipient, cfg.TokenMint)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxClaimAirdrop, []solana.Instruction{createATA, ix})
}

func (c *Client) PauseProtocol(ctx context.Context) (*TxResult, error) {
	ix, err := c.builder.PauseProtocol(c.wallet.PublicKey)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxPauseProtocol, []solana.Instruction{ix})
}

func (c *Client) UnpauseProtocol(ctx context.Context) (*TxResult, error) {
	ix, err := c.builder.UnpauseProtocol(c.wallet.PublicKey)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxUnpauseProtocol, []solana.Instruction{ix})
}

func (c *Client) TransferAdmin(ctx context.Context, newAdmin solana.PublicKey) (*TxResult, error) {
	if newAdmin.IsZero() || newAdmin.Equals(c.wallet.PublicKey) {
		return nil, sale.ErrInvalidAdmin
	}
	ix, err := c.builder.TransferAdmin(c.wallet.PublicKey, newAdmin)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxTransferAdmin, []solana.Instruction{ix})
}

func (c *Client) AcceptAdmin(ctx context.Context) (*TxResult, error) {
	ix, err := c.builder.AcceptAdmin(c.wallet.PublicKey)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxAcceptAdmin, []solana.Instruction{ix})
}

func (c *Client) UpdateTreasury(ctx context.Context, treasury solana.PublicKey) (*TxResult, error) {
	if treasury.IsZero() {
		return nil, sale.ErrInvalidAccount.Wrapf("treasury")
	}
	ix, err := c.builder.UpdateTreasury(c.wallet.PublicKey, treasury)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxUpdateTreasury, []solana.Instruction{ix})
}

// MigrateToRaydium checks admin rights and the window locally before
// handing the reserve to the AMM.
func (c *Client) MigrateToRaydium(ctx context.Context) (*TxResult, error) {
	st, err := c.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}
	if !cfg.Admin.Equals(c.wallet.PublicKey) {
		return nil, sale.ErrAdminOnly
	}
	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	status, err := prog.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	if err := MigrationError(status); err != nil {
		return nil, err
	}

	ix, err := c.builder.MigrateToRaydium(c.wallet.PublicKey, cfg.TokenMint)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, yozoon.IxMigrateToRaydium, []solana.Instruction{ix})
}

// MigrationError returns the error a migration attempt would fail with in
// the given state, or nil when the curve is eligible.
func MigrationError(st *sale.MigrationStatus) error {
	switch st.State {
	case sale.Migrated:
		return sale.ErrAlreadyMigrated
	case sale.WindowClosed:
		return sale.ErrMigrationWindowClosed
	case sale.NotEligible:
		return sale.ErrMigrationThresholdNotReached.Wrapf("raised %d of %d lamports", st.TotalSolRaised, st.MinSol)
	}
	return nil
}
