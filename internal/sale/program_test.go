package sale

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/events"
)

const sol = LamportsPerSol

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type stubVenue struct {
	err      error
	pool     solana.PublicKey
	requests []PoolRequest
}

func (v *stubVenue) CreatePool(req PoolRequest) (PoolReceipt, error) {
	v.requests = append(v.requests, req)
	if v.err != nil {
		return PoolReceipt{}, v.err
	}
	return PoolReceipt{Pool: v.pool, LockedLiquidity: req.SolAmount}, nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	program  *Program
	store    *MemoryStore
	recorder *events.Recorder
	venue    *stubVenue

	admin    solana.PublicKey
	mint     solana.PublicKey
	treasury solana.PublicKey
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    NewMemoryStore(),
		recorder: &events.Recorder{},
		venue:    &stubVenue{pool: newKey()},
		admin:    newKey(),
		mint:     newKey(),
		treasury: newKey(),
	}
	program, err := NewProgram(f.store, f.venue, params, zaptest.NewLogger(t),
		WithClock(func() time.Time { return testNow }),
		WithPublisher(f.recorder))
	require.NoError(t, err)
	f.program = program
	return f
}

// 0.001 SOL per token up to 1M tokens, 0.002 SOL afterwards
func testPricePoints() []curve.PricePoint {
	return []curve.PricePoint{
		{Supply: 0, PricePerToken: 1_000_000},
		{Supply: 1_000_000 * curve.Precision, PricePerToken: 2_000_000},
	}
}

func newInitializedFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	f := newFixture(t, params)
	require.NoError(t, f.program.InitializeMint(f.ctx, f.admin, InitializeMintArgs{
		TokenMint:          f.mint,
		Treasury:           f.treasury,
		DefaultReferralFee: DefaultReferralFeeBps,
	}))
	require.NoError(t, f.program.InitializeBondingCurve(f.ctx, f.admin, testPricePoints()))
	return f
}

func (f *fixture) state() *State {
	f.t.Helper()
	st, err := f.program.Snapshot(f.ctx)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) buy(buyer solana.PublicKey, lamports uint64) *BuyResult {
	f.t.Helper()
	res, err := f.program.BuyTokens(f.ctx, buyer, BuyArgs{SolAmount: lamports})
	require.NoError(f.t, err)
	return res
}

// assertUnchanged runs op and checks that it failed with want and left the
// committed state untouched.
func (f *fixture) assertUnchanged(want error, op func() error) {
	f.t.Helper()
	before := f.state()
	err := op()
	require.ErrorIs(f.t, err, want)
	assert.Equal(f.t, before, f.state())
}

func TestInitialize(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())

	st := f.state()
	require.NotNil(t, st.Config)
	require.NotNil(t, st.Curve)
	assert.Equal(t, f.admin, st.Config.Admin)
	assert.Equal(t, f.treasury, st.Config.Treasury)
	assert.Equal(t, NotEligible, st.Curve.Migration)
	assert.Equal(t, uint64(1_000_000), st.Curve.CurrentPrice())
	assert.Len(t, f.recorder.OfType(events.MintInitialized), 1)
	assert.Len(t, f.recorder.OfType(events.BondingCurveInitialized), 1)

	err := f.program.InitializeMint(f.ctx, newKey(), InitializeMintArgs{TokenMint: f.mint, Treasury: f.treasury})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	err = f.program.InitializeBondingCurve(f.ctx, f.admin, testPricePoints())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitializeValidation(t *testing.T) {
	f := newFixture(t, DefaultParams())

	_, err := f.program.BuyTokens(f.ctx, newKey(), BuyArgs{SolAmount: sol})
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = f.program.InitializeMint(f.ctx, f.admin, InitializeMintArgs{TokenMint: f.mint, Treasury: f.treasury, DefaultReferralFee: 10_001})
	assert.ErrorIs(t, err, ErrInvalidReferralFee)

	err = f.program.InitializeMint(f.ctx, f.admin, InitializeMintArgs{TokenMint: f.mint})
	assert.ErrorIs(t, err, ErrInvalidAccount)

	require.NoError(t, f.program.InitializeMint(f.ctx, f.admin, InitializeMintArgs{TokenMint: f.mint, Treasury: f.treasury}))

	err = f.program.InitializeBondingCurve(f.ctx, newKey(), testPricePoints())
	assert.ErrorIs(t, err, ErrAdminOnly)

	err = f.program.InitializeBondingCurve(f.ctx, f.admin, []curve.PricePoint{{Supply: 0, PricePerToken: 1}})
	assert.ErrorIs(t, err, ErrInvalidPricePoints)

	err = f.program.InitializeBondingCurve(f.ctx, f.admin, []curve.PricePoint{
		{Supply: 10, PricePerToken: 1}, {Supply: 5, PricePerToken: 2},
	})
	assert.ErrorIs(t, err, ErrInvalidPricePoints)
}

func TestBuyTokens(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	buyer := newKey()

	res := f.buy(buyer, sol)
	assert.Equal(t, 1_000*curve.Precision, res.TokensIssued)
	assert.Zero(t, res.ReferralFee)
	assert.Equal(t, sol, res.TreasuryAmount)

	st := f.state()
	assert.Equal(t, res.TokensIssued, st.Curve.TotalSoldSupply)
	assert.Equal(t, sol, st.Curve.TotalSolRaised)
	assert.Equal(t, sol, st.Curve.SolReserve)
	assert.Equal(t, res.TokensIssued, st.BalanceOf(buyer))

	purchases := f.recorder.OfType(events.TokenPurchase)
	require.Len(t, purchases, 1)
	ev := purchases[0].(*events.TokenPurchaseEvent)
	assert.Equal(t, buyer, ev.Buyer)
	assert.Equal(t, sol, ev.SolAmount)
	assert.Nil(t, ev.Referrer)
	assert.Equal(t, testNow, ev.Timestamp())
}

func TestBuySpansThreshold(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())

	// 1000 SOL fills the first segment, 0.0005 SOL buys 0.25 tokens at 0.002
	res := f.buy(newKey(), 1_000*sol+500_000)
	assert.Equal(t, 1_000_000*curve.Precision+250_000_000, res.TokensIssued)
	assert.Equal(t, uint64(2_000_000), f.state().Curve.CurrentPrice())
}

func TestBuyRejections(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	buyer := newKey()

	f.assertUnchanged(ErrInsufficientSolAmount, func() error {
		_, err := f.program.BuyTokens(f.ctx, buyer, BuyArgs{SolAmount: 0})
		return err
	})
	f.assertUnchanged(ErrInsufficientSolAmount, func() error {
		_, err := f.program.BuyTokens(f.ctx, buyer, BuyArgs{SolAmount: DefaultMinSolPurchase - 1})
		return err
	})
	f.assertUnchanged(ErrSlippageExceeded, func() error {
		_, err := f.program.BuyTokens(f.ctx, buyer, BuyArgs{SolAmount: sol, MinTokensExpected: 1_000*curve.Precision + 1})
		return err
	})
	f.assertUnchanged(ErrUnauthorized, func() error {
		_, err := f.program.BuyTokens(f.ctx, solana.PublicKey{}, BuyArgs{SolAmount: sol})
		return err
	})

	require.NoError(t, f.program.PauseProtocol(f.ctx, f.admin))
	f.assertUnchanged(ErrProtocolPaused, func() error {
		_, err := f.program.BuyTokens(f.ctx, buyer, BuyArgs{SolAmount: sol})
		return err
	})
}

func TestBuyMaxSupply(t *testing.T) {
	params := DefaultParams()
	params.MaxSupply = 500 * curve.Precision
	f := newInitializedFixture(t, params)

	f.assertUnchanged(ErrSupplyExceeded, func() error {
		_, err := f.program.BuyTokens(f.ctx, newKey(), BuyArgs{SolAmount: sol})
		return err
	})
	f.buy(newKey(), sol/2)
}

func TestBuyDefaultSupplyCap(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	require.NoError(t, f.store.Update(f.ctx, func(st *State) ([]events.Event, error) {
		st.Curve.TotalSoldSupply = DefaultMaxSupply - curve.Precision
		return nil, nil
	}))

	// 1 SOL по последней цене это 500 токенов, под потолком остался один
	f.assertUnchanged(ErrSupplyExceeded, func() error {
		_, err := f.program.BuyTokens(f.ctx, newKey(), BuyArgs{SolAmount: sol})
		return err
	})
}

func TestCountersMonotoneAcrossBuys(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	buyers := []solana.PublicKey{newKey(), newKey(), newKey()}

	var sold, raised uint64
	for i := 0; i < 30; i++ {
		f.buy(buyers[i%len(buyers)], uint64(i+1)*37*sol)
		c := f.state().Curve
		assert.GreaterOrEqual(t, c.TotalSoldSupply, sold)
		assert.GreaterOrEqual(t, c.TotalSolRaised, raised)
		sold, raised = c.TotalSoldSupply, c.TotalSolRaised
	}
}

func TestReferralSplit(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	referrer, buyer := newKey(), newKey()

	ref, err := f.program.CreateReferral(f.ctx, referrer, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultReferralFeeBps, ref.FeeBps)

	plain := f.buy(newKey(), sol)
	res, err := f.program.BuyTokensWithReferral(f.ctx, buyer, BuyArgs{SolAmount: sol}, referrer)
	require.NoError(t, err)

	// the fee never changes the token allocation
	assert.Equal(t, plain.TokensIssued, res.TokensIssued)
	assert.Equal(t, sol/100, res.ReferralFee)
	assert.Equal(t, sol-sol/100, res.TreasuryAmount)

	st := f.state()
	assert.Equal(t, 2*sol, st.Curve.TotalSolRaised)
	assert.Equal(t, 2*sol-sol/100, st.Curve.SolReserve)
	assert.Equal(t, sol/100, st.Referrals[referrer].TotalEarned)
	assert.Equal(t, uint64(1), st.Referrals[referrer].TotalReferrals)

	payments := f.recorder.OfType(events.ReferralPayment)
	require.Len(t, payments, 1)
	assert.Equal(t, sol/100, payments[0].(*events.ReferralPaymentEvent).Amount)
}

func TestReferralUnknownReferrerRoutesToTreasury(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())

	res, err := f.program.BuyTokensWithReferral(f.ctx, newKey(), BuyArgs{SolAmount: sol}, newKey())
	require.NoError(t, err)
	assert.Zero(t, res.ReferralFee)
	assert.Equal(t, sol, res.TreasuryAmount)
	assert.Empty(t, f.recorder.OfType(events.ReferralPayment))
}

func TestReferralValidation(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	referrer := newKey()

	fee := uint64(11_000)
	f.assertUnchanged(ErrInvalidReferralFee, func() error {
		_, err := f.program.CreateReferral(f.ctx, referrer, &fee)
		return err
	})

	fee = 250
	ref, err := f.program.CreateReferral(f.ctx, referrer, &fee)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), ref.FeeBps)

	_, err = f.program.CreateReferral(f.ctx, referrer, nil)
	assert.ErrorIs(t, err, ErrReferralAlreadyExists)

	_, err = f.program.BuyTokensWithReferral(f.ctx, referrer, BuyArgs{SolAmount: sol}, referrer)
	assert.ErrorIs(t, err, ErrSelfReferral)
}

func TestUpdateReferralFee(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	referrer := newKey()
	_, err := f.program.CreateReferral(f.ctx, referrer, nil)
	require.NoError(t, err)

	// authorization is checked before the fee is validated
	err = f.program.UpdateReferralFee(f.ctx, newKey(), UpdateReferralFeeArgs{FeeBps: 11_000})
	assert.ErrorIs(t, err, ErrAdminOnly)

	err = f.program.UpdateReferralFee(f.ctx, f.admin, UpdateReferralFeeArgs{FeeBps: 11_000})
	assert.ErrorIs(t, err, ErrInvalidReferralFee)

	require.NoError(t, f.program.UpdateReferralFee(f.ctx, f.admin, UpdateReferralFeeArgs{FeeBps: 300}))
	assert.Equal(t, uint64(300), f.state().Config.DefaultReferralFee)

	require.NoError(t, f.program.UpdateReferralFee(f.ctx, f.admin, UpdateReferralFeeArgs{FeeBps: 500, Referrer: &referrer}))
	assert.Equal(t, uint64(500), f.state().Referrals[referrer].FeeBps)

	stranger := newKey()
	err = f.program.UpdateReferralFee(f.ctx, f.admin, UpdateReferralFeeArgs{FeeBps: 1, Referrer: &stranger})
	assert.ErrorIs(t, err, ErrReferralNotFound)

	assert.Len(t, f.recorder.OfType(events.ReferralFeeUpdated), 2)
}

func TestSellTokens(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	seller := newKey()
	bought := f.buy(seller, sol).TokensIssued

	res, err := f.program.SellTokens(f.ctx, seller, SellArgs{TokenAmount: bought / 2})
	require.NoError(t, err)
	assert.Equal(t, sol/2, res.SolReturned)

	st := f.state()
	assert.Equal(t, bought/2, st.Curve.TotalSoldSupply)
	assert.Equal(t, sol/2, st.Curve.SolReserve)
	assert.Equal(t, sol, st.Curve.TotalSolRaised, "raised SOL is gross")
	assert.Equal(t, bought/2, st.BalanceOf(seller))

	res, err = f.program.SellTokens(f.ctx, seller, SellArgs{TokenAmount: bought / 2})
	require.NoError(t, err)
	assert.Equal(t, sol/2, res.SolReturned)
	assert.Zero(t, f.state().BalanceOf(seller))
	assert.Len(t, f.recorder.OfType(events.TokenSale), 2)
}

func TestSellRejections(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	seller := newKey()
	bought := f.buy(seller, sol).TokensIssued

	f.assertUnchanged(ErrMinimumSaleAmount, func() error {
		_, err := f.program.SellTokens(f.ctx, seller, SellArgs{})
		return err
	})
	f.assertUnchanged(ErrInsufficientTokenBalance, func() error {
		_, err := f.program.SellTokens(f.ctx, seller, SellArgs{TokenAmount: bought + 1})
		return err
	})
	f.assertUnchanged(ErrSlippageExceeded, func() error {
		_, err := f.program.SellTokens(f.ctx, seller, SellArgs{TokenAmount: bought, MinSolExpected: sol + 1})
		return err
	})

	require.NoError(t, f.program.PauseProtocol(f.ctx, f.admin))
	f.assertUnchanged(ErrProtocolPaused, func() error {
		_, err := f.program.SellTokens(f.ctx, seller, SellArgs{TokenAmount: bought})
		return err
	})
}

func TestSellCannotExceedSoldSupply(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	holder := newKey()
	f.buy(newKey(), sol)

	// airdropped tokens are not part of the sold supply
	require.NoError(t, f.program.CreateAirdrop(f.ctx, f.admin, holder, 5_000*curve.Precision))
	_, err := f.program.ClaimAirdrop(f.ctx, holder)
	require.NoError(t, err)

	f.assertUnchanged(ErrInsufficientSupply, func() error {
		_, err := f.program.SellTokens(f.ctx, holder, SellArgs{TokenAmount: 2_000 * curve.Precision})
		return err
	})
}

func TestSellInsufficientReserve(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	referrer, buyer := newKey(), newKey()

	fullFee := uint64(BpsDenominator)
	_, err := f.program.CreateReferral(f.ctx, referrer, &fullFee)
	require.NoError(t, err)

	res, err := f.program.BuyTokensWithReferral(f.ctx, buyer, BuyArgs{SolAmount: sol}, referrer)
	require.NoError(t, err)
	require.Zero(t, f.state().Curve.SolReserve)

	f.assertUnchanged(ErrInsufficientReserve, func() error {
		_, err := f.program.SellTokens(f.ctx, buyer, SellArgs{TokenAmount: res.TokensIssued})
		return err
	})

	q, err := f.program.QuoteSell(f.ctx, res.TokensIssued)
	require.NoError(t, err)
	assert.False(t, q.ReserveSufficient)
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())

	require.NoError(t, f.program.PauseProtocol(f.ctx, f.admin))
	require.NoError(t, f.program.PauseProtocol(f.ctx, f.admin))
	assert.True(t, f.state().Config.IsPaused)
	assert.Len(t, f.recorder.OfType(events.PauseStateChanged), 1)

	require.NoError(t, f.program.UnpauseProtocol(f.ctx, f.admin))
	require.NoError(t, f.program.UnpauseProtocol(f.ctx, f.admin))
	assert.False(t, f.state().Config.IsPaused)
	assert.Len(t, f.recorder.OfType(events.PauseStateChanged), 2)

	err := f.program.PauseProtocol(f.ctx, newKey())
	assert.ErrorIs(t, err, ErrAdminOnly)
}

func TestAdminTransfer(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	next := newKey()

	assert.ErrorIs(t, f.program.TransferAdmin(f.ctx, next, next), ErrAdminOnly)
	assert.ErrorIs(t, f.program.TransferAdmin(f.ctx, f.admin, f.admin), ErrInvalidAdmin)
	assert.ErrorIs(t, f.program.AcceptAdmin(f.ctx, next), ErrUnauthorized)

	require.NoError(t, f.program.TransferAdmin(f.ctx, f.admin, next))
	st := f.state()
	assert.Equal(t, f.admin, st.Config.Admin, "admin unchanged until accepted")
	require.NotNil(t, st.Config.PendingAdmin)
	assert.Equal(t, AdminPending, st.Config.AdminTransfer())

	assert.ErrorIs(t, f.program.AcceptAdmin(f.ctx, newKey()), ErrUnauthorized)
	require.NoError(t, f.program.AcceptAdmin(f.ctx, next))

	st = f.state()
	assert.Equal(t, next, st.Config.Admin)
	assert.Nil(t, st.Config.PendingAdmin)
	assert.ErrorIs(t, f.program.PauseProtocol(f.ctx, f.admin), ErrAdminOnly)
	assert.NoError(t, f.program.PauseProtocol(f.ctx, next))
	assert.Len(t, f.recorder.OfType(events.AdminTransferCompleted), 1)
}

func TestUpdateTreasury(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	next := newKey()

	assert.ErrorIs(t, f.program.UpdateTreasury(f.ctx, newKey(), next), ErrAdminOnly)
	assert.ErrorIs(t, f.program.UpdateTreasury(f.ctx, f.admin, solana.PublicKey{}), ErrInvalidAccount)
	require.NoError(t, f.program.UpdateTreasury(f.ctx, f.admin, next))
	assert.Equal(t, next, f.state().Config.Treasury)
}

func TestAirdropClaimOnce(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	recipient := newKey()
	amount := 42 * curve.Precision

	require.NoError(t, f.program.CreateAirdrop(f.ctx, f.admin, recipient, amount))

	// airdrops are not gated by the pause flag
	require.NoError(t, f.program.PauseProtocol(f.ctx, f.admin))

	claimed, err := f.program.ClaimAirdrop(f.ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, amount, claimed)
	assert.Equal(t, amount, f.state().BalanceOf(recipient))
	assert.True(t, f.state().Airdrops[recipient].Claimed())

	f.assertUnchanged(ErrAirdropAlreadyClaimed, func() error {
		_, err := f.program.ClaimAirdrop(f.ctx, recipient)
		return err
	})
	assert.Equal(t, amount, f.state().BalanceOf(recipient))
	assert.Len(t, f.recorder.OfType(events.AirdropClaimed), 1)
}

func TestAirdropCreateOrFail(t *testing.T) {
	params := DefaultParams()
	params.AirdropAllocation = 100
	f := newInitializedFixture(t, params)
	recipient := newKey()

	assert.ErrorIs(t, f.program.CreateAirdrop(f.ctx, newKey(), recipient, 0), ErrAdminOnly)
	assert.ErrorIs(t, f.program.CreateAirdrop(f.ctx, f.admin, recipient, 0), ErrInvalidAmount)
	assert.ErrorIs(t, f.program.CreateAirdrop(f.ctx, f.admin, solana.PublicKey{}, 1), ErrInvalidAccount)

	require.NoError(t, f.program.CreateAirdrop(f.ctx, f.admin, recipient, 60))
	assert.ErrorIs(t, f.program.CreateAirdrop(f.ctx, f.admin, recipient, 10), ErrAirdropAlreadyExists)
	assert.Equal(t, uint64(60), f.state().Airdrops[recipient].Amount)

	assert.ErrorIs(t, f.program.CreateAirdrop(f.ctx, f.admin, newKey(), 41), ErrAirdropAllocationExceeded)
	require.NoError(t, f.program.CreateAirdrop(f.ctx, f.admin, newKey(), 40))

	_, err := f.program.ClaimAirdrop(f.ctx, newKey())
	assert.ErrorIs(t, err, ErrAirdropNotFound)
}

func TestAirdropTotalOverflow(t *testing.T) {
	st := NewState()
	a, b := newKey(), newKey()
	st.Airdrops[a] = &Airdrop{Recipient: a, Amount: ^uint64(0) - 5}
	total, err := st.AirdropTotal()
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0)-5, total)

	st.Airdrops[b] = &Airdrop{Recipient: b, Amount: 10}
	_, err = st.AirdropTotal()
	assert.ErrorIs(t, err, ErrMathOverflow)

	// при переполненной сумме новый аирдроп под лимитом не создаётся
	params := DefaultParams()
	params.AirdropAllocation = 100
	f := newInitializedFixture(t, params)
	require.NoError(t, f.store.Update(f.ctx, func(st *State) ([]events.Event, error) {
		st.Airdrops[a] = &Airdrop{Recipient: a, Amount: ^uint64(0) - 5}
		st.Airdrops[b] = &Airdrop{Recipient: b, Amount: 10}
		return nil, nil
	}))
	f.assertUnchanged(ErrMathOverflow, func() error {
		return f.program.CreateAirdrop(f.ctx, f.admin, newKey(), 1)
	})
}

func TestMigrationLifecycle(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	buyer := newKey()

	f.buy(buyer, 59_999*sol)
	status, err := f.program.MigrationStatus(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, NotEligible, status.State)
	assert.Equal(t, sol, status.Remaining())

	f.assertUnchanged(ErrMigrationThresholdNotReached, func() error {
		_, err := f.program.MigrateToRaydium(f.ctx, f.admin)
		return err
	})
	assert.Empty(t, f.venue.requests)

	f.buy(buyer, sol)
	assert.Equal(t, Eligible, f.state().Curve.Migration)
	assert.Len(t, f.recorder.OfType(events.MigrationReady), 1)

	_, err = f.program.MigrateToRaydium(f.ctx, newKey())
	assert.ErrorIs(t, err, ErrAdminOnly)

	reserve := f.state().Curve.SolReserve
	receipt, err := f.program.MigrateToRaydium(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, f.venue.pool, receipt.Pool)

	require.Len(t, f.venue.requests, 1)
	req := f.venue.requests[0]
	assert.Equal(t, reserve, req.SolAmount)
	assert.Equal(t, DefaultPoolTokenAllocation, req.TokenAmount)
	assert.Equal(t, f.mint, req.TokenMint)
	assert.Equal(t, PermanentLock, req.LockPeriod)

	st := f.state()
	assert.True(t, st.Curve.IsMigrated())
	assert.Zero(t, st.Curve.SolReserve)
	assert.Equal(t, f.venue.pool, st.Curve.Pool)
	assert.Equal(t, DefaultPoolTokenAllocation, st.BalanceOf(f.venue.pool))

	completed := f.recorder.OfType(events.MigrationCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, reserve, completed[0].(*events.MigrationCompletedEvent).TotalSol)

	_, err = f.program.MigrateToRaydium(f.ctx, f.admin)
	assert.ErrorIs(t, err, ErrAlreadyMigrated)
}

func TestMigratedCurveRejectsTrading(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	holder := newKey()
	f.buy(holder, 60_000*sol)
	_, err := f.program.MigrateToRaydium(f.ctx, f.admin)
	require.NoError(t, err)

	for _, amount := range []uint64{0, 1, DefaultMinSolPurchase, sol, 10_000 * sol} {
		_, err := f.program.BuyTokens(f.ctx, holder, BuyArgs{SolAmount: amount})
		assert.ErrorIs(t, err, ErrAlreadyMigrated, "buy %d", amount)

		_, err = f.program.SellTokens(f.ctx, holder, SellArgs{TokenAmount: amount})
		assert.ErrorIs(t, err, ErrAlreadyMigrated, "sell %d", amount)
	}
}

func TestMigrationVenueFailureRollsBack(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	f.buy(newKey(), 61_000*sol)

	venueErr := errors.New("pool init failed")
	f.venue.err = venueErr

	before := f.state()
	_, err := f.program.MigrateToRaydium(f.ctx, f.admin)
	require.ErrorIs(t, err, ErrMigrationFailed)
	assert.ErrorIs(t, err, venueErr)
	assert.Equal(t, before, f.state())
	assert.Empty(t, f.recorder.OfType(events.MigrationCompleted))

	f.venue.err = nil
	_, err = f.program.MigrateToRaydium(f.ctx, f.admin)
	require.NoError(t, err)
}

func TestMigrationAboveWindow(t *testing.T) {
	t.Run("lockout policy", func(t *testing.T) {
		params := DefaultParams()
		params.Migration.LockAboveMax = true
		f := newInitializedFixture(t, params)

		f.buy(newKey(), 64_000*sol)
		assert.Equal(t, WindowClosed, f.state().Curve.Migration)

		_, err := f.program.MigrateToRaydium(f.ctx, f.admin)
		assert.ErrorIs(t, err, ErrMigrationWindowClosed)

		// the curve keeps trading
		f.buy(newKey(), sol)
	})

	t.Run("open ended policy", func(t *testing.T) {
		f := newInitializedFixture(t, DefaultParams())

		f.buy(newKey(), 64_000*sol)
		status, err := f.program.MigrationStatus(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, Eligible, status.State)
		assert.True(t, status.AboveWindow())

		_, err = f.program.MigrateToRaydium(f.ctx, f.admin)
		require.NoError(t, err)
	})
}

func TestCalculateCurrentPrice(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	f.buy(newKey(), 1_001*sol)

	price, err := f.program.CalculateCurrentPrice(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), price)

	evs := f.recorder.OfType(events.PriceCalculated)
	require.Len(t, evs, 1)
	assert.Equal(t, price, evs[0].(*events.PriceCalculatedEvent).Price)
}

func TestQuoteBuyMatchesExecution(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	referrer := newKey()
	_, err := f.program.CreateReferral(f.ctx, referrer, nil)
	require.NoError(t, err)

	q, err := f.program.QuoteBuy(f.ctx, 1_500*sol, &referrer)
	require.NoError(t, err)

	res, err := f.program.BuyTokensWithReferral(f.ctx, newKey(), BuyArgs{SolAmount: 1_500 * sol}, referrer)
	require.NoError(t, err)
	assert.Equal(t, q.Tokens, res.TokensIssued)
	assert.Equal(t, q.ReferralFee, res.ReferralFee)
}

func TestJournalHoldsOnlyCommittedEvents(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	f.buy(newKey(), sol)
	_, _ = f.program.BuyTokens(f.ctx, newKey(), BuyArgs{SolAmount: 1})

	journal := f.store.Journal()
	assert.Equal(t, f.recorder.Events(), journal)
	assert.Equal(t, uint64(3), f.state().Version)
}

func TestNewProgramValidatesParams(t *testing.T) {
	params := DefaultParams()
	params.Migration.MinSol = params.Migration.MaxSol + 1
	_, err := NewProgram(NewMemoryStore(), nil, params, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewProgram(nil, nil, DefaultParams(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestMigrationWithoutVenue(t *testing.T) {
	f := newInitializedFixture(t, DefaultParams())
	f.buy(newKey(), 60_000*sol)
	f.program.venue = nil

	_, err := f.program.MigrateToRaydium(f.ctx, f.admin)
	assert.ErrorIs(t, err, ErrMigrationFailed)
}
