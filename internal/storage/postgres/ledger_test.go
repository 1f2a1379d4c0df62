package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/storage"
)

var fixedNow = func() time.Time { return time.Unix(1_700_000_000, 0) }

type fixedVenue struct{ pool solana.PublicKey }

func (v fixedVenue) CreatePool(req sale.PoolRequest) (sale.PoolReceipt, error) {
	return sale.PoolReceipt{Pool: v.pool, LockedLiquidity: req.SolAmount}, nil
}

type actors struct {
	admin, mint, treasury, referrer, buyer, dropee solana.PublicKey
}

func newActors() actors {
	key := func() solana.PublicKey { return solana.NewWallet().PublicKey() }
	return actors{key(), key(), key(), key(), key(), key()}
}

// scenario drives the same instruction sequence against any store.
func scenario(t *testing.T, prog *sale.Program, a actors) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, prog.InitializeMint(ctx, a.admin, sale.InitializeMintArgs{
		TokenMint: a.mint, Treasury: a.treasury, DefaultReferralFee: 100,
	}))
	require.NoError(t, prog.InitializeBondingCurve(ctx, a.admin, []curve.PricePoint{
		{Supply: 0, PricePerToken: 1_000_000},
		{Supply: 1_000_000 * curve.Precision, PricePerToken: 2_000_000},
	}))
	_, err := prog.CreateReferral(ctx, a.referrer, nil)
	require.NoError(t, err)

	_, err = prog.BuyTokensWithReferral(ctx, a.buyer, sale.BuyArgs{SolAmount: 2 * sale.LamportsPerSol}, a.referrer)
	require.NoError(t, err)
	_, err = prog.SellTokens(ctx, a.buyer, sale.SellArgs{TokenAmount: 100 * curve.Precision})
	require.NoError(t, err)

	require.NoError(t, prog.CreateAirdrop(ctx, a.admin, a.dropee, 5*curve.Precision))
	_, err = prog.ClaimAirdrop(ctx, a.dropee)
	require.NoError(t, err)

	// rejected instructions must leave no trace
	_, err = prog.ClaimAirdrop(ctx, a.dropee)
	require.ErrorIs(t, err, sale.ErrAirdropAlreadyClaimed)
	require.NoError(t, prog.PauseProtocol(ctx, a.admin))
	_, err = prog.BuyTokens(ctx, a.buyer, sale.BuyArgs{SolAmount: sale.LamportsPerSol})
	require.ErrorIs(t, err, sale.ErrProtocolPaused)
	require.NoError(t, prog.UnpauseProtocol(ctx, a.admin))
}

func newProgram(t *testing.T, store sale.Store) *sale.Program {
	t.Helper()
	params := sale.DefaultParams()
	params.Migration.MinSol = sale.LamportsPerSol
	params.Migration.MaxSol = 10 * sale.LamportsPerSol
	prog, err := sale.NewProgram(store, fixedVenue{pool: solana.NewWallet().PublicKey()}, params,
		zaptest.NewLogger(t), sale.WithClock(fixedNow))
	require.NoError(t, err)
	return prog
}

func TestLedger(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := NewLedger(pool, zaptest.NewLogger(t))

	t.Run("not initialized before migrations", func(t *testing.T) {
		_, err := ledger.Load(ctx)
		assert.ErrorIs(t, err, storage.ErrNotInitialized)
		_, err = ledger.Journal(ctx, 0, 10)
		assert.ErrorIs(t, err, storage.ErrNotInitialized)
	})

	require.NoError(t, ledger.RunMigrations(ctx))
	require.NoError(t, ledger.RunMigrations(ctx), "migrations must be idempotent")

	t.Run("empty state", func(t *testing.T) {
		st, err := ledger.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, st.Config)
		assert.Nil(t, st.Curve)
		assert.Zero(t, st.Version)
	})

	a := newActors()

	t.Run("matches the memory store", func(t *testing.T) {
		mem := sale.NewMemoryStore()
		scenario(t, newProgram(t, mem), a)
		scenario(t, newProgram(t, ledger), a)

		want, err := mem.Load(ctx)
		require.NoError(t, err)
		got, err := ledger.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		entries, err := ledger.Journal(ctx, 0, 0)
		require.NoError(t, err)
		journal := mem.Journal()
		require.Len(t, entries, len(journal))
		for i, entry := range entries {
			assert.Equal(t, journal[i], entry.Event)
			if i > 0 {
				assert.Greater(t, entry.Seq, entries[i-1].Seq)
				assert.GreaterOrEqual(t, entry.Version, entries[i-1].Version)
			}
		}
	})

	t.Run("journal paging", func(t *testing.T) {
		first, err := ledger.Journal(ctx, 0, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		rest, err := ledger.Journal(ctx, first[1].Seq, 0)
		require.NoError(t, err)
		require.NotEmpty(t, rest)
		assert.Equal(t, first[1].Seq+1, rest[0].Seq)
		assert.Equal(t, events.MintInitialized, first[0].Event.Type())
	})

	t.Run("failed update rolls back", func(t *testing.T) {
		before, err := ledger.Load(ctx)
		require.NoError(t, err)

		err = ledger.Update(ctx, func(st *sale.State) ([]events.Event, error) {
			st.Holdings[a.buyer] = 0
			st.Config.IsPaused = true
			return nil, sale.ErrAdminOnly
		})
		require.ErrorIs(t, err, sale.ErrAdminOnly)

		after, err := ledger.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("large amounts survive", func(t *testing.T) {
		big := ^uint64(0) - 1
		require.NoError(t, ledger.Update(ctx, func(st *sale.State) ([]events.Event, error) {
			st.Holdings[a.dropee] = big
			return nil, nil
		}))
		st, err := ledger.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, big, st.BalanceOf(a.dropee))
	})

	t.Run("removed holding is deleted", func(t *testing.T) {
		holder := solana.NewWallet().PublicKey()
		require.NoError(t, ledger.Update(ctx, func(st *sale.State) ([]events.Event, error) {
			st.Holdings[holder] = 7 * curve.Precision
			return nil, nil
		}))
		require.NoError(t, ledger.Update(ctx, func(st *sale.State) ([]events.Event, error) {
			delete(st.Holdings, holder)
			return nil, nil
		}))

		st, err := ledger.Load(ctx)
		require.NoError(t, err)
		_, present := st.Holdings[holder]
		assert.False(t, present)
		assert.Zero(t, st.BalanceOf(holder))
	})

	t.Run("full sell survives reload", func(t *testing.T) {
		seller := solana.NewWallet().PublicKey()
		bought, err := newProgram(t, ledger).BuyTokens(ctx, seller, sale.BuyArgs{SolAmount: sale.LamportsPerSol})
		require.NoError(t, err)
		_, err = newProgram(t, ledger).SellTokens(ctx, seller, sale.SellArgs{TokenAmount: bought.TokensIssued})
		require.NoError(t, err)

		// каждый вызов заново читает состояние из базы
		prog := newProgram(t, ledger)
		st, err := prog.Snapshot(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.BalanceOf(seller))
		_, err = prog.SellTokens(ctx, seller, sale.SellArgs{TokenAmount: bought.TokensIssued})
		assert.ErrorIs(t, err, sale.ErrInsufficientTokenBalance)
	})

	t.Run("concurrent updates serialize", func(t *testing.T) {
		start, err := ledger.Load(ctx)
		require.NoError(t, err)
		holder := solana.NewWallet().PublicKey()

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- ledger.Update(ctx, func(st *sale.State) ([]events.Event, error) {
					st.Holdings[holder]++
					return nil, nil
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		st, err := ledger.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(writers), st.BalanceOf(holder))
		assert.Equal(t, start.Version+writers, st.Version)
	})
}

func TestChangeBatchRemovals(t *testing.T) {
	seller := solana.NewWallet().PublicKey()
	dropee := solana.NewWallet().PublicKey()
	referrer := solana.NewWallet().PublicKey()

	before := sale.NewState()
	before.Holdings[seller] = 5 * curve.Precision
	before.Airdrops[dropee] = &sale.Airdrop{Recipient: dropee, Amount: 1}
	before.Referrals[referrer] = &sale.Referral{Referrer: referrer, FeeBps: 100}

	after := before.Clone()
	after.Version = before.Version + 1
	delete(after.Holdings, seller)
	delete(after.Airdrops, dropee)
	delete(after.Referrals, referrer)

	batch, err := changeBatch(before, after, nil)
	require.NoError(t, err)

	deleted := map[string]string{}
	for _, q := range batch.QueuedQueries {
		switch q.SQL {
		case deleteHolding, deleteAirdrop, deleteReferral:
			require.Len(t, q.Arguments, 1)
			deleted[q.SQL] = q.Arguments[0].(string)
		}
	}
	assert.Equal(t, map[string]string{
		deleteHolding:  seller.String(),
		deleteAirdrop:  dropee.String(),
		deleteReferral: referrer.String(),
	}, deleted)
	assert.Equal(t, 4, batch.Len(), "state row plus three deletes")

	unchanged, err := changeBatch(before, before.Clone(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, unchanged.Len())
}
