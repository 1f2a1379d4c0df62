// internal/storage/postgres/ledger.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/storage"
)

const defaultJournalLimit = 100

// NUMERIC columns travel as text so the full uint64 range survives.
const (
	selectState     = `SELECT version, config, curve FROM sale_state WHERE id = 1`
	selectReferrals = `SELECT referrer, fee_bps::text, total_referrals::text, total_earned::text FROM referrals`
	selectAirdrops  = `SELECT recipient, amount::text, claimed FROM airdrops`
	selectHoldings  = `SELECT owner, amount::text FROM holdings`

	updateState = `
		UPDATE sale_state
		SET version = $1, config = $2, curve = $3, updated_at = now()
		WHERE id = 1
	`
	upsertReferral = `
		INSERT INTO referrals (referrer, fee_bps, total_referrals, total_earned)
		VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric)
		ON CONFLICT (referrer) DO UPDATE
		SET fee_bps = EXCLUDED.fee_bps,
		    total_referrals = EXCLUDED.total_referrals,
		    total_earned = EXCLUDED.total_earned
	`
	upsertAirdrop = `
		INSERT INTO airdrops (recipient, amount, claimed)
		VALUES ($1, $2::text::numeric, $3)
		ON CONFLICT (recipient) DO UPDATE
		SET amount = EXCLUDED.amount, claimed = EXCLUDED.claimed
	`
	upsertHolding = `
		INSERT INTO holdings (owner, amount)
		VALUES ($1, $2::text::numeric)
		ON CONFLICT (owner) DO UPDATE SET amount = EXCLUDED.amount
	`
	deleteReferral = `DELETE FROM referrals WHERE referrer = $1`
	deleteAirdrop  = `DELETE FROM airdrops WHERE recipient = $1`
	deleteHolding  = `DELETE FROM holdings WHERE owner = $1`
	insertEvent    = `
		INSERT INTO sale_events (version, position, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	selectJournal = `
		SELECT seq, version, event_type, payload, committed_at
		FROM sale_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger implements sale.Store on Postgres. Update locks the singleton
// state row, so concurrent writers from any process are serialized.
type Ledger struct {
	pool   *Pool
	logger *zap.Logger
}

var _ storage.Ledger = (*Ledger)(nil)

func NewLedger(pool *Pool, logger *zap.Logger) *Ledger {
	return &Ledger{pool: pool, logger: logger.Named("ledger")}
}

func (l *Ledger) RunMigrations(ctx context.Context) error {
	return l.pool.RunMigrations(ctx, l.logger)
}

// Load reads a consistent snapshot of the state.
func (l *Ledger) Load(ctx context.Context) (*sale.State, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return loadState(ctx, tx, false)
}

// Update runs fn on the locked state and commits the changed rows together
// with the emitted events. Any error rolls the whole transaction back.
func (l *Ledger) Update(ctx context.Context, fn sale.UpdateFunc) error {
	return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		st, err := loadState(ctx, tx, true)
		if err != nil {
			return err
		}
		before := st.Clone()

		emitted, err := fn(st)
		if err != nil {
			return err
		}
		st.Version = before.Version + 1

		batch, err := changeBatch(before, st, emitted)
		if err != nil {
			return err
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("concurrent commit at version %d: %w", st.Version, err)
			}
			return fmt.Errorf("write state: %w", err)
		}

		l.logger.Debug("Committed state",
			zap.Uint64("version", st.Version),
			zap.Int("events", len(emitted)))
		return nil
	})
}

// Journal returns committed events after afterSeq, oldest first.
func (l *Ledger) Journal(ctx context.Context, afterSeq int64, limit int) ([]storage.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	rows, err := l.pool.Query(ctx, selectJournal, afterSeq, limit)
	if err != nil {
		if isUndefinedTableError(err) {
			return nil, storage.ErrNotInitialized
		}
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []storage.JournalEntry
	for rows.Next() {
		var (
			entry     storage.JournalEntry
			version   int64
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&entry.Seq, &version, &eventType, &payload, &entry.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		ev, ok := events.New(events.EventType(eventType))
		if !ok {
			return nil, fmt.Errorf("journal entry %d: unknown event type %q", entry.Seq, eventType)
		}
		if err := json.Unmarshal(payload, ev); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", entry.Seq, err)
		}
		entry.Version = uint64(version)
		entry.Event = ev
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

func loadState(ctx context.Context, q querier, forUpdate bool) (*sale.State, error) {
	query := selectState
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		version             int64
		configRaw, curveRaw []byte
	)
	if err := q.QueryRow(ctx, query).Scan(&version, &configRaw, &curveRaw); err != nil {
		if isNotFoundError(err) || isUndefinedTableError(err) {
			return nil, storage.ErrNotInitialized
		}
		return nil, fmt.Errorf("load state row: %w", err)
	}

	st := sale.NewState()
	st.Version = uint64(version)
	if configRaw != nil {
		st.Config = new(sale.Config)
		if err := json.Unmarshal(configRaw, st.Config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if curveRaw != nil {
		st.Curve = new(sale.BondingCurve)
		if err := json.Unmarshal(curveRaw, st.Curve); err != nil {
			return nil, fmt.Errorf("decode curve: %w", err)
		}
	}

	err := forEachRow(ctx, q, selectReferrals, func(row pgx.Rows) error {
		var key, fee, count, earned string
		if err := row.Scan(&key, &fee, &count, &earned); err != nil {
			return err
		}
		var err error
		r := &sale.Referral{}
		if r.Referrer, err = solana.PublicKeyFromBase58(key); err != nil {
			return err
		}
		if r.FeeBps, err = parseAmount(fee); err != nil {
			return err
		}
		if r.TotalReferrals, err = parseAmount(count); err != nil {
			return err
		}
		if r.TotalEarned, err = parseAmount(earned); err != nil {
			return err
		}
		st.Referrals[r.Referrer] = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load referrals: %w", err)
	}

	err = forEachRow(ctx, q, selectAirdrops, func(row pgx.Rows) error {
		var (
			key, amount string
			claimed     bool
		)
		if err := row.Scan(&key, &amount, &claimed); err != nil {
			return err
		}
		var err error
		a := &sale.Airdrop{Status: sale.Unclaimed}
		if claimed {
			a.Status = sale.Claimed
		}
		if a.Recipient, err = solana.PublicKeyFromBase58(key); err != nil {
			return err
		}
		if a.Amount, err = parseAmount(amount); err != nil {
			return err
		}
		st.Airdrops[a.Recipient] = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load airdrops: %w", err)
	}

	err = forEachRow(ctx, q, selectHoldings, func(row pgx.Rows) error {
		var key, amount string
		if err := row.Scan(&key, &amount); err != nil {
			return err
		}
		owner, err := solana.PublicKeyFromBase58(key)
		if err != nil {
			return err
		}
		amt, err := parseAmount(amount)
		if err != nil {
			return err
		}
		st.Holdings[owner] = amt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	return st, nil
}

// changeBatch queues the state row, every changed or removed record and the
// events.
func changeBatch(before, after *sale.State, emitted []events.Event) (*pgx.Batch, error) {
	configJSON, err := marshalNullable(after.Config != nil, after.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	curveJSON, err := marshalNullable(after.Curve != nil, after.Curve)
	if err != nil {
		return nil, fmt.Errorf("encode curve: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(updateState, int64(after.Version), configJSON, curveJSON)

	for key, r := range after.Referrals {
		if old, ok := before.Referrals[key]; ok && *old == *r {
			continue
		}
		batch.Queue(upsertReferral, key.String(),
			formatAmount(r.FeeBps), formatAmount(r.TotalReferrals), formatAmount(r.TotalEarned))
	}
	for key, a := range after.Airdrops {
		if old, ok := before.Airdrops[key]; ok && *old == *a {
			continue
		}
		batch.Queue(upsertAirdrop, key.String(), formatAmount(a.Amount), a.Claimed())
	}
	for owner, amount := range after.Holdings {
		if old, ok := before.Holdings[owner]; ok && old == amount {
			continue
		}
		batch.Queue(upsertHolding, owner.String(), formatAmount(amount))
	}

	// записи, удалённые из состояния (полная продажа и т.п.), удаляются и из таблиц
	for key := range before.Referrals {
		if _, ok := after.Referrals[key]; !ok {
			batch.Queue(deleteReferral, key.String())
		}
	}
	for key := range before.Airdrops {
		if _, ok := after.Airdrops[key]; !ok {
			batch.Queue(deleteAirdrop, key.String())
		}
	}
	for owner := range before.Holdings {
		if _, ok := after.Holdings[owner]; !ok {
			batch.Queue(deleteHolding, owner.String())
		}
	}

	for i, ev := range emitted {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", ev.Type(), err)
		}
		batch.Queue(insertEvent, int64(after.Version), i, string(ev.Type()), payload)
	}
	return batch, nil
}

func forEachRow(ctx context.Context, q querier, sql string, scan func(pgx.Rows) error) error {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
