// ================================
// File: internal/sale/migration.go
// ================================
package sale

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/events"
)

// PoolRequest is what the program hands to the AMM at migration.
type PoolRequest struct {
	Admin       solana.PublicKey
	TokenMint   solana.PublicKey
	TokenAmount uint64
	SolAmount   uint64
	FeeBps      uint64
	LockPeriod  uint64
}

// PoolReceipt identifies the pool created by the venue. The LP position is
// locked for LockPeriod; nothing in this program can withdraw it.
type PoolReceipt struct {
	Pool            solana.PublicKey
	FeeKey          solana.PublicKey
	LockedLiquidity uint64
}

// LiquidityVenue is the external AMM. CreatePool runs inside the store update,
// so a migration whose commit failed after the call is repeated with the same
// request. Implementations must answer a repeated identical request with the
// receipt of the pool they already created.
type LiquidityVenue interface {
	CreatePool(req PoolRequest) (PoolReceipt, error)
}

// MigrationStatus describes where the curve stands relative to the window.
type MigrationStatus struct {
	State          MigrationState
	TotalSolRaised uint64
	SolReserve     uint64
	MinSol         uint64
	MaxSol         uint64
	Pool           solana.PublicKey
}

// Remaining returns the lamports still needed to enter the window.
func (s MigrationStatus) Remaining() uint64 {
	if s.TotalSolRaised >= s.MinSol {
		return 0
	}
	return s.MinSol - s.TotalSolRaised
}

// AboveWindow reports whether raised SOL passed the upper bound.
func (s MigrationStatus) AboveWindow() bool {
	return s.TotalSolRaised > s.MaxSol
}

// evaluateMigration advances the migration state after TotalSolRaised moved.
func (tx *txn) evaluateMigration(c *BondingCurve) {
	next := tx.params.Migration.classify(c.TotalSolRaised, c.Migration)
	if next == c.Migration || !migrationTransitions.allows(c.Migration, next) {
		return
	}
	c.Migration = next
	if next == Eligible {
		tx.emit(&events.MigrationReadyEvent{TotalSolRaised: c.TotalSolRaised, Time: tx.now})
	}
}

func (tx *txn) migrate(admin solana.PublicKey) (*PoolReceipt, error) {
	cfg, err := requireAdmin(tx.st, admin)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(tx.st)
	if err != nil {
		return nil, err
	}

	// the window may have been reconfigured since the last purchase
	tx.evaluateMigration(c)

	switch c.Migration {
	case Migrated:
		return nil, ErrAlreadyMigrated
	case WindowClosed:
		return nil, ErrMigrationWindowClosed
	case NotEligible:
		return nil, ErrMigrationThresholdNotReached.Wrapf("raised %d of %d lamports",
			c.TotalSolRaised, tx.params.Migration.MinSol)
	}
	if !migrationTransitions.allows(c.Migration, Migrated) {
		return nil, ErrInvalidStateTransition
	}
	if tx.venue == nil {
		return nil, ErrMigrationFailed.Wrap(errors.New("no liquidity venue configured"))
	}

	req := PoolRequest{
		Admin:       admin,
		TokenMint:   cfg.TokenMint,
		TokenAmount: tx.params.Migration.PoolTokenAllocation,
		SolAmount:   c.SolReserve,
		FeeBps:      tx.params.Migration.PoolFeeBps,
		LockPeriod:  PermanentLock,
	}
	receipt, err := tx.venue.CreatePool(req)
	if err != nil {
		return nil, ErrMigrationFailed.Wrap(err)
	}
	if receipt.Pool.IsZero() {
		return nil, ErrMigrationFailed.Wrap(errors.New("venue returned an empty pool address"))
	}

	vault, err := checkedAdd(tx.st.Holdings[receipt.Pool], req.TokenAmount)
	if err != nil {
		return nil, err
	}
	tx.st.Holdings[receipt.Pool] = vault
	c.SolReserve = 0
	c.Pool = receipt.Pool
	c.Migration = Migrated

	tx.emit(&events.MigrationCompletedEvent{
		Admin:       admin,
		Pool:        receipt.Pool,
		TotalTokens: req.TokenAmount,
		TotalSol:    req.SolAmount,
		Time:        tx.now,
	})
	return &receipt, nil
}

// MigrationStatus reports the migration state of the committed curve.
func (p *Program) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	st, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c, err := requireCurve(st)
	if err != nil {
		return nil, err
	}
	return &MigrationStatus{
		State:          p.params.Migration.classify(c.TotalSolRaised, c.Migration),
		TotalSolRaised: c.TotalSolRaised,
		SolReserve:     c.SolReserve,
		MinSol:         p.params.Migration.MinSol,
		MaxSol:         p.params.Migration.MaxSol,
		Pool:           c.Pool,
	}, nil
}
