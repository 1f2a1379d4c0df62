package sale

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/yozoon/internal/curve"
)

const (
	LamportsPerSol uint64 = 1_000_000_000

	DefaultMinSolPurchase      uint64 = 1_000_000 // 0.001 SOL
	DefaultReferralFeeBps      uint64 = 100
	DefaultMaxFeeBps           uint64 = BpsDenominator
	DefaultMigrationMinSol            = 60_000 * LamportsPerSol
	DefaultMigrationMaxSol            = 63_000 * LamportsPerSol
	DefaultPoolTokenAllocation        = 200_000_000 * curve.Precision
	DefaultPoolFeeBps          uint64 = 25
	DefaultMaxSupply                  = 1_000_000_000 * curve.Precision // 1B токенов

	// PermanentLock is the lock period handed to the venue; the LP position
	// has no unlock time.
	PermanentLock = ^uint64(0)
)

// MigrationPolicy configures the migration window and the pool it creates.
type MigrationPolicy struct {
	MinSol              uint64 `mapstructure:"min_sol"`
	MaxSol              uint64 `mapstructure:"max_sol"`
	LockAboveMax        bool   `mapstructure:"lock_above_max"`
	PoolTokenAllocation uint64 `mapstructure:"pool_token_allocation"`
	PoolFeeBps          uint64 `mapstructure:"pool_fee_bps"`
}

// classify maps raised SOL to a migration state. Terminal states stick.
func (p MigrationPolicy) classify(raised uint64, current MigrationState) MigrationState {
	if current == Migrated || current == WindowClosed {
		return current
	}
	switch {
	case raised < p.MinSol:
		return NotEligible
	case raised <= p.MaxSol:
		return Eligible
	case p.LockAboveMax:
		return WindowClosed
	}
	return Eligible
}

// Params are the tunable protocol constants.
type Params struct {
	MinSolPurchase    uint64          `mapstructure:"min_sol_purchase"`
	MaxFeeBps         uint64          `mapstructure:"max_fee_bps"`
	MaxPricePoints    int             `mapstructure:"max_price_points"`
	MaxSupply         uint64          `mapstructure:"max_supply"`         // 0 = unbounded
	AirdropAllocation uint64          `mapstructure:"airdrop_allocation"` // 0 = unbounded
	Migration         MigrationPolicy `mapstructure:"migration"`
}

// DefaultParams returns the constants of the deployed program.
func DefaultParams() Params {
	return Params{
		MinSolPurchase: DefaultMinSolPurchase,
		MaxFeeBps:      DefaultMaxFeeBps,
		MaxPricePoints: curve.DefaultMaxPricePoints,
		MaxSupply:      DefaultMaxSupply,
		Migration: MigrationPolicy{
			MinSol:              DefaultMigrationMinSol,
			MaxSol:              DefaultMigrationMaxSol,
			PoolTokenAllocation: DefaultPoolTokenAllocation,
			PoolFeeBps:          DefaultPoolFeeBps,
		},
	}
}

func (p Params) Validate() error {
	if p.MaxFeeBps > BpsDenominator {
		return fmt.Errorf("max_fee_bps %d exceeds %d", p.MaxFeeBps, BpsDenominator)
	}
	if p.MaxPricePoints < 2 {
		return errors.New("max_price_points must allow at least 2 points")
	}
	if p.Migration.MaxSol == 0 {
		return errors.New("migration.max_sol must be positive")
	}
	if p.Migration.MinSol > p.Migration.MaxSol {
		return fmt.Errorf("migration.min_sol %d above migration.max_sol %d", p.Migration.MinSol, p.Migration.MaxSol)
	}
	if p.Migration.PoolTokenAllocation == 0 {
		return errors.New("migration.pool_token_allocation must be positive")
	}
	if p.Migration.PoolFeeBps > BpsDenominator {
		return fmt.Errorf("migration.pool_fee_bps %d exceeds %d", p.Migration.PoolFeeBps, BpsDenominator)
	}
	return nil
}
