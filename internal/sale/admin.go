// ============================
// File: internal/sale/admin.go
// ============================
package sale

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/events"
)

// initializeMint creates the Config singleton. The first caller becomes admin.
func (tx *txn) initializeMint(signer solana.PublicKey, args InitializeMintArgs) error {
	if err := requireSigner(signer); err != nil {
		return err
	}
	if tx.st.Config != nil {
		return ErrAlreadyInitialized.Wrapf("config")
	}
	if args.TokenMint.IsZero() {
		return ErrInvalidAccount.Wrapf("token mint")
	}
	if args.Treasury.IsZero() {
		return ErrInvalidAccount.Wrapf("treasury")
	}
	if args.DefaultReferralFee > tx.params.MaxFeeBps {
		return ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", args.DefaultReferralFee, tx.params.MaxFeeBps)
	}

	tx.st.Config = &Config{
		Admin:              signer,
		TokenMint:          args.TokenMint,
		Treasury:           args.Treasury,
		DefaultReferralFee: args.DefaultReferralFee,
	}
	tx.emit(&events.MintInitializedEvent{Admin: signer, Mint: args.TokenMint, Time: tx.now})
	return nil
}

func (tx *txn) initializeBondingCurve(signer solana.PublicKey, points []curve.PricePoint) error {
	if _, err := requireAdmin(tx.st, signer); err != nil {
		return err
	}
	if tx.st.Curve != nil {
		return ErrAlreadyInitialized.Wrapf("bonding curve")
	}
	table, err := curve.NewTable(points, tx.params.MaxPricePoints)
	if err != nil {
		return fromCurve(err)
	}

	tx.st.Curve = &BondingCurve{PricePoints: table, Migration: NotEligible}
	tx.emit(&events.BondingCurveInitializedEvent{
		Admin:       signer,
		PricePoints: uint32(len(table)),
		Time:        tx.now,
	})
	return nil
}

// setPaused is idempotent: asking for the current state changes nothing and
// emits nothing.
func (tx *txn) setPaused(admin solana.PublicKey, paused bool) error {
	cfg, err := requireAdmin(tx.st, admin)
	if err != nil {
		return err
	}
	if cfg.IsPaused == paused {
		return nil
	}
	cfg.IsPaused = paused
	tx.emit(&events.PauseStateChangedEvent{Paused: paused, Admin: admin, Time: tx.now})
	return nil
}

func (tx *txn) transferAdmin(admin, newAdmin solana.PublicKey) error {
	cfg, err := requireAdmin(tx.st, admin)
	if err != nil {
		return err
	}
	if newAdmin.IsZero() || newAdmin.Equals(cfg.Admin) {
		return ErrInvalidAdmin
	}
	if !adminTransitions.allows(cfg.AdminTransfer(), AdminPending) {
		return ErrInvalidStateTransition
	}

	pending := newAdmin
	cfg.PendingAdmin = &pending
	tx.emit(&events.AdminTransferInitiatedEvent{
		CurrentAdmin:  cfg.Admin,
		ProposedAdmin: newAdmin,
		Time:          tx.now,
	})
	return nil
}

func (tx *txn) acceptAdmin(signer solana.PublicKey) error {
	cfg, err := requirePendingAdmin(tx.st, signer)
	if err != nil {
		return err
	}
	if !adminTransitions.allows(cfg.AdminTransfer(), AdminSettled) {
		return ErrInvalidStateTransition
	}

	old := cfg.Admin
	cfg.Admin = signer
	cfg.PendingAdmin = nil
	tx.emit(&events.AdminTransferCompletedEvent{OldAdmin: old, NewAdmin: signer, Time: tx.now})
	return nil
}

func (tx *txn) updateTreasury(admin, treasury solana.PublicKey) error {
	cfg, err := requireAdmin(tx.st, admin)
	if err != nil {
		return err
	}
	if treasury.IsZero() {
		return ErrInvalidAccount.Wrapf("treasury")
	}

	old := cfg.Treasury
	cfg.Treasury = treasury
	tx.emit(&events.TreasuryUpdatedEvent{OldTreasury: old, NewTreasury: treasury, Time: tx.now})
	return nil
}
