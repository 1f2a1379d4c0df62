// ============================
// File: internal/sale/state.go
// ============================
package sale

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/curve"
)

// BpsDenominator is the basis-point scale used by referral fees.
const BpsDenominator uint64 = 10_000

// transitions is an allow-list of state changes keyed by the source state.
type transitions[S comparable] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MigrationState tracks the one-way handoff of reserves to the AMM.
type MigrationState uint8

const (
	NotEligible MigrationState = iota
	Eligible
	Migrated
	// WindowClosed is only reachable when the policy locks the curve once
	// raised SOL passes the upper bound.
	WindowClosed
)

var migrationTransitions = transitions[MigrationState]{
	NotEligible: {Eligible, WindowClosed},
	Eligible:    {Migrated, WindowClosed},
}

func (s MigrationState) String() string {
	switch s {
	case NotEligible:
		return "not_eligible"
	case Eligible:
		return "eligible"
	case Migrated:
		return "migrated"
	case WindowClosed:
		return "window_closed"
	}
	return "unknown"
}

// AirdropStatus is the claim state of an airdrop record.
type AirdropStatus uint8

const (
	Unclaimed AirdropStatus = iota
	Claimed
)

var airdropTransitions = transitions[AirdropStatus]{
	Unclaimed: {Claimed},
}

// AdminTransfer is the state of the two-phase admin handover.
type AdminTransfer uint8

const (
	AdminSettled AdminTransfer = iota
	AdminPending
)

var adminTransitions = transitions[AdminTransfer]{
	AdminSettled: {AdminPending},
	AdminPending: {AdminPending, AdminSettled},
}

// Config is the protocol-wide configuration singleton.
type Config struct {
	Admin              solana.PublicKey  `json:"admin"`
	PendingAdmin       *solana.PublicKey `json:"pendingAdmin,omitempty"`
	TokenMint          solana.PublicKey  `json:"tokenMint"`
	Treasury           solana.PublicKey  `json:"treasury"`
	DefaultReferralFee uint64            `json:"defaultReferralFee"`
	IsPaused           bool              `json:"isPaused"`
}

// AdminTransfer reports whether a handover is pending.
func (c *Config) AdminTransfer() AdminTransfer {
	if c.PendingAdmin != nil {
		return AdminPending
	}
	return AdminSettled
}

// BondingCurve is the sale state singleton.
type BondingCurve struct {
	TotalSoldSupply uint64           `json:"totalSoldSupply"`
	TotalSolRaised  uint64           `json:"totalSolRaised"`
	SolReserve      uint64           `json:"solReserve"`
	PricePoints     curve.Table      `json:"pricePoints"`
	Migration       MigrationState   `json:"migration"`
	Pool            solana.PublicKey `json:"pool"`
}

func (c *BondingCurve) IsMigrated() bool { return c.Migration == Migrated }

// CurrentPrice is derived from the table on every call.
func (c *BondingCurve) CurrentPrice() uint64 {
	return curve.PriceAtSupply(c.PricePoints, c.TotalSoldSupply)
}

type Referral struct {
	Referrer       solana.PublicKey `json:"referrer"`
	FeeBps         uint64           `json:"feeBps"`
	TotalReferrals uint64           `json:"totalReferrals"`
	TotalEarned    uint64           `json:"totalEarned"`
}

type Airdrop struct {
	Recipient solana.PublicKey `json:"recipient"`
	Amount    uint64           `json:"amount"`
	Status    AirdropStatus    `json:"status"`
}

func (a *Airdrop) Claimed() bool { return a.Status == Claimed }

// State is everything the program persists. A nil Config or Curve means the
// corresponding initialize instruction has not run yet.
type State struct {
	Config    *Config
	Curve     *BondingCurve
	Referrals map[solana.PublicKey]*Referral
	Airdrops  map[solana.PublicKey]*Airdrop
	Holdings  map[solana.PublicKey]uint64
	Version   uint64
}

// NewState returns an empty, uninitialized state.
func NewState() *State {
	return &State{
		Referrals: make(map[solana.PublicKey]*Referral),
		Airdrops:  make(map[solana.PublicKey]*Airdrop),
		Holdings:  make(map[solana.PublicKey]uint64),
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := NewState()
	out.Version = s.Version

	if s.Config != nil {
		cfg := *s.Config
		if s.Config.PendingAdmin != nil {
			pending := *s.Config.PendingAdmin
			cfg.PendingAdmin = &pending
		}
		out.Config = &cfg
	}
	if s.Curve != nil {
		c := *s.Curve
		c.PricePoints = s.Curve.PricePoints.Clone()
		out.Curve = &c
	}
	for k, v := range s.Referrals {
		r := *v
		out.Referrals[k] = &r
	}
	for k, v := range s.Airdrops {
		a := *v
		out.Airdrops[k] = &a
	}
	for k, v := range s.Holdings {
		out.Holdings[k] = v
	}
	return out
}

// BalanceOf returns the token balance held by owner.
func (s *State) BalanceOf(owner solana.PublicKey) uint64 {
	return s.Holdings[owner]
}

// AirdropTotal sums every airdrop amount ever created. Unbounded allocations
// can exceed uint64, which is reported as ErrMathOverflow.
func (s *State) AirdropTotal() (uint64, error) {
	var total uint64
	for _, a := range s.Airdrops {
		var err error
		if total, err = checkedAdd(total, a.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}
