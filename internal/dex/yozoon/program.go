// =====================================
// File: internal/dex/yozoon/program.go
// =====================================
package yozoon

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the deployed Yozoon program.
	ProgramID = solana.MustPublicKeyFromBase58("7giegFn7Wy4McS1eKr1cpjhpE9TibEywydG57PSao9bM")

	// RaydiumAMMProgramID receives the pool creation CPI at migration.
	RaydiumAMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	SysvarRentPubkey = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// PDA seeds
const (
	SeedConfig       = "config"
	SeedBondingCurve = "bonding_curve"
	SeedReferral     = "referral"
	SeedAirdrop      = "airdrop"
	SeedRaydiumPool  = "raydium_pool"
	SeedFeeKeyNFT    = "fee_key_nft"
)

// Addresses derives every account of one program deployment.
type Addresses struct {
	ProgramID solana.PublicKey
}

// NewAddresses returns a deriver for programID; the zero key selects the
// deployed program.
func NewAddresses(programID solana.PublicKey) Addresses {
	if programID.IsZero() {
		programID = ProgramID
	}
	return Addresses{ProgramID: programID}
}

func (a Addresses) find(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, a.ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive %q address: %w", seeds[0], err)
	}
	return addr, bump, nil
}

func (a Addresses) Config() (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedConfig))
}

func (a Addresses) BondingCurve() (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedBondingCurve))
}

func (a Addresses) Referral(referrer solana.PublicKey) (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedReferral), referrer.Bytes())
}

func (a Addresses) Airdrop(recipient solana.PublicKey) (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedAirdrop), recipient.Bytes())
}

// RaydiumPool is the pool state account created at migration for mint.
func (a Addresses) RaydiumPool(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedRaydiumPool), mint.Bytes())
}

// FeeKeyNFT is the fee key account bound to pool.
func (a Addresses) FeeKeyNFT(pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return a.find([]byte(SeedFeeKeyNFT), pool.Bytes())
}
