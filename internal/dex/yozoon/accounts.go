// ======================================
// File: internal/dex/yozoon/accounts.go
// ======================================
package yozoon

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

// Anchor sighash namespaces
const (
	namespaceAccount = "account"
	namespaceEvent   = "event"

	discriminatorSize = 8
)

var (
	ConfigDiscriminator       = bin.SighashTypeID(namespaceAccount, "Config")
	BondingCurveDiscriminator = bin.SighashTypeID(namespaceAccount, "BondingCurve")
	ReferralDiscriminator     = bin.SighashTypeID(namespaceAccount, "Referral")
	AirdropDiscriminator      = bin.SighashTypeID(namespaceAccount, "Airdrop")
)

var (
	ErrAccountTooShort       = errors.New("account data too short")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
)

// ConfigAccount is the on-chain layout of the config PDA.
type ConfigAccount struct {
	Admin              solana.PublicKey
	PendingAdmin       *solana.PublicKey `bin:"optional"`
	TokenMint          solana.PublicKey
	Treasury           solana.PublicKey
	DefaultReferralFee uint64
	IsPaused           bool
	Bump               uint8
}

// BondingCurveAccount is the on-chain layout of the bonding curve PDA.
type BondingCurveAccount struct {
	TotalSoldSupply uint64
	TotalSolRaised  uint64
	SolReserve      uint64
	PricePoints     []curve.PricePoint
	Migration       uint8
	Pool            solana.PublicKey
	Bump            uint8
}

type ReferralAccount struct {
	Referrer       solana.PublicKey
	FeeBps         uint64
	TotalReferrals uint64
	TotalEarned    uint64
	Bump           uint8
}

type AirdropAccount struct {
	Recipient solana.PublicKey
	Amount    uint64
	Claimed   bool
	Bump      uint8
}

func decodeAccount(data []byte, disc bin.TypeID, dst interface{}) error {
	if len(data) < discriminatorSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountTooShort, len(data))
	}
	if !bytes.Equal(data[:discriminatorSize], disc[:]) {
		return ErrDiscriminatorMismatch
	}
	if err := bin.NewBorshDecoder(data[discriminatorSize:]).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %T: %w", dst, err)
	}
	return nil
}

func encodeAccount(disc bin.TypeID, src interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(src); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", src, err)
	}
	return buf.Bytes(), nil
}

func DecodeConfig(data []byte) (*ConfigAccount, error) {
	var acc ConfigAccount
	if err := decodeAccount(data, ConfigDiscriminator, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeBondingCurve(data []byte) (*BondingCurveAccount, error) {
	var acc BondingCurveAccount
	if err := decodeAccount(data, BondingCurveDiscriminator, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeReferral(data []byte) (*ReferralAccount, error) {
	var acc ReferralAccount
	if err := decodeAccount(data, ReferralDiscriminator, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func DecodeAirdrop(data []byte) (*AirdropAccount, error) {
	var acc AirdropAccount
	if err := decodeAccount(data, AirdropDiscriminator, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Encode returns the account data including the discriminator.
func (a *ConfigAccount) Encode() ([]byte, error) { return encodeAccount(ConfigDiscriminator, a) }

func (a *BondingCurveAccount) Encode() ([]byte, error) {
	return encodeAccount(BondingCurveDiscriminator, a)
}

func (a *ReferralAccount) Encode() ([]byte, error) { return encodeAccount(ReferralDiscriminator, a) }

func (a *AirdropAccount) Encode() ([]byte, error) { return encodeAccount(AirdropDiscriminator, a) }

// ToConfig converts the account into the sale model.
func (a *ConfigAccount) ToConfig() *sale.Config {
	cfg := &sale.Config{
		Admin:              a.Admin,
		TokenMint:          a.TokenMint,
		Treasury:           a.Treasury,
		DefaultReferralFee: a.DefaultReferralFee,
		IsPaused:           a.IsPaused,
	}
	if a.PendingAdmin != nil {
		pending := *a.PendingAdmin
		cfg.PendingAdmin = &pending
	}
	return cfg
}

// ToCurve converts the account into the sale model. The price table is
// revalidated so a corrupt account never reaches the pricing engine.
func (a *BondingCurveAccount) ToCurve(maxPricePoints int) (*sale.BondingCurve, error) {
	table, err := curve.NewTable(a.PricePoints, maxPricePoints)
	if err != nil {
		return nil, fmt.Errorf("bonding curve price table: %w", err)
	}
	state := sale.MigrationState(a.Migration)
	if state > sale.WindowClosed {
		return nil, fmt.Errorf("unknown migration state %d", a.Migration)
	}
	return &sale.BondingCurve{
		TotalSoldSupply: a.TotalSoldSupply,
		TotalSolRaised:  a.TotalSolRaised,
		SolReserve:      a.SolReserve,
		PricePoints:     table,
		Migration:       state,
		Pool:            a.Pool,
	}, nil
}

func (a *ReferralAccount) ToReferral() *sale.Referral {
	return &sale.Referral{
		Referrer:       a.Referrer,
		FeeBps:         a.FeeBps,
		TotalReferrals: a.TotalReferrals,
		TotalEarned:    a.TotalEarned,
	}
}

func (a *AirdropAccount) ToAirdrop() *sale.Airdrop {
	status := sale.Unclaimed
	if a.Claimed {
		status = sale.Claimed
	}
	return &sale.Airdrop{Recipient: a.Recipient, Amount: a.Amount, Status: status}
}
