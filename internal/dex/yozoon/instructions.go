// ==========================================
// File: internal/dex/yozoon/instructions.go
// ==========================================
package yozoon

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/curve"
)

// Instruction names as declared by the program.
const (
	IxInitializeMint         = "initialize_mint"
	IxInitializeBondingCurve = "initialize_bonding_curve"
	IxBuyTokens              = "buy_tokens"
	IxBuyTokensWithReferral  = "buy_tokens_with_referral"
	IxSellTokens             = "sell_tokens"
	IxCalculateCurrentPrice  = "calculate_current_price"
	IxCreateReferral         = "create_referral"
	IxUpdateReferralFee      = "update_referral_fee"
	IxCreateAirdrop          = "create_airdrop"
	IxClaimAirdrop           = "claim_airdrop"
	IxPauseProtocol          = "pause_protocol"
	IxUnpauseProtocol        = "unpause_protocol"
	IxTransferAdmin          = "transfer_admin"
	IxAcceptAdmin            = "accept_admin"
	IxUpdateTreasury         = "update_treasury"
	IxMigrateToRaydium       = "migrate_to_raydium"
)

var instructionNames = []string{
	IxInitializeMint, IxInitializeBondingCurve, IxBuyTokens, IxBuyTokensWithReferral,
	IxSellTokens, IxCalculateCurrentPrice, IxCreateReferral, IxUpdateReferralFee,
	IxCreateAirdrop, IxClaimAirdrop, IxPauseProtocol, IxUnpauseProtocol,
	IxTransferAdmin, IxAcceptAdmin, IxUpdateTreasury, IxMigrateToRaydium,
}

var instructionsByDiscriminator = func() map[bin.TypeID]string {
	m := make(map[bin.TypeID]string, len(instructionNames))
	for _, name := range instructionNames {
		m[InstructionDiscriminator(name)] = name
	}
	return m
}()

// InstructionDiscriminator returns the 8-byte Anchor sighash of an instruction.
func InstructionDiscriminator(name string) bin.TypeID {
	return bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, name)
}

// InstructionName resolves instruction data back to the instruction name.
func InstructionName(data []byte) (string, bool) {
	if len(data) < discriminatorSize {
		return "", false
	}
	name, ok := instructionsByDiscriminator[bin.TypeIDFromBytes(data[:discriminatorSize])]
	return name, ok
}

type initializeMintArgs struct {
	DefaultReferralFee uint64
}

type initializeBondingCurveArgs struct {
	PricePoints []curve.PricePoint
}

type buyArgs struct {
	SolAmount         uint64
	MinTokensExpected uint64
}

type sellArgs struct {
	TokenAmount    uint64
	MinSolExpected uint64
}

type createReferralArgs struct {
	FeeOverride *uint64 `bin:"optional"`
}

type updateReferralFeeArgs struct {
	FeeBps   uint64
	Referrer *solana.PublicKey `bin:"optional"`
}

type createAirdropArgs struct {
	Recipient solana.PublicKey
	Amount    uint64
}

type pubkeyArg struct {
	Key solana.PublicKey
}

// Builder assembles program instructions with the account order the
// program expects.
type Builder struct {
	addrs Addresses
}

func NewBuilder(addrs Addresses) *Builder {
	return &Builder{addrs: addrs}
}

func (b *Builder) Addresses() Addresses { return b.addrs }

func (b *Builder) build(name string, args interface{}, accounts []*solana.AccountMeta) (solana.Instruction, error) {
	disc := InstructionDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", name, err)
		}
	}
	return solana.NewInstruction(b.addrs.ProgramID, accounts, buf.Bytes()), nil
}

func (b *Builder) config() (solana.PublicKey, error) {
	addr, _, err := b.addrs.Config()
	return addr, err
}

func (b *Builder) configAndCurve() (solana.PublicKey, solana.PublicKey, error) {
	cfg, _, err := b.addrs.Config()
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	bc, _, err := b.addrs.BondingCurve()
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return cfg, bc, nil
}

// InitializeMint creates the config PDA and the token mint. mint must be a
// fresh keypair that signs the transaction.
func (b *Builder) InitializeMint(admin, mint, treasury solana.PublicKey, defaultReferralFee uint64) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	return b.build(IxInitializeMint, &initializeMintArgs{DefaultReferralFee: defaultReferralFee}, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, true, false),
		solana.NewAccountMeta(mint, true, true),
		solana.NewAccountMeta(treasury, false, false),
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(SysvarRentPubkey, false, false),
	})
}

func (b *Builder) InitializeBondingCurve(admin solana.PublicKey, points []curve.PricePoint) (solana.Instruction, error) {
	cfg, bc, err := b.configAndCurve()
	if err != nil {
		return nil, err
	}
	return b.build(IxInitializeBondingCurve, &initializeBondingCurveArgs{PricePoints: points}, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, false, false),
		solana.NewAccountMeta(bc, true, false),
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	})
}

// TradeAccounts are the accounts shared by buys and sells.
type TradeAccounts struct {
	Trader   solana.PublicKey
	Mint     solana.PublicKey
	Treasury solana.PublicKey
}

func (b *Builder) tradeMetas(acc TradeAccounts) ([]*solana.AccountMeta, error) {
	cfg, bc, err := b.configAndCurve()
	if err != nil {
		return nil, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(acc.Trader, acc.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive trader token account: %w", err)
	}
	return []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, true, false),
		solana.NewAccountMeta(bc, true, false),
		solana.NewAccountMeta(acc.Mint, true, false),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(acc.Trader, true, true),
		solana.NewAccountMeta(acc.Treasury, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}, nil
}

func (b *Builder) BuyTokens(acc TradeAccounts, solAmount, minTokensExpected uint64) (solana.Instruction, error) {
	metas, err := b.tradeMetas(acc)
	if err != nil {
		return nil, err
	}
	return b.build(IxBuyTokens, &buyArgs{SolAmount: solAmount, MinTokensExpected: minTokensExpected}, metas)
}

// BuyTokensWithReferral appends the referral record and the referrer wallet
// that receives the fee.
func (b *Builder) BuyTokensWithReferral(acc TradeAccounts, referrer solana.PublicKey, solAmount, minTokensExpected uint64) (solana.Instruction, error) {
	metas, err := b.tradeMetas(acc)
	if err != nil {
		return nil, err
	}
	referral, _, err := b.addrs.Referral(referrer)
	if err != nil {
		return nil, err
	}
	metas = append(metas,
		solana.NewAccountMeta(referral, true, false),
		solana.NewAccountMeta(referrer, true, false),
	)
	return b.build(IxBuyTokensWithReferral, &buyArgs{SolAmount: solAmount, MinTokensExpected: minTokensExpected}, metas)
}

// SellTokens pays out of the bonding curve reserve, so the treasury slot is
// read only.
func (b *Builder) SellTokens(acc TradeAccounts, tokenAmount, minSolExpected uint64) (solana.Instruction, error) {
	metas, err := b.tradeMetas(acc)
	if err != nil {
		return nil, err
	}
	metas[5].IsWritable = false
	return b.build(IxSellTokens, &sellArgs{TokenAmount: tokenAmount, MinSolExpected: minSolExpected}, metas)
}

func (b *Builder) CalculateCurrentPrice() (solana.Instruction, error) {
	_, bc, err := b.configAndCurve()
	if err != nil {
		return nil, err
	}
	return b.build(IxCalculateCurrentPrice, nil, []*solana.AccountMeta{
		solana.NewAccountMeta(bc, false, false),
	})
}

func (b *Builder) CreateReferral(referrer solana.PublicKey, feeOverride *uint64) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	referral, _, err := b.addrs.Referral(referrer)
	if err != nil {
		return nil, err
	}
	return b.build(IxCreateReferral, &createReferralArgs{FeeOverride: feeOverride}, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, false, false),
		solana.NewAccountMeta(referral, true, false),
		solana.NewAccountMeta(referrer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	})
}

// UpdateReferralFee changes the default fee when referrer is nil. Anchor
// marks an absent optional account with the program id.
func (b *Builder) UpdateReferralFee(admin solana.PublicKey, feeBps uint64, referrer *solana.PublicKey) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	referral := solana.NewAccountMeta(b.addrs.ProgramID, false, false)
	if referrer != nil {
		addr, _, err := b.addrs.Referral(*referrer)
		if err != nil {
			return nil, err
		}
		referral = solana.NewAccountMeta(addr, true, false)
	}
	return b.build(IxUpdateReferralFee, &updateReferralFeeArgs{FeeBps: feeBps, Referrer: referrer}, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, true, false),
		referral,
		solana.NewAccountMeta(admin, false, true),
	})
}

func (b *Builder) CreateAirdrop(admin, recipient solana.PublicKey, amount uint64) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	airdrop, _, err := b.addrs.Airdrop(recipient)
	if err != nil {
		return nil, err
	}
	return b.build(IxCreateAirdrop, &createAirdropArgs{Recipient: recipient, Amount: amount}, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, false, false),
		solana.NewAccountMeta(airdrop, true, false),
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	})
}

func (b *Builder) ClaimAirdrop(recipient, mint solana.PublicKey) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	airdrop, _, err := b.addrs.Airdrop(recipient)
	if err != nil {
		return nil, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive recipient token account: %w", err)
	}
	return b.build(IxClaimAirdrop, nil, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, false, false),
		solana.NewAccountMeta(airdrop, true, false),
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(recipient, true, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	})
}

func (b *Builder) adminAction(name string, signer solana.PublicKey, args interface{}) (solana.Instruction, error) {
	cfg, err := b.config()
	if err != nil {
		return nil, err
	}
	return b.build(name, args, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, true, false),
		solana.NewAccountMeta(signer, false, true),
	})
}

func (b *Builder) PauseProtocol(admin solana.PublicKey) (solana.Instruction, error) {
	return b.adminAction(IxPauseProtocol, admin, nil)
}

func (b *Builder) UnpauseProtocol(admin solana.PublicKey) (solana.Instruction, error) {
	return b.adminAction(IxUnpauseProtocol, admin, nil)
}

func (b *Builder) TransferAdmin(admin, newAdmin solana.PublicKey) (solana.Instruction, error) {
	return b.adminAction(IxTransferAdmin, admin, &pubkeyArg{Key: newAdmin})
}

// AcceptAdmin must be signed by the pending admin.
func (b *Builder) AcceptAdmin(pendingAdmin solana.PublicKey) (solana.Instruction, error) {
	return b.adminAction(IxAcceptAdmin, pendingAdmin, nil)
}

func (b *Builder) UpdateTreasury(admin, treasury solana.PublicKey) (solana.Instruction, error) {
	return b.adminAction(IxUpdateTreasury, admin, &pubkeyArg{Key: treasury})
}

// MigrateToRaydium hands the reserve to the AMM through the program.
func (b *Builder) MigrateToRaydium(admin, mint solana.PublicKey) (solana.Instruction, error) {
	cfg, bc, err := b.configAndCurve()
	if err != nil {
		return nil, err
	}
	pool, _, err := b.addrs.RaydiumPool(mint)
	if err != nil {
		return nil, err
	}
	feeKey, _, err := b.addrs.FeeKeyNFT(pool)
	if err != nil {
		return nil, err
	}
	return b.build(IxMigrateToRaydium, nil, []*solana.AccountMeta{
		solana.NewAccountMeta(cfg, true, false),
		solana.NewAccountMeta(bc, true, false),
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(pool, true, false),
		solana.NewAccountMeta(feeKey, true, false),
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(RaydiumAMMProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(SysvarRentPubkey, false, false),
	})
}
