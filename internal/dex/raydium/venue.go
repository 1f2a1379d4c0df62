// internal/dex/raydium/venue.go
package raydium

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

var (
	ErrPoolExists   = errors.New("pool already exists for mint")
	ErrEmptyReserve = errors.New("pool needs both token and SOL liquidity")
)

type createPoolData struct {
	Index       uint8
	TokenAmount uint64
	SolAmount   uint64
	FeeRate     uint64
	LockPeriod  uint64
}

type createFeeKeyData struct {
	Index         uint8
	FeePercentage uint64
}

// CreatePoolPayload encodes the pool creation CPI: index byte followed by
// token amount, SOL amount, fee rate and lock period, all little endian.
func CreatePoolPayload(req sale.PoolRequest) ([]byte, error) {
	return encode(&createPoolData{
		Index:       CreatePoolInstruction,
		TokenAmount: req.TokenAmount,
		SolAmount:   req.SolAmount,
		FeeRate:     req.FeeBps,
		LockPeriod:  req.LockPeriod,
	})
}

// CreateFeeKeyPayload encodes the fee key CPI.
func CreateFeeKeyPayload(feeShareBps uint64) ([]byte, error) {
	return encode(&createFeeKeyData{Index: CreateFeeKeyInstruction, FeePercentage: feeShareBps})
}

func encode(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Pool is a pool created through the venue.
type Pool struct {
	Address       solana.PublicKey
	FeeKey        solana.PublicKey
	Mint          solana.PublicKey
	Owner         solana.PublicKey
	TokenAmount   uint64
	SolAmount     uint64
	FeeBps        uint64
	LockPeriod    uint64
	PoolPayload   []byte
	FeeKeyPayload []byte
}

// Venue derives the pool accounts the program would create at migration and
// records the resulting pools. It implements sale.LiquidityVenue: an identical
// request for a mint that already has a pool returns the recorded receipt, a
// different one fails with ErrPoolExists.
type Venue struct {
	addrs  yozoon.Addresses
	logger *zap.Logger

	mu    sync.Mutex
	pools map[solana.PublicKey]*Pool
}

var _ sale.LiquidityVenue = (*Venue)(nil)

func NewVenue(addrs yozoon.Addresses, logger *zap.Logger) *Venue {
	return &Venue{
		addrs:  addrs,
		logger: logger.Named("raydium-venue"),
		pools:  make(map[solana.PublicKey]*Pool),
	}
}

func (v *Venue) CreatePool(req sale.PoolRequest) (sale.PoolReceipt, error) {
	if req.TokenMint.IsZero() {
		return sale.PoolReceipt{}, errors.New("token mint is required")
	}
	if req.TokenAmount == 0 || req.SolAmount == 0 {
		return sale.PoolReceipt{}, fmt.Errorf("%w: tokens %d, lamports %d", ErrEmptyReserve, req.TokenAmount, req.SolAmount)
	}

	pool, _, err := v.addrs.RaydiumPool(req.TokenMint)
	if err != nil {
		return sale.PoolReceipt{}, err
	}
	feeKey, _, err := v.addrs.FeeKeyNFT(pool)
	if err != nil {
		return sale.PoolReceipt{}, err
	}
	poolPayload, err := CreatePoolPayload(req)
	if err != nil {
		return sale.PoolReceipt{}, err
	}
	feePayload, err := CreateFeeKeyPayload(FullFeeShareBps)
	if err != nil {
		return sale.PoolReceipt{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, exists := v.pools[pool]; exists {
		// повтор того же запроса (коммит в хранилище не прошёл) получает тот же пул
		if existing.matches(req) {
			v.logger.Info("Liquidity pool already created for identical request",
				zap.String("pool", pool.String()),
				zap.String("mint", req.TokenMint.String()))
			return existing.receipt(), nil
		}
		return sale.PoolReceipt{}, fmt.Errorf("%w: %s", ErrPoolExists, req.TokenMint)
	}
	v.pools[pool] = &Pool{
		Address:       pool,
		FeeKey:        feeKey,
		Mint:          req.TokenMint,
		Owner:         req.Admin,
		TokenAmount:   req.TokenAmount,
		SolAmount:     req.SolAmount,
		FeeBps:        req.FeeBps,
		LockPeriod:    req.LockPeriod,
		PoolPayload:   poolPayload,
		FeeKeyPayload: feePayload,
	}

	v.logger.Info("Created liquidity pool",
		zap.String("pool", pool.String()),
		zap.String("fee_key", feeKey.String()),
		zap.String("mint", req.TokenMint.String()),
		zap.Uint64("tokens", req.TokenAmount),
		zap.Uint64("lamports", req.SolAmount))

	return v.pools[pool].receipt(), nil
}

func (p *Pool) matches(req sale.PoolRequest) bool {
	return p.Mint == req.TokenMint &&
		p.Owner == req.Admin &&
		p.TokenAmount == req.TokenAmount &&
		p.SolAmount == req.SolAmount &&
		p.FeeBps == req.FeeBps &&
		p.LockPeriod == req.LockPeriod
}

func (p *Pool) receipt() sale.PoolReceipt {
	return sale.PoolReceipt{Pool: p.Address, FeeKey: p.FeeKey, LockedLiquidity: p.SolAmount}
}

// Pool returns a copy of the pool created for mint.
func (v *Venue) Pool(mint solana.PublicKey) (*Pool, bool) {
	addr, _, err := v.addrs.RaydiumPool(mint)
	if err != nil {
		return nil, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[addr]
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}
