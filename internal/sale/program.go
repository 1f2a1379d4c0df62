// ==============================
// File: internal/sale/program.go
// ==============================
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/events"
)

// Program executes sale instructions against a Store. Each instruction runs
// on a working copy inside a single Store.Update, so it either commits fully
// or leaves no trace. Events are published only after commit.
type Program struct {
	store     Store
	venue     LiquidityVenue
	publisher events.Publisher
	params    Params
	now       func() time.Time
	logger    *zap.Logger
}

// Option customizes a Program.
type Option func(*Program)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Program) { p.now = now }
}

// WithPublisher forwards committed events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Program) { p.publisher = pub }
}

// NewProgram wires a Program. venue may be nil, in which case migration fails.
func NewProgram(store Store, venue LiquidityVenue, params Params, logger *zap.Logger, opts ...Option) (*Program, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	p := &Program{
		store:  store,
		venue:  venue,
		params: params,
		now:    time.Now,
		logger: logger.Named("sale"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Params returns the constants the program was built with.
func (p *Program) Params() Params { return p.params }

// txn is the per-instruction context handed to the state transition code.
type txn struct {
	st     *State
	params Params
	venue  LiquidityVenue
	now    int64
	events []events.Event
}

func (tx *txn) emit(e events.Event) {
	tx.events = append(tx.events, e)
}

func (p *Program) execute(ctx context.Context, op string, signer solana.PublicKey, fn func(tx *txn) error) error {
	log := p.logger.With(zap.String("instruction", op), zap.String("signer", signer.String()))

	var committed []events.Event
	err := p.store.Update(ctx, func(st *State) ([]events.Event, error) {
		tx := &txn{st: st, params: p.params, venue: p.venue, now: p.now().Unix()}
		if err := fn(tx); err != nil {
			return nil, err
		}
		committed = tx.events
		return tx.events, nil
	})
	if err != nil {
		if perr, ok := AsError(err); ok {
			log.Warn("Instruction rejected",
				zap.Uint32("code", uint32(perr.Code)),
				zap.String("name", perr.Name),
				zap.Error(err))
		} else {
			log.Error("Instruction failed", zap.Error(err))
		}
		return err
	}

	log.Debug("Instruction committed", zap.Int("events", len(committed)))
	p.publish(committed)
	return nil
}

func (p *Program) publish(evs []events.Event) {
	if p.publisher == nil {
		return
	}
	for _, e := range evs {
		if err := p.publisher.Publish(e); err != nil {
			p.logger.Warn("Failed to publish event",
				zap.String("event_type", string(e.Type())),
				zap.Error(err))
		}
	}
}

// Snapshot returns a copy of the committed state.
func (p *Program) Snapshot(ctx context.Context) (*State, error) {
	st, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// InitializeMintArgs carries the accounts and argument of initializeMint.
type InitializeMintArgs struct {
	TokenMint          solana.PublicKey
	Treasury           solana.PublicKey
	DefaultReferralFee uint64
}

func (p *Program) InitializeMint(ctx context.Context, signer solana.PublicKey, args InitializeMintArgs) error {
	return p.execute(ctx, "initialize_mint", signer, func(tx *txn) error {
		return tx.initializeMint(signer, args)
	})
}

func (p *Program) InitializeBondingCurve(ctx context.Context, signer solana.PublicKey, points []curve.PricePoint) error {
	return p.execute(ctx, "initialize_bonding_curve", signer, func(tx *txn) error {
		return tx.initializeBondingCurve(signer, points)
	})
}

func (p *Program) BuyTokens(ctx context.Context, buyer solana.PublicKey, args BuyArgs) (*BuyResult, error) {
	var res *BuyResult
	err := p.execute(ctx, "buy_tokens", buyer, func(tx *txn) (err error) {
		res, err = tx.buy(buyer, args, nil)
		return err
	})
	return res, err
}

func (p *Program) BuyTokensWithReferral(ctx context.Context, buyer solana.PublicKey, args BuyArgs, referrer solana.PublicKey) (*BuyResult, error) {
	var res *BuyResult
	err := p.execute(ctx, "buy_tokens_with_referral", buyer, func(tx *txn) (err error) {
		res, err = tx.buy(buyer, args, &referrer)
		return err
	})
	return res, err
}

func (p *Program) SellTokens(ctx context.Context, seller solana.PublicKey, args SellArgs) (*SellResult, error) {
	var res *SellResult
	err := p.execute(ctx, "sell_tokens", seller, func(tx *txn) (err error) {
		res, err = tx.sell(seller, args)
		return err
	})
	return res, err
}

// CalculateCurrentPrice reads the price at the current supply and records a
// PriceCalculated event.
func (p *Program) CalculateCurrentPrice(ctx context.Context) (uint64, error) {
	var price uint64
	err := p.execute(ctx, "calculate_current_price", solana.PublicKey{}, func(tx *txn) (err error) {
		price, err = tx.calculateCurrentPrice()
		return err
	})
	return price, err
}

// CreateReferral registers signer as a referrer. feeOverride nil applies the
// configured default fee.
func (p *Program) CreateReferral(ctx context.Context, referrer solana.PublicKey, feeOverride *uint64) (*Referral, error) {
	var out *Referral
	err := p.execute(ctx, "create_referral", referrer, func(tx *txn) (err error) {
		out, err = tx.createReferral(referrer, feeOverride)
		return err
	})
	return out, err
}

func (p *Program) UpdateReferralFee(ctx context.Context, admin solana.PublicKey, args UpdateReferralFeeArgs) error {
	return p.execute(ctx, "update_referral_fee", admin, func(tx *txn) error {
		return tx.updateReferralFee(admin, args)
	})
}

func (p *Program) CreateAirdrop(ctx context.Context, admin, recipient solana.PublicKey, amount uint64) error {
	return p.execute(ctx, "create_airdrop", admin, func(tx *txn) error {
		return tx.createAirdrop(admin, recipient, amount)
	})
}

// ClaimAirdrop mints the recipient's entitlement and returns the amount.
func (p *Program) ClaimAirdrop(ctx context.Context, recipient solana.PublicKey) (uint64, error) {
	var amount uint64
	err := p.execute(ctx, "claim_airdrop", recipient, func(tx *txn) (err error) {
		amount, err = tx.claimAirdrop(recipient)
		return err
	})
	return amount, err
}

func (p *Program) PauseProtocol(ctx context.Context, admin solana.PublicKey) error {
	return p.execute(ctx, "pause_protocol", admin, func(tx *txn) error {
		return tx.setPaused(admin, true)
	})
}

func (p *Program) UnpauseProtocol(ctx context.Context, admin solana.PublicKey) error {
	return p.execute(ctx, "unpause_protocol", admin, func(tx *txn) error {
		return tx.setPaused(admin, false)
	})
}

func (p *Program) TransferAdmin(ctx context.Context, admin, newAdmin solana.PublicKey) error {
	return p.execute(ctx, "transfer_admin", admin, func(tx *txn) error {
		return tx.transferAdmin(admin, newAdmin)
	})
}

func (p *Program) AcceptAdmin(ctx context.Context, signer solana.PublicKey) error {
	return p.execute(ctx, "accept_admin", signer, func(tx *txn) error {
		return tx.acceptAdmin(signer)
	})
}

func (p *Program) UpdateTreasury(ctx context.Context, admin, treasury solana.PublicKey) error {
	return p.execute(ctx, "update_treasury", admin, func(tx *txn) error {
		return tx.updateTreasury(admin, treasury)
	})
}

// MigrateToRaydium hands the reserves to the liquidity venue and freezes the
// curve.
func (p *Program) MigrateToRaydium(ctx context.Context, admin solana.PublicKey) (*PoolReceipt, error) {
	var receipt *PoolReceipt
	err := p.execute(ctx, "migrate_to_raydium", admin, func(tx *txn) (err error) {
		receipt, err = tx.migrate(admin)
		return err
	})
	return receipt, err
}
