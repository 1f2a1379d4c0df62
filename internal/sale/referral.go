package sale

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/events"
)

// UpdateReferralFeeArgs changes the default fee when Referrer is nil, or the
// fee of one referral record otherwise.
type UpdateReferralFeeArgs struct {
	FeeBps   uint64
	Referrer *solana.PublicKey
}

func (tx *txn) createReferral(referrer solana.PublicKey, feeOverride *uint64) (*Referral, error) {
	if err := requireSigner(referrer); err != nil {
		return nil, err
	}
	cfg, err := requireConfig(tx.st)
	if err != nil {
		return nil, err
	}
	if _, exists := tx.st.Referrals[referrer]; exists {
		return nil, ErrReferralAlreadyExists
	}

	fee := cfg.DefaultReferralFee
	if feeOverride != nil {
		fee = *feeOverride
	}
	if fee > tx.params.MaxFeeBps {
		return nil, ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", fee, tx.params.MaxFeeBps)
	}

	ref := &Referral{Referrer: referrer, FeeBps: fee}
	tx.st.Referrals[referrer] = ref
	tx.emit(&events.ReferralCreatedEvent{
		Referrer: referrer,
		FeeBps:   fee,
		Time:     tx.now,
	})

	out := *ref
	return &out, nil
}

func (tx *txn) updateReferralFee(admin solana.PublicKey, args UpdateReferralFeeArgs) error {
	cfg, err := requireAdmin(tx.st, admin)
	if err != nil {
		return err
	}
	if args.FeeBps > tx.params.MaxFeeBps {
		return ErrInvalidReferralFee.Wrapf("%d bps, maximum %d", args.FeeBps, tx.params.MaxFeeBps)
	}

	ev := &events.ReferralFeeUpdatedEvent{NewFee: args.FeeBps, Time: tx.now}
	if args.Referrer == nil {
		ev.OldFee = cfg.DefaultReferralFee
		cfg.DefaultReferralFee = args.FeeBps
	} else {
		ref, ok := tx.st.Referrals[*args.Referrer]
		if !ok {
			return ErrReferralNotFound
		}
		ev.Referrer = ref.Referrer
		ev.OldFee = ref.FeeBps
		ref.FeeBps = args.FeeBps
	}
	tx.emit(ev)
	return nil
}
