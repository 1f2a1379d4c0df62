package sale

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/events"
)

// createAirdrop is create-or-fail: an existing record, claimed or not, is
// never overwritten.
func (tx *txn) createAirdrop(admin, recipient solana.PublicKey, amount uint64) error {
	if _, err := requireAdmin(tx.st, admin); err != nil {
		return err
	}
	if recipient.IsZero() {
		return ErrInvalidAccount.Wrapf("recipient")
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, exists := tx.st.Airdrops[recipient]; exists {
		return ErrAirdropAlreadyExists
	}
	if limit := tx.params.AirdropAllocation; limit > 0 {
		created, err := tx.st.AirdropTotal()
		if err != nil {
			return err
		}
		total, err := checkedAdd(created, amount)
		if err != nil || total > limit {
			return ErrAirdropAllocationExceeded.Wrapf("allocation %d", limit)
		}
	}

	tx.st.Airdrops[recipient] = &Airdrop{Recipient: recipient, Amount: amount, Status: Unclaimed}
	tx.emit(&events.AirdropCreatedEvent{Recipient: recipient, Amount: amount, Time: tx.now})
	return nil
}

func (tx *txn) claimAirdrop(recipient solana.PublicKey) (uint64, error) {
	if err := requireSigner(recipient); err != nil {
		return 0, err
	}
	if _, err := requireConfig(tx.st); err != nil {
		return 0, err
	}
	drop, ok := tx.st.Airdrops[recipient]
	if !ok {
		return 0, ErrAirdropNotFound
	}
	if drop.Claimed() {
		return 0, ErrAirdropAlreadyClaimed
	}
	if !airdropTransitions.allows(drop.Status, Claimed) {
		return 0, ErrInvalidStateTransition
	}

	balance, err := checkedAdd(tx.st.Holdings[recipient], drop.Amount)
	if err != nil {
		return 0, err
	}
	tx.st.Holdings[recipient] = balance
	drop.Status = Claimed

	tx.emit(&events.AirdropClaimedEvent{Recipient: recipient, Amount: drop.Amount, Time: tx.now})
	return drop.Amount, nil
}
