// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType names an event. Values match the event names emitted by the
// on-chain program, so they double as discriminator seeds.
type EventType string

const (
	// Trading
	TokenPurchase   EventType = "TokenPurchase"
	TokenSale       EventType = "TokenSale"
	PriceCalculated EventType = "PriceCalculated"

	// Referrals
	ReferralCreated    EventType = "ReferralCreated"
	ReferralPayment    EventType = "ReferralPayment"
	ReferralFeeUpdated EventType = "ReferralFeeUpdated"

	// Airdrops
	AirdropCreated EventType = "AirdropCreated"
	AirdropClaimed EventType = "AirdropClaimed"

	// Migration
	MigrationReady     EventType = "MigrationReady"
	MigrationCompleted EventType = "MigrationCompleted"

	// Administration
	MintInitialized         EventType = "MintInitialized"
	BondingCurveInitialized EventType = "BondingCurveInitialized"
	PauseStateChanged       EventType = "PauseStateChanged"
	AdminTransferInitiated  EventType = "AdminTransferInitiated"
	AdminTransferCompleted  EventType = "AdminTransferCompleted"
	TreasuryUpdated         EventType = "TreasuryUpdated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// unixTime converts the unix seconds carried by every event.
func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// TokenPurchaseEvent is emitted for every successful buy.
type TokenPurchaseEvent struct {
	Buyer        solana.PublicKey  `json:"buyer"`
	SolAmount    uint64            `json:"solAmount"`
	TokensIssued uint64            `json:"tokensIssued"`
	Referrer     *solana.PublicKey `json:"referrer,omitempty" bin:"optional"`
	ReferralFee  uint64            `json:"referralFee"`
	Price        uint64            `json:"price"`
	Time         int64             `json:"timestamp"`
}

func (e *TokenPurchaseEvent) Type() EventType      { return TokenPurchase }
func (e *TokenPurchaseEvent) Timestamp() time.Time { return unixTime(e.Time) }

// TokenSaleEvent is emitted for every successful sell.
type TokenSaleEvent struct {
	Seller      solana.PublicKey `json:"seller"`
	TokenAmount uint64           `json:"tokenAmount"`
	SolReturned uint64           `json:"solReturned"`
	Price       uint64           `json:"price"`
	Time        int64            `json:"timestamp"`
}

func (e *TokenSaleEvent) Type() EventType      { return TokenSale }
func (e *TokenSaleEvent) Timestamp() time.Time { return unixTime(e.Time) }

type PriceCalculatedEvent struct {
	Supply uint64 `json:"supply"`
	Price  uint64 `json:"price"`
	Time   int64  `json:"timestamp"`
}

func (e *PriceCalculatedEvent) Type() EventType      { return PriceCalculated }
func (e *PriceCalculatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type ReferralCreatedEvent struct {
	Referrer solana.PublicKey `json:"referrer"`
	FeeBps   uint64           `json:"feeBps"`
	Time     int64            `json:"timestamp"`
}

func (e *ReferralCreatedEvent) Type() EventType      { return ReferralCreated }
func (e *ReferralCreatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

// ReferralPaymentEvent records the share of a purchase routed to a referrer.
type ReferralPaymentEvent struct {
	Referrer solana.PublicKey `json:"referrer"`
	Buyer    solana.PublicKey `json:"buyer"`
	Amount   uint64           `json:"amount"`
	Time     int64            `json:"timestamp"`
}

func (e *ReferralPaymentEvent) Type() EventType      { return ReferralPayment }
func (e *ReferralPaymentEvent) Timestamp() time.Time { return unixTime(e.Time) }

// ReferralFeeUpdatedEvent carries the zero key as Referrer when the default
// fee changed.
type ReferralFeeUpdatedEvent struct {
	Referrer solana.PublicKey `json:"referrer"`
	OldFee   uint64           `json:"oldFee"`
	NewFee   uint64           `json:"newFee"`
	Time     int64            `json:"timestamp"`
}

func (e *ReferralFeeUpdatedEvent) Type() EventType      { return ReferralFeeUpdated }
func (e *ReferralFeeUpdatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type AirdropCreatedEvent struct {
	Recipient solana.PublicKey `json:"recipient"`
	Amount    uint64           `json:"amount"`
	Time      int64            `json:"timestamp"`
}

func (e *AirdropCreatedEvent) Type() EventType      { return AirdropCreated }
func (e *AirdropCreatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type AirdropClaimedEvent struct {
	Recipient solana.PublicKey `json:"recipient"`
	Amount    uint64           `json:"amount"`
	Time      int64            `json:"timestamp"`
}

func (e *AirdropClaimedEvent) Type() EventType      { return AirdropClaimed }
func (e *AirdropClaimedEvent) Timestamp() time.Time { return unixTime(e.Time) }

// MigrationReadyEvent is emitted once, when raised SOL enters the migration
// window.
type MigrationReadyEvent struct {
	TotalSolRaised uint64 `json:"totalSolRaised"`
	Time           int64  `json:"timestamp"`
}

func (e *MigrationReadyEvent) Type() EventType      { return MigrationReady }
func (e *MigrationReadyEvent) Timestamp() time.Time { return unixTime(e.Time) }

type MigrationCompletedEvent struct {
	Admin       solana.PublicKey `json:"admin"`
	Pool        solana.PublicKey `json:"pool"`
	TotalTokens uint64           `json:"totalTokens"`
	TotalSol    uint64           `json:"totalSol"`
	Time        int64            `json:"timestamp"`
}

func (e *MigrationCompletedEvent) Type() EventType      { return MigrationCompleted }
func (e *MigrationCompletedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type MintInitializedEvent struct {
	Admin solana.PublicKey `json:"admin"`
	Mint  solana.PublicKey `json:"mint"`
	Time  int64            `json:"timestamp"`
}

func (e *MintInitializedEvent) Type() EventType      { return MintInitialized }
func (e *MintInitializedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type BondingCurveInitializedEvent struct {
	Admin       solana.PublicKey `json:"admin"`
	PricePoints uint32           `json:"pricePoints"`
	Time        int64            `json:"timestamp"`
}

func (e *BondingCurveInitializedEvent) Type() EventType      { return BondingCurveInitialized }
func (e *BondingCurveInitializedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type PauseStateChangedEvent struct {
	Paused bool             `json:"paused"`
	Admin  solana.PublicKey `json:"admin"`
	Time   int64            `json:"timestamp"`
}

func (e *PauseStateChangedEvent) Type() EventType      { return PauseStateChanged }
func (e *PauseStateChangedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type AdminTransferInitiatedEvent struct {
	CurrentAdmin  solana.PublicKey `json:"currentAdmin"`
	ProposedAdmin solana.PublicKey `json:"proposedAdmin"`
	Time          int64            `json:"timestamp"`
}

func (e *AdminTransferInitiatedEvent) Type() EventType      { return AdminTransferInitiated }
func (e *AdminTransferInitiatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type AdminTransferCompletedEvent struct {
	OldAdmin solana.PublicKey `json:"oldAdmin"`
	NewAdmin solana.PublicKey `json:"newAdmin"`
	Time     int64            `json:"timestamp"`
}

func (e *AdminTransferCompletedEvent) Type() EventType      { return AdminTransferCompleted }
func (e *AdminTransferCompletedEvent) Timestamp() time.Time { return unixTime(e.Time) }

type TreasuryUpdatedEvent struct {
	OldTreasury solana.PublicKey `json:"oldTreasury"`
	NewTreasury solana.PublicKey `json:"newTreasury"`
	Time        int64            `json:"timestamp"`
}

func (e *TreasuryUpdatedEvent) Type() EventType      { return TreasuryUpdated }
func (e *TreasuryUpdatedEvent) Timestamp() time.Time { return unixTime(e.Time) }

// New returns an empty event value for t, ready to be decoded into.
func New(t EventType) (Event, bool) {
	switch t {
	case TokenPurchase:
		return &TokenPurchaseEvent{}, true
	case TokenSale:
		return &TokenSaleEvent{}, true
	case PriceCalculated:
		return &PriceCalculatedEvent{}, true
	case ReferralCreated:
		return &ReferralCreatedEvent{}, true
	case ReferralPayment:
		return &ReferralPaymentEvent{}, true
	case ReferralFeeUpdated:
		return &ReferralFeeUpdatedEvent{}, true
	case AirdropCreated:
		return &AirdropCreatedEvent{}, true
	case AirdropClaimed:
		return &AirdropClaimedEvent{}, true
	case MigrationReady:
		return &MigrationReadyEvent{}, true
	case MigrationCompleted:
		return &MigrationCompletedEvent{}, true
	case MintInitialized:
		return &MintInitializedEvent{}, true
	case BondingCurveInitialized:
		return &BondingCurveInitializedEvent{}, true
	case PauseStateChanged:
		return &PauseStateChangedEvent{}, true
	case AdminTransferInitiated:
		return &AdminTransferInitiatedEvent{}, true
	case AdminTransferCompleted:
		return &AdminTransferCompletedEvent{}, true
	case TreasuryUpdated:
		return &TreasuryUpdatedEvent{}, true
	}
	return nil, false
}

// AllTypes lists every event type in a stable order.
func AllTypes() []EventType {
	return []EventType{
		TokenPurchase, TokenSale, PriceCalculated,
		ReferralCreated, ReferralPayment, ReferralFeeUpdated,
		AirdropCreated, AirdropClaimed,
		MigrationReady, MigrationCompleted,
		MintInitialized, BondingCurveInitialized, PauseStateChanged,
		AdminTransferInitiated, AdminTransferCompleted, TreasuryUpdated,
	}
}
