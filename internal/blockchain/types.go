// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// Client is the RPC surface used by the Yozoon client.
type Client interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// GetAccountData returns the raw account data or ErrAccountNotFound.
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	// GetMultipleAccountsData returns one entry per key, nil for missing accounts.
	GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error
	// GetTransactionLogs returns the program logs of a landed transaction.
	GetTransactionLogs(ctx context.Context, signature solana.Signature) ([]string, error)
}
