// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/blockchain"
)

const (
	defaultRetries             = 3
	defaultConfirmationTimeout = 60 * time.Second
)

var errNotConfirmed = errors.New("transaction not confirmed yet")

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
// Reads are retried with exponential backoff; sends are never retried here.
type Client struct {
	rpc        *rpc.Client
	logger     *zap.Logger
	commitment rpc.CommitmentType
	retries    uint
	confirmBy  time.Duration
}

// Option настраивает Client.
type Option func(*Client)

func WithCommitment(c rpc.CommitmentType) Option {
	return func(cl *Client) { cl.commitment = c }
}

// WithRetries sets how many times a read is attempted.
func WithRetries(n uint) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.retries = n
		}
	}
}

func WithConfirmationTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.confirmBy = d
		}
	}
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:        rpc.New(rpcURL),
		logger:     logger.Named("solbc-client"),
		commitment: rpc.CommitmentConfirmed,
		retries:    defaultRetries,
		confirmBy:  defaultConfirmationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RPC exposes the underlying solana-go client.
func (c *Client) RPC() *rpc.Client { return c.rpc }

func retryRead[T any](ctx context.Context, c *Client, method string, op backoff.Operation[T]) (T, error) {
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying RPC read",
			zap.String("method", method),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.retries),
		backoff.WithNotify(notify))
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	return retryRead(ctx, c, "getLatestBlockhash", func() (solana.Hash, error) {
		result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return solana.Hash{}, err
		}
		return result.Value.Blockhash, nil
	})
}

// GetAccountData returns the raw data of an account.
func (c *Client) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	data, err := retryRead(ctx, c, "getAccountInfo", func() ([]byte, error) {
		result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, backoff.Permanent(blockchain.ErrAccountNotFound)
		}
		if err != nil {
			return nil, err
		}
		if result == nil || result.Value == nil {
			return nil, backoff.Permanent(blockchain.ErrAccountNotFound)
		}
		return result.Value.Data.GetBinary(), nil
	})
	if err != nil {
		c.logger.Debug("GetAccountData error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, fmt.Errorf("account %s: %w", pubkey, err)
	}
	return data, nil
}

// GetMultipleAccountsData получает данные нескольких аккаунтов за один запрос.
func (c *Client) GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}
	return retryRead(ctx, c, "getMultipleAccounts", func() ([][]byte, error) {
		res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		})
		if err != nil {
			return nil, err
		}
		out := make([][]byte, len(pubkeys))
		for i, acc := range res.Value {
			if i < len(out) && acc != nil {
				out[i] = acc.Data.GetBinary()
			}
		}
		return out, nil
	})
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	return retryRead(ctx, c, "getBalance", func() (uint64, error) {
		result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
		if err != nil {
			return 0, err
		}
		return result.Value, nil
	})
}

// WaitForTransactionConfirmation polls the signature status until it
// reaches commitment, the transaction fails, or the timeout expires.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
		if err != nil {
			c.logger.Warn("Error getting signature statuses", zap.Error(err))
			return struct{}{}, err
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			return struct{}{}, errNotConfirmed
		}
		status := statuses.Value[0]
		if status.Err != nil {
			return struct{}{}, backoff.Permanent(&TransactionError{Signature: signature, Err: status.Err})
		}
		if reached(status.ConfirmationStatus, commitment) {
			return struct{}{}, nil
		}
		return struct{}{}, errNotConfirmed
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(c.confirmBy))
	if err != nil {
		return fmt.Errorf("confirm %s: %w", signature, err)
	}
	return nil
}

// GetTransactionLogs fetches the log messages of a confirmed transaction.
func (c *Client) GetTransactionLogs(ctx context.Context, signature solana.Signature) ([]string, error) {
	maxVersion := uint64(0)
	return retryRead(ctx, c, "getTransaction", func() ([]string, error) {
		result, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     c.commitment,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, errNotConfirmed
		}
		if err != nil {
			return nil, err
		}
		if result == nil || result.Meta == nil {
			return nil, nil
		}
		return result.Meta.LogMessages, nil
	})
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return want == rpc.CommitmentProcessed
	}
	return false
}

// TransactionError is a transaction that landed but failed.
type TransactionError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
