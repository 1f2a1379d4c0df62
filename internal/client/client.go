// ==================================
// File: internal/client/client.go
// ==================================
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/blockchain"
	"github.com/rovshanmuradov/yozoon/internal/blockchain/solbc"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/wallet"
)

// Client drives the deployed program: it reads accounts, prices locally with
// the same engine the program uses and submits signed instructions.
type Client struct {
	rpc      blockchain.Client
	wallet   *wallet.Wallet
	builder  *yozoon.Builder
	params   sale.Params
	analyzer *solbc.ErrorAnalyzer
	logger   *zap.Logger

	commitment     rpc.CommitmentType
	computeUnits   uint32
	priorityFee    uint64 // micro-lamports per compute unit
	skipSimulation bool
}

type Option func(*Client)

func WithCommitment(c rpc.CommitmentType) Option {
	return func(cl *Client) { cl.commitment = c }
}

// WithComputeBudget prepends compute unit limit and price instructions.
// Zero values leave the corresponding instruction out.
func WithComputeBudget(units uint32, microLamports uint64) Option {
	return func(cl *Client) {
		cl.computeUnits = units
		cl.priorityFee = microLamports
	}
}

// WithoutSimulation sends straight away and lets the RPC node run preflight.
func WithoutSimulation() Option {
	return func(cl *Client) { cl.skipSimulation = true }
}

// TxResult is a landed transaction and the program events it emitted.
type TxResult struct {
	Signature solana.Signature
	Events    []events.Event
}

func New(rpcClient blockchain.Client, w *wallet.Wallet, programID solana.PublicKey, params sale.Params, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:        rpcClient,
		wallet:     w,
		builder:    yozoon.NewBuilder(yozoon.NewAddresses(programID)),
		params:     params,
		analyzer:   solbc.NewErrorAnalyzer(logger),
		logger:     logger.Named("yozoon-client"),
		commitment: rpc.CommitmentConfirmed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wallet returns the signing identity.
func (c *Client) Wallet() solana.PublicKey { return c.wallet.PublicKey }

func (c *Client) ProgramID() solana.PublicKey { return c.builder.Addresses().ProgramID }

func (c *Client) budget() []solana.Instruction {
	var ixs []solana.Instruction
	if c.computeUnits > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(c.computeUnits).Build())
	}
	if c.priorityFee > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(c.priorityFee).Build())
	}
	return ixs
}

// buildTransaction собирает и подписывает транзакцию
func (c *Client) buildTransaction(ctx context.Context, ixs []solana.Instruction, extra ...solana.PrivateKey) (*solana.Transaction, error) {
	blockhash, err := c.rpc.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get recent blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(append(c.budget(), ixs...), blockhash, solana.TransactionPayer(c.wallet.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := c.wallet.SignTransaction(tx, extra...); err != nil {
		return nil, err
	}
	return tx, nil
}

// simulate runs tx against the node and maps a program failure to its
// sale error.
func (c *Client) simulate(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	sim, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if sim.Err != nil {
		analysis := c.analyzer.AnalyzeSimulation(sim.Err, sim.Logs)
		c.logger.Debug("Simulation failed", zap.String("analysis", c.analyzer.FormatErrorAnalysis(analysis)))
		if perr := yozoon.ErrorFromAnalysis(analysis); perr != nil {
			return sim, perr
		}
		return sim, fmt.Errorf("simulation failed: %v", sim.Err)
	}
	return sim, nil
}

// send создает, подписывает, симулирует, отправляет и ожидает подтверждения транзакции.
func (c *Client) send(ctx context.Context, op string, ixs []solana.Instruction, extra ...solana.PrivateKey) (*TxResult, error) {
	log := c.logger.With(zap.String("operation", op))

	tx, err := c.buildTransaction(ctx, ixs, extra...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !c.skipSimulation {
		if _, err := c.simulate(ctx, tx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
		SkipPreflight:       !c.skipSimulation,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		if perr := yozoon.ErrorFromAnalysis(c.analyzer.AnalyzeRPCError(err)); perr != nil {
			err = perr
		}
		return nil, fmt.Errorf("%s: send transaction: %w", op, err)
	}
	log.Info("Transaction sent", zap.String("signature", sig.String()))

	result := &TxResult{Signature: sig}
	if err := c.rpc.WaitForTransactionConfirmation(ctx, sig, c.commitment); err != nil {
		var txErr *solbc.TransactionError
		if errors.As(err, &txErr) {
			if perr := yozoon.ErrorFromAnalysis(c.analyzer.AnalyzeSimulation(txErr.Err, nil)); perr != nil {
				err = perr
			}
		}
		log.Warn("Confirmation failed", zap.String("signature", sig.String()), zap.Error(err))
		return result, fmt.Errorf("%s: confirmation failed: %w", op, err)
	}
	log.Info("Transaction confirmed", zap.String("signature", sig.String()))

	logs, err := c.rpc.GetTransactionLogs(ctx, sig)
	if err != nil {
		log.Warn("Failed to fetch transaction logs", zap.Error(err))
		return result, nil
	}
	if result.Events, err = yozoon.ParseEvents(c.ProgramID(), logs); err != nil {
		log.Warn("Failed to decode program events", zap.Error(err))
	}
	return result, nil
}
