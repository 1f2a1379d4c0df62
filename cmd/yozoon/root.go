package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/blockchain/solbc"
	"github.com/rovshanmuradov/yozoon/internal/client"
	"github.com/rovshanmuradov/yozoon/internal/config"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/ui/style"
	"github.com/rovshanmuradov/yozoon/internal/utils/logger"
	"github.com/rovshanmuradov/yozoon/internal/utils/metrics"
	"github.com/rovshanmuradov/yozoon/internal/wallet"
)

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"rpc_url":      "url",
	"ws_url":       "ws-url",
	"keypair_path": "keypair",
	"postgres_url": "postgres",
}

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Collector
	out     io.Writer
	styles  style.Styles
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{
		out:     out,
		styles:  style.NewStyles(style.DefaultPalette()),
		metrics: metrics.NewCollector(metrics.DefaultNamespace),
	}

	root := &cobra.Command{
		Use:           "yozoon",
		Short:         "Yozoon bonding curve token sale client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (yaml or json)")
	pf.StringP("keypair", "k", "", "keypair file or base58 private key file (default ~/.config/solana/id.json)")
	pf.StringP("url", "u", "", "RPC endpoint (default devnet)")
	pf.String("ws-url", "", "websocket endpoint used by watch")
	pf.String("postgres", "", "Postgres URL used by the sim commands")
	pf.BoolVar(&a.debug, "debug", false, "debug logging")

	root.AddCommand(
		newStatusCmd(a),
		newBuyCmd(a),
		newSellCmd(a),
		newCalculateCmd(a),
		newSetReferralCmd(a),
		newClaimCmd(a),
		newMigrationStatusCmd(a),
		newMigrateCmd(a),
		newInitMintCmd(a),
		newInitCurveCmd(a),
		newAdminCmd(a),
		newWatchCmd(a),
		newSimCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfigWithFlags(a.configPath, cmd.Flags(), flagKeys)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Development = true
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

// expandHome resolves a leading ~ the way the solana CLI does.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (a *app) wallet() (*wallet.Wallet, error) {
	path, err := expandHome(a.cfg.KeypairPath)
	if err != nil {
		return nil, err
	}
	return wallet.LoadKeypair(path)
}

func (a *app) programID() (solana.PublicKey, error) {
	id, err := a.cfg.Program()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id: %w", err)
	}
	return id, nil
}

func (a *app) params() sale.Params { return a.cfg.Params() }

func (a *app) client() (*client.Client, error) {
	w, err := a.wallet()
	if err != nil {
		return nil, err
	}
	programID, err := a.programID()
	if err != nil {
		return nil, err
	}
	rpcClient := solbc.NewClient(a.cfg.RPCURL, a.log.Logger,
		solbc.WithCommitment(a.cfg.CommitmentType()),
		solbc.WithRetries(uint(a.cfg.Retries)),
	)
	a.log.Debug("Client ready",
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("wallet", logger.ShortenAddress(w.String())),
		zap.String("program", programID.String()))
	return client.New(rpcClient, w, programID, a.params(), a.log.Logger,
		client.WithCommitment(a.cfg.CommitmentType())), nil
}

// run wraps a command body with an operation-scoped logger and records
// its outcome.
func (a *app) run(ctx context.Context, op string, fn func(ctx context.Context, log *zap.Logger) error) error {
	log := a.log.WithOperation(op)
	done := a.log.TrackPerformance(op)
	defer done()

	start := time.Now()
	err := fn(ctx, log)
	a.metrics.RecordInstruction(ctx, op, time.Since(start), err)
	if err != nil {
		log.Debug("Command failed", zap.Error(err))
		return err
	}
	return nil
}
