package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/dex/raydium"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/export"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/storage"
	"github.com/rovshanmuradov/yozoon/internal/storage/postgres"
)

// simEnv runs the sale state machine against the Postgres ledger instead of
// the chain.
type simEnv struct {
	pool     *postgres.Pool
	ledger   *postgres.Ledger
	program  *sale.Program
	recorder *events.Recorder
	signer   solana.PublicKey
	log      *zap.Logger
}

func (a *app) openSim(ctx context.Context, log *zap.Logger, as string) (*simEnv, error) {
	if a.cfg.PostgresURL == "" {
		return nil, errors.New("postgres_url is not set (use --postgres or YOZOON_POSTGRES_URL)")
	}
	signer, err := a.simSigner(as)
	if err != nil {
		return nil, err
	}
	programID, err := a.programID()
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, a.cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	ledger := postgres.NewLedger(pool, log)
	if err := ledger.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	rec := &events.Recorder{}
	venue := raydium.NewVenue(yozoon.NewAddresses(programID), log)
	program, err := sale.NewProgram(ledger, venue, a.params(), log, sale.WithPublisher(rec))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &simEnv{pool: pool, ledger: ledger, program: program, recorder: rec, signer: signer, log: log}, nil
}

func (e *simEnv) Close() { e.pool.Close() }

const journalPage = 500

// readJournal pages through the whole journal.
func readJournal(ctx context.Context, ledger *postgres.Ledger) ([]storage.JournalEntry, error) {
	var (
		all   []storage.JournalEntry
		after int64
	)
	for {
		page, err := ledger.Journal(ctx, after, journalPage)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < journalPage {
			return all, nil
		}
		after = page[len(page)-1].Seq
	}
}

// simSigner is --as when given, the keypair's public key otherwise.
func (a *app) simSigner(as string) (solana.PublicKey, error) {
	if as != "" {
		return parseKey(as, "signer")
	}
	w, err := a.wallet()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("no --as given and %w", err)
	}
	return w.PublicKey, nil
}

type simFunc func(ctx context.Context, env *simEnv, args []string) (string, error)

func simAction(a *app, as *string, use, short string, args cobra.PositionalArgs, fn simFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), "sim-"+cmd.Name(), func(ctx context.Context, log *zap.Logger) error {
				env, err := a.openSim(ctx, log, *as)
				if err != nil {
					return err
				}
				defer env.Close()

				msg, err := fn(ctx, env, args)
				if err != nil {
					return err
				}
				if msg != "" {
					a.printSuccess(msg)
				}
				for _, ev := range env.recorder.Events() {
					fmt.Fprintln(a.out, "  "+a.describeEvent(ev))
				}
				return nil
			})
		},
	}
}

func newSimCmd(a *app) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the sale against the Postgres ledger",
		Long: "Runs every instruction through the same state machine the program implements,\n" +
			"committing state and events to Postgres. Signatures are not checked: --as picks the signer.",
	}
	cmd.PersistentFlags().StringVar(&as, "as", "", "signer public key (default: the keypair)")

	var (
		mint, treasury string
		referralFee    uint64
	)
	initMint := simAction(a, &as, "init-mint", "Initialize config and mint", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			args := sale.InitializeMintArgs{TokenMint: solana.NewWallet().PublicKey(), Treasury: env.signer, DefaultReferralFee: referralFee}
			var err error
			if mint != "" {
				if args.TokenMint, err = parseKey(mint, "mint"); err != nil {
					return "", err
				}
			}
			if treasury != "" {
				if args.Treasury, err = parseKey(treasury, "treasury"); err != nil {
					return "", err
				}
			}
			if err := env.program.InitializeMint(ctx, env.signer, args); err != nil {
				return "", err
			}
			return "Mint " + args.TokenMint.String() + " initialized", nil
		})
	initMint.Flags().StringVar(&mint, "mint", "", "token mint (default: random)")
	initMint.Flags().StringVar(&treasury, "treasury", "", "treasury (default: the signer)")
	initMint.Flags().Uint64Var(&referralFee, "referral-fee", sale.DefaultReferralFeeBps, "default referral fee in basis points")

	var points []string
	initCurve := simAction(a, &as, "init-curve", "Initialize the bonding curve", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			table := make([]curve.PricePoint, 0, len(points))
			for _, s := range points {
				p, err := parsePricePoint(s)
				if err != nil {
					return "", err
				}
				table = append(table, p)
			}
			if err := env.program.InitializeBondingCurve(ctx, env.signer, table); err != nil {
				return "", err
			}
			return fmt.Sprintf("Bonding curve initialized with %d price points", len(table)), nil
		})
	initCurve.Flags().StringArrayVar(&points, "point", nil, "price point supply:price, repeatable")

	var amount, referrer, minOut string
	buy := simAction(a, &as, "buy", "Buy tokens", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			lamports, err := parseAmount(amount)
			if err != nil {
				return "", err
			}
			args := sale.BuyArgs{SolAmount: lamports}
			if minOut != "" {
				if args.MinTokensExpected, err = parseAmount(minOut); err != nil {
					return "", err
				}
			}
			ref, err := optionalKeyFlag(referrer, "referrer")
			if err != nil {
				return "", err
			}
			var res *sale.BuyResult
			if ref != nil {
				res, err = env.program.BuyTokensWithReferral(ctx, env.signer, args, *ref)
			} else {
				res, err = env.program.BuyTokens(ctx, env.signer, args)
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Bought %s for %s", formatTokens(res.TokensIssued), formatSol(lamports)), nil
		})
	buy.Flags().StringVarP(&amount, "amount", "a", "", "SOL to spend")
	buy.Flags().StringVarP(&referrer, "referrer", "r", "", "referrer")
	buy.Flags().StringVar(&minOut, "min-tokens", "", "minimum tokens")

	var sellAmount, minSol string
	sell := simAction(a, &as, "sell", "Sell tokens", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			tokens, err := parseAmount(sellAmount)
			if err != nil {
				return "", err
			}
			args := sale.SellArgs{TokenAmount: tokens}
			if minSol != "" {
				if args.MinSolExpected, err = parseAmount(minSol); err != nil {
					return "", err
				}
			}
			res, err := env.program.SellTokens(ctx, env.signer, args)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Sold %s for %s", formatTokens(tokens), formatSol(res.SolReturned)), nil
		})
	sell.Flags().StringVarP(&sellAmount, "amount", "a", "", "tokens to sell")
	sell.Flags().StringVar(&minSol, "min-sol", "", "minimum SOL")

	var fee string
	referral := simAction(a, &as, "referral", "Create a referral account for the signer", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			var override *uint64
			if fee != "" {
				bps, err := parseBps(fee)
				if err != nil {
					return "", err
				}
				override = &bps
			}
			r, err := env.program.CreateReferral(ctx, env.signer, override)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Referral created with fee %s", formatBps(r.FeeBps)), nil
		})
	referral.Flags().StringVar(&fee, "fee", "", "fee in basis points")

	var feeReferrer string
	updateFee := simAction(a, &as, "referral-fee <bps>", "Update the default or one referrer's fee", cobra.ExactArgs(1),
		func(ctx context.Context, env *simEnv, args []string) (string, error) {
			bps, err := parseBps(args[0])
			if err != nil {
				return "", err
			}
			ref, err := optionalKeyFlag(feeReferrer, "referrer")
			if err != nil {
				return "", err
			}
			if err := env.program.UpdateReferralFee(ctx, env.signer, sale.UpdateReferralFeeArgs{FeeBps: bps, Referrer: ref}); err != nil {
				return "", err
			}
			return "Referral fee set to " + formatBps(bps), nil
		})
	updateFee.Flags().StringVar(&feeReferrer, "referrer", "", "referrer whose fee changes")

	var journalAfter int64
	var journalLimit int
	journal := simAction(a, &as, "journal", "List committed events", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			entries, err := env.ledger.Journal(ctx, journalAfter, journalLimit)
			if err != nil {
				return "", err
			}
			for _, e := range entries {
				fmt.Fprintf(a.out, "%6d v%-4d %s\n", e.Seq, e.Version, a.describeEvent(e.Event))
			}
			return "", nil
		})
	journal.Flags().Int64Var(&journalAfter, "after", 0, "only entries after this sequence number")
	journal.Flags().IntVar(&journalLimit, "limit", 100, "maximum entries")

	var (
		exportFormat, exportDir string
		exportTypes             []string
	)
	exportCmd := simAction(a, &as, "export", "Write the journal to a CSV or JSON file", cobra.NoArgs,
		func(ctx context.Context, env *simEnv, _ []string) (string, error) {
			format, err := export.ParseFormat(exportFormat)
			if err != nil {
				return "", err
			}
			types, err := parseEventTypes(exportTypes)
			if err != nil {
				return "", err
			}
			entries, err := readJournal(ctx, env.ledger)
			if err != nil {
				return "", err
			}
			path, err := export.NewJournalExporter(env.log).ExportJournal(entries, export.ExportOptions{
				Format:    format,
				Types:     types,
				OutputDir: exportDir,
			})
			if err != nil {
				return "", err
			}
			return "Journal written to " + path, nil
		})
	exportCmd.Flags().StringVar(&exportFormat, "format", string(export.FormatCSV), "csv or json")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "output directory")
	exportCmd.Flags().StringSliceVar(&exportTypes, "type", nil, "only these event types")

	cmd.AddCommand(
		initMint,
		exportCmd,
		initCurve,
		buy,
		sell,
		referral,
		updateFee,
		journal,
		simAction(a, &as, "airdrop <recipient> <amount>", "Create an airdrop", cobra.ExactArgs(2),
			func(ctx context.Context, env *simEnv, args []string) (string, error) {
				recipient, err := parseKey(args[0], "recipient")
				if err != nil {
					return "", err
				}
				amount, err := parseAmount(args[1])
				if err != nil {
					return "", err
				}
				return "Airdrop created", env.program.CreateAirdrop(ctx, env.signer, recipient, amount)
			}),
		simAction(a, &as, "claim", "Claim the signer's airdrop", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				amount, err := env.program.ClaimAirdrop(ctx, env.signer)
				return "Claimed " + formatTokens(amount), err
			}),
		simAction(a, &as, "pause", "Pause trading", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				return "Protocol paused", env.program.PauseProtocol(ctx, env.signer)
			}),
		simAction(a, &as, "unpause", "Resume trading", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				return "Protocol unpaused", env.program.UnpauseProtocol(ctx, env.signer)
			}),
		simAction(a, &as, "transfer-admin <new-admin>", "Propose a new admin", cobra.ExactArgs(1),
			func(ctx context.Context, env *simEnv, args []string) (string, error) {
				next, err := parseKey(args[0], "admin")
				if err != nil {
					return "", err
				}
				return "Admin transfer proposed", env.program.TransferAdmin(ctx, env.signer, next)
			}),
		simAction(a, &as, "accept-admin", "Accept a pending admin transfer", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				return "Admin role accepted", env.program.AcceptAdmin(ctx, env.signer)
			}),
		simAction(a, &as, "treasury <address>", "Change the treasury", cobra.ExactArgs(1),
			func(ctx context.Context, env *simEnv, args []string) (string, error) {
				treasury, err := parseKey(args[0], "treasury")
				if err != nil {
					return "", err
				}
				return "Treasury updated", env.program.UpdateTreasury(ctx, env.signer, treasury)
			}),
		simAction(a, &as, "price", "Calculate the current price", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				price, err := env.program.CalculateCurrentPrice(ctx)
				if err != nil {
					return "", err
				}
				return "Current price " + formatSol(price) + " per token", nil
			}),
		simAction(a, &as, "migrate", "Migrate the reserve to a Raydium pool", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				receipt, err := env.program.MigrateToRaydium(ctx, env.signer)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Migrated to pool %s (fee key %s)", receipt.Pool, receipt.FeeKey), nil
			}),
		simAction(a, &as, "status", "Show the ledger state", cobra.NoArgs,
			func(ctx context.Context, env *simEnv, _ []string) (string, error) {
				st, err := env.program.Snapshot(ctx)
				if err != nil {
					return "", err
				}
				a.printTitle("Ledger version " + strconv.FormatUint(st.Version, 10))
				if st.Config != nil {
					a.printRows([][2]string{
						{"Admin", st.Config.Admin.String()},
						{"Token mint", st.Config.TokenMint.String()},
						{"Treasury", st.Config.Treasury.String()},
						{"Paused", strconv.FormatBool(st.Config.IsPaused)},
					})
				}
				if st.Curve != nil {
					a.printRows([][2]string{
						{"Current price", formatSol(st.Curve.CurrentPrice()) + " per token"},
						{"Total sold", formatTokens(st.Curve.TotalSoldSupply)},
						{"Total raised", formatSol(st.Curve.TotalSolRaised)},
						{"Reserve", formatSol(st.Curve.SolReserve)},
						{"Migration", st.Curve.Migration.String()},
					})
				}
				airdropped, err := st.AirdropTotal()
				if err != nil {
					return "", err
				}
				a.printRows([][2]string{
					{"Signer balance", formatTokens(st.BalanceOf(env.signer))},
					{"Referrals", strconv.Itoa(len(st.Referrals))},
					{"Airdropped", formatTokens(airdropped)},
				})
				return "", nil
			}),
	)
	return cmd
}
