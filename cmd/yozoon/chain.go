package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/client"
	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/ui"
)

func parseKey(s, what string) (solana.PublicKey, error) {
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return k, nil
}

func optionalKeyFlag(s, what string) (*solana.PublicKey, error) {
	if s == "" {
		return nil, nil
	}
	k, err := parseKey(s, what)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// migrationSummary is the one-line verdict shown by migration-status.
func migrationSummary(st *sale.MigrationStatus) string {
	switch st.State {
	case sale.Migrated:
		return fmt.Sprintf("Migrated to pool %s", st.Pool)
	case sale.WindowClosed:
		return "Migration window passed: raised SOL went above the maximum"
	case sale.NotEligible:
		return fmt.Sprintf("Not yet eligible: %s more needed", formatSol(st.Remaining()))
	}
	if st.AboveWindow() {
		return "Eligible for migration (raised SOL is above the window maximum)"
	}
	return "Eligible for migration"
}

func migrationRows(st *sale.MigrationStatus) [][2]string {
	return [][2]string{
		{"Migration", st.State.String()},
		{"Total raised", formatSol(st.TotalSolRaised)},
		{"Reserve", formatSol(st.SolReserve)},
		{"Window", fmt.Sprintf("%s .. %s", formatSol(st.MinSol), formatSol(st.MaxSol))},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show protocol, curve and wallet state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "status", func(ctx context.Context, _ *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				a.printTitle("Yozoon " + c.ProgramID().String())
				if st.State.Config == nil {
					a.printWarning("Protocol is not initialized")
				} else {
					cfg := st.State.Config
					rows := [][2]string{
						{"Admin", cfg.Admin.String()},
						{"Token mint", cfg.TokenMint.String()},
						{"Treasury", cfg.Treasury.String()},
						{"Default referral fee", formatBps(cfg.DefaultReferralFee)},
						{"Paused", strconv.FormatBool(cfg.IsPaused)},
					}
					if cfg.PendingAdmin != nil {
						rows = append(rows, [2]string{"Pending admin", cfg.PendingAdmin.String()})
					}
					a.printRows(rows)
				}
				if st.State.Curve != nil {
					a.printRows([][2]string{
						{"Current price", formatSol(st.Price) + " per token"},
						{"Total sold", formatTokens(st.State.Curve.TotalSoldSupply)},
						{"Price points", strconv.Itoa(len(st.State.Curve.PricePoints))},
					})
					a.printRows(migrationRows(st.Migration))
				} else {
					a.printWarning("Bonding curve is not initialized")
				}

				me := c.Wallet()
				rows := [][2]string{
					{"Wallet", me.String()},
					{"Balance", formatSol(st.WalletLamports)},
				}
				if ref, ok := st.State.Referrals[me]; ok {
					rows = append(rows,
						[2]string{"Referral fee", formatBps(ref.FeeBps)},
						[2]string{"Referrals", strconv.FormatUint(ref.TotalReferrals, 10)},
						[2]string{"Referral earnings", formatSol(ref.TotalEarned)})
				}
				if drop, ok := st.State.Airdrops[me]; ok {
					rows = append(rows, [2]string{"Airdrop", fmt.Sprintf("%s (claimed: %t)", formatTokens(drop.Amount), drop.Claimed())})
				}
				a.printRows(rows)
				return nil
			})
		},
	}
}

func newBuyCmd(a *app) *cobra.Command {
	var (
		amount, referrer, minTokens string
		slippage                    uint64
	)
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy tokens on the bonding curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "buy", func(ctx context.Context, log *zap.Logger) error {
				lamports, err := parseAmount(amount)
				if err != nil {
					return err
				}
				order := client.BuyOrder{Lamports: lamports, SlippageBps: slippage}
				if order.Referrer, err = optionalKeyFlag(referrer, "referrer"); err != nil {
					return err
				}
				if minTokens != "" {
					if order.MinTokens, err = parseAmount(minTokens); err != nil {
						return err
					}
				}
				c, err := a.client()
				if err != nil {
					return err
				}
				log.Info("Buying tokens", zap.Uint64("lamports", lamports), zap.Uint64("slippage_bps", slippage))
				out, err := c.Buy(ctx, order)
				if err != nil {
					return err
				}
				a.printSuccess(fmt.Sprintf("Bought about %s for %s", formatTokens(out.Expected.TokensIssued), formatSol(lamports)))
				a.printRows([][2]string{
					{"Minimum accepted", formatTokens(out.MinTokens)},
					{"Referral fee", formatSol(out.Expected.ReferralFee)},
				})
				a.printTx(out.TxResult)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "SOL to spend")
	cmd.Flags().StringVarP(&referrer, "referrer", "r", "", "referrer wallet")
	cmd.Flags().StringVar(&minTokens, "min-tokens", "", "minimum tokens to accept (overrides --slippage)")
	cmd.Flags().Uint64Var(&slippage, "slippage", 100, "slippage tolerance in basis points")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newSellCmd(a *app) *cobra.Command {
	var (
		amount, minSol string
		slippage       uint64
	)
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell tokens back to the bonding curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "sell", func(ctx context.Context, log *zap.Logger) error {
				tokens, err := parseAmount(amount)
				if err != nil {
					return err
				}
				order := client.SellOrder{Tokens: tokens, SlippageBps: slippage}
				if minSol != "" {
					if order.MinSol, err = parseAmount(minSol); err != nil {
						return err
					}
				}
				c, err := a.client()
				if err != nil {
					return err
				}
				log.Info("Selling tokens", zap.Uint64("tokens", tokens))
				out, err := c.Sell(ctx, order)
				if err != nil {
					return err
				}
				a.printSuccess(fmt.Sprintf("Sold %s for about %s", formatTokens(tokens), formatSol(out.Expected.SolReturned)))
				a.printRows([][2]string{{"Minimum accepted", formatSol(out.MinSol)}})
				a.printTx(out.TxResult)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "tokens to sell")
	cmd.Flags().StringVar(&minSol, "min-sol", "", "minimum SOL to accept (overrides --slippage)")
	cmd.Flags().Uint64Var(&slippage, "slippage", 100, "slippage tolerance in basis points")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCalculateCmd(a *app) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate the current token price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "calculate", func(ctx context.Context, log *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				var price uint64
				if local {
					var st *sale.State
					if st, err = c.FetchState(ctx); err != nil {
						return err
					}
					if st.Curve == nil {
						return sale.ErrNotInitialized.Wrapf("bonding curve")
					}
					price = st.Curve.CurrentPrice()
				} else if price, err = c.CalculateCurrentPrice(ctx); err != nil {
					return err
				}
				log.Debug("Price calculated", zap.Uint64("price", price), zap.Bool("local", local))
				a.printRows([][2]string{{"Current price", formatSol(price) + " per token"}})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "price from fetched accounts instead of simulating the instruction")
	return cmd
}

func newSetReferralCmd(a *app) *cobra.Command {
	var fee string
	cmd := &cobra.Command{
		Use:   "set-referral",
		Short: "Register the wallet as a referrer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "set-referral", func(ctx context.Context, _ *zap.Logger) error {
				var override *uint64
				if fee != "" {
					bps, err := parseBps(fee)
					if err != nil {
						return err
					}
					override = &bps
				}
				c, err := a.client()
				if err != nil {
					return err
				}
				res, err := c.CreateReferral(ctx, override)
				if err != nil {
					return err
				}
				a.printSuccess("Referral account created for " + c.Wallet().String())
				a.printTx(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fee, "fee", "", "fee in basis points (default: protocol default)")
	return cmd
}

func newClaimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim the wallet's airdrop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "claim", func(ctx context.Context, _ *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				res, err := c.ClaimAirdrop(ctx)
				if err != nil {
					return err
				}
				a.printSuccess("Airdrop claimed")
				a.printTx(res)
				return nil
			})
		},
	}
}

func newMigrationStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migration-status",
		Short: "Check whether the curve can migrate to Raydium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "migration-status", func(ctx context.Context, _ *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				st, err := c.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				a.printRows(migrationRows(st))
				if st.State == sale.Eligible {
					a.printSuccess(migrationSummary(st))
				} else {
					a.printWarning(migrationSummary(st))
				}
				return nil
			})
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move the reserve into a Raydium pool (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "migrate", func(ctx context.Context, log *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				st, err := c.MigrationStatus(ctx)
				if err != nil {
					return err
				}
				if err := client.MigrationError(st); err != nil {
					a.printWarning(migrationSummary(st))
					return err
				}
				if !yes {
					ok, err := ui.Confirm("Migrate liquidity to Raydium? This cannot be undone.", []ui.Detail{
						{Label: "Reserve", Value: formatSol(st.SolReserve)},
						{Label: "Pool tokens", Value: formatTokens(a.params().Migration.PoolTokenAllocation)},
						{Label: "Pool fee", Value: formatBps(a.params().Migration.PoolFeeBps)},
						{Label: "LP lock", Value: "permanent"},
					}, os.Stdin, a.out)
					if err != nil {
						return err
					}
					if !ok {
						a.printWarning("Migration cancelled")
						return nil
					}
				}
				log.Info("Migrating to Raydium", zap.Uint64("reserve", st.SolReserve))
				res, err := c.MigrateToRaydium(ctx)
				if err != nil {
					return err
				}
				a.printSuccess("Migration submitted")
				a.printTx(res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newInitMintCmd(a *app) *cobra.Command {
	var (
		treasury string
		fee      uint64
	)
	cmd := &cobra.Command{
		Use:   "init-mint",
		Short: "Create the config and token mint (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "init-mint", func(ctx context.Context, log *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				treasuryKey := c.Wallet()
				if treasury != "" {
					if treasuryKey, err = parseKey(treasury, "treasury"); err != nil {
						return err
					}
				}
				mint := solana.NewWallet().PrivateKey
				log.Info("Initializing mint", zap.String("mint", mint.PublicKey().String()))
				res, err := c.InitializeMint(ctx, mint, treasuryKey, fee)
				if err != nil {
					return err
				}
				a.printSuccess("Token mint " + mint.PublicKey().String() + " created")
				a.printTx(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&treasury, "treasury", "", "treasury wallet (default: the signer)")
	cmd.Flags().Uint64Var(&fee, "referral-fee", sale.DefaultReferralFeeBps, "default referral fee in basis points")
	return cmd
}

func newInitCurveCmd(a *app) *cobra.Command {
	var points []string
	cmd := &cobra.Command{
		Use:     "init-curve",
		Short:   "Create the bonding curve from price points (admin)",
		Example: "  yozoon init-curve --point 0:0.001 --point 1000000:0.002",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), "init-curve", func(ctx context.Context, _ *zap.Logger) error {
				table := make([]curve.PricePoint, 0, len(points))
				for _, s := range points {
					p, err := parsePricePoint(s)
					if err != nil {
						return err
					}
					table = append(table, p)
				}
				c, err := a.client()
				if err != nil {
					return err
				}
				res, err := c.InitializeBondingCurve(ctx, table)
				if err != nil {
					return err
				}
				a.printSuccess(fmt.Sprintf("Bonding curve created with %d price points", len(table)))
				a.printTx(res)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&points, "point", nil, "price point supply:price (tokens:SOL per token), repeatable")
	_ = cmd.MarkFlagRequired("point")
	return cmd
}
