package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/yozoon/internal/client"
)

// adminAction builds a subcommand that submits one admin instruction.
func adminAction(a *app, use, short string, args cobra.PositionalArgs,
	fn func(ctx context.Context, c *client.Client, args []string) (*client.TxResult, string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), "admin-"+cmd.Name(), func(ctx context.Context, _ *zap.Logger) error {
				c, err := a.client()
				if err != nil {
					return err
				}
				res, msg, err := fn(ctx, c, args)
				if err != nil {
					return err
				}
				a.printSuccess(msg)
				a.printTx(res)
				return nil
			})
		},
	}
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Protocol administration",
	}

	var referrer string
	referralFee := adminAction(a, "referral-fee <bps>", "Set the default fee, or one referrer's fee with --referrer", cobra.ExactArgs(1),
		func(ctx context.Context, c *client.Client, args []string) (*client.TxResult, string, error) {
			bps, err := parseBps(args[0])
			if err != nil {
				return nil, "", err
			}
			ref, err := optionalKeyFlag(referrer, "referrer")
			if err != nil {
				return nil, "", err
			}
			res, err := c.UpdateReferralFee(ctx, bps, ref)
			if ref == nil {
				return res, "Default referral fee set to " + formatBps(bps), err
			}
			return res, fmt.Sprintf("Referral fee of %s set to %s", ref, formatBps(bps)), err
		})
	referralFee.Flags().StringVar(&referrer, "referrer", "", "referrer whose fee changes")

	cmd.AddCommand(
		adminAction(a, "pause", "Pause trading", cobra.NoArgs,
			func(ctx context.Context, c *client.Client, _ []string) (*client.TxResult, string, error) {
				res, err := c.PauseProtocol(ctx)
				return res, "Protocol paused", err
			}),
		adminAction(a, "unpause", "Resume trading", cobra.NoArgs,
			func(ctx context.Context, c *client.Client, _ []string) (*client.TxResult, string, error) {
				res, err := c.UnpauseProtocol(ctx)
				return res, "Protocol unpaused", err
			}),
		adminAction(a, "transfer <new-admin>", "Propose a new admin", cobra.ExactArgs(1),
			func(ctx context.Context, c *client.Client, args []string) (*client.TxResult, string, error) {
				next, err := parseKey(args[0], "admin")
				if err != nil {
					return nil, "", err
				}
				res, err := c.TransferAdmin(ctx, next)
				return res, "Admin transfer proposed to " + next.String(), err
			}),
		adminAction(a, "accept", "Accept a pending admin transfer", cobra.NoArgs,
			func(ctx context.Context, c *client.Client, _ []string) (*client.TxResult, string, error) {
				res, err := c.AcceptAdmin(ctx)
				return res, "Admin role accepted", err
			}),
		adminAction(a, "treasury <address>", "Change the treasury", cobra.ExactArgs(1),
			func(ctx context.Context, c *client.Client, args []string) (*client.TxResult, string, error) {
				treasury, err := parseKey(args[0], "treasury")
				if err != nil {
					return nil, "", err
				}
				res, err := c.UpdateTreasury(ctx, treasury)
				return res, "Treasury set to " + treasury.String(), err
			}),
		adminAction(a, "airdrop <recipient> <amount>", "Allocate tokens to a recipient", cobra.ExactArgs(2),
			func(ctx context.Context, c *client.Client, args []string) (*client.TxResult, string, error) {
				recipient, err := parseKey(args[0], "recipient")
				if err != nil {
					return nil, "", err
				}
				amount, err := parseAmount(args[1])
				if err != nil {
					return nil, "", err
				}
				res, err := c.CreateAirdrop(ctx, recipient, amount)
				return res, fmt.Sprintf("Airdrop of %s created for %s", formatTokens(amount), recipient), err
			}),
		referralFee,
	)
	return cmd
}
