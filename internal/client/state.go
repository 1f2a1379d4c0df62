// ==================================
// File: internal/client/state.go
// ==================================
package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

// Status is the on-chain view presented by the status command.
type Status struct {
	State          *sale.State
	Price          uint64
	Migration      *sale.MigrationStatus
	WalletLamports uint64
}

// FetchState reads config and curve plus the referral and airdrop records
// of every identity in owners. Accounts that do not exist stay nil/absent.
// Token balances are not part of the result.
func (c *Client) FetchState(ctx context.Context, owners ...solana.PublicKey) (*sale.State, error) {
	addrs := c.builder.Addresses()
	cfgAddr, _, err := addrs.Config()
	if err != nil {
		return nil, err
	}
	curveAddr, _, err := addrs.BondingCurve()
	if err != nil {
		return nil, err
	}
	refAddrs := make([]solana.PublicKey, len(owners))
	dropAddrs := make([]solana.PublicKey, len(owners))
	for i, owner := range owners {
		if refAddrs[i], _, err = addrs.Referral(owner); err != nil {
			return nil, err
		}
		if dropAddrs[i], _, err = addrs.Airdrop(owner); err != nil {
			return nil, err
		}
	}

	var (
		cfg       *sale.Config
		bc        *sale.BondingCurve
		referrals = make([]*sale.Referral, len(owners))
		airdrops  = make([]*sale.Airdrop, len(owners))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := c.rpc.GetMultipleAccountsData(gctx, []solana.PublicKey{cfgAddr, curveAddr})
		if err != nil {
			return fmt.Errorf("fetch config and curve: %w", err)
		}
		if data[0] != nil {
			acc, err := yozoon.DecodeConfig(data[0])
			if err != nil {
				return fmt.Errorf("config %s: %w", cfgAddr, err)
			}
			cfg = acc.ToConfig()
		}
		if data[1] != nil {
			acc, err := yozoon.DecodeBondingCurve(data[1])
			if err != nil {
				return fmt.Errorf("bonding curve %s: %w", curveAddr, err)
			}
			if bc, err = acc.ToCurve(c.params.MaxPricePoints); err != nil {
				return fmt.Errorf("bonding curve %s: %w", curveAddr, err)
			}
		}
		return nil
	})
	if len(owners) > 0 {
		g.Go(func() error {
			data, err := c.rpc.GetMultipleAccountsData(gctx, refAddrs)
			if err != nil {
				return fmt.Errorf("fetch referrals: %w", err)
			}
			for i, raw := range data {
				if raw == nil {
					continue
				}
				acc, err := yozoon.DecodeReferral(raw)
				if err != nil {
					return fmt.Errorf("referral %s: %w", refAddrs[i], err)
				}
				referrals[i] = acc.ToReferral()
			}
			return nil
		})
		g.Go(func() error {
			data, err := c.rpc.GetMultipleAccountsData(gctx, dropAddrs)
			if err != nil {
				return fmt.Errorf("fetch airdrops: %w", err)
			}
			for i, raw := range data {
				if raw == nil {
					continue
				}
				acc, err := yozoon.DecodeAirdrop(raw)
				if err != nil {
					return fmt.Errorf("airdrop %s: %w", dropAddrs[i], err)
				}
				airdrops[i] = acc.ToAirdrop()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := sale.NewState()
	st.Config = cfg
	st.Curve = bc
	for _, r := range referrals {
		if r != nil {
			st.Referrals[r.Referrer] = r
		}
	}
	for _, a := range airdrops {
		if a != nil {
			st.Airdrops[a.Recipient] = a
		}
	}
	return st, nil
}

// local wraps st in a throwaway program so quotes and dry runs follow the
// exact rules of the deployed one.
func (c *Client) local(st *sale.State) (*sale.Program, error) {
	return sale.NewProgram(sale.NewMemoryStoreFrom(st), nil, c.params, zap.NewNop())
}

// Status fetches the protocol state and the wallet balance concurrently.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out := &Status{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := c.FetchState(gctx, c.wallet.PublicKey)
		out.State = st
		return err
	})
	g.Go(func() error {
		lamports, err := c.rpc.GetBalance(gctx, c.wallet.PublicKey, c.commitment)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		out.WalletLamports = lamports
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if out.State.Curve == nil {
		return out, nil
	}
	prog, err := c.local(out.State)
	if err != nil {
		return nil, err
	}
	out.Price = out.State.Curve.CurrentPrice()
	if out.Migration, err = prog.MigrationStatus(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// MigrationStatus reports where the curve stands relative to the window.
func (c *Client) MigrationStatus(ctx context.Context) (*sale.MigrationStatus, error) {
	st, err := c.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	return prog.MigrationStatus(ctx)
}

// QuoteBuy prices a purchase against the current chain state.
func (c *Client) QuoteBuy(ctx context.Context, lamports uint64, referrer *solana.PublicKey) (*sale.BuyQuote, error) {
	var owners []solana.PublicKey
	if referrer != nil {
		owners = append(owners, *referrer)
	}
	st, err := c.FetchState(ctx, owners...)
	if err != nil {
		return nil, err
	}
	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	return prog.QuoteBuy(ctx, lamports, referrer)
}

// QuoteSell prices a sale against the current chain state.
func (c *Client) QuoteSell(ctx context.Context, tokens uint64) (*sale.SellQuote, error) {
	st, err := c.FetchState(ctx)
	if err != nil {
		return nil, err
	}
	prog, err := c.local(st)
	if err != nil {
		return nil, err
	}
	return prog.QuoteSell(ctx, tokens)
}
