package main

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/client"
	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/ui/style"
)

var errorStyles = style.NewStyles(style.DefaultPalette())

// renderError shows program errors with their code so they can be matched
// against explorer output.
func renderError(err error) string {
	var perr *sale.Error
	if errors.As(err, &perr) {
		return errorStyles.Error.Render(fmt.Sprintf("✗ %s (%d)", perr.Name, perr.Code)) + "\n  " + err.Error()
	}
	return errorStyles.Error.Render("✗ ") + err.Error()
}

func (a *app) printTitle(title string) {
	fmt.Fprintln(a.out, a.styles.Title.Render(title))
}

func (a *app) printRows(rows [][2]string) {
	fmt.Fprintln(a.out, a.styles.KeyValues(rows))
}

func (a *app) printSuccess(msg string) {
	fmt.Fprintln(a.out, a.styles.Success.Render("✓ ")+msg)
}

func (a *app) printWarning(msg string) {
	fmt.Fprintln(a.out, a.styles.Warning.Render("! ")+msg)
}

func (a *app) printTx(res *client.TxResult) {
	if res == nil {
		return
	}
	a.printRows([][2]string{{"Signature", res.Signature.String()}})
	for _, ev := range res.Events {
		fmt.Fprintln(a.out, "  "+a.describeEvent(ev))
	}
}

func optionalKey(k *solana.PublicKey) string {
	if k == nil {
		return "none"
	}
	return k.String()
}

// describeEvent renders one program event as a single line.
func (a *app) describeEvent(ev events.Event) string {
	s := a.styles
	var body string
	switch e := ev.(type) {
	case *events.TokenPurchaseEvent:
		body = s.Buy.Render("BUY ") + fmt.Sprintf("%s paid %s for %s (referrer %s, fee %s)",
			e.Buyer, formatSol(e.SolAmount), formatTokens(e.TokensIssued), optionalKey(e.Referrer), formatSol(e.ReferralFee))
	case *events.TokenSaleEvent:
		body = s.Sell.Render("SELL ") + fmt.Sprintf("%s sold %s for %s",
			e.Seller, formatTokens(e.TokenAmount), formatSol(e.SolReturned))
	case *events.PriceCalculatedEvent:
		body = fmt.Sprintf("price %s per token at supply %s", formatSol(e.Price), formatTokens(e.Supply))
	case *events.ReferralCreatedEvent:
		body = fmt.Sprintf("referral %s created, fee %s", e.Referrer, formatBps(e.FeeBps))
	case *events.ReferralPaymentEvent:
		body = fmt.Sprintf("referrer %s earned %s from %s", e.Referrer, formatSol(e.Amount), e.Buyer)
	case *events.MigrationReadyEvent:
		body = s.Warning.Render("migration window entered") + fmt.Sprintf(", raised %s", formatSol(e.TotalSolRaised))
	case *events.MigrationCompletedEvent:
		body = s.Success.Render("migrated") + fmt.Sprintf(" to pool %s with %s and %s",
			e.Pool, formatTokens(e.TotalTokens), formatSol(e.TotalSol))
	case *events.AirdropCreatedEvent:
		body = fmt.Sprintf("airdrop of %s for %s", formatTokens(e.Amount), e.Recipient)
	case *events.AirdropClaimedEvent:
		body = fmt.Sprintf("%s claimed %s", e.Recipient, formatTokens(e.Amount))
	default:
		body = fmt.Sprintf("%+v", ev)
	}
	return s.Muted.Render(string(ev.Type())+" ") + body
}
