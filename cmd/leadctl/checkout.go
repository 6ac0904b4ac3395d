package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/model"
)

func checkoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Buy records through PayPal",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			rawIDs, _ := cmd.Flags().GetStringSlice("ids")
			price, _ := cmd.Flags().GetString("price")
			currency, _ := cmd.Flags().GetString("currency")

			req, err := buildOrderRequest(typ, rawIDs, price, currency)
			if err != nil {
				return err
			}
			return a.runCheckout(cmd.Context(), req)
		},
	}
	cmd.Flags().String("type", string(model.PurchaseContacts), "contacts or companies")
	cmd.Flags().StringSlice("ids", nil, "record ids to buy")
	cmd.Flags().String("price", "", "price per record")
	cmd.Flags().String("currency", "USD", "ISO currency code")
	return cmd
}

func buildOrderRequest(typ string, rawIDs []string, price, currency string) (model.CreateOrderRequest, error) {
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return model.CreateOrderRequest{}, fmt.Errorf("invalid id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return model.CreateOrderRequest{}, fmt.Errorf("invalid --price: %w", err)
	}
	return model.CreateOrderRequest{
		Type:         model.PurchaseType(typ),
		ItemIDs:      ids,
		ItemCount:    len(ids),
		PricePerItem: amount,
		Currency:     strings.ToUpper(currency),
	}, nil
}

func (a *app) runCheckout(ctx context.Context, req model.CreateOrderRequest) error {
	provider := a.newProvider(a, a.promptApproval)

	machine := checkout.New(a.client(), provider, a.log,
		checkout.OnTransition(func(from, to checkout.State) {
			a.log.Debug("checkout transition", slog.String("from", from.String()), slog.String("to", to.String()))
		}),
		checkout.OnSuccess(func(inv model.Invoice) {
			fmt.Fprintf(a.out, "Payment completed. Invoice %s, %s %s.\n", inv.InvoiceNumber, inv.TotalAmount.StringFixed(2), inv.Currency)
			fmt.Fprintln(a.out, "Your records are now in downloads: run `leadctl downloads`.")
		}),
	)

	outcome, err := machine.Run(ctx, req)
	if err != nil {
		fmt.Fprintln(a.out, checkout.UserMessage(err))
		if outcome.Verified {
			fmt.Fprintf(a.out, "Invoice %s recorded as %s.\n", outcome.Attempt.InvoiceNumber, outcome.Attempt.Status)
		}
		return err
	}
	if outcome.Attempt.Status == model.PaymentPending {
		fmt.Fprintf(a.out, "Payment for invoice %s is pending confirmation by PayPal.\n", outcome.Attempt.InvoiceNumber)
	}
	return nil
}

// promptApproval просит покупателя одобрить заказ в PayPal и подтвердить в терминале
func (a *app) promptApproval(ctx context.Context, order model.OrderData) (bool, error) {
	if order.ApprovalURL != "" {
		fmt.Fprintf(a.out, "Approve the payment in your browser:\n  %s\n", order.ApprovalURL)
	}
	fmt.Fprint(a.out, "Type 'y' once approved, or 'n' to cancel: ")

	answer := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errs:
		return false, fmt.Errorf("read approval: %w", err)
	case ans := <-answer:
		return ans == "y" || ans == "yes", nil
	}
}
