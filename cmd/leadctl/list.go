package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/model"
)

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("limit", model.DefaultPageLimit, "rows per page")
}

func pageFlags(cmd *cobra.Command) model.PageRequest {
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	return model.PageRequest{Page: page, Limit: limit}
}

func pageFooter(total, page, pages int) string {
	return fmt.Sprintf("page %d of %d, %d total", page, max(pages, 1), total)
}

func invoicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "List your invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().Invoices(cmd.Context(), pageFlags(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNUMBER\tDATE\tTYPE\tITEMS\tTOTAL\tSTATUS")
			for _, inv := range res.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s %s\t%s\n",
					inv.ID, inv.InvoiceNumber, inv.CreatedAt.Local().Format(time.DateOnly),
					inv.Type, inv.ItemCount, inv.TotalAmount.StringFixed(2), inv.Currency, inv.PaymentStatus)
			}
			tw.Flush()
			fmt.Fprintln(a.out, pageFooter(res.Total, res.Page, res.TotalPages))
			return nil
		},
	}
	addPageFlags(cmd)
	return cmd
}

func downloadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "List purchases available for download",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().Downloads(cmd.Context(), pageFlags(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INVOICE\tTYPE\tITEMS\tPURCHASED\tEXPIRES")
			for _, d := range res.Items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					d.InvoiceNumber, d.Type, d.ItemCount,
					d.CreatedAt.Local().Format(time.DateOnly), d.ExpiresAt.Local().Format(time.DateOnly))
			}
			tw.Flush()
			fmt.Fprintln(a.out, pageFooter(res.Total, res.Page, res.TotalPages))
			return nil
		},
	}
	addPageFlags(cmd)
	return cmd
}

func activityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show your activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().ActivityLogs(cmd.Context(), pageFlags(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, l := range res.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.CreatedAt.Local().Format(time.DateTime), l.Action, l.Details)
			}
			tw.Flush()
			fmt.Fprintln(a.out, pageFooter(res.Total, res.Page, res.TotalPages))
			return nil
		},
	}
	addPageFlags(cmd)
	return cmd
}

func invoicePDFCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice-pdf <invoice-id>",
		Short: "Download an invoice as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid invoice id: %w", err)
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = "invoice-" + id.String() + ".pdf"
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := a.client().InvoicePDF(cmd.Context(), id, f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output file")
	return cmd
}
