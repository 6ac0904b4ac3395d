// Package invoicepdf рисует PDF-версию счёта
package invoicepdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/asquebay/leadbase-service/internal/model"
)

const dateLayout = "2006-01-02 15:04 MST"

// Render пишет счёт в формате PDF
func Render(w io.Writer, inv model.Invoice) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, false)
	pdf.SetCreationDate(inv.CreatedAt)
	pdf.SetModificationDate(inv.CreatedAt)
	pdf.AddPage()

	// 1. Заголовок
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Invoice "+inv.InvoiceNumber)
	pdf.Ln(14)

	// 2. Реквизиты счёта
	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Date", inv.CreatedAt.UTC().Format(dateLayout)},
		{"Status", string(inv.PaymentStatus)},
		{"Customer", inv.CustomerID.String()},
	}
	if inv.PaidAt != nil {
		rows = append(rows, [2]string{"Paid at", inv.PaidAt.UTC().Format(dateLayout)})
	}
	if inv.TransactionID != "" {
		rows = append(rows, [2]string{"Transaction", inv.TransactionID})
	}
	if inv.PayerEmail != "" {
		rows = append(rows, [2]string{"Payer", inv.PayerEmail})
	}
	for _, row := range rows {
		pdf.CellFormat(40, 7, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// 3. Позиция и итог
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(80, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Quantity", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(80, 8, fmt.Sprintf("%s records", inv.Type), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, strconv.Itoa(inv.ItemCount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(inv.PricePerItem.StringFixed(2), inv.Currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(inv.TotalAmount.StringFixed(2), inv.Currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, money(inv.TotalAmount.StringFixed(2), inv.Currency), "1", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("invoicepdf: render %s: %w", inv.InvoiceNumber, err)
	}
	return pdf.Output(w)
}

// Bytes рисует счёт в память
func Bytes(inv model.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, inv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(amount, currency string) string {
	return amount + " " + currency
}
