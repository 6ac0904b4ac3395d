package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventPaymentFinalized - тип события о записи итогового статуса оплаты
const EventPaymentFinalized = "payment.finalized"

// PaymentEvent публикуется в кафку после того, как статус счёта записан
type PaymentEvent struct {
	Type          string          `json:"type"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Status        PaymentStatus   `json:"status"`
	PurchaseType  PurchaseType    `json:"purchase_type"`
	ItemCount     int             `json:"item_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewPaymentEvent собирает событие по счёту
func NewPaymentEvent(inv Invoice, at time.Time) PaymentEvent {
	return PaymentEvent{
		Type:          EventPaymentFinalized,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Status:        inv.PaymentStatus,
		PurchaseType:  inv.Type,
		ItemCount:     inv.ItemCount,
		TotalAmount:   inv.TotalAmount,
		Currency:      inv.Currency,
		OccurredAt:    at,
	}
}
