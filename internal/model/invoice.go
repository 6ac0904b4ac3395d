package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus - статус попытки оплаты
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Valid сообщает, что статус - один из четырёх допустимых
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что статус окончательный и больше не меняется
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentCancelled
}

// PurchaseType - что именно покупается
type PurchaseType string

const (
	PurchaseContacts  PurchaseType = "contacts"
	PurchaseCompanies PurchaseType = "companies"
)

// Invoice - счёт на покупку записей
type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	CustomerID      uuid.UUID       `json:"customerId"`
	Type            PurchaseType    `json:"type"`
	ItemIDs         []uuid.UUID     `json:"itemIds"`
	ItemCount       int             `json:"itemCount"`
	PricePerItem    decimal.Decimal `json:"pricePerItem"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	ProviderOrderID string          `json:"providerOrderId,omitempty"`
	PaymentID       string          `json:"paymentId,omitempty"`
	PayerID         string          `json:"payerId,omitempty"`
	PayerEmail      string          `json:"payerEmail,omitempty"`
	TransactionID   string          `json:"transactionId,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
}

// Download - доступ покупателя к купленным записям
type Download struct {
	ID            uuid.UUID    `json:"id"`
	CustomerID    uuid.UUID    `json:"customerId"`
	InvoiceNumber string       `json:"invoiceNumber"`
	Type          PurchaseType `json:"type"`
	ItemCount     int          `json:"itemCount"`
	CreatedAt     time.Time    `json:"createdAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// CreateOrderRequest - тело запроса POST /customers/payment/create-order
type CreateOrderRequest struct {
	Type         PurchaseType    `json:"type" validate:"required,oneof=contacts companies"`
	ItemIDs      []uuid.UUID     `json:"itemIds" validate:"required,gt=0"`
	ItemCount    int             `json:"itemCount" validate:"required,gt=0"`
	PricePerItem decimal.Decimal `json:"pricePerItem"`
	Currency     string          `json:"currency" validate:"required,len=3,uppercase"`
}

var (
	ErrItemCountMismatch = errors.New("itemCount does not match number of itemIds")
	ErrNonPositivePrice  = errors.New("pricePerItem must be positive")
)

// Validate проверяет запрос на создание заказа
func (r *CreateOrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.ItemCount != len(r.ItemIDs) {
		return ErrItemCountMismatch
	}
	if !r.PricePerItem.IsPositive() {
		return ErrNonPositivePrice
	}
	return nil
}

// Total считает итоговую сумму заказа
func (r *CreateOrderRequest) Total() decimal.Decimal {
	return r.PricePerItem.Mul(decimal.NewFromInt(int64(r.ItemCount))).Round(2)
}

// CreateOrderResponse - ответ create-order: номер счёта и данные заказа у провайдера
type CreateOrderResponse struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	OrderData     OrderData `json:"orderData"`
}

// OrderData - то, что нужно виджету провайдера, чтобы провести оплату
type OrderData struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approvalUrl,omitempty"`
}

// VerifyPaymentRequest - тело запроса POST /customers/payment/verify-payment
type VerifyPaymentRequest struct {
	InvoiceNumber string          `json:"invoiceNumber" validate:"required"`
	PaymentStatus PaymentStatus   `json:"paymentStatus" validate:"required,oneof=pending completed failed cancelled"`
	PaymentID     string          `json:"paymentId,omitempty"`
	PayerID       string          `json:"payerId,omitempty"`
	PayerEmail    string          `json:"payerEmail,omitempty" validate:"omitempty,email"`
	TransactionID string          `json:"transactionId,omitempty"`
	Type          PurchaseType    `json:"type" validate:"required,oneof=contacts companies"`
	ItemIDs       []uuid.UUID     `json:"itemIds" validate:"required,gt=0"`
	ItemCount     int             `json:"itemCount" validate:"required,gt=0"`
	PricePerItem  decimal.Decimal `json:"pricePerItem"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
}

// Validate проверяет запрос на подтверждение оплаты
func (r *VerifyPaymentRequest) Validate() error {
	return validate.Struct(r)
}

// ProviderPayment - состояние заказа у провайдера, как его видит сервер
type ProviderPayment struct {
	OrderID    string
	Status     string
	CaptureID  string
	Amount     decimal.Decimal
	Currency   string
	PayerID    string
	PayerEmail string
}
