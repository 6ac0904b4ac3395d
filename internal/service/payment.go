package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/lib/invoicepdf"
	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
)

var (
	// ErrInvalidRequest - запрос не прошёл валидацию
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPaymentProvider - платёжный провайдер не смог создать заказ
	ErrPaymentProvider = errors.New("payment provider error")
)

// InvoicePrefix - префикс номера счёта
const InvoicePrefix = "INV-"

// PaymentService инкапсулирует бизнес-логику оформления покупки
type PaymentService struct {
	invoices  InvoiceRepository
	gateway   PaymentGateway
	publisher EventPublisher
	clock     clockwork.Clock
	retention time.Duration
	log       *slog.Logger
}

// NewPaymentService создаёт сервис оплаты
// retention - сколько действует доступ к скачиванию после оплаты
func NewPaymentService(invoices InvoiceRepository, gateway PaymentGateway, publisher EventPublisher, clock clockwork.Clock, retention time.Duration, log *slog.Logger) *PaymentService {
	return &PaymentService{
		invoices:  invoices,
		gateway:   gateway,
		publisher: publisher,
		clock:     clock,
		retention: retention,
		log:       log,
	}
}

// CreateOrder выдаёт номер счёта, создаёт заказ у провайдера и сохраняет счёт в статусе pending
// номер счёта существует до того, как двинутся деньги
func (s *PaymentService) CreateOrder(ctx context.Context, customerID uuid.UUID, req model.CreateOrderRequest) (model.CreateOrderResponse, error) {
	const op = "service.PaymentService.CreateOrder"

	// 1. Валидация
	if err := req.Validate(); err != nil {
		return model.CreateOrderResponse{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidRequest, err)
	}

	now := s.clock.Now()
	invoiceNumber := NewInvoiceNumber(now)
	total := req.Total()
	log := s.log.With(slog.String("op", op), slog.String("invoice_number", invoiceNumber))

	// 2. Заказ у провайдера
	order, err := s.gateway.CreateOrder(ctx, invoiceNumber, total, req.Currency)
	if err != nil {
		log.Error("failed to create provider order", slog.String("error", err.Error()))
		return model.CreateOrderResponse{}, fmt.Errorf("%s: %w: %w", op, ErrPaymentProvider, err)
	}

	// 3. Счёт в статусе pending
	inv := model.Invoice{
		ID:              uuid.New(),
		InvoiceNumber:   invoiceNumber,
		CustomerID:      customerID,
		Type:            req.Type,
		ItemIDs:         req.ItemIDs,
		ItemCount:       req.ItemCount,
		PricePerItem:    req.PricePerItem,
		TotalAmount:     total,
		Currency:        req.Currency,
		PaymentStatus:   model.PaymentPending,
		ProviderOrderID: order.ID,
		CreatedAt:       now,
	}
	if err := s.invoices.CreatePending(ctx, inv); err != nil {
		log.Error("failed to save pending invoice", slog.String("error", err.Error()))
		return model.CreateOrderResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("order created", slog.String("provider_order_id", order.ID), slog.String("total", total.StringFixed(2)))
	return model.CreateOrderResponse{InvoiceNumber: invoiceNumber, OrderData: order}, nil
}

// VerifyPayment записывает итог попытки оплаты
// статус счёта меняется только один раз, при completed выдаётся доступ к скачиванию
// completed принимается только после того, как его подтвердил провайдер
func (s *PaymentService) VerifyPayment(ctx context.Context, customerID uuid.UUID, req model.VerifyPaymentRequest) (model.Invoice, error) {
	const op = "service.PaymentService.VerifyPayment"
	log := s.log.With(slog.String("op", op), slog.String("invoice_number", req.InvoiceNumber))

	// 1. Валидация
	if err := req.Validate(); err != nil {
		return model.Invoice{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidRequest, err)
	}

	// 2. Сверка с провайдером
	if req.PaymentStatus == model.PaymentCompleted {
		confirmed, err := s.confirmCapture(ctx, customerID, req)
		if err != nil {
			return model.Invoice{}, fmt.Errorf("%s: %w", op, err)
		}
		if confirmed.PaymentStatus != req.PaymentStatus {
			log.Warn("completed status not confirmed by provider",
				slog.String("recorded_status", string(confirmed.PaymentStatus)),
				slog.String("reason", confirmed.ErrorMessage),
			)
		}
		req = confirmed
	}

	// 3. Запись итога
	now := s.clock.Now()
	inv, changed, err := s.invoices.Finalize(ctx, postgres.FinalizeParams{
		CustomerID:        customerID,
		Request:           req,
		Now:               now,
		DownloadRetention: s.retention,
	})
	if err != nil {
		if !errors.Is(err, postgres.ErrInvoiceNotFound) {
			log.Error("failed to finalize invoice", slog.String("error", err.Error()))
		}
		return model.Invoice{}, fmt.Errorf("%s: %w", op, err)
	}

	if !changed {
		log.Info("invoice already in requested state", slog.String("status", string(inv.PaymentStatus)))
		return inv, nil
	}

	log.Info("invoice finalized", slog.String("status", string(inv.PaymentStatus)))

	// событие уходит только после записи статуса; его потеря не отменяет оплату
	if inv.PaymentStatus.IsTerminal() {
		if err := s.publisher.PublishPayment(ctx, model.NewPaymentEvent(inv, now)); err != nil {
			log.Error("failed to publish payment event", slog.String("error", err.Error()))
		}
	}

	return inv, nil
}

// confirmCapture сверяет заявленный клиентом completed с заказом у провайдера
// подтверждённый захват на сумму счёта остаётся completed, отклонённый или не на ту сумму
// становится failed, всё остальное (включая недоступность провайдера) - pending
func (s *PaymentService) confirmCapture(ctx context.Context, customerID uuid.UUID, req model.VerifyPaymentRequest) (model.VerifyPaymentRequest, error) {
	const op = "service.PaymentService.confirmCapture"

	inv, err := s.invoices.GetByNumber(ctx, customerID, req.InvoiceNumber)
	if err != nil {
		return req, fmt.Errorf("%s: %w", op, err)
	}
	// конечный статус уже записан, повтор разберёт Finalize
	if inv.PaymentStatus.IsTerminal() {
		return req, nil
	}

	payment, err := s.gateway.GetOrder(ctx, inv.ProviderOrderID)
	if err != nil {
		req.PaymentStatus = model.PaymentPending
		req.ErrorMessage = "payment not confirmed by provider: " + err.Error()
		return req, nil
	}

	switch status := checkout.MapProviderStatus(payment.Status); {
	case status == model.PaymentCompleted && payment.Amount.Equal(inv.TotalAmount) && payment.Currency == inv.Currency:
		req.PaymentID = payment.OrderID
		req.TransactionID = payment.CaptureID
		if payment.PayerID != "" {
			req.PayerID = payment.PayerID
		}
		if payment.PayerEmail != "" {
			req.PayerEmail = payment.PayerEmail
		}
		req.ErrorMessage = ""
	case status == model.PaymentCompleted:
		req.PaymentStatus = model.PaymentFailed
		req.ErrorMessage = fmt.Sprintf("captured %s %s does not match invoice total %s %s",
			payment.Amount.StringFixed(2), payment.Currency, inv.TotalAmount.StringFixed(2), inv.Currency)
	case status == model.PaymentFailed:
		req.PaymentStatus = model.PaymentFailed
		req.ErrorMessage = fmt.Sprintf("provider reported status %q", payment.Status)
	default:
		req.PaymentStatus = model.PaymentPending
		req.ErrorMessage = fmt.Sprintf("provider reported status %q", payment.Status)
	}
	return req, nil
}

// ListInvoices возвращает счета покупателя
func (s *PaymentService) ListInvoices(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error) {
	const op = "service.PaymentService.ListInvoices"

	invoices, err := s.invoices.List(ctx, customerID, page.Normalize())
	if err != nil {
		s.log.Error("failed to list invoices", slog.String("op", op), slog.String("error", err.Error()))
		return model.Page[model.Invoice]{}, fmt.Errorf("%s: %w", op, err)
	}
	return invoices, nil
}

// InvoicePDF рисует счёт покупателя в PDF
func (s *PaymentService) InvoicePDF(ctx context.Context, customerID, invoiceID uuid.UUID) (model.Invoice, []byte, error) {
	const op = "service.PaymentService.InvoicePDF"

	inv, err := s.invoices.GetByID(ctx, customerID, invoiceID)
	if err != nil {
		return model.Invoice{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	pdf, err := invoicepdf.Bytes(inv)
	if err != nil {
		s.log.Error("failed to render invoice", slog.String("op", op), slog.String("error", err.Error()))
		return model.Invoice{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	return inv, pdf, nil
}

// NewInvoiceNumber выдаёт номер счёта вида INV-<ULID>
// ULID сортируется по времени, поэтому номера идут по порядку выдачи
func NewInvoiceNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return InvoicePrefix + id.String()
}

// IsInvoiceNumber проверяет формат номера счёта
func IsInvoiceNumber(s string) bool {
	rest, ok := strings.CutPrefix(s, InvoicePrefix)
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}
