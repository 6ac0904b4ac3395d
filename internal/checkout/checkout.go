// Package checkout проводит одну попытку оплаты от создания заказа до записанного конечного статуса.
//
// Каждая попытка, получившая от бэкенда номер счёта, заканчивается ровно одним вызовом
// verify-payment, что бы ни случилось у провайдера, включая обрыв связи во время захвата.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asquebay/leadbase-service/internal/model"
)

// ErrCancelled возвращается провайдером, когда пользователь закрыл окно оплаты
var ErrCancelled = errors.New("payment cancelled by user")

// Backend - собственный бэкенд: создание заказа и фиксация результата оплаты
type Backend interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (model.Invoice, error)
}

// ProviderOrder - результат захвата платежа у провайдера
type ProviderOrder struct {
	ID            string
	Status        string
	PayerID       string
	PayerEmail    string
	TransactionID string
}

// Provider - узкий контракт платёжного виджета
// Ready проверяет, что провайдер доступен (SDK загружен, токен получен),
// Capture проводит оплату и возвращает ErrCancelled при отмене пользователем
type Provider interface {
	Ready(ctx context.Context) error
	Capture(ctx context.Context, order model.OrderData) (ProviderOrder, error)
}

// State - шаг конечного автомата оформления
type State int

const (
	StateInitiating State = iota
	StateOrderCreated
	StateCapturing
	StateCompleted
	StateFailed
	StateCancelled
	StatePending
)

func (s State) String() string {
	switch s {
	case StateInitiating:
		return "initiating"
	case StateOrderCreated:
		return "order_created"
	case StateCapturing:
		return "capturing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StatePending:
		return "pending"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal сообщает, что шаг конечный
func (s State) Terminal() bool {
	return s >= StateCompleted
}

func stateFor(status model.PaymentStatus) State {
	switch status {
	case model.PaymentCompleted:
		return StateCompleted
	case model.PaymentCancelled:
		return StateCancelled
	case model.PaymentPending:
		return StatePending
	default:
		return StateFailed
	}
}

// Attempt - одна попытка оплаты
// номер счёта выдаётся сервером и не меняется до конца попытки
type Attempt struct {
	InvoiceNumber string
	Order         model.OrderData
	Request       model.CreateOrderRequest
	State         State
	Status        model.PaymentStatus
}

// Outcome - итог попытки
type Outcome struct {
	Attempt  Attempt
	Invoice  model.Invoice
	Verified bool
}

// Machine проводит попытки оплаты
// параллельные попытки друг от друга не защищены, каждая живёт сама по себе
type Machine struct {
	backend  Backend
	provider Provider
	log      *slog.Logger

	onTransition func(from, to State)
	onSuccess    func(model.Invoice)
}

// Option настраивает Machine
type Option func(*Machine)

// OnTransition подписывает на переходы между шагами
func OnTransition(fn func(from, to State)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// OnSuccess подписывает на успешную оплату; вызывается только для completed
func OnSuccess(fn func(model.Invoice)) Option {
	return func(m *Machine) { m.onSuccess = fn }
}

// New создаёт автомат
func New(backend Backend, provider Provider, log *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		backend:  backend,
		provider: provider,
		log:      log.With(slog.String("component", "checkout")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run проводит одну попытку оплаты от начала до конца
// ошибка nil только для completed и pending, причём для pending это не успех, а ожидание
func (m *Machine) Run(ctx context.Context, req model.CreateOrderRequest) (Outcome, error) {
	const op = "checkout.Machine.Run"
	attempt := &Attempt{Request: req, State: StateInitiating}

	// 1. Валидация до любых сетевых вызовов
	if err := req.Validate(); err != nil {
		return Outcome{Attempt: *attempt}, &ValidationError{Err: err}
	}

	// 2. Провайдер должен быть доступен, иначе заказ не создаём
	if err := m.provider.Ready(ctx); err != nil {
		m.log.Error("payment provider unavailable", slog.String("op", op), slog.String("error", err.Error()))
		return Outcome{Attempt: *attempt}, &ProviderError{Op: "load", Err: err}
	}

	// 3. Создание заказа: сервер выдаёт номер счёта до движения денег
	created, err := m.backend.CreateOrder(ctx, req)
	if err != nil {
		m.log.Error("failed to create order", slog.String("op", op), slog.String("error", err.Error()))
		return Outcome{Attempt: *attempt}, &TransportError{Op: "create-order", Err: err}
	}
	attempt.InvoiceNumber = created.InvoiceNumber
	attempt.Order = created.OrderData
	m.transition(attempt, StateOrderCreated)

	log := m.log.With(slog.String("op", op), slog.String("invoice_number", attempt.InvoiceNumber))

	// 4. Захват платежа у провайдера
	m.transition(attempt, StateCapturing)
	order, captureErr := m.provider.Capture(ctx, created.OrderData)

	verify := model.VerifyPaymentRequest{
		InvoiceNumber: attempt.InvoiceNumber,
		Type:          req.Type,
		ItemIDs:       req.ItemIDs,
		ItemCount:     req.ItemCount,
		PricePerItem:  req.PricePerItem,
		Currency:      req.Currency,
	}

	switch {
	case errors.Is(captureErr, ErrCancelled):
		verify.PaymentStatus = model.PaymentCancelled
		verify.ErrorMessage = "payment cancelled by user"
	case captureErr != nil:
		verify.PaymentStatus = model.PaymentFailed
		verify.ErrorMessage = captureErr.Error()
	default:
		verify.PaymentStatus = MapProviderStatus(order.Status)
		verify.PaymentID = order.ID
		verify.PayerID = order.PayerID
		verify.PayerEmail = order.PayerEmail
		verify.TransactionID = order.TransactionID
		if verify.PaymentStatus == model.PaymentFailed {
			verify.ErrorMessage = fmt.Sprintf("provider reported status %q", order.Status)
		}
	}
	attempt.Status = verify.PaymentStatus

	// 5. Фиксация результата на бэкенде, ровно один раз на попытку
	// контекст вызывающего может быть уже отменён, но записать итог всё равно нужно
	invoice, verifyErr := m.backend.VerifyPayment(context.WithoutCancel(ctx), verify)
	m.transition(attempt, stateFor(verify.PaymentStatus))

	outcome := Outcome{Attempt: *attempt, Invoice: invoice, Verified: verifyErr == nil}

	if verifyErr != nil {
		log.Error("failed to verify payment", slog.String("status", string(verify.PaymentStatus)), slog.String("error", verifyErr.Error()))
		return outcome, &TransportError{Op: "verify-payment", Err: verifyErr}
	}

	log.Info("payment attempt finished", slog.String("status", string(verify.PaymentStatus)))

	switch verify.PaymentStatus {
	case model.PaymentCompleted:
		if m.onSuccess != nil {
			m.onSuccess(invoice)
		}
		return outcome, nil
	case model.PaymentPending:
		return outcome, nil
	case model.PaymentCancelled:
		return outcome, &ProviderError{Op: "capture", Status: model.PaymentCancelled, Err: ErrCancelled}
	default:
		err := captureErr
		if err == nil {
			err = errors.New(verify.ErrorMessage)
		}
		return outcome, &ProviderError{Op: "capture", Status: model.PaymentFailed, Err: err}
	}
}

func (m *Machine) transition(a *Attempt, to State) {
	from := a.State
	a.State = to
	if m.onTransition != nil {
		m.onTransition(from, to)
	}
}

// MapProviderStatus переводит статус заказа PayPal в статус оплаты
// неизвестные статусы считаются ожидающими: деньги могли уйти, сверка решит
func MapProviderStatus(status string) model.PaymentStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return model.PaymentCompleted
	case "VOIDED", "DECLINED", "DENIED", "FAILED":
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}
