package checkout

import (
	"errors"
	"fmt"

	"github.com/asquebay/leadbase-service/internal/model"
)

// ValidationError - запрос не прошёл проверку, в сеть ничего не ушло
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "checkout: invalid request: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError - не удалось поговорить с собственным бэкендом
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("checkout: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError - провайдер недоступен, платёж отклонён или отменён
// Status пуст, если до захвата дело не дошло
type ProviderError struct {
	Op     string
	Status model.PaymentStatus
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("checkout: provider %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkout: provider %s (%s): %v", e.Op, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UserMessage переводит ошибку попытки в текст для пользователя
func UserMessage(err error) string {
	var (
		validationErr *ValidationError
		transportErr  *TransportError
		providerErr   *ProviderError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return "Please check your order: " + validationErr.Err.Error()
	case errors.As(err, &providerErr) && providerErr.Status == model.PaymentCancelled:
		return "Payment was cancelled."
	case errors.As(err, &providerErr) && providerErr.Op == "load":
		return "Payment provider is unavailable. Please try again later."
	case errors.As(err, &providerErr):
		return "Payment failed."
	case errors.As(err, &transportErr):
		return "Payment error. Please contact support if you were charged."
	default:
		return "Payment error."
	}
}
