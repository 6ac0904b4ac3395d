package model

// ErrorResponse - тело ответа API с ошибкой
// code стабилен, по нему клиенты и различают ошибки
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// коды ошибок API
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidation       = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeInvoiceFinalized = "INVOICE_FINALIZED"
	CodeInvoiceMismatch  = "INVOICE_MISMATCH"
	CodeDashboardBusy    = "DASHBOARD_BUSY"
	CodeProviderFailure  = "PAYMENT_PROVIDER_ERROR"
	CodeInternal         = "INTERNAL"
)
