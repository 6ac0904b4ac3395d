package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/asquebay/leadbase-service/internal/lib/jwtauth"
	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
	"github.com/asquebay/leadbase-service/internal/service"
)

// DashboardProvider отдаёт сводки панели управления
type DashboardProvider interface {
	Summary(ctx context.Context, role model.Role, userID uuid.UUID, refresh bool) (service.DashboardResult, error)
}

// PaymentProcessor - операции оформления покупки
type PaymentProcessor interface {
	CreateOrder(ctx context.Context, customerID uuid.UUID, req model.CreateOrderRequest) (model.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, customerID uuid.UUID, req model.VerifyPaymentRequest) (model.Invoice, error)
	ListInvoices(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error)
	InvoicePDF(ctx context.Context, customerID, invoiceID uuid.UUID) (model.Invoice, []byte, error)
}

// CustomerReader - выборки для покупателя
type CustomerReader interface {
	ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Download], error)
	ListActivity(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error)
	SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error)
}

// TokenVerifier проверяет bearer-токен
type TokenVerifier interface {
	Verify(token string) (jwtauth.Principal, error)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	dashboards DashboardProvider
	payments   PaymentProcessor
	customers  CustomerReader
	verifier   TokenVerifier
	log        *slog.Logger
	router     chi.Router
}

// NewHandler создает новый экземпляр Handler
func NewHandler(dashboards DashboardProvider, payments PaymentProcessor, customers CustomerReader, verifier TokenVerifier, log *slog.Logger) *Handler {
	h := &Handler{
		dashboards: dashboards,
		payments:   payments,
		customers:  customers,
		verifier:   verifier,
		log:        log.With(slog.String("component", "http")),
		router:     chi.NewRouter(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	r := h.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/admin", func(r chi.Router) {
			r.With(requireRole(model.RoleSuperadmin)).Get("/dashboard", h.getDashboard)
			r.With(requireRole(model.RoleAdmin)).Get("/admin-dashboard", h.getDashboard)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Use(requireRole(model.RoleCustomer))

			r.Get("/contacts", h.searchContacts)
			r.Get("/downloads", h.listDownloads)
			r.Get("/activity-logs", h.listActivity)

			r.Route("/payment", func(r chi.Router) {
				r.Post("/create-order", h.createOrder)
				r.Post("/verify-payment", h.verifyPayment)
				r.Get("/invoices", h.listInvoices)
				r.Get("/invoices/{id}/pdf", h.invoicePDF)
			})
		})
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	res, err := h.dashboards.Summary(r.Context(), p.Role, p.UserID, refresh)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("X-Cache-Refreshing", strconv.FormatBool(res.Refreshing))
	h.respondJSON(w, http.StatusOK, res.Summary)
}

func (h *Handler) searchContacts(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := model.ContactFilter{
		Search:      q.Get("search"),
		Industry:    q.Get("industry"),
		Country:     q.Get("country"),
		JobTitle:    q.Get("jobTitle"),
		PageRequest: page,
	}

	contacts, err := h.customers.SearchContacts(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, contacts)
}

func (h *Handler) listDownloads(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	downloads, err := h.customers.ListDownloads(r.Context(), principalFrom(r.Context()).UserID, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, downloads)
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	logs, err := h.customers.ListActivity(r.Context(), principalFrom(r.Context()).UserID, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.payments.CreateOrder(r.Context(), principalFrom(r.Context()).UserID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyPaymentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.payments.VerifyPayment(r.Context(), principalFrom(r.Context()).UserID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}
	invoices, err := h.payments.ListInvoices(r.Context(), principalFrom(r.Context()).UserID, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, invoices)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, model.CodeBadRequest, "invalid invoice id")
		return
	}

	inv, pdf, err := h.payments.InvoicePDF(r.Context(), principalFrom(r.Context()).UserID, id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+inv.InvoiceNumber+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// parsePage читает page и limit из query; отсутствующие значения заменяются значениями по умолчанию
func (h *Handler) parsePage(w http.ResponseWriter, r *http.Request) (model.PageRequest, bool) {
	var page model.PageRequest
	q := r.URL.Query()
	for name, dst := range map[string]*int{"page": &page.Page, "limit": &page.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, model.CodeBadRequest, "invalid "+name)
			return model.PageRequest{}, false
		}
		*dst = n
	}
	return page.Normalize(), true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, model.CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondServiceError переводит ошибку сервисного слоя в HTTP-ответ
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		h.respondError(w, http.StatusUnprocessableEntity, model.CodeValidation, err.Error())
	case errors.Is(err, service.ErrForbidden):
		h.respondError(w, http.StatusForbidden, model.CodeForbidden, "forbidden")
	case errors.Is(err, postgres.ErrInvoiceNotFound):
		h.respondError(w, http.StatusNotFound, model.CodeNotFound, "invoice not found")
	case errors.Is(err, postgres.ErrInvoiceFinalized):
		h.respondError(w, http.StatusConflict, model.CodeInvoiceFinalized, "invoice already finalized with another status")
	case errors.Is(err, postgres.ErrInvoiceMismatch):
		h.respondError(w, http.StatusConflict, model.CodeInvoiceMismatch, "payment details do not match invoice")
	case errors.Is(err, service.ErrDashboardBusy):
		w.Header().Set("Retry-After", "1")
		h.respondError(w, http.StatusServiceUnavailable, model.CodeDashboardBusy, "dashboard summary is being computed")
	case errors.Is(err, service.ErrPaymentProvider):
		h.log.Error("payment provider error", slog.String("request_id", middleware.GetReqID(r.Context())), slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadGateway, model.CodeProviderFailure, "payment provider error")
	default:
		h.log.Error("internal server error", slog.String("request_id", middleware.GetReqID(r.Context())), slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, model.CodeInternal, "internal server error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error", "code": "INTERNAL"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, model.ErrorResponse{Error: message, Code: code})
}

// logRequests пишет одну строку лога на запрос
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("request handled",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
