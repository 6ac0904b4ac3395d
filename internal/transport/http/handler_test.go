package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/leadbase-service/internal/lib/jwtauth"
	"github.com/asquebay/leadbase-service/internal/lib/logger"
	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
	"github.com/asquebay/leadbase-service/internal/service"
)

const testSecret = "handler-test-secret"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type mockDashboards struct{ mock.Mock }

func (m *mockDashboards) Summary(ctx context.Context, role model.Role, userID uuid.UUID, refresh bool) (service.DashboardResult, error) {
	args := m.Called(ctx, role, userID, refresh)
	return args.Get(0).(service.DashboardResult), args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) CreateOrder(ctx context.Context, customerID uuid.UUID, req model.CreateOrderRequest) (model.CreateOrderResponse, error) {
	args := m.Called(ctx, customerID, req)
	return args.Get(0).(model.CreateOrderResponse), args.Error(1)
}

func (m *mockPayments) VerifyPayment(ctx context.Context, customerID uuid.UUID, req model.VerifyPaymentRequest) (model.Invoice, error) {
	args := m.Called(ctx, customerID, req)
	return args.Get(0).(model.Invoice), args.Error(1)
}

func (m *mockPayments) ListInvoices(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, customerID, page)
	return args.Get(0).(model.Page[model.Invoice]), args.Error(1)
}

func (m *mockPayments) InvoicePDF(ctx context.Context, customerID, invoiceID uuid.UUID) (model.Invoice, []byte, error) {
	args := m.Called(ctx, customerID, invoiceID)
	return args.Get(0).(model.Invoice), args.Get(1).([]byte), args.Error(2)
}

type mockCustomers struct{ mock.Mock }

func (m *mockCustomers) ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Download], error) {
	args := m.Called(ctx, customerID, page)
	return args.Get(0).(model.Page[model.Download]), args.Error(1)
}

func (m *mockCustomers) ListActivity(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(model.Page[model.ActivityLog]), args.Error(1)
}

func (m *mockCustomers) SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.Page[model.Contact]), args.Error(1)
}

type fixture struct {
	dashboards *mockDashboards
	payments   *mockPayments
	customers  *mockCustomers
	handler    *Handler
}

func newFixture() *fixture {
	f := &fixture{dashboards: &mockDashboards{}, payments: &mockPayments{}, customers: &mockCustomers{}}
	verifier := jwtauth.NewVerifier(testSecret, "leadbase", func() time.Time { return testNow })
	f.handler = NewHandler(f.dashboards, f.payments, f.customers, verifier, logger.Discard())
	return f
}

func token(t *testing.T, userID uuid.UUID, role model.Role) string {
	t.Helper()
	tok, err := jwtauth.Issue(testSecret, "leadbase", jwtauth.Principal{UserID: userID, Role: role}, time.Hour, testNow)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodGet, "/customers/downloads", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, model.CodeUnauthorized, decodeError(t, rec).Code)

	rec = f.do(t, http.MethodGet, "/customers/downloads", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	f := newFixture()
	admin := token(t, uuid.New(), model.RoleAdmin)
	customer := token(t, uuid.New(), model.RoleCustomer)

	rec := f.do(t, http.MethodGet, "/admin/dashboard", admin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "admin cannot read the superadmin dashboard")

	rec = f.do(t, http.MethodGet, "/customers/downloads", admin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/admin-dashboard", customer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, model.CodeForbidden, decodeError(t, rec).Code)
}

func TestGetDashboard(t *testing.T) {
	f := newFixture()
	adminID := uuid.New()
	last := testNow.Add(-time.Hour)

	f.dashboards.On("Summary", mock.Anything, model.RoleAdmin, adminID, true).Return(service.DashboardResult{
		Summary:    model.DashboardSummary{ContactsCount: 4, CompaniesCount: 2, LastImportDate: &last, ActivityLogs: []model.ActivityLog{}},
		Refreshing: true,
	}, nil)

	rec := f.do(t, http.MethodGet, "/admin/admin-dashboard?refresh=true", token(t, adminID, model.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Cache-Refreshing"))

	var got model.DashboardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.ContactsCount)
	assert.Equal(t, 2, got.CompaniesCount)
}

func TestGetDashboardBusy(t *testing.T) {
	f := newFixture()
	f.dashboards.On("Summary", mock.Anything, model.RoleSuperadmin, mock.Anything, false).
		Return(service.DashboardResult{}, fmt.Errorf("wrapped: %w", service.ErrDashboardBusy))

	rec := f.do(t, http.MethodGet, "/admin/dashboard", token(t, uuid.New(), model.RoleSuperadmin), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, model.CodeDashboardBusy, decodeError(t, rec).Code)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture()
	customerID := uuid.New()
	itemID := uuid.New()

	f.payments.On("CreateOrder", mock.Anything, customerID, mock.MatchedBy(func(req model.CreateOrderRequest) bool {
		return req.Type == model.PurchaseContacts && req.ItemCount == 1 && req.PricePerItem.Equal(decimal.RequireFromString("0.5"))
	})).Return(model.CreateOrderResponse{
		InvoiceNumber: "INV-1",
		OrderData:     model.OrderData{ID: "PP-1", Status: "CREATED"},
	}, nil)

	body := fmt.Sprintf(`{"type":"contacts","itemIds":["%s"],"itemCount":1,"pricePerItem":"0.5","currency":"USD"}`, itemID)
	rec := f.do(t, http.MethodPost, "/customers/payment/create-order", token(t, customerID, model.RoleCustomer), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"invoiceNumber":"INV-1","orderData":{"id":"PP-1","status":"CREATED"}}`, rec.Body.String())
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("op: %w: bad", service.ErrInvalidRequest), http.StatusUnprocessableEntity, model.CodeValidation},
		{"provider", fmt.Errorf("op: %w: down", service.ErrPaymentProvider), http.StatusBadGateway, model.CodeProviderFailure},
		{"internal", fmt.Errorf("op: boom"), http.StatusInternalServerError, model.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.payments.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(model.CreateOrderResponse{}, tt.err)

			body := `{"type":"contacts","itemIds":[],"itemCount":0,"pricePerItem":"0","currency":"USD"}`
			rec := f.do(t, http.MethodPost, "/customers/payment/create-order", token(t, uuid.New(), model.RoleCustomer), body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/customers/payment/create-order", token(t, uuid.New(), model.RoleCustomer), `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeBadRequest, decodeError(t, rec).Code)
	f.payments.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPaymentConflict(t *testing.T) {
	f := newFixture()
	f.payments.On("VerifyPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Invoice{}, fmt.Errorf("op: %w", postgres.ErrInvoiceFinalized))

	body := fmt.Sprintf(`{"invoiceNumber":"INV-1","paymentStatus":"failed","type":"contacts","itemIds":["%s"],"itemCount":1,"pricePerItem":"1","currency":"USD","errorMessage":"network"}`, uuid.New())
	rec := f.do(t, http.MethodPost, "/customers/payment/verify-payment", token(t, uuid.New(), model.RoleCustomer), body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.CodeInvoiceFinalized, decodeError(t, rec).Code)
}

func TestListInvoicesPagination(t *testing.T) {
	f := newFixture()
	customerID := uuid.New()
	want := model.PageRequest{Page: 2, Limit: 5}

	f.payments.On("ListInvoices", mock.Anything, customerID, want).
		Return(model.NewPage([]model.Invoice{}, want, 6), nil)

	rec := f.do(t, http.MethodGet, "/customers/payment/invoices?page=2&limit=5", token(t, customerID, model.RoleCustomer), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"page":2,"limit":5,"total":6,"totalPages":2}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/customers/payment/invoices?page=zero", token(t, customerID, model.RoleCustomer), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoicePDF(t *testing.T) {
	f := newFixture()
	customerID, invoiceID := uuid.New(), uuid.New()
	pdf := []byte("%PDF-1.3 test")

	f.payments.On("InvoicePDF", mock.Anything, customerID, invoiceID).
		Return(model.Invoice{InvoiceNumber: "INV-9"}, pdf, nil)

	rec := f.do(t, http.MethodGet, "/customers/payment/invoices/"+invoiceID.String()+"/pdf", token(t, customerID, model.RoleCustomer), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "INV-9.pdf")
	assert.Equal(t, pdf, rec.Body.Bytes())

	rec = f.do(t, http.MethodGet, "/customers/payment/invoices/not-a-uuid/pdf", token(t, customerID, model.RoleCustomer), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoicePDFNotFound(t *testing.T) {
	f := newFixture()
	f.payments.On("InvoicePDF", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Invoice{}, []byte(nil), fmt.Errorf("op: %w", postgres.ErrInvoiceNotFound))

	rec := f.do(t, http.MethodGet, "/customers/payment/invoices/"+uuid.NewString()+"/pdf", token(t, uuid.New(), model.RoleCustomer), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.CodeNotFound, decodeError(t, rec).Code)
}

func TestSearchContactsFilters(t *testing.T) {
	f := newFixture()
	f.customers.On("SearchContacts", mock.Anything, model.ContactFilter{
		Search:      "ann",
		Country:     "DE",
		PageRequest: model.PageRequest{Page: 1, Limit: 10},
	}).Return(model.Page[model.Contact]{Items: []model.Contact{}}, nil)

	rec := f.do(t, http.MethodGet, "/customers/contacts?search=ann&country=DE", token(t, uuid.New(), model.RoleCustomer), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	f.customers.AssertExpectations(t)
}
