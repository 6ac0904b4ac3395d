package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
)

type mockDashboardRepo struct{ mock.Mock }

func (m *mockDashboardRepo) Summary(ctx context.Context, role model.Role, userID uuid.UUID) (model.DashboardSummary, error) {
	args := m.Called(ctx, role, userID)
	return args.Get(0).(model.DashboardSummary), args.Error(1)
}

type mockInvoiceRepo struct{ mock.Mock }

func (m *mockInvoiceRepo) CreatePending(ctx context.Context, inv model.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *mockInvoiceRepo) Finalize(ctx context.Context, p postgres.FinalizeParams) (model.Invoice, bool, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Invoice), args.Bool(1), args.Error(2)
}

func (m *mockInvoiceRepo) List(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error) {
	args := m.Called(ctx, customerID, page)
	return args.Get(0).(model.Page[model.Invoice]), args.Error(1)
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, customerID, id uuid.UUID) (model.Invoice, error) {
	args := m.Called(ctx, customerID, id)
	return args.Get(0).(model.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) GetByNumber(ctx context.Context, customerID uuid.UUID, invoiceNumber string) (model.Invoice, error) {
	args := m.Called(ctx, customerID, invoiceNumber)
	return args.Get(0).(model.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest, now time.Time) (model.Page[model.Download], error) {
	args := m.Called(ctx, customerID, page, now)
	return args.Get(0).(model.Page[model.Download]), args.Error(1)
}

type mockActivityRepo struct{ mock.Mock }

func (m *mockActivityRepo) List(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(model.Page[model.ActivityLog]), args.Error(1)
}

type mockContactRepo struct{ mock.Mock }

func (m *mockContactRepo) ImportBatch(ctx context.Context, batch model.ImportBatch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *mockContactRepo) SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.Page[model.Contact]), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateOrder(ctx context.Context, invoiceNumber string, amount decimal.Decimal, currency string) (model.OrderData, error) {
	args := m.Called(ctx, invoiceNumber, amount, currency)
	return args.Get(0).(model.OrderData), args.Error(1)
}

func (m *mockGateway) GetOrder(ctx context.Context, orderID string) (model.ProviderPayment, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.ProviderPayment), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishPayment(ctx context.Context, event model.PaymentEvent) error {
	return m.Called(ctx, event).Error(0)
}

type mockInvalidator struct{ mock.Mock }

func (m *mockInvalidator) InvalidateUploads(uploadedBy uuid.UUID) {
	m.Called(uploadedBy)
}
