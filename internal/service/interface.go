package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
)

// DashboardRepository определяет контракт для сводок панели управления
type DashboardRepository interface {
	Summary(ctx context.Context, role model.Role, userID uuid.UUID) (model.DashboardSummary, error)
}

// InvoiceRepository определяет контракт для хранилища счетов и доступов к скачиванию
type InvoiceRepository interface {
	CreatePending(ctx context.Context, inv model.Invoice) error
	Finalize(ctx context.Context, p postgres.FinalizeParams) (model.Invoice, bool, error)
	List(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error)
	GetByID(ctx context.Context, customerID, id uuid.UUID) (model.Invoice, error)
	GetByNumber(ctx context.Context, customerID uuid.UUID, invoiceNumber string) (model.Invoice, error)
	ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest, now time.Time) (model.Page[model.Download], error)
}

// ActivityRepository определяет контракт для журнала действий
type ActivityRepository interface {
	List(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error)
}

// ContactRepository определяет контракт для хранилища контактов и компаний
type ContactRepository interface {
	ImportBatch(ctx context.Context, batch model.ImportBatch) error
	SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error)
}

// PaymentGateway создаёт заказ у платёжного провайдера и сообщает, что с ним стало
type PaymentGateway interface {
	CreateOrder(ctx context.Context, invoiceNumber string, amount decimal.Decimal, currency string) (model.OrderData, error)
	GetOrder(ctx context.Context, orderID string) (model.ProviderPayment, error)
}

// EventPublisher публикует события об оплатах
type EventPublisher interface {
	PublishPayment(ctx context.Context, event model.PaymentEvent) error
}

// DashboardInvalidator сбрасывает закэшированные сводки, в которые попадают загрузки пользователя
type DashboardInvalidator interface {
	InvalidateUploads(uploadedBy uuid.UUID)
}
