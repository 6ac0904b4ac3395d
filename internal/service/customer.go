package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/asquebay/leadbase-service/internal/model"
)

// CustomerService отдаёт покупателю его загрузки, журнал и каталог контактов
type CustomerService struct {
	invoices InvoiceRepository
	activity ActivityRepository
	contacts ContactRepository
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewCustomerService создаёт сервис покупателя
func NewCustomerService(invoices InvoiceRepository, activity ActivityRepository, contacts ContactRepository, clock clockwork.Clock, log *slog.Logger) *CustomerService {
	return &CustomerService{
		invoices: invoices,
		activity: activity,
		contacts: contacts,
		clock:    clock,
		log:      log,
	}
}

// ListDownloads возвращает действующие доступы к скачиванию
func (s *CustomerService) ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Download], error) {
	const op = "service.CustomerService.ListDownloads"

	downloads, err := s.invoices.ListDownloads(ctx, customerID, page.Normalize(), s.clock.Now())
	if err != nil {
		s.log.Error("failed to list downloads", slog.String("op", op), slog.String("error", err.Error()))
		return model.Page[model.Download]{}, fmt.Errorf("%s: %w", op, err)
	}
	return downloads, nil
}

// ListActivity возвращает журнал действий пользователя
func (s *CustomerService) ListActivity(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error) {
	const op = "service.CustomerService.ListActivity"

	logs, err := s.activity.List(ctx, userID, page.Normalize())
	if err != nil {
		s.log.Error("failed to list activity", slog.String("op", op), slog.String("error", err.Error()))
		return model.Page[model.ActivityLog]{}, fmt.Errorf("%s: %w", op, err)
	}
	return logs, nil
}

// SearchContacts ищет контакты по фильтрам
func (s *CustomerService) SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error) {
	const op = "service.CustomerService.SearchContacts"

	filter.PageRequest = filter.PageRequest.Normalize()
	contacts, err := s.contacts.SearchContacts(ctx, filter)
	if err != nil {
		s.log.Error("failed to search contacts", slog.String("op", op), slog.String("error", err.Error()))
		return model.Page[model.Contact]{}, fmt.Errorf("%s: %w", op, err)
	}
	return contacts, nil
}
