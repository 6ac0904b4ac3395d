package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/repository/postgres"
)

// ImportService сохраняет пакеты загрузок администраторов
type ImportService struct {
	contacts   ContactRepository
	dashboards DashboardInvalidator
	log        *slog.Logger
}

// NewImportService создаёт сервис загрузок
func NewImportService(contacts ContactRepository, dashboards DashboardInvalidator, log *slog.Logger) *ImportService {
	return &ImportService{
		contacts:   contacts,
		dashboards: dashboards,
		log:        log,
	}
}

// ImportBatch сохраняет пакет и сбрасывает затронутые сводки
// повторно пришедший пакет считается уже обработанным
func (s *ImportService) ImportBatch(ctx context.Context, batch model.ImportBatch) error {
	const op = "service.ImportService.ImportBatch"
	log := s.log.With(slog.String("op", op), slog.String("batch_id", batch.BatchID))

	// 1. Сохраняем в БД
	if err := s.contacts.ImportBatch(ctx, batch); err != nil {
		if errors.Is(err, postgres.ErrDuplicateBatch) {
			log.Info("batch already imported, skipping")
			return nil
		}
		log.Error("failed to import batch", slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	// 2. Сводки с этими записями устарели
	s.dashboards.InvalidateUploads(batch.UploadedBy)

	log.Info("batch imported",
		slog.Int("contacts", len(batch.Contacts)),
		slog.Int("companies", len(batch.Companies)),
	)
	return nil
}
