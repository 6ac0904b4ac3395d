package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/asquebay/leadbase-service/internal/cache"
	"github.com/asquebay/leadbase-service/internal/model"
)

// ErrDashboardBusy - сводка для этой области ещё считается, а показать пока нечего
var ErrDashboardBusy = errors.New("dashboard summary is being computed")

// ErrForbidden - роль не имеет доступа к операции
var ErrForbidden = errors.New("forbidden")

// DashboardService отдаёт сводки панели управления через координатор кэша
type DashboardService struct {
	repo        DashboardRepository
	coordinator *cache.Coordinator[model.DashboardSummary]
	log         *slog.Logger
}

// NewDashboardService создаёт сервис сводок
func NewDashboardService(repo DashboardRepository, coordinator *cache.Coordinator[model.DashboardSummary], log *slog.Logger) *DashboardService {
	return &DashboardService{
		repo:        repo,
		coordinator: coordinator,
		log:         log,
	}
}

// DashboardResult - сводка и признак того, что за ней идёт обновление
type DashboardResult struct {
	Summary    model.DashboardSummary
	Refreshing bool
}

// Summary возвращает сводку для роли
// refresh означает, что пользователь только что открыл экран: закэшированная сводка
// отдаётся сразу, а свежая считается в фоне
func (s *DashboardService) Summary(ctx context.Context, role model.Role, userID uuid.UUID, refresh bool) (DashboardResult, error) {
	const op = "service.DashboardService.Summary"
	log := s.log.With(slog.String("op", op), slog.String("role", string(role)))

	if role != model.RoleSuperadmin && role != model.RoleAdmin {
		return DashboardResult{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	state, err := s.coordinator.GetOrFetch(ctx, cache.Request[model.DashboardSummary]{
		Scope:     DashboardScope(role, userID),
		Navigated: refresh,
		Fetch: func(ctx context.Context) (model.DashboardSummary, error) {
			return s.repo.Summary(ctx, role, userID)
		},
	})
	if err != nil {
		log.Error("failed to load dashboard summary", slog.String("error", err.Error()))
		return DashboardResult{}, fmt.Errorf("%s: %w", op, err)
	}

	// параллельный запрос уже считает сводку
	if !state.HasData {
		return DashboardResult{}, fmt.Errorf("%s: %w", op, ErrDashboardBusy)
	}

	return DashboardResult{Summary: state.Data, Refreshing: state.Refreshing}, nil
}

// InvalidateUploads сбрасывает сводки, в которые попадают загрузки администратора:
// его собственную и общую сводку суперадмина
func (s *DashboardService) InvalidateUploads(uploadedBy uuid.UUID) {
	s.coordinator.Invalidate(DashboardScope(model.RoleAdmin, uploadedBy))
	s.coordinator.Invalidate(DashboardScope(model.RoleSuperadmin, uuid.Nil))
}

// Prune забывает состояние простаивающих областей в памяти
// у каждого администратора своя область, без чистки они копятся; записи в хранилище остаются
func (s *DashboardService) Prune() {
	s.coordinator.Reset()
}

// DashboardScope возвращает ключ области кэша для сводки
// сводка суперадмина общая, сводка администратора своя у каждого
func DashboardScope(role model.Role, userID uuid.UUID) string {
	if role == model.RoleSuperadmin {
		return "dashboard:superadmin"
	}
	return "dashboard:" + string(role) + ":" + userID.String()
}
