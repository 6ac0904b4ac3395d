package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/leadbase-service/internal/model"
)

// recentActivityLimit - сколько последних действий показывается на панели
const recentActivityLimit = 10

// DashboardRepository собирает сводки для панелей управления
type DashboardRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewDashboardRepository создает новый экземпляр репозитория
func NewDashboardRepository(db *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{db: db, sq: statementBuilder()}
}

// Summary считает сводку
// суперадмин видит всё, администратор - только загруженное им самим
func (r *DashboardRepository) Summary(ctx context.Context, role model.Role, userID uuid.UUID) (model.DashboardSummary, error) {
	const op = "repository.postgres.dashboard.Summary"

	var scope squirrel.Sqlizer = squirrel.Expr("TRUE")
	if role != model.RoleSuperadmin {
		scope = squirrel.Eq{"uploaded_by": userID}
	}

	var (
		summary model.DashboardSummary
		err     error
	)

	// 1. Количество записей
	summary.ContactsCount, err = count(ctx, r.db, r.sq.Select("COUNT(*)").From("contacts").Where(scope))
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("%s: failed to count contacts: %w", op, err)
	}
	summary.CompaniesCount, err = count(ctx, r.db, r.sq.Select("COUNT(*)").From("companies").Where(scope))
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("%s: failed to count companies: %w", op, err)
	}
	if role == model.RoleSuperadmin {
		summary.AdminUsersCount, err = count(ctx, r.db, r.sq.Select("COUNT(*)").From("users").Where(squirrel.Eq{"role": string(model.RoleAdmin)}))
		if err != nil {
			return model.DashboardSummary{}, fmt.Errorf("%s: failed to count admin users: %w", op, err)
		}
	}

	// 2. Дата последней загрузки
	sql, args, err := r.sq.Select("MAX(created_at)").From("imports").Where(scope).ToSql()
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("%s: failed to build last import query: %w", op, err)
	}
	var lastImport *time.Time
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&lastImport); err != nil {
		return model.DashboardSummary{}, fmt.Errorf("%s: failed to query last import: %w", op, err)
	}
	summary.LastImportDate = lastImport

	// 3. Последние действия
	activity := r.sq.Select("id", "user_id", "action", "details", "created_at").
		From("activity_logs").
		OrderBy("created_at DESC").
		Limit(recentActivityLimit)
	if role != model.RoleSuperadmin {
		activity = activity.Where(squirrel.Eq{"user_id": userID})
	}
	summary.ActivityLogs, err = selectActivity(ctx, r.db, activity)
	if err != nil {
		return model.DashboardSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	return summary, nil
}
