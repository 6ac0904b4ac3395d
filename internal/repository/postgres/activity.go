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

// ActivityRepository инкапсулирует работу с журналом действий
type ActivityRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewActivityRepository создает новый экземпляр репозитория
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db, sq: statementBuilder()}
}

// List возвращает страницу журнала пользователя, свежие записи первыми
func (r *ActivityRepository) List(ctx context.Context, userID uuid.UUID, page model.PageRequest) (model.Page[model.ActivityLog], error) {
	const op = "repository.postgres.activity.List"

	total, err := count(ctx, r.db, r.sq.Select("COUNT(*)").From("activity_logs").Where(squirrel.Eq{"user_id": userID}))
	if err != nil {
		return model.Page[model.ActivityLog]{}, fmt.Errorf("%s: failed to count activity logs: %w", op, err)
	}

	logs, err := selectActivity(ctx, r.db, r.sq.
		Select("id", "user_id", "action", "details", "created_at").
		From("activity_logs").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()))
	if err != nil {
		return model.Page[model.ActivityLog]{}, fmt.Errorf("%s: %w", op, err)
	}

	return model.NewPage(logs, page, total), nil
}

func logActivity(ctx context.Context, db execer, sq squirrel.StatementBuilderType, userID uuid.UUID, action, details string, at time.Time) error {
	sql, args, err := sq.Insert("activity_logs").
		Columns("id", "user_id", "action", "details", "created_at").
		Values(uuid.New(), userID, action, details, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build activity insert query: %w", err)
	}
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

func selectActivity(ctx context.Context, db *pgxpool.Pool, q squirrel.SelectBuilder) ([]model.ActivityLog, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build activity query: %w", err)
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	logs := []model.ActivityLog{}
	for rows.Next() {
		var l model.ActivityLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
