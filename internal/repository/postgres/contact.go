package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/leadbase-service/internal/model"
)

// ContactRepository инкапсулирует логику работы с контактами и компаниями в БД
type ContactRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewContactRepository создает новый экземпляр репозитория
func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db, sq: statementBuilder()}
}

// ImportBatch сохраняет пакет загрузки в рамках одной транзакции
// повторная доставка того же пакета возвращает ErrDuplicateBatch и ничего не меняет
func (r *ContactRepository) ImportBatch(ctx context.Context, batch model.ImportBatch) error {
	const op = "repository.postgres.contact.ImportBatch"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	// 1. Регистрируем пакет, дубликат отсекается уникальным batch_id
	sql, args, err := r.sq.Insert("imports").
		Columns("id", "batch_id", "uploaded_by", "file_name", "contacts_count", "companies_count", "created_at").
		Values(uuid.New(), batch.BatchID, batch.UploadedBy, batch.FileName, len(batch.Contacts), len(batch.Companies), batch.CreatedAt).
		Suffix("ON CONFLICT (batch_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build imports insert query: %w", op, err)
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into imports: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrDuplicateBatch)
	}

	// 2. Контакты: email уникален, повторная загрузка обновляет запись
	for _, c := range batch.Contacts {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		sql, args, err := r.sq.Insert("contacts").
			Columns(
				"id", "first_name", "last_name", "email", "phone", "job_title", "company_name",
				"industry", "country", "city", "linkedin_url", "uploaded_by", "created_at",
			).
			Values(
				id, c.FirstName, c.LastName, strings.ToLower(c.Email), c.Phone, c.JobTitle, c.CompanyName,
				c.Industry, c.Country, c.City, c.LinkedinURL, batch.UploadedBy, batch.CreatedAt,
			).
			Suffix(`ON CONFLICT (email) DO UPDATE SET
				first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, phone = EXCLUDED.phone,
				job_title = EXCLUDED.job_title, company_name = EXCLUDED.company_name, industry = EXCLUDED.industry,
				country = EXCLUDED.country, city = EXCLUDED.city, linkedin_url = EXCLUDED.linkedin_url`).
			ToSql()
		if err != nil {
			return fmt.Errorf("%s: failed to build contacts insert query for %s: %w", op, c.Email, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s: failed to insert contact %s: %w", op, c.Email, err)
		}
	}

	// 3. Компании
	for _, c := range batch.Companies {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		sql, args, err := r.sq.Insert("companies").
			Columns(
				"id", "name", "domain", "industry", "sub_industry", "employee_count",
				"country", "city", "phone", "uploaded_by", "created_at",
			).
			Values(
				id, c.Name, strings.ToLower(c.Domain), c.Industry, c.SubIndustry, c.EmployeeCount,
				c.Country, c.City, c.Phone, batch.UploadedBy, batch.CreatedAt,
			).
			Suffix(`ON CONFLICT (name, domain) DO UPDATE SET
				industry = EXCLUDED.industry, sub_industry = EXCLUDED.sub_industry,
				employee_count = EXCLUDED.employee_count, country = EXCLUDED.country,
				city = EXCLUDED.city, phone = EXCLUDED.phone`).
			ToSql()
		if err != nil {
			return fmt.Errorf("%s: failed to build companies insert query for %s: %w", op, c.Name, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s: failed to insert company %s: %w", op, c.Name, err)
		}
	}

	// 4. Журнал действий
	details := fmt.Sprintf("imported %d contacts and %d companies from %q", len(batch.Contacts), len(batch.Companies), batch.FileName)
	if err := logActivity(ctx, tx, r.sq, batch.UploadedBy, model.ActionImport, details, batch.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// если все прошло успешно, подтверждаем транзакцию
	return tx.Commit(ctx)
}

// SearchContacts ищет контакты по фильтрам с пагинацией
func (r *ContactRepository) SearchContacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error) {
	const op = "repository.postgres.contact.SearchContacts"

	where := squirrel.And{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"company_name": pattern},
		})
	}
	if filter.Industry != "" {
		where = append(where, squirrel.Eq{"industry": filter.Industry})
	}
	if filter.Country != "" {
		where = append(where, squirrel.Eq{"country": filter.Country})
	}
	if filter.JobTitle != "" {
		where = append(where, squirrel.ILike{"job_title": "%" + filter.JobTitle + "%"})
	}

	total, err := count(ctx, r.db, r.sq.Select("COUNT(*)").From("contacts").Where(where))
	if err != nil {
		return model.Page[model.Contact]{}, fmt.Errorf("%s: failed to count contacts: %w", op, err)
	}

	sql, args, err := r.sq.Select(
		"id", "first_name", "last_name", "email", "phone", "job_title", "company_name",
		"industry", "country", "city", "linkedin_url", "uploaded_by", "created_at",
	).
		From("contacts").
		Where(where).
		OrderBy("created_at DESC", "id").
		Limit(uint64(filter.Limit)).
		Offset(filter.Offset()).
		ToSql()
	if err != nil {
		return model.Page[model.Contact]{}, fmt.Errorf("%s: failed to build contacts query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return model.Page[model.Contact]{}, fmt.Errorf("%s: failed to query contacts: %w", op, err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		err := rows.Scan(
			&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.JobTitle, &c.CompanyName,
			&c.Industry, &c.Country, &c.City, &c.LinkedinURL, &c.UploadedBy, &c.CreatedAt,
		)
		if err != nil {
			return model.Page[model.Contact]{}, fmt.Errorf("%s: failed to scan contact row: %w", op, err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.Contact]{}, fmt.Errorf("%s: %w", op, err)
	}

	return model.NewPage(contacts, filter.PageRequest, total), nil
}
