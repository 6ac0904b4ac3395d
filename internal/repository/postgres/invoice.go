package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/asquebay/leadbase-service/internal/model"
)

// InvoiceRepository инкапсулирует логику работы со счетами и доступами к скачиванию
type InvoiceRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewInvoiceRepository создает новый экземпляр репозитория
func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db, sq: statementBuilder()}
}

var invoiceColumns = []string{
	"id", "invoice_number", "customer_id", "type", "item_ids", "item_count",
	"price_per_item::text", "total_amount::text", "currency", "payment_status",
	"provider_order_id", "payment_id", "payer_id", "payer_email", "transaction_id",
	"error_message", "created_at", "paid_at",
}

// CreatePending сохраняет новый счёт в статусе pending вместе с записью в журнале
func (r *InvoiceRepository) CreatePending(ctx context.Context, inv model.Invoice) error {
	const op = "repository.postgres.invoice.CreatePending"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	sql, args, err := r.sq.Insert("invoices").
		Columns(
			"id", "invoice_number", "customer_id", "type", "item_ids", "item_count",
			"price_per_item", "total_amount", "currency", "payment_status", "provider_order_id", "created_at",
		).
		Values(
			inv.ID, inv.InvoiceNumber, inv.CustomerID, string(inv.Type), uuidStrings(inv.ItemIDs), inv.ItemCount,
			inv.PricePerItem.String(), inv.TotalAmount.String(), inv.Currency, string(model.PaymentPending),
			inv.ProviderOrderID, inv.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build invoices insert query: %w", op, err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: failed to insert into invoices: %w", op, err)
	}

	details := fmt.Sprintf("invoice %s created for %d %s", inv.InvoiceNumber, inv.ItemCount, inv.Type)
	if err := logActivity(ctx, tx, r.sq, inv.CustomerID, model.ActionOrderCreated, details, inv.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit(ctx)
}

// FinalizeParams - итог попытки оплаты, который нужно записать
type FinalizeParams struct {
	CustomerID        uuid.UUID
	Request           model.VerifyPaymentRequest
	Now               time.Time
	DownloadRetention time.Duration
}

// Finalize записывает конечный статус счёта
// статус меняется только из pending и только один раз:
// повтор с тем же статусом возвращает счёт как есть, с другим - ErrInvoiceFinalized
// при completed в той же транзакции выдаётся доступ к скачиванию
// второй результат сообщает, был ли статус записан именно этим вызовом
func (r *InvoiceRepository) Finalize(ctx context.Context, p FinalizeParams) (model.Invoice, bool, error) {
	const op = "repository.postgres.invoice.Finalize"
	req := p.Request

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	// 1. Блокируем строку счёта
	sql, args, err := r.sq.Select(invoiceColumns...).
		From("invoices").
		Where(squirrel.Eq{"invoice_number": req.InvoiceNumber, "customer_id": p.CustomerID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: failed to build invoice select query: %w", op, err)
	}
	inv, err := scanInvoice(tx.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invoice{}, false, fmt.Errorf("%s: %w", op, ErrInvoiceNotFound)
		}
		return model.Invoice{}, false, fmt.Errorf("%s: failed to query invoice: %w", op, err)
	}

	// 2. Конечный статус уже записан
	if inv.PaymentStatus != model.PaymentPending {
		if inv.PaymentStatus == req.PaymentStatus {
			return inv, false, nil
		}
		return inv, false, fmt.Errorf("%s: %w", op, ErrInvoiceFinalized)
	}

	// pending без подробностей ничего не меняет
	if req.PaymentStatus == model.PaymentPending && req.PaymentID == "" && req.ErrorMessage == "" {
		return inv, false, nil
	}

	// 3. Детали оплаты должны совпадать со счётом
	if inv.Type != req.Type || inv.ItemCount != req.ItemCount || inv.Currency != req.Currency {
		return inv, false, fmt.Errorf("%s: %w", op, ErrInvoiceMismatch)
	}

	// 4. Записываем итог
	update := r.sq.Update("invoices").
		Set("payment_status", string(req.PaymentStatus)).
		Set("payment_id", req.PaymentID).
		Set("payer_id", req.PayerID).
		Set("payer_email", req.PayerEmail).
		Set("transaction_id", req.TransactionID).
		Set("error_message", req.ErrorMessage).
		Where(squirrel.Eq{"id": inv.ID})
	if req.PaymentStatus != model.PaymentPending {
		update = update.Set("finalized_at", p.Now)
	}
	if req.PaymentStatus == model.PaymentCompleted {
		update = update.Set("paid_at", p.Now)
		inv.PaidAt = &p.Now
	}
	sql, args, err = update.ToSql()
	if err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: failed to build invoice update query: %w", op, err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: failed to update invoice: %w", op, err)
	}
	inv.PaymentStatus = req.PaymentStatus
	inv.PaymentID = req.PaymentID
	inv.PayerID = req.PayerID
	inv.PayerEmail = req.PayerEmail
	inv.TransactionID = req.TransactionID
	inv.ErrorMessage = req.ErrorMessage

	// 5. Доступ к скачиванию только для оплаченных счетов
	if req.PaymentStatus == model.PaymentCompleted {
		sql, args, err := r.sq.Insert("downloads").
			Columns("id", "customer_id", "invoice_number", "type", "item_ids", "item_count", "created_at", "expires_at").
			Values(uuid.New(), inv.CustomerID, inv.InvoiceNumber, string(inv.Type), uuidStrings(inv.ItemIDs), inv.ItemCount, p.Now, p.Now.Add(p.DownloadRetention)).
			ToSql()
		if err != nil {
			return model.Invoice{}, false, fmt.Errorf("%s: failed to build downloads insert query: %w", op, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return model.Invoice{}, false, fmt.Errorf("%s: failed to insert download: %w", op, err)
		}
	}

	details := fmt.Sprintf("invoice %s finished with status %s", inv.InvoiceNumber, req.PaymentStatus)
	if err := logActivity(ctx, tx, r.sq, inv.CustomerID, model.ActionPaymentFinished, details, p.Now); err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Invoice{}, false, fmt.Errorf("%s: failed to commit: %w", op, err)
	}
	return inv, true, nil
}

// List возвращает страницу счетов покупателя
func (r *InvoiceRepository) List(ctx context.Context, customerID uuid.UUID, page model.PageRequest) (model.Page[model.Invoice], error) {
	const op = "repository.postgres.invoice.List"

	total, err := count(ctx, r.db, r.sq.Select("COUNT(*)").From("invoices").Where(squirrel.Eq{"customer_id": customerID}))
	if err != nil {
		return model.Page[model.Invoice]{}, fmt.Errorf("%s: failed to count invoices: %w", op, err)
	}

	sql, args, err := r.sq.Select(invoiceColumns...).
		From("invoices").
		Where(squirrel.Eq{"customer_id": customerID}).
		OrderBy("created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return model.Page[model.Invoice]{}, fmt.Errorf("%s: failed to build invoices query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return model.Page[model.Invoice]{}, fmt.Errorf("%s: failed to query invoices: %w", op, err)
	}
	defer rows.Close()

	invoices := []model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return model.Page[model.Invoice]{}, fmt.Errorf("%s: failed to scan invoice row: %w", op, err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.Invoice]{}, fmt.Errorf("%s: %w", op, err)
	}

	return model.NewPage(invoices, page, total), nil
}

// GetByID возвращает счёт покупателя по идентификатору
func (r *InvoiceRepository) GetByID(ctx context.Context, customerID, id uuid.UUID) (model.Invoice, error) {
	const op = "repository.postgres.invoice.GetByID"

	sql, args, err := r.sq.Select(invoiceColumns...).
		From("invoices").
		Where(squirrel.Eq{"id": id, "customer_id": customerID}).
		ToSql()
	if err != nil {
		return model.Invoice{}, fmt.Errorf("%s: failed to build invoice query: %w", op, err)
	}

	inv, err := scanInvoice(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invoice{}, fmt.Errorf("%s: %w", op, ErrInvoiceNotFound)
		}
		return model.Invoice{}, fmt.Errorf("%s: failed to query invoice: %w", op, err)
	}
	return inv, nil
}

// GetByNumber возвращает счёт покупателя по номеру
func (r *InvoiceRepository) GetByNumber(ctx context.Context, customerID uuid.UUID, invoiceNumber string) (model.Invoice, error) {
	const op = "repository.postgres.invoice.GetByNumber"

	sql, args, err := r.sq.Select(invoiceColumns...).
		From("invoices").
		Where(squirrel.Eq{"invoice_number": invoiceNumber, "customer_id": customerID}).
		ToSql()
	if err != nil {
		return model.Invoice{}, fmt.Errorf("%s: failed to build invoice query: %w", op, err)
	}

	inv, err := scanInvoice(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invoice{}, fmt.Errorf("%s: %w", op, ErrInvoiceNotFound)
		}
		return model.Invoice{}, fmt.Errorf("%s: failed to query invoice: %w", op, err)
	}
	return inv, nil
}

// ListDownloads возвращает действующие (не истёкшие) доступы к скачиванию
func (r *InvoiceRepository) ListDownloads(ctx context.Context, customerID uuid.UUID, page model.PageRequest, now time.Time) (model.Page[model.Download], error) {
	const op = "repository.postgres.invoice.ListDownloads"

	where := squirrel.And{squirrel.Eq{"customer_id": customerID}, squirrel.Gt{"expires_at": now}}

	total, err := count(ctx, r.db, r.sq.Select("COUNT(*)").From("downloads").Where(where))
	if err != nil {
		return model.Page[model.Download]{}, fmt.Errorf("%s: failed to count downloads: %w", op, err)
	}

	sql, args, err := r.sq.Select("id", "customer_id", "invoice_number", "type", "item_count", "created_at", "expires_at").
		From("downloads").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return model.Page[model.Download]{}, fmt.Errorf("%s: failed to build downloads query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return model.Page[model.Download]{}, fmt.Errorf("%s: failed to query downloads: %w", op, err)
	}
	defer rows.Close()

	downloads := []model.Download{}
	for rows.Next() {
		var d model.Download
		var typ string
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.InvoiceNumber, &typ, &d.ItemCount, &d.CreatedAt, &d.ExpiresAt); err != nil {
			return model.Page[model.Download]{}, fmt.Errorf("%s: failed to scan download row: %w", op, err)
		}
		d.Type = model.PurchaseType(typ)
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.Download]{}, fmt.Errorf("%s: %w", op, err)
	}

	return model.NewPage(downloads, page, total), nil
}

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var (
		inv           model.Invoice
		typ, status   string
		itemIDs       []string
		price, amount string
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &typ, &itemIDs, &inv.ItemCount,
		&price, &amount, &inv.Currency, &status,
		&inv.ProviderOrderID, &inv.PaymentID, &inv.PayerID, &inv.PayerEmail, &inv.TransactionID,
		&inv.ErrorMessage, &inv.CreatedAt, &inv.PaidAt,
	)
	if err != nil {
		return model.Invoice{}, err
	}

	inv.Type = model.PurchaseType(typ)
	inv.PaymentStatus = model.PaymentStatus(status)
	if inv.PricePerItem, err = decimal.NewFromString(price); err != nil {
		return model.Invoice{}, fmt.Errorf("invalid price_per_item %q: %w", price, err)
	}
	if inv.TotalAmount, err = decimal.NewFromString(amount); err != nil {
		return model.Invoice{}, fmt.Errorf("invalid total_amount %q: %w", amount, err)
	}
	inv.ItemIDs = make([]uuid.UUID, 0, len(itemIDs))
	for _, s := range itemIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return model.Invoice{}, fmt.Errorf("invalid item id %q: %w", s, err)
		}
		inv.ItemIDs = append(inv.ItemIDs, id)
	}
	return inv, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
