//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/leadbase-service/internal/model"
)

// запуск: LEADBASE_TEST_DSN=postgres://... go test -tags integration ./internal/repository/postgres/...
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("LEADBASE_TEST_DSN")
	if dsn == "" {
		t.Skip("LEADBASE_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(pool))
	return pool
}

type invoiceFixture struct {
	repo     *InvoiceRepository
	pool     *pgxpool.Pool
	customer uuid.UUID
	invoice  model.Invoice
	now      time.Time
}

func newInvoiceFixture(t *testing.T) invoiceFixture {
	t.Helper()
	pool := newTestPool(t)
	repo := NewInvoiceRepository(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)
	customer := uuid.New()

	inv := model.Invoice{
		ID:              uuid.New(),
		InvoiceNumber:   "INV-" + uuid.NewString(),
		CustomerID:      customer,
		Type:            model.PurchaseContacts,
		ItemIDs:         []uuid.UUID{uuid.New(), uuid.New()},
		ItemCount:       2,
		PricePerItem:    decimal.RequireFromString("0.50"),
		TotalAmount:     decimal.RequireFromString("1.00"),
		Currency:        "USD",
		PaymentStatus:   model.PaymentPending,
		ProviderOrderID: "ORDER-1",
		CreatedAt:       now,
	}
	require.NoError(t, repo.CreatePending(context.Background(), inv))

	return invoiceFixture{repo: repo, pool: pool, customer: customer, invoice: inv, now: now}
}

func (f invoiceFixture) params(status model.PaymentStatus) FinalizeParams {
	return FinalizeParams{
		CustomerID: f.customer,
		Request: model.VerifyPaymentRequest{
			InvoiceNumber: f.invoice.InvoiceNumber,
			PaymentStatus: status,
			PaymentID:     "ORDER-1",
			TransactionID: "CAP-1",
			Type:          f.invoice.Type,
			ItemIDs:       f.invoice.ItemIDs,
			ItemCount:     f.invoice.ItemCount,
			PricePerItem:  f.invoice.PricePerItem,
			Currency:      f.invoice.Currency,
		},
		Now:               f.now,
		DownloadRetention: 240 * time.Hour,
	}
}

func (f invoiceFixture) downloads(t *testing.T) int {
	t.Helper()
	var n int
	err := f.pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM downloads WHERE invoice_number = $1", f.invoice.InvoiceNumber).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestFinalizeCompletedGrantsDownloadOnce(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()

	inv, changed, err := f.repo.Finalize(ctx, f.params(model.PaymentCompleted))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentCompleted, inv.PaymentStatus)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, 1, f.downloads(t))

	// повтор с тем же статусом ничего не меняет
	inv, changed, err = f.repo.Finalize(ctx, f.params(model.PaymentCompleted))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PaymentCompleted, inv.PaymentStatus)
	assert.Equal(t, 1, f.downloads(t))

	page, err := f.repo.ListDownloads(ctx, f.customer, model.PageRequest{Page: 1, Limit: 10}, f.now)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].ExpiresAt.Equal(f.now.Add(240*time.Hour)))

	page, err = f.repo.ListDownloads(ctx, f.customer, model.PageRequest{Page: 1, Limit: 10}, f.now.Add(241*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, page.Items, "expired downloads are hidden")
}

func TestFinalizeDifferentTerminalStatusIsRejected(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()

	_, changed, err := f.repo.Finalize(ctx, f.params(model.PaymentFailed))
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = f.repo.Finalize(ctx, f.params(model.PaymentCompleted))
	require.ErrorIs(t, err, ErrInvoiceFinalized)
	assert.False(t, changed)
	assert.Zero(t, f.downloads(t), "failed invoice never grants downloads")

	got, err := f.repo.GetByNumber(ctx, f.customer, f.invoice.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, got.PaymentStatus)
	assert.Nil(t, got.PaidAt)
}

func TestFinalizeCancelledGrantsNothing(t *testing.T) {
	f := newInvoiceFixture(t)

	inv, changed, err := f.repo.Finalize(context.Background(), f.params(model.PaymentCancelled))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentCancelled, inv.PaymentStatus)
	assert.Zero(t, f.downloads(t))
}

func TestFinalizeMismatchIsRejected(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*FinalizeParams){
		"type":     func(p *FinalizeParams) { p.Request.Type = model.PurchaseCompanies },
		"count":    func(p *FinalizeParams) { p.Request.ItemCount = 3 },
		"currency": func(p *FinalizeParams) { p.Request.Currency = "EUR" },
	} {
		t.Run(name, func(t *testing.T) {
			p := f.params(model.PaymentCompleted)
			mutate(&p)
			_, changed, err := f.repo.Finalize(ctx, p)
			require.ErrorIs(t, err, ErrInvoiceMismatch)
			assert.False(t, changed)
		})
	}

	got, err := f.repo.GetByNumber(ctx, f.customer, f.invoice.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.PaymentStatus)
	assert.Zero(t, f.downloads(t))
}

func TestFinalizePendingWithoutDetailsIsNoop(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()

	p := f.params(model.PaymentPending)
	p.Request.PaymentID = ""
	p.Request.TransactionID = ""
	inv, changed, err := f.repo.Finalize(ctx, p)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PaymentPending, inv.PaymentStatus)

	// после pending счёт всё ещё можно закрыть
	_, changed, err = f.repo.Finalize(ctx, f.params(model.PaymentCompleted))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestFinalizeForeignCustomerIsNotFound(t *testing.T) {
	f := newInvoiceFixture(t)

	p := f.params(model.PaymentCompleted)
	p.CustomerID = uuid.New()
	_, _, err := f.repo.Finalize(context.Background(), p)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	assert.Zero(t, f.downloads(t))
}
