package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/model"
	"github.com/asquebay/leadbase-service/internal/provider/paypal"
)

type fakeAPI struct {
	dashboardCalls atomic.Int32
	verified       []model.VerifyPaymentRequest
	contacts       []model.Contact
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/admin-dashboard", func(w http.ResponseWriter, r *http.Request) {
		f.dashboardCalls.Add(1)
		json.NewEncoder(w).Encode(model.DashboardSummary{ContactsCount: 42, CompaniesCount: 7})
	})
	mux.HandleFunc("GET /customers/contacts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		items := f.contacts
		// фильтр по стране оставляет первые три строки
		if r.URL.Query().Get("country") != "" && len(items) > 3 {
			items = items[:3]
		}
		json.NewEncoder(w).Encode(model.NewPage(items, model.PageRequest{Page: 1, Limit: 10}, len(items)))
	})
	mux.HandleFunc("POST /customers/payment/create-order", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"invoiceNumber":"INV-CLI","orderData":{"id":"PP-1","status":"CREATED","approvalUrl":"https://paypal.example/approve"}}`))
	})
	mux.HandleFunc("POST /customers/payment/verify-payment", func(w http.ResponseWriter, r *http.Request) {
		var req model.VerifyPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.verified = append(f.verified, req)
		json.NewEncoder(w).Encode(model.Invoice{InvoiceNumber: req.InvoiceNumber, PaymentStatus: req.PaymentStatus, Currency: req.Currency})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// captureProvider одобряет заказ через переданный approver и возвращает заданный статус
type captureProvider struct {
	approve paypal.Approver
	status  string
}

func (p *captureProvider) Ready(context.Context) error { return nil }

func (p *captureProvider) Capture(ctx context.Context, order model.OrderData) (checkout.ProviderOrder, error) {
	ok, err := p.approve(ctx, order)
	if err != nil {
		return checkout.ProviderOrder{}, err
	}
	if !ok {
		return checkout.ProviderOrder{}, checkout.ErrCancelled
	}
	return checkout.ProviderOrder{ID: order.ID, Status: p.status, TransactionID: "CAP-1"}, nil
}

func run(t *testing.T, stateDir, api, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(append([]string{"--api", api, "--state-dir", stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func runWithProvider(t *testing.T, stateDir, api, stdin, status string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	fake := func(_ *app, approve paypal.Approver) checkout.Provider {
		return &captureProvider{approve: approve, status: status}
	}
	cmd := newRoot(&app{in: strings.NewReader(stdin), out: &out, newProvider: fake})
	cmd.SetArgs(append([]string{"--api", api, "--state-dir", stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func login(t *testing.T, stateDir, api string) {
	t.Helper()
	_, err := run(t, stateDir, api, "", "login", "--token", "tok")
	require.NoError(t, err)
}

func TestDashboardIsCachedAcrossRuns(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := run(t, dir, srv.URL, "", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Contacts:")
	assert.Contains(t, out, "42")

	_, err = run(t, dir, srv.URL, "", "dashboard")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.dashboardCalls.Load(), "second run is served from the session cache")

	out, err = run(t, dir, srv.URL, "", "dashboard", "--refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "refreshing...")
	assert.Equal(t, int32(2), f.dashboardCalls.Load())
}

func TestSelectFreeTierUnlock(t *testing.T) {
	f := &fakeAPI{}
	for i := 0; i < 10; i++ {
		f.contacts = append(f.contacts, model.Contact{ID: uuid.New(), FirstName: "N", LastName: "L"})
	}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := run(t, dir, srv.URL, "", "select", "--pick", f.contacts[0].ID.String()+","+uuid.NewString())
	require.NoError(t, err)
	assert.Contains(t, out, "not in the current results")
	assert.Contains(t, out, "1 of 10 selected")
	assert.Contains(t, out, "Select exactly 10 rows")

	out, err = run(t, dir, srv.URL, "", "select", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "10 of 10 selected")
	assert.Contains(t, out, "Unlock & Download is available")
}

func TestSelectNarrowingFilterShrinksSelection(t *testing.T) {
	f := &fakeAPI{}
	for i := 0; i < 10; i++ {
		f.contacts = append(f.contacts, model.Contact{ID: uuid.New(), FirstName: "N", LastName: "L"})
	}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := run(t, dir, srv.URL, "", "select", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "10 of 10 selected")
	assert.Contains(t, out, "Unlock & Download is available")

	out, err = run(t, dir, srv.URL, "", "select", "--country", "X")
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 3 selected")
	assert.Contains(t, out, "all visible rows are selected")
	assert.NotContains(t, out, "Unlock & Download is available")
	assert.Contains(t, out, "Select exactly 10 rows")

	// строки, скрытые фильтром, из выбора ушли насовсем
	out, err = run(t, dir, srv.URL, "", "select")
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 10 selected")

	out, err = run(t, dir, srv.URL, "", "select", "--unpick", f.contacts[0].ID.String(), "--toggle", f.contacts[9].ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 10 selected")

	out, err = run(t, dir, srv.URL, "", "select", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 10 selected")
}

func TestLogoutForgetsSelection(t *testing.T) {
	f := &fakeAPI{}
	for i := 0; i < 10; i++ {
		f.contacts = append(f.contacts, model.Contact{ID: uuid.New()})
	}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	_, err := run(t, dir, srv.URL, "", "select", "--all")
	require.NoError(t, err)

	_, err = run(t, dir, srv.URL, "", "logout")
	require.NoError(t, err)
	login(t, dir, srv.URL)

	out, err := run(t, dir, srv.URL, "", "select")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 10 selected")
}

func TestCheckoutCompleted(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := runWithProvider(t, dir, srv.URL, "y\n", "COMPLETED",
		"checkout", "--ids", uuid.NewString()+","+uuid.NewString(), "--price", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "https://paypal.example/approve")
	assert.Contains(t, out, "Payment completed. Invoice INV-CLI")

	require.Len(t, f.verified, 1)
	assert.Equal(t, model.PaymentCompleted, f.verified[0].PaymentStatus)
	assert.Equal(t, 2, f.verified[0].ItemCount)
}

func TestCheckoutCancelledIsStillVerified(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := runWithProvider(t, dir, srv.URL, "n\n", "COMPLETED",
		"checkout", "--ids", uuid.NewString(), "--price", "1")
	require.Error(t, err)
	assert.Contains(t, out, "Payment was cancelled.")
	assert.NotContains(t, out, "Payment completed")

	require.Len(t, f.verified, 1)
	assert.Equal(t, model.PaymentCancelled, f.verified[0].PaymentStatus)
}

func TestCheckoutValidationFailsBeforeNetwork(t *testing.T) {
	f := &fakeAPI{}
	srv := f.server(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	out, err := runWithProvider(t, dir, srv.URL, "", "COMPLETED", "checkout", "--price", "1")
	require.Error(t, err)
	assert.Contains(t, out, "Please check your order")
	assert.Empty(t, f.verified)
}
