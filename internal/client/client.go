// Package client - HTTP-клиент API leadbase
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/model"
)

// APIError - ответ сервера с кодом не 2xx
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// HasCode сообщает, что err - ошибка API с указанным кодом
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// TokenSource отдаёт bearer-токен, например authstore.Store
type TokenSource interface {
	Token() (string, error)
}

// Client ходит в API
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

var _ checkout.Backend = (*Client)(nil)

// Option настраивает клиента
type Option func(*Client)

// WithHTTPClient подменяет http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New создаёт клиента
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dashboard возвращает сводку: суперадмину общую, администратору его собственную
// refresh просит сервер отдать закэшированную сводку и обновить её в фоне
func (c *Client) Dashboard(ctx context.Context, role model.Role, refresh bool) (model.DashboardSummary, error) {
	path := "/admin/admin-dashboard"
	if role == model.RoleSuperadmin {
		path = "/admin/dashboard"
	}
	q := url.Values{}
	if refresh {
		q.Set("refresh", "true")
	}

	var summary model.DashboardSummary
	err := c.doJSON(ctx, http.MethodGet, path, q, nil, &summary)
	return summary, err
}

// Contacts ищет контакты
func (c *Client) Contacts(ctx context.Context, filter model.ContactFilter) (model.Page[model.Contact], error) {
	q := pageQuery(filter.PageRequest)
	for key, value := range map[string]string{
		"search":   filter.Search,
		"industry": filter.Industry,
		"country":  filter.Country,
		"jobTitle": filter.JobTitle,
	} {
		if value != "" {
			q.Set(key, value)
		}
	}

	var page model.Page[model.Contact]
	err := c.doJSON(ctx, http.MethodGet, "/customers/contacts", q, nil, &page)
	return page, err
}

// Downloads возвращает действующие доступы к скачиванию
func (c *Client) Downloads(ctx context.Context, page model.PageRequest) (model.Page[model.Download], error) {
	var out model.Page[model.Download]
	err := c.doJSON(ctx, http.MethodGet, "/customers/downloads", pageQuery(page), nil, &out)
	return out, err
}

// Invoices возвращает счета
func (c *Client) Invoices(ctx context.Context, page model.PageRequest) (model.Page[model.Invoice], error) {
	var out model.Page[model.Invoice]
	err := c.doJSON(ctx, http.MethodGet, "/customers/payment/invoices", pageQuery(page), nil, &out)
	return out, err
}

// ActivityLogs возвращает журнал действий
func (c *Client) ActivityLogs(ctx context.Context, page model.PageRequest) (model.Page[model.ActivityLog], error) {
	var out model.Page[model.ActivityLog]
	err := c.doJSON(ctx, http.MethodGet, "/customers/activity-logs", pageQuery(page), nil, &out)
	return out, err
}

// CreateOrder создаёт заказ и получает номер счёта
func (c *Client) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.CreateOrderResponse, error) {
	var out model.CreateOrderResponse
	err := c.doJSON(ctx, http.MethodPost, "/customers/payment/create-order", nil, req, &out)
	return out, err
}

// VerifyPayment записывает итог оплаты
func (c *Client) VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (model.Invoice, error) {
	var out model.Invoice
	err := c.doJSON(ctx, http.MethodPost, "/customers/payment/verify-payment", nil, req, &out)
	return out, err
}

// InvoicePDF скачивает PDF счёта в w
func (c *Client) InvoicePDF(ctx context.Context, invoiceID uuid.UUID, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/customers/payment/invoices/"+invoiceID.String()+"/pdf", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/pdf") {
		return fmt.Errorf("client: unexpected content type %q", ct)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("client: read pdf: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// do выполняет запрос с bearer-токеном; ответы не 2xx превращаются в *APIError
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body model.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func pageQuery(page model.PageRequest) url.Values {
	q := url.Values{}
	if page.Page > 0 {
		q.Set("page", strconv.Itoa(page.Page))
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	return q
}
