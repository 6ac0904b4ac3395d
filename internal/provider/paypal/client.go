// Package paypal - клиент PayPal Orders v2 и адаптер провайдера оплаты
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/config"
	"github.com/asquebay/leadbase-service/internal/model"
)

const tokenPath = "/v1/oauth2/token"

// APIError - ошибка, которую вернул PayPal
type APIError struct {
	Status  int
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s (debug_id=%s)", e.Status, e.Name, e.Message, e.DebugID)
}

// Client ходит в REST API PayPal
// авторизация - OAuth2 client credentials, токен кэшируется и обновляется oauth2
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    oauth2.TokenSource
	returnURL string
	cancelURL string
	log       *slog.Logger
}

// New создаёт клиента по настройкам
func New(cfg config.PayPal, log *slog.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 15 * time.Second})
	tokens := cc.TokenSource(ctx)

	httpClient := oauth2.NewClient(ctx, tokens)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:   base,
		http:      httpClient,
		tokens:    tokens,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		log:       log.With(slog.String("component", "paypal")),
	}
}

// Ping проверяет, что токен доступа можно получить
func (c *Client) Ping(ctx context.Context) error {
	const op = "paypal.Client.Ping"

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := c.tokens.Token()
		done <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("%s: %w", op, res.err)
		}
		return nil
	}
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	Amount      amount `json:"amount"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount amount `json:"amount"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
	Payer  struct {
		PayerID      string `json:"payer_id"`
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder создаёт заказ с немедленным захватом на сумму счёта
func (c *Client) CreateOrder(ctx context.Context, invoiceNumber string, total decimal.Decimal, currency string) (model.OrderData, error) {
	const op = "paypal.Client.CreateOrder"

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: invoiceNumber,
			InvoiceID:   invoiceNumber,
			Amount:      amount{CurrencyCode: currency, Value: total.StringFixed(2)},
		}},
		ApplicationContext: applicationContext{
			ReturnURL:  c.returnURL,
			CancelURL:  c.cancelURL,
			UserAction: "PAY_NOW",
		},
	}

	var resp orderResponse
	// номер счёта служит ключом идемпотентности: повтор не создаст второй заказ
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", invoiceNumber, body, &resp); err != nil {
		return model.OrderData{}, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Info("paypal order created", slog.String("invoice_number", invoiceNumber), slog.String("order_id", resp.ID))
	return model.OrderData{ID: resp.ID, Status: resp.Status, ApprovalURL: resp.approvalURL()}, nil
}

// CaptureOrder захватывает оплату по одобренному заказу
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (checkout.ProviderOrder, error) {
	const op = "paypal.Client.CaptureOrder"

	if orderID == "" {
		return checkout.ProviderOrder{}, fmt.Errorf("%s: empty order id", op)
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", "capture-"+orderID, nil, &resp); err != nil {
		return checkout.ProviderOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	order := checkout.ProviderOrder{
		ID:         resp.ID,
		Status:     resp.Status,
		PayerID:    resp.Payer.PayerID,
		PayerEmail: resp.Payer.EmailAddress,
	}
	// статус захвата точнее статуса заказа: заказ бывает COMPLETED при отклонённом захвате
	if capt, ok := resp.firstCapture(); ok {
		order.TransactionID = capt.ID
		if capt.Status != "" {
			order.Status = capt.Status
		}
	}
	return order, nil
}

// GetOrder читает заказ у PayPal; сервер верит этому ответу, а не словам клиента
// при наличии захвата статус и сумма берутся из него
func (c *Client) GetOrder(ctx context.Context, orderID string) (model.ProviderPayment, error) {
	const op = "paypal.Client.GetOrder"

	if orderID == "" {
		return model.ProviderPayment{}, fmt.Errorf("%s: empty order id", op)
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), "", nil, &resp); err != nil {
		return model.ProviderPayment{}, fmt.Errorf("%s: %w", op, err)
	}

	payment := model.ProviderPayment{
		OrderID:    resp.ID,
		Status:     resp.Status,
		PayerID:    resp.Payer.PayerID,
		PayerEmail: resp.Payer.EmailAddress,
	}
	capt, ok := resp.firstCapture()
	if !ok {
		// без захвата деньги не списаны, даже если заказ одобрен
		if strings.EqualFold(payment.Status, "COMPLETED") {
			payment.Status = "APPROVED"
		}
		return payment, nil
	}

	payment.CaptureID = capt.ID
	if capt.Status != "" {
		payment.Status = capt.Status
	}
	payment.Currency = capt.Amount.CurrencyCode
	if capt.Amount.Value != "" {
		value, err := decimal.NewFromString(capt.Amount.Value)
		if err != nil {
			return model.ProviderPayment{}, fmt.Errorf("%s: invalid capture amount %q: %w", op, capt.Amount.Value, err)
		}
		payment.Amount = value
	}
	return payment, nil
}

func (r orderResponse) approvalURL() string {
	for _, l := range r.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func (r orderResponse) firstCapture() (capture, bool) {
	for _, pu := range r.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			return pu.Payments.Captures[0], true
		}
	}
	return capture{}, false
}

func (c *Client) do(ctx context.Context, method, path, requestID string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Name == "" {
			apiErr.Name = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAPIError сообщает, что ошибку вернул сам PayPal, а не сеть
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
