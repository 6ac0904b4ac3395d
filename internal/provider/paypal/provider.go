package paypal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/model"
)

// Approver показывает покупателю заказ и ждёт его решения
// false без ошибки означает, что покупатель отказался платить
type Approver func(ctx context.Context, order model.OrderData) (bool, error)

// Provider - адаптер PayPal для автомата оформления покупки
type Provider struct {
	client  *Client
	approve Approver
	log     *slog.Logger
}

var _ checkout.Provider = (*Provider)(nil)

// NewProvider создаёт адаптер
func NewProvider(client *Client, approve Approver, log *slog.Logger) *Provider {
	return &Provider{
		client:  client,
		approve: approve,
		log:     log.With(slog.String("component", "paypal_provider")),
	}
}

// Ready проверяет, что PayPal доступен
func (p *Provider) Ready(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Capture получает одобрение покупателя и захватывает оплату
func (p *Provider) Capture(ctx context.Context, order model.OrderData) (checkout.ProviderOrder, error) {
	const op = "paypal.Provider.Capture"

	// 1. Одобрение покупателя
	approved, err := p.approve(ctx, order)
	if err != nil {
		return checkout.ProviderOrder{}, fmt.Errorf("%s: approval: %w", op, err)
	}
	if !approved {
		p.log.Info("buyer declined the order", slog.String("order_id", order.ID))
		return checkout.ProviderOrder{}, checkout.ErrCancelled
	}

	// 2. Захват
	captured, err := p.client.CaptureOrder(ctx, order.ID)
	if err != nil {
		if IsAPIError(err) {
			p.log.Warn("paypal rejected capture", slog.String("order_id", order.ID), slog.String("error", err.Error()))
		}
		return checkout.ProviderOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return captured, nil
}
