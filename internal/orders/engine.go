// Package orders turns a completed sales message into a persisted order with
// a public reference code, and keeps the lead's payment intent in sync.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/salesflow"
)

const codePrefix = "FRES"

// Store is the persistence surface the engine needs.
type Store interface {
	GetActiveProductByName(ctx context.Context, name string) (*repo.Product, error)
	NextOrderNumber(ctx context.Context, year int) (int64, error)
	InsertOrder(ctx context.Context, order repo.Order) (*repo.Order, error)
	SetLeadPaymentIntent(ctx context.Context, id string, intent repo.PaymentIntent) error
}

// Config carries the company facts quoted in confirmation messages.
type Config struct {
	CompanyAddress string
	DeliveryDays   int
}

// Engine evaluates inbound messages for completed purchases.
type Engine struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// New builds an order engine.
func New(store Store, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if cfg.DeliveryDays <= 0 {
		cfg.DeliveryDays = 2
	}
	return &Engine{
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "orders"),
		metrics: m,
		now:     time.Now,
	}
}

// Evaluate creates an order when the latest customer message carries a
// product, a fulfillment method and, for delivery, an address. Earlier turns
// do not count: the customer states the complete purchase in one message.
// It returns nil without error when the purchase is not complete yet; missing
// catalog data fails silently so the conversation keeps flowing.
func (e *Engine) Evaluate(ctx context.Context, lead *repo.Lead, message string) (*repo.Order, error) {
	// One open order per lead: an unpaid intent blocks re-emission until it
	// is settled.
	if lead.Payment != nil && !lead.Payment.Paid {
		return nil, nil
	}

	productName := salesflow.DetectProduct(message)
	if productName == "" {
		return nil, nil
	}

	method := salesflow.DetectPaymentMethod(message)
	if method == salesflow.PaymentNone {
		return nil, nil
	}

	var address *string
	addr := salesflow.DetectAddress(message)
	if method == salesflow.PaymentCashOnDelivery {
		if addr == "" {
			return nil, nil
		}
		address = &addr
	}

	// Digits in an address-bearing message are street numbers, not
	// quantities.
	quantity := 1
	if addr == "" {
		quantity = salesflow.DetectQuantity(message)
	}

	product, err := e.store.GetActiveProductByName(ctx, productName)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			e.logger.Warn("mentioned product not in active catalog", "product", productName)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve product: %w", err)
	}

	year := e.now().Year()
	seq, err := e.store.NextOrderNumber(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("reserve order number: %w", err)
	}
	code := fmt.Sprintf("%s-%d-%06d", codePrefix, year, seq)

	item := repo.OrderItem{
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Subtotal:  product.Price * float64(quantity),
	}

	status := repo.PaymentStatePendingInStore
	if method == salesflow.PaymentCashOnDelivery {
		status = repo.PaymentStatePendingDelivery
	}

	order := repo.Order{
		LeadID:          lead.ID,
		Code:            code,
		Items:           []repo.OrderItem{item},
		Total:           item.Subtotal,
		Method:          string(method),
		DeliveryAddress: address,
		Status:          status,
	}

	stored, err := e.store.InsertOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	intent := repo.PaymentIntent{
		Method:      string(method),
		Total:       stored.Total,
		State:       status,
		Code:        code,
		Paid:        false,
		Address:     address,
		RequestedAt: e.now(),
	}
	if err := e.store.SetLeadPaymentIntent(ctx, lead.ID, intent); err != nil {
		return nil, fmt.Errorf("record payment intent: %w", err)
	}

	e.metrics.OrdersCreated.WithLabelValues(string(method)).Inc()
	e.logger.Info("order created", "code", code, "method", method, "total", stored.Total)
	return stored, nil
}

// ConfirmationMessage renders the WhatsApp confirmation sent after an order
// is created.
func (e *Engine) ConfirmationMessage(order *repo.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ ¡Pedido confirmado!\n\n")
	fmt.Fprintf(&b, "📋 Código: %s\n", order.Code)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "🛒 %s x%d - $%.2f\n", item.Name, item.Quantity, item.Subtotal)
	}
	fmt.Fprintf(&b, "💰 Total: $%.2f\n\n", order.Total)

	if order.Method == string(salesflow.PaymentCashOnDelivery) {
		if order.DeliveryAddress != nil {
			fmt.Fprintf(&b, "🚚 Entrega a: %s\n", *order.DeliveryAddress)
		}
		fmt.Fprintf(&b, "⏱️ Tiempo estimado: %d días hábiles.\n", e.cfg.DeliveryDays)
		b.WriteString("El pago es contra entrega.")
	} else {
		fmt.Fprintf(&b, "🏢 Te esperamos en %s para completar tu compra.", e.cfg.CompanyAddress)
	}
	return b.String()
}
