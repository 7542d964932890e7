// Package convo orchestrates one WhatsApp turn: persist the inbound message,
// classify the sales stage, ask the model for a reply, and emit an order when
// the conversation completes a purchase.
package convo

import (
	"context"
	"errors"

	"log/slog"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/salesflow"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/twilio"
)

// Store is the persistence surface one conversation turn needs.
type Store interface {
	GetLeadByPhone(ctx context.Context, rawPhone string) (*repo.Lead, error)
	CreateLead(ctx context.Context, lead repo.NewLead) (*repo.Lead, error)
	UpdateLead(ctx context.Context, id string, upd repo.LeadUpdate) error
	AppendMessage(ctx context.Context, phone string, msg repo.MessageRecord) error
	ListRecentMessages(ctx context.Context, leadID string, limit int) ([]repo.MessageRecord, error)
	ListActiveProducts(ctx context.Context) ([]repo.Product, error)
}

// Generator produces the assistant's reply text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// Sender delivers proactive WhatsApp messages outside the webhook reply.
type Sender interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
}

// OrderEvaluator checks the latest customer message for a completed purchase.
type OrderEvaluator interface {
	Evaluate(ctx context.Context, lead *repo.Lead, message string) (*repo.Order, error)
	ConfirmationMessage(order *repo.Order) string
}

// Config carries the company facts quoted in prompts.
type Config struct {
	CompanyName     string
	CompanyAddress  string
	CompanySchedule string
	HistoryWindow   int
}

// Engine handles inbound WhatsApp messages end to end.
type Engine struct {
	store   Store
	gen     Generator
	orders  OrderEvaluator
	sender  Sender
	prompts *PromptBuilder
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a conversation engine. The sender may be nil when proactive
// sends are not configured; order confirmations then ride on the next turn.
func New(store Store, gen Generator, orders OrderEvaluator, sender Sender, prompts *PromptBuilder, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	return &Engine{
		store:   store,
		gen:     gen,
		orders:  orders,
		sender:  sender,
		prompts: prompts,
		cfg:     cfg,
		logger:  logger.With("component", "convo"),
		metrics: m,
	}
}

// HandleInbound processes one customer message and returns the reply text.
// Persistence failures are logged but never block the reply: answering the
// customer wins over bookkeeping.
func (e *Engine) HandleInbound(ctx context.Context, msg twilio.InboundMessage) string {
	lead, err := e.resolveLead(ctx, msg.From)
	if err != nil {
		e.logger.Error("resolve lead", "error", err)
		e.metrics.Errors.WithLabelValues("convo").Inc()
		return e.gen.Generate(ctx, e.prompts.Minimal(msg.Body))
	}

	var sid *string
	if msg.MessageSID != "" {
		sid = &msg.MessageSID
	}
	if err := e.store.AppendMessage(ctx, lead.Phone, repo.MessageRecord{
		LeadID:     lead.ID,
		Sender:     string(salesflow.SenderCustomer),
		Body:       msg.Body,
		MessageSID: sid,
	}); err != nil {
		e.logger.Error("append customer message", "error", err)
		e.metrics.Errors.WithLabelValues("convo").Inc()
	}

	e.captureContact(ctx, lead, msg.Body)

	history := e.loadHistory(ctx, lead.ID)
	history = ensureLatest(history, msg.Body)

	stage := salesflow.Classify(history)
	e.metrics.StageObservations.WithLabelValues(string(stage)).Inc()

	prompt := e.prompts.Build(ctx, PromptInput{
		Lead:    lead,
		History: history,
		Stage:   stage,
		Message: msg.Body,
	})
	reply := e.gen.Generate(ctx, prompt)

	if err := e.store.AppendMessage(ctx, lead.Phone, repo.MessageRecord{
		LeadID: lead.ID,
		Sender: string(salesflow.SenderAssistant),
		Body:   reply,
	}); err != nil {
		e.logger.Error("append assistant message", "error", err)
		e.metrics.Errors.WithLabelValues("convo").Inc()
	}

	e.maybeEmitOrder(ctx, lead, msg.Body)

	return reply
}

func (e *Engine) resolveLead(ctx context.Context, rawPhone string) (*repo.Lead, error) {
	lead, err := e.store.GetLeadByPhone(ctx, rawPhone)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return e.store.CreateLead(ctx, repo.NewLead{Phone: rawPhone})
}

// captureContact opportunistically saves a name or email the customer drops
// in conversation.
func (e *Engine) captureContact(ctx context.Context, lead *repo.Lead, body string) {
	contact := salesflow.DetectContact(body)
	if contact.Name == "" && contact.Email == "" {
		return
	}

	var upd repo.LeadUpdate
	if contact.Name != "" && lead.Name == nil {
		name := contact.Name
		if contact.Surname != "" {
			name += " " + contact.Surname
		}
		upd.Name = &name
	}
	if contact.Email != "" && lead.Email == nil {
		upd.Email = &contact.Email
	}
	if upd.Name == nil && upd.Email == nil {
		return
	}

	if err := e.store.UpdateLead(ctx, lead.ID, upd); err != nil {
		e.logger.Warn("save contact info", "error", err)
		return
	}
	if upd.Name != nil {
		lead.Name = upd.Name
	}
	if upd.Email != nil {
		lead.Email = upd.Email
	}
}

func (e *Engine) loadHistory(ctx context.Context, leadID string) []salesflow.Message {
	records, err := e.store.ListRecentMessages(ctx, leadID, 0)
	if err != nil {
		e.logger.Error("load history", "error", err)
		e.metrics.Errors.WithLabelValues("convo").Inc()
		return nil
	}
	history := make([]salesflow.Message, 0, len(records))
	for _, rec := range records {
		history = append(history, salesflow.Message{
			Sender: salesflow.Sender(rec.Sender),
			Text:   rec.Body,
		})
	}
	return history
}

// ensureLatest guarantees the inbound message is part of the classified
// history even when its append failed.
func ensureLatest(history []salesflow.Message, body string) []salesflow.Message {
	if n := len(history); n > 0 && history[n-1].Sender == salesflow.SenderCustomer && history[n-1].Text == body {
		return history
	}
	return append(history, salesflow.Message{Sender: salesflow.SenderCustomer, Text: body})
}

func (e *Engine) maybeEmitOrder(ctx context.Context, lead *repo.Lead, message string) {
	order, err := e.orders.Evaluate(ctx, lead, message)
	if err != nil {
		e.logger.Error("evaluate order", "error", err)
		e.metrics.Errors.WithLabelValues("orders").Inc()
		return
	}
	if order == nil {
		return
	}

	confirmation := e.orders.ConfirmationMessage(order)
	if err := e.store.AppendMessage(ctx, lead.Phone, repo.MessageRecord{
		LeadID: lead.ID,
		Sender: string(salesflow.SenderAssistant),
		Body:   confirmation,
	}); err != nil {
		e.logger.Warn("append confirmation", "error", err)
	}

	if e.sender == nil {
		return
	}
	if _, err := e.sender.SendWhatsApp(ctx, lead.Phone, confirmation); err != nil {
		e.logger.Warn("send order confirmation", "error", err)
		e.metrics.Errors.WithLabelValues("twilio").Inc()
	}
}
