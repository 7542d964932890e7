package convo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/cache"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/salesflow"
)

const catalogCacheKey = "catalog:prompt_snapshot"

// stageInstructions steer the model's tone per funnel stage.
var stageInstructions = map[salesflow.Stage]string{
	salesflow.StageInquiry:        "El cliente está explorando. Responde su pregunta y menciona productos relevantes del catálogo.",
	salesflow.StageIntentDeclared: "El cliente quiere comprar. Confirma el producto y pregunta si prefiere entrega a domicilio (contraentrega) o compra presencial en el local.",
	salesflow.StageAwaitingMethod: "El cliente confirmó su compra. Pregunta si prefiere entrega a domicilio (contraentrega) o compra presencial en el local.",
	salesflow.StageAwaitingAddr:   "El cliente eligió el método de pago. Si es contraentrega, pide su dirección completa de entrega. Si es presencial, dale la dirección del local.",
	salesflow.StageOrderComplete:  "La compra está completa. Agradece al cliente y confirma que su pedido está registrado.",
}

// CatalogSource lists the products quoted in prompts.
type CatalogSource interface {
	ListActiveProducts(ctx context.Context) ([]repo.Product, error)
}

// PromptBuilder assembles the full model prompt for one turn. The catalog
// snapshot is cached in Redis so every message does not hit the database.
type PromptBuilder struct {
	catalog CatalogSource
	cache   *cache.Redis
	cfg     Config
	ttl     time.Duration
	logger  *slog.Logger
}

// NewPromptBuilder creates a prompt builder. The cache may be nil.
func NewPromptBuilder(catalog CatalogSource, redis *cache.Redis, cfg Config, ttl time.Duration, logger *slog.Logger) *PromptBuilder {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PromptBuilder{
		catalog: catalog,
		cache:   redis,
		cfg:     cfg,
		ttl:     ttl,
		logger:  logger.With("component", "prompt"),
	}
}

// PromptInput carries everything one prompt needs.
type PromptInput struct {
	Lead    *repo.Lead
	History []salesflow.Message
	Stage   salesflow.Stage
	Message string
}

// Build assembles the prompt: identity, catalog, recent history, stage
// instruction, then the new message. Section order is fixed.
func (b *PromptBuilder) Build(ctx context.Context, in PromptInput) string {
	var sb strings.Builder

	sb.WriteString(b.identitySection())
	sb.WriteString("\n\n")
	sb.WriteString(b.catalogSection(ctx))
	sb.WriteString("\n\n")

	if name := leadName(in.Lead); name != "" {
		fmt.Fprintf(&sb, "El cliente se llama %s.\n\n", name)
	}

	if window := historyWindow(in.History, b.cfg.HistoryWindow); len(window) > 0 {
		sb.WriteString("Conversación reciente:\n")
		for _, msg := range window {
			label := "Cliente"
			if msg.Sender == salesflow.SenderAssistant {
				label = "Asistente"
			}
			fmt.Fprintf(&sb, "%s: %s\n", label, msg.Text)
		}
		sb.WriteString("\n")
	}

	if instruction, ok := stageInstructions[in.Stage]; ok {
		sb.WriteString(instruction)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Mensaje del cliente: %s\n\nResponde en español, breve y cordial.", in.Message)
	return sb.String()
}

// Minimal is the degraded prompt used when the lead could not be resolved.
func (b *PromptBuilder) Minimal(message string) string {
	return fmt.Sprintf("%s\n\nMensaje del cliente: %s\n\nResponde en español, breve y cordial.",
		b.identitySection(), message)
}

func (b *PromptBuilder) identitySection() string {
	return fmt.Sprintf(
		"Eres el asistente virtual de ventas de %s, una empresa de equipamiento comercial e industrial en Ecuador. "+
			"El local está en %s. Horario de atención: %s.",
		b.cfg.CompanyName, b.cfg.CompanyAddress, b.cfg.CompanySchedule)
}

func (b *PromptBuilder) catalogSection(ctx context.Context) string {
	if b.cache != nil {
		var cached string
		if ok, err := b.cache.GetJSON(ctx, catalogCacheKey, &cached); err != nil {
			b.logger.Warn("read catalog cache", "error", err)
		} else if ok {
			return cached
		}
	}

	products, err := b.catalog.ListActiveProducts(ctx)
	if err != nil {
		b.logger.Error("load catalog", "error", err)
		return "Catálogo temporalmente no disponible."
	}

	section := formatCatalog(products)

	if b.cache != nil {
		if err := b.cache.SetJSON(ctx, catalogCacheKey, section, b.ttl); err != nil {
			b.logger.Warn("write catalog cache", "error", err)
		}
	}
	return section
}

func formatCatalog(products []repo.Product) string {
	if len(products) == 0 {
		return "Catálogo temporalmente no disponible."
	}

	byCategory := map[string][]repo.Product{}
	var order []string
	for _, p := range products {
		if _, seen := byCategory[p.Category]; !seen {
			order = append(order, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	var sb strings.Builder
	sb.WriteString("Catálogo de productos:")
	for _, category := range order {
		fmt.Fprintf(&sb, "\n[%s]", category)
		for _, p := range byCategory[category] {
			fmt.Fprintf(&sb, "\n- %s: $%.2f", p.Name, p.Price)
			if p.Characteristics != nil && *p.Characteristics != "" {
				fmt.Fprintf(&sb, " (%s)", *p.Characteristics)
			}
		}
	}
	return sb.String()
}

func historyWindow(history []salesflow.Message, window int) []salesflow.Message {
	if len(history) <= window {
		return history
	}
	return history[len(history)-window:]
}

func leadName(lead *repo.Lead) string {
	if lead == nil || lead.Name == nil {
		return ""
	}
	return strings.TrimSpace(*lead.Name)
}
