package nlu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
)

// Customer-facing fallback replies. The assistant always answers, even when
// the model is unreachable.
const (
	FallbackUnavailable = "Lo siento, el servicio no está disponible en este momento. Por favor intenta de nuevo en unos minutos."
	FallbackGeneric     = "Lo siento, hubo un error procesando tu pregunta. Intenta de nuevo."
)

// KeyStore is the persistence surface the client needs for key rotation.
type KeyStore interface {
	ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error)
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
	ClearCooldown(ctx context.Context, id string) error
}

// Config tunes generation behavior.
type Config struct {
	Model       string
	Timeout     time.Duration
	Cooldown    time.Duration
	Temperature float32
	MaxTokens   int32
}

// Client answers prompts through the Gemini API, rotating across a pool of
// API keys when one runs out of quota.
type Client struct {
	keys    KeyStore
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// generate is swapped in tests to avoid network calls.
	generate func(ctx context.Context, apiKey, prompt string) (string, error)
}

// New builds a Gemini client. Keys are read from the store on every request
// so cooldowns set by other replicas are honored.
func New(keys KeyStore, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	c := &Client{
		keys:    keys,
		cfg:     cfg,
		logger:  logger.With("component", "nlu"),
		metrics: m,
	}
	c.generate = c.generateWithKey
	return c
}

// Generate produces a reply for the prompt. It never returns an error to the
// conversation flow: failures degrade to a fallback reply so the customer
// always hears back.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	keys, err := c.keys.ListActiveGeminiKeys(ctx)
	if err != nil {
		c.logger.Error("list gemini keys", "error", err)
		c.metrics.Errors.WithLabelValues("nlu").Inc()
		return FallbackUnavailable
	}

	now := time.Now()
	attempted := false
	for _, key := range keys {
		if key.CooldownUntil != nil && key.CooldownUntil.After(now) {
			continue
		}
		attempted = true

		start := time.Now()
		text, err := c.generate(ctx, key.Value, prompt)
		elapsed := time.Since(start).Seconds()

		if err == nil {
			c.metrics.GeminiRequests.WithLabelValues("ok").Inc()
			c.metrics.GeminiLatency.WithLabelValues("ok").Observe(elapsed)
			if key.CooldownUntil != nil {
				// Key recovered after an expired cooldown.
				if cerr := c.keys.ClearCooldown(ctx, key.ID); cerr != nil {
					c.logger.Warn("clear cooldown", "error", cerr)
				}
			}
			return text
		}

		if IsQuotaError(err) {
			c.metrics.GeminiRequests.WithLabelValues("quota").Inc()
			c.metrics.GeminiLatency.WithLabelValues("quota").Observe(elapsed)
			c.logger.Warn("gemini key exhausted, rotating", "priority", key.Priority, "error", err)
			if cerr := c.keys.SetCooldownUntil(ctx, key.ID, now.Add(c.cfg.Cooldown)); cerr != nil {
				c.logger.Warn("set cooldown", "error", cerr)
			}
			continue
		}

		c.metrics.GeminiRequests.WithLabelValues("error").Inc()
		c.metrics.GeminiLatency.WithLabelValues("error").Observe(elapsed)
		c.metrics.Errors.WithLabelValues("nlu").Inc()
		c.logger.Error("gemini request failed", "error", err)
		return FallbackGeneric
	}

	if attempted {
		c.logger.Error("all gemini keys exhausted")
	} else {
		c.logger.Error("no gemini keys available outside cooldown")
	}
	c.metrics.Errors.WithLabelValues("nlu").Inc()
	return FallbackUnavailable
}

func (c *Client) generateWithKey(ctx context.Context, apiKey, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: c.cfg.MaxTokens,
	}
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("generate content: empty response")
	}
	return text, nil
}

// quotaMarkers identify exhausted-quota responses across the error shapes the
// Gemini API returns for rate limiting.
var quotaMarkers = []string{
	"quota",
	"429",
	"resource_exhausted",
	"rate limit",
}

// IsQuotaError reports whether the error indicates the API key ran out of
// quota rather than a transient or permanent failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
