package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
)

const formContentType = "application/x-www-form-urlencoded"

// ErrNotConfigured indicates the client has no credentials and cannot send.
var ErrNotConfigured = errors.New("twilio credentials not configured")

// Client sends outbound WhatsApp messages through Twilio's REST API.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	metrics    *metrics.Metrics
}

// Config holds Twilio client configuration.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

// New creates a new Twilio client.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.twilio.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:     logger.With("component", "twilio"),
		baseURL:    base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// messageResponse mirrors the fields we read from Twilio's message resource.
type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendWhatsApp delivers a message to the given phone number. The number may
// be passed with or without the whatsapp: prefix.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", ErrNotConfigured
	}
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build twilio request: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Errors.WithLabelValues("twilio").Inc()
		return "", fmt.Errorf("send twilio message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read twilio response: %w", err)
	}

	var parsed messageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.Errors.WithLabelValues("twilio").Inc()
		return "", fmt.Errorf("twilio rejected message: status=%d code=%d %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	c.metrics.WAOutgoingMessages.WithLabelValues("api").Inc()
	c.logger.Info("whatsapp message sent", "to", to, "sid", parsed.SID)
	return parsed.SID, nil
}
