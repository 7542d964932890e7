package twilio

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"

	"log/slog"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
)

// InboundMessage is one WhatsApp message delivered by Twilio's webhook.
type InboundMessage struct {
	From       string
	Body       string
	MessageSID string
}

// Responder produces the reply text for an inbound message.
type Responder interface {
	HandleInbound(ctx context.Context, msg InboundMessage) string
}

// twiML is the response envelope Twilio expects from a messaging webhook.
type twiML struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

const errorReply = "Lo siento, no pude procesar tu mensaje. Intenta de nuevo."

// WebhookHandler parses Twilio form posts and answers with TwiML. It always
// replies 200 with a message body so the customer never sees a dead end.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	responder Responder
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(logger *slog.Logger, m *metrics.Metrics, responder Responder) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "twilio_webhook"),
		metrics:   m,
		responder: responder,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.metrics.Errors.WithLabelValues("twilio_webhook").Inc()
		h.logger.Warn("malformed webhook payload", "error", err)
		h.writeTwiML(w, errorReply)
		return
	}

	from := strings.TrimPrefix(strings.TrimSpace(r.PostFormValue("From")), "whatsapp:")
	body := strings.TrimSpace(r.PostFormValue("Body"))
	sid := strings.TrimSpace(r.PostFormValue("MessageSid"))

	if from == "" || body == "" {
		h.metrics.Errors.WithLabelValues("twilio_webhook").Inc()
		h.logger.Warn("webhook missing sender or body", "sid", sid)
		h.writeTwiML(w, errorReply)
		return
	}

	h.metrics.WAIncomingMessages.WithLabelValues("text").Inc()

	reply := h.responder.HandleInbound(r.Context(), InboundMessage{
		From:       from,
		Body:       body,
		MessageSID: sid,
	})
	if reply == "" {
		reply = errorReply
	}

	h.metrics.WAOutgoingMessages.WithLabelValues("twiml").Inc()
	h.writeTwiML(w, reply)
}

func (h *WebhookHandler) writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)

	out, err := xml.Marshal(twiML{Message: message})
	if err != nil {
		h.logger.Error("marshal twiml", "error", err)
		return
	}
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
