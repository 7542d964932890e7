package twilio

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
)

type echoResponder struct {
	got   InboundMessage
	reply string
}

func (e *echoResponder) HandleInbound(ctx context.Context, msg InboundMessage) string {
	e.got = msg
	return e.reply
}

func newTestHandler(responder Responder) *WebhookHandler {
	logger := slog.New(slog.DiscardHandler)
	return NewWebhookHandler(logger, metrics.Registry("test"), responder)
}

func postForm(h *WebhookHandler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/whatsapp/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRepliesWithTwiML(t *testing.T) {
	responder := &echoResponder{reply: "Hola, ¿en qué te ayudo?"}
	h := newTestHandler(responder)

	rec := postForm(h, url.Values{
		"From":       {"whatsapp:+593983200438"},
		"Body":       {"quiero un horno"},
		"MessageSid": {"SM123"},
	})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Response>") || !strings.Contains(body, responder.reply) {
		t.Fatalf("unexpected body: %s", body)
	}

	if responder.got.From != "+593983200438" {
		t.Errorf("From = %q, want prefix stripped", responder.got.From)
	}
	if responder.got.MessageSID != "SM123" {
		t.Errorf("MessageSID = %q", responder.got.MessageSID)
	}
}

func TestWebhookMissingFieldsStillReplies(t *testing.T) {
	responder := &echoResponder{reply: "nunca"}
	h := newTestHandler(responder)

	rec := postForm(h, url.Values{"Body": {"hola"}})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 with apology", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), errorReply) {
		t.Fatalf("expected apologetic reply, got: %s", rec.Body.String())
	}
	if responder.got.Body != "" {
		t.Fatal("responder must not run without a sender")
	}
}

func TestWebhookEmptyResponderReplyFallsBack(t *testing.T) {
	h := newTestHandler(&echoResponder{reply: ""})

	rec := postForm(h, url.Values{
		"From": {"whatsapp:+593983200438"},
		"Body": {"hola"},
	})

	if !strings.Contains(rec.Body.String(), errorReply) {
		t.Fatalf("expected fallback reply, got: %s", rec.Body.String())
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	h := newTestHandler(&echoResponder{})
	req := httptest.NewRequest("GET", "/api/whatsapp/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 405 {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
