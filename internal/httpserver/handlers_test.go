package httpserver

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
)

// fakeRepo implements repo.Repository for handler tests. Only the methods a
// test exercises carry behavior.
type fakeRepo struct {
	leads    map[string]*repo.Lead
	products []repo.Product
	orders   map[string]*repo.Order
	messages []repo.MessageRecord
	paid     []string
	intents  []repo.PaymentIntent
	states   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		leads:  map[string]*repo.Lead{},
		orders: map[string]*repo.Order{},
	}
}

func (f *fakeRepo) Close()                                              {}
func (f *fakeRepo) Ping(ctx context.Context) error                      { return nil }
func (f *fakeRepo) RunMigrations(ctx context.Context, fsys fs.FS) error { return nil }

func (f *fakeRepo) CreateLead(ctx context.Context, lead repo.NewLead) (*repo.Lead, error) {
	created := &repo.Lead{ID: "lead-1", Phone: lead.Phone, Name: lead.Name, Email: lead.Email, Address: lead.Address, PurchaseState: repo.PurchaseStateLead}
	f.leads[lead.Phone] = created
	return created, nil
}

func (f *fakeRepo) GetLeadByID(ctx context.Context, id string) (*repo.Lead, error) {
	for _, l := range f.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) GetLeadByPhone(ctx context.Context, rawPhone string) (*repo.Lead, error) {
	if l, ok := f.leads[rawPhone]; ok {
		return l, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) UpdateLead(ctx context.Context, id string, upd repo.LeadUpdate) error {
	if _, err := f.GetLeadByID(ctx, id); err != nil {
		return err
	}
	return nil
}

func (f *fakeRepo) SetLeadPaymentIntent(ctx context.Context, id string, intent repo.PaymentIntent) error {
	f.intents = append(f.intents, intent)
	return nil
}

func (f *fakeRepo) SetLeadPurchaseState(ctx context.Context, id, state string) error {
	f.states = append(f.states, state)
	return nil
}

func (f *fakeRepo) AppendMessage(ctx context.Context, phone string, msg repo.MessageRecord) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeRepo) ListRecentMessages(ctx context.Context, leadID string, limit int) ([]repo.MessageRecord, error) {
	return f.messages, nil
}

func (f *fakeRepo) ListProducts(ctx context.Context) ([]repo.Product, error) {
	return f.products, nil
}

func (f *fakeRepo) ListActiveProducts(ctx context.Context) ([]repo.Product, error) {
	return f.products, nil
}

func (f *fakeRepo) ListProductsByCategory(ctx context.Context, category string) ([]repo.Product, error) {
	var out []repo.Product
	for _, p := range f.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetProductByID(ctx context.Context, id string) (*repo.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) GetActiveProductByName(ctx context.Context, name string) (*repo.Product, error) {
	for _, p := range f.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) SearchProductsByName(ctx context.Context, query string) ([]repo.Product, error) {
	var out []repo.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCategories(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range f.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (f *fakeRepo) NextOrderNumber(ctx context.Context, year int) (int64, error) { return 1, nil }

func (f *fakeRepo) InsertOrder(ctx context.Context, order repo.Order) (*repo.Order, error) {
	f.orders[order.Code] = &order
	return &order, nil
}

func (f *fakeRepo) GetOrderByCode(ctx context.Context, code string) (*repo.Order, error) {
	if o, ok := f.orders[code]; ok {
		return o, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) MarkOrderPaid(ctx context.Context, code string) error {
	o, ok := f.orders[code]
	if !ok {
		return repo.ErrNotFound
	}
	o.Paid = true
	o.Status = repo.PaymentStatePaid
	f.paid = append(f.paid, code)
	return nil
}

func (f *fakeRepo) SyncGeminiKeys(ctx context.Context, keys []string) error { return nil }
func (f *fakeRepo) ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error) {
	return nil, nil
}
func (f *fakeRepo) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	return nil
}
func (f *fakeRepo) ClearCooldown(ctx context.Context, id string) error { return nil }

func newTestServer(store *fakeRepo) *Server {
	cfg := Config{
		Addr:           ":0",
		CompanyName:    "FRESST",
		WhatsAppNumber: "whatsapp:+14155238886",
	}
	logger := slog.New(slog.DiscardHandler)
	return New(cfg, logger, metrics.Registry("test"), Dependencies{Repository: store})
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	parsed := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, parsed
}

func TestStartChatBuildsDeepLink(t *testing.T) {
	s := newTestServer(newFakeRepo())

	rec, body := doJSON(t, s, "POST", "/api/whatsapp/iniciar-chat",
		`{"nombre":"Interesado en Hornos","email":"ana@mail.com","referencia":"web"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	link, _ := body["link"].(string)
	if !strings.HasPrefix(link, "https://wa.me/14155238886?text=") {
		t.Errorf("link = %q", link)
	}
	if msg, _ := body["mensaje_inicial"].(string); !strings.Contains(msg, "Hornos") {
		t.Errorf("mensaje_inicial = %q", msg)
	}
}

func TestStartChatPlainNameGetsGenericGreeting(t *testing.T) {
	s := newTestServer(newFakeRepo())

	rec, body := doJSON(t, s, "POST", "/api/whatsapp/iniciar-chat",
		`{"nombre":"Ana Mora","referencia":"web"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	msg, _ := body["mensaje_inicial"].(string)
	if msg != "Hola! Me interesa conocer más sobre FRESST" {
		t.Errorf("mensaje_inicial = %q", msg)
	}
}

func TestCaptureLeadValidatesPhone(t *testing.T) {
	s := newTestServer(newFakeRepo())

	rec, _ := doJSON(t, s, "POST", "/api/whatsapp/capturar-lead", `{"nombre":"Ana","telefono":"123"}`)
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400 for implausible phone", rec.Code)
	}
}

func TestCaptureLeadCreates(t *testing.T) {
	store := newFakeRepo()
	s := newTestServer(store)

	rec, body := doJSON(t, s, "POST", "/api/whatsapp/capturar-lead",
		`{"nombre":"Ana Mora","telefono":"0983200438","email":"ana@mail.com"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if success, _ := body["success"].(bool); !success {
		t.Fatal("success = false")
	}
	if len(store.leads) != 1 {
		t.Fatalf("leads stored = %d", len(store.leads))
	}
}

func TestProductEndpoints(t *testing.T) {
	store := newFakeRepo()
	store.products = []repo.Product{
		{ID: "p1", Name: "Hornos", Category: "coccion", Price: 3500, Active: true},
		{ID: "p2", Name: "Góndolas", Category: "mobiliario", Price: 1500, Active: true},
	}
	s := newTestServer(store)

	rec, _ := doJSON(t, s, "GET", "/api/productos", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"nombre":"Hornos"`) {
		t.Fatalf("productos: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, s, "GET", "/api/productos/categoria/coccion", "")
	if rec.Code != 200 || strings.Contains(rec.Body.String(), "Góndolas") {
		t.Fatalf("categoria: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, s, "GET", "/api/productos/p1", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), `"precio":3500`) {
		t.Fatalf("producto by id: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, s, "GET", "/api/productos/desconocido", "")
	if rec.Code != 404 {
		t.Fatalf("unknown producto: %d", rec.Code)
	}

	rec, _ = doJSON(t, s, "GET", "/api/categorias", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "mobiliario") {
		t.Fatalf("categorias: %d %s", rec.Code, rec.Body.String())
	}
}

func TestConfirmPaymentSettlesOrderAndIntent(t *testing.T) {
	store := newFakeRepo()
	store.orders["FRES-2025-000001"] = &repo.Order{
		LeadID: "lead-1",
		Code:   "FRES-2025-000001",
		Total:  3500,
		Method: "contraentrega",
		Status: repo.PaymentStatePendingDelivery,
	}
	s := newTestServer(store)

	rec, body := doJSON(t, s, "POST", "/api/ordenes/FRES-2025-000001/confirmar-pago", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if estado, _ := body["estado"].(string); estado != repo.PaymentStatePaid {
		t.Errorf("estado = %q", estado)
	}
	if len(store.paid) != 1 {
		t.Fatal("order not marked paid")
	}
	if len(store.intents) != 1 || !store.intents[0].Paid {
		t.Fatalf("lead intent not settled: %+v", store.intents)
	}
	// Settling the payment is what turns the lead into a customer.
	if len(store.states) != 1 || store.states[0] != repo.PurchaseStateCustomer {
		t.Fatalf("lead not promoted: %v", store.states)
	}

	// Confirming again is idempotent.
	rec, _ = doJSON(t, s, "POST", "/api/ordenes/FRES-2025-000001/confirmar-pago", "")
	if rec.Code != 200 || len(store.paid) != 1 || len(store.states) != 1 {
		t.Fatalf("second confirm: %d, paid calls = %d", rec.Code, len(store.paid))
	}
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	s := newTestServer(newFakeRepo())
	rec, _ := doJSON(t, s, "POST", "/api/ordenes/FRES-2025-999999/confirmar-pago", "")
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
