package repo

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// ErrNotFound signals an expected "no record" outcome. Callers branch on it
// with errors.Is instead of treating absence as a failure.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Leads
	CreateLead(ctx context.Context, lead NewLead) (*Lead, error)
	GetLeadByID(ctx context.Context, id string) (*Lead, error)
	GetLeadByPhone(ctx context.Context, rawPhone string) (*Lead, error)
	UpdateLead(ctx context.Context, id string, upd LeadUpdate) error
	SetLeadPaymentIntent(ctx context.Context, id string, intent PaymentIntent) error
	SetLeadPurchaseState(ctx context.Context, id, state string) error

	// Conversations
	AppendMessage(ctx context.Context, phone string, msg MessageRecord) error
	ListRecentMessages(ctx context.Context, leadID string, limit int) ([]MessageRecord, error)

	// Products
	ListProducts(ctx context.Context) ([]Product, error)
	ListActiveProducts(ctx context.Context) ([]Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]Product, error)
	GetProductByID(ctx context.Context, id string) (*Product, error)
	GetActiveProductByName(ctx context.Context, name string) (*Product, error)
	SearchProductsByName(ctx context.Context, query string) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)

	// Orders
	NextOrderNumber(ctx context.Context, year int) (int64, error)
	InsertOrder(ctx context.Context, order Order) (*Order, error)
	GetOrderByCode(ctx context.Context, code string) (*Order, error)
	MarkOrderPaid(ctx context.Context, code string) error

	// API keys
	SyncGeminiKeys(ctx context.Context, keys []string) error
	ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error)
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
	ClearCooldown(ctx context.Context, id string) error
}
