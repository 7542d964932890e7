package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/phone"
)

// SQLite has no server-side UUID generator, so row IDs are minted here.
func randomUUID() string {
	return uuid.NewString()
}

// -- Leads --

func (r *SQLiteRepository) CreateLead(ctx context.Context, lead NewLead) (*Lead, error) {
	canonical := phone.Normalize(lead.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("create lead: phone is required")
	}
	const q = `
INSERT INTO leads (id, phone, name, email, address, purchase_state)
VALUES (?, ?, ?, ?, ?, 'lead')
RETURNING ` + leadColumns + `;`
	row := r.db.QueryRowContext(ctx, q, randomUUID(), canonical, lead.Name, lead.Email, lead.Address)
	stored, err := scanLeadSQL(row)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return stored, nil
}

func (r *SQLiteRepository) GetLeadByID(ctx context.Context, id string) (*Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE id = ? LIMIT 1;`
	lead, err := scanLeadSQL(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

func (r *SQLiteRepository) GetLeadByPhone(ctx context.Context, rawPhone string) (*Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE phone = ? LIMIT 1;`
	for _, candidate := range phone.Variants(rawPhone) {
		lead, err := scanLeadSQL(r.db.QueryRowContext(ctx, q, candidate))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("get lead by phone: %w", err)
		}
		return lead, nil
	}
	return nil, ErrNotFound
}

func (r *SQLiteRepository) UpdateLead(ctx context.Context, id string, upd LeadUpdate) error {
	const q = `
UPDATE leads
SET name = COALESCE(?, name),
    email = COALESCE(?, email),
    address = COALESCE(?, address),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, upd.Name, upd.Email, upd.Address, id)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) SetLeadPaymentIntent(ctx context.Context, id string, intent PaymentIntent) error {
	const q = `
UPDATE leads
SET payment_method = ?,
    payment_total = ?,
    payment_state = ?,
    payment_code = ?,
    payment_paid = ?,
    payment_address = ?,
    payment_requested_at = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q,
		intent.Method, intent.Total, intent.State, intent.Code, intent.Paid, intent.Address, intent.RequestedAt, id)
	if err != nil {
		return fmt.Errorf("set lead payment intent: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) SetLeadPurchaseState(ctx context.Context, id, state string) error {
	const q = `UPDATE leads SET purchase_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, state, id)
	if err != nil {
		return fmt.Errorf("set lead purchase state: %w", err)
	}
	return requireRow(res)
}

// -- Conversations --

func (r *SQLiteRepository) AppendMessage(ctx context.Context, phoneNumber string, msg MessageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback()

	const insertMsg = `
INSERT INTO messages (lead_id, sender, body, message_sid)
VALUES (?, ?, ?, ?);`
	if _, err := tx.ExecContext(ctx, insertMsg, msg.LeadID, msg.Sender, msg.Body, msg.MessageSID); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	const upsertConvo = `
INSERT INTO conversations (lead_id, phone, last_message_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (lead_id) DO UPDATE
SET phone = excluded.phone,
    last_message_at = CURRENT_TIMESTAMP;`
	if _, err := tx.ExecContext(ctx, upsertConvo, msg.LeadID, phoneNumber); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) ListRecentMessages(ctx context.Context, leadID string, limit int) ([]MessageRecord, error) {
	q := `
SELECT id, lead_id, sender, body, message_sid, created_at
FROM messages
WHERE lead_id = ?
ORDER BY id DESC`
	args := []any{leadID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.LeadID, &m.Sender, &m.Body, &m.MessageSID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages rows: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// -- Products --

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products ORDER BY category, name;`
	return r.queryProducts(ctx, q)
}

func (r *SQLiteRepository) ListActiveProducts(ctx context.Context) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY category, name;`
	return r.queryProducts(ctx, q)
}

func (r *SQLiteRepository) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND category = ? ORDER BY name;`
	return r.queryProducts(ctx, q, category)
}

func (r *SQLiteRepository) GetProductByID(ctx context.Context, id string) (*Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE id = ? LIMIT 1;`
	return r.queryProduct(ctx, q, id)
}

func (r *SQLiteRepository) GetActiveProductByName(ctx context.Context, name string) (*Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND lower(name) = lower(?) LIMIT 1;`
	return r.queryProduct(ctx, q, name)
}

func (r *SQLiteRepository) SearchProductsByName(ctx context.Context, query string) ([]Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND lower(name) LIKE '%' || lower(?) || '%' ORDER BY name;`
	return r.queryProducts(ctx, q, query)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT category FROM products WHERE active ORDER BY category;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories rows: %w", err)
	}
	return cats, nil
}

func (r *SQLiteRepository) queryProduct(ctx context.Context, q string, args ...any) (*Product, error) {
	var p Product
	row := r.db.QueryRowContext(ctx, q, args...)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Characteristics, &p.Description, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *SQLiteRepository) queryProducts(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Characteristics, &p.Description, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query products rows: %w", err)
	}
	return products, nil
}

// -- Orders --

func (r *SQLiteRepository) NextOrderNumber(ctx context.Context, year int) (int64, error) {
	const q = `
INSERT INTO order_counters (year, value)
VALUES (?, 1)
ON CONFLICT (year) DO UPDATE
SET value = order_counters.value + 1
RETURNING value;`
	var value int64
	if err := r.db.QueryRowContext(ctx, q, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return value, nil
}

func (r *SQLiteRepository) InsertOrder(ctx context.Context, order Order) (*Order, error) {
	items, err := itemsToJSON(order.Items)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO orders (id, lead_id, code, items, total, method, delivery_address, status, paid)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + orderColumns + `;`
	row := r.db.QueryRowContext(ctx, q,
		randomUUID(), order.LeadID, order.Code, items, order.Total, order.Method,
		order.DeliveryAddress, order.Status, order.Paid)
	stored, err := scanOrderSQL(row)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return stored, nil
}

func (r *SQLiteRepository) GetOrderByCode(ctx context.Context, code string) (*Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE code = ? LIMIT 1;`
	order, err := scanOrderSQL(r.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order by code: %w", err)
	}
	return order, nil
}

func (r *SQLiteRepository) MarkOrderPaid(ctx context.Context, code string) error {
	const q = `
UPDATE orders
SET paid = TRUE,
    status = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE code = ?;`
	res, err := r.db.ExecContext(ctx, q, PaymentStatePaid, code)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return requireRow(res)
}

// -- API keys --

func (r *SQLiteRepository) SyncGeminiKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no gemini keys provided")
	}
	const q = `
INSERT INTO api_keys (id, provider, value, priority)
VALUES (?, ?, ?, ?)
ON CONFLICT (provider, value) DO UPDATE
SET priority = excluded.priority,
    updated_at = CURRENT_TIMESTAMP;`
	for idx, key := range keys {
		if _, err := r.db.ExecContext(ctx, q, randomUUID(), providerGemini, key, idx); err != nil {
			return fmt.Errorf("upsert api key: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	const q = `
SELECT id, provider, value, priority, cooldown_until, created_at, updated_at
FROM api_keys
WHERE provider = ?
ORDER BY priority ASC;`
	rows, err := r.db.QueryContext(ctx, q, providerGemini)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var res []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Provider, &k.Value, &k.Priority, &k.CooldownUntil, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		res = append(res, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys rows: %w", err)
	}
	return res, nil
}

func (r *SQLiteRepository) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	const q = `UPDATE api_keys SET cooldown_until = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, until, id)
	if err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ClearCooldown(ctx context.Context, id string) error {
	const q = `UPDATE api_keys SET cooldown_until = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	return requireRow(res)
}

// -- Scan helpers --

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLeadSQL(row *sql.Row) (*Lead, error) {
	var lead Lead
	var payMethod, payState, payCode, payAddress *string
	var payTotal *float64
	var payPaid *bool
	var payRequestedAt *time.Time

	if err := row.Scan(
		&lead.ID, &lead.Phone, &lead.Name, &lead.Email, &lead.Address, &lead.PurchaseState,
		&payMethod, &payTotal, &payState, &payCode, &payPaid, &payAddress, &payRequestedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Payment = assemblePayment(payMethod, payTotal, payState, payCode, payPaid, payAddress, payRequestedAt)
	return &lead, nil
}

func scanOrderSQL(row *sql.Row) (*Order, error) {
	var order Order
	var items []byte
	if err := row.Scan(
		&order.ID, &order.LeadID, &order.Code, &items, &order.Total, &order.Method,
		&order.DeliveryAddress, &order.Status, &order.Paid, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Items = itemsFromJSON(items)
	return &order, nil
}
