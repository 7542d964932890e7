package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/phone"
)

const leadColumns = `
id, phone, name, email, address, purchase_state,
payment_method, payment_total, payment_state, payment_code, payment_paid, payment_address, payment_requested_at,
created_at, updated_at`

// CreateLead stores a new lead keyed by the canonical phone form.
func (r *PostgresRepository) CreateLead(ctx context.Context, lead NewLead) (*Lead, error) {
	canonical := phone.Normalize(lead.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("create lead: phone is required")
	}
	const q = `
INSERT INTO leads (phone, name, email, address, purchase_state)
VALUES ($1, $2, $3, $4, 'lead')
RETURNING ` + leadColumns + `;`

	row := r.pool.QueryRow(ctx, q, canonical, lead.Name, lead.Email, lead.Address)
	return scanLead(row)
}

// GetLeadByID returns a lead by internal identifier.
func (r *PostgresRepository) GetLeadByID(ctx context.Context, id string) (*Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 LIMIT 1;`
	lead, err := scanLead(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// GetLeadByPhone resolves a lead tolerating historical phone formats: each
// lookup variant is tried in precedence order and the first match wins.
func (r *PostgresRepository) GetLeadByPhone(ctx context.Context, rawPhone string) (*Lead, error) {
	const q = `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1 LIMIT 1;`
	for _, candidate := range phone.Variants(rawPhone) {
		lead, err := scanLead(r.pool.QueryRow(ctx, q, candidate))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("get lead by phone: %w", err)
		}
		return lead, nil
	}
	return nil, ErrNotFound
}

// UpdateLead applies partial field updates; nil fields keep their value.
func (r *PostgresRepository) UpdateLead(ctx context.Context, id string, upd LeadUpdate) error {
	const q = `
UPDATE leads
SET name = COALESCE($2, name),
    email = COALESCE($3, email),
    address = COALESCE($4, address),
    updated_at = NOW()
WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id, upd.Name, upd.Email, upd.Address)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLeadPaymentIntent records the latest payment-intent summary on the lead.
func (r *PostgresRepository) SetLeadPaymentIntent(ctx context.Context, id string, intent PaymentIntent) error {
	const q = `
UPDATE leads
SET payment_method = $2,
    payment_total = $3,
    payment_state = $4,
    payment_code = $5,
    payment_paid = $6,
    payment_address = $7,
    payment_requested_at = $8,
    updated_at = NOW()
WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id,
		intent.Method, intent.Total, intent.State, intent.Code, intent.Paid, intent.Address, intent.RequestedAt)
	if err != nil {
		return fmt.Errorf("set lead payment intent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLeadPurchaseState transitions the lead between prospect and customer.
func (r *PostgresRepository) SetLeadPurchaseState(ctx context.Context, id, state string) error {
	const q = `UPDATE leads SET purchase_state = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id, state)
	if err != nil {
		return fmt.Errorf("set lead purchase state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
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
