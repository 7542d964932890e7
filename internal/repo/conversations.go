package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AppendMessage stores one conversation turn and refreshes the per-lead
// conversation projection in the same transaction. The phone argument is the
// lead's canonical phone at append time.
func (r *PostgresRepository) AppendMessage(ctx context.Context, phone string, msg MessageRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		const insertMsg = `
INSERT INTO messages (lead_id, sender, body, message_sid)
VALUES ($1, $2, $3, $4);`
		if _, err := tx.Exec(ctx, insertMsg, msg.LeadID, msg.Sender, msg.Body, msg.MessageSID); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		const upsertConvo = `
INSERT INTO conversations (lead_id, phone, last_message_at)
VALUES ($1, $2, NOW())
ON CONFLICT (lead_id) DO UPDATE
SET phone = EXCLUDED.phone,
    last_message_at = NOW();`
		if _, err := tx.Exec(ctx, upsertConvo, msg.LeadID, phone); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return nil
	})
}

// ListRecentMessages returns the newest messages for a lead in chronological
// order. A limit of zero or less returns the full history.
func (r *PostgresRepository) ListRecentMessages(ctx context.Context, leadID string, limit int) ([]MessageRecord, error) {
	q := `
SELECT id, lead_id, sender, body, message_sid, created_at
FROM messages
WHERE lead_id = $1
ORDER BY id DESC`
	args := []any{leadID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
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

	// Rows arrive newest first; flip back to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
