package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository is the Postgres MessageStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ MessageStore = (*Repository)(nil)

func (r *Repository) SaveMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, sender_name, receiver_name, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.SenderName, m.ReceiverName, m.Body, m.Status, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *Repository) FindHistory(ctx context.Context, userA, userB string) ([]*Message, error) {
	query := `
		SELECT id, sender_name, receiver_name, body, status, created_at
		FROM messages
		WHERE (sender_name = $1 AND receiver_name = $2)
		   OR (sender_name = $2 AND receiver_name = $1)
		ORDER BY created_at ASC
	`
	return r.queryMessages(ctx, query, userA, userB)
}

func (r *Repository) FindPublicHistory(ctx context.Context) ([]*Message, error) {
	query := `
		SELECT id, sender_name, receiver_name, body, status, created_at
		FROM messages
		WHERE receiver_name = $1
		ORDER BY created_at ASC
	`
	return r.queryMessages(ctx, query, PublicReceiver)
}

func (r *Repository) CountByStatus(ctx context.Context, user string, status Status) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE receiver_name = $1 AND status = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, user, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}

func (r *Repository) FindMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `
		SELECT id, sender_name, receiver_name, body, status, created_at
		FROM messages
		WHERE id = $1
	`
	m := &Message{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.SenderName, &m.ReceiverName, &m.Body, &m.Status, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return m, nil
}

// AdvanceStatus only touches rows that have not yet reached the target
// state, so the status column never moves backwards.
func (r *Repository) AdvanceStatus(ctx context.Context, id uuid.UUID, status Status) error {
	var query string
	switch status {
	case StatusReceived:
		query = `UPDATE messages SET status = 'RECEIVED' WHERE id = $1 AND status = 'MESSAGE'`
	case StatusRead:
		query = `UPDATE messages SET status = 'READ' WHERE id = $1 AND status IN ('MESSAGE', 'RECEIVED')`
	default:
		return fmt.Errorf("status %q is not an advance target", status)
	}

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("advance status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Nothing moved: either the row is already at or past the target,
	// or it does not exist.
	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("advance status: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, sender, receiver string) (int, error) {
	query := `
		UPDATE messages SET status = 'READ'
		WHERE sender_name = $1 AND receiver_name = $2
		  AND status IN ('MESSAGE', 'RECEIVED')
	`
	res, err := r.db.ExecContext(ctx, query, sender, receiver)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *Repository) MarkReceived(ctx context.Context, sender, receiver string) (int, error) {
	query := `
		UPDATE messages SET status = 'RECEIVED'
		WHERE sender_name = $1 AND receiver_name = $2 AND status = 'MESSAGE'
	`
	res, err := r.db.ExecContext(ctx, query, sender, receiver)
	if err != nil {
		return 0, fmt.Errorf("mark received: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SenderName, &m.ReceiverName, &m.Body, &m.Status, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
