package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the Postgres EntryStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ EntryStore = (*Repository)(nil)

const entryColumns = `id, sender_name, receiver_name, body, scheduled_at, created_at,
	is_sent, kind, title, description, contact_name, event_date`

func (r *Repository) SaveEntry(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO scheduled_messages (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.SenderName, e.ReceiverName, e.Body, e.ScheduledAt, e.CreatedAt,
		e.Sent, e.Kind, e.Title, e.Description, e.ContactName, e.EventDate)
	if err != nil {
		return fmt.Errorf("insert scheduled entry: %w", err)
	}
	return nil
}

func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM scheduled_messages
		WHERE is_sent = FALSE AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`
	return r.queryEntries(ctx, query, now.UnixMilli())
}

// ClaimEntry relies on the atomicity of a guarded UPDATE: of any number
// of concurrent claimers, exactly one sees a row move.
func (r *Repository) ClaimEntry(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE scheduled_messages SET is_sent = TRUE WHERE id = $1 AND is_sent = FALSE`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repository) ReleaseEntry(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE scheduled_messages SET is_sent = FALSE WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("release entry: %w", err)
	}
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID, sender string) error {
	query := `DELETE FROM scheduled_messages WHERE id = $1 AND sender_name = $2 AND is_sent = FALSE`

	res, err := r.db.ExecContext(ctx, query, id, sender)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Nothing deleted: distinguish "already sent" from "not yours /
	// does not exist" for the caller's error message.
	var sent bool
	err = r.db.QueryRowContext(ctx,
		`SELECT is_sent FROM scheduled_messages WHERE id = $1 AND sender_name = $2`,
		id, sender).Scan(&sent)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if sent {
		return ErrAlreadySent
	}
	return ErrNotFound
}

func (r *Repository) FindBySender(ctx context.Context, sender string) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM scheduled_messages
		WHERE sender_name = $1
		ORDER BY scheduled_at ASC
	`
	return r.queryEntries(ctx, query, sender)
}

func (r *Repository) DeleteBySender(ctx context.Context, sender string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_messages WHERE sender_name = $1`, sender)
	if err != nil {
		return fmt.Errorf("delete entries by sender: %w", err)
	}
	return nil
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scheduled entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		err := rows.Scan(
			&e.ID, &e.SenderName, &e.ReceiverName, &e.Body, &e.ScheduledAt, &e.CreatedAt,
			&e.Sent, &e.Kind, &e.Title, &e.Description, &e.ContactName, &e.EventDate)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
