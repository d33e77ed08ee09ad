package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EntryStore is the durable side of scheduling. The Postgres
// implementation lives in repository.go; engine tests substitute an
// in-memory one.
type EntryStore interface {
	SaveEntry(ctx context.Context, e *Entry) error

	// FindDue returns every unsent entry whose scheduled time is at or
	// before now.
	FindDue(ctx context.Context, now time.Time) ([]*Entry, error)

	// ClaimEntry flips Sent false -> true and reports whether this
	// caller won the flip. Two concurrent ticks racing over the same
	// entry get exactly one true between them.
	ClaimEntry(ctx context.Context, id uuid.UUID) (bool, error)

	// ReleaseEntry undoes a claim after a failed dispatch so the next
	// tick retries the entry.
	ReleaseEntry(ctx context.Context, id uuid.UUID) error

	// DeleteEntry cancels a pending entry owned by sender. A sent entry
	// yields ErrAlreadySent, an unknown one ErrNotFound.
	DeleteEntry(ctx context.Context, id uuid.UUID, sender string) error

	FindBySender(ctx context.Context, sender string) ([]*Entry, error)

	// DeleteBySender drops all of sender's entries; account-deletion
	// cascade.
	DeleteBySender(ctx context.Context, sender string) error
}
