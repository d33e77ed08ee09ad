package chat

import (
	"context"

	"github.com/google/uuid"
)

// MessageStore is the durable side of dispatch and read-state. The
// Postgres implementation lives in repository.go; tests substitute an
// in-memory one.
//
// Only content messages reach SaveMessage; JOIN/LEAVE control frames
// are never stored.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *Message) error

	// FindHistory returns the private conversation between two users in
	// both directions, oldest first.
	FindHistory(ctx context.Context, userA, userB string) ([]*Message, error)

	// FindPublicHistory returns the public room, oldest first.
	FindPublicHistory(ctx context.Context) ([]*Message, error)

	// CountByStatus counts messages addressed to user in the given state.
	CountByStatus(ctx context.Context, user string, status Status) (int, error)

	// FindMessage looks a message up by id; ErrNotFound when absent.
	FindMessage(ctx context.Context, id uuid.UUID) (*Message, error)

	// AdvanceStatus moves one message forward to status. The update is
	// guarded so a status never regresses; advancing an already-READ
	// message is a no-op.
	AdvanceStatus(ctx context.Context, id uuid.UUID, status Status) error

	// MarkAllRead advances every not-yet-READ message from sender to
	// receiver to READ, returning how many rows moved.
	MarkAllRead(ctx context.Context, sender, receiver string) (int, error)

	// MarkReceived advances MESSAGE rows from sender to receiver to
	// RECEIVED, returning how many rows moved.
	MarkReceived(ctx context.Context, sender, receiver string) (int, error)
}
