package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ReadState manages the delivery/read lifecycle of stored messages.
// Transitions are monotonic (MESSAGE -> RECEIVED -> READ); the guarded
// store updates make every operation here safe to retry, since rows
// that already advanced simply stop matching.
//
// Bulk updates are not atomic across the batch: a storage failure can
// leave some rows advanced and others not. Callers retry.
type ReadState struct {
	store MessageStore
}

func NewReadState(store MessageStore) *ReadState {
	return &ReadState{store: store}
}

// MarkRead advances a single message to READ. An unknown id is a no-op:
// the message may have been deleted since the receipt was issued.
func (rs *ReadState) MarkRead(ctx context.Context, id uuid.UUID) error {
	err := rs.store.AdvanceStatus(ctx, id, StatusRead)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead advances every not-yet-READ message authored by sender
// and addressed to receiver to READ. Invoked when receiver opens the
// conversation. Messages authored by anyone else are untouched, and a
// second call finds nothing left to advance.
func (rs *ReadState) MarkAllRead(ctx context.Context, sender, receiver string) (int, error) {
	if sender == "" || receiver == "" {
		return 0, invalid("sender and receiver are required")
	}
	n, err := rs.store.MarkAllRead(ctx, sender, receiver)
	if err != nil {
		return n, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

// MarkConversationReceived records a delivery receipt: every MESSAGE
// row from sender to receiver advances to RECEIVED. READ rows never
// regress.
func (rs *ReadState) MarkConversationReceived(ctx context.Context, sender, receiver string) (int, error) {
	if sender == "" || receiver == "" {
		return 0, invalid("sender and receiver are required")
	}
	n, err := rs.store.MarkReceived(ctx, sender, receiver)
	if err != nil {
		return n, fmt.Errorf("mark received: %w", err)
	}
	return n, nil
}

// UnreadCount counts messages addressed to user that were delivered but
// not yet read.
func (rs *ReadState) UnreadCount(ctx context.Context, user string) (int, error) {
	return rs.store.CountByStatus(ctx, user, StatusReceived)
}
