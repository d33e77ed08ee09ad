package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRequest is a user's request to schedule a message. Recurring
// kinds derive the delivery time from EventDate; the others take an
// explicit epoch-millis timestamp.
type CreateRequest struct {
	ReceiverName string `json:"receiverName"`
	Body         string `json:"message"`
	ScheduledAt  int64  `json:"scheduledTime,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	EventDate    string `json:"eventDate,omitempty"` // MM-DD
}

// Service validates and persists scheduled entries. Delivery itself is
// the engine's job.
type Service struct {
	store EntryStore
	now   func() time.Time
}

func NewService(store EntryStore) *Service {
	return &Service{store: store, now: time.Now}
}

func reject(format string, args ...any) error {
	return &SchedulingError{Reason: fmt.Sprintf(format, args...)}
}

// Create validates req and stores a pending entry for sender. Invalid
// requests are rejected with a descriptive reason, never dropped.
func (s *Service) Create(ctx context.Context, sender string, req *CreateRequest) (*Entry, error) {
	if sender == "" {
		return nil, reject("sender is required")
	}
	if req.ReceiverName == "" {
		return nil, reject("receiver is required")
	}
	if req.Body == "" {
		return nil, reject("message body is required")
	}
	kind, ok := ParseKind(req.Kind)
	if !ok {
		return nil, reject("unknown kind %q", req.Kind)
	}

	now := s.now()
	scheduledAt := req.ScheduledAt
	if kind.IsRecurring() {
		if req.EventDate == "" {
			return nil, reject("%s requires an eventDate (MM-DD)", kind)
		}
		next, err := NextOccurrence(req.EventDate, now)
		if err != nil {
			return nil, err
		}
		scheduledAt = next.UnixMilli()
	} else {
		if scheduledAt == 0 {
			return nil, reject("scheduledTime is required")
		}
		if scheduledAt <= now.UnixMilli() {
			return nil, reject("scheduledTime %d is in the past", scheduledAt)
		}
	}

	e := &Entry{
		ID:           uuid.New(),
		SenderName:   sender,
		ReceiverName: req.ReceiverName,
		Body:         req.Body,
		ScheduledAt:  scheduledAt,
		CreatedAt:    now.UTC(),
		Kind:         kind,
		Title:        req.Title,
		Description:  req.Description,
		ContactName:  req.ContactName,
		EventDate:    req.EventDate,
	}
	if err := s.store.SaveEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}
	return e, nil
}

// Cancel removes a pending entry. Cancelling an already-sent entry is
// an error, not a silent no-op: the caller's "stop this from going out"
// cannot be met.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, sender string) error {
	return s.store.DeleteEntry(ctx, id, sender)
}

// List returns all of sender's entries, pending and sent.
func (s *Service) List(ctx context.Context, sender string) ([]*Entry, error) {
	return s.store.FindBySender(ctx, sender)
}

// NextOccurrence resolves an MM-DD anniversary date to its next
// occurrence at or after now, at midnight UTC. A date already past this
// year rolls to next year. Feb 29 normalizes to Mar 1 outside leap
// years, matching time.Date semantics.
func NextOccurrence(eventDate string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse("01-02", eventDate)
	if err != nil {
		return time.Time{}, reject("eventDate %q is not MM-DD", eventDate)
	}

	candidate := time.Date(now.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	if candidate.Before(now) {
		candidate = time.Date(now.Year()+1, parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	}
	return candidate, nil
}
