package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a scheduled entry. Recurring kinds carry an MM-DD
// event date; the delivery time is computed once at creation and the
// engine treats every entry as one-shot (next year's occurrence is not
// re-armed automatically).
type Kind string

const (
	KindOneShot           Kind = "ONE_SHOT"
	KindRecurringReminder Kind = "RECURRING_REMINDER"
	KindBirthday          Kind = "BIRTHDAY"
	KindAnniversary       Kind = "ANNIVERSARY"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindOneShot, KindRecurringReminder, KindBirthday, KindAnniversary:
		return Kind(s), true
	case "":
		return KindOneShot, true
	default:
		return "", false
	}
}

// IsRecurring reports whether the kind is derived from an MM-DD date.
func (k Kind) IsRecurring() bool {
	return k == KindBirthday || k == KindAnniversary
}

// Entry is a user-authored request to deliver a message later. Sent is
// write-once: it flips false -> true exactly once when the engine
// claims the entry, and a sent entry is never delivered again.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`
	Body         string    `json:"message"`
	ScheduledAt  int64     `json:"scheduledTime"` // epoch millis
	CreatedAt    time.Time `json:"createdAt"`
	Sent         bool      `json:"isSent"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	ContactName  string    `json:"contactName,omitempty"`
	EventDate    string    `json:"eventDate,omitempty"` // MM-DD for recurring kinds
}

// Due reports whether the entry should fire at now.
func (e *Entry) Due(now time.Time) bool {
	return !e.Sent && e.ScheduledAt <= now.UnixMilli()
}

var (
	// ErrNotFound is returned for unknown entry ids.
	ErrNotFound = errors.New("scheduled entry not found")

	// ErrAlreadySent rejects cancellation of a delivered entry: the
	// caller wants to stop it from going out, and that is unmeetable.
	ErrAlreadySent = errors.New("scheduled entry already sent")
)

// SchedulingError rejects an invalid entry at creation time with a
// descriptive reason; invalid requests are never silently dropped.
type SchedulingError struct {
	Reason string
}

func (e *SchedulingError) Error() string {
	return "invalid schedule: " + e.Reason
}
