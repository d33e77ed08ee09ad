package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PublicReceiver is the reserved receiver value for public-room messages.
// It is never a valid username; registration rejects it.
const PublicReceiver = "PUBLIC"

// Status is the lifecycle state of a message. JOIN and LEAVE are
// presence control frames and are never persisted; MESSAGE, RECEIVED
// and READ form the durable lifecycle, advancing in that order only.
type Status string

const (
	StatusJoin     Status = "JOIN"
	StatusLeave    Status = "LEAVE"
	StatusMessage  Status = "MESSAGE"
	StatusReceived Status = "RECEIVED"
	StatusRead     Status = "READ"
)

// statusRank orders the durable lifecycle. Control statuses rank below
// everything so they can never overwrite a stored status.
var statusRank = map[Status]int{
	StatusJoin:     0,
	StatusLeave:    0,
	StatusMessage:  1,
	StatusReceived: 2,
	StatusRead:     3,
}

// ParseStatus normalizes a wire status string. Unknown or empty values
// map to MESSAGE rather than rejecting the frame.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusJoin, StatusLeave, StatusMessage, StatusReceived, StatusRead:
		return Status(s)
	default:
		return StatusMessage
	}
}

// CanAdvance reports whether a message may move from s to next without
// regressing.
func (s Status) CanAdvance(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// IsControl reports whether s is a presence frame rather than content.
func (s Status) IsControl() bool {
	return s == StatusJoin || s == StatusLeave
}

// UnmarshalJSON accepts any JSON string and normalizes it, so a frame
// with an unrecognized status still parses as a plain MESSAGE.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// Message is a chat message, either in flight on the wire or persisted.
// The JSON field names are the wire contract and must stay stable.
type Message struct {
	ID           uuid.UUID `json:"id,omitzero"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName,omitempty"`
	Body         string    `json:"message,omitempty"`
	Status       Status    `json:"status"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
}

// IsPublic reports whether the message targets the shared room.
func (m *Message) IsPublic() bool {
	return m.ReceiverName == "" || m.ReceiverName == PublicReceiver
}

// Encode renders the message as a wire frame.
func (m *Message) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
