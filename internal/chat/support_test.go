package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeConn records pushed frames. full simulates a saturated outbound
// queue.
type fakeConn struct {
	user string

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func newFakeConn(user string) *fakeConn {
	return &fakeConn{user: user}
}

func (c *fakeConn) User() string { return c.user }

func (c *fakeConn) Push(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received(t *testing.T) []Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, 0, len(c.frames))
	for _, frame := range c.frames {
		var m Message
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", frame, err)
		}
		out = append(out, m)
	}
	return out
}

// memStore is an in-memory MessageStore preserving insertion order.
type memStore struct {
	mu       sync.Mutex
	messages []*Message
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{}
}

var _ MessageStore = (*memStore)(nil)

func (s *memStore) SaveMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	stored := *m
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *memStore) FindHistory(_ context.Context, userA, userB string) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Message
	for _, m := range s.messages {
		if (m.SenderName == userA && m.ReceiverName == userB) ||
			(m.SenderName == userB && m.ReceiverName == userA) {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) FindPublicHistory(_ context.Context) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Message
	for _, m := range s.messages {
		if m.ReceiverName == PublicReceiver {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) CountByStatus(_ context.Context, user string, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.ReceiverName == user && m.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *memStore) FindMessage(_ context.Context, id uuid.UUID) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) AdvanceStatus(_ context.Context, id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			if m.Status.CanAdvance(status) {
				m.Status = status
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *memStore) MarkAllRead(_ context.Context, sender, receiver string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.SenderName == sender && m.ReceiverName == receiver && m.Status != StatusRead {
			m.Status = StatusRead
			count++
		}
	}
	return count, nil
}

func (s *memStore) MarkReceived(_ context.Context, sender, receiver string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.SenderName == sender && m.ReceiverName == receiver && m.Status == StatusMessage {
			m.Status = StatusReceived
			count++
		}
	}
	return count, nil
}

func (s *memStore) all() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		copied := *m
		out = append(out, &copied)
	}
	return out
}
