package schedule

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"chatd/internal/chat"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// memEntryStore is an in-memory EntryStore with the same claim
// semantics as the SQL one: the flip is atomic under the store lock.
type memEntryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{entries: make(map[uuid.UUID]*Entry)}
}

var _ EntryStore = (*memEntryStore)(nil)

func (s *memEntryStore) SaveEntry(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *e
	s.entries[e.ID] = &stored
	return nil
}

func (s *memEntryStore) FindDue(_ context.Context, now time.Time) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Entry
	for _, e := range s.entries {
		if e.Due(now) {
			copied := *e
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (s *memEntryStore) ClaimEntry(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Sent {
		return false, nil
	}
	e.Sent = true
	return true, nil
}

func (s *memEntryStore) ReleaseEntry(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.Sent = false
	}
	return nil
}

func (s *memEntryStore) DeleteEntry(_ context.Context, id uuid.UUID, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.SenderName != sender {
		return ErrNotFound
	}
	if e.Sent {
		return ErrAlreadySent
	}
	delete(s.entries, id)
	return nil
}

func (s *memEntryStore) FindBySender(_ context.Context, sender string) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.SenderName == sender {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memEntryStore) DeleteBySender(_ context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.SenderName == sender {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *memEntryStore) get(id uuid.UUID) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		copied := *e
		return &copied
	}
	return nil
}

// recordingDispatcher captures dispatched messages; failTimes makes the
// first n dispatches fail.
type recordingDispatcher struct {
	mu        sync.Mutex
	messages  []*chat.Message
	failTimes int
	err       error
}

func (d *recordingDispatcher) DispatchPrivate(_ context.Context, m *chat.Message) (*chat.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failTimes > 0 {
		d.failTimes--
		return nil, d.err
	}
	copied := *m
	d.messages = append(d.messages, &copied)
	return &copied, nil
}

func (d *recordingDispatcher) dispatched() []*chat.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*chat.Message, len(d.messages))
	copy(out, d.messages)
	return out
}
