package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"chatd/internal/metrics"
)

// Dispatcher is the single entry point for delivering a content
// message. Live client traffic and the scheduled-delivery engine both
// come through here, so a scheduled message behaves exactly like a
// typed one.
//
// Persistence happens exactly once per dispatch call, before any push
// attempt: a message that survives a push failure is never lost. Each
// call stores a new row with a new id; callers invoke dispatch exactly
// once per logical message.
type Dispatcher struct {
	registry *Registry
	store    MessageStore
	bridge   *Bridge
	logger   *log.Logger
	now      func() time.Time
}

func NewDispatcher(registry *Registry, store MessageStore, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// SetBridge attaches the cross-instance relay for public traffic.
func (d *Dispatcher) SetBridge(b *Bridge) {
	d.bridge = b
}

// DispatchPublic persists m to the public room and fans it out to every
// live connection. Delivery is best effort per connection: a connection
// that has since closed simply does not receive the frame, and no error
// surfaces to the sender.
func (d *Dispatcher) DispatchPublic(ctx context.Context, m *Message) (*Message, error) {
	if err := d.prepare(m); err != nil {
		return nil, err
	}
	m.ReceiverName = PublicReceiver

	if err := d.store.SaveMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("save public message: %w", err)
	}

	frame := m.Encode()
	for _, c := range d.registry.Connections() {
		if !c.Push(frame) {
			d.logger.Debug("public push dropped", "user", c.User())
		}
	}

	if d.bridge != nil {
		d.bridge.PublishPublic(ctx, frame)
	}

	metrics.MessagesDispatched.WithLabelValues("public").Inc()
	return m, nil
}

// DispatchPrivate persists m and pushes it to every connection of the
// receiver, echoing it to the sender's own connections so their other
// devices see the outgoing message. An offline receiver is not an
// error: the row is durable and retrievable through history.
func (d *Dispatcher) DispatchPrivate(ctx context.Context, m *Message) (*Message, error) {
	if err := d.prepare(m); err != nil {
		return nil, err
	}
	if m.ReceiverName == "" || m.ReceiverName == PublicReceiver {
		return nil, invalid("private message requires a receiver")
	}

	if err := d.store.SaveMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("save private message: %w", err)
	}

	frame := m.Encode()
	targets := make(map[Conn]struct{})
	for _, c := range d.registry.ConnectionsFor(m.ReceiverName) {
		targets[c] = struct{}{}
	}
	for _, c := range d.registry.ConnectionsFor(m.SenderName) {
		targets[c] = struct{}{}
	}
	for c := range targets {
		if !c.Push(frame) {
			d.logger.Debug("private push dropped", "user", c.User())
		}
	}

	metrics.MessagesDispatched.WithLabelValues("private").Inc()
	return m, nil
}

// prepare validates the content message and stamps server-owned fields.
func (d *Dispatcher) prepare(m *Message) error {
	if m.SenderName == "" {
		return invalid("sender is required")
	}
	if m.Status == "" {
		m.Status = StatusMessage
	}
	if m.Status.IsControl() {
		return invalid("control frames are not dispatchable content")
	}
	if m.Body == "" {
		return invalid("message body is empty")
	}
	m.ID = uuid.New()
	m.Timestamp = d.now().UTC()
	return nil
}

// deliverLocal fans a raw frame out to every local connection. Used by
// the bridge for payloads that originated on another instance and were
// already persisted there.
func (d *Dispatcher) deliverLocal(frame []byte) {
	for _, c := range d.registry.Connections() {
		if !c.Push(frame) {
			d.logger.Debug("relayed push dropped", "user", c.User())
		}
	}
}
