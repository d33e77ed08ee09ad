package chat

import (
	"github.com/charmbracelet/log"
)

// Presence turns registry transitions into JOIN/LEAVE broadcasts and
// answers who-is-online queries. Control frames are push-only: they are
// never persisted as chat history.
//
// Every transition is broadcast, including rapid reconnects from the
// same user. Downstream contact lists track liveness from these frames,
// so the chattiness is accepted rather than debounced.
type Presence struct {
	registry *Registry
	logger   *log.Logger
}

func NewPresence(registry *Registry, logger *log.Logger) *Presence {
	return &Presence{registry: registry, logger: logger}
}

// Connect registers conn and, when the user just came online,
// broadcasts a JOIN control frame to the public stream.
func (p *Presence) Connect(conn Conn) {
	if p.registry.Register(conn.User(), conn) {
		p.broadcast(&Message{SenderName: conn.User(), Status: StatusJoin})
	}
}

// Disconnect unregisters conn and, when it was the user's last
// connection, broadcasts a LEAVE control frame. Calling it again for
// the same connection is a no-op.
func (p *Presence) Disconnect(conn Conn) {
	if p.registry.Unregister(conn.User(), conn) {
		p.broadcast(&Message{SenderName: conn.User(), Status: StatusLeave})
	}
}

// Snapshot returns the sorted usernames currently online. Serves the
// polling fallback so presence does not depend on broadcast delivery.
func (p *Presence) Snapshot() []string {
	return p.registry.Online()
}

func (p *Presence) broadcast(ctrl *Message) {
	frame := ctrl.Encode()
	for _, c := range p.registry.Connections() {
		if !c.Push(frame) {
			p.logger.Debug("presence frame dropped", "user", c.User(), "status", ctrl.Status)
		}
	}
}
