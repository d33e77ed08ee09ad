package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.

	sendQueueSize = 256
)

// Client is the middleman between one websocket connection and the
// chat core. It implements Conn.
type Client struct {
	username   string
	conn       *websocket.Conn
	presence   *Presence
	dispatcher *Dispatcher
	readState  *ReadState
	logger     *log.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(username string, conn *websocket.Conn, presence *Presence, dispatcher *Dispatcher, readState *ReadState, logger *log.Logger) *Client {
	return &Client{
		username:   username,
		conn:       conn,
		presence:   presence,
		dispatcher: dispatcher,
		readState:  readState,
		logger:     logger,
		send:       make(chan []byte, sendQueueSize),
	}
}

func (c *Client) User() string { return c.username }

// Push enqueues a frame without blocking. A full queue drops the frame:
// a slow or dead consumer must not stall the sender or other recipients.
func (c *Client) Push(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// CloseSend shuts the outbound queue down and stops the write pump.
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

type wsError struct {
	Error string `json:"error"`
}

func (c *Client) pushError(err error) {
	frame, _ := json.Marshal(wsError{Error: err.Error()})
	c.Push(frame)
}

// readPump pumps frames from the websocket into the chat core. It owns
// connection teardown: when the transport closes for any reason, the
// connection is promptly unregistered.
func (c *Client) readPump() {
	defer func() {
		c.presence.Disconnect(c)
		c.CloseSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "user", c.username, "error", err)
			}
			return
		}
		c.handleFrame(payload)
	}
}

// handleFrame routes one inbound frame. A malformed frame or a rejected
// message reports back to this client only; nothing here is fatal to
// the connection.
func (c *Client) handleFrame(payload []byte) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		c.pushError(invalid("malformed frame"))
		return
	}

	// The authenticated identity wins over whatever the frame claims.
	m.SenderName = c.username

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch m.Status {
	case StatusJoin, StatusLeave:
		// Presence frames are server-originated; ignore them from clients.

	case StatusReceived:
		// Delivery receipt for the conversation with receiverName.
		if _, err := c.readState.MarkConversationReceived(ctx, m.ReceiverName, c.username); err != nil {
			c.pushError(err)
		}

	case StatusRead:
		// Read receipt: the peer's messages to this user are now read.
		if _, err := c.readState.MarkAllRead(ctx, m.ReceiverName, c.username); err != nil {
			c.pushError(err)
		}

	default:
		var err error
		if m.IsPublic() {
			_, err = c.dispatcher.DispatchPublic(ctx, &m)
		} else {
			_, err = c.dispatcher.DispatchPrivate(ctx, &m)
		}
		if err != nil {
			c.pushError(err)
		}
	}
}

// writePump pumps frames from the send queue to the websocket and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Flush any queued frames in the same write to save syscalls.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
