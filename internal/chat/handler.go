package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"chatd/internal/metrics"
	"chatd/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dev mode; lock down origins behind a proxy in prod.
	},
}

// Handler exposes the websocket endpoint and the thin HTTP surface over
// the chat core (history, unread counts, read receipts, presence).
type Handler struct {
	presence   *Presence
	dispatcher *Dispatcher
	readState  *ReadState
	store      MessageStore
	logger     *log.Logger
}

func NewHandler(presence *Presence, dispatcher *Dispatcher, readState *ReadState, store MessageStore, logger *log.Logger) *Handler {
	return &Handler{
		presence:   presence,
		dispatcher: dispatcher,
		readState:  readState,
		store:      store,
		logger:     logger,
	}
}

// ServeWS upgrades an authenticated request and hands the connection to
// the presence layer. Identity comes from the auth middleware; the
// upgrade never happens for anonymous requests.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.UsernameFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "user", username, "error", err)
		return
	}

	client := newClient(username, conn, h.presence, h.dispatcher, h.readState, h.logger)
	h.presence.Connect(client)
	metrics.ConnectionsActive.Inc()

	go client.writePump()
	go func() {
		defer metrics.ConnectionsActive.Dec()
		client.readPump()
	}()
}

// GetHistory returns the private conversation between the caller and
// the peer named in the "with" query parameter, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())
	peer := r.URL.Query().Get("with")
	if peer == "" {
		http.Error(w, "missing 'with' parameter", http.StatusBadRequest)
		return
	}

	msgs, err := h.store.FindHistory(r.Context(), username, peer)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, msgs)
}

// GetPublicHistory returns the public room, oldest first.
func (h *Handler) GetPublicHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.FindPublicHistory(r.Context())
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, msgs)
}

// GetUnreadCount returns how many delivered-but-unread messages await
// the caller.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())

	count, err := h.readState.UnreadCount(r.Context(), username)
	if err != nil {
		http.Error(w, "failed to count unread", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"unread": count})
}

type markReadRequest struct {
	Sender string `json:"sender"`
}

// MarkConversationRead bulk-advances the named sender's messages to the
// caller to READ. Invoked when the caller opens the conversation.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	n, err := h.readState.MarkAllRead(r.Context(), req.Sender, username)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to mark read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"updated": n})
}

// GetPresence returns the usernames currently online. Polling fallback
// for clients that missed JOIN/LEAVE broadcasts.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"online": h.presence.Snapshot()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
