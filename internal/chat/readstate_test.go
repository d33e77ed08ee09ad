package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedMessage(t *testing.T, store *memStore, sender, receiver string, status Status) uuid.UUID {
	t.Helper()
	m := &Message{
		ID:           uuid.New(),
		SenderName:   sender,
		ReceiverName: receiver,
		Body:         "hello",
		Status:       status,
		Timestamp:    time.Now().UTC(),
	}
	require.NoError(t, store.SaveMessage(context.Background(), m))
	return m.ID
}

func TestMarkRead_AdvancesAndIsMonotonic(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	id := seedMessage(t, store, "alice", "bob", StatusReceived)
	require.NoError(t, rs.MarkRead(ctx, id))

	m, err := store.FindMessage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusRead, m.Status)

	// A second receipt changes nothing.
	require.NoError(t, rs.MarkRead(ctx, id))
	m, err = store.FindMessage(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusRead, m.Status)
}

func TestMarkRead_UnknownIDIsNoOp(t *testing.T) {
	rs := NewReadState(newMemStore())
	require.NoError(t, rs.MarkRead(context.Background(), uuid.New()),
		"the message may have been deleted; a receipt for it is not an error")
}

func TestMarkAllRead_OnlyTouchesGivenSender(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	fromAlice := seedMessage(t, store, "alice", "bob", StatusReceived)
	fromBob := seedMessage(t, store, "bob", "alice", StatusReceived)
	fromCarol := seedMessage(t, store, "carol", "bob", StatusReceived)

	n, err := rs.MarkAllRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m, _ := store.FindMessage(ctx, fromAlice)
	require.Equal(t, StatusRead, m.Status)
	m, _ = store.FindMessage(ctx, fromBob)
	require.Equal(t, StatusReceived, m.Status, "the other direction of the conversation is untouched")
	m, _ = store.FindMessage(ctx, fromCarol)
	require.Equal(t, StatusReceived, m.Status, "other senders to the same receiver are untouched")
}

func TestMarkAllRead_SkipsReceivedStraightFromMessage(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	id := seedMessage(t, store, "alice", "bob", StatusMessage)

	n, err := rs.MarkAllRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m, _ := store.FindMessage(ctx, id)
	require.Equal(t, StatusRead, m.Status)
}

func TestMarkAllRead_Idempotent(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	seedMessage(t, store, "alice", "bob", StatusReceived)
	seedMessage(t, store, "alice", "bob", StatusMessage)

	n, err := rs.MarkAllRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = rs.MarkAllRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Zero(t, n, "already-READ messages no longer match")
}

func TestMarkAllRead_ZeroMatchesIsFine(t *testing.T) {
	rs := NewReadState(newMemStore())
	n, err := rs.MarkAllRead(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMarkConversationReceived(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	pending := seedMessage(t, store, "alice", "bob", StatusMessage)
	alreadyRead := seedMessage(t, store, "alice", "bob", StatusRead)

	n, err := rs.MarkConversationReceived(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m, _ := store.FindMessage(ctx, pending)
	require.Equal(t, StatusReceived, m.Status)
	m, _ = store.FindMessage(ctx, alreadyRead)
	require.Equal(t, StatusRead, m.Status, "READ never regresses to RECEIVED")
}

func TestUnreadCount(t *testing.T) {
	store := newMemStore()
	rs := NewReadState(store)
	ctx := context.Background()

	seedMessage(t, store, "alice", "bob", StatusReceived)
	seedMessage(t, store, "carol", "bob", StatusReceived)
	seedMessage(t, store, "alice", "bob", StatusMessage) // not yet delivered
	seedMessage(t, store, "alice", "bob", StatusRead)
	seedMessage(t, store, "bob", "alice", StatusReceived) // someone else's unread

	n, err := rs.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
