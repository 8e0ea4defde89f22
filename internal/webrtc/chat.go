package webrtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/signal"
)

// ChatClient relays chat events over the signaling session. The relay stores
// nothing server side, so message history is only what arrives while the
// session is connected.
type ChatClient struct {
	client *Client

	subs subscribers[calling.ChatHandler]

	mu      sync.Mutex
	threads map[string]*chatThread
}

func newChatClient(c *Client) *ChatClient {
	return &ChatClient{
		client:  c,
		threads: make(map[string]*chatThread),
	}
}

// CreateThread creates a thread handle with a fresh ID. Threads exist only
// as routing keys on chat payloads.
func (c *ChatClient) CreateThread(ctx context.Context, topic string, participantIDs []string) (calling.ChatThread, error) {
	t := &chatThread{chat: c, id: uuid.NewString(), topic: topic}
	c.mu.Lock()
	c.threads[t.id] = t
	c.mu.Unlock()
	return t, nil
}

// Thread returns the handle for a thread ID, creating one for IDs first seen
// in inbound events.
func (c *ChatClient) Thread(threadID string) (calling.ChatThread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.threads[threadID]
	if !ok {
		t = &chatThread{chat: c, id: threadID}
		c.threads[threadID] = t
	}
	return t, nil
}

// Subscribe registers a handler for chat events across all threads.
func (c *ChatClient) Subscribe(h calling.ChatHandler) func() {
	return c.subs.add(h)
}

// Dispose drops the thread handles. The signaling session belongs to the
// calling client.
func (c *ChatClient) Dispose() error {
	c.mu.Lock()
	c.threads = make(map[string]*chatThread)
	c.mu.Unlock()
	return nil
}

func (c *ChatClient) handleEvent(p signal.ChatPayload) {
	ts := time.UnixMilli(p.Timestamp)

	switch p.Kind {
	case "message":
		msg := calling.ChatMessage{
			ID:                p.MessageID,
			SequenceID:        p.Timestamp,
			SenderID:          p.SenderID,
			SenderDisplayName: p.SenderName,
			Content:           p.Content,
			CreatedOn:         ts,
		}
		c.subs.each(func(h calling.ChatHandler) { h.OnMessageReceived(p.ThreadID, msg) })

	case "edit":
		msg := calling.ChatMessage{
			ID:                p.MessageID,
			SequenceID:        p.Timestamp,
			SenderID:          p.SenderID,
			SenderDisplayName: p.SenderName,
			Content:           p.Content,
			EditedOn:          ts,
		}
		c.subs.each(func(h calling.ChatHandler) { h.OnMessageEdited(p.ThreadID, msg) })

	case "delete":
		c.subs.each(func(h calling.ChatHandler) { h.OnMessageDeleted(p.ThreadID, p.MessageID) })

	case "typing":
		ti := calling.TypingIndicator{
			ThreadID:   p.ThreadID,
			SenderID:   p.SenderID,
			ReceivedOn: ts,
		}
		c.subs.each(func(h calling.ChatHandler) { h.OnTypingIndicator(ti) })

	case "read":
		rr := calling.ReadReceipt{
			ThreadID:  p.ThreadID,
			SenderID:  p.SenderID,
			MessageID: p.MessageID,
			ReadOn:    ts,
		}
		c.subs.each(func(h calling.ChatHandler) { h.OnReadReceipt(rr) })
	}
}

// chatThread is one conversation routed through the signaling group.
type chatThread struct {
	chat  *ChatClient
	id    string
	topic string
}

func (t *chatThread) ID() string    { return t.id }
func (t *chatThread) Topic() string { return t.topic }

// SendMessage relays a message and returns its assigned ID.
func (t *chatThread) SendMessage(ctx context.Context, content string) (string, error) {
	sig := t.chat.client.sig()
	if sig == nil {
		return "", errors.New("webrtc: signaling session not connected")
	}

	id := uuid.NewString()
	sig.SendChat(signal.ChatPayload{
		Kind:      "message",
		ThreadID:  t.id,
		MessageID: id,
		SenderID:  t.chat.client.userID,
		Content:   content,
	})
	return id, nil
}

// SendTypingNotification relays a typing indicator.
func (t *chatThread) SendTypingNotification(ctx context.Context) error {
	sig := t.chat.client.sig()
	if sig == nil {
		return errors.New("webrtc: signaling session not connected")
	}

	sig.SendChat(signal.ChatPayload{
		Kind:     "typing",
		ThreadID: t.id,
		SenderID: t.chat.client.userID,
	})
	return nil
}

// SendReadReceipt relays a read receipt for a message.
func (t *chatThread) SendReadReceipt(ctx context.Context, messageID string) error {
	sig := t.chat.client.sig()
	if sig == nil {
		return errors.New("webrtc: signaling session not connected")
	}

	sig.SendChat(signal.ChatPayload{
		Kind:      "read",
		ThreadID:  t.id,
		MessageID: messageID,
		SenderID:  t.chat.client.userID,
	})
	return nil
}

// ListMessages returns no history; the relay persists nothing.
func (t *chatThread) ListMessages(ctx context.Context) ([]calling.ChatMessage, error) {
	return nil, nil
}

// ListParticipants returns no roster; the relay persists nothing.
func (t *chatThread) ListParticipants(ctx context.Context) ([]calling.ChatParticipant, error) {
	return nil, nil
}
