package stateful

import (
	"context"
	"errors"
	"time"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

// ErrNoChatClient is returned from chat operations when the client was built
// without a chat SDK attached.
var ErrNoChatClient = errors.New("stateful: no chat client configured")

// ChatThreadClient is the stateful wrapper around one chat thread. Sends
// delegate to the SDK; successful sends and all inbound events are mirrored
// into the snapshot.
type ChatThreadClient struct {
	inner    calling.ChatThread
	client   *Client
	threadID string
}

// CreateChatThread creates a thread and mirrors it into the snapshot.
func (c *Client) CreateChatThread(ctx context.Context, topic string, participantIDs []string) (*ChatThreadClient, error) {
	if c.chat == nil {
		return nil, ErrNoChatClient
	}
	inner, err := c.chat.CreateThread(ctx, topic, participantIDs)
	if err != nil {
		return nil, c.store.TeeErrorToState("ChatClient.createThread", err)
	}
	c.store.SetChatThread(&state.ChatThread{ID: inner.ID(), Topic: inner.Topic()})
	return &ChatThreadClient{inner: inner, client: c, threadID: inner.ID()}, nil
}

// ChatThread returns a wrapper for an existing thread.
func (c *Client) ChatThread(threadID string) (*ChatThreadClient, error) {
	if c.chat == nil {
		return nil, ErrNoChatClient
	}
	inner, err := c.chat.Thread(threadID)
	if err != nil {
		return nil, c.store.TeeErrorToState("ChatClient.getThread", err)
	}
	return &ChatThreadClient{inner: inner, client: c, threadID: threadID}, nil
}

// SendMessage sends a message and, on success, records the local copy so the
// sender's own message shows up without a server round trip.
func (t *ChatThreadClient) SendMessage(ctx context.Context, content string) (string, error) {
	messageID, err := t.inner.SendMessage(ctx, content)
	if err != nil {
		return "", t.client.store.TeeErrorToState("ChatThread.sendMessage", err)
	}
	snap := t.client.store.State()
	t.client.store.SetChatMessage(t.threadID, calling.ChatMessage{
		ID:                messageID,
		SenderID:          snap.UserID,
		SenderDisplayName: snap.DisplayName,
		Content:           content,
		CreatedOn:         time.Now(),
	})
	return messageID, nil
}

// SendTypingNotification reports local typing to the thread.
func (t *ChatThreadClient) SendTypingNotification(ctx context.Context) error {
	return t.client.store.TeeErrorToState("ChatThread.sendTypingNotification", t.inner.SendTypingNotification(ctx))
}

// SendReadReceipt reports that the local user has read up to a message.
func (t *ChatThreadClient) SendReadReceipt(ctx context.Context, messageID string) error {
	return t.client.store.TeeErrorToState("ChatThread.sendReadReceipt", t.inner.SendReadReceipt(ctx, messageID))
}

// FetchMessages loads the thread history into the snapshot.
func (t *ChatThreadClient) FetchMessages(ctx context.Context) ([]calling.ChatMessage, error) {
	msgs, err := t.inner.ListMessages(ctx)
	if err != nil {
		return nil, t.client.store.TeeErrorToState("ChatThread.listMessages", err)
	}
	for _, msg := range msgs {
		t.client.store.SetChatMessage(t.threadID, msg)
	}
	return msgs, nil
}

// FetchParticipants loads the thread roster into the snapshot.
func (t *ChatThreadClient) FetchParticipants(ctx context.Context) ([]calling.ChatParticipant, error) {
	ps, err := t.inner.ListParticipants(ctx)
	if err != nil {
		return nil, t.client.store.TeeErrorToState("ChatThread.listParticipants", err)
	}
	t.client.store.SetChatParticipantsAdded(t.threadID, ps)
	return ps, nil
}

// chatSubscriber mirrors inbound chat events into the store.
type chatSubscriber struct {
	store *state.Store
}

func (cs *chatSubscriber) OnMessageReceived(threadID string, msg calling.ChatMessage) {
	cs.store.SetChatMessage(threadID, msg)
}

func (cs *chatSubscriber) OnMessageEdited(threadID string, msg calling.ChatMessage) {
	cs.store.SetChatMessage(threadID, msg)
}

func (cs *chatSubscriber) OnMessageDeleted(threadID, messageID string) {
	cs.store.DeleteChatMessage(threadID, messageID)
}

func (cs *chatSubscriber) OnTypingIndicator(ti calling.TypingIndicator) {
	cs.store.SetTypingIndicator(ti)
}

func (cs *chatSubscriber) OnReadReceipt(rr calling.ReadReceipt) {
	cs.store.SetReadReceipt(rr)
}

func (cs *chatSubscriber) OnParticipantsAdded(threadID string, ps []calling.ChatParticipant) {
	cs.store.SetChatParticipantsAdded(threadID, ps)
}

func (cs *chatSubscriber) OnParticipantsRemoved(threadID string, ids []string) {
	cs.store.SetChatParticipantsRemoved(threadID, ids)
}
