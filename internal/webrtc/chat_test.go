package webrtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/signal"
)

type recordingChatHandler struct {
	messages []calling.ChatMessage
	edited   []calling.ChatMessage
	deleted  []string
	typing   []calling.TypingIndicator
	receipts []calling.ReadReceipt
}

func (h *recordingChatHandler) OnMessageReceived(threadID string, msg calling.ChatMessage) {
	h.messages = append(h.messages, msg)
}
func (h *recordingChatHandler) OnMessageEdited(threadID string, msg calling.ChatMessage) {
	h.edited = append(h.edited, msg)
}
func (h *recordingChatHandler) OnMessageDeleted(threadID, messageID string) {
	h.deleted = append(h.deleted, messageID)
}
func (h *recordingChatHandler) OnTypingIndicator(ti calling.TypingIndicator) {
	h.typing = append(h.typing, ti)
}
func (h *recordingChatHandler) OnReadReceipt(rr calling.ReadReceipt) {
	h.receipts = append(h.receipts, rr)
}
func (h *recordingChatHandler) OnParticipantsAdded(threadID string, ps []calling.ChatParticipant) {}
func (h *recordingChatHandler) OnParticipantsRemoved(threadID string, ids []string)              {}

func TestChatEventDispatch(t *testing.T) {
	chat := newChatClient(&Client{})
	h := &recordingChatHandler{}
	unsub := chat.Subscribe(h)

	now := time.Now().UnixMilli()
	chat.handleEvent(signal.ChatPayload{
		Kind: "message", ThreadID: "t-1", MessageID: "m-1",
		SenderID: "peer-1", SenderName: "Peer", Content: "hi", Timestamp: now,
	})
	require.Len(t, h.messages, 1)
	require.Equal(t, "hi", h.messages[0].Content)
	require.Equal(t, time.UnixMilli(now), h.messages[0].CreatedOn)

	chat.handleEvent(signal.ChatPayload{
		Kind: "edit", ThreadID: "t-1", MessageID: "m-1",
		SenderID: "peer-1", Content: "hi there", Timestamp: now,
	})
	require.Len(t, h.edited, 1)
	require.False(t, h.edited[0].EditedOn.IsZero())

	chat.handleEvent(signal.ChatPayload{Kind: "delete", ThreadID: "t-1", MessageID: "m-1", Timestamp: now})
	require.Equal(t, []string{"m-1"}, h.deleted)

	chat.handleEvent(signal.ChatPayload{Kind: "typing", ThreadID: "t-1", SenderID: "peer-1", Timestamp: now})
	require.Len(t, h.typing, 1)

	chat.handleEvent(signal.ChatPayload{Kind: "read", ThreadID: "t-1", MessageID: "m-1", SenderID: "peer-1", Timestamp: now})
	require.Len(t, h.receipts, 1)

	// After unsubscribe no further events arrive.
	unsub()
	chat.handleEvent(signal.ChatPayload{Kind: "message", ThreadID: "t-1", MessageID: "m-2", Timestamp: now})
	require.Len(t, h.messages, 1)
}

func TestChatThreadHandles(t *testing.T) {
	chat := newChatClient(&Client{})

	created, err := chat.CreateThread(context.Background(), "standup", nil)
	require.NoError(t, err)
	require.Equal(t, "standup", created.Topic())

	same, err := chat.Thread(created.ID())
	require.NoError(t, err)
	require.Equal(t, created.ID(), same.ID())

	// Unknown IDs get a handle created on demand; inbound events may name a
	// thread before any local operation does.
	inbound, err := chat.Thread("t-remote")
	require.NoError(t, err)
	require.Equal(t, "t-remote", inbound.ID())
}

func TestChatSendRequiresConnection(t *testing.T) {
	chat := newChatClient(&Client{})
	thread, err := chat.CreateThread(context.Background(), "standup", nil)
	require.NoError(t, err)

	_, err = thread.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	require.Error(t, thread.SendTypingNotification(context.Background()))
	require.Error(t, thread.SendReadReceipt(context.Background(), "m-1"))
}
