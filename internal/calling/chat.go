package calling

import (
	"context"
	"time"
)

// ChatMessage is one message in a chat thread.
type ChatMessage struct {
	ID                string
	SequenceID        int64
	SenderID          string
	SenderDisplayName string
	Content           string
	CreatedOn         time.Time
	EditedOn          time.Time
	DeletedOn         time.Time
}

// ChatParticipant is a member of a chat thread.
type ChatParticipant struct {
	ID          string
	DisplayName string
}

// TypingIndicator reports that a participant is typing in a thread.
type TypingIndicator struct {
	ThreadID   string
	SenderID   string
	ReceivedOn time.Time
}

// ReadReceipt reports that a participant has read up to a message.
type ReadReceipt struct {
	ThreadID  string
	SenderID  string
	MessageID string
	ReadOn    time.Time
}

// ChatClient is the root chat SDK object.
type ChatClient interface {
	CreateThread(ctx context.Context, topic string, participantIDs []string) (ChatThread, error)
	Thread(threadID string) (ChatThread, error)
	Subscribe(h ChatHandler) (unsubscribe func())
	Dispose() error
}

// ChatThread is one conversation.
type ChatThread interface {
	ID() string
	Topic() string
	SendMessage(ctx context.Context, content string) (messageID string, err error)
	SendTypingNotification(ctx context.Context) error
	SendReadReceipt(ctx context.Context, messageID string) error
	ListMessages(ctx context.Context) ([]ChatMessage, error)
	ListParticipants(ctx context.Context) ([]ChatParticipant, error)
}

// ChatHandler receives chat events across all threads.
type ChatHandler interface {
	OnMessageReceived(threadID string, msg ChatMessage)
	OnMessageEdited(threadID string, msg ChatMessage)
	OnMessageDeleted(threadID, messageID string)
	OnTypingIndicator(ti TypingIndicator)
	OnReadReceipt(rr ReadReceipt)
	OnParticipantsAdded(threadID string, ps []ChatParticipant)
	OnParticipantsRemoved(threadID string, ids []string)
}
