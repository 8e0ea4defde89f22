package state

import (
	"maps"
	"slices"
	"time"

	"github.com/bbielsa/callsync/internal/calling"
)

// typingIndicatorValidity is how long a typing indicator stays in the
// snapshot before being pruned.
const typingIndicatorValidity = 8 * time.Second

// ChatThread mirrors one chat conversation.
type ChatThread struct {
	ID           string
	Topic        string
	Messages     map[string]calling.ChatMessage
	Participants map[string]calling.ChatParticipant

	// TypingIndicators holds recent indicators, pruned on every chat
	// mutation; ReadReceipts holds the latest receipt per sender.
	TypingIndicators []calling.TypingIndicator
	ReadReceipts     []calling.ReadReceipt
}

func (t *ChatThread) clone() *ChatThread {
	next := *t
	next.Messages = maps.Clone(t.Messages)
	next.Participants = maps.Clone(t.Participants)
	next.TypingIndicators = slices.Clone(t.TypingIndicators)
	next.ReadReceipts = slices.Clone(t.ReadReceipts)
	return &next
}

// mutableThread reinstalls a cloned thread into the draft, creating a
// skeleton when the thread is not yet tracked. Chat events can arrive before
// the thread itself is known.
func (s *Snapshot) mutableThread(threadID string) *ChatThread {
	t, ok := s.ChatThreads[threadID]
	if !ok {
		next := &ChatThread{
			ID:           threadID,
			Messages:     make(map[string]calling.ChatMessage),
			Participants: make(map[string]calling.ChatParticipant),
		}
		s.ChatThreads[threadID] = next
		return next
	}
	next := t.clone()
	s.ChatThreads[threadID] = next
	return next
}

func (t *ChatThread) pruneTypingIndicators(now time.Time) {
	live := t.TypingIndicators[:0]
	for _, ti := range t.TypingIndicators {
		if now.Sub(ti.ReceivedOn) < typingIndicatorValidity {
			live = append(live, ti)
		}
	}
	t.TypingIndicators = live
}

// SetChatThread upserts a thread. Ownership of t transfers to the store.
func (s *Store) SetChatThread(t *ChatThread) {
	if t.Messages == nil {
		t.Messages = make(map[string]calling.ChatMessage)
	}
	if t.Participants == nil {
		t.Participants = make(map[string]calling.ChatParticipant)
	}
	s.modify(func(draft *Snapshot) {
		draft.ChatThreads[t.ID] = t
	})
}

// RemoveChatThread drops a thread.
func (s *Store) RemoveChatThread(threadID string) {
	s.modify(func(draft *Snapshot) {
		delete(draft.ChatThreads, threadID)
	})
}

// SetChatMessage upserts a message in a thread, creating the thread when it
// is not yet tracked. A message from a sender also retires that sender's
// typing indicator.
func (s *Store) SetChatMessage(threadID string, msg calling.ChatMessage) {
	s.modify(func(draft *Snapshot) {
		t := draft.mutableThread(threadID)
		t.Messages[msg.ID] = msg
		live := t.TypingIndicators[:0]
		for _, ti := range t.TypingIndicators {
			if ti.SenderID != msg.SenderID {
				live = append(live, ti)
			}
		}
		t.TypingIndicators = live
		t.pruneTypingIndicators(time.Now())
	})
}

// DeleteChatMessage drops a message from a thread.
func (s *Store) DeleteChatMessage(threadID, messageID string) {
	s.modify(func(draft *Snapshot) {
		t, ok := draft.ChatThreads[threadID]
		if !ok {
			return
		}
		next := t.clone()
		delete(next.Messages, messageID)
		draft.ChatThreads[threadID] = next
	})
}

// SetTypingIndicator records a typing indicator and prunes expired ones.
func (s *Store) SetTypingIndicator(ti calling.TypingIndicator) {
	s.modify(func(draft *Snapshot) {
		t := draft.mutableThread(ti.ThreadID)
		t.pruneTypingIndicators(time.Now())
		for i, existing := range t.TypingIndicators {
			if existing.SenderID == ti.SenderID {
				t.TypingIndicators[i] = ti
				return
			}
		}
		t.TypingIndicators = append(t.TypingIndicators, ti)
	})
}

// SetReadReceipt records the latest read receipt for a sender.
func (s *Store) SetReadReceipt(rr calling.ReadReceipt) {
	s.modify(func(draft *Snapshot) {
		t := draft.mutableThread(rr.ThreadID)
		for i, existing := range t.ReadReceipts {
			if existing.SenderID == rr.SenderID {
				t.ReadReceipts[i] = rr
				return
			}
		}
		t.ReadReceipts = append(t.ReadReceipts, rr)
	})
}

// SetChatParticipantsAdded upserts participants on a thread.
func (s *Store) SetChatParticipantsAdded(threadID string, ps []calling.ChatParticipant) {
	s.modify(func(draft *Snapshot) {
		t := draft.mutableThread(threadID)
		for _, p := range ps {
			t.Participants[p.ID] = p
		}
	})
}

// SetChatParticipantsRemoved drops participants from a thread.
func (s *Store) SetChatParticipantsRemoved(threadID string, ids []string) {
	s.modify(func(draft *Snapshot) {
		t, ok := draft.ChatThreads[threadID]
		if !ok {
			return
		}
		next := t.clone()
		for _, id := range ids {
			delete(next.Participants, id)
		}
		draft.ChatThreads[threadID] = next
	})
}
