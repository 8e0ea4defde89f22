package state

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bbielsa/callsync/internal/calling"
)

func newTestCall(id string) *Call {
	return &Call{
		ID:                 id,
		State:              calling.CallStateConnecting,
		RemoteParticipants: make(map[string]*RemoteParticipant),
	}
}

func newTestParticipant(id string) *RemoteParticipant {
	return &RemoteParticipant{
		ID:           id,
		DisplayName:  id,
		State:        calling.ParticipantStateConnected,
		VideoStreams: make(map[int]RemoteVideoStream),
	}
}

func TestStoreNotifiesOncePerMutation(t *testing.T) {
	s := NewStore("user-1", "User One")

	var notified int
	var seen *Snapshot
	s.OnStateChange(func(snap *Snapshot) {
		notified++
		seen = snap
	})

	s.SetCall(newTestCall("call-1"))

	require.Equal(t, 1, notified)
	require.Same(t, s.State(), seen)
	require.Contains(t, s.State().Calls, "call-1")
}

func TestStoreDuplicateHandlerRegisteredOnce(t *testing.T) {
	s := NewStore("user-1", "User One")

	var notified int
	h := func(snap *Snapshot) { notified++ }
	s.OnStateChange(h)
	s.OnStateChange(h)

	s.SetCall(newTestCall("call-1"))

	require.Equal(t, 1, notified)
}

func TestStoreOffStateChange(t *testing.T) {
	s := NewStore("user-1", "User One")

	var notified int
	h := func(snap *Snapshot) { notified++ }
	s.OnStateChange(h)
	s.SetCall(newTestCall("call-1"))
	require.Equal(t, 1, notified)

	s.OffStateChange(h)
	s.SetCallState("call-1", calling.CallStateConnected)
	require.Equal(t, 1, notified)

	// Removing an unregistered handler is a no-op.
	s.OffStateChange(func(snap *Snapshot) {})
}

func TestSnapshotImmutableAfterHandoff(t *testing.T) {
	s := NewStore("user-1", "User One")
	s.SetCall(newTestCall("call-1"))

	before := s.State()
	s.SetCallState("call-1", calling.CallStateConnected)
	after := s.State()

	require.NotSame(t, before, after)
	require.Equal(t, calling.CallStateConnecting, before.Calls["call-1"].State)
	require.Equal(t, calling.CallStateConnected, after.Calls["call-1"].State)
}

func TestSnapshotSharesUntouchedBranches(t *testing.T) {
	s := NewStore("user-1", "User One")
	s.SetCall(newTestCall("call-1"))
	s.SetCall(newTestCall("call-2"))

	before := s.State()
	s.SetCallState("call-1", calling.CallStateConnected)
	after := s.State()

	// The touched call is cloned, the untouched one is shared by pointer.
	require.NotSame(t, before.Calls["call-1"], after.Calls["call-1"])
	require.Same(t, before.Calls["call-2"], after.Calls["call-2"])
}

func TestTeeErrorToState(t *testing.T) {
	s := NewStore("user-1", "User One")

	opErr := errors.New("network down")
	got := s.TeeErrorToState("Call.mute", opErr)
	require.Same(t, opErr, got)

	recorded, ok := s.State().LatestErrors["Call.mute"]
	require.True(t, ok)
	require.Equal(t, "Call.mute", recorded.Operation)
	require.Same(t, opErr, recorded.Err)
	require.False(t, recorded.Timestamp.IsZero())
}

func TestTeeErrorToStateNilPassesThrough(t *testing.T) {
	s := NewStore("user-1", "User One")

	var notified int
	s.OnStateChange(func(snap *Snapshot) { notified++ })

	require.NoError(t, s.TeeErrorToState("Call.mute", nil))
	require.Zero(t, notified)
	require.Empty(t, s.State().LatestErrors)
}

func TestTeeErrorToStateLastWriteWins(t *testing.T) {
	s := NewStore("user-1", "User One")

	s.TeeErrorToState("Call.mute", errors.New("first"))
	second := errors.New("second")
	s.TeeErrorToState("Call.mute", second)

	require.Len(t, s.State().LatestErrors, 1)
	require.Same(t, second, s.State().LatestErrors["Call.mute"].Err)
}

func TestSetCallEndedBoundsHistory(t *testing.T) {
	s := NewStore("user-1", "User One")

	for i := 0; i < maxEndedCalls+2; i++ {
		id := fmt.Sprintf("call-%d", i)
		s.SetCall(newTestCall(id))
		s.SetCallEnded(id)
	}

	snap := s.State()
	require.Empty(t, snap.Calls)
	require.Len(t, snap.CallsEnded, maxEndedCalls)
	// The two oldest entries were trimmed.
	require.Equal(t, "call-2", snap.CallsEnded[0].ID)
	last := snap.CallsEnded[maxEndedCalls-1]
	require.Equal(t, fmt.Sprintf("call-%d", maxEndedCalls+1), last.ID)
	require.Equal(t, calling.CallStateDisconnected, last.State)
	require.False(t, last.EndTime.IsZero())
}

func TestSetRemoteVideoStreamPreservesView(t *testing.T) {
	s := NewStore("user-1", "User One")
	s.SetCall(newTestCall("call-1"))
	s.SetParticipant("call-1", newTestParticipant("peer-1"))

	s.SetRemoteVideoStream("call-1", "peer-1", RemoteVideoStream{ID: 1, IsAvailable: true})
	view := &VideoStreamRendererView{ID: "view-1"}
	s.SetRemoteVideoStreamView("call-1", "peer-1", 1, view)

	// Re-mirroring the stream without a view keeps the committed view.
	s.SetRemoteVideoStream("call-1", "peer-1", RemoteVideoStream{ID: 1, IsAvailable: false})

	rs := s.State().Calls["call-1"].RemoteParticipants["peer-1"].VideoStreams[1]
	require.False(t, rs.IsAvailable)
	require.Same(t, view, rs.View)
}

func TestViewSettersNoOpOnAbsentTargets(t *testing.T) {
	s := NewStore("user-1", "User One")
	s.SetCall(newTestCall("call-1"))

	// None of these targets exist; the setters must not panic or invent
	// entries.
	s.SetRemoteVideoStreamView("call-1", "peer-1", 1, &VideoStreamRendererView{ID: "v"})
	s.SetRemoteVideoStreamView("call-x", "peer-1", 1, nil)
	s.SetLocalVideoStreamView("call-1", &VideoStreamRendererView{ID: "v"})
	s.SetLocalVideoStreamView("call-x", nil)

	snap := s.State()
	require.Empty(t, snap.Calls["call-1"].RemoteParticipants)
	require.Empty(t, snap.Calls["call-1"].LocalVideoStreams)
	require.NotContains(t, snap.Calls, "call-x")
}

func TestSetLocalVideoStreamsCarriesViewsOver(t *testing.T) {
	s := NewStore("user-1", "User One")
	s.SetCall(newTestCall("call-1"))

	cam := calling.VideoDeviceInfo{ID: "cam-1", Name: "Front Camera"}
	s.SetLocalVideoStreams("call-1", []LocalVideoStream{{Source: cam}})
	view := &VideoStreamRendererView{ID: "view-1"}
	s.SetLocalVideoStreamView("call-1", view)

	// Replacing the list with the same source device keeps the view.
	s.SetLocalVideoStreams("call-1", []LocalVideoStream{{Source: cam}})
	require.Same(t, view, s.State().Calls["call-1"].LocalVideoStreams[0].View)

	// A different source device does not inherit it.
	other := calling.VideoDeviceInfo{ID: "cam-2", Name: "Back Camera"}
	s.SetLocalVideoStreams("call-1", []LocalVideoStream{{Source: other}})
	require.Nil(t, s.State().Calls["call-1"].LocalVideoStreams[0].View)
}

func TestUnparentedViews(t *testing.T) {
	s := NewStore("user-1", "User One")

	cam := calling.VideoDeviceInfo{ID: "cam-1", Name: "Front Camera"}
	view := &VideoStreamRendererView{ID: "view-1"}
	s.SetUnparentedView(cam, calling.MediaStreamTypeVideo, view)

	entry, ok := s.State().DeviceManager.UnparentedViews["cam-1"]
	require.True(t, ok)
	require.Same(t, view, entry.View)
	require.Equal(t, cam, entry.Source)

	s.DeleteUnparentedView("cam-1")
	require.Empty(t, s.State().DeviceManager.UnparentedViews)
}

func TestChatMessageRetiresTypingIndicator(t *testing.T) {
	s := NewStore("user-1", "User One")

	now := time.Now()
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-1", ReceivedOn: now})
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-2", ReceivedOn: now})
	require.Len(t, s.State().ChatThreads["t-1"].TypingIndicators, 2)

	s.SetChatMessage("t-1", calling.ChatMessage{ID: "m-1", SenderID: "peer-1", Content: "hi"})

	thread := s.State().ChatThreads["t-1"]
	require.Len(t, thread.Messages, 1)
	require.Len(t, thread.TypingIndicators, 1)
	require.Equal(t, "peer-2", thread.TypingIndicators[0].SenderID)
}

func TestTypingIndicatorUpsertPerSender(t *testing.T) {
	s := NewStore("user-1", "User One")

	first := time.Now()
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-1", ReceivedOn: first})
	second := first.Add(time.Second)
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-1", ReceivedOn: second})

	indicators := s.State().ChatThreads["t-1"].TypingIndicators
	require.Len(t, indicators, 1)
	require.Equal(t, second, indicators[0].ReceivedOn)
}

func TestTypingIndicatorPruned(t *testing.T) {
	s := NewStore("user-1", "User One")

	stale := time.Now().Add(-typingIndicatorValidity - time.Second)
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-1", ReceivedOn: stale})
	s.SetTypingIndicator(calling.TypingIndicator{ThreadID: "t-1", SenderID: "peer-2", ReceivedOn: time.Now()})

	indicators := s.State().ChatThreads["t-1"].TypingIndicators
	require.Len(t, indicators, 1)
	require.Equal(t, "peer-2", indicators[0].SenderID)
}

func TestReadReceiptLatestPerSender(t *testing.T) {
	s := NewStore("user-1", "User One")

	s.SetReadReceipt(calling.ReadReceipt{ThreadID: "t-1", SenderID: "peer-1", MessageID: "m-1"})
	s.SetReadReceipt(calling.ReadReceipt{ThreadID: "t-1", SenderID: "peer-1", MessageID: "m-2"})
	s.SetReadReceipt(calling.ReadReceipt{ThreadID: "t-1", SenderID: "peer-2", MessageID: "m-1"})

	receipts := s.State().ChatThreads["t-1"].ReadReceipts
	require.Len(t, receipts, 2)
	require.Equal(t, "m-2", receipts[0].MessageID)
}
