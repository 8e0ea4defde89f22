package stateful

import (
	"context"
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
)

// Call is the stateful wrapper around one SDK call. Mutating operations
// delegate to the SDK and tee failures into the snapshot's error log; the
// resulting state transitions arrive through the event subscriptions.
type Call struct {
	inner  calling.Call
	client *Client
}

// ID returns the SDK call ID.
func (c *Call) ID() string { return c.inner.ID() }

// State returns the SDK call state.
func (c *Call) State() calling.CallState { return c.inner.State() }

// RemoteParticipants returns the live SDK participant handles. View creation
// needs the stream handles these expose; everything else should be read from
// the snapshot.
func (c *Call) RemoteParticipants() []calling.RemoteParticipant {
	return c.inner.RemoteParticipants()
}

// Mute mutes the local microphone.
func (c *Call) Mute(ctx context.Context) error {
	return c.client.store.TeeErrorToState("Call.mute", c.inner.Mute(ctx))
}

// Unmute unmutes the local microphone.
func (c *Call) Unmute(ctx context.Context) error {
	return c.client.store.TeeErrorToState("Call.unmute", c.inner.Unmute(ctx))
}

// StartVideo begins sending a local video stream on the call.
func (c *Call) StartVideo(ctx context.Context, s calling.LocalVideoStream) error {
	return c.client.store.TeeErrorToState("Call.startVideo", c.inner.StartVideo(ctx, s))
}

// StopVideo stops sending a local video stream.
func (c *Call) StopVideo(ctx context.Context, s calling.LocalVideoStream) error {
	return c.client.store.TeeErrorToState("Call.stopVideo", c.inner.StopVideo(ctx, s))
}

// HangUp ends the call.
func (c *Call) HangUp(ctx context.Context) error {
	return c.client.store.TeeErrorToState("Call.hangUp", c.inner.HangUp(ctx))
}

// callSubscriber mirrors one call's events into the store and owns the
// participant adapters beneath it.
type callSubscriber struct {
	client *Client
	call   calling.Call
	callID string
	unsub  func()

	mu           sync.Mutex
	participants map[string]*participantSubscriber
}

func newCallSubscriber(client *Client, call calling.Call) *callSubscriber {
	cs := &callSubscriber{
		client:       client,
		call:         call,
		callID:       call.ID(),
		participants: make(map[string]*participantSubscriber),
	}
	cs.unsub = call.Subscribe(cs)
	for _, p := range call.RemoteParticipants() {
		cs.addParticipant(p)
	}
	for _, s := range call.LocalVideoStreams() {
		client.views.TrackLocalStream(cs.callID, s)
	}
	return cs
}

func (cs *callSubscriber) addParticipant(p calling.RemoteParticipant) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.participants[p.ID()]; ok {
		return
	}
	cs.participants[p.ID()] = newParticipantSubscriber(cs.client, cs.callID, p)
}

func (cs *callSubscriber) removeParticipant(participantID string) {
	cs.mu.Lock()
	ps, ok := cs.participants[participantID]
	delete(cs.participants, participantID)
	cs.mu.Unlock()
	if ok {
		ps.teardown()
	}
	cs.client.views.ReleaseParticipant(cs.callID, participantID)
	cs.client.store.RemoveParticipant(cs.callID, participantID)
}

// teardown unwires every subscription and releases every view the call
// owned.
func (cs *callSubscriber) teardown() {
	cs.unsub()
	cs.mu.Lock()
	participants := cs.participants
	cs.participants = make(map[string]*participantSubscriber)
	cs.mu.Unlock()
	for _, ps := range participants {
		ps.teardown()
	}
	cs.client.views.ReleaseCall(cs.callID)
}

func (cs *callSubscriber) OnStateChanged(st calling.CallState) {
	cs.client.store.SetCallState(cs.callID, st)
}

func (cs *callSubscriber) OnIsMutedChanged(muted bool) {
	cs.client.store.SetCallIsMuted(cs.callID, muted)
}

func (cs *callSubscriber) OnRecordingChanged(active bool) {
	cs.client.store.SetCallRecordingActive(cs.callID, active)
}

func (cs *callSubscriber) OnTranscriptionChanged(active bool) {
	cs.client.store.SetCallTranscriptionActive(cs.callID, active)
}

func (cs *callSubscriber) OnRemoteParticipantsUpdated(added, removed []calling.RemoteParticipant) {
	for _, p := range added {
		cs.client.store.SetParticipant(cs.callID, convertParticipant(p))
		cs.addParticipant(p)
	}
	for _, p := range removed {
		cs.removeParticipant(p.ID())
	}
}

func (cs *callSubscriber) OnLocalVideoStreamsUpdated(added, removed []calling.LocalVideoStream) {
	for _, s := range added {
		cs.client.views.TrackLocalStream(cs.callID, s)
	}
	for range removed {
		cs.client.views.UntrackLocalStream(cs.callID)
	}
	cs.client.store.SetLocalVideoStreams(cs.callID, convertLocalStreams(cs.call.LocalVideoStreams()))
}
