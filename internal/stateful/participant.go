package stateful

import (
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
)

// participantSubscriber mirrors one remote participant's events and tracks
// that participant's video streams in the render registry.
type participantSubscriber struct {
	client        *Client
	callID        string
	participant   calling.RemoteParticipant
	participantID string
	unsub         func()

	mu      sync.Mutex
	streams map[int]func() // stream ID -> unsubscribe
}

func newParticipantSubscriber(client *Client, callID string, p calling.RemoteParticipant) *participantSubscriber {
	ps := &participantSubscriber{
		client:        client,
		callID:        callID,
		participant:   p,
		participantID: p.ID(),
		streams:       make(map[int]func()),
	}
	ps.unsub = p.Subscribe(ps)
	for _, s := range p.VideoStreams() {
		ps.addStream(s)
	}
	return ps
}

func (ps *participantSubscriber) addStream(s calling.RemoteVideoStream) {
	ps.mu.Lock()
	if _, ok := ps.streams[s.ID()]; ok {
		ps.mu.Unlock()
		return
	}
	sub := &streamSubscriber{
		client:        ps.client,
		callID:        ps.callID,
		participantID: ps.participantID,
		stream:        s,
	}
	ps.streams[s.ID()] = s.Subscribe(sub)
	ps.mu.Unlock()

	ps.client.views.TrackRemoteStream(ps.callID, ps.participantID, s)
	ps.client.store.SetRemoteVideoStream(ps.callID, ps.participantID, convertRemoteStream(s))
}

func (ps *participantSubscriber) removeStream(streamID int) {
	ps.mu.Lock()
	unsub, ok := ps.streams[streamID]
	delete(ps.streams, streamID)
	ps.mu.Unlock()
	if ok {
		unsub()
	}
	ps.client.views.UntrackRemoteStream(ps.callID, ps.participantID, streamID)
	ps.client.store.RemoveRemoteVideoStream(ps.callID, ps.participantID, streamID)
}

func (ps *participantSubscriber) teardown() {
	ps.unsub()
	ps.mu.Lock()
	streams := ps.streams
	ps.streams = make(map[int]func())
	ps.mu.Unlock()
	for _, unsub := range streams {
		unsub()
	}
}

func (ps *participantSubscriber) OnStateChanged(st calling.ParticipantState) {
	ps.client.store.SetParticipantState(ps.callID, ps.participantID, st)
}

func (ps *participantSubscriber) OnIsMutedChanged(muted bool) {
	ps.client.store.SetParticipantIsMuted(ps.callID, ps.participantID, muted)
}

func (ps *participantSubscriber) OnIsSpeakingChanged(speaking bool) {
	ps.client.store.SetParticipantIsSpeaking(ps.callID, ps.participantID, speaking)
}

func (ps *participantSubscriber) OnDisplayNameChanged(name string) {
	ps.client.store.SetParticipantDisplayName(ps.callID, ps.participantID, name)
}

func (ps *participantSubscriber) OnVideoStreamsUpdated(added, removed []calling.RemoteVideoStream) {
	for _, s := range added {
		ps.addStream(s)
	}
	for _, s := range removed {
		ps.removeStream(s.ID())
	}
}

// streamSubscriber mirrors availability changes of one remote stream, and
// refreshes the SDK stream reference recorded in the registry so later
// renders bind the current object.
type streamSubscriber struct {
	client        *Client
	callID        string
	participantID string
	stream        calling.RemoteVideoStream
}

func (ss *streamSubscriber) OnAvailabilityChanged(available bool) {
	ss.client.views.TrackRemoteStream(ss.callID, ss.participantID, ss.stream)
	ss.client.store.SetRemoteVideoStreamAvailability(ss.callID, ss.participantID, ss.stream.ID(), available)
}
