package webrtc

import (
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
)

// remoteParticipant is the remote party of a call. The signaling relay
// carries no roster metadata, so the display name defaults to the peer's
// signaling ID.
type remoteParticipant struct {
	id string

	subs subscribers[calling.ParticipantHandler]

	mu          sync.Mutex
	displayName string
	state       calling.ParticipantState
	muted       bool
	speaking    bool
	streams     []*remoteStream
}

func newRemoteParticipant(id string) *remoteParticipant {
	return &remoteParticipant{
		id:          id,
		displayName: id,
		state:       calling.ParticipantStateConnected,
	}
}

func (p *remoteParticipant) ID() string { return p.id }

func (p *remoteParticipant) DisplayName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayName
}

func (p *remoteParticipant) State() calling.ParticipantState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *remoteParticipant) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *remoteParticipant) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

func (p *remoteParticipant) VideoStreams() []calling.RemoteVideoStream {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]calling.RemoteVideoStream, 0, len(p.streams))
	for _, s := range p.streams {
		out = append(out, s)
	}
	return out
}

func (p *remoteParticipant) Subscribe(h calling.ParticipantHandler) func() {
	return p.subs.add(h)
}

func (p *remoteParticipant) addStream(s *remoteStream) {
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	p.subs.each(func(h calling.ParticipantHandler) {
		h.OnVideoStreamsUpdated([]calling.RemoteVideoStream{s}, nil)
	})
}

func (p *remoteParticipant) disconnected() {
	p.mu.Lock()
	if p.state == calling.ParticipantStateDisconnected {
		p.mu.Unlock()
		return
	}
	p.state = calling.ParticipantStateDisconnected
	streams := p.streams
	p.streams = nil
	p.mu.Unlock()

	for _, s := range streams {
		s.setAvailable(false)
	}
	if len(streams) > 0 {
		removed := make([]calling.RemoteVideoStream, 0, len(streams))
		for _, s := range streams {
			removed = append(removed, s)
		}
		p.subs.each(func(h calling.ParticipantHandler) {
			h.OnVideoStreamsUpdated(nil, removed)
		})
	}
	p.subs.each(func(h calling.ParticipantHandler) {
		h.OnStateChanged(calling.ParticipantStateDisconnected)
	})
}
