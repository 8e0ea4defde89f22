package webrtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/signal"
)

// Call is one peer connection to a single remote participant.
type Call struct {
	id    string
	agent *Agent
	pc    *pion.PeerConnection

	subs subscribers[calling.CallHandler]

	remoteDescSet chan struct{}
	descOnce      sync.Once

	mu           sync.Mutex
	peerID       string
	groupID      string
	state        calling.CallState
	muted        bool
	participant  *remoteParticipant
	localStreams []calling.LocalVideoStream
	nextStreamID int
}

// newCall builds the peer connection with audio sendrecv and video recvonly
// transceivers. peerID may be empty for a group call that has no peer yet.
func (a *Agent) newCall(peerID string) (*Call, error) {
	pc, err := a.client.api.NewPeerConnection(a.client.cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Call{
		id:            uuid.NewString(),
		agent:         a,
		pc:            pc,
		peerID:        peerID,
		state:         calling.CallStateConnecting,
		remoteDescSet: make(chan struct{}),
		nextStreamID:  1,
	}
	if peerID != "" {
		c.participant = newRemoteParticipant(peerID)
	}

	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnTrack(c.handleTrack)
	pc.OnICECandidate(c.handleLocalCandidate)
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[webrtc] ICE connection state: %s", state.String())
	})
	pc.OnConnectionStateChange(c.handleConnectionState)

	return c, nil
}

// ID returns the call's locally assigned identifier.
func (c *Call) ID() string { return c.id }

// State returns the current call state.
func (c *Call) State() calling.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CallerID returns the remote peer's signaling ID.
func (c *Call) CallerID() string { return c.peer() }

// IsMuted reports whether the local side is muted.
func (c *Call) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// IsRecordingActive is always false; the relay has no recording feature.
func (c *Call) IsRecordingActive() bool { return false }

// IsTranscriptionActive is always false; the relay has no transcription
// feature.
func (c *Call) IsTranscriptionActive() bool { return false }

// RemoteParticipants returns the remote party, if connected.
func (c *Call) RemoteParticipants() []calling.RemoteParticipant {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.participant == nil {
		return nil
	}
	return []calling.RemoteParticipant{c.participant}
}

// LocalVideoStreams returns the local streams started on this call.
func (c *Call) LocalVideoStreams() []calling.LocalVideoStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]calling.LocalVideoStream, len(c.localStreams))
	copy(out, c.localStreams)
	return out
}

// Mute marks the local side muted. The audio transceiver carries no capture
// track in this SDK, so muting is pure signaling state.
func (c *Call) Mute(ctx context.Context) error {
	return c.setMuted(true)
}

// Unmute clears the local mute flag.
func (c *Call) Unmute(ctx context.Context) error {
	return c.setMuted(false)
}

func (c *Call) setMuted(muted bool) error {
	c.mu.Lock()
	if c.muted == muted {
		c.mu.Unlock()
		return nil
	}
	c.muted = muted
	c.mu.Unlock()

	c.subs.each(func(h calling.CallHandler) { h.OnIsMutedChanged(muted) })
	return nil
}

// StartVideo attaches a local stream to the call.
func (c *Call) StartVideo(ctx context.Context, s calling.LocalVideoStream) error {
	c.mu.Lock()
	for _, existing := range c.localStreams {
		if existing == s {
			c.mu.Unlock()
			return errors.New("webrtc: stream already started")
		}
	}
	c.localStreams = append(c.localStreams, s)
	c.mu.Unlock()

	c.subs.each(func(h calling.CallHandler) {
		h.OnLocalVideoStreamsUpdated([]calling.LocalVideoStream{s}, nil)
	})
	return nil
}

// StopVideo detaches a local stream from the call.
func (c *Call) StopVideo(ctx context.Context, s calling.LocalVideoStream) error {
	c.mu.Lock()
	idx := -1
	for i, existing := range c.localStreams {
		if existing == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return errors.New("webrtc: stream not started on this call")
	}
	c.localStreams = append(c.localStreams[:idx], c.localStreams[idx+1:]...)
	c.mu.Unlock()

	c.subs.each(func(h calling.CallHandler) {
		h.OnLocalVideoStreamsUpdated(nil, []calling.LocalVideoStream{s})
	})
	return nil
}

// HangUp closes the peer connection and marks the call disconnected.
func (c *Call) HangUp(ctx context.Context) error {
	c.setState(calling.CallStateDisconnecting)
	if err := c.pc.Close(); err != nil {
		log.Printf("[webrtc] close peer connection: %v", err)
	}
	c.setState(calling.CallStateDisconnected)
	return nil
}

// Subscribe registers a handler for per-call events.
func (c *Call) Subscribe(h calling.CallHandler) func() {
	return c.subs.add(h)
}

func (c *Call) peer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// close tears down the peer connection without state reporting. Used on setup
// error paths before the call is registered.
func (c *Call) close() {
	c.pc.Close()
}

// sendOffer creates an offer, installs it locally, and relays it to the peer.
func (c *Call) sendOffer() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	c.agent.signal.SendSDPOffer(c.peer(), offer.SDP)
	return nil
}

// handleRemoteOffer applies the peer's offer and relays back an answer.
func (c *Call) handleRemoteOffer(sdp signal.SDPPayload) error {
	desc := pion.SessionDescription{
		Type: pion.SDPTypeOffer,
		SDP:  sdp.SDP,
	}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	c.descOnce.Do(func() { close(c.remoteDescSet) })

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	c.agent.signal.SendSDPAnswer(c.peer(), answer.SDP)
	return nil
}

// handleRemoteAnswer applies the peer's answer and unblocks remote ICE
// candidate addition.
func (c *Call) handleRemoteAnswer(sdp signal.SDPPayload) error {
	desc := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  sdp.SDP,
	}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	c.descOnce.Do(func() { close(c.remoteDescSet) })
	return nil
}

// addRemoteCandidate waits for the remote description, then adds the
// candidate.
func (c *Call) addRemoteCandidate(candidate signal.ICECandidatePayload) {
	<-c.remoteDescSet

	sdpMLineIndex := uint16(candidate.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        &candidate.SDPMid,
		SDPMLineIndex: &sdpMLineIndex,
	}
	if err := c.pc.AddICECandidate(init); err != nil {
		log.Printf("[webrtc] add ice candidate: %v", err)
	}
}

// attachPeer binds a group call to the peer that joined and sends the offer.
func (c *Call) attachPeer(clientID string) {
	c.mu.Lock()
	c.peerID = clientID
	p := newRemoteParticipant(clientID)
	c.participant = p
	c.mu.Unlock()

	if err := c.sendOffer(); err != nil {
		log.Printf("[webrtc] offer to %s failed: %v", clientID, err)
	}
	c.subs.each(func(h calling.CallHandler) {
		h.OnRemoteParticipantsUpdated([]calling.RemoteParticipant{p}, nil)
	})
}

// remoteLeft removes the participant and tears the call down after the peer
// left the signaling group.
func (c *Call) remoteLeft() {
	c.mu.Lock()
	p := c.participant
	c.participant = nil
	c.mu.Unlock()

	if p != nil {
		p.disconnected()
		c.subs.each(func(h calling.CallHandler) {
			h.OnRemoteParticipantsUpdated(nil, []calling.RemoteParticipant{p})
		})
	}

	c.pc.Close()
	c.setState(calling.CallStateDisconnected)
}

func (c *Call) setState(s calling.CallState) {
	c.mu.Lock()
	if c.state == s || c.state == calling.CallStateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.subs.each(func(h calling.CallHandler) { h.OnStateChanged(s) })

	if s == calling.CallStateDisconnected {
		c.agent.removeCall(c)
	}
}

func (c *Call) handleConnectionState(s pion.PeerConnectionState) {
	log.Printf("[webrtc] peer connection state: %s", s.String())

	switch s {
	case pion.PeerConnectionStateConnecting:
		c.setState(calling.CallStateConnecting)
	case pion.PeerConnectionStateConnected:
		c.setState(calling.CallStateConnected)
	case pion.PeerConnectionStateDisconnected:
		c.setState(calling.CallStateDisconnecting)
	case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
		c.setState(calling.CallStateDisconnected)
	}
}

func (c *Call) handleTrack(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
	codec := track.Codec()
	log.Printf("[webrtc] got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

	if track.Kind() != pion.RTPCodecTypeVideo {
		go drainTrack(track)
		return
	}

	c.mu.Lock()
	id := c.nextStreamID
	c.nextStreamID++
	p := c.participant
	c.mu.Unlock()

	stream := newRemoteStream(id, track)
	if p != nil {
		p.addStream(stream)
	}
}

func (c *Call) handleLocalCandidate(ic *pion.ICECandidate) {
	if ic == nil {
		log.Printf("[webrtc] ICE gathering complete")
		return
	}

	candidate := ic.ToJSON()
	if isLoopback(candidate.Candidate) {
		log.Printf("[webrtc] filtering loopback ICE candidate")
		return
	}

	sdpMid := ""
	if candidate.SDPMid != nil {
		sdpMid = *candidate.SDPMid
	}
	sdpMLineIndex := 0
	if candidate.SDPMLineIndex != nil {
		sdpMLineIndex = int(*candidate.SDPMLineIndex)
	}

	c.agent.signal.SendICECandidate(c.peer(), sdpMid, sdpMLineIndex, candidate.Candidate)
}

func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
