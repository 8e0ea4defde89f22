package webrtc

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/signal"
)

// Agent places outgoing calls and surfaces incoming ones. Incoming offers
// from unknown peers become IncomingCall objects; offers from peers already
// in a call are treated as renegotiation.
type Agent struct {
	client      *Client
	signal      *signal.Client
	displayName string

	subs subscribers[calling.AgentHandler]

	mu       sync.Mutex
	calls    map[string]*Call // call ID -> call
	byPeer   map[string]*Call // remote signaling client ID -> call
	pending  *Call            // group call waiting for a peer to join
	incoming map[string]*incomingCall
}

func newAgent(c *Client, sig *signal.Client, displayName string) *Agent {
	return &Agent{
		client:      c,
		signal:      sig,
		displayName: displayName,
		calls:       make(map[string]*Call),
		byPeer:      make(map[string]*Call),
		incoming:    make(map[string]*incomingCall),
	}
}

// StartCall places a direct call to one remote participant.
func (a *Agent) StartCall(ctx context.Context, participantIDs []string) (calling.Call, error) {
	if len(participantIDs) != 1 {
		return nil, errors.New("webrtc: direct calls support exactly one remote participant")
	}

	call, err := a.newCall(participantIDs[0])
	if err != nil {
		return nil, err
	}
	if err := call.sendOffer(); err != nil {
		call.close()
		return nil, err
	}

	a.register(call)
	return call, nil
}

// Join announces presence in a signaling group. The call connects once a peer
// joins the group; the joining side sends the offer.
func (a *Agent) Join(ctx context.Context, groupID string) (calling.Call, error) {
	call, err := a.newCall("")
	if err != nil {
		return nil, err
	}
	call.groupID = groupID

	a.mu.Lock()
	a.pending = call
	a.mu.Unlock()

	a.signal.SendJoin(groupID)
	a.register(call)
	return call, nil
}

// Calls returns the currently tracked calls.
func (a *Agent) Calls() []calling.Call {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]calling.Call, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, c)
	}
	return out
}

// Subscribe registers a handler for call lifecycle events.
func (a *Agent) Subscribe(h calling.AgentHandler) func() {
	return a.subs.add(h)
}

// Dispose hangs up every tracked call.
func (a *Agent) Dispose() error {
	a.mu.Lock()
	calls := make([]*Call, 0, len(a.calls))
	for _, c := range a.calls {
		calls = append(calls, c)
	}
	a.pending = nil
	a.mu.Unlock()

	for _, c := range calls {
		c.HangUp(context.Background())
	}
	return nil
}

func (a *Agent) register(call *Call) {
	a.mu.Lock()
	a.calls[call.id] = call
	if peer := call.peer(); peer != "" {
		a.byPeer[peer] = call
	}
	a.mu.Unlock()

	a.subs.each(func(h calling.AgentHandler) { h.OnCallAdded(call) })
}

func (a *Agent) removeCall(call *Call) {
	a.mu.Lock()
	if _, ok := a.calls[call.id]; !ok {
		a.mu.Unlock()
		return
	}
	delete(a.calls, call.id)
	if peer := call.peer(); peer != "" {
		delete(a.byPeer, peer)
	}
	if a.pending == call {
		a.pending = nil
	}
	a.mu.Unlock()

	a.subs.each(func(h calling.AgentHandler) { h.OnCallRemoved(call) })
}

func (a *Agent) callByPeer(clientID string) *Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byPeer[clientID]
}

func (a *Agent) handlePeerJoined(clientID string) {
	a.mu.Lock()
	call := a.pending
	if call != nil {
		a.pending = nil
		a.byPeer[clientID] = call
	}
	a.mu.Unlock()

	if call == nil {
		return
	}
	call.attachPeer(clientID)
}

func (a *Agent) handlePeerLeft(clientID string) {
	if call := a.callByPeer(clientID); call != nil {
		call.remoteLeft()
	}
}

func (a *Agent) handleOffer(senderID string, sdp signal.SDPPayload) {
	if call := a.callByPeer(senderID); call != nil {
		if err := call.handleRemoteOffer(sdp); err != nil {
			log.Printf("[webrtc] renegotiation with %s failed: %v", senderID, err)
		}
		return
	}

	ic := &incomingCall{
		agent:    a,
		id:       uuid.NewString(),
		callerID: senderID,
		offer:    sdp,
	}
	a.mu.Lock()
	a.incoming[ic.id] = ic
	a.mu.Unlock()

	log.Printf("[webrtc] incoming call from %s", senderID)
	a.subs.each(func(h calling.AgentHandler) { h.OnIncomingCall(ic) })
}

func (a *Agent) handleAnswer(senderID string, sdp signal.SDPPayload) {
	call := a.callByPeer(senderID)
	if call == nil {
		log.Printf("[webrtc] answer from unknown peer %s", senderID)
		return
	}
	if err := call.handleRemoteAnswer(sdp); err != nil {
		log.Printf("[webrtc] apply answer from %s: %v", senderID, err)
	}
}

func (a *Agent) handleCandidate(senderID string, candidate signal.ICECandidatePayload) {
	call := a.callByPeer(senderID)
	if call == nil {
		log.Printf("[webrtc] ICE candidate from unknown peer %s", senderID)
		return
	}
	// Candidate addition blocks until the remote description is set.
	go call.addRemoteCandidate(candidate)
}

func (a *Agent) dropIncoming(id string) {
	a.mu.Lock()
	delete(a.incoming, id)
	a.mu.Unlock()
}

// incomingCall is a ringing call built from an unsolicited SDP offer.
type incomingCall struct {
	agent    *Agent
	id       string
	callerID string
	offer    signal.SDPPayload

	mu      sync.Mutex
	settled bool
}

func (ic *incomingCall) ID() string                { return ic.id }
func (ic *incomingCall) CallerID() string          { return ic.callerID }
func (ic *incomingCall) CallerDisplayName() string { return ic.callerID }

func (ic *incomingCall) settle() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.settled {
		return false
	}
	ic.settled = true
	return true
}

// Accept answers the offer and returns the connected call.
func (ic *incomingCall) Accept(ctx context.Context) (calling.Call, error) {
	if !ic.settle() {
		return nil, errors.New("webrtc: incoming call already settled")
	}
	ic.agent.dropIncoming(ic.id)

	call, err := ic.agent.newCall(ic.callerID)
	if err != nil {
		return nil, err
	}
	if err := call.handleRemoteOffer(ic.offer); err != nil {
		call.close()
		return nil, err
	}

	ic.agent.register(call)
	return call, nil
}

// Reject discards the offer. The remote side observes the rejection as a
// failed peer connection.
func (ic *incomingCall) Reject(ctx context.Context) error {
	if !ic.settle() {
		return errors.New("webrtc: incoming call already settled")
	}
	ic.agent.dropIncoming(ic.id)
	return nil
}
