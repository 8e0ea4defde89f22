package stateful

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

// ErrUnknownIncomingCall is returned when accepting or rejecting an incoming
// call that is no longer ringing.
var ErrUnknownIncomingCall = errors.New("stateful: unknown incoming call")

// CallAgent is the stateful wrapper around the SDK call agent. Calls placed
// or received through it are mirrored into the snapshot until they end.
type CallAgent struct {
	inner  calling.CallAgent
	client *Client
	sub    *agentSubscriber
}

func newCallAgent(client *Client, inner calling.CallAgent) *CallAgent {
	sub := &agentSubscriber{
		client:   client,
		calls:    make(map[string]*callSubscriber),
		incoming: make(map[string]calling.IncomingCall),
	}
	sub.unsub = inner.Subscribe(sub)
	// Pick up calls that already existed before we subscribed.
	for _, call := range inner.Calls() {
		sub.ensureCall(call)
	}
	return &CallAgent{inner: inner, client: client, sub: sub}
}

// StartCall places an outgoing call.
func (a *CallAgent) StartCall(ctx context.Context, participantIDs []string) (*Call, error) {
	inner, err := a.inner.StartCall(ctx, participantIDs)
	if err != nil {
		return nil, a.client.store.TeeErrorToState("CallAgent.startCall", err)
	}
	a.sub.ensureCall(inner)
	return &Call{inner: inner, client: a.client}, nil
}

// Join joins a group call.
func (a *CallAgent) Join(ctx context.Context, groupID string) (*Call, error) {
	inner, err := a.inner.Join(ctx, groupID)
	if err != nil {
		return nil, a.client.store.TeeErrorToState("CallAgent.join", err)
	}
	a.sub.ensureCall(inner)
	return &Call{inner: inner, client: a.client}, nil
}

// AcceptCall answers a ringing incoming call by ID.
func (a *CallAgent) AcceptCall(ctx context.Context, incomingCallID string) (*Call, error) {
	ic, ok := a.sub.takeIncoming(incomingCallID)
	if !ok {
		return nil, ErrUnknownIncomingCall
	}
	call, err := ic.Accept(ctx)
	if err != nil {
		return nil, a.client.store.TeeErrorToState("IncomingCall.accept", err)
	}
	a.client.store.RemoveIncomingCall(incomingCallID)
	a.sub.ensureCall(call)
	return &Call{inner: call, client: a.client}, nil
}

// RejectCall declines a ringing incoming call by ID.
func (a *CallAgent) RejectCall(ctx context.Context, incomingCallID string) error {
	ic, ok := a.sub.takeIncoming(incomingCallID)
	if !ok {
		return ErrUnknownIncomingCall
	}
	err := ic.Reject(ctx)
	a.client.store.RemoveIncomingCall(incomingCallID)
	return a.client.store.TeeErrorToState("IncomingCall.reject", err)
}

// Dispose tears down every call subscription and the SDK agent.
func (a *CallAgent) Dispose() error {
	a.sub.teardown()
	return a.client.store.TeeErrorToState("CallAgent.dispose", a.inner.Dispose())
}

// agentSubscriber owns the tree of call adapters for one agent.
type agentSubscriber struct {
	client *Client
	unsub  func()

	mu       sync.Mutex
	calls    map[string]*callSubscriber
	incoming map[string]calling.IncomingCall
}

// ensureCall mirrors a call into the snapshot and wires its events. Safe to
// call twice for the same call (StartCall result plus OnCallAdded event).
func (s *agentSubscriber) ensureCall(call calling.Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	callID := call.ID()
	if _, ok := s.calls[callID]; ok {
		return
	}
	s.client.store.SetCall(convertCall(call))
	s.calls[callID] = newCallSubscriber(s.client, call)
}

func (s *agentSubscriber) takeIncoming(id string) (calling.IncomingCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.incoming[id]
	if ok {
		delete(s.incoming, id)
	}
	return ic, ok
}

func (s *agentSubscriber) teardown() {
	s.unsub()
	s.mu.Lock()
	calls := s.calls
	s.calls = make(map[string]*callSubscriber)
	s.mu.Unlock()
	for _, cs := range calls {
		cs.teardown()
	}
}

func (s *agentSubscriber) OnCallAdded(call calling.Call) {
	s.ensureCall(call)
}

func (s *agentSubscriber) OnCallRemoved(call calling.Call) {
	callID := call.ID()
	s.mu.Lock()
	cs, ok := s.calls[callID]
	delete(s.calls, callID)
	s.mu.Unlock()
	if ok {
		cs.teardown()
	}
	s.client.store.SetCallEnded(callID)
}

func (s *agentSubscriber) OnIncomingCall(ic calling.IncomingCall) {
	s.mu.Lock()
	s.incoming[ic.ID()] = ic
	s.mu.Unlock()
	s.client.store.SetIncomingCall(&state.IncomingCall{
		ID:                ic.ID(),
		CallerID:          ic.CallerID(),
		CallerDisplayName: ic.CallerDisplayName(),
		ReceivedOn:        time.Now(),
	})
}
