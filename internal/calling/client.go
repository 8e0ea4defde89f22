// Package calling declares the capability interfaces this library requires
// from an external calling/chat SDK. The SDK is an opaque collaborator: these
// interfaces name the subset of its operations and events the stateful
// wrapper depends on, and concrete SDKs (see internal/webrtc) implement them.
//
// Every observable object exposes Subscribe, which registers a handler and
// returns an unsubscribe function so event wiring can be torn down
// deterministically when the underlying object is removed.
package calling

import "context"

// Client is the root SDK object.
type Client interface {
	// CreateCallAgent provisions the object that places and receives calls.
	CreateCallAgent(ctx context.Context, displayName string) (CallAgent, error)

	// DeviceManager returns the SDK's device manager. The device manager is
	// documented as a singleton: the SDK must return the same instance on
	// every call for the lifetime of the client.
	DeviceManager(ctx context.Context) (DeviceManager, error)

	// Renderers returns the factory for video stream renderers.
	Renderers() RendererProvider

	Dispose() error
}

// CallAgent places outgoing calls and surfaces incoming ones.
type CallAgent interface {
	StartCall(ctx context.Context, participantIDs []string) (Call, error)
	Join(ctx context.Context, groupID string) (Call, error)
	Calls() []Call
	Subscribe(h AgentHandler) (unsubscribe func())
	Dispose() error
}

// AgentHandler receives call lifecycle events from a CallAgent.
type AgentHandler interface {
	OnCallAdded(c Call)
	OnCallRemoved(c Call)
	OnIncomingCall(c IncomingCall)
}

// IncomingCall is a ringing call that has not been answered yet.
type IncomingCall interface {
	ID() string
	CallerID() string
	CallerDisplayName() string
	Accept(ctx context.Context) (Call, error)
	Reject(ctx context.Context) error
}

// Call is one active or ended call.
type Call interface {
	ID() string
	State() CallState
	CallerID() string
	IsMuted() bool
	IsRecordingActive() bool
	IsTranscriptionActive() bool
	RemoteParticipants() []RemoteParticipant
	LocalVideoStreams() []LocalVideoStream

	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	StartVideo(ctx context.Context, s LocalVideoStream) error
	StopVideo(ctx context.Context, s LocalVideoStream) error
	HangUp(ctx context.Context) error

	Subscribe(h CallHandler) (unsubscribe func())
}

// CallHandler receives per-call events.
type CallHandler interface {
	OnStateChanged(s CallState)
	OnIsMutedChanged(muted bool)
	OnRecordingChanged(active bool)
	OnTranscriptionChanged(active bool)
	OnRemoteParticipantsUpdated(added, removed []RemoteParticipant)
	OnLocalVideoStreamsUpdated(added, removed []LocalVideoStream)
}

// RemoteParticipant is a remote party in a call.
type RemoteParticipant interface {
	ID() string
	DisplayName() string
	State() ParticipantState
	IsMuted() bool
	IsSpeaking() bool
	VideoStreams() []RemoteVideoStream
	Subscribe(h ParticipantHandler) (unsubscribe func())
}

// ParticipantHandler receives per-participant events.
type ParticipantHandler interface {
	OnStateChanged(s ParticipantState)
	OnIsMutedChanged(muted bool)
	OnIsSpeakingChanged(speaking bool)
	OnDisplayNameChanged(name string)
	OnVideoStreamsUpdated(added, removed []RemoteVideoStream)
}
