// Package state holds the authoritative, copy-on-write snapshot of call and
// chat state, and the Store that owns it.
//
// A Snapshot handed to a subscriber is never mutated afterwards: every
// mutation clones the snapshot and the containers along the touched path,
// reusing untouched subtrees by pointer, then atomically replaces the current
// snapshot. Subscribers can therefore compare branch pointers across
// snapshots to detect what changed.
package state

import (
	"maps"
	"slices"
	"time"

	"github.com/bbielsa/callsync/internal/calling"
)

// maxEndedCalls bounds the history of ended calls kept in the snapshot.
const maxEndedCalls = 10

// Snapshot is the root of the observable state tree.
type Snapshot struct {
	UserID      string
	DisplayName string

	Calls         map[string]*Call
	CallsEnded    []*Call
	IncomingCalls map[string]*IncomingCall

	DeviceManager DeviceManager

	ChatThreads map[string]*ChatThread

	// LatestErrors keeps the most recent failure per operation name.
	LatestErrors map[string]OperationError
}

// Call mirrors one SDK call.
type Call struct {
	ID                    string
	State                 calling.CallState
	CallerID              string
	IsMuted               bool
	IsRecordingActive     bool
	IsTranscriptionActive bool
	StartTime             time.Time
	EndTime               time.Time

	LocalVideoStreams  []LocalVideoStream
	RemoteParticipants map[string]*RemoteParticipant
}

// RemoteParticipant mirrors one remote party of a call.
type RemoteParticipant struct {
	ID           string
	DisplayName  string
	State        calling.ParticipantState
	IsMuted      bool
	IsSpeaking   bool
	VideoStreams map[int]RemoteVideoStream
}

// RemoteVideoStream mirrors one remote video stream, with the rendered view
// attached once the view lifecycle commits it.
type RemoteVideoStream struct {
	ID          int
	Type        calling.MediaStreamType
	IsAvailable bool
	View        *VideoStreamRendererView
}

// LocalVideoStream mirrors a local capture stream.
type LocalVideoStream struct {
	Source calling.VideoDeviceInfo
	Type   calling.MediaStreamType
	View   *VideoStreamRendererView
}

// VideoStreamRendererView is the state-side description of a rendered view.
type VideoStreamRendererView struct {
	ID          string
	ScalingMode calling.ScalingMode
	IsMirrored  bool
}

// IncomingCall mirrors a ringing, unanswered call.
type IncomingCall struct {
	ID                string
	CallerID          string
	CallerDisplayName string
	ReceivedOn        time.Time
}

// DeviceManager mirrors the SDK device manager.
type DeviceManager struct {
	Cameras            []calling.VideoDeviceInfo
	Microphones        []calling.AudioDeviceInfo
	Speakers           []calling.AudioDeviceInfo
	SelectedMicrophone *calling.AudioDeviceInfo
	SelectedSpeaker    *calling.AudioDeviceInfo
	DeviceAccess       calling.DeviceAccess

	// UnparentedViews holds rendered views for local streams that are not
	// attached to any call, keyed by source device ID.
	UnparentedViews map[string]LocalVideoStream
}

// OperationError is one recorded failure of an intercepted SDK operation.
type OperationError struct {
	Operation string
	Err       error
	Timestamp time.Time
}

// clone copies the snapshot and its top-level containers. Entries are shared
// with the original until a mutator clones the branch it touches.
func (s *Snapshot) clone() *Snapshot {
	next := *s
	next.Calls = maps.Clone(s.Calls)
	next.CallsEnded = slices.Clone(s.CallsEnded)
	next.IncomingCalls = maps.Clone(s.IncomingCalls)
	next.ChatThreads = maps.Clone(s.ChatThreads)
	next.LatestErrors = maps.Clone(s.LatestErrors)
	next.DeviceManager.UnparentedViews = maps.Clone(s.DeviceManager.UnparentedViews)
	return &next
}

func (c *Call) clone() *Call {
	next := *c
	next.LocalVideoStreams = slices.Clone(c.LocalVideoStreams)
	next.RemoteParticipants = maps.Clone(c.RemoteParticipants)
	return &next
}

func (p *RemoteParticipant) clone() *RemoteParticipant {
	next := *p
	next.VideoStreams = maps.Clone(p.VideoStreams)
	return &next
}

// mutableCall reinstalls a cloned call into the draft and returns it, or nil
// when the call is no longer tracked.
func (s *Snapshot) mutableCall(callID string) *Call {
	c, ok := s.Calls[callID]
	if !ok {
		return nil
	}
	next := c.clone()
	s.Calls[callID] = next
	return next
}

// mutableParticipant clones the call and participant along the path. Returns
// nil when either is no longer tracked.
func (s *Snapshot) mutableParticipant(callID, participantID string) *RemoteParticipant {
	c := s.mutableCall(callID)
	if c == nil {
		return nil
	}
	p, ok := c.RemoteParticipants[participantID]
	if !ok {
		return nil
	}
	next := p.clone()
	c.RemoteParticipants[participantID] = next
	return next
}
