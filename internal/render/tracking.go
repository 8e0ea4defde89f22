package render

import "github.com/bbielsa/callsync/internal/calling"

// The interception layer registers and retires streams through these
// methods rather than touching the Registry directly, so every transition
// stays serialized with in-flight view creation.

// TrackRemoteStream registers a remote stream as renderable. Re-tracking an
// existing key refreshes the recorded SDK stream reference without touching
// its render status or renderer.
func (l *Lifecycle) TrackRemoteStream(callID, participantID string, stream calling.RemoteVideoStream) {
	l.lock()
	defer l.unlock()
	if cur, ok := l.registry.Remote(callID, participantID, stream.ID()); ok {
		l.registry.SetRemote(callID, participantID, stream.ID(), stream, cur.Status, cur.Renderer)
		return
	}
	l.registry.SetRemote(callID, participantID, stream.ID(), stream, NotRendered, nil)
}

// UntrackRemoteStream disposes any view for the stream and removes its entry.
// An in-flight creation for the key will find the entry gone when it resumes
// and discard its renderer.
func (l *Lifecycle) UntrackRemoteStream(callID, participantID string, streamID int) {
	l.lock()
	defer l.unlock()
	l.disposeRemoteLocked(callID, participantID, streamID)
	l.registry.DeleteRemote(callID, participantID, streamID)
}

// TrackLocalStream registers a call's local stream as renderable.
func (l *Lifecycle) TrackLocalStream(callID string, stream calling.LocalVideoStream) {
	l.lock()
	defer l.unlock()
	if cur, ok := l.registry.Local(callID); ok {
		l.registry.SetLocal(callID, stream, cur.Status, cur.Renderer)
		return
	}
	l.registry.SetLocal(callID, stream, NotRendered, nil)
}

// UntrackLocalStream disposes any local view for the call and removes the
// entry.
func (l *Lifecycle) UntrackLocalStream(callID string) {
	l.lock()
	defer l.unlock()
	l.disposeLocalLocked(callID)
	l.registry.DeleteLocal(callID)
}

// ReleaseParticipant disposes every view for one participant and removes the
// participant's entries.
func (l *Lifecycle) ReleaseParticipant(callID, participantID string) {
	l.lock()
	defer l.unlock()
	for _, streamID := range l.registry.RemoteKeysForCall(callID)[participantID] {
		l.disposeRemoteLocked(callID, participantID, streamID)
	}
	l.registry.DeleteParticipant(callID, participantID)
}

// ReleaseCall disposes every view for a call (all remote participants plus
// the local stream) and removes the call's entries.
func (l *Lifecycle) ReleaseCall(callID string) {
	l.lock()
	defer l.unlock()
	l.releaseCallLocked(callID)
}

func (l *Lifecycle) releaseCallLocked(callID string) {
	for participantID, streamIDs := range l.registry.RemoteKeysForCall(callID) {
		for _, streamID := range streamIDs {
			l.disposeRemoteLocked(callID, participantID, streamID)
		}
	}
	l.disposeLocalLocked(callID)
	l.registry.DeleteCall(callID)
}

// ReleaseAll disposes every tracked view, call-scoped and unparented alike.
func (l *Lifecycle) ReleaseAll() {
	l.lock()
	defer l.unlock()
	for _, callID := range l.registry.CallIDs() {
		l.releaseCallLocked(callID)
	}
	for _, stream := range l.registry.UnparentedStreams() {
		l.disposeUnparentedLocked(stream)
		l.registry.DeleteUnparented(stream)
	}
}
