// Package render tracks the binding between video streams and renderer
// resources, and drives renderer view creation and teardown.
package render

import "github.com/bbielsa/callsync/internal/calling"

// Status is the lifecycle state of one stream-to-renderer binding.
type Status int

const (
	NotRendered Status = iota
	Rendering
	Rendered
	Stopping
)

func (s Status) String() string {
	switch s {
	case NotRendered:
		return "NotRendered"
	case Rendering:
		return "Rendering"
	case Rendered:
		return "Rendered"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// StreamRenderInfo records the renderer binding for one stream. The stream
// reference is owned by the SDK; the renderer handle is owned by this entry
// and must be disposed before the entry drops it.
type StreamRenderInfo struct {
	Stream   calling.VideoStream
	Status   Status
	Renderer calling.VideoStreamRenderer
}

// Registry is the manifest of renderer bindings. It holds three independent
// lookup structures: local streams by call, remote streams by
// (call, participant, stream), and unparented streams by handle identity.
// It is a plain data structure with no locking of its own; the Lifecycle
// controller serializes access. The Registry never disposes resources.
type Registry struct {
	local      map[string]StreamRenderInfo
	remote     map[string]map[string]map[int]StreamRenderInfo
	unparented map[calling.LocalVideoStream]StreamRenderInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		local:      make(map[string]StreamRenderInfo),
		remote:     make(map[string]map[string]map[int]StreamRenderInfo),
		unparented: make(map[calling.LocalVideoStream]StreamRenderInfo),
	}
}

// Local returns the render info for a call's local stream.
func (r *Registry) Local(callID string) (StreamRenderInfo, bool) {
	info, ok := r.local[callID]
	return info, ok
}

// SetLocal upserts the render info for a call's local stream, replacing the
// entry wholesale.
func (r *Registry) SetLocal(callID string, stream calling.VideoStream, status Status, renderer calling.VideoStreamRenderer) {
	r.local[callID] = StreamRenderInfo{Stream: stream, Status: status, Renderer: renderer}
}

// DeleteLocal removes a call's local entry. The caller must already have
// released any renderer held within it.
func (r *Registry) DeleteLocal(callID string) {
	delete(r.local, callID)
}

// Remote returns the render info for a remote stream.
func (r *Registry) Remote(callID, participantID string, streamID int) (StreamRenderInfo, bool) {
	info, ok := r.remote[callID][participantID][streamID]
	return info, ok
}

// SetRemote upserts the render info for a remote stream, replacing the entry
// wholesale.
func (r *Registry) SetRemote(callID, participantID string, streamID int, stream calling.VideoStream, status Status, renderer calling.VideoStreamRenderer) {
	byParticipant, ok := r.remote[callID]
	if !ok {
		byParticipant = make(map[string]map[int]StreamRenderInfo)
		r.remote[callID] = byParticipant
	}
	byStream, ok := byParticipant[participantID]
	if !ok {
		byStream = make(map[int]StreamRenderInfo)
		byParticipant[participantID] = byStream
	}
	byStream[streamID] = StreamRenderInfo{Stream: stream, Status: status, Renderer: renderer}
}

// DeleteRemote removes one remote entry.
func (r *Registry) DeleteRemote(callID, participantID string, streamID int) {
	byStream := r.remote[callID][participantID]
	delete(byStream, streamID)
	if len(byStream) == 0 {
		delete(r.remote[callID], participantID)
	}
	if len(r.remote[callID]) == 0 {
		delete(r.remote, callID)
	}
}

// DeleteParticipant removes every remote entry for one participant.
func (r *Registry) DeleteParticipant(callID, participantID string) {
	delete(r.remote[callID], participantID)
	if len(r.remote[callID]) == 0 {
		delete(r.remote, callID)
	}
}

// DeleteCall removes the local entry and every remote entry for a call.
func (r *Registry) DeleteCall(callID string) {
	delete(r.local, callID)
	delete(r.remote, callID)
}

// RemoteKeysForCall lists the tracked remote stream IDs for a call, grouped
// by participant.
func (r *Registry) RemoteKeysForCall(callID string) map[string][]int {
	keys := make(map[string][]int)
	for participantID, byStream := range r.remote[callID] {
		for streamID := range byStream {
			keys[participantID] = append(keys[participantID], streamID)
		}
	}
	return keys
}

// CallIDs lists every call with at least one tracked entry.
func (r *Registry) CallIDs() []string {
	seen := make(map[string]struct{})
	for callID := range r.local {
		seen[callID] = struct{}{}
	}
	for callID := range r.remote {
		seen[callID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for callID := range seen {
		ids = append(ids, callID)
	}
	return ids
}

// Unparented returns the render info for a stream outside any call, keyed by
// the stream handle itself.
func (r *Registry) Unparented(stream calling.LocalVideoStream) (StreamRenderInfo, bool) {
	info, ok := r.unparented[stream]
	return info, ok
}

// SetUnparented upserts the entry for an unparented stream.
func (r *Registry) SetUnparented(stream calling.LocalVideoStream, status Status, renderer calling.VideoStreamRenderer) {
	r.unparented[stream] = StreamRenderInfo{Stream: stream, Status: status, Renderer: renderer}
}

// DeleteUnparented removes the entry for an unparented stream.
func (r *Registry) DeleteUnparented(stream calling.LocalVideoStream) {
	delete(r.unparented, stream)
}

// UnparentedStreams lists every tracked unparented stream handle.
func (r *Registry) UnparentedStreams() []calling.LocalVideoStream {
	streams := make([]calling.LocalVideoStream, 0, len(r.unparented))
	for stream := range r.unparented {
		streams = append(streams, stream)
	}
	return streams
}
