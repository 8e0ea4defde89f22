package webrtc

import (
	"context"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/bbielsa/callsync/internal/calling"
)

// remoteStream wraps one inbound video track. Stream IDs are assigned per
// call, starting at 1.
type remoteStream struct {
	id    int
	track *pion.TrackRemote

	subs subscribers[calling.StreamHandler]

	mu        sync.Mutex
	available bool
}

func newRemoteStream(id int, track *pion.TrackRemote) *remoteStream {
	return &remoteStream{id: id, track: track, available: true}
}

func (s *remoteStream) Type() calling.MediaStreamType {
	return calling.MediaStreamTypeVideo
}

func (s *remoteStream) ID() int { return s.id }

func (s *remoteStream) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *remoteStream) Subscribe(h calling.StreamHandler) func() {
	return s.subs.add(h)
}

func (s *remoteStream) setAvailable(available bool) {
	s.mu.Lock()
	if s.available == available {
		s.mu.Unlock()
		return
	}
	s.available = available
	s.mu.Unlock()

	s.subs.each(func(h calling.StreamHandler) { h.OnAvailabilityChanged(available) })
}

// LocalStream is a local camera stream handle. Capture is not wired in this
// SDK; the handle carries source identity for call attachment and view
// tracking.
type LocalStream struct {
	mu     sync.Mutex
	source calling.VideoDeviceInfo
}

// NewLocalStream creates a local stream backed by the given camera.
func NewLocalStream(source calling.VideoDeviceInfo) *LocalStream {
	return &LocalStream{source: source}
}

func (s *LocalStream) Type() calling.MediaStreamType {
	return calling.MediaStreamTypeVideo
}

// Source returns the camera the stream captures from.
func (s *LocalStream) Source() calling.VideoDeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// SwitchSource changes the capture camera in place.
func (s *LocalStream) SwitchSource(ctx context.Context, device calling.VideoDeviceInfo) error {
	s.mu.Lock()
	s.source = device
	s.mu.Unlock()
	return nil
}
