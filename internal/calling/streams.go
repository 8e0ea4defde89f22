package calling

import (
	"context"
	"io"
)

// VideoStream is the common surface of local and remote video streams.
// Implementations must be comparable (pointer types), since unparented
// streams are tracked by handle identity.
type VideoStream interface {
	Type() MediaStreamType
}

// RemoteVideoStream is a video stream published by a remote participant.
// Streams are identified within their call by a numeric ID assigned by the
// SDK.
type RemoteVideoStream interface {
	VideoStream
	ID() int
	IsAvailable() bool
	Subscribe(h StreamHandler) (unsubscribe func())
}

// StreamHandler receives availability events for a remote video stream.
type StreamHandler interface {
	OnAvailabilityChanged(available bool)
}

// LocalVideoStream is a video stream captured from a local device. It has no
// stream ID; within a call there is at most one, and outside any call it is
// an unparented stream identified by its own handle.
type LocalVideoStream interface {
	VideoStream
	Source() VideoDeviceInfo
	SwitchSource(ctx context.Context, device VideoDeviceInfo) error
}

// ViewOptions configures renderer view creation.
type ViewOptions struct {
	ScalingMode ScalingMode
	IsMirrored  bool

	// Sink receives the rendered output (for this library, an H264
	// elementary stream). May be nil when the caller only wants the view
	// lifecycle tracked.
	Sink io.Writer
}

// VideoStreamRenderer turns a video stream into renderable views. A renderer
// wraps native resources and must be disposed exactly once; Dispose also
// tears down any views it created.
type VideoStreamRenderer interface {
	// CreateView asynchronously builds a view of the stream. This is the
	// suspension point of the view lifecycle: the call/participant/stream
	// may be torn down while it is in flight.
	CreateView(ctx context.Context, opts ViewOptions) (VideoStreamRendererView, error)
	Dispose()
}

// VideoStreamRendererView is one rendered view produced by a renderer.
type VideoStreamRendererView interface {
	ID() string
	ScalingMode() ScalingMode
	IsMirrored() bool
}

// RendererProvider constructs renderers for streams.
type RendererProvider interface {
	NewRenderer(stream VideoStream) (VideoStreamRenderer, error)
}
