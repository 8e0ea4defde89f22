package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

// ErrInvalidViewRequest is returned for an identifier combination that maps
// to no stream class (e.g. a participant ID without a call ID). The request
// fails fast with no state touched.
var ErrInvalidViewRequest = errors.New("render: invalid call/participant/stream combination")

// ViewResult is a successfully created renderer and view pair.
type ViewResult struct {
	Renderer calling.VideoStreamRenderer
	View     calling.VideoStreamRendererView
}

// Lifecycle drives renderer view creation and disposal against the Registry
// and the state Store. One mutex serializes every registry and store
// transition; it is released across the renderer-creation call, which is the
// only suspension point, so every resume re-validates the registry before
// committing anything.
//
// Lifecycle is the sole mutator of the Registry.
type Lifecycle struct {
	mu        sync.Mutex
	registry  *Registry
	store     *state.Store
	renderers calling.RendererProvider
}

// NewLifecycle creates a controller over the given registry and store.
func NewLifecycle(registry *Registry, store *state.Store, renderers calling.RendererProvider) *Lifecycle {
	return &Lifecycle{
		registry:  registry,
		store:     store,
		renderers: renderers,
	}
}

func (l *Lifecycle) lock()   { l.mu.Lock() }
func (l *Lifecycle) unlock() { l.mu.Unlock() }

// CreateView renders a stream and publishes the resulting view into the
// state store. The request is classified by its identifiers: remote-in-call
// (call + participant + remote stream), local-in-call (call + local stream),
// or unparented (local stream alone). Duplicate or stale requests return
// (nil, nil): an empty result is not an error.
func (l *Lifecycle) CreateView(ctx context.Context, callID, participantID string, stream calling.VideoStream, opts calling.ViewOptions) (*ViewResult, error) {
	switch s := stream.(type) {
	case calling.RemoteVideoStream:
		if callID == "" || participantID == "" {
			return nil, ErrInvalidViewRequest
		}
		return l.createRemoteView(ctx, callID, participantID, s, opts)
	case calling.LocalVideoStream:
		switch {
		case callID != "" && participantID == "":
			return l.createLocalView(ctx, callID, opts)
		case callID == "" && participantID == "":
			return l.createUnparentedView(ctx, s, opts)
		default:
			return nil, ErrInvalidViewRequest
		}
	default:
		return nil, ErrInvalidViewRequest
	}
}

// DisposeView tears down the view for a stream. Safe to call in any state,
// including while a creation is in flight: the in-flight creation observes
// the Stopping marker when it resumes and discards its work.
func (l *Lifecycle) DisposeView(callID, participantID string, stream calling.VideoStream) error {
	switch s := stream.(type) {
	case calling.RemoteVideoStream:
		if callID == "" || participantID == "" {
			return ErrInvalidViewRequest
		}
		l.lock()
		defer l.unlock()
		l.disposeRemoteLocked(callID, participantID, s.ID())
		return nil
	case calling.LocalVideoStream:
		switch {
		case callID != "" && participantID == "":
			l.lock()
			defer l.unlock()
			l.disposeLocalLocked(callID)
			return nil
		case callID == "" && participantID == "":
			l.lock()
			defer l.unlock()
			l.disposeUnparentedLocked(s)
			return nil
		default:
			return ErrInvalidViewRequest
		}
	default:
		return ErrInvalidViewRequest
	}
}

func (l *Lifecycle) createRemoteView(ctx context.Context, callID, participantID string, stream calling.RemoteVideoStream, opts calling.ViewOptions) (*ViewResult, error) {
	streamID := stream.ID()

	l.lock()
	info, ok := l.registry.Remote(callID, participantID, streamID)
	if !ok {
		l.unlock()
		log.Printf("[render] createView: remote stream %d unknown for call %s participant %s", streamID, callID, participantID)
		return nil, nil
	}
	if info.Status != NotRendered {
		l.unlock()
		log.Printf("[render] createView: remote stream %d is %s, skipping", streamID, info.Status)
		return nil, nil
	}
	renderer, err := l.renderers.NewRenderer(info.Stream)
	if err != nil {
		l.unlock()
		return nil, fmt.Errorf("new renderer: %w", err)
	}
	l.registry.SetRemote(callID, participantID, streamID, info.Stream, Rendering, nil)
	l.unlock()

	view, err := renderer.CreateView(ctx, opts)

	l.lock()
	defer l.unlock()
	cur, ok := l.registry.Remote(callID, participantID, streamID)
	if err != nil {
		renderer.Dispose()
		if ok {
			l.registry.SetRemote(callID, participantID, streamID, cur.Stream, NotRendered, nil)
		}
		return nil, fmt.Errorf("create remote view: %w", err)
	}
	if !ok {
		// The stream left while rendering; nothing to publish.
		renderer.Dispose()
		return nil, nil
	}
	if cur.Status == Stopping {
		renderer.Dispose()
		l.registry.SetRemote(callID, participantID, streamID, cur.Stream, NotRendered, nil)
		l.store.SetRemoteVideoStreamView(callID, participantID, streamID, nil)
		return nil, nil
	}
	l.registry.SetRemote(callID, participantID, streamID, cur.Stream, Rendered, renderer)
	l.store.SetRemoteVideoStreamView(callID, participantID, streamID, viewState(view))
	return &ViewResult{Renderer: renderer, View: view}, nil
}

func (l *Lifecycle) createLocalView(ctx context.Context, callID string, opts calling.ViewOptions) (*ViewResult, error) {
	l.lock()
	info, ok := l.registry.Local(callID)
	if !ok {
		l.unlock()
		log.Printf("[render] createView: no local stream for call %s", callID)
		return nil, nil
	}
	if info.Status != NotRendered {
		l.unlock()
		log.Printf("[render] createView: local stream for call %s is %s, skipping", callID, info.Status)
		return nil, nil
	}
	renderer, err := l.renderers.NewRenderer(info.Stream)
	if err != nil {
		l.unlock()
		return nil, fmt.Errorf("new renderer: %w", err)
	}
	l.registry.SetLocal(callID, info.Stream, Rendering, nil)
	l.unlock()

	view, err := renderer.CreateView(ctx, opts)

	l.lock()
	defer l.unlock()
	cur, ok := l.registry.Local(callID)
	if err != nil {
		renderer.Dispose()
		if ok {
			l.registry.SetLocal(callID, cur.Stream, NotRendered, nil)
		}
		return nil, fmt.Errorf("create local view: %w", err)
	}
	if !ok {
		renderer.Dispose()
		return nil, nil
	}
	if cur.Status == Stopping {
		renderer.Dispose()
		l.registry.SetLocal(callID, cur.Stream, NotRendered, nil)
		l.store.SetLocalVideoStreamView(callID, nil)
		return nil, nil
	}
	l.registry.SetLocal(callID, cur.Stream, Rendered, renderer)
	l.store.SetLocalVideoStreamView(callID, viewState(view))
	return &ViewResult{Renderer: renderer, View: view}, nil
}

func (l *Lifecycle) createUnparentedView(ctx context.Context, stream calling.LocalVideoStream, opts calling.ViewOptions) (*ViewResult, error) {
	l.lock()
	// Absent is not an error here: an unparented stream has no owning call
	// to register it, so a missing entry means it simply has no renderer yet.
	if info, ok := l.registry.Unparented(stream); ok && info.Status != NotRendered {
		l.unlock()
		log.Printf("[render] createView: unparented stream is %s, skipping", info.Status)
		return nil, nil
	}
	renderer, err := l.renderers.NewRenderer(stream)
	if err != nil {
		l.unlock()
		return nil, fmt.Errorf("new renderer: %w", err)
	}
	l.registry.SetUnparented(stream, Rendering, nil)
	l.unlock()

	view, err := renderer.CreateView(ctx, opts)

	l.lock()
	defer l.unlock()
	cur, ok := l.registry.Unparented(stream)
	if err != nil {
		renderer.Dispose()
		if ok {
			l.registry.DeleteUnparented(stream)
		}
		return nil, fmt.Errorf("create unparented view: %w", err)
	}
	if !ok {
		renderer.Dispose()
		return nil, nil
	}
	if cur.Status == Stopping {
		renderer.Dispose()
		l.registry.DeleteUnparented(stream)
		l.store.DeleteUnparentedView(stream.Source().ID)
		return nil, nil
	}
	l.registry.SetUnparented(stream, Rendered, renderer)
	l.store.SetUnparentedView(stream.Source(), stream.Type(), viewState(view))
	return &ViewResult{Renderer: renderer, View: view}, nil
}

// disposeRemoteLocked applies the dispose protocol to one remote entry. The
// published view is cleared first so the UI stops referencing it regardless
// of renderer teardown timing.
func (l *Lifecycle) disposeRemoteLocked(callID, participantID string, streamID int) {
	l.store.SetRemoteVideoStreamView(callID, participantID, streamID, nil)
	info, ok := l.registry.Remote(callID, participantID, streamID)
	if !ok {
		return
	}
	switch info.Status {
	case Rendering:
		// No renderer handle is owned yet; the in-flight creation cleans up.
		l.registry.SetRemote(callID, participantID, streamID, info.Stream, Stopping, nil)
	case Stopping:
		// Teardown already requested.
	default:
		l.registry.SetRemote(callID, participantID, streamID, info.Stream, NotRendered, nil)
		if info.Renderer != nil {
			info.Renderer.Dispose()
		}
	}
}

func (l *Lifecycle) disposeLocalLocked(callID string) {
	l.store.SetLocalVideoStreamView(callID, nil)
	info, ok := l.registry.Local(callID)
	if !ok {
		return
	}
	switch info.Status {
	case Rendering:
		l.registry.SetLocal(callID, info.Stream, Stopping, nil)
	case Stopping:
	default:
		l.registry.SetLocal(callID, info.Stream, NotRendered, nil)
		if info.Renderer != nil {
			info.Renderer.Dispose()
		}
	}
}

func (l *Lifecycle) disposeUnparentedLocked(stream calling.LocalVideoStream) {
	l.store.DeleteUnparentedView(stream.Source().ID)
	info, ok := l.registry.Unparented(stream)
	if !ok {
		return
	}
	switch info.Status {
	case Rendering:
		l.registry.SetUnparented(stream, Stopping, nil)
	case Stopping:
	default:
		l.registry.DeleteUnparented(stream)
		if info.Renderer != nil {
			info.Renderer.Dispose()
		}
	}
}

func viewState(view calling.VideoStreamRendererView) *state.VideoStreamRendererView {
	return &state.VideoStreamRendererView{
		ID:          view.ID(),
		ScalingMode: view.ScalingMode(),
		IsMirrored:  view.IsMirrored(),
	}
}
