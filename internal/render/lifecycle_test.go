package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/state"
)

type fakeRemoteStream struct {
	id int
}

func (s *fakeRemoteStream) Type() calling.MediaStreamType { return calling.MediaStreamTypeVideo }
func (s *fakeRemoteStream) ID() int                       { return s.id }
func (s *fakeRemoteStream) IsAvailable() bool             { return true }
func (s *fakeRemoteStream) Subscribe(h calling.StreamHandler) func() {
	return func() {}
}

type fakeLocalStream struct {
	source calling.VideoDeviceInfo
}

func (s *fakeLocalStream) Type() calling.MediaStreamType  { return calling.MediaStreamTypeVideo }
func (s *fakeLocalStream) Source() calling.VideoDeviceInfo { return s.source }
func (s *fakeLocalStream) SwitchSource(ctx context.Context, device calling.VideoDeviceInfo) error {
	s.source = device
	return nil
}

type fakeView struct {
	id   string
	opts calling.ViewOptions
}

func (v *fakeView) ID() string                       { return v.id }
func (v *fakeView) ScalingMode() calling.ScalingMode { return v.opts.ScalingMode }
func (v *fakeView) IsMirrored() bool                 { return v.opts.IsMirrored }

// fakeRenderer optionally blocks inside CreateView so tests can interleave
// dispose and untrack with an in-flight creation.
type fakeRenderer struct {
	block     chan struct{}
	started   chan struct{}
	createErr error

	mu       sync.Mutex
	disposed int
}

func (r *fakeRenderer) CreateView(ctx context.Context, opts calling.ViewOptions) (calling.VideoStreamRendererView, error) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	if r.createErr != nil {
		return nil, r.createErr
	}
	return &fakeView{id: "view-1", opts: opts}, nil
}

func (r *fakeRenderer) Dispose() {
	r.mu.Lock()
	r.disposed++
	r.mu.Unlock()
}

func (r *fakeRenderer) disposeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

type fakeProvider struct {
	nextBlock chan struct{}
	nextStart chan struct{}
	createErr error
	newErr    error

	mu      sync.Mutex
	created []*fakeRenderer
}

func (p *fakeProvider) NewRenderer(stream calling.VideoStream) (calling.VideoStreamRenderer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.newErr != nil {
		return nil, p.newErr
	}
	r := &fakeRenderer{block: p.nextBlock, started: p.nextStart, createErr: p.createErr}
	p.created = append(p.created, r)
	return r, nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

func (p *fakeProvider) renderer(i int) *fakeRenderer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created[i]
}

func newRemoteFixture(t *testing.T, provider *fakeProvider) (*Lifecycle, *Registry, *state.Store, *fakeRemoteStream) {
	t.Helper()
	store := state.NewStore("user-1", "User One")
	store.SetCall(&state.Call{
		ID:                 "call-1",
		RemoteParticipants: make(map[string]*state.RemoteParticipant),
	})
	store.SetParticipant("call-1", &state.RemoteParticipant{
		ID:           "peer-1",
		VideoStreams: make(map[int]state.RemoteVideoStream),
	})
	store.SetRemoteVideoStream("call-1", "peer-1", state.RemoteVideoStream{ID: 7, IsAvailable: true})

	registry := NewRegistry()
	l := NewLifecycle(registry, store, provider)
	stream := &fakeRemoteStream{id: 7}
	l.TrackRemoteStream("call-1", "peer-1", stream)
	return l, registry, store, stream
}

func remoteView(store *state.Store) *state.VideoStreamRendererView {
	return store.State().Calls["call-1"].RemoteParticipants["peer-1"].VideoStreams[7].View
}

func TestCreateRemoteViewPublishes(t *testing.T) {
	provider := &fakeProvider{}
	l, registry, store, stream := newRemoteFixture(t, provider)

	result, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{
		ScalingMode: calling.ScalingModeCrop,
		IsMirrored:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "view-1", result.View.ID())

	info, ok := registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, Rendered, info.Status)
	require.Same(t, provider.renderer(0), info.Renderer.(*fakeRenderer))

	view := remoteView(store)
	require.NotNil(t, view)
	require.Equal(t, "view-1", view.ID)
	require.Equal(t, calling.ScalingModeCrop, view.ScalingMode)
	require.True(t, view.IsMirrored)
}

func TestCreateViewInvalidCombinations(t *testing.T) {
	provider := &fakeProvider{}
	l, _, _, stream := newRemoteFixture(t, provider)
	local := &fakeLocalStream{source: calling.VideoDeviceInfo{ID: "cam-1"}}

	// Remote stream without full addressing.
	_, err := l.CreateView(context.Background(), "", "", stream, calling.ViewOptions{})
	require.ErrorIs(t, err, ErrInvalidViewRequest)
	_, err = l.CreateView(context.Background(), "call-1", "", stream, calling.ViewOptions{})
	require.ErrorIs(t, err, ErrInvalidViewRequest)

	// Local stream with a participant ID.
	_, err = l.CreateView(context.Background(), "call-1", "peer-1", local, calling.ViewOptions{})
	require.ErrorIs(t, err, ErrInvalidViewRequest)
	_, err = l.CreateView(context.Background(), "", "peer-1", local, calling.ViewOptions{})
	require.ErrorIs(t, err, ErrInvalidViewRequest)

	require.ErrorIs(t, l.DisposeView("", "", stream), ErrInvalidViewRequest)
	require.ErrorIs(t, l.DisposeView("call-1", "peer-1", local), ErrInvalidViewRequest)

	// Nothing was created along the way.
	require.Zero(t, provider.count())
}

func TestCreateViewDuplicateSkipped(t *testing.T) {
	provider := &fakeProvider{}
	l, _, _, stream := newRemoteFixture(t, provider)

	first, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.NoError(t, err)
	require.Nil(t, second)
	require.Equal(t, 1, provider.count())
}

func TestCreateViewUntrackedStreamSkipped(t *testing.T) {
	provider := &fakeProvider{}
	store := state.NewStore("user-1", "User One")
	l := NewLifecycle(NewRegistry(), store, provider)

	result, err := l.CreateView(context.Background(), "call-1", "peer-1", &fakeRemoteStream{id: 7}, calling.ViewOptions{})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Zero(t, provider.count())
}

func TestConcurrentCreateSecondSkipped(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{nextBlock: block, nextStart: make(chan struct{}, 1)}
	l, _, _, stream := newRemoteFixture(t, provider)

	type outcome struct {
		result *ViewResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
		done <- outcome{r, err}
	}()
	<-provider.nextStart

	// The stream is Rendering; a second request is a no-op, not a second
	// renderer.
	second, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.NoError(t, err)
	require.Nil(t, second)
	require.Equal(t, 1, provider.count())

	close(block)
	first := <-done
	require.NoError(t, first.err)
	require.NotNil(t, first.result)
}

func TestDisposeDuringCreateDiscardsView(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{nextBlock: block, nextStart: make(chan struct{}, 1)}
	l, registry, store, stream := newRemoteFixture(t, provider)

	type outcome struct {
		result *ViewResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
		done <- outcome{r, err}
	}()
	<-provider.nextStart

	require.NoError(t, l.DisposeView("call-1", "peer-1", stream))
	info, ok := registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, Stopping, info.Status)

	close(block)
	result := <-done
	require.NoError(t, result.err)
	require.Nil(t, result.result)

	// The losing creation disposed its renderer and reverted the entry.
	require.Equal(t, 1, provider.renderer(0).disposeCount())
	info, ok = registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, NotRendered, info.Status)
	require.Nil(t, info.Renderer)
	require.Nil(t, remoteView(store))
}

func TestUntrackDuringCreateDiscardsView(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{nextBlock: block, nextStart: make(chan struct{}, 1)}
	l, registry, _, stream := newRemoteFixture(t, provider)

	done := make(chan *ViewResult, 1)
	go func() {
		r, _ := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
		done <- r
	}()
	<-provider.nextStart

	l.UntrackRemoteStream("call-1", "peer-1", 7)

	close(block)
	require.Nil(t, <-done)
	require.Equal(t, 1, provider.renderer(0).disposeCount())
	_, ok := registry.Remote("call-1", "peer-1", 7)
	require.False(t, ok)
}

func TestDisposeRenderedView(t *testing.T) {
	provider := &fakeProvider{}
	l, registry, store, stream := newRemoteFixture(t, provider)

	_, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.NoError(t, err)
	require.NotNil(t, remoteView(store))

	require.NoError(t, l.DisposeView("call-1", "peer-1", stream))
	require.Equal(t, 1, provider.renderer(0).disposeCount())
	require.Nil(t, remoteView(store))

	info, ok := registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, NotRendered, info.Status)
	require.Nil(t, info.Renderer)

	// Disposing again is a no-op, not a double dispose.
	require.NoError(t, l.DisposeView("call-1", "peer-1", stream))
	require.Equal(t, 1, provider.renderer(0).disposeCount())
}

func TestRendererCreateErrorReverts(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("no decoder")}
	l, registry, store, stream := newRemoteFixture(t, provider)

	_, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.Error(t, err)
	require.Equal(t, 1, provider.renderer(0).disposeCount())

	info, ok := registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, NotRendered, info.Status)
	require.Nil(t, remoteView(store))
}

func TestNewRendererErrorLeavesEntryUntouched(t *testing.T) {
	provider := &fakeProvider{newErr: errors.New("unsupported stream")}
	l, registry, _, stream := newRemoteFixture(t, provider)

	_, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.Error(t, err)

	info, ok := registry.Remote("call-1", "peer-1", 7)
	require.True(t, ok)
	require.Equal(t, NotRendered, info.Status)
}

func TestUnparentedViewLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	store := state.NewStore("user-1", "User One")
	registry := NewRegistry()
	l := NewLifecycle(registry, store, provider)

	cam := calling.VideoDeviceInfo{ID: "cam-1", Name: "Front Camera"}
	stream := &fakeLocalStream{source: cam}

	result, err := l.CreateView(context.Background(), "", "", stream, calling.ViewOptions{IsMirrored: true})
	require.NoError(t, err)
	require.NotNil(t, result)

	entry, ok := store.State().DeviceManager.UnparentedViews["cam-1"]
	require.True(t, ok)
	require.True(t, entry.View.IsMirrored)

	info, ok := registry.Unparented(stream)
	require.True(t, ok)
	require.Equal(t, Rendered, info.Status)

	require.NoError(t, l.DisposeView("", "", stream))
	require.Equal(t, 1, provider.renderer(0).disposeCount())
	require.Empty(t, store.State().DeviceManager.UnparentedViews)

	// Unlike call-scoped entries, the unparented entry is deleted outright.
	_, ok = registry.Unparented(stream)
	require.False(t, ok)
}

func TestUnparentedCreateErrorDeletesEntry(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("no capture")}
	store := state.NewStore("user-1", "User One")
	registry := NewRegistry()
	l := NewLifecycle(registry, store, provider)

	stream := &fakeLocalStream{source: calling.VideoDeviceInfo{ID: "cam-1"}}
	_, err := l.CreateView(context.Background(), "", "", stream, calling.ViewOptions{})
	require.Error(t, err)

	_, ok := registry.Unparented(stream)
	require.False(t, ok)
	require.Empty(t, store.State().DeviceManager.UnparentedViews)
}

func TestLocalViewLifecycle(t *testing.T) {
	provider := &fakeProvider{}
	store := state.NewStore("user-1", "User One")
	cam := calling.VideoDeviceInfo{ID: "cam-1"}
	store.SetCall(&state.Call{ID: "call-1", RemoteParticipants: make(map[string]*state.RemoteParticipant)})
	store.SetLocalVideoStreams("call-1", []state.LocalVideoStream{{Source: cam}})

	registry := NewRegistry()
	l := NewLifecycle(registry, store, provider)
	stream := &fakeLocalStream{source: cam}
	l.TrackLocalStream("call-1", stream)

	result, err := l.CreateView(context.Background(), "call-1", "", stream, calling.ViewOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, store.State().Calls["call-1"].LocalVideoStreams[0].View)

	l.UntrackLocalStream("call-1")
	require.Equal(t, 1, provider.renderer(0).disposeCount())
	require.Nil(t, store.State().Calls["call-1"].LocalVideoStreams[0].View)
	_, ok := registry.Local("call-1")
	require.False(t, ok)
}

func TestReleaseCallDisposesEverything(t *testing.T) {
	provider := &fakeProvider{}
	l, registry, store, stream := newRemoteFixture(t, provider)

	// A second remote stream and a local stream on the same call.
	store.SetRemoteVideoStream("call-1", "peer-1", state.RemoteVideoStream{ID: 8, IsAvailable: true})
	stream2 := &fakeRemoteStream{id: 8}
	l.TrackRemoteStream("call-1", "peer-1", stream2)
	cam := calling.VideoDeviceInfo{ID: "cam-1"}
	store.SetLocalVideoStreams("call-1", []state.LocalVideoStream{{Source: cam}})
	l.TrackLocalStream("call-1", &fakeLocalStream{source: cam})

	for _, s := range []calling.VideoStream{stream, stream2} {
		_, err := l.CreateView(context.Background(), "call-1", "peer-1", s, calling.ViewOptions{})
		require.NoError(t, err)
	}
	_, err := l.CreateView(context.Background(), "call-1", "", &fakeLocalStream{source: cam}, calling.ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, provider.count())

	l.ReleaseCall("call-1")

	for i := 0; i < 3; i++ {
		require.Equal(t, 1, provider.renderer(i).disposeCount())
	}
	require.Empty(t, registry.CallIDs())
	require.Nil(t, remoteView(store))
	require.Nil(t, store.State().Calls["call-1"].LocalVideoStreams[0].View)
}

func TestReleaseAllIncludesUnparented(t *testing.T) {
	provider := &fakeProvider{}
	l, registry, store, stream := newRemoteFixture(t, provider)

	_, err := l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	require.NoError(t, err)

	unparented := &fakeLocalStream{source: calling.VideoDeviceInfo{ID: "cam-9"}}
	_, err = l.CreateView(context.Background(), "", "", unparented, calling.ViewOptions{})
	require.NoError(t, err)

	l.ReleaseAll()

	require.Equal(t, 1, provider.renderer(0).disposeCount())
	require.Equal(t, 1, provider.renderer(1).disposeCount())
	require.Empty(t, registry.CallIDs())
	require.Empty(t, registry.UnparentedStreams())
	require.Empty(t, store.State().DeviceManager.UnparentedViews)
}

func TestDisposeUnknownTargetsNoOp(t *testing.T) {
	provider := &fakeProvider{}
	store := state.NewStore("user-1", "User One")
	l := NewLifecycle(NewRegistry(), store, provider)

	require.NoError(t, l.DisposeView("call-x", "peer-x", &fakeRemoteStream{id: 1}))
	require.NoError(t, l.DisposeView("call-x", "", &fakeLocalStream{}))
	require.NoError(t, l.DisposeView("", "", &fakeLocalStream{}))
	require.Zero(t, provider.count())
}

// Guard against a regression where an in-flight creation could block dispose
// forever: dispose must return while the renderer is still suspended.
func TestDisposeDoesNotWaitForInflightCreate(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{nextBlock: block, nextStart: make(chan struct{}, 1)}
	l, _, _, stream := newRemoteFixture(t, provider)

	go l.CreateView(context.Background(), "call-1", "peer-1", stream, calling.ViewOptions{})
	<-provider.nextStart

	disposed := make(chan struct{})
	go func() {
		l.DisposeView("call-1", "peer-1", stream)
		close(disposed)
	}()

	select {
	case <-disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("DisposeView blocked behind an in-flight CreateView")
	}
	close(block)
}
