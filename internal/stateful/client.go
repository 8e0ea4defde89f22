// Package stateful wraps a calling/chat SDK client so that every mutating
// call and every SDK event is mirrored into the state store before or after
// delegating to the real SDK. Applications read snapshots and subscribe to
// change notifications instead of wiring SDK event listeners themselves.
//
// The wrapping is explicit delegation: each SDK object gets an adapter that
// owns its event-to-mutation wiring and is torn down when the underlying
// object is removed.
package stateful

import (
	"context"
	"errors"
	"sync"

	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/render"
	"github.com/bbielsa/callsync/internal/state"
)

// ErrDeviceManagerChanged reports that the SDK returned a second, different
// instance of the device manager, which is documented as a singleton. This
// is a configuration mismatch, not a recoverable condition.
var ErrDeviceManagerChanged = errors.New("stateful: SDK returned a different device manager instance")

// Options configures a stateful client.
type Options struct {
	UserID      string
	DisplayName string

	// Chat optionally attaches a chat SDK client whose events are mirrored
	// into the same snapshot.
	Chat calling.ChatClient
}

// Client is the stateful wrapper around a calling SDK client.
type Client struct {
	sdk   calling.Client
	chat  calling.ChatClient
	store *state.Store
	views *render.Lifecycle

	mu            sync.Mutex
	deviceManager calling.DeviceManager
	dmUnsub       func()
	chatUnsub     func()
}

// NewClient wraps an SDK client. The wrapped client owns the state store and
// the render registry for its lifetime.
func NewClient(sdk calling.Client, opts Options) *Client {
	store := state.NewStore(opts.UserID, opts.DisplayName)
	c := &Client{
		sdk:   sdk,
		chat:  opts.Chat,
		store: store,
		views: render.NewLifecycle(render.NewRegistry(), store, sdk.Renderers()),
	}
	if c.chat != nil {
		c.chatUnsub = c.chat.Subscribe(&chatSubscriber{store: store})
	}
	return c
}

// State returns the current snapshot. The returned value is never mutated;
// successive calls return the same reference until a change occurs.
func (c *Client) State() *state.Snapshot {
	return c.store.State()
}

// OnStateChange registers a change handler. Duplicate registration of the
// same handler is a no-op.
func (c *Client) OnStateChange(h state.Handler) {
	c.store.OnStateChange(h)
}

// OffStateChange removes a previously registered handler.
func (c *Client) OffStateChange(h state.Handler) {
	c.store.OffStateChange(h)
}

// CreateCallAgent provisions a call agent and begins mirroring its calls.
func (c *Client) CreateCallAgent(ctx context.Context, displayName string) (*CallAgent, error) {
	inner, err := c.sdk.CreateCallAgent(ctx, displayName)
	if err != nil {
		return nil, c.store.TeeErrorToState("Client.createCallAgent", err)
	}
	agent := newCallAgent(c, inner)
	return agent, nil
}

// DeviceManager returns the stateful device manager. The SDK must hand back
// the same underlying instance on every call; a different instance is
// reported as ErrDeviceManagerChanged.
func (c *Client) DeviceManager(ctx context.Context) (*DeviceManager, error) {
	inner, err := c.sdk.DeviceManager(ctx)
	if err != nil {
		return nil, c.store.TeeErrorToState("Client.getDeviceManager", err)
	}

	c.mu.Lock()
	switch c.deviceManager {
	case nil:
		c.deviceManager = inner
		c.dmUnsub = inner.Subscribe(&deviceSubscriber{store: c.store})
	case inner:
		// Same singleton as before.
	default:
		c.mu.Unlock()
		return nil, c.store.TeeErrorToState("Client.getDeviceManager", ErrDeviceManagerChanged)
	}
	c.mu.Unlock()

	return &DeviceManager{inner: inner, store: c.store}, nil
}

// CreateView renders a stream and publishes the view into the snapshot. See
// render.Lifecycle.CreateView for classification and race semantics; an
// empty (nil, nil) result means the request was stale or a duplicate.
func (c *Client) CreateView(ctx context.Context, callID, participantID string, stream calling.VideoStream, opts calling.ViewOptions) (*render.ViewResult, error) {
	result, err := c.views.CreateView(ctx, callID, participantID, stream, opts)
	if err != nil {
		return nil, c.store.TeeErrorToState("Client.createView", err)
	}
	return result, nil
}

// DisposeView tears down the view for a stream; safe in any state.
func (c *Client) DisposeView(callID, participantID string, stream calling.VideoStream) error {
	if err := c.views.DisposeView(callID, participantID, stream); err != nil {
		return c.store.TeeErrorToState("Client.disposeView", err)
	}
	return nil
}

// DisposeAllViewsForCall tears down every view attached to one call.
func (c *Client) DisposeAllViewsForCall(callID string) {
	c.views.ReleaseCall(callID)
}

// DisposeAllViews tears down every tracked view.
func (c *Client) DisposeAllViews() {
	c.views.ReleaseAll()
}

// Dispose releases every view and the underlying SDK client.
func (c *Client) Dispose() error {
	c.mu.Lock()
	if c.dmUnsub != nil {
		c.dmUnsub()
		c.dmUnsub = nil
	}
	if c.chatUnsub != nil {
		c.chatUnsub()
		c.chatUnsub = nil
	}
	c.mu.Unlock()

	c.views.ReleaseAll()
	return c.store.TeeErrorToState("Client.dispose", c.sdk.Dispose())
}
