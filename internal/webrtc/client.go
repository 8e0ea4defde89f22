// Package webrtc implements the calling capability interfaces on top of Pion
// WebRTC, with call setup relayed through the signaling session. One Client
// owns one signaling connection; calls map to peer connections keyed by the
// remote peer's signaling ID.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/bbielsa/callsync/internal/api"
	"github.com/bbielsa/callsync/internal/calling"
	"github.com/bbielsa/callsync/internal/signal"
)

// Client is the Pion-backed calling SDK client.
type Client struct {
	userID string
	ticket *api.Ticket
	api    *pion.API
	cfg    pion.Configuration
	chat   *ChatClient

	mu     sync.Mutex
	signal *signal.Client
	agent  *Agent
	dm     *deviceManager
}

// NewClient builds a client from a signaling ticket. The signaling session is
// not dialed until CreateCallAgent.
func NewClient(ticket *api.Ticket, userID string) (*Client, error) {
	webrtcAPI, cfg, err := newEngine(ticket.ICEServers)
	if err != nil {
		return nil, err
	}

	c := &Client{
		userID: userID,
		ticket: ticket,
		api:    webrtcAPI,
		cfg:    cfg,
	}
	c.chat = newChatClient(c)
	return c, nil
}

// Chat returns the chat client riding on the same signaling session.
func (c *Client) Chat() calling.ChatClient {
	return c.chat
}

// CreateCallAgent dials the signaling session and returns the agent that
// places and receives calls. Only one agent per client is supported.
func (c *Client) CreateCallAgent(ctx context.Context, displayName string) (calling.CallAgent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agent != nil {
		return nil, errors.New("webrtc: call agent already created")
	}

	sig := signal.NewClient(c.ticket, c.userID, c)
	if err := sig.Connect(); err != nil {
		return nil, fmt.Errorf("connect signaling: %w", err)
	}

	c.signal = sig
	c.agent = newAgent(c, sig, displayName)
	return c.agent, nil
}

// DeviceManager returns the device manager singleton.
func (c *Client) DeviceManager(ctx context.Context) (calling.DeviceManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dm == nil {
		c.dm = newDeviceManager()
	}
	return c.dm, nil
}

// Renderers returns the renderer factory for local and remote streams.
func (c *Client) Renderers() calling.RendererProvider {
	return rendererProvider{}
}

// Dispose hangs up any remaining calls and closes the signaling session.
func (c *Client) Dispose() error {
	c.mu.Lock()
	agent := c.agent
	sig := c.signal
	c.agent = nil
	c.signal = nil
	c.mu.Unlock()

	if agent != nil {
		agent.Dispose()
	}
	if sig != nil {
		sig.Close()
	}
	return nil
}

func (c *Client) currentAgent() *Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

func (c *Client) sig() *signal.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signal
}

// OnAuthSuccess implements signal.Handler.
func (c *Client) OnAuthSuccess() {
	log.Printf("[webrtc] signaling session authenticated")
}

// OnPeerJoined implements signal.Handler.
func (c *Client) OnPeerJoined(clientID string) {
	if a := c.currentAgent(); a != nil {
		a.handlePeerJoined(clientID)
	}
}

// OnPeerLeft implements signal.Handler.
func (c *Client) OnPeerLeft(clientID string) {
	if a := c.currentAgent(); a != nil {
		a.handlePeerLeft(clientID)
	}
}

// OnSDPOffer implements signal.Handler.
func (c *Client) OnSDPOffer(senderID string, sdp signal.SDPPayload) {
	if a := c.currentAgent(); a != nil {
		a.handleOffer(senderID, sdp)
	}
}

// OnSDPAnswer implements signal.Handler.
func (c *Client) OnSDPAnswer(senderID string, sdp signal.SDPPayload) {
	if a := c.currentAgent(); a != nil {
		a.handleAnswer(senderID, sdp)
	}
}

// OnRemoteICECandidate implements signal.Handler.
func (c *Client) OnRemoteICECandidate(senderID string, candidate signal.ICECandidatePayload) {
	if a := c.currentAgent(); a != nil {
		a.handleCandidate(senderID, candidate)
	}
}

// OnChat implements signal.Handler.
func (c *Client) OnChat(p signal.ChatPayload) {
	c.chat.handleEvent(p)
}
