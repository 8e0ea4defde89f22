// Package signal manages the WebSocket signaling session with the call
// service: authentication, peer presence, SDP/ICE relay, and chat events.
package signal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bbielsa/callsync/internal/api"
)

// SDPPayload carries an SDP offer or answer.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload carries one ICE candidate.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// ChatPayload carries a chat event relayed through the signaling session.
type ChatPayload struct {
	Kind       string `json:"kind"` // message, edit, delete, typing, read
	ThreadID   string `json:"threadId"`
	MessageID  string `json:"messageId,omitempty"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Content    string `json:"content,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Handler receives signaling events.
type Handler interface {
	OnAuthSuccess()
	OnPeerJoined(clientID string)
	OnPeerLeft(clientID string)
	OnSDPOffer(senderID string, sdp SDPPayload)
	OnSDPAnswer(senderID string, sdp SDPPayload)
	OnRemoteICECandidate(senderID string, candidate ICECandidatePayload)
	OnChat(p ChatPayload)
}

// message is the generic WebSocket message envelope.
type message struct {
	Method            string `json:"method"`
	Code              *int   `json:"code,omitempty"`
	Message           string `json:"message,omitempty"`
	ClientID          string `json:"clientId,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	ID                string `json:"id,omitempty"`
	Group             string `json:"group,omitempty"`
	RecipientClientID string `json:"recipientClientId,omitempty"`
	SenderClientID    string `json:"senderClientId,omitempty"`
	SessionID         string `json:"sessionId,omitempty"`
	MessageType       string `json:"messageType,omitempty"`
	MessagePayload    string `json:"messagePayload,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`
}

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	ticket    *api.Ticket
	userID    string
	sessionID string
	handler   Handler

	mu     sync.Mutex
	closed chan struct{}
}

// NewClient creates a signaling client. Connect must be called before any
// send.
func NewClient(ticket *api.Ticket, userID string, handler Handler) *Client {
	return &Client{
		ticket:    ticket,
		userID:    userID,
		sessionID: uuid.NewString(),
		handler:   handler,
		closed:    make(chan struct{}),
	}
}

// Connect dials the signaling WebSocket, authenticates, and starts the read
// and ping loops.
func (c *Client) Connect() error {
	u, err := url.Parse(c.ticket.SignalServer)
	if err != nil {
		return fmt.Errorf("parse signal server: %w", err)
	}
	u.Path = c.ticket.WebsocketPath

	log.Printf("[signal] connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.sendJSON(message{
		Method:      "AUTH",
		AccessToken: c.ticket.AccessToken,
		ID:          c.ticket.ID,
	})

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// Close shuts down the WebSocket connection.
func (c *Client) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// SendJoin announces presence in a signaling group.
func (c *Client) SendJoin(group string) {
	c.sendJSON(message{
		Method: "JOIN",
		ID:     c.ticket.ID,
		Group:  group,
	})
}

// SendSDPOffer relays an SDP offer to a peer.
func (c *Client) SendSDPOffer(recipientID, sdp string) {
	c.sendTransmit(recipientID, "SDP_OFFER", SDPPayload{Type: "offer", SDP: sdp})
}

// SendSDPAnswer relays an SDP answer to a peer.
func (c *Client) SendSDPAnswer(recipientID, sdp string) {
	c.sendTransmit(recipientID, "SDP_ANSWER", SDPPayload{Type: "answer", SDP: sdp})
}

// SendICECandidate relays a local ICE candidate to a peer.
func (c *Client) SendICECandidate(recipientID, sdpMid string, sdpMLineIndex int, candidate string) {
	c.sendTransmit(recipientID, "ICE_CANDIDATE", ICECandidatePayload{
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
		Candidate:     candidate,
	})
}

// SendChat relays a chat event to the thread's group.
func (c *Client) SendChat(p ChatPayload) {
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixMilli()
	}
	c.sendTransmit("", "CHAT", p)
}

func (c *Client) sendTransmit(recipientID, messageType string, payload any) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[signal] marshal %s payload: %v", messageType, err)
		return
	}
	c.sendJSON(message{
		Method:            "TRANSMIT",
		MessageType:       messageType,
		MessagePayload:    base64.StdEncoding.EncodeToString(payloadJSON),
		RecipientClientID: recipientID,
		SenderClientID:    c.ticket.ID,
		SessionID:         c.sessionID,
		Timestamp:         time.Now().UnixMilli(),
	})
}

func (c *Client) sendJSON(msg message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[signal] marshal error: %v", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[signal] write error: %v", err)
	}
}

func (c *Client) pingLoop() {
	interval := time.Duration(c.ticket.SignalPingInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				log.Printf("[signal] ping error: %v", err)
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				log.Printf("[signal] read error: %v", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[signal] unmarshal error: %v", err)
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	switch msg.Method {
	case "AUTH_RESPONSE":
		if msg.Code != nil && *msg.Code == 0 {
			log.Printf("[signal] auth successful")
			c.handler.OnAuthSuccess()
		} else {
			code := -1
			if msg.Code != nil {
				code = *msg.Code
			}
			log.Printf("[signal] auth failed: code=%d msg=%s", code, msg.Message)
		}

	case "PEER_IN":
		log.Printf("[signal] peer in: clientId=%s", msg.ClientID)
		c.handler.OnPeerJoined(msg.ClientID)

	case "PEER_OUT":
		log.Printf("[signal] peer out: clientId=%s", msg.ClientID)
		c.handler.OnPeerLeft(msg.ClientID)

	case "TRANSMIT":
		c.dispatchTransmit(msg)
	}
}

func (c *Client) dispatchTransmit(msg message) {
	decoded, err := base64.StdEncoding.DecodeString(msg.MessagePayload)
	if err != nil {
		log.Printf("[signal] decode %s: %v", msg.MessageType, err)
		return
	}

	switch msg.MessageType {
	case "SDP_OFFER", "SDP_ANSWER":
		var sdp SDPPayload
		if err := json.Unmarshal(decoded, &sdp); err != nil {
			log.Printf("[signal] unmarshal %s: %v", msg.MessageType, err)
			return
		}
		if msg.MessageType == "SDP_OFFER" {
			c.handler.OnSDPOffer(msg.SenderClientID, sdp)
		} else {
			c.handler.OnSDPAnswer(msg.SenderClientID, sdp)
		}

	case "ICE_CANDIDATE":
		var candidate ICECandidatePayload
		if err := json.Unmarshal(decoded, &candidate); err != nil {
			log.Printf("[signal] unmarshal ICE_CANDIDATE: %v", err)
			return
		}
		c.handler.OnRemoteICECandidate(msg.SenderClientID, candidate)

	case "CHAT":
		var p ChatPayload
		if err := json.Unmarshal(decoded, &p); err != nil {
			log.Printf("[signal] unmarshal CHAT: %v", err)
			return
		}
		c.handler.OnChat(p)
	}
}
