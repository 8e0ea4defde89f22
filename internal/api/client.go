// Package api fetches signaling tickets from the call service HTTP API.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const defaultTicketPath = "/v1/calling/ticket"

// Ticket holds signaling credentials and ICE server configuration returned
// by the call service.
type Ticket struct {
	ID                 string      `json:"id"`
	GroupID            string      `json:"groupId"`
	AccessToken        string      `json:"accessToken"`
	SignalServer       string      `json:"signalServer"`
	WebsocketPath      string      `json:"websocketPath"`
	SignalPingInterval int         `json:"signalPingInterval"`
	ICEServers         []ICEServer `json:"iceServers"`
	ExpirationTime     int64       `json:"expirationTime"`
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

type ticketRequest struct {
	UserID    string `json:"userId"`
	RequestID string `json:"requestId"`
}

type ticketResponse struct {
	Result int    `json:"result"`
	Msg    string `json:"msg"`
	Data   Ticket `json:"data"`
}

// Client fetches tickets from the call service.
type Client struct {
	baseURL string
}

// NewClient creates an API client against the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

// FetchTicket obtains signaling credentials and ICE servers for a user.
func (c *Client) FetchTicket(token, userID string) (*Ticket, error) {
	req := ticketRequest{
		UserID:    userID,
		RequestID: uuid.NewString(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+defaultTicketPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var ticketResp ticketResponse
	if err := json.Unmarshal(respBody, &ticketResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if ticketResp.Result != 0 {
		return nil, fmt.Errorf("API error (result=%d): %s", ticketResp.Result, ticketResp.Msg)
	}

	return &ticketResp.Data, nil
}
