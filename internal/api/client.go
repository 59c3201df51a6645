// Package api is the REST client for the marketplace chat collaborators:
// room listing, message-history backfill, mark-as-read persistence, room
// deletion, and identity lookup. The real-time path never goes through here.
package api

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

// Room is one chat thread between a customer and a business owner.
type Room struct {
	ChatRoomID  int64  `json:"chatRoomId"`
	PartnerName string `json:"partnerName"`
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	LastMessage string `json:"lastMessage"`
	UnreadCount int    `json:"unreadCount"`
}

// HistoryMessage is one persisted message from the backfill endpoint.
type HistoryMessage struct {
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	SenderRole string `json:"senderRole"`
	Message    string `json:"message"`
	CreatedAt  int64  `json:"createdAt"`
	Read       bool   `json:"read"`
}

// HistoryPage is one page of message history. Pagination is owned by the
// caller.
type HistoryPage struct {
	Messages []HistoryMessage `json:"messages"`
	Page     int              `json:"page"`
	HasNext  bool             `json:"hasNext"`
}

// User is the authenticated marketplace user.
type User struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// Client talks to the marketplace REST API with bearer auth.
type Client struct {
	http *resty.Client
}

// New creates a REST client for the given base URL and access token.
func New(baseURL, token string) *Client {
	httpc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: httpc}
}

// ListRooms fetches the caller's chat rooms, optionally filtered by product
// category.
func (c *Client) ListRooms(ctx context.Context, category string) ([]Room, error) {
	var out struct {
		Rooms []Room `json:"rooms"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if category != "" {
		req.SetQueryParam("category", category)
	}
	resp, err := req.Get("/api/v1/chat/rooms")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list rooms: %s", resp.Status())
	}
	return out.Rooms, nil
}

// Messages fetches one page of message history for a room.
func (c *Client) Messages(ctx context.Context, roomID int64, page, size int) (*HistoryPage, error) {
	var out HistoryPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		SetQueryParam("size", fmt.Sprintf("%d", size)).
		SetResult(&out).
		Get(fmt.Sprintf("/api/v1/chat/rooms/%d/messages", roomID))
	if err != nil {
		return nil, fmt.Errorf("room %d messages: %w", roomID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("room %d messages: %s", roomID, resp.Status())
	}
	return &out, nil
}

// MarkRead persists that the caller has read the room up to now.
func (c *Client) MarkRead(ctx context.Context, roomID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/api/v1/chat/rooms/%d/read", roomID))
	if err != nil {
		return fmt.Errorf("mark room %d read: %w", roomID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mark room %d read: %s", roomID, resp.Status())
	}
	return nil
}

// DeleteRoom deletes a chat room.
func (c *Client) DeleteRoom(ctx context.Context, roomID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/api/v1/chat/rooms/%d", roomID))
	if err != nil {
		return fmt.Errorf("delete room %d: %w", roomID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete room %d: %s", roomID, resp.Status())
	}
	return nil
}

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/users/me")
	if err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch current user: %s", resp.Status())
	}
	return &out, nil
}
