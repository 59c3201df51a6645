// Package wire holds the JSON payload types exchanged with the chat broker.
//
// The schema is owned by the counterpart service; decoding is fail-closed and
// tolerant of unknown fields, per the broker contract.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// EndpointPath is the websocket endpoint path of the chat broker.
	EndpointPath = "/ws-stomp"
	// PublishDestination is the well-known outbound publish address.
	PublishDestination = "/pub/chat.message"

	// roomDestinationPrefix is the inbound subscribe topic prefix; the room id
	// is the final path segment.
	roomDestinationPrefix = "/sub/chatroom/"
)

// OutboundMessage is the payload published to PublishDestination.
//
// The four contract fields must stay exactly as the counterpart expects them.
// CorrelationKey is an additive optional field used to reconcile the local
// optimistic echo with the server-confirmed message.
type OutboundMessage struct {
	ChatRoomID     int64  `json:"chatRoomId"`
	SenderRole     string `json:"senderRole"`
	SenderID       string `json:"senderId"`
	Message        string `json:"message"`
	CorrelationKey string `json:"correlationKey,omitempty"`
}

// Encode marshals the outbound payload.
func (m *OutboundMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// InboundMessage is the payload delivered on a room subscription.
type InboundMessage struct {
	ChatRoomID     int64  `json:"chatRoomId"`
	SenderID       string `json:"senderId"`
	SenderRole     string `json:"senderRole"`
	Message        string `json:"message"`
	MessageID      string `json:"messageId,omitempty"`
	CorrelationKey string `json:"correlationKey,omitempty"`
	// CreatedAt is the server-side creation time in epoch milliseconds.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// DecodeInbound parses a broker frame body into an InboundMessage.
//
// Decoding fails closed: a body that is not valid JSON or that is missing the
// room id or sender identity is rejected so the router can drop the frame.
func DecodeInbound(body []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("malformed message payload: %w", err)
	}
	if msg.ChatRoomID <= 0 {
		return nil, fmt.Errorf("message payload missing chatRoomId")
	}
	if msg.SenderID == "" {
		return nil, fmt.Errorf("message payload missing senderId")
	}
	return &msg, nil
}

// RoomDestination returns the subscribe topic for a room.
func RoomDestination(roomID int64) string {
	return roomDestinationPrefix + strconv.FormatInt(roomID, 10)
}

// RoomFromDestination extracts the room id from an inbound topic.
func RoomFromDestination(destination string) (int64, bool) {
	raw, found := strings.CutPrefix(destination, roomDestinationPrefix)
	if !found {
		return 0, false
	}
	roomID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || roomID <= 0 {
		return 0, false
	}
	return roomID, true
}
