// Package session implements the chat session core: the room subscription
// registry, inbound message routing and classification, optimistic send
// reconciliation, and the manager façade applications talk to.
package session

import (
	"strings"
	"time"
)

// Role is the marketplace-side role of a chat participant.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
)

// Valid reports whether the role is one of the two marketplace roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleOwner
}

// AuthorRole classifies a message relative to the session identity.
type AuthorRole string

const (
	AuthorMe      AuthorRole = "me"
	AuthorPartner AuthorRole = "partner"
)

// Identity is the user the session classifies messages against. It must be
// set before connect/subscribe for classification to be correct; the session
// never reclassifies already-delivered messages.
type Identity struct {
	UserID string
	Role   Role
}

// LocalIDPrefix marks optimistic message ids. Server-issued ids never carry
// it, so the two id spaces cannot collide.
const LocalIDPrefix = "local-"

// IsLocalID reports whether id belongs to the optimistic id space.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// ChatMessage is one classified chat message as delivered to the application.
type ChatMessage struct {
	// ID is the server-issued identifier, or a LocalIDPrefix id for an
	// optimistic message awaiting confirmation.
	ID         string
	AuthorRole AuthorRole
	Text       string
	// SentAtLabel is the presentation time label ("15:04") derived from
	// CreatedAtEpoch.
	SentAtLabel string
	// CreatedAtEpoch is the creation time in epoch milliseconds.
	CreatedAtEpoch int64
	Read           bool
	// CorrelationKey links an optimistic send to its confirmed counterpart
	// when the broker echoes it back.
	CorrelationKey string
	// ReplacesLocalID is set on a confirmed message that reconciled against
	// an optimistic entry; ApplyIncoming swaps the entry in place.
	ReplacesLocalID string
}

// TimeLabel formats an epoch-millisecond timestamp as the presentation time
// label used for grouping.
func TimeLabel(epochMilli int64) string {
	return time.UnixMilli(epochMilli).Format("15:04")
}

// ApplyIncoming merges a routed message into a caller-owned room message
// list. A confirmed message that reconciled against an optimistic entry
// replaces it in place (same position; server id, read flag and timestamps
// win). Two entries sharing a correlation key are the same logical message
// regardless of which arrived first: a confirmed one replaces the optimistic
// one, and an optimistic one arriving after its confirmation is dropped.
// Everything else is appended. The core never reorders the list.
func ApplyIncoming(list []ChatMessage, msg ChatMessage) []ChatMessage {
	if msg.ReplacesLocalID != "" {
		for i := range list {
			if list[i].ID == msg.ReplacesLocalID {
				msg.ReplacesLocalID = ""
				list[i] = msg
				return list
			}
		}
	}
	msg.ReplacesLocalID = ""
	if msg.CorrelationKey != "" {
		for i := range list {
			if list[i].CorrelationKey != msg.CorrelationKey {
				continue
			}
			// The confirmation raced ahead of the caller's local append.
			if IsLocalID(msg.ID) && !IsLocalID(list[i].ID) {
				return list
			}
			list[i] = msg
			return list
		}
	}
	return append(list, msg)
}
