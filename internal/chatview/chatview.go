// Package chatview computes presentation-only facts from an ordered room
// message list: the read-receipt anchor and per-message grouping flags.
// Everything here is a pure function over caller-owned state.
package chatview

import (
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/session"
)

// ReadReceiptID returns the id of the single message that should carry the
// "read" marker.
//
// A receipt only appears while the conversation's last word belongs to the
// counterpart: if the final message is partner-authored, the anchor is the
// most recent self-authored message the counterpart has seen (read == true).
// Otherwise no receipt is shown and ok is false.
func ReadReceiptID(msgs []session.ChatMessage) (id string, ok bool) {
	if len(msgs) == 0 {
		return "", false
	}
	if msgs[len(msgs)-1].AuthorRole != session.AuthorPartner {
		return "", false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].AuthorRole == session.AuthorMe && msgs[i].Read {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// Flags are the per-message presentation booleans used for rendering.
type Flags struct {
	// ShowPartnerAvatar is true on the first message of each consecutive
	// partner-authored run.
	ShowPartnerAvatar bool
	// ShowTimeLabel is true on the last message of each run sharing the same
	// author and time label; earlier messages collapse their timestamp into
	// it.
	ShowTimeLabel bool
}

// GroupFlags computes Flags for every message in the ordered list.
func GroupFlags(msgs []session.ChatMessage) []Flags {
	flags := make([]Flags, len(msgs))
	for i := range msgs {
		if msgs[i].AuthorRole == session.AuthorPartner {
			flags[i].ShowPartnerAvatar = i == 0 || msgs[i-1].AuthorRole != session.AuthorPartner
		}
		flags[i].ShowTimeLabel = i == len(msgs)-1 ||
			msgs[i+1].AuthorRole != msgs[i].AuthorRole ||
			msgs[i+1].SentAtLabel != msgs[i].SentAtLabel
	}
	return flags
}
