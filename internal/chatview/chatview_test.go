package chatview

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/session"
)

func msg(id string, author session.AuthorRole, read bool, label string) session.ChatMessage {
	return session.ChatMessage{ID: id, AuthorRole: author, Read: read, SentAtLabel: label}
}

func TestReadReceiptAnchorsLastReadOwnMessage(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorMe, false, "10:00"),
		msg("b", session.AuthorPartner, false, "10:01"),
		msg("c", session.AuthorMe, true, "10:02"),
		msg("d", session.AuthorPartner, false, "10:03"),
	}
	id, ok := ReadReceiptID(msgs)
	require.True(t, ok)
	require.Equal(t, "c", id)
}

func TestReadReceiptNoneWhenLastWordIsMine(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorMe, true, "10:00"),
	}
	_, ok := ReadReceiptID(msgs)
	require.False(t, ok)

	msgs = append(msgs,
		msg("b", session.AuthorPartner, false, "10:01"),
		msg("c", session.AuthorMe, true, "10:02"),
	)
	_, ok = ReadReceiptID(msgs)
	require.False(t, ok)
}

func TestReadReceiptEmptyList(t *testing.T) {
	_, ok := ReadReceiptID(nil)
	require.False(t, ok)
}

func TestReadReceiptNoReadOwnMessage(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorMe, false, "10:00"),
		msg("b", session.AuthorPartner, false, "10:01"),
	}
	_, ok := ReadReceiptID(msgs)
	require.False(t, ok)
}

func TestGroupFlagsTimeLabelCollapse(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorMe, false, "10:00"),
		msg("b", session.AuthorMe, false, "10:00"),
		msg("c", session.AuthorMe, false, "10:00"),
		msg("d", session.AuthorPartner, false, "10:00"),
	}
	flags := GroupFlags(msgs)
	require.Len(t, flags, 4)

	// Only the last of the three "me" messages at 10:00 shows the label; the
	// partner message is its own run and is evaluated independently.
	require.False(t, flags[0].ShowTimeLabel)
	require.False(t, flags[1].ShowTimeLabel)
	require.True(t, flags[2].ShowTimeLabel)
	require.True(t, flags[3].ShowTimeLabel)
}

func TestGroupFlagsTimeLabelSplitsOnLabelChange(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorMe, false, "10:00"),
		msg("b", session.AuthorMe, false, "10:01"),
	}
	flags := GroupFlags(msgs)
	require.True(t, flags[0].ShowTimeLabel)
	require.True(t, flags[1].ShowTimeLabel)
}

func TestGroupFlagsPartnerAvatarOncePerRun(t *testing.T) {
	msgs := []session.ChatMessage{
		msg("a", session.AuthorPartner, false, "10:00"),
		msg("b", session.AuthorPartner, false, "10:00"),
		msg("c", session.AuthorMe, false, "10:00"),
		msg("d", session.AuthorPartner, false, "10:01"),
	}
	flags := GroupFlags(msgs)
	require.True(t, flags[0].ShowPartnerAvatar)
	require.False(t, flags[1].ShowPartnerAvatar)
	require.False(t, flags[2].ShowPartnerAvatar)
	require.True(t, flags[3].ShowPartnerAvatar)
}

func TestGroupFlagsEmpty(t *testing.T) {
	require.Empty(t, GroupFlags(nil))
}
