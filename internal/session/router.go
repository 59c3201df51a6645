package session

import (
	"slices"

	"github.com/google/uuid"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/wire"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/pkg/logger"
)

// routeFrame classifies one inbound broker frame and dispatches it to the
// registered message handlers.
//
// Failure policy per frame: decode errors and an unset identity drop the
// frame with a log line and never touch the subscription or the connection.
func (m *Manager) routeFrame(destination, subscription string, body []byte) {
	payload, err := wire.DecodeInbound(body)
	if err != nil {
		logger.Warnf("session: dropping frame from %q: %v", destination, err)
		return
	}
	roomID := payload.ChatRoomID
	if want, ok := wire.RoomFromDestination(destination); ok && want != roomID {
		logger.Debugf("session: frame destination %q disagrees with payload room %d", destination, roomID)
	}

	m.mu.RLock()
	identity := m.identity
	m.mu.RUnlock()
	if identity == nil {
		// Classification must never guess; without an identity the frame is
		// unusable.
		logger.Warnf("session: dropping frame for room %d: identity not set", roomID)
		return
	}

	msg := m.buildMessage(identity, payload)
	if msg.AuthorRole == AuthorMe {
		if localID, ok := m.reconciler.resolve(roomID, &msg); ok {
			msg.ReplacesLocalID = localID
		}
	}

	m.handlerMu.RLock()
	handlers := slices.Clone(m.msgHandlers)
	m.handlerMu.RUnlock()
	for _, h := range handlers {
		h(msg, roomID)
	}
}

// buildMessage turns a decoded payload into a classified ChatMessage.
//
// The payload's senderRole is carried on the wire but does not decide
// me/partner; only equality with the session identity's user id does.
func (m *Manager) buildMessage(identity *Identity, payload *wire.InboundMessage) ChatMessage {
	author := AuthorPartner
	if payload.SenderID == identity.UserID {
		author = AuthorMe
	}

	createdAt := payload.CreatedAt
	if createdAt == 0 {
		createdAt = m.clock.Now().UnixMilli()
	}

	id := payload.MessageID
	if id == "" {
		// Older brokers omit the message id; synthesize one in the server id
		// space so the message is still addressable.
		id = uuid.NewString()
	}

	return ChatMessage{
		ID:             id,
		AuthorRole:     author,
		Text:           payload.Message,
		SentAtLabel:    TimeLabel(createdAt),
		CreatedAtEpoch: createdAt,
		Read:           false,
		CorrelationKey: payload.CorrelationKey,
	}
}
