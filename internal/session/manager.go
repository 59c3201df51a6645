package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/transport"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/wire"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/pkg/logger"
)

// Transport is the broker connection surface the session core needs.
// *transport.Handle implements it.
type Transport interface {
	Connect() error
	Disconnect() error
	Subscribe(destination string) (id string, err error)
	Unsubscribe(id string) error
	Send(destination, contentType string, body []byte) error
	IsConnected() bool

	OnFrame(fn func(destination, subscription string, body []byte))
	OnConnect(fn func())
	OnError(fn func(error))
	OnClose(fn func(error))
}

var _ Transport = (*transport.Handle)(nil)

// MessageHandler receives every classified inbound message with its room id.
// Handlers run on the transport's delivery goroutine in registration order
// and must not block.
type MessageHandler func(msg ChatMessage, roomID int64)

// Manager is the chat session façade. One Manager is shared process-wide by
// every surface that needs chat; all methods are safe for concurrent use.
type Manager struct {
	transport Transport
	clock     transport.Clock

	mu       sync.RWMutex
	identity *Identity

	registry   *registry
	reconciler *reconciler

	handlerMu       sync.RWMutex
	msgHandlers     []MessageHandler
	errHandlers     []func(error)
	closeHandlers   []func(error)
	connectHandlers []func()
}

// NewManager creates a session manager over the given transport. A nil clock
// falls back to the real clock.
func NewManager(tr Transport, clock transport.Clock) *Manager {
	if clock == nil {
		clock = transport.RealClock{}
	}
	m := &Manager{
		transport:  tr,
		clock:      clock,
		registry:   newRegistry(),
		reconciler: newReconciler(clock),
	}
	tr.OnFrame(m.routeFrame)
	tr.OnConnect(m.handleConnect)
	tr.OnError(m.handleError)
	tr.OnClose(m.handleClose)
	return m
}

// SetIdentity sets the identity inbound classification and outbound sends run
// against. Call it before Connect/Subscribe; messages delivered earlier are
// never reclassified.
func (m *Manager) SetIdentity(userID string, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = &Identity{UserID: userID, Role: role}
}

// Identity returns the active identity, if one has been set.
func (m *Manager) Identity() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return Identity{}, false
	}
	return *m.identity, true
}

// Connect establishes the broker connection. Idempotent while connected.
func (m *Manager) Connect() error {
	return m.transport.Connect()
}

// Disconnect unsubscribes every tracked room (best effort) and releases the
// connection. Safe to call when already disconnected.
func (m *Manager) Disconnect() error {
	for _, roomID := range m.registry.rooms() {
		m.Unsubscribe(roomID)
	}
	return m.transport.Disconnect()
}

// IsConnected reports whether the broker connection is live.
func (m *Manager) IsConnected() bool {
	return m.transport.IsConnected()
}

// Subscribe opens the room's inbound subscription. Requires a live
// connection; when disconnected it warns and returns, it does not queue.
// Subscribing a room twice is a no-op.
func (m *Manager) Subscribe(roomID int64) {
	if !m.transport.IsConnected() {
		logger.Warnf("session: subscribe to room %d ignored, not connected", roomID)
		return
	}
	m.registry.subscribe(roomID, func() (string, error) {
		return m.transport.Subscribe(wire.RoomDestination(roomID))
	})
}

// Unsubscribe closes the room's subscription. Unknown rooms are a no-op.
func (m *Manager) Unsubscribe(roomID int64) {
	m.registry.unsubscribe(roomID, func(id string) error {
		return m.transport.Unsubscribe(id)
	})
}

// ListSubscribedRooms returns the currently subscribed room ids, sorted.
func (m *Manager) ListSubscribedRooms() []int64 {
	return m.registry.rooms()
}

// Send publishes text to a room and returns the optimistic local echo for
// immediate display. The boolean is false when the session is not connected;
// nothing is queued or retried in that case.
//
// The publish itself is fire and forget: true means the attempt was
// dispatched, not that the broker stored the message. The echo is reconciled
// against the confirmed message later; see reconciler.resolve.
func (m *Manager) Send(roomID int64, role Role, senderID, text string) (ChatMessage, bool) {
	if !m.transport.IsConnected() {
		logger.Warnf("session: send to room %d ignored, not connected", roomID)
		return ChatMessage{}, false
	}

	now := m.clock.Now().UnixMilli()
	key := uuid.NewString()
	local := ChatMessage{
		ID:             LocalIDPrefix + uuid.NewString(),
		AuthorRole:     AuthorMe,
		Text:           text,
		SentAtLabel:    TimeLabel(now),
		CreatedAtEpoch: now,
		Read:           false,
		CorrelationKey: key,
	}
	m.reconciler.track(roomID, pendingSend{
		localID:        local.ID,
		correlationKey: key,
		text:           text,
		createdAt:      now,
	})

	payload := &wire.OutboundMessage{
		ChatRoomID:     roomID,
		SenderRole:     string(role),
		SenderID:       senderID,
		Message:        text,
		CorrelationKey: key,
	}
	body, err := payload.Encode()
	if err != nil {
		// No publish attempt was dispatched, so the echo must not be shown
		// and nothing can ever reconcile against it.
		logger.Errorf("session: encode outbound message for room %d: %v", roomID, err)
		m.reconciler.forget(roomID, key)
		return ChatMessage{}, false
	}
	if err := m.transport.Send(wire.PublishDestination, "application/json", body); err != nil {
		logger.Warnf("session: publish to room %d failed: %v", roomID, err)
	}
	return local, true
}

// OnMessage registers a handler for classified inbound messages.
func (m *Manager) OnMessage(h MessageHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.msgHandlers = append(m.msgHandlers, h)
}

// OnError registers a handler for transport and broker errors.
func (m *Manager) OnError(h func(error)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.errHandlers = append(m.errHandlers, h)
}

// OnClose registers a handler invoked when an established connection drops.
// By the time it runs the subscription registry has been cleared.
func (m *Manager) OnClose(h func(error)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.closeHandlers = append(m.closeHandlers, h)
}

// OnConnect registers a handler invoked after the initial connect and after
// every successful reconnect. Subscriptions do not survive a drop, so this is
// where callers resubscribe their rooms.
func (m *Manager) OnConnect(h func()) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.connectHandlers = append(m.connectHandlers, h)
}

func (m *Manager) handleConnect() {
	m.handlerMu.RLock()
	handlers := slices.Clone(m.connectHandlers)
	m.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (m *Manager) handleError(err error) {
	m.handlerMu.RLock()
	handlers := slices.Clone(m.errHandlers)
	m.handlerMu.RUnlock()
	for _, h := range handlers {
		h(err)
	}
}

func (m *Manager) handleClose(cause error) {
	// The broker no longer considers the subscriptions live.
	m.registry.clear()
	m.handlerMu.RLock()
	handlers := slices.Clone(m.closeHandlers)
	m.handlerMu.RUnlock()
	for _, h := range handlers {
		h(cause)
	}
}
