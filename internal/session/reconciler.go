package session

import (
	"sync"
	"time"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/transport"
)

// reconcileWindow bounds the heuristic match between an optimistic send and a
// confirmed message that does not echo a correlation key. Unkeyed pending
// entries older than the window are treated as distinct, never-confirmed
// messages.
const reconcileWindow = 5 * time.Second

// pendingTTL bounds how long a keyed pending entry is retained. A correlation
// key echo is authoritative, so it may reconcile well past the heuristic
// window (a confirmation held up behind a reconnect backlog, say); the TTL
// only caps memory for sends the broker never confirms.
const pendingTTL = 2 * time.Minute

// pendingSend is one optimistic message awaiting server confirmation.
type pendingSend struct {
	localID        string
	correlationKey string
	text           string
	createdAt      int64 // epoch millis
}

// reconciler tracks optimistic sends per room and matches them against
// confirmed self-authored messages arriving through the router.
type reconciler struct {
	clock transport.Clock

	mu      sync.Mutex
	pending map[int64][]pendingSend
}

func newReconciler(clock transport.Clock) *reconciler {
	return &reconciler{
		clock:   clock,
		pending: make(map[int64][]pendingSend),
	}
}

func (r *reconciler) track(roomID int64, p pendingSend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[roomID] = append(r.pending[roomID], p)
}

// resolve matches a confirmed self-authored message against the room's
// pending optimistic sends and returns the local id it replaces.
//
// A correlation key echoed by the broker is authoritative. Without one, the
// fallback matches the oldest unmatched entry with identical text created
// within the reconcile window. No match means the message is a genuinely new
// entry and the caller appends it.
func (r *reconciler) resolve(roomID int64, msg *ChatMessage) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.prune(roomID)
	if len(queue) == 0 {
		return "", false
	}

	match := -1
	if msg.CorrelationKey != "" {
		for i, p := range queue {
			if p.correlationKey == msg.CorrelationKey {
				match = i
				break
			}
		}
	} else {
		window := reconcileWindow.Milliseconds()
		for i, p := range queue {
			if p.text == msg.Text && absMillis(msg.CreatedAtEpoch-p.createdAt) <= window {
				match = i
				break
			}
		}
	}
	if match < 0 {
		return "", false
	}

	localID := queue[match].localID
	r.pending[roomID] = append(queue[:match:match], queue[match+1:]...)
	return localID, true
}

// forget drops the pending entry carrying the given correlation key, if any.
func (r *reconciler) forget(roomID int64, correlationKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.pending[roomID]
	for i, p := range queue {
		if p.correlationKey == correlationKey {
			queue = append(queue[:i:i], queue[i+1:]...)
			if len(queue) == 0 {
				delete(r.pending, roomID)
			} else {
				r.pending[roomID] = queue
			}
			return
		}
	}
}

// prune drops expired entries for a room and returns the remaining queue.
// Keyed entries live for pendingTTL, unkeyed ones for the heuristic window.
// Caller must hold r.mu.
func (r *reconciler) prune(roomID int64) []pendingSend {
	now := r.clock.Now().UnixMilli()
	queue := r.pending[roomID]
	kept := queue[:0]
	for _, p := range queue {
		ttl := reconcileWindow
		if p.correlationKey != "" {
			ttl = pendingTTL
		}
		if now-p.createdAt <= ttl.Milliseconds() {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(r.pending, roomID)
		return nil
	}
	r.pending[roomID] = kept
	return kept
}

func absMillis(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}
