package session

import (
	"slices"
	"sync"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/pkg/logger"
)

// registry maps room ids to live transport subscription ids.
//
// Subscribe and unsubscribe are idempotent and never return errors to the
// caller; that idempotency is also what makes concurrent calls from multiple
// UI surfaces safe. The mutex is held across the transport call so two racing
// subscribes for the same room cannot both open a subscription.
type registry struct {
	mu   sync.Mutex
	subs map[int64]string
}

func newRegistry() *registry {
	return &registry{subs: make(map[int64]string)}
}

func (r *registry) subscribe(roomID int64, open func() (string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[roomID]; ok {
		logger.Debugf("session: already subscribed to room %d", roomID)
		return
	}
	id, err := open()
	if err != nil {
		logger.Warnf("session: subscribe to room %d failed: %v", roomID, err)
		return
	}
	r.subs[roomID] = id
}

func (r *registry) unsubscribe(roomID int64, close func(id string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.subs[roomID]
	if !ok {
		return
	}
	delete(r.subs, roomID)
	if err := close(id); err != nil {
		logger.Warnf("session: unsubscribe from room %d failed: %v", roomID, err)
	}
}

func (r *registry) rooms() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.subs))
	for roomID := range r.subs {
		out = append(out, roomID)
	}
	slices.Sort(out)
	return out
}

// clear forgets every tracked subscription without touching the transport.
// Used when the connection drops and the broker no longer considers the
// subscriptions live.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[int64]string)
}
