package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"social-backend/internal/models"
)

// Registry maps user ids to their live connection. At most one handle per
// user; the most recent Connect wins.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Handle)}
}

// Connect registers or replaces the handle for userID and broadcasts the roster.
func (r *Registry) Connect(userID string, h *Handle) {
	h.start(userID)

	r.mu.Lock()
	r.byUser[userID] = h
	r.mu.Unlock()

	log.Debug().Str("user", userID).Str("conn", h.ID).Msg("user connected")
	r.BroadcastAll(models.EventGetOnlineUsers, r.Online())
}

// Disconnect closes h and removes the entry that still points at it. A
// handle that was already replaced by a newer connection leaves the mapping
// untouched. The roster is broadcast either way.
func (r *Registry) Disconnect(h *Handle) bool {
	userID := h.UserID()

	r.mu.Lock()
	current, ok := r.byUser[userID]
	removed := ok && current == h
	if removed {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	h.Close()
	log.Debug().Str("user", userID).Str("conn", h.ID).Bool("removed", removed).Msg("user disconnected")
	r.BroadcastAll(models.EventGetOnlineUsers, r.Online())
	return removed
}

func (r *Registry) Lookup(userID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

// Online returns the sorted ids of connected users.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// EmitTo queues an event for the user's live connection without waiting for
// the write. Offline users and closed or overloaded connections are not
// errors; false is returned.
func (r *Registry) EmitTo(userID, event string, payload interface{}) bool {
	h, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := h.Emit(event, payload); err != nil {
		log.Debug().Err(err).Str("user", userID).Str("event", event).Msg("not delivered")
		return false
	}
	return true
}

// BroadcastAll pushes an event to every connected user.
func (r *Registry) BroadcastAll(event string, payload interface{}) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.byUser))
	for _, h := range r.byUser {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		if err := h.Emit(event, payload); err != nil {
			log.Debug().Err(err).Str("conn", h.ID).Str("event", event).Msg("broadcast delivery failed")
		}
	}
}
