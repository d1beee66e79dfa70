package status

import (
	"sync"

	"vigil/internal/models"
)

const eventHistory = 100

// Hub is the shared read-model for the status API. Monitors publish into
// it after every tick; HTTP handlers and the WebSocket pusher read
// snapshots out. It is the only state shared across goroutines.
type Hub struct {
	mu       sync.RWMutex
	order    []string
	statuses map[string]models.TargetStatus
	events   []models.StateChange
}

func NewHub(targets []models.Target) *Hub {
	h := &Hub{statuses: make(map[string]models.TargetStatus, len(targets))}
	for _, t := range targets {
		h.order = append(h.order, t.Name)
		h.statuses[t.Name] = models.TargetStatus{
			Target:  t.Name,
			Address: t.Address,
			State:   models.StateHealthy,
		}
	}
	return h
}

func (h *Hub) PublishStatus(s models.TargetStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, known := h.statuses[s.Target]; !known {
		h.order = append(h.order, s.Target)
	}
	h.statuses[s.Target] = s
}

func (h *Hub) PublishChange(c models.StateChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, c)
	if len(h.events) > eventHistory {
		h.events = h.events[len(h.events)-eventHistory:]
	}
}

// Snapshot returns per-target statuses in configuration order.
func (h *Hub) Snapshot() []models.TargetStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.TargetStatus, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.statuses[name])
	}
	return out
}

// Events returns recent state transitions, oldest first.
func (h *Hub) Events() []models.StateChange {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.StateChange, len(h.events))
	copy(out, h.events)
	return out
}
