package hub

import (
	"log/slog"
	"sync"

	"voicerelay/domain"
)

const DefaultChannel = "default"

// Hub maps voice channel names to their Registries. A channel exists while it
// has at least one member.
type Hub struct {
	channels map[string]*Registry
	mu       sync.RWMutex
}

func New() *Hub {
	return &Hub{
		channels: make(map[string]*Registry),
	}
}

func (h *Hub) Register(s domain.Session) error {
	h.mu.Lock()
	r, exists := h.channels[s.Channel()]
	if !exists {
		r = NewRegistry(s.Channel())
		h.channels[s.Channel()] = r
	}
	err := r.Register(s)
	count := r.Len()
	if err != nil && count == 0 {
		delete(h.channels, s.Channel())
	}
	h.mu.Unlock()

	if err != nil {
		return err
	}
	slog.Info("session registered", "channel", s.Channel(), "sessionId", s.ID(),
		"remoteAddr", s.RemoteAddr(), "sessions", count)
	return nil
}

func (h *Hub) Unregister(s domain.Session) bool {
	h.mu.Lock()
	r, exists := h.channels[s.Channel()]
	if !exists {
		h.mu.Unlock()
		return false
	}
	removed := r.Unregister(s)
	count := r.Len()
	if count == 0 {
		delete(h.channels, s.Channel())
	}
	h.mu.Unlock()

	if !removed {
		return false
	}
	slog.Info("session unregistered", "channel", s.Channel(), "sessionId", s.ID(), "sessions", count)
	if count == 0 {
		slog.Info("channel removed", "channel", s.Channel())
	}
	return true
}

func (h *Hub) Broadcast(origin domain.Session, p domain.Payload) domain.Delivery {
	h.mu.RLock()
	r, exists := h.channels[origin.Channel()]
	h.mu.RUnlock()

	if !exists {
		return domain.Delivery{}
	}
	return r.Broadcast(origin, p)
}

// Channel returns the Registry for name, or nil when the channel is empty.
func (h *Hub) Channel(name string) *Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels[name]
}

func (h *Hub) Stats() (channels, sessions int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channels = len(h.channels)
	for _, r := range h.channels {
		sessions += r.Len()
	}
	return channels, sessions
}
