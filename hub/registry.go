package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"voicerelay/domain"
)

// Registry is the membership set of one voice channel. Broadcast iterates a
// snapshot taken under the read lock, so concurrent Register/Unregister never
// disturb an in-flight fan-out.
type Registry struct {
	name     string
	sessions map[string]domain.Session
	mu       sync.RWMutex
}

func NewRegistry(name string) *Registry {
	return &Registry{
		name:     name,
		sessions: make(map[string]domain.Session),
	}
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) Register(s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		return domain.ErrAlreadyRegistered
	}
	r.sessions[s.ID()] = s
	return nil
}

// Unregister removes s and reports whether it was present. Removing an
// absent session is a no-op.
func (r *Registry) Unregister(s domain.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; !exists {
		return false
	}
	delete(r.sessions, s.ID())
	return true
}

func (r *Registry) Broadcast(origin domain.Session, p domain.Payload) domain.Delivery {
	var d domain.Delivery
	for _, s := range r.Sessions() {
		if s.ID() == origin.ID() {
			continue
		}
		d.Recipients++
		if err := s.Send(p); err != nil {
			d.Failed++
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrSessionClosed) || errors.Is(err, domain.ErrBackpressure) {
				level = slog.LevelDebug
			}
			slog.Log(context.Background(), level, "delivery failed",
				"channel", r.name, "from", origin.ID(), "to", s.ID(), "error", err)
		}
	}
	return d
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Sessions() []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
