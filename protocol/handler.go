package protocol

import (
	"log/slog"

	"voicerelay/domain"
)

type Recorder interface {
	RecordRelayed(kind string, bytes int, d domain.Delivery)
	RecordProbeAnswered()
}

// Handler forwards every inbound payload unmodified to the rest of the
// sender's channel. When answerProbes is set, PING messages are answered by
// the relay itself and not forwarded.
type Handler struct {
	broadcaster  domain.Broadcaster
	recorder     Recorder
	answerProbes bool
}

type Option func(*Handler)

func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

func WithProbeAnswering(enabled bool) Option {
	return func(h *Handler) { h.answerProbes = enabled }
}

func NewHandler(b domain.Broadcaster, opts ...Option) *Handler {
	h := &Handler{broadcaster: b}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Handle(conn domain.Session, p domain.Payload) {
	if h.answerProbes {
		if c := ParseControl(p); c.Kind == Probe {
			if err := conn.Send(NewProbeAck(c.Timestamp)); err != nil {
				slog.Debug("probe answer failed", "sessionId", conn.ID(), "error", err)
			}
			if h.recorder != nil {
				h.recorder.RecordProbeAnswered()
			}
			return
		}
	}

	d := h.broadcaster.Broadcast(conn, p)
	if h.recorder != nil {
		h.recorder.RecordRelayed(p.Kind.String(), len(p.Data), d)
	}
}
