package websocket

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicerelay/domain"
)

const defaultChannel = "default"

// Server upgrades HTTP requests to relay sessions.
type Server struct {
	upgrader    websocket.Upgrader
	broadcaster domain.Broadcaster
	handler     domain.MessageHandler
	observer    SessionObserver
	opts        Options
}

func NewServer(b domain.Broadcaster, h domain.MessageHandler, opts Options, observer SessionObserver) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcaster: b,
		handler:     h,
		observer:    observer,
		opts:        opts.withDefaults(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Accept(w, r)
}

// Accept upgrades the request and starts the session. It returns the
// session, or nil when the upgrade or registration failed.
func (s *Server) Accept(w http.ResponseWriter, r *http.Request) *Conn {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "remoteAddr", r.RemoteAddr, "error", err)
		return nil
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = defaultChannel
	}

	conn := NewConn(uuid.New().String(), channel, ws, s.broadcaster, s.handler, s.opts)
	conn.observer = s.observer
	if err := conn.Start(); err != nil {
		slog.Error("register error", "sessionId", conn.ID(), "error", err)
		return nil
	}
	return conn
}
