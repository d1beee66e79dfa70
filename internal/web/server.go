package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"vigil/internal/status"
)

// Resetter is the one monitor operation the API may trigger.
type Resetter interface {
	Reset()
}

type Server struct {
	hub      *status.Hub
	monitors map[string]Resetter
	log      *slog.Logger

	pushInterval time.Duration
}

func NewServer(hub *status.Hub, monitors map[string]Resetter, logger *slog.Logger) *Server {
	return &Server{hub: hub, monitors: monitors, log: logger, pushInterval: 5 * time.Second}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/targets/", s.handleTargetSubroutes)
	mux.HandleFunc("/ws", s.handleWS)
	return logMiddleware(mux, s.log)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC(),
		"targets":      s.hub.Snapshot(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.hub.Events()})
}

// handleTargetSubroutes serves /api/targets/{name}/reset.
func (s *Server) handleTargetSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "reset" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad target name", http.StatusBadRequest)
		return
	}
	m, ok := s.monitors[name]
	if !ok {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}
	m.Reset()
	s.log.Info("reset requested", "target", name)
	writeJSON(w, http.StatusAccepted, map[string]any{"target": name, "reset": true})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(u.Host), strings.TrimSpace(r.Host))
	},
}

// handleWS pushes the status snapshot on connect and then on a fixed
// interval until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := s.writeSnapshot(conn); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.writeSnapshot(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(map[string]any{
		"generated_at": time.Now().UTC(),
		"targets":      s.hub.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
