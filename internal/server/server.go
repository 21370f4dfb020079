// Package server exposes the session controller over HTTP, with
// server-sent events for live observation.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vinayprograms/agentkit/logging"

	"github.com/taskmill/taskmill/internal/broadcast"
	"github.com/taskmill/taskmill/internal/controller"
	"github.com/taskmill/taskmill/internal/state"
	"github.com/taskmill/taskmill/internal/store"
)

// Server routes HTTP requests to the session controller.
type Server struct {
	ctl    *controller.Controller
	logger *logging.Logger
}

// New creates a server.
func New(ctl *controller.Controller) *Server {
	return &Server{
		ctl:    ctl,
		logger: logging.New().WithComponent("server"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("GET /api/stream/{id}", s.handleStream)
	mux.HandleFunc("GET /api/session/{id}", s.handleSession)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("POST /api/session/{id}/pause", s.handlePause)
	mux.HandleFunc("GET /api/session/{id}/resume", s.handleResume)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

type executeRequest struct {
	Goal      string `json:"goal"`
	SessionID string `json:"session_id,omitempty"`
}

type executeResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	id, err := s.ctl.Start(r.Context(), req.Goal, req.SessionID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{SessionID: id, Status: "started"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.ctl.GetState(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	// A finished session has nothing further to publish; replay its
	// terminal event instead of holding an idle stream open.
	if ev, terminal := terminalEvent(sess); terminal {
		s.streamStatic(w, id, ev)
		return
	}
	s.streamChannel(w, r, id, s.ctl.Subscribe(r.Context(), id))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctl.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.ctl.ListSessions(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ctl.Pause(r.Context(), id); err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "pausing"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	sess, err := s.ctl.GetState(ctx, id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	if ev, terminal := terminalEvent(sess); terminal {
		// Resuming a finished session is a no-op; replay its outcome.
		s.streamStatic(w, id, ev)
		return
	}

	// Subscribe before resuming so the stream sees the run from its first
	// transition.
	events := s.ctl.Subscribe(ctx, id)
	if err := s.ctl.Resume(ctx, id, r.URL.Query().Get("user_input")); err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.streamChannel(w, r, id, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// terminalEvent synthesizes the closing event for a session that already
// reached a terminal phase.
func terminalEvent(sess *state.Session) (broadcast.Event, bool) {
	switch sess.Phase {
	case state.PhaseCompleted:
		completed, failed := sess.Counts()
		return broadcast.NewEvent(broadcast.TypeComplete, sess.ID, map[string]any{
			"completed": completed,
			"failed":    failed,
			"total":     len(sess.Tasks),
		}), true
	case state.PhaseError:
		return broadcast.NewEvent(broadcast.TypeError, sess.ID, map[string]any{
			"error": sess.Error,
		}), true
	}
	return broadcast.Event{}, false
}

// streamStatic opens an SSE response, emits the connected preamble and one
// event, and closes.
func (s *Server) streamStatic(w http.ResponseWriter, id string, ev broadcast.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, broadcast.NewEvent(broadcast.TypeConnected, id, nil))
	writeSSE(w, ev)
	flusher.Flush()
}

// streamChannel serves an event channel as SSE until it closes or the
// client disconnects.
func (s *Server) streamChannel(w http.ResponseWriter, r *http.Request, id string, events <-chan broadcast.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, broadcast.NewEvent(broadcast.TypeConnected, id, nil))
	flusher.Flush()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSE emits one event:/data: frame.
func writeSSE(w http.ResponseWriter, ev broadcast.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
