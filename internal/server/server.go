// Package server exposes the editor over a small JSON HTTP API.
//
//	GET  /api/flow     current view
//	POST /api/events   apply one render-surface event
//	POST /api/save     validate and persist the flow
//	GET  /api/history  stored revisions of the flow
//	GET  /api/palette  creatable node types
//	GET  /healthz      liveness
//
// Every request that touches editor state goes through editor.Loop, so
// handlers on concurrent connections never race on the flow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"

	"github.com/roach88/flowbuilder/internal/editor"
	"github.com/roach88/flowbuilder/internal/palette"
	"github.com/roach88/flowbuilder/internal/persist"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves the editor API.
type Server struct {
	loop    *editor.Loop
	palette *palette.Registry
	logger  *slog.Logger
}

// New creates a Server. The caller runs loop.
func New(loop *editor.Loop, pal *palette.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{loop: loop, palette: pal, logger: logger}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string       `json:"error"`
	View  *editor.View `json:"view,omitempty"`
}

// Handler returns the routed, access-logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/flow", s.handleFlow)
	mux.HandleFunc("POST /api/events", s.handleEvent)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/palette", s.handlePalette)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, editor.Event{Type: editor.EventView}, func(reply editor.Reply) (int, any) {
		return http.StatusOK, reply.View
	})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev editor.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid event: " + err.Error()})
		return
	}
	if ev.Type == editor.EventDismissStatus {
		// Dismissals are driven by the server's own timers.
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "dismiss_status is internal"})
		return
	}

	s.dispatch(w, r, ev, func(reply editor.Reply) (int, any) {
		return http.StatusOK, reply
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, editor.Event{Type: editor.EventSave}, func(reply editor.Reply) (int, any) {
		code := http.StatusOK
		switch reply.Save.Outcome {
		case persist.OutcomeRejected:
			code = http.StatusUnprocessableEntity
		case persist.OutcomeFailed:
			code = http.StatusBadGateway
		}
		return code, reply
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, editor.Event{Type: editor.EventHistory}, func(reply editor.Reply) (int, any) {
		if reply.History == nil {
			return http.StatusOK, []persist.Revision{}
		}
		return http.StatusOK, reply.History
	})
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.palette.Descriptors())
}

// dispatch runs ev through the loop and writes the response chosen by ok.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev editor.Event, ok func(editor.Reply) (int, any)) {
	reply, err := s.loop.Dispatch(r.Context(), ev)
	switch {
	case err == nil:
		code, body := ok(reply)
		writeJSON(w, code, body)
	case errors.Is(err, editor.ErrUnknownEvent):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, editor.ErrLoopClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing useful to write.
		s.logger.Debug("request abandoned", "path", r.URL.Path, "error", err)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), View: &reply.View})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
