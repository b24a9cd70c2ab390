// Package web serves the local HTTP API the edit surface talks to: table and
// view reads, delta submission, query changes, explicit saves, status and the
// flush history, plus a websocket that pushes change notifications.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Faroukdata/fairsync/internal/history"
	"github.com/Faroukdata/fairsync/internal/session"
	"github.com/Faroukdata/fairsync/internal/table"
)

// Server is the session-facing API server, bound to 127.0.0.1.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *log.Logger
	version    string
	port       int

	session *session.Session
	hist    *history.DB
	hub     *Hub
}

// NewServer creates the API server for one session. hist may be nil when no
// history database is open.
func NewServer(version string, logger *log.Logger, port int, sess *session.Session, hist *history.DB) *Server {
	s := &Server{
		logger:  logger,
		version: version,
		port:    port,
		session: sess,
		hist:    hist,
		hub:     NewHub(logger),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/table", s.handleTable)
	s.mux.HandleFunc("/api/v1/view", s.handleView)
	s.mux.HandleFunc("/api/v1/edits", s.handleEdits)
	s.mux.HandleFunc("/api/v1/query", s.handleQuery)
	s.mux.HandleFunc("/api/v1/save", s.handleSave)
	s.mux.HandleFunc("/api/v1/status", s.handleStatus)
	s.mux.HandleFunc("/api/v1/history", s.handleHistory)
	s.mux.HandleFunc("/api/v1/ws", s.hub.HandleUpgrade)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: s.securityHeaders(s.mux),
	}

	// Push a notification to connected clients whenever the table changes
	// behind their back (edits from this session included, so multiple tabs
	// stay consistent).
	sess.OnChange(func(reason string) {
		s.hub.Broadcast(changeEvent{Type: "change", Reason: reason})
	})

	return s
}

// Start begins listening. Returns an error if the port is already in use.
// Returns nil on graceful shutdown (http.ErrServerClosed).
func (s *Server) Start() error {
	go s.hub.Run()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use: %w", s.port, err)
	}
	s.logger.Printf("API server listening on %s", s.httpServer.Addr)
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil // graceful shutdown
	}
	return err
}

// Shutdown gracefully stops the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// securityHeaders adds security response headers.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	t := s.session.Working()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  t.Rows(),
		"total": t.Len(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// ?q= is a peek at a prospective filter; without it the session's
	// current view is returned. Peeking never changes session state.
	if q, ok := r.URL.Query()["q"]; ok {
		query := ""
		if len(q) > 0 {
			query = q[0]
		}
		writeJSON(w, http.StatusOK, s.session.Working().Filter(query))
		return
	}
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Edits table.Delta `json:"edits"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for _, e := range req.Edits {
		if !table.IsTextColumn(e.Field) && !table.IsFlagColumn(e.Field) {
			writeError(w, http.StatusBadRequest, "unknown field: "+e.Field)
			return
		}
	}
	res := s.session.Submit(r.Context(), time.Now(), req.Edits)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.session.SetQuery(r.Context(), time.Now(), req.Query)
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.session.SaveNow(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hist == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}

	query := r.URL.Query()
	filter := history.Filter{Trigger: query.Get("trigger")}
	if query.Get("errors_only") == "true" {
		filter.ErrorsOnly = true
	}
	if limit := query.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	entries, err := s.hist.Recent(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
