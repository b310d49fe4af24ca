package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/recorder"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// streamInterval is how often the websocket pushes session status
const streamInterval = 500 * time.Millisecond

// DefaultKeepFinished is how many terminated sessions stay queryable
const DefaultKeepFinished = 64

// ErrShuttingDown is returned for new recordings once Shutdown has begun
var ErrShuttingDown = errors.New("server is shutting down")

// Server represents the HTTP control API
type Server struct {
	router   *mux.Router
	backend  window.Backend
	resolver recorder.Resolver
	defaults recorder.Options
	deps     recorder.Deps
	upgrader websocket.Upgrader
	http     *http.Server

	// resolveMu serializes window lookups on the shared display connection
	resolveMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*recorder.Session
	closing  bool

	// KeepFinished bounds how many terminated sessions are remembered;
	// older ones are forgotten
	KeepFinished int
}

// StartRequest is the body of POST /api/recordings. Zero fields fall back
// to the configured defaults.
type StartRequest struct {
	Windows    []string `json:"windows"`
	FrameRate  float64  `json:"frame_rate"`
	VideoPath  string   `json:"video_path"`
	NameSuffix string   `json:"name_suffix"`
	SaveDir    string   `json:"save_dir"`
	window.Adjustments
}

// NewServer creates a new API server. defaults seeds the options of every
// session; deps are passed through to each session.
func NewServer(backend window.Backend, defaults recorder.Options, deps recorder.Deps) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		backend:  backend,
		resolver: window.NewResolver(backend),
		defaults: defaults,
		deps:     deps,
		sessions: make(map[string]*recorder.Session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.KeepFinished = DefaultKeepFinished

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")

	// Recording sessions
	api.HandleFunc("/recordings", s.handleStartRecording).Methods("POST")
	api.HandleFunc("/recordings", s.handleListRecordings).Methods("GET")
	api.HandleFunc("/recordings/{id}", s.handleGetRecording).Methods("GET")
	api.HandleFunc("/recordings/{id}", s.handleStopRecording).Methods("DELETE")
	api.HandleFunc("/recordings/{id}/stream", s.handleRecordingStream)
}

// Handler returns the root handler, including CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves the API on port until Shutdown is called
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.mu.Lock()
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	srv := s.http
	s.mu.Unlock()

	logger.WithComponent("api").Info().Msgf("Starting server on http://localhost%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown refuses new recordings, stops every active one, waiting for
// each video file to be finalized, then closes the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	srv := s.http
	s.mu.Unlock()

	s.StopAll()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// StopAll stops every session. Sessions are stopped concurrently.
func (s *Server) StopAll() {
	s.mu.RLock()
	sessions := make([]*recorder.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *recorder.Session) {
			defer wg.Done()
			if err := sess.Stop(); err != nil {
				logger.WithComponent("api").Error().Err(err).Str("session_id", sess.ID()).Msg("Recording finished with error")
			}
		}(sess)
	}
	wg.Wait()
	s.prune()
}

// prune forgets the oldest terminated sessions beyond KeepFinished
func (s *Server) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished []recorder.Status
	for _, sess := range s.sessions {
		if st := sess.Status(); st.State == recorder.StateTerminated {
			finished = append(finished, st)
		}
	}
	excess := len(finished) - s.KeepFinished
	if excess <= 0 {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StoppedAt.Before(*finished[j].StoppedAt)
	})
	for _, st := range finished[:excess] {
		delete(s.sessions, st.ID)
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// options merges a request over the server defaults
func (s *Server) options(req StartRequest) recorder.Options {
	opts := s.defaults
	opts.Record = true
	opts.HandleSignals = false

	if req.FrameRate != 0 {
		opts.FrameRate = req.FrameRate
	}
	if req.VideoPath != "" {
		opts.VideoPath = req.VideoPath
	}
	if req.NameSuffix != "" {
		opts.NameSuffix = req.NameSuffix
	}
	if req.SaveDir != "" {
		opts.SaveDir = req.SaveDir
	}
	if req.Adjustments != (window.Adjustments{}) {
		opts.Adjustments = req.Adjustments
	}
	return opts
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*recorder.Session, bool) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("recording %q not found", id))
		return nil, false
	}
	return sess, true
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	s.resolveMu.Lock()
	windows, err := s.backend.ListWindows()
	s.resolveMu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.RLock()
	closing := s.closing
	s.mu.RUnlock()
	if closing {
		writeError(w, http.StatusServiceUnavailable, ErrShuttingDown)
		return
	}

	opts := s.options(req)
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.resolveMu.Lock()
	sess, err := recorder.New(r.Context(), s.resolver, req.Windows, opts, s.deps)
	s.resolveMu.Unlock()
	if err != nil {
		var selErr *window.SelectionError
		switch {
		case window.IsNotFound(err):
			writeError(w, http.StatusNotFound, err)
		case errors.As(err, &selErr):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	if err := sess.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Shutdown may have taken its snapshot while this session was starting
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		if err := sess.Stop(); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID()).Msg("Recording finished with error")
		}
		writeError(w, http.StatusServiceUnavailable, ErrShuttingDown)
		return
	}
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	log.Info().Str("session_id", sess.ID()).Strs("windows", req.Windows).Msg("Recording started via API")
	writeJSON(w, http.StatusCreated, sess.Status())
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	statuses := make([]recorder.Status, 0, len(s.sessions))
	for _, sess := range s.sessions {
		statuses = append(statuses, sess.Status())
	}
	s.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		a, b := statuses[i].StartedAt, statuses[j].StartedAt
		if a == nil || b == nil {
			return statuses[i].ID < statuses[j].ID
		}
		return a.Before(*b)
	})
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// handleStopRecording finalizes the video. A failed recording is still
// reported with 200; the error is part of the status.
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Stop(); err != nil {
		logger.WithComponent("api").Warn().Err(err).Str("session_id", sess.ID()).Msg("Recording finished with error")
	}
	writeJSON(w, http.StatusOK, sess.Status())
	s.prune()
}

func (s *Server) handleRecordingStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Reading is required to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		st := sess.Status()
		if err := conn.WriteJSON(st); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
		if st.State == recorder.StateTerminated || st.State == recorder.StateInert {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(st.State)))
			return
		}

		select {
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
