package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"pingmonitor/internal/logging"
	"pingmonitor/internal/models"
	"pingmonitor/internal/monitor"
	"pingmonitor/internal/realtime"
)

var logger = logging.WithPrefix("server")

// Monitor is the coordinator API the server drives.
type Monitor interface {
	Snapshot() monitor.Snapshot
	Hosts() []monitor.HostView
	Lookup(id string) (models.HostEntry, bool)
	AddMonitoredHost(host string, interval time.Duration) (models.HostEntry, error)
	RemoveMonitoredHost(id string) bool
	UpdateMonitoredHost(entry models.HostEntry) (bool, error)
	Submit(host string) error
}

// Server wraps HTTP serving of the JSON API and the state stream.
type Server struct {
	httpServer *http.Server
	monitor    Monitor
	broker     *realtime.Broker
}

// New creates a configured HTTP server for the monitor. A nil broker
// disables live updates on the stream.
func New(addr string, mon Monitor, broker *realtime.Broker) *Server {
	s := &Server{monitor: mon, broker: broker}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	logger.WithField("addr", s.httpServer.Addr).Info("listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/api", func(api chi.Router) {
		api.Get("/state", s.handleState)
		api.Get("/ws", s.handleStream)

		api.Get("/hosts", s.handleListHosts)
		api.Post("/hosts", s.handleCreateHost)
		api.Get("/hosts/{id}", s.handleGetHost)
		api.Put("/hosts/{id}", s.handleUpdateHost)
		api.Delete("/hosts/{id}", s.handleDeleteHost)

		api.Post("/ping", s.handlePing)
	})
	return r
}

type createHostRequest struct {
	Host     string          `json:"host"`
	Interval models.Duration `json:"interval"`
}

type updateHostRequest struct {
	Host     *string          `json:"host"`
	Interval *models.Duration `json:"interval"`
	Enabled  *bool            `json:"enabled"`
}

type pingRequest struct {
	Host string `json:"host"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Hosts())
}

func (s *Server) handleGetHost(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.monitor.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.monitor.AddMonitoredHost(req.Host, req.Interval.Std())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateHost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateHostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, ok := s.monitor.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	if req.Host != nil {
		entry.Host = *req.Host
	}
	if req.Interval != nil {
		entry.Interval = *req.Interval
	}
	if req.Enabled != nil {
		entry.Enabled = *req.Enabled
	}

	ok, err := s.monitor.UpdateMonitoredHost(entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	updated, _ := s.monitor.Lookup(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	if !s.monitor.RemoveMonitoredHost(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "host not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.monitor.Submit(req.Host); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.monitor.Snapshot())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	logger.Errorf("request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(started).Round(time.Microsecond),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
