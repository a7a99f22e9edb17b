// Package formserver is a reference implementation of the remote form
// resource. It backs the `formsync serve` command and the HTTP contract
// tests of the remote client.
package formserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/roach88/formsync/internal/form"
)

// maxRequestBody caps the size of a submitted form.
const maxRequestBody = 1 << 20

// Server serves the forms API over a Repository.
type Server struct {
	repo   *Repository
	router *mux.Router
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	newID func() string
	now   func() time.Time
}

// WithIDGenerator overrides form id generation (for testing).
func WithIDGenerator(newID func() string) Option {
	return func(c *serverConfig) {
		c.newID = newID
	}
}

// WithClock overrides the timestamp source (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *serverConfig) {
		c.now = now
	}
}

// New creates a server with an empty repository.
func New(opts ...Option) *Server {
	cfg := serverConfig{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{repo: NewRepository(cfg.newID, cfg.now)}
	s.router = s.newRouter()
	return s
}

// Repository exposes the backing store.
func (s *Server) Repository() *Repository {
	return s.repo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/forms", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/forms/{id}", s.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/forms/{id}", s.handleGet).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("form server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type formRequest struct {
	Answers form.Values `json:"answers"`
}

type formResponse struct {
	ID        string          `json:"id"`
	Answers   json.RawMessage `json:"answers"`
	Revision  int             `json:"revision"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	answers, ok := decodeAnswers(w, r)
	if !ok {
		return
	}

	rec, created := s.repo.Create(r.Header.Get("Idempotency-Key"), sanitizeAnswers(answers))
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.Info("form created", "form_id", rec.ID, "fields", len(rec.Answers))
	}
	writeRecord(w, status, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	answers, ok := decodeAnswers(w, r)
	if !ok {
		return
	}

	rec, err := s.repo.Update(id, sanitizeAnswers(answers))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.repo.Get(mux.Vars(r)["id"])
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

func decodeAnswers(w http.ResponseWriter, r *http.Request) (form.Values, bool) {
	var req formRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form body: %v", err))
		return nil, false
	}
	if req.Answers == nil {
		writeError(w, http.StatusBadRequest, "missing answers")
		return nil, false
	}
	return req.Answers, true
}

func writeRecord(w http.ResponseWriter, status int, rec Record) {
	answers, err := form.MarshalCanonical(rec.Answers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, formResponse{
		ID:        rec.ID,
		Answers:   answers,
		Revision:  rec.Revision,
		UpdatedAt: rec.UpdatedAt.UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
