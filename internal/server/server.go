// Package server exposes chat sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/sheetchat/internal/dataset"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
	"github.com/KaramelBytes/sheetchat/internal/metrics"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

// DefaultMaxUploadBytes bounds a dataset upload.
const DefaultMaxUploadBytes = 10 << 20

// Config configures the HTTP surface.
type Config struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	// TurnTimeout bounds a single query, completion and execution included.
	TurnTimeout time.Duration
}

// Server routes requests to sessions held by a Manager.
type Server struct {
	cfg      Config
	sessions *session.Manager
	logger   *slog.Logger
}

// New returns a server over the given session manager.
func New(cfg Config, sessions *session.Manager, logger *slog.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	sessions.OnEvict(func(string) { metrics.SessionsActive.Dec() })
	return &Server{cfg: cfg, sessions: sessions, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.deleteSession)
			r.Post("/reset", s.withSession(s.reset))
			r.Post("/dataset", s.withSession(s.uploadDataset))
			r.Get("/dataset", s.withSession(s.getDataset))
			r.Post("/query", s.withSession(s.query))
			r.Get("/examples", s.withSession(s.listExamples))
			r.Post("/examples/{n}", s.withSession(s.askExample))
			r.Get("/history", s.withSession(s.history))
			r.Get("/export.csv", s.withSession(s.exportCSV))
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	id, _ := s.sessions.Create()
	metrics.SessionsActive.Inc()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	if err := sess.Reset(); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field \"file\"")
		return
	}
	defer file.Close()

	if !ingest.Supported(hdr.Filename) {
		metrics.DatasetLoaded("invalid")
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type: %s", hdr.Filename))
		return
	}
	opts := ingest.Options{Sheet: r.FormValue("sheet")}
	if v := r.FormValue("sheet_index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.SheetIndex = n
		}
	}
	df, err := ingest.Read(file, hdr.Filename, opts)
	if err != nil {
		metrics.DatasetLoaded("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.Load(hdr.Filename, df); err != nil {
		var sizeErr *dataset.SizeExceededError
		if errors.As(err, &sizeErr) {
			metrics.DatasetLoaded("size_exceeded")
			writeJSON(w, http.StatusUnprocessableEntity, sizeErrorResponse{
				Error:  sizeErr.Error(),
				Bound:  sizeErr.Bound,
				Limit:  sizeErr.Limit,
				Actual: sizeErr.Actual,
			})
			return
		}
		metrics.DatasetLoaded("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.DatasetLoaded("ok")
	s.getDataset(w, r, sess)
}

func (s *Server) getDataset(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	df, name := sess.Dataset()
	if df == nil {
		writeSessionError(w, session.ErrNoDataset)
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse{
		Name:    name,
		Schema:  dataset.Summarize(df),
		Preview: newTable(df.Head(5), false),
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ctx, cancel := s.turnContext(r.Context())
	defer cancel()
	res, err := sess.ProcessQuery(ctx, req.Query)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurn(res))
}

func (s *Server) listExamples(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string][]string{"examples": sess.Examples()})
}

func (s *Server) askExample(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "example index must be an integer")
		return
	}
	if _, err := sess.SuggestExample(n); err != nil {
		writeSessionError(w, err)
		return
	}
	ctx, cancel := s.turnContext(r.Context())
	defer cancel()
	res, err := sess.ProcessPending(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurn(res))
}

func (s *Server) history(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string][]session.Turn{"turns": sess.History()})
}

func (s *Server) exportCSV(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	b, err := sess.ExportCSV()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.ExportName))
	_, _ = w.Write(b)
}

func (s *Server) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.TurnTimeout > 0 {
		return context.WithTimeout(parent, s.cfg.TurnTimeout)
	}
	return context.WithCancel(parent)
}

// writeSessionError maps session refusals onto status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoDataset), errors.Is(err, session.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNoTable), errors.Is(err, session.ErrUnknownExample), errors.Is(err, session.ErrNoPending):
		status = http.StatusNotFound
	}
	writeError(w, status, err.Error())
}
