package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/pipeline"
	"reelnotes/internal/preflight"
	"reelnotes/internal/services"
	"reelnotes/internal/tempfiles"
)

const (
	maxRequestBody  = 64 << 10
	requestIDHeader = "X-Request-ID"
)

// Submitter runs submissions through the pipeline.
type Submitter interface {
	Submit(ctx context.Context, sub pipeline.Submission) pipeline.Outcome
	ActiveJobs() int
}

type apiServer struct {
	cfg       *config.Config
	bind      string
	logger    *slog.Logger
	submitter Submitter
	store     notes.Store
	temp      *tempfiles.Manager

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, submitter Submitter, store notes.Store, temp *tempfiles.Manager, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:       cfg,
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		submitter: submitter,
		store:     store,
		temp:      temp,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A submission holds the connection for the whole pipeline run.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	token := strings.TrimSpace(s.cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /transcribe", s.authMiddleware(token, s.handleTranscribe))
	mux.HandleFunc("GET /videos", s.authMiddleware(token, s.handleVideos))
	mux.HandleFunc("DELETE /cleanup/{filename}", s.authMiddleware(token, s.handleCleanup))
	mux.HandleFunc("GET /healthz", s.authMiddleware(token, s.handleHealth))
	return s.withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth_required", s.cfg.Paths.APIToken != ""),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "Video Transcription API",
	})
}

type transcribeRequest struct {
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}

type transcribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
	notes.VideoNote
}

type transcribeFailure struct {
	Success bool              `json:"success"`
	JobID   string            `json:"job_id"`
	Error   *pipeline.Failure `json:"error"`
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.URL == "" || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "url and user_id are required")
		return
	}

	outcome := s.submitter.Submit(r.Context(), pipeline.Submission{URL: req.URL, UserID: req.UserID})
	if outcome.Succeeded() {
		message := "Video processed successfully"
		if outcome.Degraded {
			message = "Video processed; summary unavailable, stored transcript only"
		}
		s.writeJSON(w, http.StatusOK, transcribeResponse{
			Success:   true,
			Message:   message,
			JobID:     outcome.JobID,
			VideoNote: *outcome.Note,
		})
		return
	}
	failure := outcome.Failure
	if failure == nil {
		failure = &pipeline.Failure{
			Stage:  outcome.State,
			Kind:   services.KindOperationalMisconfiguration,
			Reason: "pipeline ended without a result",
		}
	}
	s.writeJSON(w, httpStatusForKind(failure.Kind), transcribeFailure{
		Success: false,
		JobID:   outcome.JobID,
		Error:   failure,
	})
}

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	var (
		list []notes.VideoNote
		err  error
	)
	if userID != "" {
		list, err = s.store.ListByUser(r.Context(), userID)
	} else {
		list, err = s.store.ListAll(r.Context())
	}
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "list videos failed", "list_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.String(logging.FieldErrorHint, services.Hint(services.KindOf(err))),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if list == nil {
		list = []notes.VideoNote{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"videos": list})
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	err := s.temp.Remove(filename)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Deleted " + filename,
		})
	case errors.Is(err, tempfiles.ErrArtifactNotFound):
		s.writeError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, tempfiles.ErrInvalidName):
		s.writeError(w, http.StatusBadRequest, "invalid filename")
	case errors.Is(err, tempfiles.ErrArtifactInUse):
		s.writeError(w, http.StatusConflict, "file belongs to a running job")
	default:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "temp cleanup failed", "temp_cleanup_failed",
			logging.String("artifact", filename),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
		)
		s.writeError(w, http.StatusInternalServerError, "error deleting file")
	}
}

type healthResponse struct {
	Status     string             `json:"status"`
	ActiveJobs int                `json:"active_jobs"`
	Checks     []preflight.Result `json:"checks"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := preflight.RunLocal(r.Context(), s.cfg, s.store)
	payload := healthResponse{Status: "ok", ActiveJobs: s.submitter.ActiveJobs(), Checks: results}
	status := http.StatusOK
	if !preflight.AllPassed(results) {
		payload.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every request with a correlation id, echoing a
// caller-supplied X-Request-ID when present.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Info("request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
			logging.String(logging.FieldEventType, "http_request"),
		)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
