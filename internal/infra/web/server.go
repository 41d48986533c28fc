package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/infra/ws"
	"lms-ai-backend/internal/usecase"
)

type Server struct {
	chatUC      usecase.ChatUseCase
	artifactUC  usecase.ArtifactUseCase
	ingestUC    usecase.IngestionUseCase
	proactiveUC *usecase.ProactiveUseCase // nil when proactive events are disabled
	dispatcher  *usecase.StatusDispatcher
	hub         *ws.Hub
	auth        *AuthManager
	log         *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	artifactUC usecase.ArtifactUseCase,
	ingestUC usecase.IngestionUseCase,
	proactiveUC *usecase.ProactiveUseCase,
	dispatcher *usecase.StatusDispatcher,
	hub *ws.Hub,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		chatUC:      chatUC,
		artifactUC:  artifactUC,
		ingestUC:    ingestUC,
		proactiveUC: proactiveUC,
		dispatcher:  dispatcher,
		hub:         hub,
		auth:        auth,
		log:         &l,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Callback endpoints: authenticated by job token, not by user JWT.
	r.Post("/api/pipelines/{feature}/runs/{runID}/status", s.handlePipelineStatus)
	r.Post("/api/webhooks/ingestion/runs/{runID}/status", s.handleIngestionStatus)
	r.Post("/api/webhooks/transcription/runs/{runID}/status", s.handleTranscriptionStatus)

	// User-facing API.
	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/api/sessions", s.handleStartSession)
		r.Get("/api/sessions/{sessionID}/messages", s.handleListMessages)
		r.Post("/api/sessions/{sessionID}/messages", s.handleSendMessage)
		r.Post("/api/sessions/{sessionID}/messages/{messageID}/resend", s.handleResendMessage)
		r.Put("/api/sessions/{sessionID}/messages/{messageID}/helpful", s.handleRateMessage)
		r.Get("/api/ws/sessions/{sessionID}", s.handleSubscribeSession)
		r.Get("/api/ws/runs/{token}", s.handleSubscribeRun)

		r.Post("/api/artifacts/{kind}", s.handleStartArtifact)

		r.Post("/api/courses/{courseID}/lectures/{lectureID}/units/{unitID}/ingest", s.handleIngestLectureUnit)
		r.Post("/api/courses/{courseID}/lectures/{lectureID}/units/{unitID}/transcribe", s.handleTranscribeLectureUnit)
		r.Post("/api/courses/{courseID}/faqs/{faqID}/ingest", s.handleIngestFaq)
		r.Get("/api/ingestion/{kind}/{targetID}", s.handleIngestionState)

		if s.proactiveUC != nil {
			r.Post("/api/internal/submissions", s.handleNotifySubmission)
			r.Post("/api/internal/jol", s.handleNotifyJol)
		}
	})

	return r
}

type ctxKey string

const ctxClaims ctxKey = "claims"

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := contextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto the HTTP surface. The mapping lives
// here exactly once; use cases never see HTTP.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrRunIDMismatch):
		http.Error(w, "Run ID in URL does not match run ID in request body", http.StatusConflict)
	case errors.Is(err, domain.ErrWrongJobKind):
		http.Error(w, "Run ID is not a job of this type", http.StatusConflict)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, domain.ErrRateLimited.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrPipelineUnavailable):
		http.Error(w, domain.ErrPipelineUnavailable.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
