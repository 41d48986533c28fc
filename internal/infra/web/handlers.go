package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
)

// maxCallbackBody bounds status callback payloads; transcription results can
// be large but are still capped.
const maxCallbackBody = 10 << 20

func contextWithClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, ctxClaims, claims)
}

func claimsFrom(ctx context.Context) *UserClaims {
	c, _ := ctx.Value(ctxClaims).(*UserClaims)
	return c
}

// ---- callback endpoints ----

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	feature := chi.URLParam(r, "feature")
	kind, ok := model.KindByFeature(feature)
	if !ok || kind.Family() == model.FamilyIngestion {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.dispatchStatus(w, r, kind.Family(), kind)
}

func (s *Server) handleIngestionStatus(w http.ResponseWriter, r *http.Request) {
	// Lecture and FAQ ingestion share this webhook, so only the family is
	// pinned here.
	s.dispatchStatus(w, r, model.FamilyIngestion, "")
}

func (s *Server) handleTranscriptionStatus(w http.ResponseWriter, r *http.Request) {
	s.dispatchStatus(w, r, model.FamilyIngestion, model.JobKindTranscription)
}

func (s *Server) dispatchStatus(w http.ResponseWriter, r *http.Request, family model.JobFamily, kind model.JobKind) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	runID := chi.URLParam(r, "runID")
	if err := s.dispatcher.HandleStatus(r.Context(), family, kind, runID, token, body); err != nil {
		if family == model.FamilyIngestion && errors.Is(err, domain.ErrWrongJobKind) {
			http.Error(w, "Run ID is not an ingestion job", http.StatusConflict)
			return
		}
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ---- chat session API ----

type startSessionRequest struct {
	Kind       model.JobKind `json:"kind"`
	CourseID   int64         `json:"courseId"`
	ExerciseID int64         `json:"exerciseId"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := s.chatUC.StartSession(r.Context(), claims.UserID, req.Kind, req.CourseID, req.ExerciseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	msg, err := s.chatUC.SendMessage(r.Context(), claims.UserID, chi.URLParam(r, "sessionID"), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleResendMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	err := s.chatUC.ResendMessage(r.Context(), claims.UserID, chi.URLParam(r, "sessionID"), chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	msgs, err := s.chatUC.ListMessages(r.Context(), claims.UserID, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type rateMessageRequest struct {
	Helpful *bool `json:"helpful"`
}

func (s *Server) handleRateMessage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req rateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := s.chatUC.RateMessage(r.Context(), claims.UserID, chi.URLParam(r, "sessionID"), chi.URLParam(r, "messageID"), req.Helpful)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- fan-out subscriptions ----

func (s *Server) handleSubscribeSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.hub.Subscribe(w, r, claims.UserID, chi.URLParam(r, "sessionID")); err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

func (s *Server) handleSubscribeRun(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := s.hub.Subscribe(w, r, claims.UserID, chi.URLParam(r, "token")); err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

// ---- artifact pipelines ----

type startArtifactRequest struct {
	CourseID   int64           `json:"courseId"`
	ExerciseID int64           `json:"exerciseId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type startArtifactResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleStartArtifact(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req startArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	token, err := s.artifactUC.Start(r.Context(), claims.UserID, model.JobKind(chi.URLParam(r, "kind")), req.CourseID, req.ExerciseID, req.Payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startArtifactResponse{Token: token})
}

// ---- ingestion ----

func (s *Server) handleIngestLectureUnit(w http.ResponseWriter, r *http.Request) {
	s.startIngestion(w, r, model.JobKindLectureIngestion)
}

func (s *Server) handleTranscribeLectureUnit(w http.ResponseWriter, r *http.Request) {
	s.startIngestion(w, r, model.JobKindTranscription)
}

func (s *Server) startIngestion(w http.ResponseWriter, r *http.Request, kind model.JobKind) {
	courseID, err1 := pathInt64(r, "courseID")
	lectureID, err2 := pathInt64(r, "lectureID")
	unitID, err3 := pathInt64(r, "unitID")
	if err1 != nil || err2 != nil || err3 != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	payload := readPayload(r)

	var err error
	if kind == model.JobKindTranscription {
		err = s.ingestUC.StartTranscription(r.Context(), courseID, lectureID, unitID, payload)
	} else {
		err = s.ingestUC.StartLectureIngestion(r.Context(), courseID, lectureID, unitID, payload)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIngestFaq(w http.ResponseWriter, r *http.Request) {
	courseID, err1 := pathInt64(r, "courseID")
	faqID, err2 := pathInt64(r, "faqID")
	if err1 != nil || err2 != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.ingestUC.StartFaqIngestion(r.Context(), courseID, faqID, readPayload(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIngestionState(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathInt64(r, "targetID")
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	state, err := s.ingestUC.Status(r.Context(), model.JobKind(chi.URLParam(r, "kind")), targetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ---- proactive event notifications ----
//
// Called by the LMS core when new submission results or judgement-of-learning
// records arrive. Evaluation happens on the worker pool; these return as soon
// as the task is queued.

type notifySubmissionRequest struct {
	UserID     int64  `json:"userId"`
	CourseID   int64  `json:"courseId"`
	ExerciseID int64  `json:"exerciseId"`
	SessionID  string `json:"sessionId"`
}

func (s *Server) handleNotifySubmission(w http.ResponseWriter, r *http.Request) {
	var req notifySubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.proactiveUC.NotifySubmission(req.UserID, req.CourseID, req.ExerciseID, req.SessionID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type notifyJolRequest struct {
	UserID    int64                     `json:"userId"`
	CourseID  int64                     `json:"courseId"`
	SessionID string                    `json:"sessionId"`
	Jol       model.JudgementOfLearning `json:"jol"`
}

func (s *Server) handleNotifyJol(w http.ResponseWriter, r *http.Request) {
	var req notifyJolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.proactiveUC.NotifyJudgementOfLearning(req.UserID, req.CourseID, req.SessionID, req.Jol); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func pathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// readPayload forwards an optional JSON body to the runtime untouched.
func readPayload(r *http.Request) any {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload
}
