package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/dao"
	"github.com/viant/unchained/service/session"
)

type taskRequest struct {
	Task string `json:"task"`
}

type decisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Response is returned by every API call.
type Response struct {
	Session *session.Snapshot     `json:"session"`
	Outcome *conversation.Outcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// handleSnapshot never creates a session; callers without one get a blank
// idle snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	aSession, err := s.existingSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if aSession == nil {
		writeJSON(w, http.StatusOK, &Response{Session: &session.Snapshot{State: session.StateIdle, Transcript: []session.Turn{}}})
		return
	}
	writeJSON(w, http.StatusOK, &Response{Session: aSession.Snapshot()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	aSession, ok := s.session(w, r)
	if !ok {
		return
	}
	input, ok := readJSON[taskRequest](w, r, s.bodyLimit)
	if !ok {
		return
	}
	outcome, err := s.driver.Submit(r.Context(), aSession, input.Task)
	s.respond(w, aSession, outcome, err)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resume(w, r, approval.SignalApprove)
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	s.resume(w, r, approval.SignalDeny)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request, signal approval.Signal) {
	aSession, ok := s.session(w, r)
	if !ok {
		return
	}
	input := decisionRequest{}
	if r.ContentLength > 0 {
		if input, ok = readJSON[decisionRequest](w, r, s.bodyLimit); !ok {
			return
		}
	}
	outcome, err := s.driver.Resume(r.Context(), aSession, signal, input.Reason)
	s.respond(w, aSession, outcome, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if err = s.registry.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("failed to delete session", zap.String("session", cookie.Value), zap.Error(err))
		}
	}
	aSession, err := s.registry.Create(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	setSessionCookie(w, aSession.ID)
	writeJSON(w, http.StatusOK, &Response{Session: aSession.Snapshot()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	aSession, err := s.existingSession(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if aSession == nil {
		writeError(w, http.StatusNotFound, "no session")
		return
	}
	s.hub.Accept(w, r, aSession.ID)
}

func (s *Server) respond(w http.ResponseWriter, aSession *session.Session, outcome *conversation.Outcome, err error) {
	response := &Response{Session: aSession.Snapshot(), Outcome: outcome}
	if err == nil {
		writeJSON(w, http.StatusOK, response)
		return
	}
	response.Error = err.Error()
	var status int
	switch {
	case errors.Is(err, conversation.ErrAwaitingApproval), errors.Is(err, approval.ErrNoPendingApproval):
		status = http.StatusConflict
	case errors.Is(err, conversation.ErrEmptyTask):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrMaxRounds):
		status = http.StatusUnprocessableEntity
	default:
		s.logger.Error("request failed", zap.String("session", aSession.ID), zap.Error(err))
		status = http.StatusBadGateway
	}
	writeJSON(w, status, response)
}

// existingSession returns the caller's session, or nil when the cookie is
// missing or unknown.
func (s *Server) existingSession(r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	aSession, err := s.registry.Load(r.Context(), cookie.Value)
	if dao.IsNotFound(err) {
		return nil, nil
	}
	return aSession, err
}

// session resolves the caller's session from the cookie, creating one when
// missing. Only state-changing routes use it.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := ""
	if cookie, err := r.Cookie(CookieName); err == nil {
		id = cookie.Value
	}
	aSession, created, err := s.registry.LoadOrCreate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if created {
		setSessionCookie(w, aSession.ID)
	}
	return aSession, true
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
