package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/auth"
	"github.com/VParka/fast-interview-sub002/internal/models"
	"github.com/VParka/fast-interview-sub002/internal/persona"
	"github.com/VParka/fast-interview-sub002/internal/session"
)

type SessionHandler struct {
	sessions *session.Store
	personas *persona.Registry
}

func NewSessionHandler(sessions *session.Store, personas *persona.Registry) *SessionHandler {
	return &SessionHandler{sessions: sessions, personas: personas}
}

type createSessionRequest struct {
	PersonaID  string     `json:"persona_id"`
	Position   string     `json:"position"`
	Industry   string     `json:"industry"`
	Difficulty string     `json:"difficulty"`
	Voice      string     `json:"voice"`
	ResumeID   *uuid.UUID `json:"resume_id"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Position == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position required"})
		return
	}
	if req.PersonaID != "" {
		if _, err := h.personas.Get(req.PersonaID); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown persona"})
			return
		}
	} else {
		req.PersonaID = h.personas.Default().ID
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	sess := &models.Session{
		UserID:     auth.UserIDFromContext(r.Context()),
		PersonaID:  req.PersonaID,
		Position:   req.Position,
		Industry:   req.Industry,
		Difficulty: req.Difficulty,
		Voice:      req.Voice,
		ResumeID:   req.ResumeID,
	}
	if err := h.sessions.Create(r.Context(), sess); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not create session"})
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.sessions.List(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "count": len(sessions)})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Messages returns the full transcript of a session, oldest first.
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	msgs, err := h.sessions.RecentMessages(r.Context(), sess.ID, 1000)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load messages"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}

// Metrics returns the per-answer voice analysis accumulated so far.
func (h *SessionHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	metrics, err := h.sessions.VoiceMetricsForSession(r.Context(), sess.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load metrics"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": metrics, "count": len(metrics)})
}

// Complete ends an interview; further turns are rejected.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if err := h.sessions.UpdateStatus(r.Context(), sess.ID, models.SessionCompleted); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not complete session"})
		return
	}
	sess.Status = models.SessionCompleted
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return nil, false
	}

	sess, err := h.sessions.Get(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err == session.ErrNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load session"})
		return nil, false
	}
	return sess, true
}
