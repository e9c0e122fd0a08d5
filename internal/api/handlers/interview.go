package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/auth"
	"github.com/VParka/fast-interview-sub002/internal/models"
	"github.com/VParka/fast-interview-sub002/internal/pipeline"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/retrieval"
	"github.com/VParka/fast-interview-sub002/internal/session"
)

// maxAudioBytes bounds one uploaded answer; roughly ten minutes of
// compressed speech.
const maxAudioBytes = 10 << 20

type InterviewHandler struct {
	orchestrator *pipeline.Orchestrator
	sessions     *session.Store
	resumeCtx    *retrieval.ContextProvider
	queue        *queue.Client
	historyTurns int
}

func NewInterviewHandler(orch *pipeline.Orchestrator, sessions *session.Store, resumeCtx *retrieval.ContextProvider, qc *queue.Client, historyTurns int) *InterviewHandler {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &InterviewHandler{
		orchestrator: orch,
		sessions:     sessions,
		resumeCtx:    resumeCtx,
		queue:        qc,
		historyTurns: historyTurns,
	}
}

// Turn runs one interview exchange and streams progress as server-sent
// events. The multipart body carries the candidate's answer audio; the
// opening turn of a session sends no audio and gets the persona's first
// question.
func (h *InterviewHandler) Turn(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	sess, err := h.sessions.Get(r.Context(), sessionID, userID)
	if err == session.ErrNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load session"})
		return
	}
	if sess.Status != models.SessionActive {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session is not active"})
		return
	}

	req, err := h.buildRequest(r, sess, userID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Reverse proxies must not buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")

	sink := pipeline.SinkFunc(func(ev pipeline.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	result := h.orchestrator.Run(r.Context(), req, sink)
	h.afterRun(sess, req, result)
}

func (h *InterviewHandler) buildRequest(r *http.Request, sess *models.Session, userID uuid.UUID) (*pipeline.Request, error) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}

	req := &pipeline.Request{
		RunID:      uuid.New(),
		SessionID:  sess.ID,
		UserID:     userID,
		Language:   r.FormValue("language"),
		PersonaID:  sess.PersonaID,
		Position:   sess.Position,
		Industry:   sess.Industry,
		Difficulty: sess.Difficulty,
		Structured: formBool(r, "structured", true),
		Streamed:   formBool(r, "streamed", true),
		Voice:      sess.Voice,
		Speed:      formFloat(r, "speed"),
	}
	if v := r.FormValue("voice"); v != "" {
		req.Voice = v
	}

	file, header, err := r.FormFile("audio")
	switch {
	case err == http.ErrMissingFile:
		if sess.TurnCount > 0 {
			return nil, fmt.Errorf("audio required after the opening turn")
		}
		req.FirstTurn = true
	case err != nil:
		return nil, fmt.Errorf("audio upload unreadable")
	default:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
		if err != nil {
			return nil, fmt.Errorf("audio upload unreadable")
		}
		if len(data) > maxAudioBytes {
			return nil, fmt.Errorf("audio exceeds %d bytes", maxAudioBytes)
		}
		req.Audio = data
		req.AudioName = header.Filename
	}

	history, err := h.sessions.RecentMessages(r.Context(), sess.ID, h.historyTurns*2)
	if err != nil {
		return nil, fmt.Errorf("could not load history")
	}
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleInterviewer {
			role = "assistant"
		}
		req.History = append(req.History, pipeline.Turn{Role: role, Content: m.Content})
	}

	if h.resumeCtx != nil && sess.ResumeID != nil {
		req.RetrievalContext = h.resumeCtx.ContextFor(r.Context(), *sess.ResumeID, retrievalQuery(sess, history))
	}
	return req, nil
}

// retrievalQuery targets resume snippets at where the conversation
// currently is: the live question if one was asked, otherwise the role
// being interviewed for.
func retrievalQuery(sess *models.Session, history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleInterviewer {
			return history[i].Content
		}
	}
	return sess.Position + " " + sess.Industry
}

// afterRun hands persistence and analysis to the queue. The stream is
// already terminated; nothing here can affect the client.
func (h *InterviewHandler) afterRun(sess *models.Session, req *pipeline.Request, result *pipeline.Result) {
	if h.queue == nil {
		return
	}

	persist := queue.TurnPersistPayload{
		SessionID: sess.ID.String(),
		RunID:     req.RunID.String(),
		UserID:    req.UserID.String(),
	}
	if result.Transcription != nil {
		persist.Transcript = result.Transcription.Text
	}
	if result.Reply != nil {
		persist.ReplyText = result.Reply.Text
		persist.Provider = result.Reply.Provider
		if result.Reply.Evaluation != nil {
			persist.Evaluation, _ = json.Marshal(result.Reply.Evaluation)
		}
	}
	if result.Audio != nil {
		persist.AudioURL = result.Audio.PublicURL
	}
	if persist.Transcript != "" || persist.ReplyText != "" {
		if err := h.queue.EnqueueTurnPersist(persist); err != nil {
			slog.Error("could not enqueue turn persistence", "run_id", req.RunID, "error", err)
		}
	}

	if result.Transcription != nil && len(result.Transcription.Words) > 0 {
		err := h.queue.EnqueueVoiceAnalysis(queue.VoiceAnalysisPayload{
			SessionID:  sess.ID.String(),
			RunID:      req.RunID.String(),
			Words:      result.Transcription.Words,
			DurationMs: result.Transcription.DurationMs,
		})
		if err != nil {
			slog.Error("could not enqueue voice analysis", "run_id", req.RunID, "error", err)
		}
	}
}

func formBool(r *http.Request, key string, fallback bool) bool {
	v := r.FormValue(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func formFloat(r *http.Request, key string) float64 {
	f, _ := strconv.ParseFloat(r.FormValue(key), 64)
	return f
}
