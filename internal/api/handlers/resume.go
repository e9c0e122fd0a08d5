package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/auth"
	"github.com/VParka/fast-interview-sub002/internal/models"
	"github.com/VParka/fast-interview-sub002/internal/queue"
	"github.com/VParka/fast-interview-sub002/internal/retrieval"
	"github.com/VParka/fast-interview-sub002/internal/storage"
	"github.com/VParka/fast-interview-sub002/pkg/textextract"
)

const maxResumeBytes = 8 << 20

type ResumeHandler struct {
	store  *retrieval.Store
	blobs  storage.BlobStore
	queue  *queue.Client
	bucket string
}

func NewResumeHandler(store *retrieval.Store, blobs storage.BlobStore, qc *queue.Client, bucket string) *ResumeHandler {
	return &ResumeHandler{store: store, blobs: blobs, queue: qc, bucket: bucket}
}

// Upload accepts a resume file, stores the raw blob and queues ingestion.
// The response returns immediately with status pending; chunking and
// embedding happen on the worker.
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxResumeBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	// The resolved type is stored on the resume row so ingestion extracts
	// with it, whatever Content-Type the client declared.
	contentType, ok := textextract.ResolveType(header.Header.Get("Content-Type"), header.Filename)
	if !ok {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "resume must be PDF, DOCX or plain text"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxResumeBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upload unreadable"})
		return
	}
	if len(data) > maxResumeBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "resume too large"})
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	resume := &models.Resume{
		ID:          uuid.New(),
		UserID:      userID,
		Filename:    header.Filename,
		ContentType: contentType,
	}
	resume.StoragePath = fmt.Sprintf("resumes/%s/%s", userID, resume.ID)

	if err := h.blobs.Upload(r.Context(), h.bucket, resume.StoragePath, data, contentType); err != nil {
		slog.Error("resume blob upload failed", "resume_id", resume.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store resume"})
		return
	}
	if err := h.store.CreateResume(r.Context(), resume); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not record resume"})
		return
	}

	err = h.queue.EnqueueResumeIngest(queue.ResumeIngestPayload{
		ResumeID: resume.ID.String(),
		UserID:   userID.String(),
	})
	if err != nil {
		slog.Error("could not enqueue resume ingest", "resume_id", resume.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not queue ingestion"})
		return
	}

	writeJSON(w, http.StatusAccepted, resume)
}

// Get reports ingestion progress; clients poll until status is ready.
func (h *ResumeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid resume ID"})
		return
	}

	resume, err := h.store.GetResume(r.Context(), id, auth.UserIDFromContext(r.Context()))
	if err == retrieval.ErrNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "resume not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load resume"})
		return
	}
	writeJSON(w, http.StatusOK, resume)
}
