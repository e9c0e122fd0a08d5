package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/llm"
	"github.com/VParka/fast-interview-sub002/internal/storage"
	"github.com/VParka/fast-interview-sub002/pkg/chunker"
	"github.com/VParka/fast-interview-sub002/pkg/textextract"
)

// embedBatchSize keeps embedding requests well under provider input
// limits; resumes rarely exceed a handful of batches anyway.
const embedBatchSize = 32

// Ingester turns an uploaded resume into searchable embedded chunks. It
// runs on the queue worker, not the request path.
type Ingester struct {
	store    *Store
	blobs    storage.BlobStore
	embedder llm.Provider
	bucket   string
	model    string
}

func NewIngester(store *Store, blobs storage.BlobStore, embedder llm.Provider, bucket, model string) *Ingester {
	return &Ingester{
		store:    store,
		blobs:    blobs,
		embedder: embedder,
		bucket:   bucket,
		model:    model,
	}
}

// Ingest downloads, extracts, chunks and embeds one resume, then swaps
// its chunk set. The resume row ends in ready or failed.
func (i *Ingester) Ingest(ctx context.Context, resumeID, userID uuid.UUID) error {
	resume, err := i.store.GetResume(ctx, resumeID, userID)
	if err != nil {
		return err
	}

	if err := i.ingest(ctx, resume.ID, userID, resume.StoragePath, resume.ContentType); err != nil {
		if markErr := i.store.MarkFailed(ctx, resume.ID, err.Error()); markErr != nil {
			slog.Error("could not record resume failure", "resume_id", resume.ID, "error", markErr)
		}
		return err
	}
	return nil
}

func (i *Ingester) ingest(ctx context.Context, resumeID, userID uuid.UUID, path, contentType string) error {
	data, err := i.blobs.Download(ctx, i.bucket, path)
	if err != nil {
		return fmt.Errorf("download resume: %w", err)
	}

	text, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return fmt.Errorf("extract resume text: %w", err)
	}

	pieces := chunker.Split(text, chunker.DefaultChunkSize)
	if len(pieces) == 0 {
		return fmt.Errorf("resume produced no text")
	}

	chunks := make([]Chunk, 0, len(pieces))
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch := pieces[start:end]

		resp, err := i.embedder.GenerateEmbedding(ctx, llm.EmbeddingRequest{
			Model: i.model,
			Input: batch,
		})
		if err != nil {
			return fmt.Errorf("embed resume chunks: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(resp.Embeddings), len(batch))
		}

		for j, content := range batch {
			chunks = append(chunks, Chunk{
				ResumeID:   resumeID,
				UserID:     userID,
				ChunkIndex: start + j,
				Content:    content,
				Embedding:  resp.Embeddings[j],
			})
		}
	}

	if err := i.store.ReplaceChunks(ctx, resumeID, chunks); err != nil {
		return fmt.Errorf("store resume chunks: %w", err)
	}
	if err := i.store.MarkReady(ctx, resumeID, len(chunks)); err != nil {
		return err
	}

	slog.Info("resume ingested", "resume_id", resumeID, "chunks", len(chunks))
	return nil
}
