package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/VParka/fast-interview-sub002/internal/llm"
)

// ContextProvider assembles the resume snippet block injected into the
// interviewer's prompt. Retrieval is best-effort: any failure degrades to
// an empty context so the turn still runs.
type ContextProvider struct {
	store    *Store
	embedder llm.Provider
	model    string
	topK     int
}

func NewContextProvider(store *Store, embedder llm.Provider, model string, topK int) *ContextProvider {
	if topK <= 0 {
		topK = 3
	}
	return &ContextProvider{store: store, embedder: embedder, model: model, topK: topK}
}

// ContextFor embeds the candidate's latest answer and returns the most
// relevant resume snippets as a single prompt block, or "" when nothing
// useful is available.
func (p *ContextProvider) ContextFor(ctx context.Context, resumeID uuid.UUID, query string) string {
	if resumeID == uuid.Nil || strings.TrimSpace(query) == "" {
		return ""
	}

	resp, err := p.embedder.GenerateEmbedding(ctx, llm.EmbeddingRequest{
		Model: p.model,
		Input: []string{query},
	})
	if err != nil || len(resp.Embeddings) == 0 {
		slog.Warn("query embedding failed, skipping resume context", "resume_id", resumeID, "error", err)
		return ""
	}

	matches, err := p.store.SimilaritySearch(ctx, resumeID, resp.Embeddings[0], p.topK)
	if err != nil {
		slog.Warn("resume search failed, skipping resume context", "resume_id", resumeID, "error", err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant excerpts from the candidate's resume:\n")
	for _, m := range matches {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
