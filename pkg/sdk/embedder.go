package fusiondex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/fusiondex/internal/domain"
)

// Embedder converts text to vector embeddings.
// Required only for fields declared with an embed source.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is optionally implemented by an Embedder that vectorizes many texts
// in one provider call. Imports use it for every generated vector of the batch.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([]EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// embedderAdapter wraps a public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	rs, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(rs))}
	for i, r := range rs {
		out.Embeddings[i] = r.Embedding
		out.PromptTokens += r.PromptTokens
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

// domainEmbedder returns nil when e is nil so that the services see no embedder at all.
func domainEmbedder(e Embedder, instruction string) domain.Embedder {
	if e == nil {
		return nil
	}
	var out domain.Embedder = &embedderAdapter{inner: e}
	if instruction != "" {
		out = domain.NewInstructionEmbedder(out, instruction)
	}
	return out
}
