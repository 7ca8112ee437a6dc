package search

import (
	"context"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
)

// CollectionReader resolves a collection to the handle owning its indexes.
type CollectionReader interface {
	Get(ctx context.Context, name string) (*collection.Handle, error)
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
