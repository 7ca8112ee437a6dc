package batch

import (
	"context"

	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
	"github.com/kailas-cloud/fusiondex/internal/usecase/document"
)

// DocumentWriter embeds and applies prepared documents to a collection.
type DocumentWriter interface {
	EmbedBatch(ctx context.Context, sch schema.Schema, prepared []document.Prepared) error
	Apply(ctx context.Context, h *collection.Handle, p document.Prepared) (domdoc.Document, error)
}

// CollectionReader resolves a collection to its handle.
type CollectionReader interface {
	Get(ctx context.Context, name string) (*collection.Handle, error)
}
