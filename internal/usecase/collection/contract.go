package collection

import (
	"context"

	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
)

// Repository defines the registry contract for collections.
type Repository interface {
	Create(ctx context.Context, sch schema.Schema) (*collection.Handle, error)
	Get(ctx context.Context, name string) (*collection.Handle, error)
	List(ctx context.Context) ([]schema.Schema, error)
	Delete(ctx context.Context, name string) error
	DropField(ctx context.Context, name, fieldName string) (schema.Schema, error)
}
