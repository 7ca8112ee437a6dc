package collection

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/repository/collection"
)

// Info is a collection schema with its document count.
type Info struct {
	Schema       schema.Schema
	NumDocuments int
}

// Service handles collection lifecycle operations.
type Service struct {
	repo       Repository
	embedModel string
}

// New creates a collection service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// WithEmbeddingModel sets the model that generates every embedded vector. Fields
// naming another model are rejected at creation. Empty disables the check.
func (s *Service) WithEmbeddingModel(model string) *Service {
	s.embedModel = model
	return s
}

// Create validates the schema and builds the collection's indexes.
func (s *Service) Create(
	ctx context.Context, name string, fields []field.Field, defaultSortingField string,
) (Info, error) {
	sch, err := schema.New(name, fields, defaultSortingField)
	if err != nil {
		return Info{}, err
	}
	if err := s.checkEmbedModels(sch); err != nil {
		return Info{}, err
	}

	if _, err := s.repo.Create(ctx, sch); err != nil {
		return Info{}, fmt.Errorf("create collection: %w", err)
	}
	return Info{Schema: sch}, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (Info, error) {
	h, err := s.repo.Get(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("get collection: %w", err)
	}
	return info(h), nil
}

// List returns all collections.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	schemas, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	out := make([]Info, 0, len(schemas))
	for _, sch := range schemas {
		h, err := s.repo.Get(ctx, sch.Name())
		if err != nil {
			// dropped concurrently
			continue
		}
		out = append(out, info(h))
	}
	return out, nil
}

// Delete removes a collection and destroys its indexes.
func (s *Service) Delete(ctx context.Context, name string) (Info, error) {
	h, err := s.repo.Get(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("delete collection: %w", err)
	}
	deleted := info(h)

	if err := s.repo.Delete(ctx, name); err != nil {
		return Info{}, fmt.Errorf("delete collection: %w", err)
	}
	return deleted, nil
}

// DropField removes a field from the schema. A vector field loses its index.
func (s *Service) DropField(ctx context.Context, name, fieldName string) (Info, error) {
	if _, err := s.repo.DropField(ctx, name, fieldName); err != nil {
		return Info{}, fmt.Errorf("drop field: %w", err)
	}
	return s.Get(ctx, name)
}

func (s *Service) checkEmbedModels(sch schema.Schema) error {
	if s.embedModel == "" {
		return nil
	}
	for _, f := range sch.VectorFields() {
		e, ok := f.Embed()
		if !ok || e.Model() == "" || e.Model() == s.embedModel {
			continue
		}
		return domain.NewFieldError(domain.ErrInvalidSchema,
			"Field `%s` requests embedding model `%s`, but documents are embedded with `%s`.",
			f.Name(), e.Model(), s.embedModel)
	}
	return nil
}

func info(h *collection.Handle) Info {
	return Info{Schema: h.Schema(), NumDocuments: h.Documents().Count()}
}
