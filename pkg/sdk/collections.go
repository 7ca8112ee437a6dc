package fusiondex

import (
	"context"
	"errors"
	"fmt"
	"time"

	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
)

// CollectionService manages collections.
type CollectionService struct {
	svc *collectionuc.Service
	obs *observer
}

// Create validates the schema and builds the collection's indexes.
// defaultSortingField may be empty.
func (s *CollectionService) Create(
	ctx context.Context, name string, fields []Field, defaultSortingField ...string,
) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.create", name, start, err) }()

	internal, err := toInternalFields(fields)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("create collection: %w", err)
	}
	var sortBy string
	if len(defaultSortingField) > 0 {
		sortBy = defaultSortingField[0]
	}

	info, err := s.svc.Create(ctx, name, internal, sortBy)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("create collection: %w", err)
	}
	return fromInternalCollection(info), nil
}

// Ensure creates a collection if it does not exist.
// If it already exists, returns its info without comparing schemas.
func (s *CollectionService) Ensure(
	ctx context.Context, name string, fields []Field,
) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.ensure", name, start, err) }()

	existing, err := s.svc.Get(ctx, name)
	if err == nil {
		return fromInternalCollection(existing), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return CollectionInfo{}, fmt.Errorf("ensure collection: %w", err)
	}

	internal, err := toInternalFields(fields)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("ensure collection: %w", err)
	}
	info, err := s.svc.Create(ctx, name, internal, "")
	if errors.Is(err, ErrAlreadyExists) {
		// created concurrently
		info, err = s.svc.Get(ctx, name)
	}
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("ensure collection: %w", err)
	}
	return fromInternalCollection(info), nil
}

// Get retrieves a collection by name.
func (s *CollectionService) Get(ctx context.Context, name string) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.get", name, start, err) }()

	info, err := s.svc.Get(ctx, name)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("get collection: %w", err)
	}
	return fromInternalCollection(info), nil
}

// List returns all collections ordered by creation time.
func (s *CollectionService) List(ctx context.Context) (_ []CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.list", "", start, err) }()

	infos, err := s.svc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]CollectionInfo, len(infos))
	for i, info := range infos {
		out[i] = fromInternalCollection(info)
	}
	return out, nil
}

// Delete removes a collection and destroys its indexes. It returns the
// collection as it was just before deletion.
func (s *CollectionService) Delete(ctx context.Context, name string) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.delete", name, start, err) }()

	info, err := s.svc.Delete(ctx, name)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("delete collection: %w", err)
	}
	return fromInternalCollection(info), nil
}

// DropField removes a field from the schema. A vector field loses its index.
func (s *CollectionService) DropField(
	ctx context.Context, name, fieldName string,
) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("collection.drop_field", name, start, err) }()

	info, err := s.svc.DropField(ctx, name, fieldName)
	if err != nil {
		return CollectionInfo{}, fmt.Errorf("drop field: %w", err)
	}
	return fromInternalCollection(info), nil
}
