package fusiondex

import (
	"fmt"

	collectionrepo "github.com/kailas-cloud/fusiondex/internal/repository/collection"
	batchuc "github.com/kailas-cloud/fusiondex/internal/usecase/batch"
	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/fusiondex/internal/usecase/document"
	searchuc "github.com/kailas-cloud/fusiondex/internal/usecase/search"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// Client is the fusiondex SDK entry point. It is safe for concurrent use.
type Client struct {
	repo      *collectionrepo.Repo
	collSvc   *collectionuc.Service
	docSvc    *documentuc.Service
	searchSvc *searchuc.Service
	batchSvc  *batchuc.Service
	obs       *observer
}

// New creates an empty in-process engine.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := wireClient(cfg, obs)
	if cfg.metricsReg != nil {
		if err := registerIndexCollector(cfg.metricsReg, c.repo.IndexStats); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func wireClient(cfg *clientConfig, obs *observer) *Client {
	repo := collectionrepo.New(vectorindex.Config{
		M:               cfg.hnswM,
		EfConstruction:  cfg.hnswEFConstruct,
		Ef:              cfg.hnswEF,
		InitialCapacity: cfg.initialCapacity,
	})

	docSvc := documentuc.New(repo, domainEmbedder(cfg.embedder, cfg.documentInstruction)).
		WithPagination(cfg.defaultPageSize, cfg.maxPageSize)
	batchSvc := batchuc.New(docSvc, repo)
	if cfg.maxBatchSize > 0 {
		batchSvc = batchSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}
	if cfg.importConcurrency > 0 {
		batchSvc = batchSvc.WithConcurrency(cfg.importConcurrency)
	}

	return &Client{
		repo:      repo,
		collSvc:   collectionuc.New(repo).WithEmbeddingModel(cfg.embeddingModel),
		docSvc:    docSvc,
		searchSvc: searchuc.New(repo, domainEmbedder(cfg.embedder, cfg.queryInstruction)),
		batchSvc:  batchSvc,
		obs:       obs,
	}
}

// Close destroys every collection and its indexes.
func (c *Client) Close() error {
	if err := c.repo.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Collections returns the collection management service.
func (c *Client) Collections() *CollectionService {
	return &CollectionService{svc: c.collSvc, obs: c.obs}
}

// Documents returns the document service for a given collection.
func (c *Client) Documents(collection string) *DocumentService {
	return &DocumentService{
		collection: collection,
		docSvc:     c.docSvc,
		batchSvc:   c.batchSvc,
		obs:        c.obs,
	}
}

// Search returns the search service for a given collection.
func (c *Client) Search(collection string) *SearchService {
	return &SearchService{
		collection: collection,
		svc:        c.searchSvc,
		obs:        c.obs,
	}
}
