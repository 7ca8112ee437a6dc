package fusiondex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	embedder            Embedder
	embeddingModel      string
	documentInstruction string
	queryInstruction    string

	hnswM           int
	hnswEFConstruct int
	hnswEF          int
	initialCapacity int

	maxBatchSize      int
	importConcurrency int
	defaultPageSize   int
	maxPageSize       int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider used for fields with an embed source
// and for hybrid queries. Without it such documents must carry their own vectors.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingModel names the model behind the Embedder. Collections whose embed
// fields request a different model are rejected with ErrInvalidSchema.
func WithEmbeddingModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
	})
}

// WithInstructions sets the prefixes prepended to document and query text before embedding.
func WithInstructions(document, query string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentInstruction = document
		c.queryInstruction = query
	})
}

// WithHNSW configures HNSW graph parameters.
// Defaults: M=16, EFConstruct=200, EF=64.
func WithHNSW(m, efConstruct, ef int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
		c.hnswEF = ef
	})
}

// WithInitialCapacity sets the node capacity a new vector index starts with.
// The index doubles its capacity when full.
func WithInitialCapacity(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.initialCapacity = n
	})
}

// WithMaxBatchSize sets the maximum number of items per import.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithImportConcurrency sets how many documents of an import are validated in parallel.
func WithImportConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.importConcurrency = n
	})
}

// WithPagination sets the default and maximum page sizes of document listing.
func WithPagination(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and
// vector index occupancy) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
