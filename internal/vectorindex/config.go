package vectorindex

// Metric is the distance function of an index.
type Metric string

// Metric constants.
const (
	Cosine       Metric = "cosine"
	InnerProduct Metric = "ip"
	L2           Metric = "l2"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultM               = 16
	DefaultEfConstruction  = 200
	DefaultEf              = 64
	DefaultInitialCapacity = 1024
	defaultSeed            = 42
	maxLevel               = 16
)

// Config holds HNSW parameters for one index.
type Config struct {
	M               int
	EfConstruction  int
	Ef              int
	Metric          Metric
	InitialCapacity int
	// Seed drives level assignment; equal seeds and insert order give equal graphs.
	Seed uint64
}

func (c Config) withDefaults() Config {
	if c.M <= 1 {
		c.M = DefaultM
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = DefaultEfConstruction
	}
	if c.Ef <= 0 {
		c.Ef = DefaultEf
	}
	if c.Metric == "" {
		c.Metric = Cosine
	}
	if c.InitialCapacity <= 0 {
		c.InitialCapacity = DefaultInitialCapacity
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	return c
}
