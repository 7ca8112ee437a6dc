package metrics

import "github.com/prometheus/client_golang/prometheus"

// IndexStat is a point-in-time snapshot of one vector index.
type IndexStat struct {
	Collection string
	Field      string
	Capacity   int
	Count      int
	Deleted    int
}

// IndexCollector exports vector index occupancy on every scrape.
type IndexCollector struct {
	source   func() []IndexStat
	capacity *prometheus.Desc
	count    *prometheus.Desc
	deleted  *prometheus.Desc
}

// NewIndexCollector creates a collector reading snapshots from source.
func NewIndexCollector(source func() []IndexStat) *IndexCollector {
	labels := []string{"collection", "field"}
	return &IndexCollector{
		source: source,
		capacity: prometheus.NewDesc("fusiondex_vector_index_capacity",
			"Allocated node slots of the vector index", labels, nil),
		count: prometheus.NewDesc("fusiondex_vector_index_nodes",
			"Occupied node slots, including tombstones", labels, nil),
		deleted: prometheus.NewDesc("fusiondex_vector_index_deleted",
			"Tombstoned node slots awaiting reuse", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *IndexCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.count
	ch <- c.deleted
}

// Collect implements prometheus.Collector.
func (c *IndexCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Collection, s.Field)
		ch <- prometheus.MustNewConstMetric(c.count, prometheus.GaugeValue, float64(s.Count), s.Collection, s.Field)
		ch <- prometheus.MustNewConstMetric(c.deleted, prometheus.GaugeValue, float64(s.Deleted), s.Collection, s.Field)
	}
}
