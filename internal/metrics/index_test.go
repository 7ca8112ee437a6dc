package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIndexCollector(t *testing.T) {
	c := NewIndexCollector(func() []IndexStat {
		return []IndexStat{
			{Collection: "products", Field: "vec", Capacity: 2048, Count: 3, Deleted: 1},
		}
	})

	expected := `
# HELP fusiondex_vector_index_deleted Tombstoned node slots awaiting reuse
# TYPE fusiondex_vector_index_deleted gauge
fusiondex_vector_index_deleted{collection="products",field="vec"} 1
# HELP fusiondex_vector_index_nodes Occupied node slots, including tombstones
# TYPE fusiondex_vector_index_nodes gauge
fusiondex_vector_index_nodes{collection="products",field="vec"} 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"fusiondex_vector_index_deleted", "fusiondex_vector_index_nodes")
	if err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(c); n != 3 {
		t.Errorf("expected 3 series, got %d", n)
	}
}

func TestIndexCollector_Empty(t *testing.T) {
	c := NewIndexCollector(func() []IndexStat { return nil })
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("expected no series, got %d", n)
	}
}
