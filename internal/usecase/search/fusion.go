package search

import (
	"math"
	"sort"

	"github.com/kailas-cloud/fusiondex/internal/repository/text"
	"github.com/kailas-cloud/fusiondex/internal/vectorindex"
)

// Fusion weights of the text and vector reciprocal ranks.
const (
	textWeight   = 0.7
	vectorWeight = 0.3
)

// fusedHit is one document of the fused ranking. Ranks are 1-based; 0 means the
// document is absent from that list.
type fusedHit struct {
	seq       uint32
	textRank  int
	vecRank   int
	textScore float64
	distance  float32
	score     float64
}

// fuse merges a text ranking and a vector ranking by weighted reciprocal rank:
// score(d) = 0.7/r_text(d) + 0.3/r_vec(d), a missing rank contributing 0.
// Ties are broken by text rank, then vector rank, then sequence id; a document
// missing from a list ranks after every document present in it.
func fuse(textHits []text.Match, vecHits []vectorindex.Match) []fusedHit {
	merged := make(map[uint32]*fusedHit, len(textHits)+len(vecHits))

	for i, m := range textHits {
		merged[m.Seq] = &fusedHit{
			seq:       m.Seq,
			textRank:  i + 1,
			textScore: m.Score,
			score:     textWeight / float64(i+1),
		}
	}
	for i, m := range vecHits {
		h, ok := merged[m.Seq]
		if !ok {
			h = &fusedHit{seq: m.Seq}
			merged[m.Seq] = h
		}
		h.vecRank = i + 1
		h.distance = m.Distance
		h.score += vectorWeight / float64(i+1)
	}

	out := make([]fusedHit, 0, len(merged))
	for _, h := range merged {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// before orders by descending score, then ascending text rank, vector rank and seq.
func (h fusedHit) before(o fusedHit) bool {
	if h.score != o.score {
		return h.score > o.score
	}
	if a, b := rankKey(h.textRank), rankKey(o.textRank); a != b {
		return a < b
	}
	if a, b := rankKey(h.vecRank), rankKey(o.vecRank); a != b {
		return a < b
	}
	return h.seq < o.seq
}

func rankKey(r int) int {
	if r == 0 {
		return math.MaxInt
	}
	return r
}
