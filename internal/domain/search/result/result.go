package result

import "time"

// Hit is a single search hit.
type Hit struct {
	id             string
	seqID          uint32
	document       map[string]any
	textMatch      *float64
	vectorDistance *float32
	fusionScore    *float64
}

// New creates a search hit. Nil scores are absent from the hit.
func New(
	id string, seqID uint32, document map[string]any,
	textMatch *float64, vectorDistance *float32, fusionScore *float64,
) Hit {
	return Hit{
		id: id, seqID: seqID, document: document,
		textMatch: textMatch, vectorDistance: vectorDistance, fusionScore: fusionScore,
	}
}

// ID returns the document identifier.
func (h *Hit) ID() string { return h.id }

// SeqID returns the internal sequence id of the document.
func (h *Hit) SeqID() uint32 { return h.seqID }

// Document returns the stored document fields.
func (h *Hit) Document() map[string]any { return h.document }

// TextMatch returns the text relevance score, if the hit came from the text ranking.
func (h *Hit) TextMatch() *float64 { return h.textMatch }

// VectorDistance returns the vector distance, if the hit came from the vector ranking.
func (h *Hit) VectorDistance() *float32 { return h.vectorDistance }

// RankFusionScore returns the fused score of a hybrid search.
func (h *Hit) RankFusionScore() *float64 { return h.fusionScore }

// Response is the outcome of one search.
type Response struct {
	found      int
	hits       []Hit
	searchTime time.Duration
}

// NewResponse creates a search response.
func NewResponse(found int, hits []Hit, searchTime time.Duration) Response {
	return Response{found: found, hits: hits, searchTime: searchTime}
}

// Found returns the number of matching documents before pagination.
func (r *Response) Found() int { return r.found }

// Hits returns the returned page of hits.
func (r *Response) Hits() []Hit { return r.hits }

// SearchTime returns how long the search took.
func (r *Response) SearchTime() time.Duration { return r.searchTime }
