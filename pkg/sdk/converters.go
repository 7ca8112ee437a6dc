package fusiondex

import (
	"time"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	dombatch "github.com/kailas-cloud/fusiondex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/result"
	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
)

func toInternalFields(in []Field) ([]field.Field, error) {
	out := make([]field.Field, 0, len(in))
	for _, f := range in {
		var opts []field.Option
		if f.Optional {
			opts = append(opts, field.Optional())
		}
		if f.Facet {
			opts = append(opts, field.Facet())
		}
		if f.Sort {
			opts = append(opts, field.Sort())
		}
		if f.Nested {
			opts = append(opts, field.Nested())
		}
		if f.NumDim != 0 {
			opts = append(opts, field.NumDim(f.NumDim))
		}
		if f.Distance != "" {
			opts = append(opts, field.WithDistance(field.Distance(f.Distance)))
		}
		if len(f.EmbedFrom) > 0 {
			opts = append(opts, field.WithEmbed(field.NewEmbed(f.EmbedFrom, f.EmbedModel)))
		}
		ff, err := field.New(f.Name, field.Type(f.Type), opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, ff)
	}
	return out, nil
}

func fromInternalField(f field.Field) Field {
	out := Field{
		Name:     f.Name(),
		Type:     FieldType(f.FieldType()),
		Optional: f.Optional(),
		Facet:    f.Facet(),
		Sort:     f.Sort(),
		Nested:   f.Nested(),
	}
	if f.IsVector() {
		out.NumDim = f.NumDim()
		out.Distance = Distance(f.Distance())
	}
	if e, ok := f.Embed(); ok {
		out.EmbedFrom = e.From()
		out.EmbedModel = e.Model()
	}
	return out
}

func fromInternalCollection(info collectionuc.Info) CollectionInfo {
	fields := info.Schema.Fields()
	out := CollectionInfo{
		Name:                info.Schema.Name(),
		Fields:              make([]Field, len(fields)),
		DefaultSortingField: info.Schema.DefaultSortingField(),
		NumDocuments:        info.NumDocuments,
		CreatedAt:           time.UnixMilli(info.Schema.CreatedAt()),
	}
	for i, f := range fields {
		out.Fields[i] = fromInternalField(f)
	}
	return out
}

func fromInternalDocument(d domdoc.Document) Document {
	return Document(d.Fields())
}

func fromInternalBatch(results []dombatch.Result) []ImportResult {
	out := make([]ImportResult, len(results))
	for i, r := range results {
		out[i] = ImportResult{
			Position: r.Position(),
			ID:       r.ID(),
			OK:       r.Status() == dombatch.StatusOK,
			Err:      r.Err(),
			Document: Document(r.Document()),
		}
	}
	return out
}

func toInternalFilter(in *FilterExpression) (filter.Expression, error) {
	if in == nil {
		return filter.Expression{}, nil
	}
	must, err := toInternalConditions(in.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := toInternalConditions(in.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := toInternalConditions(in.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	return filter.NewExpression(must, should, mustNot)
}

func toInternalConditions(in []FilterCondition) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(in))
	for _, c := range in {
		var (
			cond filter.Condition
			err  error
		)
		switch {
		case c.Range != nil && c.Match != "":
			return nil, domain.NewFieldError(domain.ErrInvalidQuery,
				"Filter on `%s` must use either match or range.", c.Key)
		case c.Range != nil:
			var r filter.Range
			r, err = filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
			if err != nil {
				return nil, err
			}
			cond, err = filter.NewRange(c.Key, r)
		default:
			cond, err = filter.NewMatch(c.Key, c.Match)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func fromInternalResponse(resp result.Response) SearchResponse {
	hits := resp.Hits()
	out := SearchResponse{
		Found:      resp.Found(),
		Hits:       make([]SearchHit, len(hits)),
		SearchTime: resp.SearchTime(),
	}
	for i := range hits {
		h := &hits[i]
		out.Hits[i] = SearchHit{
			ID:              h.ID(),
			Document:        Document(h.Document()),
			TextMatch:       h.TextMatch(),
			VectorDistance:  h.VectorDistance(),
			RankFusionScore: h.RankFusionScore(),
		}
	}
	return out
}

// toInternalDocument rewrites typed Go slices and nested Documents into the
// []any and map[string]any shapes produced by JSON decoding.
func toInternalDocument(doc Document) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case Document:
		return toInternalDocument(x)
	case map[string]any:
		return toInternalDocument(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case []float32:
		return anySlice(x)
	case []float64:
		return anySlice(x)
	case []int:
		return anySlice(x)
	case []int32:
		return anySlice(x)
	case []int64:
		return anySlice(x)
	case []string:
		return anySlice(x)
	case []bool:
		return anySlice(x)
	case [2]float64:
		return []any{x[0], x[1]}
	case [][2]float64:
		out := make([]any, len(x))
		for i, p := range x {
			out[i] = []any{p[0], p[1]}
		}
		return out
	case []Document:
		out := make([]any, len(x))
		for i, d := range x {
			out[i] = toInternalDocument(d)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, d := range x {
			out[i] = toInternalDocument(d)
		}
		return out
	default:
		return v
	}
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
