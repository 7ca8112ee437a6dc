package chi

import (
	"github.com/kailas-cloud/fusiondex/internal/domain"
	dombatch "github.com/kailas-cloud/fusiondex/internal/domain/batch"
	"github.com/kailas-cloud/fusiondex/internal/domain/schema/field"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/filter"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/result"
	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
)

type embedModelConfig struct {
	ModelName string `json:"model_name,omitempty"`
}

type embedDTO struct {
	From        []string         `json:"from"`
	ModelConfig embedModelConfig `json:"model_config"`
}

type fieldDTO struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Optional bool      `json:"optional,omitempty"`
	Facet    bool      `json:"facet,omitempty"`
	Sort     bool      `json:"sort,omitempty"`
	Nested   bool      `json:"nested,omitempty"`
	NumDim   *int      `json:"num_dim,omitempty"`
	VecDist  string    `json:"vec_dist,omitempty"`
	Embed    *embedDTO `json:"embed,omitempty"`
}

type createCollectionRequest struct {
	Name                string     `json:"name"`
	Fields              []fieldDTO `json:"fields"`
	DefaultSortingField string     `json:"default_sorting_field"`
}

type collectionResponse struct {
	Name                string     `json:"name"`
	Fields              []fieldDTO `json:"fields"`
	DefaultSortingField string     `json:"default_sorting_field"`
	CreatedAt           int64      `json:"created_at"`
	NumDocuments        int        `json:"num_documents"`
}

type rangeDTO struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

type conditionDTO struct {
	Key   string    `json:"key"`
	Match string    `json:"match,omitempty"`
	Range *rangeDTO `json:"range,omitempty"`
}

type filterDTO struct {
	Must    []conditionDTO `json:"must,omitempty"`
	Should  []conditionDTO `json:"should,omitempty"`
	MustNot []conditionDTO `json:"must_not,omitempty"`
}

type searchRequest struct {
	Q              string     `json:"q"`
	QueryBy        []string   `json:"query_by"`
	VectorQuery    string     `json:"vector_query"`
	Filter         *filterDTO `json:"filter"`
	PerPage        int        `json:"per_page"`
	IncludeVectors bool       `json:"include_vectors"`
}

type searchHit struct {
	Document        map[string]any `json:"document"`
	TextMatch       *float64       `json:"text_match,omitempty"`
	VectorDistance  *float32       `json:"vector_distance,omitempty"`
	RankFusionScore *float64       `json:"rank_fusion_score,omitempty"`
}

type searchResponse struct {
	Found        int         `json:"found"`
	Hits         []searchHit `json:"hits"`
	SearchTimeMS int64       `json:"search_time_ms"`
}

type importItem struct {
	Success  bool           `json:"success"`
	ID       string         `json:"id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Document map[string]any `json:"document,omitempty"`
}

type documentListResponse struct {
	Documents  []map[string]any `json:"documents"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func fieldsFromDTO(in []fieldDTO) ([]field.Field, error) {
	out := make([]field.Field, 0, len(in))
	for _, d := range in {
		var opts []field.Option
		if d.Optional {
			opts = append(opts, field.Optional())
		}
		if d.Facet {
			opts = append(opts, field.Facet())
		}
		if d.Sort {
			opts = append(opts, field.Sort())
		}
		if d.Nested {
			opts = append(opts, field.Nested())
		}
		if d.NumDim != nil {
			opts = append(opts, field.NumDim(*d.NumDim))
		}
		if d.VecDist != "" {
			opts = append(opts, field.WithDistance(field.Distance(d.VecDist)))
		}
		if d.Embed != nil {
			opts = append(opts, field.WithEmbed(field.NewEmbed(d.Embed.From, d.Embed.ModelConfig.ModelName)))
		}
		f, err := field.New(d.Name, field.Type(d.Type), opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func fieldToDTO(f field.Field) fieldDTO {
	d := fieldDTO{
		Name:     f.Name(),
		Type:     string(f.FieldType()),
		Optional: f.Optional(),
		Facet:    f.Facet(),
		Sort:     f.Sort(),
		Nested:   f.Nested(),
	}
	if f.IsVector() {
		n := f.NumDim()
		d.NumDim = &n
		d.VecDist = string(f.Distance())
	}
	if e, ok := f.Embed(); ok {
		d.Embed = &embedDTO{From: e.From(), ModelConfig: embedModelConfig{ModelName: e.Model()}}
	}
	return d
}

func collectionToDTO(info collectionuc.Info) collectionResponse {
	sch := info.Schema
	fields := make([]fieldDTO, len(sch.Fields()))
	for i, f := range sch.Fields() {
		fields[i] = fieldToDTO(f)
	}
	return collectionResponse{
		Name:                sch.Name(),
		Fields:              fields,
		DefaultSortingField: sch.DefaultSortingField(),
		CreatedAt:           sch.CreatedAt(),
		NumDocuments:        info.NumDocuments,
	}
}

func filterFromDTO(in *filterDTO) (filter.Expression, error) {
	if in == nil {
		return filter.Expression{}, nil
	}
	must, err := conditionsFromDTO(in.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromDTO(in.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromDTO(in.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	return expr, nil
}

func conditionsFromDTO(in []conditionDTO) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(in))
	for _, c := range in {
		if c.Range != nil {
			if c.Match != "" {
				return nil, domain.NewFieldError(domain.ErrInvalidQuery,
					"Filter on `%s` must use either match or range.", c.Key)
			}
			r, err := filter.NewRangeFilter(c.Range.GT, c.Range.GTE, c.Range.LT, c.Range.LTE)
			if err != nil {
				return nil, err
			}
			cond, err := filter.NewRange(c.Key, r)
			if err != nil {
				return nil, err
			}
			out = append(out, cond)
			continue
		}
		cond, err := filter.NewMatch(c.Key, c.Match)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func searchResponseFromResult(r *result.Response) searchResponse {
	hits := make([]searchHit, len(r.Hits()))
	for i, h := range r.Hits() {
		hits[i] = searchHit{
			Document:        h.Document(),
			TextMatch:       h.TextMatch(),
			VectorDistance:  h.VectorDistance(),
			RankFusionScore: h.RankFusionScore(),
		}
	}
	return searchResponse{
		Found:        r.Found(),
		Hits:         hits,
		SearchTimeMS: r.SearchTime().Milliseconds(),
	}
}

func importItemFromResult(r dombatch.Result) importItem {
	if r.Status() == dombatch.StatusOK {
		return importItem{Success: true, ID: r.ID()}
	}
	return importItem{Error: r.Message(), Document: r.Document()}
}
