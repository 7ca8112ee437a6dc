package chi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kailas-cloud/fusiondex/internal/domain"
	dombatch "github.com/kailas-cloud/fusiondex/internal/domain/batch"
	"github.com/kailas-cloud/fusiondex/internal/domain/coercion"
	domdoc "github.com/kailas-cloud/fusiondex/internal/domain/document"
	"github.com/kailas-cloud/fusiondex/internal/domain/search/request"
	batchuc "github.com/kailas-cloud/fusiondex/internal/usecase/batch"
	collectionuc "github.com/kailas-cloud/fusiondex/internal/usecase/collection"
	documentuc "github.com/kailas-cloud/fusiondex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/fusiondex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/fusiondex/internal/usecase/search"
)

// maxImportLine bounds a single JSON line of an import body.
const maxImportLine = 16 << 20

// Server serves the HTTP API.
type Server struct {
	collections *collectionuc.Service
	documents   *documentuc.Service
	search      *searchuc.Service
	batch       *batchuc.Service
	health      *healthuc.Service
}

// NewServer creates an HTTP API server.
func NewServer(
	collections *collectionuc.Service,
	documents *documentuc.Service,
	search *searchuc.Service,
	batch *batchuc.Service,
	health *healthuc.Service,
) *Server {
	return &Server{
		collections: collections,
		documents:   documents,
		search:      search,
		batch:       batch,
		health:      health,
	}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/collections", func(r chi.Router) {
		r.Post("/", s.CreateCollection)
		r.Get("/", s.ListCollections)

		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.GetCollection)
			r.Delete("/", s.DeleteCollection)
			r.Delete("/fields/{field}", s.DropField)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", s.WriteDocument)
				r.Get("/", s.ListDocuments)
				r.Post("/import", s.ImportDocuments)
				r.Post("/search", s.SearchDocuments)
				r.Get("/{id}", s.GetDocument)
				r.Patch("/{id}", s.PatchDocument)
				r.Delete("/{id}", s.DeleteDocument)
			})
		})
	})
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	fields, err := fieldsFromDTO(req.Fields)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	info, err := s.collections.Create(r.Context(), req.Name, fields, req.DefaultSortingField)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, collectionToDTO(info))
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	infos, err := s.collections.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	out := make([]collectionResponse, len(infos))
	for i, info := range infos {
		out[i] = collectionToDTO(info)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCollection handles GET /collections/{collection}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.collections.Get(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionToDTO(info))
}

// DeleteCollection handles DELETE /collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.collections.Delete(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionToDTO(info))
}

// DropField handles DELETE /collections/{collection}/fields/{field}.
func (s *Server) DropField(w http.ResponseWriter, r *http.Request) {
	info, err := s.collections.DropField(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "field"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionToDTO(info))
}

// WriteDocument handles POST /collections/{collection}/documents.
func (s *Server) WriteDocument(w http.ResponseWriter, r *http.Request) {
	op, policy, err := writeParams(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	raw, err := decodeDocument(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Bad JSON.")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.documents.Write(ctx, chi.URLParam(r, "collection"), raw, op, policy)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if op == coercion.Create {
		status = http.StatusCreated
	}
	writeJSON(w, status, doc.Fields())
}

// PatchDocument handles PATCH /collections/{collection}/documents/{id}.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	policy, err := coercion.ParsePolicy(r.URL.Query().Get("dirty_values"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	raw, err := decodeDocument(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Bad JSON.")
		return
	}
	raw[domdoc.IDField] = chi.URLParam(r, "id")

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.documents.Write(ctx, chi.URLParam(r, "collection"), raw, coercion.Update, policy)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Fields())
}

// GetDocument handles GET /collections/{collection}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Fields())
}

// DeleteDocument handles DELETE /collections/{collection}/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Fields())
}

// ListDocuments handles GET /collections/{collection}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Parameter `limit` must be a non-negative integer.")
			return
		}
		limit = n
	}

	docs, next, err := s.documents.List(r.Context(), chi.URLParam(r, "collection"),
		r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	out := make([]map[string]any, len(docs))
	for i := range docs {
		out[i] = docs[i].Fields()
	}
	writeJSON(w, http.StatusOK, documentListResponse{Documents: out, NextCursor: next})
}

// ImportDocuments handles POST /collections/{collection}/documents/import.
// The body and the response are JSON lines, one per input document.
func (s *Server) ImportDocuments(w http.ResponseWriter, r *http.Request) {
	op, policy, err := writeParams(r)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	lines, err := readLines(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	items := make([]importItem, len(lines))
	docs := make([]map[string]any, 0, len(lines))
	positions := make([]int, 0, len(lines))
	for i, line := range lines {
		raw, err := decodeDocument(bytes.NewReader(line))
		if err != nil {
			items[i] = importItem{Error: "Bad JSON."}
			continue
		}
		docs = append(docs, raw)
		positions = append(positions, i)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := s.batch.Import(ctx, chi.URLParam(r, "collection"), docs, op, policy)
	for j, res := range results {
		items[positions[j]] = importItemFromResult(res)
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Num-Imported", strconv.Itoa(dombatch.NumImported(results)))
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, item := range items {
		_ = enc.Encode(item)
	}
}

// SearchDocuments handles POST /collections/{collection}/documents/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	filters, err := filterFromDTO(body.Filter)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	req, err := request.New(body.Q, body.QueryBy, body.VectorQuery, filters, body.PerPage, body.IncludeVectors)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, chi.URLParam(r, "collection"), &req)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseFromResult(&resp))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeParams(r *http.Request) (coercion.Operation, coercion.Policy, error) {
	q := r.URL.Query()
	op, err := coercion.ParseOperation(q.Get("action"))
	if err != nil {
		return "", "", err
	}
	policy, err := coercion.ParsePolicy(q.Get("dirty_values"))
	if err != nil {
		return "", "", err
	}
	return op, policy, nil
}

// decodeDocument reads one JSON object, keeping numbers as json.Number.
func decodeDocument(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode document: not an object")
	}
	return raw, nil
}

func readLines(body io.Reader) ([][]byte, error) {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	var lines [][]byte
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read import body: %w", err)
	}
	return lines, nil
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}
