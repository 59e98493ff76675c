package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nekidev/nekos-api/internal/apply"
	"github.com/nekidev/nekos-api/internal/auth"
	"github.com/nekidev/nekos-api/internal/jsonapi"
	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// lineagesAPIHandler serves the schema registry.
type lineagesAPIHandler struct {
	registry *registry.Registry
	engine   *apply.Engine
}

// registerLineageRoutes registers registry routes on r. Appending requires
// an operator key; everything else is public.
func registerLineageRoutes(r chi.Router, reg *registry.Registry, engine *apply.Engine, bearer *auth.BearerMiddleware) {
	h := &lineagesAPIHandler{registry: reg, engine: engine}
	r.Get("/lineages", h.List)
	r.Get("/lineages/{lineage}/records", h.Records)
	r.With(bearer.Authenticate).Post("/lineages/{lineage}/records", h.Append)
	r.Get("/lineages/{lineage}/records/{name}", h.Record)
	r.Get("/lineages/{lineage}/schema", h.Schema)
	r.Post("/lineages/{lineage}/validate", h.Validate)
	r.Get("/lineages/{lineage}/status", h.Status)
}

// List returns every lineage with its tip.
// GET /v2/schema/lineages
//
// @Summary      List lineages
// @Tags         Schema
// @Produce      json
// @Success      200  {object}  LineageListResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /schema/lineages [get]
func (h *lineagesAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	tips, err := h.registry.Lineages(r.Context())
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	data := make([]jsonapi.Resource, 0, len(tips))
	for _, t := range tips {
		data = append(data, lineageResource(t))
	}
	writeJSON(w, http.StatusOK, jsonapi.Document{Data: data})
}

// Records returns one page of a lineage's records, root first.
// GET /v2/schema/lineages/{lineage}/records
//
// @Summary      List records
// @Description  Records in admission order. Follow links.next for the next page.
// @Tags         Schema
// @Produce      json
// @Param        lineage  path   string  true   "Lineage"
// @Param        cursor   query  string  false  "Opaque cursor from links.next"
// @Param        limit    query  int     false  "Page size (default 50, max 200)"
// @Success      200  {object}  RecordListResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /schema/lineages/{lineage}/records [get]
func (h *lineagesAPIHandler) Records(w http.ResponseWriter, r *http.Request) {
	lineage := chi.URLParam(r, "lineage")
	cursor, limit := parsePagination(r)
	after, ok := decodeCursor(cursor)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_cursor", "cursor is malformed")
		return
	}

	// One extra row tells us whether another page exists.
	page, err := h.registry.Page(r.Context(), lineage, after, limit+1)
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}

	doc := jsonapi.Document{}
	if len(page) > limit {
		page = page[:limit]
		doc.Links = &jsonapi.Links{Next: nextLink(r, page[len(page)-1].Seq, limit)}
	}
	data := make([]jsonapi.Resource, 0, len(page))
	for _, rec := range page {
		data = append(data, recordResource(rec))
	}
	doc.Data = data
	writeJSON(w, http.StatusOK, doc)
}

// Record returns a single record by name.
// GET /v2/schema/lineages/{lineage}/records/{name}
//
// @Summary      Get record
// @Tags         Schema
// @Produce      json
// @Param        lineage  path  string  true  "Lineage"
// @Param        name     path  string  true  "Record name"
// @Success      200  {object}  ResourceResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /schema/lineages/{lineage}/records/{name} [get]
func (h *lineagesAPIHandler) Record(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.Get(r.Context(), chi.URLParam(r, "lineage"), chi.URLParam(r, "name"))
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonapi.Document{Data: recordResource(rec)})
}

// Append admits a new record at the tip of the lineage.
// POST /v2/schema/lineages/{lineage}/records
//
// @Summary      Append record
// @Description  The predecessor must name the current tip (null for the first record). An empty name is generated from the operations.
// @Tags         Schema
// @Accept       json
// @Produce      json
// @Param        lineage  path  string               true  "Lineage"
// @Param        body     body  AppendRecordRequest  true  "Record"
// @Success      201  {object}  ResourceResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /schema/lineages/{lineage}/records [post]
func (h *lineagesAPIHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req AppendRecordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not a valid JSON document")
		return
	}
	if req.Data.Type != "" && req.Data.Type != typeRecord {
		writeError(w, http.StatusBadRequest, "invalid_request", "data.type must be "+typeRecord)
		return
	}

	attrs := req.Data.Attributes
	in := registry.AppendRequest{
		Lineage:    chi.URLParam(r, "lineage"),
		Name:       attrs.Name,
		Operations: attrs.Operations,
	}
	if attrs.Predecessor != nil {
		in.Predecessor = *attrs.Predecessor
	}

	rec, err := h.registry.Append(r.Context(), in)
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+rec.Name)
	writeJSON(w, http.StatusCreated, jsonapi.Document{Data: recordResource(rec)})
}

// Schema returns the cumulative schema at the tip.
// GET /v2/schema/lineages/{lineage}/schema
//
// @Summary      Current schema
// @Tags         Schema
// @Produce      json
// @Param        lineage  path  string  true  "Lineage"
// @Success      200  {object}  ResourceResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /schema/lineages/{lineage}/schema [get]
func (h *lineagesAPIHandler) Schema(w http.ResponseWriter, r *http.Request) {
	lineage := chi.URLParam(r, "lineage")
	tip, s, err := h.current(r, lineage)
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonapi.Document{Data: schemaResource(lineage, tip, s)})
}

// Validate checks a row against the current schema.
// POST /v2/schema/lineages/{lineage}/validate
//
// @Summary      Validate row
// @Description  Reports one error per offending field, pointing at /data/attributes/<field>.
// @Tags         Schema
// @Accept       json
// @Produce      json
// @Param        lineage  path  string              true  "Lineage"
// @Param        body     body  ValidateRowRequest  true  "Row"
// @Success      200  {object}  ResourceResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /schema/lineages/{lineage}/validate [post]
func (h *lineagesAPIHandler) Validate(w http.ResponseWriter, r *http.Request) {
	lineage := chi.URLParam(r, "lineage")
	var req ValidateRowRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Data.Attributes == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must carry data.attributes")
		return
	}

	tip, s, err := h.current(r, lineage)
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	if tip == "" {
		writeError(w, http.StatusNotFound, "not_found", "lineage has no records")
		return
	}

	fieldErrs := s.CheckRow(req.Data.Attributes)
	if len(fieldErrs) > 0 {
		errs := make([]jsonapi.Error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			e := jsonapi.NewError(http.StatusUnprocessableEntity, "invalid_value", fe.Reason)
			e.Source = &jsonapi.ErrorSource{Pointer: "/data/attributes/" + fe.Field}
			errs = append(errs, e)
		}
		jsonapi.WriteErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}
	writeJSON(w, http.StatusOK, jsonapi.Document{Data: jsonapi.Resource{
		Type:       typeValidation,
		ID:         lineage,
		Attributes: ValidationAttributes{Valid: true},
	}})
}

// Status reports which records have been applied to the target store.
// GET /v2/schema/lineages/{lineage}/status
//
// @Summary      Apply status
// @Tags         Schema
// @Produce      json
// @Param        lineage  path  string  true  "Lineage"
// @Success      200  {object}  LineageListResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /schema/lineages/{lineage}/status [get]
func (h *lineagesAPIHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusNotFound, "apply_disabled", "no apply target is configured")
		return
	}
	lineage := chi.URLParam(r, "lineage")
	statuses, err := h.engine.Status(r.Context(), lineage)
	if err != nil {
		writeRegistryError(w, r, err)
		return
	}
	data := make([]jsonapi.Resource, 0, len(statuses))
	for _, st := range statuses {
		data = append(data, applyStatusResource(lineage, st))
	}
	writeJSON(w, http.StatusOK, jsonapi.Document{Data: data})
}

// current returns the tip name and cumulative schema of lineage.
func (h *lineagesAPIHandler) current(r *http.Request, lineage string) (string, schema.Schema, error) {
	var (
		s   schema.Schema
		tip string
	)
	for rec, err := range h.registry.Resolve(r.Context(), lineage) {
		if err != nil {
			return "", schema.Schema{}, err
		}
		next, err := s.ApplyRecord(rec)
		if err != nil {
			return "", schema.Schema{}, errors.Join(registry.ErrBrokenChain, err)
		}
		s, tip = next, rec.Name
	}
	return tip, s, nil
}
