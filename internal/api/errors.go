package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nekidev/nekos-api/internal/jsonapi"
	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// ErrorResponse documents the error document for swag.
type ErrorResponse struct {
	Errors []jsonapi.Error `json:"errors"`
}

// writeError writes a single JSON:API error object.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	jsonapi.WriteError(w, status, code, detail)
}

// writeJSON writes v as a JSON:API document.
func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonapi.Write(w, status, v)
}

// writeRegistryError maps registry and schema errors onto status codes.
func writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ordering   *schema.OrderingError
		validation *schema.ValidationError
	)
	switch {
	case errors.As(err, &ordering):
		writeError(w, http.StatusConflict, "ordering_conflict", ordering.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such record")
	case errors.Is(err, registry.ErrBrokenChain):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("lineage failed verification")
		writeError(w, http.StatusInternalServerError, "broken_chain", "stored lineage failed verification")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("api request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
