// Package jsonapi writes JSON:API style response documents and error objects.
package jsonapi

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// MediaType is the content type of every API response.
const MediaType = "application/vnd.api+json"

// Resource is a top-level resource object.
type Resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
}

// Links carries pagination links.
type Links struct {
	Next string `json:"next,omitempty"`
}

// Document wraps primary data with optional pagination links.
type Document struct {
	Data  any    `json:"data"`
	Links *Links `json:"links,omitempty"`
}

// ErrorSource points at the part of the request an error concerns.
type ErrorSource struct {
	Pointer string `json:"pointer,omitempty"`
}

// Error is a JSON:API error object.
type Error struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

type errorsDocument struct {
	Errors []Error `json:"errors"`
}

// Write encodes v as the response body with the given status code.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// NewError builds an error object for status. The title is the status text.
func NewError(status int, code, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

// WriteError writes a single error object.
func WriteError(w http.ResponseWriter, status int, code, detail string) {
	WriteErrors(w, status, []Error{NewError(status, code, detail)})
}

// WriteErrors writes several error objects under one status.
func WriteErrors(w http.ResponseWriter, status int, errs []Error) {
	Write(w, status, errorsDocument{Errors: errs})
}
