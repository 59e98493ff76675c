package api

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// parsePagination extracts cursor and limit from query parameters.
// limit defaults to 50 and is silently capped at 200.
func parsePagination(r *http.Request) (cursor string, limit int) {
	cursor = r.URL.Query().Get("cursor")
	limit = defaultLimit

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	return cursor, limit
}

// encodeCursor encodes an opaque pagination cursor from the last returned
// record's sequence number.
func encodeCursor(seq int64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// decodeCursor decodes a cursor back to a sequence number. ok is false when
// the cursor is malformed; an empty cursor decodes to 0.
func decodeCursor(cursor string) (seq int64, ok bool) {
	if cursor == "" {
		return 0, true
	}
	b, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, false
	}
	seq, err = strconv.ParseInt(string(b), 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// nextLink builds the URL of the page after seq.
func nextLink(r *http.Request, seq int64, limit int) string {
	q := url.Values{}
	q.Set("cursor", encodeCursor(seq))
	q.Set("limit", strconv.Itoa(limit))
	return r.URL.Path + "?" + q.Encode()
}
