package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nekidev/nekos-api/internal/jsonapi"
)

type contextKey string

const keyContextKey contextKey = "api_key"

// KeyFromContext returns the API key that authenticated the request.
func KeyFromContext(ctx context.Context) (*KeyRecord, bool) {
	k, ok := ctx.Value(keyContextKey).(*KeyRecord)
	return k, ok
}

// BearerMiddleware authenticates requests via an operator API key.
type BearerMiddleware struct {
	keys KeyStore
	now  func() time.Time
}

// NewBearerMiddleware creates a new BearerMiddleware.
func NewBearerMiddleware(ks KeyStore) *BearerMiddleware {
	return &BearerMiddleware{keys: ks, now: time.Now}
}

// Authenticate extracts and validates a Bearer key. A valid key is injected
// into the request context and its last_used_at is refreshed in the
// background. Missing, unknown, revoked and expired keys get a 401.
func (m *BearerMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		plaintext, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || plaintext == "" {
			writeUnauthorized(w, "missing bearer API key")
			return
		}

		rec, err := m.keys.GetByHash(r.Context(), HashKey(plaintext))
		if err != nil {
			writeUnauthorized(w, "unknown API key")
			return
		}
		if !rec.Active(m.now()) {
			writeUnauthorized(w, "API key is revoked or expired")
			return
		}

		go func(id string) {
			if err := m.keys.UpdateLastUsed(context.Background(), id); err != nil {
				log.Warn().Err(err).Str("key_id", id).Msg("update api key last_used_at")
			}
		}(rec.ID)

		ctx := context.WithValue(r.Context(), keyContextKey, rec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="nekos-api"`)
	jsonapi.WriteError(w, http.StatusUnauthorized, "not_authenticated", detail)
}
