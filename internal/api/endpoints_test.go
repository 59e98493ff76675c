package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekidev/nekos-api/internal/api"
)

func TestEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v2", "/v2/"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/vnd.api+json", rec.Header().Get("Content-Type"))

			body := decode(t, rec)
			assert.Equal(t, "api-details", body["type"])
			assert.Equal(t, "1", body["id"])
			attrs := body["attributes"].(map[string]any)
			assert.Equal(t, "2.0.0-test", attrs["apiVersion"])
			endpoints := attrs["endpoints"].([]any)
			assert.Len(t, endpoints, 64)
			assert.Equal(t, "/v2", endpoints[0])
			assert.Equal(t, "/v2/auth/token/revoke", endpoints[len(endpoints)-1])
			assert.Contains(t, endpoints, "/v2/users/@me")
		})
	}
}

func TestEndpoints_CopyIsIndependent(t *testing.T) {
	e := api.Endpoints()
	e[0] = "/changed"
	assert.Equal(t, "/v2", api.Endpoints()[0])
}

func TestEndpoints_RateLimited(t *testing.T) {
	env := newTestEnv(t, withLimit(t, "3/m"))

	var bodies []string
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodGet, "/v2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])

	rec := env.do(t, http.MethodGet, "/v2", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"rate_limited"`)

	// The registry shares the api group.
	rec = env.do(t, http.MethodGet, "/v2/schema/lineages", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Metrics sit outside /v2.
	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		origin string
		allow  string
	}{
		{"https://nekosapi.com", "https://nekosapi.com"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := newRequest(http.MethodGet, "/v2")
			r.Header.Set("Origin", tt.origin)
			rec := serve(env, r)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.allow, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.allow != "" {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v2/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}
