package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nekidev/nekos-api/internal/api"
	"github.com/nekidev/nekos-api/internal/apply"
	"github.com/nekidev/nekos-api/internal/auth"
	"github.com/nekidev/nekos-api/internal/ratelimit"
	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/testutil"
)

// testEnv holds the stores and helpers needed for API integration tests.
type testEnv struct {
	Router   http.Handler
	Registry *registry.Registry
	Engine   *apply.Engine
	Keys     *auth.SQLKeyStore
}

type envOption func(*api.Deps)

func withoutEngine() envOption {
	return func(d *api.Deps) { d.Engine = nil }
}

func withLimit(t *testing.T, notation string) envOption {
	return func(d *api.Deps) {
		p, err := ratelimit.NewPolicy("api", notation)
		require.NoError(t, err)
		d.Limiter = ratelimit.New(p)
	}
}

// newTestEnv creates an in-memory SQLite registry and a separate target
// database, and wires up the full router with real stores.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)

	reg := registry.New(registry.NewSQLStore(db), 0)
	keys := auth.NewSQLKeyStore(db)
	engine := apply.NewEngine(testutil.NewTargetDB(t), apply.SQLite, reg)

	deps := api.Deps{
		Registry:       reg,
		Engine:         engine,
		BearerAuth:     auth.NewBearerMiddleware(keys),
		APIVersion:     "2.0.0-test",
		AllowedOrigins: []string{"https://nekosapi.com"},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{
		Router:   api.NewRouter(deps),
		Registry: reg,
		Engine:   deps.Engine,
		Keys:     keys,
	}
}

// seedKey creates an operator key and returns the plaintext bearer value.
func seedKey(t *testing.T, env *testEnv) string {
	t.Helper()
	plaintext, hash, err := auth.GenerateKey()
	require.NoError(t, err)
	_, err = env.Keys.Create(context.Background(), "test-key", hash, nil)
	require.NoError(t, err)
	return plaintext
}

// do sends a request through the router. body is JSON-encoded unless it is
// already a string.
func (env *testEnv) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type recordBody struct {
	Data recordData `json:"data"`
}

type recordData struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

func record(name string, predecessor any, ops ...map[string]any) recordBody {
	attrs := map[string]any{"predecessor": predecessor, "operations": ops}
	if name != "" {
		attrs["name"] = name
	}
	return recordBody{Data: recordData{Type: "schema-record", Attributes: attrs}}
}

func add(def map[string]any) map[string]any {
	return map[string]any{"kind": "add", "field": def["name"], "definition": def}
}

func remove(field string) map[string]any {
	return map[string]any{"kind": "remove", "field": field}
}

func rootRecord() recordBody {
	return record("0001_initial", nil,
		add(map[string]any{"name": "title", "type": "string", "max_length": 100, "blank": true, "default": ""}),
		add(map[string]any{"name": "is_verified", "type": "boolean", "default": "false"}),
		add(map[string]any{
			"name": "verification_status", "type": "string", "max_length": 12, "default": "not_reviewed",
			"choices": []map[string]any{{"value": "not_reviewed"}, {"value": "verified"}},
		}),
	)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(env *testEnv, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, r)
	return rec
}
