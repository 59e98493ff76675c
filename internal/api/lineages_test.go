package api_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordsPath = "/v2/schema/lineages/images/records"

func TestAppend_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, recordsPath, "", rootRecord())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_authenticated"`)

	rec = env.do(t, http.MethodPost, recordsPath, "nk_unknown", rootRecord())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tip, err := env.Registry.Tip(context.Background(), "images")
	require.NoError(t, err)
	assert.Nil(t, tip)
}

func TestAppend(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)

	rec := env.do(t, http.MethodPost, recordsPath, key, rootRecord())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, recordsPath+"/0001_initial", rec.Header().Get("Location"))

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "schema-record", data["type"])
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "0001_initial", attrs["name"])
	assert.Equal(t, float64(1), attrs["seq"])
	assert.Nil(t, attrs["predecessor"])
	assert.Len(t, attrs["checksum"], 64)

	// Unnamed records get a generated name.
	rec = env.do(t, http.MethodPost, recordsPath, key, record("", "0001_initial", remove("is_verified")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	attrs = decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "0002_remove_is_verified", attrs["name"])
	assert.Equal(t, "0001_initial", attrs["predecessor"])
}

func TestAppend_Errors(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)

	tests := []struct {
		name string
		body any
		want int
		code string
	}{
		{"stale predecessor", record("0002_x", nil, remove("title")), http.StatusConflict, "ordering_conflict"},
		{"unknown predecessor", record("0002_x", "0000_nope", remove("title")), http.StatusConflict, "ordering_conflict"},
		{"remove unknown field", record("0002_x", "0001_initial", remove("missing")), http.StatusUnprocessableEntity, "validation_failed"},
		{"no operations", record("0002_x", "0001_initial"), http.StatusUnprocessableEntity, "validation_failed"},
		{"duplicate name", record("0001_initial", "0001_initial", remove("title")), http.StatusUnprocessableEntity, "validation_failed"},
		{"add without default", record("0002_x", "0001_initial",
			add(map[string]any{"name": "rating", "type": "integer"})), http.StatusUnprocessableEntity, "validation_failed"},
		{"ordering wins over validation", record("0002_x", nil, remove("missing")), http.StatusConflict, "ordering_conflict"},
		{"bad json", `{"data":`, http.StatusBadRequest, "invalid_request"},
		{"wrong type", recordBody{Data: recordData{Type: "image"}}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, recordsPath, key, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			errs := decode(t, rec)["errors"].([]any)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].(map[string]any)["code"])
		})
	}

	tip, err := env.Registry.Tip(context.Background(), "images")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial", tip.Name)
}

func TestAppend_ConcurrentSamePredecessor(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)

	const writers = 6
	codes := make([]int, writers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			body := record("", "0001_initial", add(map[string]any{
				"name": "field_" + string(rune('a'+i)), "type": "integer", "nullable": true,
			}))
			codes[i] = env.do(t, http.MethodPost, recordsPath, key, body).Code
		}(i)
	}
	close(start)
	wg.Wait()

	created, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, conflicts)
}

func TestRecords_Pagination(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)
	prev := "0001_initial"
	for _, f := range []string{"a", "b", "c", "d"} {
		rec := env.do(t, http.MethodPost, recordsPath, key, record("", prev,
			add(map[string]any{"name": f, "type": "integer", "nullable": true})))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		prev = decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)["name"].(string)
	}

	var names []string
	next := recordsPath + "?limit=2"
	pages := 0
	for next != "" {
		rec := env.do(t, http.MethodGet, next, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		for _, d := range body["data"].([]any) {
			names = append(names, d.(map[string]any)["attributes"].(map[string]any)["name"].(string))
		}
		next = ""
		if links, ok := body["links"].(map[string]any); ok {
			next, _ = links["next"].(string)
		}
		pages++
	}
	assert.Equal(t, 3, pages)
	require.Len(t, names, 5)
	assert.Equal(t, "0001_initial", names[0])
	assert.Equal(t, prev, names[4])

	rec := env.do(t, http.MethodGet, recordsPath+"?cursor=!!!", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v2/schema/lineages/tags/records", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])
}

func TestRecord_Get(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)

	rec := env.do(t, http.MethodGet, recordsPath+"/0001_initial", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs := decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Len(t, attrs["operations"], 3)

	rec = env.do(t, http.MethodGet, recordsPath+"/0009_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}

func TestLineagesAndSchema(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)

	rec := env.do(t, http.MethodGet, "/v2/schema/lineages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key,
		record("0002_drop_verified", "0001_initial", remove("is_verified"))).Code)

	rec = env.do(t, http.MethodGet, "/v2/schema/lineages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	lineage := data[0].(map[string]any)
	assert.Equal(t, "images", lineage["id"])
	assert.Equal(t, "0002_drop_verified", lineage["attributes"].(map[string]any)["tip"])
	assert.Equal(t, float64(2), lineage["attributes"].(map[string]any)["records"])

	rec = env.do(t, http.MethodGet, "/v2/schema/lineages/images/schema", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs := decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "0002_drop_verified", attrs["tip"])
	var fields []string
	for _, f := range attrs["fields"].([]any) {
		fields = append(fields, f.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"title", "verification_status"}, fields)

	rec = env.do(t, http.MethodGet, "/v2/schema/lineages/tags/schema", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs = decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Nil(t, attrs["tip"])
	assert.Empty(t, attrs["fields"])
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	path := "/v2/schema/lineages/images/validate"

	row := func(attrs map[string]any) map[string]any {
		return map[string]any{"data": map[string]any{"type": "image", "attributes": attrs}}
	}

	rec := env.do(t, http.MethodPost, path, "", row(map[string]any{"title": "x"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)

	rec = env.do(t, http.MethodPost, path, "", row(map[string]any{"title": "Cat girl", "verification_status": "verified"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]any)["attributes"].(map[string]any)["valid"])

	rec = env.do(t, http.MethodPost, path, "", row(map[string]any{
		"title":               strings.Repeat("x", 101),
		"verification_status": "bogus",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode(t, rec)["errors"].([]any)
	require.Len(t, errs, 2)
	var pointers []string
	for _, e := range errs {
		em := e.(map[string]any)
		assert.Equal(t, "invalid_value", em["code"])
		pointers = append(pointers, em["source"].(map[string]any)["pointer"].(string))
	}
	assert.Equal(t, []string{"/data/attributes/title", "/data/attributes/verification_status"}, pointers)

	rec = env.do(t, http.MethodPost, path, "", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	key := seedKey(t, env)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, recordsPath, key, rootRecord()).Code)
	statusPath := "/v2/schema/lineages/images/status"

	rec := env.do(t, http.MethodGet, statusPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, false, data[0].(map[string]any)["attributes"].(map[string]any)["applied"])

	_, err := env.Engine.Apply(context.Background(), "images")
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, statusPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs := decode(t, rec)["data"].([]any)[0].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, true, attrs["applied"])
	assert.NotNil(t, attrs["applied_at"])
}

func TestStatus_WithoutEngine(t *testing.T) {
	env := newTestEnv(t, withoutEngine())
	rec := env.do(t, http.MethodGet, "/v2/schema/lineages/images/status", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"apply_disabled"`)
}
