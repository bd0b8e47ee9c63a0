package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/weldalign/internal/model"
	"github.com/sells-group/weldalign/internal/store"
)

func newTestServer(t *testing.T, withStore bool) (*apiServer, http.Handler) {
	t.Helper()
	s := &apiServer{opts: testPipelineOptions(), maxUpload: 8 << 20}
	if withStore {
		st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		require.NoError(t, st.Migrate(context.Background()))
		t.Cleanup(func() { _ = st.Close() })
		s.store = st
	}
	return s, s.routes()
}

// uploadRequest builds a multipart POST /v1/align request. files maps form
// field to file name and content.
func uploadRequest(t *testing.T, files map[string][2]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		fw, err := mw.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/align", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func bothInspections() map[string][2]string {
	return map[string][2]string{
		"file1": {"2019.csv", inspection1},
		"file2": {"2023.csv", inspection2},
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthEndpoint_StoreCheck(t *testing.T) {
	s, h := newTestServer(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, s.store.Close())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body["status"])
}

func TestAlignEndpoint(t *testing.T) {
	s, h := newTestServer(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t, bothInspections(), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp alignResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "2019.csv", resp.Source1)
	assert.Equal(t, "2023.csv", resp.Source2)
	assert.Equal(t, 4, resp.Summary.AlignedAnchors)
	assert.Equal(t, 2, resp.Summary.TotalMatched)
	assert.Len(t, resp.Pairs, 4)
	assert.Len(t, resp.Matches, 2)

	saved, err := s.store.GetRun(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Summary.TotalMatched, saved.Summary.TotalMatched)
}

func TestAlignEndpoint_WithoutStore(t *testing.T) {
	_, h := newTestServer(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, uploadRequest(t, bothInspections(), map[string]string{"min_confidence": "0.9"}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp alignResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.ID)
	assert.InDelta(t, 0.9, resp.Tolerances.MinConfidence, 1e-9)
}

func TestAlignEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string][2]string
		fields map[string]string
		status int
	}{
		{
			name:   "missing file2",
			files:  map[string][2]string{"file1": {"a.csv", inspection1}},
			status: http.StatusBadRequest,
		},
		{
			name: "unsupported type",
			files: map[string][2]string{
				"file1": {"a.pdf", inspection1},
				"file2": {"b.csv", inspection2},
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid tolerance",
			files:  bothInspections(),
			fields: map[string]string{"distance_tol": "abc"},
			status: http.StatusBadRequest,
		},
		{
			name:   "out of range confidence",
			files:  bothInspections(),
			fields: map[string]string{"min_confidence": "1.5"},
			status: http.StatusBadRequest,
		},
		{
			name: "no distance column",
			files: map[string][2]string{
				"file1": {"a.csv", "weld id,depth\n1,\n"},
				"file2": {"b.csv", inspection2},
			},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, false)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, uploadRequest(t, tt.files, tt.fields))

			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAlignEndpoint_NotMultipart(t *testing.T) {
	_, h := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/align", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunsEndpoints(t *testing.T) {
	s, h := newTestServer(t, true)
	ctx := context.Background()

	run := &model.Run{Source1: "2019.csv", Source2: "2023.csv", BaseDistance: 50}
	require.NoError(t, s.store.SaveRun(ctx, run))
	require.NoError(t, s.store.SaveRun(ctx, &model.Run{Source1: "a.csv", Source2: "b.csv"}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?source=2019.csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, run.ID, list.Runs[0].ID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.InDelta(t, 50, got.BaseDistance, 1e-9)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunsEndpoints_Disabled(t *testing.T) {
	_, h := newTestServer(t, false)

	for _, path := range []string{"/v1/runs", "/v1/runs/abc"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/v1/align", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
