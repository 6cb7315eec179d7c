package trackserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/trackserver"
	"github.com/born-ml/trainer/internal/tracking"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := tracking.Open(tracking.DBConfig{Driver: "sqlite", DBName: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := tracking.NewStore(db, quiet)
	require.NoError(t, err)
	return trackserver.NewRouter(trackserver.NewHandler(store, quiet))
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRunEndpoints(t *testing.T) {
	r := newRouter(t)

	w := performRequest(r, http.MethodPost, "/api/v1/runs", tracking.RunSpec{Project: "p", Name: "m_fold_0", Group: "m"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var run tracking.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))

	w = performRequest(r, http.MethodPost, "/api/v1/runs/"+run.ID+"/metrics",
		tracking.MetricsRequest{Metrics: map[string]float64{"val_loss": 0.4}, Step: 3})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = performRequest(r, http.MethodPatch, "/api/v1/runs/"+run.ID, tracking.FinishRequest{Status: tracking.StatusFinished})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var finished tracking.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &finished))
	assert.Equal(t, tracking.StatusFinished, finished.Status)
	require.Len(t, finished.Metrics, 1)
	assert.Equal(t, int64(3), finished.Metrics[0].Step)

	w = performRequest(r, http.MethodPatch, "/api/v1/runs/"+run.ID, tracking.FinishRequest{Status: tracking.StatusFailed})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(r, http.MethodGet, "/api/v1/runs?project=p&group=m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs []tracking.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRunEndpoints_Errors(t *testing.T) {
	r := newRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing project", http.MethodPost, "/api/v1/runs", tracking.RunSpec{Name: "n"}, http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/api/v1/runs/nope", nil, http.StatusNotFound},
		{"metrics for unknown run", http.MethodPost, "/api/v1/runs/nope/metrics", tracking.MetricsRequest{}, http.StatusNotFound},
		{"non-terminal status", http.MethodPatch, "/api/v1/runs/nope", tracking.FinishRequest{Status: tracking.StatusRunning}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performRequest(r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w := performRequest(r, http.MethodGet, "/api/v1/runs?project=none", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHTTPClientAgainstServer(t *testing.T) {
	srv := httptest.NewServer(newRouter(t))
	defer srv.Close()

	ctx := context.Background()
	c := tracking.NewHTTPClient(srv.URL, srv.Client())

	run, err := c.CreateRun(ctx, tracking.RunSpec{Project: "p", Name: "n"})
	require.NoError(t, err)
	require.NoError(t, c.LogMetrics(ctx, run.ID, map[string]float64{"test_acc": 0.9}, 0))
	require.NoError(t, c.FinishRun(ctx, run.ID, tracking.StatusFinished))

	got, err := c.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, got.Status)
	assert.ErrorIs(t, c.FinishRun(ctx, run.ID, tracking.StatusKilled), tracking.ErrRunFinished)
}
