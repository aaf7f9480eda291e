package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/metrics"
	"github.com/prisma-miner/internal/pipeline"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv, err := NewServer(domain.ServerConfig{Host: "127.0.0.1", Port: 0}, nil, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, WithHealthCheck("postgres", healthFunc(func(context.Context) error { return nil })))

	rec := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"postgres": "ok"}, body["dependencies"])
}

func TestHealthDegraded(t *testing.T) {
	srv := newTestServer(t, WithHealthCheck("postgres", healthFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	rec := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestBuildQuery(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/query", map[string]interface{}{
		"organism":   "Arabidopsis thaliana",
		"condition":  "salt stress",
		"experiment": "RNA-seq",
		"targets":    []string{"sra", "ena"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Queries, 2)
	assert.Equal(t, "sra", string(resp.Queries[0].Target))
	assert.Contains(t, resp.Queries[0].Expression, "Arabidopsis thaliana[Organism]")
	assert.Contains(t, resp.Queries[0].Expression, "strategy_rna_seq[Properties]")
	assert.Equal(t, "read_run", resp.Queries[1].Params["result"])
	assert.Equal(t, []string{"Arabidopsis thaliana", "A. thaliana", "Arabidopsis"}, resp.Expansion.Organism)
}

func TestBuildQueryErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/query", map[string]interface{}{
		"organism": "Arabidopsis thaliana",
		"targets":  []string{"scopus"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var apiErr domain.APIError
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ErrValidation, apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)

	rec = do(t, srv, http.MethodPost, "/api/v1/query", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &apiErr)
	assert.Equal(t, domain.ErrInvalidInput, apiErr.Code)
}

func TestValidateQuery(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		query string
		valid bool
	}{
		{`("salt stress") AND ("Arabidopsis thaliana"[Organism])`, true},
		{`("salt stress"`, false},
		{"", false},
	}
	for _, tc := range cases {
		rec := do(t, srv, http.MethodPost, "/api/v1/query/validate", map[string]string{"query": tc.query})
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Valid bool `json:"valid"`
		}
		decode(t, rec, &body)
		assert.Equal(t, tc.valid, body.Valid, tc.query)
	}

	rec := do(t, srv, http.MethodPost, "/api/v1/query/validate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssess(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/assess", map[string]interface{}{
		"records": []domain.Record{
			{ID: "SRX1", SourceDatabase: "SRA", Title: "Root transcriptome under salt stress in Arabidopsis seedlings",
				Organism: "Arabidopsis thaliana", Tissue: "root", TissueConfidence: domain.TissueInferred},
			{ID: "SRX2", SourceDatabase: "SRA"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp assessResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Records, 2)
	require.NotNil(t, resp.Records[0].Quality)
	assert.Greater(t, resp.Records[0].Quality.TotalScore, resp.Records[1].Quality.TotalScore)
	assert.Equal(t, 2, resp.Report.Count)

	rec = do(t, srv, http.MethodPost, "/api/v1/assess", map[string]interface{}{"records": []domain.Record{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVocabulary(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/vocabulary/conditions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Categories []struct {
			ID string `json:"id"`
		} `json:"categories"`
	}
	decode(t, rec, &body)
	assert.Len(t, body.Categories, 29)

	rec = do(t, srv, http.MethodGet, "/api/v1/vocabulary/experiments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Len(t, body.Categories, 20)

	rec = do(t, srv, http.MethodGet, "/api/v1/vocabulary/genes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpand(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/vocabulary/expand?kind=organism&term=Oryza+sativa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Terms  []string `json:"terms"`
		Domain string   `json:"domain"`
	}
	decode(t, rec, &body)
	assert.Equal(t, []string{"Oryza sativa", "O. sativa", "Oryza"}, body.Terms)
	assert.Equal(t, "plant", body.Domain)

	rec = do(t, srv, http.MethodGet, "/api/v1/vocabulary/expand?kind=condition&term=drought", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Contains(t, body.Terms, "drought")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/vocabulary/expand?kind=gene&term=x", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/vocabulary/expand?kind=condition", nil).Code)
}

func TestRunsRoutes(t *testing.T) {
	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer runs.Close()

	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, runs.SaveRun(context.Background(), &store.RunRecord{
		ID: "run-1", Label: "salt", Condition: "salt stress", Organism: "Arabidopsis thaliana",
		CreatedAt: created, TotalIdentified: 1, TotalScreened: 1, TotalIncluded: 1,
		Entries: []prisma.ScreeningEntry{
			{Timestamp: created, RecordID: "SRX1", Database: "SRA", Decision: prisma.DecisionIncluded},
		},
	}))

	srv := newTestServer(t, WithRunStore(runs))

	rec := do(t, srv, http.MethodGet, "/api/v1/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list runsResponse
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "run-1", list.Runs[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/v1/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run store.RunRecord
	decode(t, rec, &run)
	assert.Len(t, run.Entries, 1)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/runs/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/runs?limit=-1", nil).Code)
}

func TestRunsRoutesDisabledWithoutStore(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/runs", nil).Code)
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, WithMetrics(metrics.New()))
	do(t, srv, http.MethodGet, "/health", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `prisma_miner_http_requests_total{method="GET",route="/health",status="200"} 1`)

	assert.Equal(t, http.StatusNotFound, do(t, newTestServer(t), http.MethodGet, "/metrics", nil).Code)
}

type fakeRunner struct {
	got pipeline.RunRequest
	err error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	label := req.Label
	if label == "" {
		label = req.Condition
	}
	return &pipeline.RunResult{
		ID:      "run-42",
		Request: pipeline.RunRequest{Label: label},
		Summary: prisma.FlowSummary{TotalIdentified: 7, TotalScreened: 5, TotalExcluded: 1, TotalIncluded: 4, ExclusionRate: 20},
	}, nil
}

func TestStartRun(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(t, WithRunner(runner, domain.PipelineConfig{QualityFilter: true, MinQuality: 50}))

	rec := do(t, srv, http.MethodPost, "/api/v1/runs", map[string]interface{}{
		"organism":    "Arabidopsis thaliana",
		"condition":   "salt stress",
		"min_quality": 65,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp startRunResponse
	decode(t, rec, &resp)
	assert.Equal(t, "run-42", resp.ID)
	assert.Equal(t, "salt stress", resp.Label)
	assert.Equal(t, 4, resp.Summary.TotalIncluded)

	assert.True(t, runner.got.QualityFilter)
	assert.Equal(t, 65.0, runner.got.MinQuality)
	assert.Empty(t, runner.got.OutputDir)

	rec = do(t, srv, http.MethodPost, "/api/v1/runs", map[string]interface{}{"organism": "Arabidopsis thaliana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRunMapsErrors(t *testing.T) {
	runner := &fakeRunner{err: domain.NewValidationError("databases", "unsupported database", "ena")}
	srv := newTestServer(t, WithRunner(runner, domain.PipelineConfig{}))

	rec := do(t, srv, http.MethodPost, "/api/v1/runs", map[string]interface{}{
		"organism": "Zea mays", "condition": "drought", "databases": []string{"ena"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runner.err = errors.New("database is locked")
	rec = do(t, srv, http.MethodPost, "/api/v1/runs", map[string]interface{}{"organism": "Zea mays", "condition": "drought"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}
