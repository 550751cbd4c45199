package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/monitoring"
	"github.com/sells-group/compliance-cli/internal/pipeline"
	"github.com/sells-group/compliance-cli/internal/report"
	"github.com/sells-group/compliance-cli/internal/store"
)

type fakeEvaluator struct {
	got *model.Dataset
	err error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, ds *model.Dataset) (*pipeline.Outcome, error) {
	f.got = ds
	out := &pipeline.Outcome{File: ds.Name, Status: model.RunStatusReported}
	if f.err != nil {
		out.Status = model.RunStatusPreprocessFailed
		out.Err = f.err
		return out, f.err
	}
	out.Report = &model.ComplianceReport{File: ds.Name, Columns: ds.ColumnNames()}
	return out, nil
}

type fakeRuns struct {
	runs   []model.Run
	phases []model.RunPhase
	filter store.RunFilter
	err    error
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*model.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.filter = filter
	return f.runs, f.err
}

func (f *fakeRuns) CountRuns(context.Context) (map[model.RunStatus]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	counts := make(map[model.RunStatus]int)
	for _, r := range f.runs {
		counts[r.Status]++
	}
	return counts, nil
}

func (f *fakeRuns) ListPhases(context.Context, string) ([]model.RunPhase, error) {
	return f.phases, nil
}

func serverConfig() config.ServerConfig {
	return config.ServerConfig{RatePerSecond: 100, Burst: 100, MaxUploadMB: 1}
}

func upload(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg)
	m.Dataset(model.RunStatusReported)
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, reg).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `compliance_datasets_total{status="reported"} 1`)
}

func TestEvaluate(t *testing.T) {
	eval := &fakeEvaluator{}
	h := NewServer(serverConfig(), eval, nil, prometheus.NewRegistry()).Handler()

	body, ct := upload(t, "file", "loans.csv", "age,approved\n30,1\n40,0\n")
	req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, eval.got)
	assert.Equal(t, "loans.csv", eval.got.Name)
	assert.Equal(t, 2, eval.got.Rows())

	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, model.RunStatusReported, out.Status)
	require.NotNil(t, out.Report)
	assert.Equal(t, []string{"age", "approved"}, out.Report.Columns)
}

func TestEvaluate_MissingFile(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	body, ct := upload(t, "other", "loans.csv", "a\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate_NotMultipart(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	rec := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate_UnsupportedType(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	body, ct := upload(t, "file", "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, h, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestEvaluate_PreprocessFailure(t *testing.T) {
	eval := &fakeEvaluator{err: errors.New("pipeline: preprocess loans.csv")}
	h := NewServer(serverConfig(), eval, nil, prometheus.NewRegistry()).Handler()

	body, ct := upload(t, "file", "loans.csv", "age\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, h, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "preprocess")
}

func TestEvaluate_RateLimited(t *testing.T) {
	cfg := config.ServerConfig{RatePerSecond: 0.001, Burst: 1, MaxUploadMB: 1}
	h := NewServer(cfg, &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	send := func() int {
		body, ct := upload(t, "file", "loans.csv", "age\n1\n")
		req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
		req.Header.Set("Content-Type", ct)
		return do(t, h, req).Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRuns_Disabled(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, nil, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{runs: []model.Run{
		{ID: "r1", File: "a.csv", Status: model.RunStatusReported, CreatedAt: time.Now()},
	}}
	h := NewServer(serverConfig(), &fakeEvaluator{}, runs, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs?status=reported&file=a.csv&limit=5&offset=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RunFilter{Status: model.RunStatusReported, File: "a.csv", Limit: 5, Offset: 2}, runs.filter)

	var got []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestListRuns_Empty(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, &fakeRuns{}, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRuns_BadLimit(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, &fakeRuns{}, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns_StoreError(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, &fakeRuns{err: errors.New("db down")}, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRun(t *testing.T) {
	runs := &fakeRuns{
		runs:   []model.Run{{ID: "r1", File: "a.csv", Status: model.RunStatusReported}},
		phases: []model.RunPhase{{ID: "p1", RunID: "r1", Name: "load", Status: model.PhaseStatusComplete}},
	}
	h := NewServer(serverConfig(), &fakeEvaluator{}, runs, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		ID     string           `json:"id"`
		File   string           `json:"file"`
		Phases []model.RunPhase `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "a.csv", got.File)
	require.Len(t, got.Phases, 1)
	assert.Equal(t, "load", got.Phases[0].Name)
}

func TestGetRun_NotFound(t *testing.T) {
	h := NewServer(serverConfig(), &fakeEvaluator{}, &fakeRuns{}, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	runs := &fakeRuns{runs: []model.Run{
		{ID: "r1", Status: model.RunStatusReported},
		{ID: "r2", Status: model.RunStatusReported},
		{ID: "r3", Status: model.RunStatusLoadFailed},
	}}
	h := NewServer(serverConfig(), &fakeEvaluator{}, runs, prometheus.NewRegistry()).Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":3,"by_status":{"reported":2,"load_failed":1}}`, rec.Body.String())
}

func TestEvaluate_EndToEnd(t *testing.T) {
	cfg := &config.Config{
		Scoring: config.ScoringConfig{Seed: 42, TestRatio: 0.2, Thresholds: config.DefaultThresholds()},
		Batch:   config.BatchConfig{MaxConcurrentDatasets: 1, ConcurrentPillars: true},
		Output:  config.OutputConfig{Dir: filepath.Join(t.TempDir(), "out"), ReportFormat: report.FormatJSON},
	}
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	h := NewServer(serverConfig(), pipeline.New(cfg, st, nil), st, prometheus.NewRegistry()).Handler()

	body, ct := upload(t, "file", "audit.csv", "audit_flag,timestamp,score\nyes,1,0\nno,2,1\nyes,3,0\nno,4,1\nyes,5,1\n")
	req := httptest.NewRequest(http.MethodPost, "/evaluate", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.RunID)
	require.NotNil(t, out.Report)
	assert.True(t, out.Report.Result(model.PillarAccountability).Flag("auditability"))
	assert.True(t, out.Report.Result(model.PillarAccountability).Flag("traceability"))

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/runs/"+out.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"reported"`)
}
