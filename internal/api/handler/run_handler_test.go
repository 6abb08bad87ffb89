package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-fastq-summary/internal/pipeline"
	"go-fastq-summary/internal/store"
	"go-fastq-summary/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testServer struct {
	h       *RunHandler
	metrics *pipeline.Metrics
	outputs string
}

func setup(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "ledger.db")))
	t.Cleanup(func() { store.CloseDB() })

	outputs := filepath.Join(t.TempDir(), "outputs")
	om := utils.NewOutputManager(outputs)
	require.NoError(t, om.EnsureOutputDirExists())

	metrics := pipeline.NewMetrics(prometheus.NewRegistry())
	h := NewRunHandler(zap.NewNop(), metrics, om, nil)
	t.Cleanup(h.Shutdown)
	return &testServer{h: h, metrics: metrics, outputs: outputs}
}

func fastqDir(t *testing.T, reads int) string {
	t.Helper()
	dir := t.TempDir()
	var sb strings.Builder
	for i := 0; i < reads; i++ {
		fmt.Fprintf(&sb, "@read%03d runid=r1 ch=%d start_time=2021-03-04T10:00:%02dZ barcode=barcode02\nACGTGC\n+\nIIIIII\n", i, i+1, i%60)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample_0.fastq"), []byte(sb.String()), 0o644))
	return dir
}

func call(handler http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateRunCompletes(t *testing.T) {
	s := setup(t)
	dir := fastqDir(t, 12)

	rec := call(s.h.CreateRun, http.MethodPost, "/api/v1/runs", map[string]interface{}{
		"fastqDir":   dir,
		"threads":    3,
		"basecallId": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	runID := created["runID"].(string)
	assert.Equal(t, store.StatusPending, created["status"])
	assert.Equal(t, "/api/v1/download/"+runID+"/"+utils.SummaryFileName, created["downloadURL"])

	s.h.Wait()

	rec = call(s.h.GetRun, http.MethodGet, "/api/v1/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode(t, rec)
	assert.Equal(t, store.StatusCompleted, run["status"])
	assert.Equal(t, float64(12), run["totalReads"])

	rec = call(s.h.GetRunCounters, http.MethodGet, "/api/v1/runs/"+runID+"/counters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counters := decode(t, rec)["counters"].(map[string]interface{})
	assert.Equal(t, float64(1), counters["overall"].(map[string]interface{})["files"])
	assert.Equal(t, float64(12), counters["fields_found"].(map[string]interface{})["barcode"])

	rec = call(s.h.GetRunErrors, http.MethodGet, "/api/v1/runs/"+runID+"/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["count"])

	rec = call(s.h.DownloadSummary, http.MethodGet, "/api/v1/download/"+runID+"/"+utils.SummaryFileName, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 13)
	assert.True(t, strings.HasPrefix(lines[1], "read000\tr1\t1\t0\t"))

	rec = call(s.h.ListRuns, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Runs.WithLabelValues("success")))
}

func TestCreateRunRecordsFailure(t *testing.T) {
	s := setup(t)
	empty := t.TempDir()

	rec := call(s.h.CreateRun, http.MethodPost, "/api/v1/runs", map[string]interface{}{"fastqDir": empty, "threads": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	runID := decode(t, rec)["runID"].(string)
	s.h.Wait()

	rec = call(s.h.GetRun, http.MethodGet, "/api/v1/runs/"+runID, nil)
	assert.Equal(t, store.StatusFailed, decode(t, rec)["status"])

	rec = call(s.h.GetRunErrors, http.MethodGet, "/api/v1/runs/"+runID+"/errors", nil)
	body := decode(t, rec)
	require.Equal(t, float64(1), body["count"])
	first := body["errors"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, string(pipeline.KindNoInput), first["kind"])
	assert.Contains(t, first["error"], "no valid fastq files found")

	_, err := os.Stat(filepath.Join(s.outputs, runID, utils.SummaryFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateRunRejectsBadRequests(t *testing.T) {
	s := setup(t)

	rec := httptest.NewRecorder()
	s.h.CreateRun(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(s.h.CreateRun, http.MethodPost, "/api/v1/runs", map[string]interface{}{"threads": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(s.h.CreateRun, http.MethodPost, "/api/v1/runs", map[string]interface{}{"fastqDir": t.TempDir(), "threads": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 3 threads")

	entries, err := os.ReadDir(s.outputs)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunLookupErrors(t *testing.T) {
	s := setup(t)

	assert.Equal(t, http.StatusNotFound, call(s.h.GetRun, http.MethodGet, "/api/v1/runs/unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(s.h.GetRunCounters, http.MethodGet, "/api/v1/runs/unknown/counters", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(s.h.GetRun, http.MethodGet, "/api/v1/runs/", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(s.h.DownloadSummary, http.MethodGet, "/api/v1/download/x/../../etc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, call(s.h.DownloadSummary, http.MethodGet, "/api/v1/download/not-a-uuid/"+utils.SummaryFileName, nil).Code)
}

func TestCancelAndDeleteFinishedRun(t *testing.T) {
	s := setup(t)
	dir := fastqDir(t, 3)

	rec := call(s.h.CreateRun, http.MethodPost, "/api/v1/runs", map[string]interface{}{"fastqDir": dir, "threads": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	runID := decode(t, rec)["runID"].(string)
	s.h.Wait()

	rec = call(s.h.CancelRun, http.MethodPatch, "/api/v1/runs/"+runID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(s.h.DeleteRun, http.MethodDelete, "/api/v1/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := os.Stat(filepath.Join(s.outputs, runID))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, http.StatusNotFound, call(s.h.GetRun, http.MethodGet, "/api/v1/runs/"+runID, nil).Code)
}

func TestSetStatusLogsLedgerFailure(t *testing.T) {
	require.NoError(t, store.CloseDB())
	core, logs := observer.New(zap.ErrorLevel)

	setStatus(zap.New(core), "run-1", store.StatusRunning)

	entries := logs.FilterMessage("Failed to update run status").All()
	require.Len(t, entries, 1)
	assert.Equal(t, store.StatusRunning, entries[0].ContextMap()["status"])
}
