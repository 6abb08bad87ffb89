package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go-fastq-summary/internal/api/handler"
	"go-fastq-summary/internal/pipeline"
	"go-fastq-summary/internal/store"
	"go-fastq-summary/pkg/router"
	"go-fastq-summary/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes(t *testing.T) {
	require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "ledger.db")))
	defer store.CloseDB()

	reg := prometheus.NewRegistry()
	h := handler.NewRunHandler(nil, pipeline.NewMetrics(reg), utils.NewOutputManager(t.TempDir()), nil)
	r := router.New(nil, false)
	RegisterRoutes(r, h, reg)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/runs", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/v1/runs/unknown/errors", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/unknown/counters", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/runs/unknown/cancel", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/runs/unknown", http.StatusNotFound},
		{http.MethodPut, "/api/v1/runs", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "fastq_summary_files_scanned_total")
}
