package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go-fastq-summary/internal/config"
	"go-fastq-summary/internal/model"
	"go-fastq-summary/internal/pipeline"
	"go-fastq-summary/internal/store"
	"go-fastq-summary/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const runsPrefix = "/api/v1/runs/"

// RunHandler serves the summary run API
type RunHandler struct {
	log     *zap.Logger
	metrics *pipeline.Metrics
	outputs *utils.OutputManager
	cfg     *config.Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunHandler wires the handler dependencies
func NewRunHandler(log *zap.Logger, metrics *pipeline.Metrics, outputs *utils.OutputManager, cfg *config.Config) *RunHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RunHandler{
		log:     log,
		metrics: metrics,
		outputs: outputs,
		cfg:     cfg,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Wait blocks until every background run has finished
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

// Shutdown cancels every active run and waits for them
func (h *RunHandler) Shutdown() {
	h.mu.Lock()
	for _, cancel := range h.cancels {
		cancel()
	}
	h.mu.Unlock()
	h.Wait()
}

// CreateRun creates a new summary run
// @Summary Create a new run
// @Description Validate the run configuration and start converting the fastq directory in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 200 {object} map[string]interface{} "Run created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// 1. Validate payload
	if spec.FastqDir == "" {
		http.Error(w, "fastqDir is required", http.StatusBadRequest)
		return
	}

	// 2. Generate run ID and output location
	runID := uuid.New().String()
	summaryPath, err := h.outputs.SummaryPath(runID)
	if err != nil {
		http.Error(w, "Failed to create output directory", http.StatusInternalServerError)
		return
	}
	spec.SummaryFile = summaryPath
	spec = h.cfg.Apply(spec)

	// 3. Build the pipeline, rejecting bad configurations synchronously
	p, err := pipeline.New(pipeline.Options{
		Spec:    spec,
		Logger:  h.log.With(zap.String("run_id", runID)),
		Metrics: h.metrics,
	})
	if err != nil {
		os.RemoveAll(filepath.Dir(summaryPath))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 4. Save run to DB
	if err := store.SaveRun(runID, p.Spec()); err != nil {
		os.RemoveAll(filepath.Dir(summaryPath))
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 5. Start pipeline asynchronously
	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancels[runID] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.forget(runID)
		h.execute(ctx, runID, p)
	}()

	// 6. Return response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Run created successfully!",
		"runID":       runID,
		"status":      store.StatusPending,
		"summaryFile": summaryPath,
		"downloadURL": h.outputs.GetDownloadURL(runID),
		"createdAt":   time.Now().UTC(),
	})
}

// execute runs the pipeline and records its outcome in the ledger
func (h *RunHandler) execute(ctx context.Context, runID string, p *pipeline.Pipeline) {
	log := h.log.With(zap.String("run_id", runID))
	setStatus(log, runID, store.StatusRunning)

	report, err := p.Run(ctx)
	if err != nil {
		status := store.StatusFailed
		kind := string(pipeline.KindParse)
		var se *pipeline.SummaryError
		if errors.As(err, &se) {
			kind = string(se.Kind)
			if se.Kind == pipeline.KindInterrupted {
				status = store.StatusCancelled
			}
		}
		if e := store.SaveRunError(runID, kind, err); e != nil {
			log.Error("Failed to record run error", zap.Error(e))
		}
		setStatus(log, runID, status)
		log.Warn("❌ Run failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	if err := store.SaveRunReport(runID, report.TotalReads, report.ReadsPerSecond, report.Elapsed, report.Counters); err != nil {
		log.Error("Failed to record run report", zap.Error(err))
	}
	setStatus(log, runID, store.StatusCompleted)
	log.Info("✅ Run completed", zap.Int("reads", report.TotalReads))
}

func setStatus(log *zap.Logger, runID, status string) {
	if err := store.UpdateRunStatus(runID, status); err != nil {
		log.Error("Failed to update run status", zap.String("status", status), zap.Error(err))
	}
}

func (h *RunHandler) forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.cancels[runID]; ok {
		cancel()
		delete(h.cancels, runID)
	}
}

func (h *RunHandler) active(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.cancels[runID]
	return ok
}

// ListRuns retrieves all summary runs
// @Summary List all runs
// @Description Get a list of all runs with their current status
// @Tags runs
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Description Retrieve the configuration, status and totals of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		notFoundOr500(w, err, "Run not found", "Failed to retrieve run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Retrieve the fatal error recorded for a run, if any
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/errors")
	if !ok {
		return
	}

	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunCounters retrieves the merged diagnostic counters of a run
// @Summary Get run counters
// @Description Retrieve overall, fields found and fields not found counters of a completed run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run counters"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/counters [get]
func (h *RunHandler) GetRunCounters(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/counters")
	if !ok {
		return
	}

	if _, err := store.GetRun(runID); err != nil {
		notFoundOr500(w, err, "Run not found", "Failed to retrieve run")
		return
	}

	counters, err := store.GetRunCounters(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve counters", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   runID,
		"counters": counters,
	})
}

// CancelRun cancels a running summary run
// @Summary Cancel run
// @Description Stop every unit of a running run; no summary file is left behind
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run cancelled"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run is not active"
// @Router /runs/{id}/cancel [patch]
func (h *RunHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/cancel")
	if !ok {
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		notFoundOr500(w, err, "Run not found", "Failed to retrieve run")
		return
	}

	h.mu.Lock()
	cancel, active := h.cancels[runID]
	h.mu.Unlock()
	if !active {
		http.Error(w, fmt.Sprintf("Run is already %s and cannot be cancelled", run["status"]), http.StatusConflict)
		return
	}
	cancel()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Run cancellation requested",
		"run_id":  runID,
		"status":  store.StatusCancelled,
	})
}

// DeleteRun deletes a finished run and its summary file
// @Summary Delete run
// @Description Delete a finished run, its ledger entries and its output directory
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run deleted"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run is still active"
// @Router /runs/{id} [delete]
func (h *RunHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}

	if _, err := store.GetRun(runID); err != nil {
		notFoundOr500(w, err, "Run not found", "Failed to retrieve run")
		return
	}
	if h.active(runID) {
		http.Error(w, "Run is still active, cancel it first", http.StatusConflict)
		return
	}

	runDir := filepath.Join(h.outputs.BaseOutputDir, runID)
	if err := os.RemoveAll(runDir); err != nil {
		h.log.Warn("Failed to delete run directory", zap.String("dir", runDir), zap.Error(err))
	}
	if err := store.DeleteRun(runID); err != nil {
		http.Error(w, "Failed to delete run from database", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Run and its summary deleted successfully",
		"run_id":  runID,
	})
}

// DownloadSummary serves the summary table of a run
// @Summary Download summary
// @Description Download the sequencing summary written by a completed run
// @Tags files
// @Produce text/tab-separated-values
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "Summary file"
// @Failure 400 {object} map[string]interface{} "Invalid URL format"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func (h *RunHandler) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/runID/filename
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 5 || pathParts[4] != utils.SummaryFileName {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	runID := pathParts[3]
	if _, err := uuid.Parse(runID); err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(h.outputs.BaseOutputDir, runID, utils.SummaryFileName)
	size, err := h.outputs.GetFileSize(filePath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	h.log.Debug("Serving summary", zap.String("run_id", runID), zap.Int64("bytes", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", utils.SummaryFileName))
	w.Header().Set("Content-Type", "text/tab-separated-values")
	http.ServeFile(w, r, filePath)
}

// runIDFromPath extracts the run ID between the runs prefix and suffix
func runIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) || len(path) < len(runsPrefix)+len(suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}

	runID := path[len(runsPrefix) : len(path)-len(suffix)]
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}

func notFoundOr500(w http.ResponseWriter, err error, notFound, failed string) {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, notFound, http.StatusNotFound)
		return
	}
	http.Error(w, failed, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
