package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go-fastq-summary/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "ledger.db")))
	t.Cleanup(func() { CloseDB() })
}

func TestRunLifecycle(t *testing.T) {
	setupDB(t)
	assert.True(t, Enabled())

	spec := model.RunSpec{FastqDir: "/data/fastq", SummaryFile: "/data/summary.txt", Threads: 4, BasecallID: 2}
	require.NoError(t, SaveRun("run-1", spec))
	require.NoError(t, UpdateRunStatus("run-1", StatusRunning))

	counters := model.NewCounters()
	counters.Overall[model.CountFiles] = 3
	counters.Overall[model.CountValidReads] = 75
	counters.FieldsNotFound[model.FieldBarcode] = 10
	require.NoError(t, SaveRunReport("run-1", 75, 1234.5, 1500*time.Millisecond, counters))
	require.NoError(t, UpdateRunStatus("run-1", StatusCompleted))

	run, err := GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run["status"])
	assert.Equal(t, 75, run["totalReads"])
	assert.Equal(t, 1234.5, run["readsPerSecond"])
	assert.Equal(t, int64(1500), run["elapsedMs"])
	assert.Equal(t, "/data/summary.txt", run["summaryFile"])
	assert.Equal(t, 2, run["spec"].(model.RunSpec).BasecallID)

	got, err := GetRunCounters("run-1")
	require.NoError(t, err)
	assert.Equal(t, counters, got)

	runs, err := ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0]["id"])
}

func TestRunErrors(t *testing.T) {
	setupDB(t)
	require.NoError(t, SaveRun("run-2", model.RunSpec{}))

	require.NoError(t, SaveRunError("run-2", "parse", errors.New("failed to parse bad.fastq.gz")))
	require.NoError(t, SaveRunError("run-2", "parse", nil))

	errs, err := GetRunErrors("run-2")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "parse", errs[0]["kind"])
	assert.Equal(t, "failed to parse bad.fastq.gz", errs[0]["error"])

	none, err := GetRunErrors("unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetRunNotFound(t *testing.T) {
	setupDB(t)
	_, err := GetRun("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteRun(t *testing.T) {
	setupDB(t)
	require.NoError(t, SaveRun("run-3", model.RunSpec{}))
	require.NoError(t, SaveRunError("run-3", "write", errors.New("disk full")))
	require.NoError(t, SaveRunReport("run-3", 0, 0, 0, model.NewCounters()))

	require.NoError(t, DeleteRun("run-3"))
	_, err := GetRun("run-3")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	errs, err := GetRunErrors("run-3")
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestWritesWithoutLedger(t *testing.T) {
	require.NoError(t, CloseDB())

	assert.ErrorIs(t, UpdateRunStatus("run-1", StatusRunning), ErrNotInitialized)
	assert.ErrorIs(t, SaveRunError("run-1", "parse", errors.New("boom")), ErrNotInitialized)
	assert.NoError(t, SaveRunError("run-1", "parse", nil))
}
