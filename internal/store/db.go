package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go-fastq-summary/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Run statuses recorded in the ledger
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrNotInitialized is returned when the ledger is used before InitDB
var ErrNotInitialized = errors.New("run ledger is not initialized")

var db *sql.DB

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	// sqlite allows a single writer; runs update the ledger from their own goroutines
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		summary_file TEXT,
		total_reads INTEGER DEFAULT 0,
		reads_per_second REAL DEFAULT 0,
		elapsed_ms INTEGER DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		kind TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	counterTable := `
	CREATE TABLE IF NOT EXISTS run_counters (
		run_id TEXT,
		category TEXT,
		name TEXT,
		count INTEGER,
		PRIMARY KEY (run_id, category, name)
	);
	`

	for _, stmt := range []string{runTable, errorTable, counterTable} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CloseDB releases the ledger connection
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Enabled reports whether a ledger was initialised
func Enabled() bool {
	return db != nil
}

// SaveRun stores a new summary run
func SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, summary_file, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(specJSON), StatusPending, spec.SummaryFile, now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records the fatal error of a run
func SaveRunError(runID string, kind string, err error) error {
	if err == nil {
		return nil
	}
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, kind, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, kind, err.Error(), now)
	return e
}

// SaveRunReport stores the totals and merged counters of a finished run
func SaveRunReport(runID string, totalReads int, readsPerSecond float64, elapsed time.Duration, counters model.Counters) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE runs SET total_reads = ?, reads_per_second = ?, elapsed_ms = ?, updated_at = ? WHERE id = ?`,
		totalReads, readsPerSecond, elapsed.Milliseconds(), now, runID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO run_counters (run_id, category, name, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for category, counter := range counters.Categories() {
		for name, count := range counter {
			if _, err := stmt.Exec(runID, category, name, count); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ListRuns returns all runs with basic info
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, total_reads, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []map[string]interface{}{}
	for rows.Next() {
		var id, status string
		var totalReads int
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &totalReads, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":         id,
			"status":     status,
			"totalReads": totalReads,
			"createdAt":  createdAt,
			"updatedAt":  updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec, status and totals
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON, status, summaryFile string
	var totalReads int
	var readsPerSecond float64
	var elapsedMs int64
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, summary_file, total_reads, reads_per_second, elapsed_ms, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &summaryFile, &totalReads, &readsPerSecond, &elapsedMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":             runID,
		"spec":           spec,
		"status":         status,
		"summaryFile":    summaryFile,
		"totalReads":     totalReads,
		"readsPerSecond": readsPerSecond,
		"elapsedMs":      elapsedMs,
		"createdAt":      createdAt,
		"updatedAt":      updatedAt,
	}, nil
}

// GetRunErrors lists the errors recorded for a run
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT kind, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []map[string]interface{}{}
	for rows.Next() {
		var kind, msg string
		var createdAt time.Time
		if err := rows.Scan(&kind, &msg, &createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{
			"kind":      kind,
			"error":     msg,
			"createdAt": createdAt,
		})
	}
	return errs, rows.Err()
}

// GetRunCounters rebuilds the merged counters of a run
func GetRunCounters(runID string) (model.Counters, error) {
	counters := model.NewCounters()
	rows, err := db.Query(`SELECT category, name, count FROM run_counters WHERE run_id = ?`, runID)
	if err != nil {
		return counters, err
	}
	defer rows.Close()

	byCategory := counters.Categories()
	for rows.Next() {
		var category, name string
		var count int
		if err := rows.Scan(&category, &name, &count); err != nil {
			return counters, err
		}
		if c, ok := byCategory[category]; ok {
			c[name] = count
		}
	}
	return counters, rows.Err()
}

// DeleteRun removes a run and everything recorded for it
func DeleteRun(runID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM run_counters WHERE run_id = ?`,
		`DELETE FROM run_errors WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, runID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
