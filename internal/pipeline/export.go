package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go-fastq-summary/internal/model"
	"go-fastq-summary/pkg/utils"

	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats/scalar"
)

// MissingValue fills start_time cells whose timestamp is absent or unparseable
const MissingValue = ""

// progressEvery is the number of collected reads between progress logs
const progressEvery = 100000

// Report summarises a finished run
type Report struct {
	TotalReads     int            `json:"total_reads"`
	Elapsed        time.Duration  `json:"elapsed"`
	ReadsPerSecond float64        `json:"reads_per_second"`
	Counters       model.Counters `json:"counters"`
	SummaryFile    string         `json:"summary_file"`

	tempPath string
}

// ------------------- Summary Writer -------------------

// write collects every record, persists the table to a temporary file and merges counters.
// It always finishes with exactly one SignalDone.
func (p *Pipeline) write(
	ctx context.Context,
	records <-chan model.Message[model.GenericRecord],
	counters <-chan model.Counters,
	signals chan<- model.Signal,
	report *Report,
) {
	log := p.log.With(zap.String("unit", "writer"))
	log.Debug("Start collecting summary data")
	start := time.Now()

	defer func() {
		signals <- model.Signal{Kind: model.SignalDone}
	}()

	err := guard(func() error {
		rows, err := p.collect(ctx, records, log)
		if err != nil {
			return err
		}

		log.Debug("Write data to file", zap.Int("reads", len(rows)))
		NormalizeStartTimes(rows)
		SortRows(rows)

		tmp, err := writeTable(p.spec.SummaryFile, p.columns, rows)
		if err != nil {
			return fmt.Errorf("%w: %w", errWrite, err)
		}
		report.tempPath = tmp
		p.metrics.ReadsWritten.Add(float64(len(rows)))

		log.Debug("Summarize counters")
		total := model.NewCounters()
		for i := 0; i < p.workers; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case c := <-counters:
				total.Merge(c)
			}
		}

		elapsed := time.Since(start)
		report.TotalReads = len(rows)
		report.Elapsed = elapsed
		report.ReadsPerSecond = throughput(len(rows), elapsed)
		report.Counters = total
		report.SummaryFile = p.spec.SummaryFile

		log.Info("Overall counts", zap.Any("counts", total.Overall))
		log.Info("Fields found", zap.Any("counts", total.FieldsFound))
		log.Info("Fields not found", zap.Any("counts", total.FieldsNotFound))
		log.Warn(fmt.Sprintf("Total reads: %d / Average speed: %.2f reads/s", report.TotalReads, report.ReadsPerSecond))
		return nil
	})

	if err != nil {
		if report.tempPath != "" {
			os.Remove(report.tempPath)
			report.tempPath = ""
		}
		if ctx.Err() == nil {
			signals <- model.Signal{Kind: model.SignalError, Err: err}
		}
	}
}

// collect drains the record queue until every worker has sent its sentinel
func (p *Pipeline) collect(ctx context.Context, records <-chan model.Message[model.GenericRecord], log *zap.Logger) ([]model.GenericRecord, error) {
	var rows []model.GenericRecord
	for ended := 0; ended < p.workers; {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-records:
			if msg.IsEnd() {
				ended++
				continue
			}
			rows = append(rows, msg.Item)
			if len(rows)%progressEvery == 0 {
				log.Info("Collecting reads", zap.Int("reads", len(rows)))
			}
		}
	}
	return rows, nil
}

func throughput(n int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return scalar.Round(float64(n)/elapsed.Seconds(), 2)
}

// NormalizeStartTimes rewrites start_time as whole seconds elapsed since the earliest read.
// Cells that cannot be parsed become MissingValue; rows without the column are left alone.
func NormalizeStartTimes(rows []model.GenericRecord) {
	parsed := make([]*time.Time, len(rows))
	var t0 time.Time
	found := false

	for i, row := range rows {
		raw, ok := row[model.FieldStartTime].(string)
		if !ok || raw == "" {
			continue
		}
		dt, err := strfmt.ParseDateTime(raw)
		if err != nil {
			continue
		}
		ts := time.Time(dt)
		parsed[i] = &ts
		if !found || ts.Before(t0) {
			t0 = ts
			found = true
		}
	}

	for i, row := range rows {
		if _, ok := row[model.FieldStartTime]; !ok {
			continue
		}
		if parsed[i] == nil {
			row[model.FieldStartTime] = MissingValue
			continue
		}
		row[model.FieldStartTime] = int64(parsed[i].Sub(t0) / time.Second)
	}
}

// SortRows orders rows by elapsed start_time, missing values last, then by read id
func SortRows(rows []model.GenericRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, iok := rows[i][model.FieldStartTime].(int64)
		tj, jok := rows[j][model.FieldStartTime].(int64)
		if iok != jok {
			return iok
		}
		if iok && ti != tj {
			return ti < tj
		}
		return readID(rows[i]) < readID(rows[j])
	})
}

func readID(row model.GenericRecord) string {
	id, _ := row[model.FieldReadID].(string)
	return id
}

// writeTable writes a tab-separated table next to dest and returns the temporary path
func writeTable(dest string, columns []string, rows []model.GenericRecord) (string, error) {
	file, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmp := file.Name()

	fail := func(err error) (string, error) {
		file.Close()
		os.Remove(tmp)
		return "", err
	}

	if err := file.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("failed to set file mode: %w", err))
	}

	writer := csv.NewWriter(file)
	writer.Comma = '\t'

	if err := writer.Write(columns); err != nil {
		return fail(fmt.Errorf("failed to write header: %w", err))
	}

	row := make([]string, len(columns))
	for _, record := range rows {
		for i, key := range columns {
			row[i] = utils.FormatValue(record[key])
		}
		if err := writer.Write(row); err != nil {
			return fail(fmt.Errorf("failed to write row: %w", err))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fail(fmt.Errorf("failed to flush table: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return tmp, nil
}
