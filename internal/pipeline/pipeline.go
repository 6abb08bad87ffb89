package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go-fastq-summary/internal/fastq"
	"go-fastq-summary/internal/model"
	"go-fastq-summary/pkg/utils"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultQueueSize bounds the work and record queues
const DefaultQueueSize = 1000

// MinThreads covers the scanner, one worker and the writer
const MinThreads = 3

// Options configures a Pipeline
type Options struct {
	Spec    model.RunSpec
	Logger  *zap.Logger
	Metrics *Metrics // optional, a private registry is used when nil
}

// Pipeline converts a directory of fastq files into one sequencing summary table
type Pipeline struct {
	spec      model.RunSpec
	fields    []string
	columns   []string
	workers   int
	extractor *fastq.Extractor
	log       *zap.Logger
	metrics   *Metrics
}

// New validates the options; nothing is started until Run
func New(opts Options) (*Pipeline, error) {
	spec := opts.Spec
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Check input data and options")

	if spec.Threads < MinThreads {
		return nil, newSummaryError(KindConfig, fmt.Sprintf("at least %d threads required, got %d", MinThreads, spec.Threads), nil)
	}

	dir, err := filepath.Abs(spec.FastqDir)
	if err != nil || !utils.CanRead(dir) {
		return nil, newSummaryError(KindConfig, "cannot read the indicated fastq directory "+spec.FastqDir, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, newSummaryError(KindConfig, "fastq directory is not a directory: "+spec.FastqDir, err)
	}
	spec.FastqDir = dir

	dest, err := filepath.Abs(spec.SummaryFile)
	if err != nil || spec.SummaryFile == "" || !utils.CanWriteFile(dest) {
		return nil, newSummaryError(KindConfig, "cannot write the indicated summary file "+spec.SummaryFile, err)
	}
	spec.SummaryFile = dest

	if len(spec.Fields) == 0 {
		spec.Fields = model.DefaultFields
	}
	if spec.QueueSize <= 0 {
		spec.QueueSize = DefaultQueueSize
	}

	workers := spec.Workers()
	chunkWorkers := spec.ChunkWorkers
	if chunkWorkers <= 0 {
		// share the cores between parser workers instead of oversubscribing them
		chunkWorkers = max(1, runtime.NumCPU()/workers)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	return &Pipeline{
		spec:      spec,
		fields:    spec.Fields,
		columns:   spec.Columns(),
		workers:   workers,
		extractor: fastq.NewExtractor(spec.ChunkReads, chunkWorkers),
		log:       log,
		metrics:   metrics,
	}, nil
}

// Spec returns the normalised run spec
func (p *Pipeline) Spec() model.RunSpec {
	return p.spec
}

// ------------------- Pipeline Runner -------------------

// Run starts the scanner, the parser workers and the writer, then waits for the first
// signal. A fatal error or ctx cancellation stops every unit and no summary file is left
// behind; completion commits the table to the destination.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan model.Message[model.SourceFile], p.spec.QueueSize)
	records := make(chan model.Message[model.GenericRecord], p.spec.QueueSize)
	counters := make(chan model.Counters, p.workers)
	// every unit sends at most one error, the writer also sends the completion signal
	signals := make(chan model.Signal, p.workers+3)

	report := &Report{}
	var wg sync.WaitGroup

	p.log.Info("Start processing fastq files",
		zap.String("dir", p.spec.FastqDir),
		zap.Int("workers", p.workers),
		zap.Int("basecall_id", p.spec.BasecallID),
	)

	// --- SCANNER ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.scan(ctx, work, signals)
	}()

	// --- PARSER WORKERS ---
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.parse(ctx, workerID, work, records, counters, signals)
		}(i)
	}

	// --- WRITER ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.write(ctx, records, counters, signals, report)
	}()

	var runErr *SummaryError
	select {
	case sig := <-signals:
		if sig.Kind == model.SignalError {
			runErr = asSummaryError(sig.Err)
		}
	case <-ctx.Done():
		runErr = newSummaryError(KindInterrupted, "run interrupted", ctx.Err())
	}

	if runErr == nil {
		wg.Wait()
		// the writer signals completion even when it was stopped by cancellation
		if report.tempPath == "" || ctx.Err() != nil {
			runErr = newSummaryError(KindInterrupted, "run interrupted", context.Canceled)
		}
	}

	if runErr != nil {
		cancel()
		wg.Wait()
		discard(report)
		p.log.Error("An error occurred. All units were stopped",
			zap.String("kind", string(runErr.Kind)),
			zap.Error(runErr),
			zap.String("trace", runErr.Trace),
		)
		p.metrics.observeRun(start, "failed")
		return nil, runErr
	}

	if err := os.Rename(report.tempPath, p.spec.SummaryFile); err != nil {
		discard(report)
		p.metrics.observeRun(start, "failed")
		return nil, newSummaryError(KindWrite, "cannot write the indicated summary file "+p.spec.SummaryFile, err)
	}
	report.tempPath = ""

	p.metrics.observeRun(start, "success")
	return report, nil
}

func discard(report *Report) {
	if report.tempPath != "" {
		os.Remove(report.tempPath)
		report.tempPath = ""
	}
}

// send blocks until v is queued or ctx is cancelled
func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

// guard runs fn, turning panics into errors and attaching a stack to failures
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("panic: %v", r)
		}
	}()
	if err = fn(); err != nil {
		err = traced(err)
	}
	return err
}
