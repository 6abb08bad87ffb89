package fastq

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"unicode"

	"go-fastq-summary/internal/model"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkReads is the number of reads handed to one batch
	DefaultChunkReads = 1000
	linesPerRead      = 4
	maxLineSize       = 64 * 1024 * 1024 // nanopore reads can be very long
)

// Result is the outcome of extracting one file
type Result struct {
	Records map[string]model.ReadRecord
	Skipped int // groups without a read id
}

// Extractor parses fastq streams in fixed-size batches on a bounded pool
type Extractor struct {
	ChunkReads int // reads per batch
	Workers    int // concurrent batches
}

// NewExtractor sizes the batch pool; non-positive values fall back to defaults
func NewExtractor(chunkReads, workers int) *Extractor {
	if chunkReads <= 0 {
		chunkReads = DefaultChunkReads
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Extractor{ChunkReads: chunkReads, Workers: workers}
}

type batchResult struct {
	records map[string]model.ReadRecord
	skipped int
	done    chan struct{}
}

// Extract reads r to the end and returns every read keyed by read id.
// Batches are merged in stream order as they finish, so a duplicated read id
// keeps its last occurrence.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, src model.SourceFile) (Result, error) {
	linesPerBatch := e.ChunkReads * linesPerRead

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)

	result := Result{Records: make(map[string]model.ReadRecord)}
	pending := make(chan *batchResult, e.Workers)
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		for b := range pending {
			<-b.done
			for id, rec := range b.records {
				result.Records[id] = rec
			}
			result.Skipped += b.skipped
		}
	}()

	dispatch := func(lines []string) {
		res := &batchResult{done: make(chan struct{})}
		g.Go(func() error {
			defer close(res.done)
			if err := gctx.Err(); err != nil {
				return err
			}
			res.records, res.skipped = parseBatch(lines, src)
			return nil
		})
		pending <- res
	}

	lines := make([]string, 0, linesPerBatch)
	for sc.Scan() {
		lines = append(lines, strings.TrimRightFunc(sc.Text(), unicode.IsSpace))
		if len(lines) == linesPerBatch {
			if gctx.Err() != nil {
				break
			}
			dispatch(lines)
			lines = make([]string, 0, linesPerBatch)
		}
	}
	if len(lines) > 0 && gctx.Err() == nil {
		dispatch(lines)
	}

	close(pending)
	waitErr := g.Wait()
	<-merged

	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", src.Path, err)
	}
	if waitErr != nil {
		return Result{}, waitErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ExtractFile opens src (gzipped or plain) and extracts it
func (e *Extractor) ExtractFile(ctx context.Context, src model.SourceFile) (Result, error) {
	rc, err := Open(src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open fastq file: %w", err)
	}
	defer rc.Close()

	return e.Extract(ctx, rc, src)
}
