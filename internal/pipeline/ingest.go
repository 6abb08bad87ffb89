package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go-fastq-summary/internal/model"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// errCapReached stops the directory walk once MaxFiles paths are queued
var errCapReached = errors.New("max file count reached")

// fastqPattern matches every recognised extension at any depth
func fastqPattern() string {
	return "**/*.{" + strings.Join(model.FastqExtensions, ",") + "}"
}

// ------------------- Directory Scanner -------------------

// scan feeds the work queue with fastq files and always ends with one sentinel per worker
func (p *Pipeline) scan(ctx context.Context, work chan<- model.Message[model.SourceFile], signals chan<- model.Signal) {
	log := p.log.With(zap.String("unit", "scanner"))
	log.Debug("Start listing fastq files", zap.String("dir", p.spec.FastqDir))

	defer func() {
		for i := 0; i < p.workers; i++ {
			if !send(ctx, work, model.End[model.SourceFile]()) {
				return
			}
		}
	}()

	err := guard(func() error {
		count, err := p.listFastq(ctx, work)
		if err != nil {
			return err
		}
		if count == 0 {
			return newSummaryError(KindNoInput, "no valid fastq files found in "+p.spec.FastqDir, nil)
		}
		log.Debug("Added files to input queue", zap.Int("count", count))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		signals <- model.Signal{Kind: model.SignalError, Err: err}
	}
}

// listFastq walks the source tree in lexical order, pushing each match onto work
func (p *Pipeline) listFastq(ctx context.Context, work chan<- model.Message[model.SourceFile]) (int, error) {
	root := p.spec.FastqDir
	count := 0

	err := doublestar.GlobWalk(os.DirFS(root), fastqPattern(), func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		src := model.NewSourceFile(root, filepath.Join(root, filepath.FromSlash(path)))
		if !send(ctx, work, model.Item(src)) {
			return ctx.Err()
		}
		count++
		p.metrics.FilesScanned.Inc()

		if p.spec.MaxFiles > 0 && count >= p.spec.MaxFiles {
			return errCapReached
		}
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())

	if errors.Is(err, errCapReached) {
		err = nil
	}
	if err != nil {
		return count, newSummaryError(KindNoInput, "failed to list fastq files", traced(err))
	}
	return count, nil
}
