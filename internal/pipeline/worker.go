package pipeline

import (
	"context"
	"fmt"

	"go-fastq-summary/internal/model"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// ------------------- Parser Workers -------------------

// parse drains the work queue until its sentinel, pushing one record per read.
// Counters are flushed once at end of stream; the record sentinel is always sent last.
func (p *Pipeline) parse(
	ctx context.Context,
	workerID int,
	work <-chan model.Message[model.SourceFile],
	records chan<- model.Message[model.GenericRecord],
	counters chan<- model.Counters,
	signals chan<- model.Signal,
) {
	log := p.log.With(zap.String("unit", fmt.Sprintf("worker_%02d", workerID)))
	log.Debug("Start processing fastq files")

	defer send(ctx, records, model.End[model.GenericRecord]())

	c := model.NewCounters()
	err := guard(func() error {
		for {
			var msg model.Message[model.SourceFile]
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg = <-work:
			}

			if msg.IsEnd() {
				break
			}
			if err := p.parseFile(ctx, msg.Item, records, c); err != nil {
				return err
			}
			log.Debug("Parsed fastq file", zap.String("path", msg.Item.Path), zap.String("group", msg.Item.Group))
		}

		if !send(ctx, counters, c) {
			return ctx.Err()
		}
		return nil
	})

	if err != nil && ctx.Err() == nil {
		signals <- model.Signal{Kind: model.SignalError, Err: err}
	}
}

// parseFile extracts one file and forwards its projected records
func (p *Pipeline) parseFile(ctx context.Context, src model.SourceFile, records chan<- model.Message[model.GenericRecord], c model.Counters) error {
	res, err := p.extractor.ExtractFile(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.Wrapf(err, "failed to parse %s", src.Path)
	}

	c.Overall[model.CountFiles]++
	c.Overall[model.CountInvalidReads] += res.Skipped
	p.metrics.FilesParsed.Inc()
	p.metrics.ReadsInvalid.Add(float64(res.Skipped))

	for _, rec := range res.Records {
		row := p.project(rec, src, c)
		if row == nil {
			c.Overall[model.CountInvalidReads]++
			p.metrics.ReadsInvalid.Inc()
			continue
		}

		if !send(ctx, records, model.Item(row)) {
			return ctx.Err()
		}
		c.Overall[model.CountValidReads]++
		p.metrics.ReadsExtracted.Inc()
	}
	return nil
}

// project keeps the configured fields of rec and tallies which ones were found.
// It returns nil when none of them could be derived.
func (p *Pipeline) project(rec model.ReadRecord, src model.SourceFile, c model.Counters) model.GenericRecord {
	row := make(model.GenericRecord, len(p.fields)+1)
	for _, field := range p.fields {
		if field == model.FieldSourcePath && p.spec.IncludePath {
			continue
		}
		if v, ok := rec.Field(field); ok {
			row[field] = v
			c.FieldsFound[field]++
		} else {
			c.FieldsNotFound[field]++
		}
	}

	if len(row) == 0 {
		return nil
	}
	if p.spec.IncludePath {
		row[model.FieldSourcePath] = src.Path
	}
	return row
}
