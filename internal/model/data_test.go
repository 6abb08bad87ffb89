package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSourceFile(t *testing.T) {
	root := filepath.FromSlash("/data/run1")

	tests := []struct {
		name        string
		path        string
		sample      string
		disposition Disposition
		group       string
	}{
		{"root pass file", "/data/run1/FAK123_pass_0.fastq", "FAK123", DispositionPass, ""},
		{"nested fail dir", "/data/run1/fastq_fail/barcode01/FAK123_1.fq.gz", "FAK123", DispositionFail, "barcode01"},
		{"no underscore", "/data/run1/pass/reads.fq", "reads", DispositionPass, "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSourceFile(root, filepath.FromSlash(tt.path))
			assert.Equal(t, tt.sample, src.Sample)
			assert.Equal(t, tt.disposition, src.Disposition)
			assert.Equal(t, tt.group, src.Group)
		})
	}
}

func TestReadRecordField(t *testing.T) {
	rec := ReadRecord{
		ReadID:         "r1",
		Metadata:       map[string]string{"runid": "abc", "ch": "207", "model_version_id": "v1"},
		SequenceLength: 12,
		MeanQuality:    9.5,
		GCPercent:      50,
	}

	v, ok := rec.Field(FieldRunID)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = rec.Field(FieldBarcode)
	assert.False(t, ok)
	assert.Equal(t, "", v)

	v, ok = rec.Field("sequence_length_template")
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	v, ok = rec.Field("model_version_id")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	_, ok = rec.Field("calibration_strand_genome_template")
	assert.False(t, ok)
}

func TestCountersMerge(t *testing.T) {
	a := NewCounters()
	a.Overall[CountValidReads] = 2
	a.FieldsNotFound[FieldBarcode] = 1

	b := NewCounters()
	b.Overall[CountValidReads] = 3
	b.FieldsFound[FieldReadID] = 3

	a.Merge(b)
	assert.Equal(t, 5, a.Overall[CountValidReads])
	assert.Equal(t, 3, a.FieldsFound[FieldReadID])
	assert.Equal(t, 1, a.FieldsNotFound[FieldBarcode])
}

func TestRunSpecColumns(t *testing.T) {
	spec := RunSpec{IncludePath: true}
	cols := spec.Columns()
	assert.Equal(t, DefaultFields, cols[:len(DefaultFields)])
	assert.Equal(t, FieldSourcePath, cols[len(cols)-1])

	spec = RunSpec{Fields: []string{FieldReadID}, Threads: 4}
	assert.Equal(t, []string{FieldReadID}, spec.Columns())
	assert.Equal(t, 2, spec.Workers())

	spec = RunSpec{Fields: []string{FieldReadID, FieldSourcePath}, IncludePath: true}
	assert.Equal(t, []string{FieldReadID, FieldSourcePath}, spec.Columns())
}

func TestMessageSentinel(t *testing.T) {
	assert.True(t, End[SourceFile]().IsEnd())
	assert.False(t, Item(SourceFile{Path: "x"}).IsEnd())
}
