package model

import (
	"path/filepath"
	"strings"
)

// GenericRecord is one projected summary row keyed by column name
type GenericRecord map[string]interface{}

// Column names understood by the record projection
const (
	FieldReadID          = "read_id"
	FieldRunID           = "run_id"
	FieldChannel         = "channel"
	FieldStartTime       = "start_time"
	FieldGCPercent       = "gc_percent"
	FieldSequenceLength  = "sequence_length"
	FieldMeanQuality     = "mean_quality"
	FieldBarcode         = "barcode"
	FieldPassesFiltering = "passes_filtering"
	FieldSampleID        = "sample_id"
	FieldReadNumber      = "read_number"
	FieldSourcePath      = "source_path"
)

// Disposition of a fastq file inferred from its path
type Disposition string

const (
	DispositionPass Disposition = "pass"
	DispositionFail Disposition = "fail"
)

// SourceFile is one fastq file found by the scanner
type SourceFile struct {
	Path        string      `json:"path"`
	Sample      string      `json:"sample"`
	Disposition Disposition `json:"disposition"`
	Group       string      `json:"group"`
}

// NewSourceFile infers sample, disposition and group for a file below root
func NewSourceFile(root, path string) SourceFile {
	base := filepath.Base(path)
	sample, _, _ := strings.Cut(base, ".")
	sample, _, _ = strings.Cut(sample, "_")

	disposition := DispositionPass
	if strings.Contains(path, "fail") {
		disposition = DispositionFail
	}

	group := ""
	if rel, err := filepath.Rel(root, filepath.Dir(path)); err == nil && rel != "." {
		group = filepath.Base(rel)
	}

	return SourceFile{
		Path:        path,
		Sample:      sample,
		Disposition: disposition,
		Group:       group,
	}
}

// header keys mapped to their column names
var metadataColumns = map[string]string{
	FieldRunID:      "runid",
	FieldChannel:    "ch",
	FieldStartTime:  "start_time",
	FieldBarcode:    "barcode",
	FieldSampleID:   "sampleid",
	FieldReadNumber: "read",
}

// column names used by Albacore/Guppy summaries
var legacyAliases = map[string]string{
	"sequence_length_template": FieldSequenceLength,
	"mean_qscore_template":     FieldMeanQuality,
	"barcode_arrangement":      FieldBarcode,
}

// ReadRecord holds everything extracted from one 4-line fastq entry
type ReadRecord struct {
	ReadID          string
	Metadata        map[string]string
	SequenceLength  int
	MeanQuality     float64
	GCPercent       float64
	PassesFiltering bool
}

// Field resolves a column name and reports whether the read carried it.
// Optional header metadata that is absent resolves to "" with ok == false.
func (r ReadRecord) Field(name string) (interface{}, bool) {
	if canonical, ok := legacyAliases[name]; ok {
		name = canonical
	}

	switch name {
	case FieldReadID:
		return r.ReadID, r.ReadID != ""
	case FieldSequenceLength:
		return r.SequenceLength, true
	case FieldMeanQuality:
		return r.MeanQuality, true
	case FieldGCPercent:
		return r.GCPercent, true
	case FieldPassesFiltering:
		return r.PassesFiltering, true
	}

	key := name
	if k, ok := metadataColumns[name]; ok {
		key = k
	}
	if v, ok := r.Metadata[key]; ok {
		return v, true
	}
	return "", false
}
