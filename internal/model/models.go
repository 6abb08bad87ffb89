package model

import "slices"

// Default column layout of the summary table
var DefaultFields = []string{
	FieldReadID,
	FieldRunID,
	FieldChannel,
	FieldStartTime,
	FieldGCPercent,
	FieldSequenceLength,
	FieldMeanQuality,
	FieldBarcode,
}

// Extensions recognised by the directory scanner
var FastqExtensions = []string{"fq", "fq.gz", "fastq", "fastq.gz"}

// RunSpec defines one fastq -> sequencing summary conversion
type RunSpec struct {
	FastqDir     string   `json:"fastqDir" yaml:"fastq_dir"`
	SummaryFile  string   `json:"summaryFile" yaml:"summary_file"`
	MaxFiles     int      `json:"maxFiles" yaml:"max_files"`         // 0 = unlimited
	Threads      int      `json:"threads" yaml:"threads"`            // total budget, minimum 3
	Fields       []string `json:"fields" yaml:"fields"`              // column allow-list
	BasecallID   int      `json:"basecallId" yaml:"basecall_id"`     // basecalling group
	IncludePath  bool     `json:"includePath" yaml:"include_path"`   // append source_path column
	Verbosity    int      `json:"verbosity" yaml:"verbosity"`        // 0 quiet, 1 info, 2 chatty
	QueueSize    int      `json:"queueSize" yaml:"queue_size"`       // work/record queue capacity
	ChunkReads   int      `json:"chunkReads" yaml:"chunk_reads"`     // reads per extraction batch
	ChunkWorkers int      `json:"chunkWorkers" yaml:"chunk_workers"` // per-file pool, 0 = auto
}

// Columns returns the header row for the summary table
func (s RunSpec) Columns() []string {
	fields := s.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, fields...)
	if s.IncludePath && !slices.Contains(fields, FieldSourcePath) {
		cols = append(cols, FieldSourcePath)
	}
	return cols
}

// Workers is the number of parser workers, the budget minus scanner and writer
func (s RunSpec) Workers() int {
	return s.Threads - 2
}
