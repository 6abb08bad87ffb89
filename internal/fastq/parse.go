package fastq

import (
	"strings"

	"go-fastq-summary/internal/model"

	"gonum.org/v1/gonum/floats/scalar"
)

// PhredOffset is subtracted from a quality character to get its Phred score
const PhredOffset = 33

// ParseHeader splits a header line into the read id and its key=value metadata.
// The leading sigil is dropped; tokens without '=' are ignored.
func ParseHeader(header string) (string, map[string]string) {
	tokens := strings.Fields(header)
	if len(tokens) == 0 {
		return "", nil
	}

	readID := tokens[0][1:]
	meta := make(map[string]string, len(tokens)-1)
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			continue
		}
		meta[key] = value
	}
	return readID, meta
}

// MeanQuality averages the Phred scores of qual over the sequence length.
// A zero length yields 0.
func MeanQuality(qual string, length int) float64 {
	if length == 0 {
		return 0
	}
	sum := 0
	for i := 0; i < len(qual); i++ {
		sum += int(qual[i]) - PhredOffset
	}
	return scalar.RoundEven(float64(sum)/float64(length), 2)
}

// GCPercent is the share of literal 'G' and 'C' bases, in percent.
// Lowercase bases and ambiguity codes are not counted. A zero length yields 0.
func GCPercent(seq string) float64 {
	if len(seq) == 0 {
		return 0
	}
	gc := strings.Count(seq, "G") + strings.Count(seq, "C")
	return scalar.RoundEven(float64(gc)/float64(len(seq))*100, 2)
}

// ParseEntry builds a read from one header/sequence/separator/quality group.
// It returns false when the header carries no read id.
func ParseEntry(entry [4]string, src model.SourceFile) (model.ReadRecord, bool) {
	header, seq, _, qual := entry[0], entry[1], entry[2], entry[3]

	readID, meta := ParseHeader(header)
	if readID == "" {
		return model.ReadRecord{}, false
	}

	return model.ReadRecord{
		ReadID:          readID,
		Metadata:        meta,
		SequenceLength:  len(seq),
		MeanQuality:     MeanQuality(qual, len(seq)),
		GCPercent:       GCPercent(seq),
		PassesFiltering: src.Disposition != model.DispositionFail,
	}, true
}

// parseBatch turns whole 4-line groups into reads; a trailing partial group is dropped
func parseBatch(lines []string, src model.SourceFile) (map[string]model.ReadRecord, int) {
	records := make(map[string]model.ReadRecord, len(lines)/4)
	skipped := 0
	for i := 0; i+4 <= len(lines); i += 4 {
		rec, ok := ParseEntry([4]string{lines[i], lines[i+1], lines[i+2], lines[i+3]}, src)
		if !ok {
			skipped++
			continue
		}
		records[rec.ReadID] = rec
	}
	return records, skipped
}
