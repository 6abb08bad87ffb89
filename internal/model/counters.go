package model

// Overall counter keys
const (
	CountFiles        = "files"
	CountValidReads   = "valid reads"
	CountInvalidReads = "invalid reads"
)

// Counter is a frequency map keyed by name
type Counter map[string]int

// Counters are the diagnostic tallies a worker keeps for one run
type Counters struct {
	Overall        Counter `json:"overall"`
	FieldsFound    Counter `json:"fields_found"`
	FieldsNotFound Counter `json:"fields_not_found"`
}

// NewCounters returns empty counters
func NewCounters() Counters {
	return Counters{
		Overall:        make(Counter),
		FieldsFound:    make(Counter),
		FieldsNotFound: make(Counter),
	}
}

// Merge adds other into c key by key
func (c Counters) Merge(other Counters) {
	for k, v := range other.Overall {
		c.Overall[k] += v
	}
	for k, v := range other.FieldsFound {
		c.FieldsFound[k] += v
	}
	for k, v := range other.FieldsNotFound {
		c.FieldsNotFound[k] += v
	}
}

// Categories exposes the three maps by their ledger name
func (c Counters) Categories() map[string]Counter {
	return map[string]Counter{
		"overall":          c.Overall,
		"fields_found":     c.FieldsFound,
		"fields_not_found": c.FieldsNotFound,
	}
}
