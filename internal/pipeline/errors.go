package pipeline

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies a SummaryError
type ErrorKind string

const (
	KindConfig      ErrorKind = "config"
	KindNoInput     ErrorKind = "no_input"
	KindParse       ErrorKind = "parse"
	KindWrite       ErrorKind = "write"
	KindInterrupted ErrorKind = "interrupted"
)

// SummaryError is the only error type returned by a pipeline run
type SummaryError struct {
	Kind  ErrorKind
	Msg   string
	Cause error
	Trace string // stack of the failing unit, when one was captured
}

func (e *SummaryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *SummaryError) Unwrap() error {
	return e.Cause
}

func newSummaryError(kind ErrorKind, msg string, cause error) *SummaryError {
	return &SummaryError{Kind: kind, Msg: msg, Cause: cause}
}

// IsKind reports whether err is a SummaryError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se *SummaryError
	return errors.As(err, &se) && se.Kind == kind
}

// traced attaches a stack to err unless it already carries one
func traced(err error) error {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// asSummaryError turns any unit failure into a SummaryError with its trace
func asSummaryError(err error) *SummaryError {
	var se *SummaryError
	if errors.As(err, &se) {
		return se
	}
	kind := KindParse
	if errors.Is(err, errWrite) {
		kind = KindWrite
	}
	return &SummaryError{
		Kind:  kind,
		Msg:   "pipeline unit failed",
		Cause: err,
		Trace: fmt.Sprintf("%+v", err),
	}
}

// errWrite marks failures of the summary writer
var errWrite = errors.New("summary write failed")
