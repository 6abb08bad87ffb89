package model

// Kind distinguishes a payload from the end-of-stream marker
type Kind int

const (
	KindItem Kind = iota
	KindEnd
)

// Message travels on the work and record queues.
// A producer sends exactly one KindEnd message per consumer it feeds.
type Message[T any] struct {
	Kind Kind
	Item T
}

// Item wraps a payload
func Item[T any](v T) Message[T] {
	return Message[T]{Kind: KindItem, Item: v}
}

// End returns the end-of-stream sentinel
func End[T any]() Message[T] {
	return Message[T]{Kind: KindEnd}
}

// IsEnd reports whether m is the sentinel
func (m Message[T]) IsEnd() bool {
	return m.Kind == KindEnd
}

// SignalKind separates fatal errors from the completion marker
type SignalKind int

const (
	SignalError SignalKind = iota
	SignalDone
)

// Signal travels on the error channel read by the orchestrator
type Signal struct {
	Kind SignalKind
	Err  error
}
