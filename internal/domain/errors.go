package domain

import "fmt"

// FetchError is terminal for a run: nothing was fetched and nothing is persisted.
type FetchError struct {
	Address   TargetAddress
	Transport Transport
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Address, e.Transport, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// SinkError is returned by Result Sink implementations.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink %s: %v", e.Op, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write after a completed analysis.
// The analysis itself is still valid and is returned alongside it.
type PersistenceError struct {
	Address TargetAddress
	RunID   string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist analysis %s of %s: %v", e.RunID, e.Address, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InsightError never leaves the orchestrator; it is logged and replaced by a placeholder.
type InsightError struct {
	Err error
}

func (e *InsightError) Error() string { return fmt.Sprintf("insight: %v", e.Err) }

func (e *InsightError) Unwrap() error { return e.Err }
