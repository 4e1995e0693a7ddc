package statemap

import (
	"errors"
	"fmt"
)

// Sentinel errors a caller can match with errors.Is. These cover misuse
// of an Engine's lifecycle; I/O failures are returned as wrapped errors
// from mapping the input, and structural, metadata and datum errors
// carry a line number and are returned as *IngestError, since their
// text is inherently per-occurrence.
var (
	// ErrAlreadyIngested is returned if Ingest is called more than once
	// on the same Engine -- an Engine is single-use (spec §5: "created
	// once per ingest, destroyed after emission").
	ErrAlreadyIngested = errors.New("statemap: engine has already ingested a trace")

	// ErrDestroyed is returned by Ingest when called after Destroy.
	ErrDestroyed = errors.New("statemap: engine has been destroyed")
)

// IngestError is the error kind returned for malformed input: structural,
// metadata and datum-level failures (spec §7). Line is 1-based and
// matches the line the original implementation would have reported.
type IngestError struct {
	Line int
	Msg  string
}

func (e *IngestError) Error() string {
	return e.Msg
}

func lineErrorf(line int, format string, args ...interface{}) *IngestError {
	return &IngestError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
