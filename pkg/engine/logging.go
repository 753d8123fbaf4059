package engine

import (
	"io"
	"log"
	"os"
)

// Logger wraps the standard library's log.Logger with a phase tag, so
// every line names where it came from without callers formatting that
// themselves each time — mirroring the teacher's log.Printf call sites in
// pkg/storage/badger.go and pkg/nornicdb/db.go, which never pull in a
// structured logging library even though several are available elsewhere
// in the dependency graph.
type Logger struct {
	*log.Logger
}

// NewLogger returns a Logger writing to w, prefixed with "[phase] ".
func NewLogger(w io.Writer, phase string) *Logger {
	return &Logger{Logger: log.New(w, "["+phase+"] ", log.LstdFlags|log.Lmsgprefix)}
}

// NewStderrLogger is the usual case: a phase-tagged logger to stderr.
func NewStderrLogger(phase string) *Logger {
	return NewLogger(os.Stderr, phase)
}

// Module returns a child logger tagging lines with both phase and module,
// e.g. "[op] [merge] collapsing 3 candidate groups".
func (l *Logger) Module(name string) *Logger {
	return &Logger{Logger: log.New(l.Writer(), l.Prefix()+"["+name+"] ", l.Flags())}
}
