package engine

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per §7 error category. Each is wrapped with
// phase/module/node context via the Wrap helpers below; callers compare
// with errors.Is against these sentinels, mirroring the teacher's
// per-package sentinel errors (storage.ErrNotFound, transaction.Err*)
// wrapped with fmt.Errorf("...: %w", err).
var (
	ErrConfig    = errors.New("engine: config error")
	ErrImport    = errors.New("engine: import error")
	ErrGraph     = errors.New("engine: graph error")
	ErrQuery     = errors.New("engine: query error")
	ErrOperation = errors.New("engine: operation error")
	ErrCheck     = errors.New("engine: check failure")
	ErrExport    = errors.New("engine: export error")
	ErrCancelled = errors.New("engine: cancelled")
)

// Wrap attaches phase, module, and a free-form detail to a sentinel kind,
// producing the "phase, module, and the offending document/node/query"
// message §7 requires of every error.
func Wrap(kind error, phase, module, detail string) error {
	return fmt.Errorf("%w: phase=%s module=%s: %s", kind, phase, module, detail)
}

// Wrapf is Wrap with a formatted detail.
func Wrapf(kind error, phase, module, format string, args ...any) error {
	return Wrap(kind, phase, module, fmt.Sprintf(format, args...))
}
