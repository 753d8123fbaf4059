package scheduler

import (
	"errors"
	"strings"
)

// Warning marks an error as non-fatal: the scheduler records it in the
// result's Warnings and continues, instead of aborting the phase. A
// GraphOperation (check's per-test policy, most notably) returns a
// Warning to downgrade what would otherwise be a fatal error.
type Warning struct {
	Err error
}

func (w *Warning) Error() string { return w.Err.Error() }
func (w *Warning) Unwrap() error { return w.Err }

// AsWarning reports whether err is a Warning, per §4.7 check's
// "local warn downgrades a global fail" rule.
func AsWarning(err error) (*Warning, bool) {
	var w *Warning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}

// aggregate collects errors from parallel workers into one composite
// error, naming every failure, per §7's "all collected errors are
// surfaced at finalization".
type aggregate struct {
	errs []error
}

func (a *aggregate) add(err error) {
	if err != nil {
		a.errs = append(a.errs, err)
	}
}

func (a *aggregate) any() bool { return len(a.errs) > 0 }

func (a *aggregate) Error() string {
	parts := make([]string, len(a.errs))
	for i, e := range a.errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (a *aggregate) asError() error {
	if !a.any() {
		return nil
	}
	return a
}
