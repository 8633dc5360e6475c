package pyresolve

import "log"

// Warnf receives one warning line per discovery failure or inconsistency
// (version conflicts, malformed GC lists, pre-claimed arena ranges). If
// nil, warnings go to the standard log package. Lines never include a
// trailing newline. The hook receives the format without any prefix; only
// when Warnf is nil does warnf below add the "Warning: " prefix itself.
var Warnf func(format string, args ...interface{})

func warnf(format string, args ...interface{}) {
	if Warnf != nil {
		Warnf(format, args...)
		return
	}
	log.Printf("Warning: "+format, args...)
}

// PreconditionError is panicked by Resolve when called twice, or when the
// injected ModuleDirectory is not yet resolved. It signals a caller bug with
// no recovery path other than fixing the caller; tests that need to observe
// it do so with recover.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "pyresolve: precondition violated: " + e.Reason }
