package corefile

import "log"

// Logf is used to log verbose messages while loading a core file, such as
// NT_FILE notes skipped as malformed. If nil (the default), verbose
// messages are discarded and warnf sends warnings to the standard log
// package instead.
var Logf func(verbosity int, format string, args ...interface{})

func logf(verbosity int, format string, args ...interface{}) {
	if Logf != nil {
		Logf(verbosity, format, args...)
	}
}

func verbosef(format string, args ...interface{}) {
	logf(2, format, args...)
}

func warnf(format string, args ...interface{}) {
	if Logf != nil {
		Logf(0, "Warning: "+format, args...)
		return
	}
	log.Printf("Warning: "+format, args...)
}
