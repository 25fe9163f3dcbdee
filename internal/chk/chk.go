// Package chk provides the error-check-and-log idiom used throughout this
// module: `if v, err = f(); chk.E(err) { return }` logs the error at the
// appropriate level and reports whether it was non-nil, so call sites never
// need a bare `if err != nil { log...; return }` block.
package chk

import "github.com/nostrpy/nostrcli/internal/xlog"

// E logs err at error level (if non-nil) and reports whether err != nil.
func E(err error) bool {
	if err != nil {
		xlog.E.F("%v", err)
		return true
	}
	return false
}

// D logs err at debug level (if non-nil) and reports whether err != nil.
// Used where a failure is expected/recoverable (e.g. trying hex before
// falling back to bech32) and doesn't deserve error-level noise.
func D(err error) bool {
	if err != nil {
		xlog.D.F("%v", err)
		return true
	}
	return false
}

// W logs err at warn level (if non-nil) and reports whether err != nil.
func W(err error) bool {
	if err != nil {
		xlog.W.F("%v", err)
		return true
	}
	return false
}
