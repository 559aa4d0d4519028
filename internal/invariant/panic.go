// Package invariant centralizes the PANIC_IF discipline used throughout the
// index: internal-invariant violations are bugs in this library, never a
// condition callers can recover from, so they abort with a diagnostic rather
// than returning an error.
package invariant

import (
	"fmt"

	"github.com/orneryd/vecdex/internal/obslog"
)

// PanicIf aborts with a formatted diagnostic when cond is true. It is used
// exclusively for conditions that indicate a broken invariant inside the
// index (heap corruption, degree-counter mismatch, map desync after a
// successful graph mutation) — never for caller-input validation, which
// always returns a regular error instead.
func PanicIf(cond bool, format string, args ...any) {
	if cond {
		msg := fmt.Sprintf(format, args...)
		obslog.Error(msg, nil)
		panic(msg)
	}
}
