package cmn

import "fmt"

// Assert traps a programming-error invariant violation: a condition that
// should be impossible to reach from correct code. Unlike collaborator
// errors, these are never expected to happen and are never returned to a
// caller.
func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	msg := "assertion failed"
	if len(args) > 0 {
		msg = fmt.Sprint(args...)
	}
	panic("cmn: " + msg)
}

// Assertf is Assert with a format string.
func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic("cmn: assertion failed: " + fmt.Sprintf(format, args...))
}

// AssertNoErr traps an error that must never occur in practice (e.g. a
// marshal of an internally-constructed value).
func AssertNoErr(err error) {
	if err == nil {
		return
	}
	panic("cmn: unexpected error: " + err.Error())
}
