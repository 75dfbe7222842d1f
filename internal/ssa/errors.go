package ssa

import "fmt"

// InvariantError reports an oracle answer that is inconsistent with the
// control-flow graph. It is an internal error, never a verification result.
type InvariantError struct {
	Function string
	Location int
	Msg      string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal error: function %s, location %d: %s", e.Function, e.Location, e.Msg)
}

func (b *builder) fail(loc int, format string, args ...any) {
	panic(&InvariantError{Function: b.fn.Name, Location: loc, Msg: fmt.Sprintf(format, args...)})
}
