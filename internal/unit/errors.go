package unit

import "fmt"

// Error is raised for static misuse of the Unit API (spec.md §7: UnitError).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
