package scheduler

// Mode selects the concurrency discipline a ControlLoop runs under
// (spec.md §4.4). It is a tagged variant, not a subtype: the loop itself
// branches on Mode rather than dispatching through separate
// scheduler implementations, matching how small the difference actually is.
type Mode int

const (
	// ModeConcurrent starts every ready unit on its own goroutine as soon
	// as it becomes ready. This is the default.
	ModeConcurrent Mode = iota
	// ModeSerial starts one ready unit at a time and waits for it to
	// finish before considering the next, useful for deterministic
	// debugging and for callables that are not safe to run concurrently.
	ModeSerial
)

func (m Mode) String() string {
	switch m {
	case ModeSerial:
		return "serial"
	default:
		return "concurrent"
	}
}
