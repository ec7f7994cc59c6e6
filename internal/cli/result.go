package cli

// Result is what Execute reports back to main: the process exit code, the
// successful unit outcomes, and any run-time failures stringified for
// display (unit.Error/graph.Error/depref.ResolutionError values all still
// carry structure for programmatic callers — this flattening is only for
// the demo CLI's human-readable output).
type Result struct {
	ExitCode int
	Results  map[string]any
	Errors   []string
}
