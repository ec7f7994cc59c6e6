package cli

import "context"

// Run is the high-level entrypoint cmd/taskgraph's cobra command calls
// into: canonicalize the already-parsed flag values into an Invocation,
// then Execute it. Kept separate from Execute so tests can exercise
// Execute directly against a hand-built Invocation.
func Run(ctx context.Context, workDir, graphPath, mode, tracePath string) (Result, error) {
	inv, err := BuildInvocation(workDir, graphPath, mode, tracePath)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Execute(ctx, inv)
}
