package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"taskgraph/internal/scheduler"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitInternalError     = 3
)

// Invocation is the fully canonicalized, deterministic description of a
// run: all paths normalized and relative paths resolved under WorkDir, so
// execution never depends on the process's current working directory.
//
// Grounded on the teacher's internal/cli.CLIInvocation / ParseInvocation,
// adapted from a cache/output-dir build invocation to a graph-description
// run invocation; cobra (cmd/taskgraph) owns flag parsing itself, so this
// package only canonicalizes already-parsed values rather than consuming
// os.Args directly.
type Invocation struct {
	WorkDir   string
	GraphPath string
	Mode      scheduler.Mode
	TracePath string // empty means no trace output
}

// InvocationError carries a semantic process exit code alongside a message.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// BuildInvocation canonicalizes the CLI's already-parsed flag values.
func BuildInvocation(workDir, graphPath, mode, tracePath string) (Invocation, error) {
	workDir = filepath.Clean(workDir)
	if workDir == "" {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}
	if graphPath == "" {
		return Invocation{}, invalidInvocationf("graph path is required")
	}

	parsedMode, err := parseMode(mode)
	if err != nil {
		return Invocation{}, err
	}

	resolvedGraph, err := resolveUnderWorkDir(workDir, graphPath)
	if err != nil {
		return Invocation{}, err
	}

	inv := Invocation{
		WorkDir:   workDir,
		GraphPath: resolvedGraph,
		Mode:      parsedMode,
	}

	if strings.TrimSpace(tracePath) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, tracePath)
		if err != nil {
			return Invocation{}, err
		}
		inv.TracePath = resolvedTrace
	}

	return inv, nil
}

func parseMode(raw string) (scheduler.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "concurrent":
		return scheduler.ModeConcurrent, nil
	case "serial":
		return scheduler.ModeSerial, nil
	default:
		return 0, invalidInvocationf("invalid --mode %q (expected concurrent|serial)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic process exit code from an error returned by
// this package or by Execute.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
