package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"taskgraph/internal/graph"
	"taskgraph/internal/trace"
)

// Execute loads, runs, and reports on the graph described by inv. It
// returns an error only for setup-level failures (bad graph file, empty
// graph, cyclic precedence) and for a failure to write the trace file;
// results are keyed by each unit's "id" in the graph file. Failures of
// individual units are reported
// through Result.Errors, not this return value, since a partially
// successful run is still a meaningful result to print.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	registry := DefaultRegistry()

	g, err := LoadGraphFromFile(inv.GraphPath, registry)
	if err != nil {
		return Result{ExitCode: ExitGraphFailure}, err
	}

	var sink trace.Sink = trace.NopSink{}
	var recorder *trace.Recorder
	if inv.TracePath != "" {
		recorder = trace.NewRecorder()
		sink = recorder
	}

	if err := g.Start(graph.WithMode(inv.Mode), graph.WithTraceSink(sink)); err != nil {
		return Result{ExitCode: ExitGraphFailure}, err
	}
	g.Wait(ctx)

	if recorder != nil {
		if err := writeTrace(inv.TracePath, recorder); err != nil {
			return Result{ExitCode: ExitInternalError}, err
		}
	}

	byID := g.Results()
	results := make(map[string]any, len(byID))
	for _, u := range g.Units() {
		if v, ok := byID[u.ID()]; ok {
			results[u.Name()] = v
		}
	}
	result := Result{
		ExitCode: ExitSuccess,
		Results:  results,
	}
	if runErr := g.Errors(); runErr != nil {
		result.ExitCode = ExitGraphFailure
		result.Errors = flattenErrors(runErr)
	}
	return result, nil
}

func flattenErrors(err error) []string {
	var merr *multierror.Error
	if asMultiError(err, &merr) {
		out := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func asMultiError(err error, target **multierror.Error) bool {
	if me, ok := err.(*multierror.Error); ok {
		*target = me
		return true
	}
	return false
}

func writeTrace(path string, recorder *trace.Recorder) error {
	events := recorder.Snapshot()
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}
