// Command taskgraph is a demonstration CLI for the engine in internal/graph:
// it loads a declarative JSON graph description, runs it, and prints
// results and errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskgraph/internal/cli"
)

var (
	workDir   string
	mode      string
	tracePath string
)

var rootCmd = &cobra.Command{
	Use:           "taskgraph",
	Short:         "Run a declarative task graph",
	Long:          "taskgraph loads a JSON graph description, executes it concurrently (or serially), and prints the results and errors.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraph(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVar(&workDir, "workdir", mustGetwd(), "Working directory that a relative graph path or --trace path resolves under.")
	rootCmd.Flags().StringVar(&mode, "mode", "concurrent", "Execution mode: concurrent|serial.")
	rootCmd.Flags().StringVar(&tracePath, "trace", "", "If set, write a JSON lifecycle trace to this path.")
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "/"
	}
	return wd
}

func runGraph(ctx context.Context, graphPath string) error {
	result, err := cli.Run(ctx, workDir, graphPath, mode, tracePath)
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			return invErr
		}
		return err
	}

	if len(result.Results) > 0 {
		b, _ := json.MarshalIndent(result.Results, "", "  ")
		fmt.Println(string(b))
	}
	for _, e := range result.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
	if result.ExitCode != cli.ExitSuccess {
		os.Exit(result.ExitCode)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintln(os.Stderr, invErr.Message)
			os.Exit(invErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}
}
