package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskflow/pipelinectl/internal/taskfile"
)

// fileResult is one file's validation outcome.
type fileResult struct {
	File       string        `json:"file"`
	Valid      bool          `json:"valid"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
	Error      string        `json:"error,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate task file syntax",
	Long: `Parse one or more task files and report whether each is syntactically
valid: well-formed YAML, a non-empty "type", and a parseable step graph.

Examples:
  pipelinectl validate task.yaml
  pipelinectl validate *.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser := taskfile.NewYAMLParser(taskfile.WithoutExtensionCheck())

		results := make([]fileResult, 0, len(args))
		invalid := 0
		for _, path := range args {
			start := time.Now()
			_, err := parser.ParseFile(path)
			elapsed := time.Since(start)
			res := fileResult{File: path, Valid: err == nil, Duration: elapsed, DurationMS: elapsed.Milliseconds()}
			if err != nil {
				res.Error = err.Error()
				invalid++
			}
			results = append(results, res)
		}

		printValidationResults(cmd, results)
		if invalid > 0 {
			return fmt.Errorf("%d of %d task files failed validation", invalid, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func printValidationResults(cmd *cobra.Command, results []fileResult) {
	if output == "json" {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(results)
		return
	}
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "ok      %s (%s)\n", r.File, r.Duration)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "invalid %s: %s\n", r.File, r.Error)
		}
	}
}
