package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/backend/httpbackend"
	"github.com/taskflow/pipelinectl/internal/pipeline"
	"github.com/taskflow/pipelinectl/internal/taskfile"
)

var (
	runInputJSON string
	runTimeout   time.Duration
	runBackends  []string
)

var runCmd = &cobra.Command{
	Use:   "run [task.yaml]",
	Short: "Execute a task file once and print its result",
	Long: `Execute a single task or pipeline file against the registered backends
and print the final result.

Examples:
  pipelinectl run task.yaml
  pipelinectl run pipeline.yaml --backend worker=http://localhost:9000
  pipelinectl run task.yaml --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Info().Msg("received interrupt, shutting down")
			cancel()
		}()

		if runTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}

		return runTaskFile(ctx, cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInputJSON, "input-json", "j", "", "payload overrides as a JSON object, merged into the task's payload")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall execution timeout")
	runCmd.Flags().StringSliceVar(&runBackends, "backend", nil, "name=url HTTP backend to register (repeatable)")
}

func runTaskFile(ctx context.Context, cmd *cobra.Command, path string) error {
	t, err := taskfile.NewYAMLParser(taskfile.WithoutExtensionCheck()).ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse task file: %w", err)
	}

	if runInputJSON != "" {
		overrides := make(map[string]any)
		if err := json.Unmarshal([]byte(runInputJSON), &overrides); err != nil {
			return fmt.Errorf("parse --input-json: %w", err)
		}
		if t.Payload == nil {
			t.Payload = make(map[string]any)
		}
		for k, v := range overrides {
			t.Payload[k] = v
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := backend.NewRegistry()
	for _, spec := range runBackends {
		name, url, ok := splitBackendSpec(spec)
		if !ok {
			return fmt.Errorf("invalid --backend %q, want name=url", spec)
		}
		if err := reg.Register(httpbackend.New(name, url, cfg.BackendSelectTimeout)); err != nil {
			return fmt.Errorf("register backend %q: %w", name, err)
		}
	}

	runner := pipeline.New(pipeline.WithRegistry(reg))

	start := time.Now()
	result, err := runner.Dispatch(ctx, t, nil, nil, nil)
	elapsed := time.Since(start)
	if err != nil {
		printRunFailure(cmd, cfg.Output, err, elapsed)
		return err
	}

	printRunResult(cmd, cfg.Output, result, elapsed)
	return nil
}

func printRunFailure(cmd *cobra.Command, output string, err error, elapsed time.Duration) {
	if output == "json" {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"status":   "failed",
			"error":    err.Error(),
			"duration": elapsed.Seconds(),
		})
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "failed after %s: %v\n", formatDuration(elapsed), err)
}

func printRunResult(cmd *cobra.Command, output string, result *pipeline.Result, elapsed time.Duration) {
	w := cmd.OutOrStdout()
	if output == "json" {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "completed",
			"duration": elapsed.Seconds(),
			"result":   resultValue(result),
		})
		return
	}

	fmt.Fprintf(w, "completed in %s\n", formatDuration(elapsed))
	if result.Pipeline != nil {
		for _, step := range result.Pipeline.StepStatus {
			fmt.Fprintf(w, "  %s: %s\n", step.ID, step.Status)
		}
		return
	}
	fmt.Fprintf(w, "%v\n", result.Single)
}

func resultValue(result *pipeline.Result) any {
	if result.Pipeline != nil {
		return result.Pipeline
	}
	return result.Single
}

func formatDuration(d time.Duration) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2fs", d.Seconds()), "0s")
}
