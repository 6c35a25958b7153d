package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskflow/pipelinectl/internal/schema"
)

var schemaTarget string

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Output the JSON Schema for a task or step",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			out []byte
			err error
		)
		switch schemaTarget {
		case "step":
			out, err = schema.StepSchema()
		default:
			out, err = schema.TaskSchema()
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "pipelinectl: generate schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVar(&schemaTarget, "target", "task", "schema to emit: task or step")
}
