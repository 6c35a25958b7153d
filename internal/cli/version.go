package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version":   Version,
			"commit":    Commit,
			"date":      Date,
			"goVersion": GoVersion,
			"platform":  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		}

		if output == "json" {
			_ = json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (commit %s, built %s, %s, %s)\n",
			info["version"], info["commit"], info["date"], info["goVersion"], info["platform"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
