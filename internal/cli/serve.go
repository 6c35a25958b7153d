package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/backend/httpbackend"
	"github.com/taskflow/pipelinectl/internal/server"
	"github.com/taskflow/pipelinectl/pkg/pipeline"
)

var (
	serveAddr        string
	serveConcurrency int
	serveMetrics     bool
	serveCORS        bool
	serveBackends    []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for task execution",
	Long: `Start an HTTP server that accepts task submissions and executes them
against the registered backends.

The server provides:
- REST submission and polling endpoints
- WebSocket streaming of execution events
- Prometheus metrics
- Concurrent execution up to --concurrency in-flight runs

Examples:
  pipelinectl serve --addr :8080
  pipelinectl serve --backend worker=http://localhost:9000
  pipelinectl serve --concurrency 20 --metrics=false`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "pipelinectl: %v\n", err)
			os.Exit(1)
		}

		reg := backend.NewRegistry()
		for _, spec := range serveBackends {
			name, url, ok := splitBackendSpec(spec)
			if !ok {
				fmt.Fprintf(os.Stderr, "pipelinectl: invalid --backend %q, want name=url\n", spec)
				os.Exit(1)
			}
			b := httpbackend.New(name, url, cfg.BackendSelectTimeout)
			if err := reg.Register(b); err != nil {
				fmt.Fprintf(os.Stderr, "pipelinectl: register backend %q: %v\n", name, err)
				os.Exit(1)
			}
		}

		runner := pipeline.New(reg)

		srvCfg := server.DefaultConfig()
		srvCfg.Addr = serveAddr
		srvCfg.MaxConcurrency = serveConcurrency
		srvCfg.EnableMetrics = serveMetrics
		srvCfg.EnableCORS = serveCORS

		srv := server.New(srvCfg, runner)
		log.Info().Str("addr", serveAddr).Int("backends", len(serveBackends)).Msg("starting pipelinectl server")
		if err := srv.StartWithGracefulShutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "pipelinectl: server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 5, "maximum concurrent executions")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "enable Prometheus metrics endpoint")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "enable CORS headers")
	serveCmd.Flags().StringSliceVar(&serveBackends, "backend", nil, "name=url HTTP backend to register (repeatable)")
}

func splitBackendSpec(spec string) (name, url string, ok bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}
