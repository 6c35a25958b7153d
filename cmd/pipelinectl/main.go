package main

import (
	"os"

	"github.com/taskflow/pipelinectl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
