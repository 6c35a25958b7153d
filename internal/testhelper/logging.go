// Package testhelper holds small pieces of test-only ambient setup shared
// across this module's test suites. It is grounded on
// internal/testhelper/logging.go in the teacher repository this project
// started from, simplified from an init()-based side effect into an
// explicit helper tests call from TestMain, since relying on package
// import order for a global logging side effect proved surprising.
package testhelper

import (
	"os"

	"github.com/rs/zerolog"
)

// QuietLogs disables zerolog's global level for the duration of a test
// run, unless PIPELINECTL_TEST_LOG is set. Call it from a package's
// TestMain to keep backend/registry/pipeline logging out of test output.
func QuietLogs() {
	if os.Getenv("PIPELINECTL_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}
