// Package export hands the run outcome to the surrounding pipeline.
//
// The outcome is appended as VERSION, BRANCH and PROCEED lines to the file
// named by an environment variable (GITHUB_ENV by default). Without that
// variable the run is not under the pipeline: a warning is logged and
// nothing is written.
package export

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/repository/files"
)

// DefaultEnvVar names the variable holding the export file path.
const DefaultEnvVar = "GITHUB_ENV"

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Exporter writes run outcomes.
type Exporter struct {
	store  files.Store
	envVar string
	lookup LookupEnv
}

// New creates an exporter. Empty envVar means DefaultEnvVar and a nil lookup
// means os.LookupEnv.
func New(store files.Store, envVar string, lookup LookupEnv) *Exporter {
	if envVar == "" {
		envVar = DefaultEnvVar
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}

	return &Exporter{
		store:  store,
		envVar: envVar,
		lookup: lookup,
	}
}

// Export appends the outcome to the configured file.
func (e *Exporter) Export(ctx context.Context, outcome release.RunOutcome) error {
	path, ok := e.lookup(e.envVar)
	if !ok || strings.TrimSpace(path) == "" {
		logger.WarnKV(ctx, "Skipping run state export",
			"reason", release.ErrExportNotConfigured.Error(), "env", e.envVar, "proceed", outcome.Proceed)

		return nil
	}

	if err := e.store.Append(ctx, path, Encode(outcome)); err != nil {
		return fmt.Errorf("export run state: %w", err)
	}

	logger.InfoKV(ctx, "Run state exported",
		"path", path, "proceed", outcome.Proceed, "version", outcome.NewVersion, "branch", outcome.BranchName)

	return nil
}

// Encode renders the outcome as KEY=value lines.
func Encode(outcome release.RunOutcome) []byte {
	var b strings.Builder

	b.WriteString("VERSION=" + outcome.NewVersion + "\n")
	b.WriteString("BRANCH=" + outcome.BranchName + "\n")
	b.WriteString("PROCEED=" + strconv.FormatBool(outcome.Proceed) + "\n")

	return []byte(b.String())
}
