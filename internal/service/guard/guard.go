package guard

import (
	"context"
	"fmt"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
)

// DefaultBranchPrefix is prepended to the version to name update branches.
const DefaultBranchPrefix = "ci-auto-update-v"

// RefProbe answers whether a branch exists on a remote repository.
type RefProbe interface {
	BranchExists(ctx context.Context, remote, branch string) (bool, error)
}

// Guard runs the freshness and duplication gates.
type Guard struct {
	probe  RefProbe
	remote string
	prefix string
}

// New creates a guard. An empty remote means "probe the remote passed to
// Check"; an empty prefix means DefaultBranchPrefix.
func New(probe RefProbe, remote, prefix string) *Guard {
	if prefix == "" {
		prefix = DefaultBranchPrefix
	}

	return &Guard{
		probe:  probe,
		remote: remote,
		prefix: prefix,
	}
}

// BranchName returns the update branch name for v.
func (g *Guard) BranchName(v release.Version) string {
	return g.prefix + v.String()
}

// Check stops at the first failing gate. The ref probe is only consulted
// once latest is known to be newer than current.
func (g *Guard) Check(ctx context.Context, current, latest release.Version, fallbackRemote string) (release.Decision, error) {
	if !latest.NewerThan(current) {
		logger.InfoKV(ctx, "Package is up to date", "current", current.String(), "latest", latest.String())

		return release.Decision{Reason: release.ReasonUpToDate}, nil
	}

	branch := g.BranchName(latest)

	remote := g.remote
	if remote == "" {
		remote = fallbackRemote
	}

	exists, err := g.probe.BranchExists(ctx, remote, branch)
	if err != nil {
		return release.Decision{}, fmt.Errorf("probe branch %s: %w", branch, err)
	}

	if exists {
		logger.InfoKV(ctx, "Update branch already exists", "branch", branch, "remote", remote)

		return release.Decision{Reason: release.ReasonDuplicate, Branch: branch}, nil
	}

	logger.InfoKV(ctx, "Update required", "current", current.String(), "latest", latest.String(), "branch", branch)

	return release.Decision{Proceed: true, Branch: branch}, nil
}
