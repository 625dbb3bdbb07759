package guard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
)

// DefaultProbeTimeout bounds a single ls-remote call.
const DefaultProbeTimeout = 10 * time.Second

// lsRemoteNoMatch is the exit code of `git ls-remote --exit-code` when no ref matched.
const lsRemoteNoMatch = 2

// GitRefProbe checks branches with `git ls-remote`, which only reads the
// remote's ref advertisement and never fetches objects.
type GitRefProbe struct {
	// Binary is the git executable; empty means "git" from PATH.
	Binary string
	// Timeout bounds the call; zero means DefaultProbeTimeout.
	Timeout time.Duration
}

// BranchExists reports whether refs/heads/<branch> exists on remote.
func (p *GitRefProbe) BranchExists(ctx context.Context, remote, branch string) (bool, error) {
	binary := p.Binary
	if binary == "" {
		binary = "git"
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ref := "refs/heads/" + branch

	//nolint:gosec // Remote and branch come from the watcher configuration.
	cmd := exec.CommandContext(ctx, binary, "ls-remote", "--quiet", "--exit-code", "--heads", remote, ref)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	logger.DebugKV(ctx, "Probing remote branch", "remote", remote, "ref", ref)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == lsRemoteNoMatch && ctx.Err() == nil {
			return false, nil
		}

		return false, fmt.Errorf("%w: git ls-remote %s: %w: %s",
			release.ErrNetwork, remote, err, strings.TrimSpace(stderr.String()))
	}

	return hasRef(output, ref), nil
}

// hasRef looks for an exact "<sha>\t<ref>" line in ls-remote output.
func hasRef(output []byte, ref string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		_, name, found := strings.Cut(scanner.Text(), "\t")
		if found && strings.TrimSpace(name) == ref {
			return true
		}
	}

	return false
}

// MemoryRefProbe is an in-memory RefProbe for tests and dry runs.
type MemoryRefProbe struct {
	mu       sync.Mutex
	branches map[string]map[string]struct{}
	calls    int
	err      error
}

// NewMemoryRefProbe returns an empty probe.
func NewMemoryRefProbe() *MemoryRefProbe {
	return &MemoryRefProbe{branches: make(map[string]map[string]struct{})}
}

// AddBranch records branch on remote.
func (p *MemoryRefProbe) AddBranch(remote, branch string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.branches[remote] == nil {
		p.branches[remote] = make(map[string]struct{})
	}

	p.branches[remote][branch] = struct{}{}
}

// FailWith makes every later probe return err.
func (p *MemoryRefProbe) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// Calls returns the number of probes made.
func (p *MemoryRefProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

// BranchExists implements RefProbe.
func (p *MemoryRefProbe) BranchExists(_ context.Context, remote, branch string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++

	if p.err != nil {
		return false, p.err
	}

	_, ok := p.branches[remote][branch]

	return ok, nil
}
