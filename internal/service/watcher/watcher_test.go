package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-watcher/internal/api/forge/forgetest"
	"github.com/oshokin/release-watcher/internal/config"
	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/repository/files"
	"github.com/oshokin/release-watcher/internal/service/guard"
)

const (
	envFile      = "/ci/github_env"
	manifestPath = "manifest.toml"
)

// fixture is a fake forge plus every side-effect port a run touches.
type fixture struct {
	forge *forgetest.Server
	store *files.Memory
	probe *guard.MemoryRefProbe
	env   map[string]string
	cfg   *config.Config
}

func newFixture(t *testing.T, packaged string) *fixture {
	t.Helper()

	f := &fixture{
		forge: forgetest.New(t),
		probe: guard.NewMemoryRefProbe(),
		env:   map[string]string{"GITHUB_ENV": envFile},
		cfg:   config.Default(),
	}

	f.store = files.NewMemory(map[string][]byte{
		manifestPath: []byte("id = \"demo\"\nversion = \"" + packaged + "\"\n\n[upstream]\ncode = \"" +
			f.forge.RepositoryURL() + "\"\n"),
	})

	f.cfg.ManifestPath = manifestPath
	f.cfg.APIRoot = f.forge.GitHubAPIRoot()

	return f
}

func (f *fixture) lookup(key string) (string, bool) {
	value, ok := f.env[key]

	return value, ok
}

func (f *fixture) watcher(t *testing.T, dryRun bool) *Watcher {
	t.Helper()

	w, err := Wire(f.cfg, &Options{
		DryRun:     dryRun,
		RefProbe:   f.probe,
		Store:      f.store,
		HTTPClient: f.forge.Client(),
	}, f.lookup)
	require.NoError(t, err)

	return w
}

func (f *fixture) file(t *testing.T, path string) string {
	t.Helper()

	data, err := f.store.ReadFile(context.Background(), path)
	require.NoError(t, err)

	return string(data)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// TestRun_UpdateAvailable writes the descriptor, bumps the manifest and exports PROCEED=true.
func TestRun_UpdateAvailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	archive := []byte("release 2.3.0 sources")

	f.forge.SetTags("v2.3.0", "v2.2.0")
	f.forge.SetFile("v2.3.0.tar.gz", archive)

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, release.RunOutcome{
		Proceed:    true,
		NewVersion: "2.3.0",
		BranchName: "ci-auto-update-v2.3.0",
	}, outcome)

	require.Equal(t,
		"SOURCE_URL="+f.forge.RepositoryURL()+"/archive/refs/tags/v2.3.0.tar.gz\n"+
			"SOURCE_SUM="+sha256Hex(archive)+"\n"+
			"SOURCE_SUM_PRG=sha256sum\n"+
			"SOURCE_FORMAT=tar.gz\n"+
			"SOURCE_IN_SUBDIR=true\n"+
			"SOURCE_EXTRACT=true\n",
		f.file(t, "conf/app.src"))
	require.Contains(t, f.file(t, manifestPath), `version = "2.3.0~ynh1"`)
	require.Equal(t, "VERSION=2.3.0\nBRANCH=ci-auto-update-v2.3.0\nPROCEED=true\n", f.file(t, envFile))
}

// TestRun_UpToDate touches nothing but the export.
func TestRun_UpToDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.SetTags("v2.2.0", "v2.1.0")

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.False(t, outcome.Proceed)
	require.Equal(t, "VERSION=\nBRANCH=\nPROCEED=false\n", f.file(t, envFile))
	require.Equal(t, 1, f.store.Writes())
	require.Zero(t, f.probe.Calls())
}

// TestRun_DuplicateBranch stops when the update branch is already pushed.
func TestRun_DuplicateBranch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.SetTags("v2.3.0")
	f.forge.SetFile("v2.3.0.tar.gz", []byte("unused"))
	f.probe.AddBranch(f.forge.RepositoryURL(), "ci-auto-update-v2.3.0")

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.False(t, outcome.Proceed)
	require.Equal(t, "VERSION=\nBRANCH=\nPROCEED=false\n", f.file(t, envFile))
	require.Zero(t, f.forge.Hits("v2.3.0.tar.gz"))
	require.Contains(t, f.file(t, manifestPath), `version = "2.2.0~ynh1"`)
}

// TestRun_PackagingRemoteFromWorkflow probes the repository running the workflow.
func TestRun_PackagingRemoteFromWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.env["GITHUB_SERVER_URL"] = "https://git.example.org/"
	f.env["GITHUB_REPOSITORY"] = "apps/demo_ynh"
	f.forge.SetTags("v2.3.0")
	f.probe.AddBranch("https://git.example.org/apps/demo_ynh", "ci-auto-update-v2.3.0")

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.False(t, outcome.Proceed)
}

// TestRun_ForgeFailure exports PROCEED=false and reports a network error.
func TestRun_ForgeFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.FailListings(http.StatusBadGateway)

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.ErrorIs(t, err, release.ErrNetwork)
	require.False(t, outcome.Proceed)
	require.Equal(t, "VERSION=\nBRANCH=\nPROCEED=false\n", f.file(t, envFile))
	require.Contains(t, f.file(t, manifestPath), `version = "2.2.0~ynh1"`)
}

// TestRun_DownloadFailure leaves the manifest and descriptors untouched.
func TestRun_DownloadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.SetTags("v2.3.0")

	_, err := f.watcher(t, false).Run(context.Background())
	require.ErrorIs(t, err, release.ErrNetwork)
	require.Contains(t, f.file(t, manifestPath), `version = "2.2.0~ynh1"`)
	require.NotContains(t, f.store.Snapshot(), "conf/app.src")
	require.Equal(t, "VERSION=\nBRANCH=\nPROCEED=false\n", f.file(t, envFile))
}

// TestRun_FiltersPreReleases skips tags carrying an exclusion marker.
func TestRun_FiltersPreReleases(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.SetTags("v3.0.0-rc1", "REL_2_9", "v2.3.0")
	f.forge.SetFile("v2.3.0.tar.gz", []byte("ok"))

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2.3.0", outcome.NewVersion)
}

// TestRun_ExportNotConfigured still updates the tree outside a pipeline.
func TestRun_ExportNotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	delete(f.env, "GITHUB_ENV")
	f.forge.SetTags("v2.3.0")
	f.forge.SetFile("v2.3.0.tar.gz", []byte("ok"))

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Proceed)
	require.Contains(t, f.file(t, manifestPath), `version = "2.3.0~ynh1"`)
	require.NotContains(t, f.store.Snapshot(), envFile)
}

// TestRun_DryRun downloads and renders but writes nothing.
func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.SetTags("v2.3.0")
	f.forge.SetFile("v2.3.0.tar.gz", []byte("ok"))

	outcome, err := f.watcher(t, true).Run(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Proceed)
	require.Equal(t, 1, f.forge.Hits("v2.3.0.tar.gz"))
	require.Zero(t, f.store.Writes())
}

// TestRun_GiteaExtraAssets uses the Gitea archive layout and declared assets.
func TestRun_GiteaExtraAssets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "1.0.0~ynh2")
	f.cfg.Forge = "gitea"
	f.cfg.APIRoot = f.forge.URL + "/api/v1"
	f.cfg.Listing = "releases"
	f.cfg.Assets = []config.Asset{{
		Name:   "arm64.src",
		URL:    "{repo}/releases/download/{tag}/demo-{version}-arm64.zip",
		Format: "zip",
	}}

	f.forge.SetReleases(
		forgetest.Release{TagName: "v1.2.0", Name: "v1.2.0", Draft: true},
		forgetest.Release{TagName: "v1.1.0", Name: "v1.1.0"},
	)
	f.forge.SetFile("v1.1.0.tar.gz", []byte("src"))
	f.forge.SetFile("demo-1.1.0-arm64.zip", []byte("bin"))

	outcome, err := f.watcher(t, false).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.1.0", outcome.NewVersion)
	require.Contains(t, f.file(t, "conf/app.src"), f.forge.RepositoryURL()+"/archive/v1.1.0.tar.gz\n")
	require.Contains(t, f.file(t, "conf/arm64.src"), "SOURCE_SUM="+sha256Hex([]byte("bin"))+"\n")
	require.Contains(t, f.file(t, manifestPath), `version = "1.1.0~ynh1"`)
}

// failingExporter fails every export.
type failingExporter struct {
	calls []release.RunOutcome
}

func (e *failingExporter) Export(_ context.Context, outcome release.RunOutcome) error {
	e.calls = append(e.calls, outcome)

	return errors.New("disk full")
}

// TestRun_ExportFailureJoined keeps both the run error and the export error.
func TestRun_ExportFailureJoined(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2.2.0~ynh1")
	f.forge.FailListings(http.StatusInternalServerError)

	w := f.watcher(t, false)
	exporter := new(failingExporter)
	w.deps.Exporter = exporter

	_, err := w.Run(context.Background())
	require.ErrorIs(t, err, release.ErrNetwork)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, []release.RunOutcome{{}}, exporter.calls)
}

// TestNew_MissingDependency rejects partial wiring.
func TestNew_MissingDependency(t *testing.T) {
	t.Parallel()

	_, err := New(Dependencies{})
	require.ErrorIs(t, err, errMissingDependency)
}

// TestBranchRemote picks the configured remote before the workflow one.
func TestBranchRemote(t *testing.T) {
	t.Parallel()

	env := map[string]string{"GITHUB_REPOSITORY": "apps/demo_ynh"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]

		return v, ok
	}

	cfg := config.Default()
	require.Equal(t, "https://github.com/apps/demo_ynh", branchRemote(cfg, lookup))

	cfg.BranchRemote = "https://example.org/mirror.git"
	require.Equal(t, "https://example.org/mirror.git", branchRemote(cfg, lookup))

	require.Empty(t, branchRemote(config.Default(), func(string) (string, bool) { return "", false }))
}
