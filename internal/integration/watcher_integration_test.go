package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-watcher/internal/api/forge/forgetest"
	"github.com/oshokin/release-watcher/internal/config"
	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/service/guard"
	"github.com/oshokin/release-watcher/internal/service/watcher"
)

// packageTree is a package checkout on disk plus the pipeline it runs in.
type packageTree struct {
	root     string
	cfgPath  string
	manifest string
	envFile  string
	forge    *forgetest.Server
	probe    *guard.MemoryRefProbe
}

// newPackageTree lays out a manifest and a settings file in a temporary
// directory. manifestBody receives the fake upstream repository URL.
func newPackageTree(
	t *testing.T,
	manifestName string,
	manifestBody func(repositoryURL string) string,
	tweak func(*config.Config),
) *packageTree {
	t.Helper()

	root := t.TempDir()
	tree := &packageTree{
		root:     root,
		cfgPath:  filepath.Join(root, config.DefaultConfigFilename),
		manifest: filepath.Join(root, manifestName),
		envFile:  filepath.Join(root, "github_env"),
		forge:    forgetest.New(t),
		probe:    guard.NewMemoryRefProbe(),
	}

	require.NoError(t, os.WriteFile(tree.manifest, []byte(manifestBody(tree.forge.RepositoryURL())), 0o600))

	cfg := config.Default()
	cfg.ManifestPath = tree.manifest
	cfg.SourcesDir = filepath.Join(root, "conf")
	cfg.APIRoot = tree.forge.GitHubAPIRoot()

	if tweak != nil {
		tweak(cfg)
	}

	require.NoError(t, config.Save(tree.cfgPath, cfg))

	return tree
}

func (p *packageTree) run(ctx context.Context, env map[string]string) error {
	return watcher.Run(ctx, &watcher.Options{
		ConfigPath: p.cfgPath,
		RefProbe:   p.probe,
		HTTPClient: p.forge.Client(),
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]

			return v, ok
		},
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func tomlManifest(repositoryURL, version string) string {
	return "packaging_format = 2\nid = \"demo\"\nversion = '" + version + "'\n\n[upstream]\ncode = \"" +
		repositoryURL + "\"\n"
}

func tomlAt(version string) func(string) string {
	return func(repositoryURL string) string {
		return tomlManifest(repositoryURL, version)
	}
}

// TestWatcher_UpdatesTreeOnDisk runs a full update and checks every file it writes.
func TestWatcher_UpdatesTreeOnDisk(t *testing.T) {
	t.Parallel()

	tree := newPackageTree(t, "manifest.toml", tomlAt("1.4.2~ynh3"), nil)

	archive := make([]byte, 3*4096+17)
	for i := range archive {
		archive[i] = byte(i % 251)
	}

	sum := sha256.Sum256(archive)

	tree.forge.SetTags("v1.5.0-rc1", "v1.5.0-REL", "v1.4.3", "v1.4.2")
	tree.forge.SetFile("v1.4.3.tar.gz", archive)

	err := tree.run(context.Background(), map[string]string{"GITHUB_ENV": tree.envFile})
	require.NoError(t, err)

	require.Equal(t,
		"SOURCE_URL="+tree.forge.RepositoryURL()+"/archive/refs/tags/v1.4.3.tar.gz\n"+
			"SOURCE_SUM="+hex.EncodeToString(sum[:])+"\n"+
			"SOURCE_SUM_PRG=sha256sum\n"+
			"SOURCE_FORMAT=tar.gz\n"+
			"SOURCE_IN_SUBDIR=true\n"+
			"SOURCE_EXTRACT=true\n",
		readFile(t, filepath.Join(tree.root, "conf", "app.src")))
	require.Equal(t, tomlManifest(tree.forge.RepositoryURL(), "1.4.3~ynh1"), readFile(t, tree.manifest))
	require.Equal(t, "VERSION=1.4.3\nBRANCH=ci-auto-update-v1.4.3\nPROCEED=true\n", readFile(t, tree.envFile))
}

// TestWatcher_AppendsToExistingEnvFile keeps earlier workflow variables.
func TestWatcher_AppendsToExistingEnvFile(t *testing.T) {
	t.Parallel()

	tree := newPackageTree(t, "manifest.toml", tomlAt("1.4.3~ynh1"), nil)
	require.NoError(t, os.WriteFile(tree.envFile, []byte("EARLIER=1\n"), 0o600))

	tree.forge.SetTags("v1.4.3")

	require.NoError(t, tree.run(context.Background(), map[string]string{"GITHUB_ENV": tree.envFile}))
	require.Equal(t, "EARLIER=1\nVERSION=\nBRANCH=\nPROCEED=false\n", readFile(t, tree.envFile))
}

// TestWatcher_JSONManifestReleases drives the releases listing against a JSON manifest.
func TestWatcher_JSONManifestReleases(t *testing.T) {
	t.Parallel()

	jsonManifest := func(version string) func(string) string {
		return func(repositoryURL string) string {
			return "{\n  \"id\": \"demo\",\n  \"version\": \"" + version + "\",\n  \"upstream\": {\"code\": \"" +
				repositoryURL + "\", \"version\": \"keep\"}\n}\n"
		}
	}

	tree := newPackageTree(t, "manifest.json", jsonManifest("0.9.0~pkg4"), func(cfg *config.Config) {
		cfg.Listing = "releases"
		cfg.RevisionSuffix = "pkg1"
	})

	tree.forge.SetReleases(
		forgetest.Release{TagName: "v1.0.0", Prerelease: true},
		forgetest.Release{TagName: "v0.9.1"},
	)
	tree.forge.SetFile("v0.9.1.tar.gz", []byte("sources"))

	require.NoError(t, tree.run(context.Background(), map[string]string{"GITHUB_ENV": tree.envFile}))
	require.Equal(t, jsonManifest("0.9.1~pkg1")(tree.forge.RepositoryURL()), readFile(t, tree.manifest))
	require.Equal(t, 1, tree.forge.Hits("releases"))
	require.Zero(t, tree.forge.Hits("tags"))
}

// TestWatcher_FailureLeavesTreeIntact exports PROCEED=false and writes nothing else.
func TestWatcher_FailureLeavesTreeIntact(t *testing.T) {
	t.Parallel()

	tree := newPackageTree(t, "manifest.toml", tomlAt("1.4.2~ynh3"), nil)
	original := tomlManifest(tree.forge.RepositoryURL(), "1.4.2~ynh3")

	tree.forge.FailListings(http.StatusServiceUnavailable)

	err := tree.run(context.Background(), map[string]string{"GITHUB_ENV": tree.envFile})
	require.ErrorIs(t, err, release.ErrNetwork)
	require.Equal(t, original, readFile(t, tree.manifest))
	require.NoDirExists(t, filepath.Join(tree.root, "conf"))
	require.Equal(t, "VERSION=\nBRANCH=\nPROCEED=false\n", readFile(t, tree.envFile))
}

// TestWatcher_MissingConfigRejectsBadUpstream falls back to defaults without a
// settings file and fails on an upstream that is not a repository URL.
func TestWatcher_MissingConfigRejectsBadUpstream(t *testing.T) {
	t.Parallel()

	tree := newPackageTree(t, "manifest.toml", func(string) string {
		return tomlManifest("not a url", "1.0.0~ynh1")
	}, nil)

	err := watcher.Run(context.Background(), &watcher.Options{
		ConfigPath:   filepath.Join(tree.root, "absent.yaml"),
		ManifestPath: tree.manifest,
		RefProbe:     tree.probe,
		LookupEnv:    func(string) (string, bool) { return "", false },
	})
	require.ErrorIs(t, err, release.ErrParse)
}
