package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Asset declares an extra downloadable file of each release.
type Asset struct {
	// Name is the descriptor file name, e.g. "arm64.src".
	Name string `yaml:"name"`
	// URL is a template; {repo}, {tag}, {version} and {format} are expanded.
	URL string `yaml:"url"`
	// Format is written to SOURCE_FORMAT.
	Format string `yaml:"format"`
	// InSubdir defaults to true.
	InSubdir *bool `yaml:"in_subdir,omitempty"`
	// Extract defaults to true.
	Extract *bool `yaml:"extract,omitempty"`
}

// SourceArchive configures the forge-generated tag archive.
type SourceArchive struct {
	// Skip disables the archive, leaving only the declared assets.
	Skip bool `yaml:"skip,omitempty"`
	// Name is the descriptor file name.
	Name string `yaml:"name,omitempty"`
	// Format is the archive extension.
	Format string `yaml:"format,omitempty"`
	// URL overrides the archive URL template.
	URL string `yaml:"url,omitempty"`
}

// Config holds the settings of one package tree.
type Config struct {
	// ManifestPath is the package manifest (manifest.toml or manifest.json).
	ManifestPath string `yaml:"manifest_path"`
	// SourcesDir is where descriptor files are written.
	SourcesDir string `yaml:"sources_dir"`
	// Forge is the upstream forge dialect: github or gitea.
	Forge string `yaml:"forge"`
	// APIRoot overrides the forge API host.
	APIRoot string `yaml:"api_root,omitempty"`
	// Listing is tags or releases.
	Listing string `yaml:"listing"`
	// ExcludeMarkers reject tags containing any of them; nil means the default set.
	ExcludeMarkers []string `yaml:"exclude_markers,omitempty"`
	// RevisionSuffix is appended to bumped versions after "~".
	RevisionSuffix string `yaml:"revision_suffix"`
	// BranchPrefix names update branches.
	BranchPrefix string `yaml:"branch_prefix"`
	// BranchRemote is the repository probed for existing update branches.
	BranchRemote string `yaml:"branch_remote,omitempty"`
	// ExportEnv names the variable holding the run-state export path.
	ExportEnv string `yaml:"export_env"`
	// MetadataTimeout bounds forge listing calls and the branch probe.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
	// DownloadTimeout bounds each asset download.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// SourceArchive configures the default asset.
	SourceArchive SourceArchive `yaml:"source_archive,omitempty"`
	// Assets are extra files described on every update.
	Assets []Asset `yaml:"assets,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for watcher settings.
	DefaultConfigFilename = "release-watcher.yaml"

	// DefaultManifestPath is the manifest location relative to the package root.
	DefaultManifestPath = "manifest.toml"

	// DefaultSourcesDir is where descriptor files go.
	DefaultSourcesDir = "conf"

	// DefaultForge is the forge dialect used when none is set.
	DefaultForge = "github"

	// DefaultListing is the listing scanned when none is set.
	DefaultListing = "tags"

	// DefaultRevisionSuffix is the packaging revision of a fresh bump.
	DefaultRevisionSuffix = "ynh1"

	// DefaultBranchPrefix names update branches.
	DefaultBranchPrefix = "ci-auto-update-v"

	// DefaultExportEnv is the GitHub Actions environment file variable.
	DefaultExportEnv = "GITHUB_ENV"

	// DefaultMetadataTimeout bounds metadata calls.
	DefaultMetadataTimeout = 5 * time.Second

	// DefaultDownloadTimeout bounds asset downloads.
	DefaultDownloadTimeout = 10 * time.Minute

	// DefaultFilePermissions is the file permission for saved settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownListing is returned for listings other than tags and releases.
	errUnknownListing = errors.New("listing must be tags or releases")
	// errUnknownForge is returned for unsupported forge names.
	errUnknownForge = errors.New("forge must be github or gitea")
	// errTimeoutOrder is returned when downloads would time out before metadata calls.
	errTimeoutOrder = errors.New("download_timeout must not be shorter than metadata_timeout")
	// errBadAsset is returned for incomplete asset declarations.
	errBadAsset = errors.New("asset needs name and url")
	// errNoAssets is returned when the source archive is skipped and nothing replaces it.
	errNoAssets = errors.New("source_archive.skip needs at least one asset")
)

// knownForges lists accepted forge names.
//
//nolint:gochecknoglobals // Read-only lookup table.
var knownForges = []string{"github", "gitea", "forgejo", "codeberg"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path and validates it. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefault(&cfg.ManifestPath, DefaultManifestPath)
	setDefault(&cfg.SourcesDir, DefaultSourcesDir)
	setDefault(&cfg.Forge, DefaultForge)
	setDefault(&cfg.Listing, DefaultListing)
	setDefault(&cfg.RevisionSuffix, DefaultRevisionSuffix)
	setDefault(&cfg.BranchPrefix, DefaultBranchPrefix)
	setDefault(&cfg.ExportEnv, DefaultExportEnv)

	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	if !slices.Contains(knownForges, cfg.Forge) {
		return fmt.Errorf("%w: %q", errUnknownForge, cfg.Forge)
	}

	if cfg.Listing != "tags" && cfg.Listing != "releases" {
		return fmt.Errorf("%w: %q", errUnknownListing, cfg.Listing)
	}

	if cfg.DownloadTimeout < cfg.MetadataTimeout {
		return errTimeoutOrder
	}

	if cfg.SourceArchive.Skip && len(cfg.Assets) == 0 {
		return errNoAssets
	}

	for i, asset := range cfg.Assets {
		if asset.Name == "" || asset.URL == "" {
			return fmt.Errorf("assets[%d]: %w", i, errBadAsset)
		}
	}

	return nil
}

// BoolOr dereferences b, falling back to def when unset.
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}

	return *b
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
