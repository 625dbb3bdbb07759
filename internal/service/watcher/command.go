package watcher

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/release-watcher/internal/api/forge"
	"github.com/oshokin/release-watcher/internal/config"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/repository/files"
	"github.com/oshokin/release-watcher/internal/repository/manifest"
	"github.com/oshokin/release-watcher/internal/service/checksum"
	"github.com/oshokin/release-watcher/internal/service/descriptor"
	"github.com/oshokin/release-watcher/internal/service/export"
	"github.com/oshokin/release-watcher/internal/service/guard"
)

// Options configures a watcher run from the command line.
type Options struct {
	// ConfigPath to YAML settings file; a missing file means defaults.
	ConfigPath string

	// ManifestPath overrides manifest_path from config when specified.
	ManifestPath string

	// DryRun resolves versions without touching files or the export.
	DryRun bool

	// LookupEnv replaces os.LookupEnv, used by tests.
	LookupEnv export.LookupEnv

	// RefProbe replaces the git branch probe, used by tests.
	RefProbe guard.RefProbe

	// Store replaces the disk store, used by tests.
	Store files.Store

	// HTTPClient replaces the transport of forge and download calls.
	HTTPClient *http.Client
}

const (
	// giteaArchiveTemplate is the tag archive path on Gitea and Forgejo.
	giteaArchiveTemplate = "{repo}/archive/{tag}.{format}"

	// defaultServerURL is used when GITHUB_SERVER_URL is unset.
	defaultServerURL = "https://github.com"
)

// Run loads settings, wires every component and performs one check.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithKV(logger.WithName(ctx, "release-watcher"), "run_id", uuid.NewString())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.ManifestPath != "" {
		cfg.ManifestPath = opts.ManifestPath
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	w, err := Wire(cfg, opts, lookup)
	if err != nil {
		return err
	}

	outcome, err := w.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Watcher run failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Watcher run finished",
		"proceed", outcome.Proceed, "version", outcome.NewVersion, "branch", outcome.BranchName)

	return nil
}

// Wire builds a Watcher from validated settings.
func Wire(cfg *config.Config, opts *Options, lookup export.LookupEnv) (*Watcher, error) {
	store := opts.Store
	if store == nil {
		store = files.NewDisk()
	}

	clientOpts := []forge.ClientOption{forge.WithTimeout(cfg.MetadataTimeout)}
	sumOpts := []checksum.Option{checksum.WithTimeout(cfg.DownloadTimeout)}

	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, forge.WithHTTPClient(opts.HTTPClient))
		sumOpts = append(sumOpts, checksum.WithHTTPClient(opts.HTTPClient))
	}

	source, err := forge.New(cfg.Forge, forge.Options{
		Listing: forge.Listing(cfg.Listing),
		Markers: cfg.ExcludeMarkers,
		APIRoot: cfg.APIRoot,
		Client:  forge.NewClient(clientOpts...),
	})
	if err != nil {
		return nil, err
	}

	probe := opts.RefProbe
	if probe == nil {
		probe = &guard.GitRefProbe{Timeout: cfg.MetadataTimeout}
	}

	return New(Dependencies{
		Manifest:       manifest.NewFileRepository(cfg.ManifestPath, store),
		Source:         source,
		Gate:           guard.New(probe, branchRemote(cfg, lookup), cfg.BranchPrefix),
		Assets:         assetChain(cfg),
		Writer:         descriptor.NewWriter(checksum.New(sumOpts...), store, cfg.SourcesDir),
		Exporter:       export.New(store, cfg.ExportEnv, lookup),
		RevisionSuffix: cfg.RevisionSuffix,
		DryRun:         opts.DryRun,
	})
}

// branchRemote picks the repository probed for update branches: the
// configured one, else the repository running the workflow. Empty means the
// upstream repository.
func branchRemote(cfg *config.Config, lookup export.LookupEnv) string {
	if cfg.BranchRemote != "" {
		return cfg.BranchRemote
	}

	repository, ok := lookup("GITHUB_REPOSITORY")
	if !ok || strings.TrimSpace(repository) == "" {
		return ""
	}

	server, ok := lookup("GITHUB_SERVER_URL")
	if !ok || strings.TrimSpace(server) == "" {
		server = defaultServerURL
	}

	return strings.TrimSuffix(server, "/") + "/" + strings.Trim(repository, "/")
}

func assetChain(cfg *config.Config) descriptor.AssetEnumerator {
	var chain descriptor.Chain

	if !cfg.SourceArchive.Skip {
		archive := descriptor.SourceArchive{
			Name:        cfg.SourceArchive.Name,
			Format:      cfg.SourceArchive.Format,
			URLTemplate: cfg.SourceArchive.URL,
		}

		if archive.URLTemplate == "" && isGitea(cfg.Forge) {
			archive.URLTemplate = giteaArchiveTemplate
		}

		chain = append(chain, archive)
	}

	if len(cfg.Assets) > 0 {
		templates := make(descriptor.Templates, 0, len(cfg.Assets))

		for _, a := range cfg.Assets {
			format := a.Format
			if format == "" {
				format = descriptor.DefaultFormat
			}

			templates = append(templates, descriptor.Asset{
				Name:     a.Name,
				URL:      a.URL,
				Format:   format,
				InSubdir: config.BoolOr(a.InSubdir, true),
				Extract:  config.BoolOr(a.Extract, true),
			})
		}

		chain = append(chain, templates)
	}

	return chain
}

func isGitea(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gitea", "forgejo", "codeberg":
		return true
	default:
		return false
	}
}
