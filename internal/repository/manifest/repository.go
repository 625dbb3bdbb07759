package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/repository/files"
)

// Format is the manifest serialization.
type Format string

const (
	// FormatTOML is the manifest.toml layout.
	FormatTOML Format = "toml"
	// FormatJSON is the legacy manifest.json layout.
	FormatJSON Format = "json"
)

// DefaultPath is where the manifest lives in a package tree.
const DefaultPath = "manifest.toml"

// document is the subset of the manifest decoded by the watcher.
type document struct {
	Version  string `json:"version" toml:"version"`
	Upstream struct {
		Code string `json:"code" toml:"code"`
	} `json:"upstream" toml:"upstream"`
}

// FileRepository loads and rewrites the manifest through a files.Store.
type FileRepository struct {
	path   string
	format Format
	store  files.Store
}

// Bump is a rendered manifest rewrite that has not been written yet.
type Bump struct {
	// Version is the new manifest version value.
	Version string
	// Data is the complete new manifest content.
	Data []byte
}

// NewFileRepository creates a repository for the manifest at path.
// The format follows the file extension: ".json" is JSON, anything else TOML.
func NewFileRepository(path string, store files.Store) *FileRepository {
	if path == "" {
		path = DefaultPath
	}

	format := FormatTOML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}

	return &FileRepository{
		path:   filepath.Clean(path),
		format: format,
		store:  store,
	}
}

// Path returns the manifest location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the manifest and checks the fields the watcher relies on.
func (r *FileRepository) Load(ctx context.Context) (*release.Manifest, error) {
	contents, err := r.store.ReadFile(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	doc, err := r.decode(contents)
	if err != nil {
		return nil, err
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("%w: manifest %s: missing version", release.ErrParse, r.path)
	}

	if doc.Upstream.Code == "" {
		return nil, fmt.Errorf("%w: manifest %s: missing upstream.code", release.ErrParse, r.path)
	}

	return &release.Manifest{
		UpstreamCode: strings.TrimSuffix(strings.TrimSpace(doc.Upstream.Code), "/"),
		Version:      doc.Version,
	}, nil
}

// CurrentVersion loads the manifest and parses its version, ignoring the
// packaging revision after "~".
func (r *FileRepository) CurrentVersion(ctx context.Context) (release.Version, *release.Manifest, error) {
	m, err := r.Load(ctx)
	if err != nil {
		return release.Version{}, nil, err
	}

	current, err := release.ParsePackagedVersion(m.Version)
	if err != nil {
		return release.Version{}, nil, fmt.Errorf("manifest %s: %w", r.path, err)
	}

	logger.DebugKV(ctx, "Read local version", "manifest", r.path, "version", m.Version)

	return current, m, nil
}

// PrepareBump renders the manifest with version set to "<latest>~<suffix>".
// Nothing is written.
func (r *FileRepository) PrepareBump(ctx context.Context, latest release.Version, suffix string) (*Bump, error) {
	contents, err := r.store.ReadFile(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	packaged := latest.Packaged(suffix)

	var updated []byte

	switch r.format {
	case FormatJSON:
		updated, err = rewriteJSONVersion(contents, packaged)
	default:
		updated, err = rewriteTOMLVersion(contents, packaged)
	}

	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", r.path, err)
	}

	if len(updated) == 0 || updated[len(updated)-1] != '\n' {
		updated = append(updated, '\n')
	}

	// The edit must still decode to the version we meant to write.
	doc, err := r.decode(updated)
	if err != nil {
		return nil, err
	}

	if doc.Version != packaged {
		return nil, fmt.Errorf("%w: manifest %s: rewritten version is %q, want %q",
			release.ErrParse, r.path, doc.Version, packaged)
	}

	return &Bump{Version: packaged, Data: updated}, nil
}

// Apply writes a prepared bump.
func (r *FileRepository) Apply(ctx context.Context, bump *Bump) error {
	if err := r.store.Replace(ctx, r.path, bump.Data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest updated", "manifest", r.path, "version", bump.Version)

	return nil
}

// BumpVersion prepares and applies the rewrite in one call.
func (r *FileRepository) BumpVersion(ctx context.Context, latest release.Version, suffix string) (string, error) {
	bump, err := r.PrepareBump(ctx, latest, suffix)
	if err != nil {
		return "", err
	}

	if err = r.Apply(ctx, bump); err != nil {
		return "", err
	}

	return bump.Version, nil
}

func (r *FileRepository) decode(contents []byte) (*document, error) {
	var doc document

	switch r.format {
	case FormatJSON:
		if err := json.Unmarshal(contents, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode manifest %s: %w", release.ErrParse, r.path, err)
		}
	default:
		if _, err := toml.Decode(string(contents), &doc); err != nil {
			return nil, fmt.Errorf("%w: decode manifest %s: %w", release.ErrParse, r.path, err)
		}
	}

	return &doc, nil
}
