package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/release-watcher/internal/domain/release"
)

const (
	// DefaultName is the descriptor file of the main source archive.
	DefaultName = "app.src"
	// DefaultFormat is the archive format of the main source archive.
	DefaultFormat = "tar.gz"
	// DefaultArchiveTemplate is the GitHub-style tag archive URL.
	DefaultArchiveTemplate = "{repo}/archive/refs/tags/{tag}.{format}"
)

var (
	errDuplicateAsset  = errors.New("duplicate asset name")
	errIncompleteAsset = errors.New("asset needs a name and a url")
)

// Asset is a downloadable file to describe.
type Asset struct {
	// Name is the descriptor file name.
	Name string
	// URL is the download location, after template expansion.
	URL string
	// Format is the archive format written to SOURCE_FORMAT.
	Format string
	// InSubdir is written to SOURCE_IN_SUBDIR.
	InSubdir bool
	// Extract is written to SOURCE_EXTRACT.
	Extract bool
}

// Target is the release assets are enumerated for.
type Target struct {
	// RepositoryURL is the upstream repository web URL.
	RepositoryURL string
	// Record is the resolved upstream record.
	Record release.VersionRecord
	// Version is the parsed version of Record.
	Version release.Version
}

// AssetEnumerator lists the assets of a release.
type AssetEnumerator interface {
	Assets(target Target) ([]Asset, error)
}

// Expand substitutes {repo}, {tag}, {version} and {format} in template.
func Expand(template string, target Target, format string) string {
	return strings.NewReplacer(
		"{repo}", strings.TrimSuffix(target.RepositoryURL, "/"),
		"{tag}", target.Record.Name,
		"{version}", target.Version.String(),
		"{format}", format,
	).Replace(template)
}

// SourceArchive enumerates the forge-generated archive of the release tag.
type SourceArchive struct {
	// Name defaults to DefaultName.
	Name string
	// Format defaults to DefaultFormat.
	Format string
	// URLTemplate defaults to DefaultArchiveTemplate.
	URLTemplate string
}

// Assets implements AssetEnumerator.
func (s SourceArchive) Assets(target Target) ([]Asset, error) {
	name := valueOr(s.Name, DefaultName)
	format := valueOr(s.Format, DefaultFormat)

	return []Asset{{
		Name:     name,
		URL:      Expand(valueOr(s.URLTemplate, DefaultArchiveTemplate), target, format),
		Format:   format,
		InSubdir: true,
		Extract:  true,
	}}, nil
}

// Templates enumerates fixed assets whose URLs are templates.
type Templates []Asset

// Assets implements AssetEnumerator.
func (t Templates) Assets(target Target) ([]Asset, error) {
	assets := make([]Asset, 0, len(t))

	for _, tmpl := range t {
		if tmpl.Name == "" || tmpl.URL == "" {
			return nil, fmt.Errorf("%w: %+v", errIncompleteAsset, tmpl)
		}

		asset := tmpl
		asset.URL = Expand(tmpl.URL, target, tmpl.Format)
		assets = append(assets, asset)
	}

	return assets, nil
}

// Chain concatenates enumerators and rejects two assets with one name.
type Chain []AssetEnumerator

// Assets implements AssetEnumerator.
func (c Chain) Assets(target Target) ([]Asset, error) {
	var (
		all  []Asset
		seen = make(map[string]struct{})
	)

	for _, enumerator := range c {
		assets, err := enumerator.Assets(target)
		if err != nil {
			return nil, err
		}

		for _, asset := range assets {
			if _, dup := seen[asset.Name]; dup {
				return nil, fmt.Errorf("%w: %s", errDuplicateAsset, asset.Name)
			}

			seen[asset.Name] = struct{}{}
			all = append(all, asset)
		}
	}

	return all, nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
