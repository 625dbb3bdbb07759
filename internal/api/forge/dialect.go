package forge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/oshokin/release-watcher/internal/domain/release"
)

var errUnknownForge = errors.New("unknown forge")

// tagEntry is the tag listing shape shared by GitHub and Gitea.
type tagEntry struct {
	Name string `json:"name"`
}

// releaseEntry is the release listing shape shared by GitHub and Gitea.
type releaseEntry struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
}

// decodeEntry maps a listing entry into a record. Releases are addressed by
// their tag, since that is what archive URLs and versions are built from.
func decodeEntry(listing Listing, raw json.RawMessage) (release.VersionRecord, error) {
	if listing == ListingReleases {
		var entry releaseEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return release.VersionRecord{}, fmt.Errorf("%w: decode release: %w", release.ErrParse, err)
		}

		if entry.TagName == "" {
			return release.VersionRecord{}, fmt.Errorf("%w: release without tag_name", release.ErrParse)
		}

		return release.VersionRecord{
			Name:         entry.TagName,
			TagName:      entry.TagName,
			IsPrerelease: entry.Prerelease,
			IsDraft:      entry.Draft,
			Raw:          raw,
		}, nil
	}

	var entry tagEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return release.VersionRecord{}, fmt.Errorf("%w: decode tag: %w", release.ErrParse, err)
	}

	if entry.Name == "" {
		return release.VersionRecord{}, fmt.Errorf("%w: tag without name", release.ErrParse)
	}

	return release.VersionRecord{
		Name:    entry.Name,
		TagName: entry.Name,
		Raw:     raw,
	}, nil
}

// repositoryPath splits a repository web URL into its URL and "owner/repo" path.
func repositoryPath(repositoryURL string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(repositoryURL))
	if err != nil {
		return nil, "", fmt.Errorf("%w: repository url %q: %w", release.ErrParse, repositoryURL, err)
	}

	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")

	parts := strings.Split(path, "/")
	if u.Host == "" || len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, "", fmt.Errorf("%w: repository url %q: want <host>/<owner>/<repo>", release.ErrParse, repositoryURL)
	}

	return u, path, nil
}

// GitHub is the github.com dialect. APIRoot overrides the API host, which
// otherwise is api.github.com for github.com and <host>/api/v3 for Enterprise.
type GitHub struct {
	APIRoot string
}

// Name implements Dialect.
func (GitHub) Name() string {
	return "github"
}

// APIBase maps https://github.com/o/r to https://api.github.com/repos/o/r.
func (g GitHub) APIBase(repositoryURL string) (string, error) {
	u, path, err := repositoryPath(repositoryURL)
	if err != nil {
		return "", err
	}

	root := strings.TrimSuffix(g.APIRoot, "/")

	switch {
	case root != "":
	case strings.EqualFold(u.Host, "github.com") || strings.EqualFold(u.Host, "www.github.com"):
		root = "https://api.github.com"
	default:
		root = u.Scheme + "://" + u.Host + "/api/v3"
	}

	return root + "/repos/" + path, nil
}

// Decode implements Dialect.
func (GitHub) Decode(listing Listing, raw json.RawMessage) (release.VersionRecord, error) {
	return decodeEntry(listing, raw)
}

// Gitea is the dialect of Gitea, Forgejo and Codeberg.
type Gitea struct {
	APIRoot string
}

// Name implements Dialect.
func (Gitea) Name() string {
	return "gitea"
}

// APIBase maps https://host/o/r to https://host/api/v1/repos/o/r.
func (g Gitea) APIBase(repositoryURL string) (string, error) {
	u, path, err := repositoryPath(repositoryURL)
	if err != nil {
		return "", err
	}

	root := strings.TrimSuffix(g.APIRoot, "/")
	if root == "" {
		root = u.Scheme + "://" + u.Host + "/api/v1"
	}

	return root + "/repos/" + path, nil
}

// Decode implements Dialect.
func (Gitea) Decode(listing Listing, raw json.RawMessage) (release.VersionRecord, error) {
	return decodeEntry(listing, raw)
}

// Options configure New.
type Options struct {
	// Listing picks tags or releases.
	Listing Listing
	// Markers override DefaultMarkers when not nil.
	Markers []string
	// APIRoot overrides the API host of the dialect.
	APIRoot string
	// Client is the metadata client; nil means NewClient().
	Client *Client
}

// New builds the VersionSource for a named forge.
//
//nolint:ireturn // Callers depend on the strategy interface only.
func New(name string, opts Options) (VersionSource, error) {
	var dialect Dialect

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "github":
		dialect = GitHub{APIRoot: opts.APIRoot}
	case "gitea", "forgejo", "codeberg":
		dialect = Gitea{APIRoot: opts.APIRoot}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownForge, name)
	}

	listing := opts.Listing
	if listing == "" {
		listing = ListingTags
	}

	return NewResolver(opts.Client, dialect, listing, DefaultPredicate(listing, opts.Markers)), nil
}
