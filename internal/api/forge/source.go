package forge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
)

// VersionSource resolves the newest acceptable upstream version of a repository.
type VersionSource interface {
	Latest(ctx context.Context, repositoryURL string) (release.Version, release.VersionRecord, error)
}

// Listing selects which forge listing is scanned.
type Listing string

const (
	// ListingTags scans repository tags.
	ListingTags Listing = "tags"
	// ListingReleases scans published releases.
	ListingReleases Listing = "releases"
)

// Dialect describes how a forge exposes its API.
type Dialect interface {
	// Name identifies the forge in logs and configuration.
	Name() string
	// APIBase rewrites a repository web URL into the API base of that repository.
	APIBase(repositoryURL string) (string, error)
	// Decode turns one listing entry into a VersionRecord.
	Decode(listing Listing, raw json.RawMessage) (release.VersionRecord, error)
}

// Resolver is the VersionSource shared by every dialect.
type Resolver struct {
	client    *Client
	dialect   Dialect
	listing   Listing
	predicate Predicate
}

// NewResolver wires a resolver. A nil predicate accepts every record.
func NewResolver(client *Client, dialect Dialect, listing Listing, predicate Predicate) *Resolver {
	if client == nil {
		client = NewClient()
	}

	if listing == "" {
		listing = ListingTags
	}

	if predicate == nil {
		predicate = func(release.VersionRecord) bool { return true }
	}

	return &Resolver{
		client:    client,
		dialect:   dialect,
		listing:   listing,
		predicate: predicate,
	}
}

// Latest returns the first record, in the order the forge lists them, that
// passes the predicate.
func (r *Resolver) Latest(ctx context.Context, repositoryURL string) (release.Version, release.VersionRecord, error) {
	base, err := r.dialect.APIBase(repositoryURL)
	if err != nil {
		return release.Version{}, release.VersionRecord{}, err
	}

	entries, err := r.client.List(ctx, base+"/"+string(r.listing))
	if err != nil {
		return release.Version{}, release.VersionRecord{}, err
	}

	for _, raw := range entries {
		record, err := r.dialect.Decode(r.listing, raw)
		if err != nil {
			return release.Version{}, release.VersionRecord{}, err
		}

		if !r.predicate(record) {
			logger.DebugKV(ctx, "Skipping upstream record", "name", record.Name)
			continue
		}

		latest, err := release.ParseVersion(record.Name)
		if err != nil {
			return release.Version{}, release.VersionRecord{}, fmt.Errorf("%s %s: %w", r.dialect.Name(), r.listing, err)
		}

		logger.InfoKV(ctx, "Resolved upstream version",
			"forge", r.dialect.Name(), "listing", r.listing, "name", record.Name, "version", latest.String())

		return latest, record, nil
	}

	return release.Version{}, release.VersionRecord{}, fmt.Errorf("%w: %d %s of %s scanned",
		release.ErrNotFound, len(entries), r.listing, repositoryURL)
}
