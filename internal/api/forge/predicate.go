package forge

import (
	"strings"

	"github.com/oshokin/release-watcher/internal/domain/release"
)

// Predicate decides whether an upstream record is an acceptable update target.
type Predicate func(release.VersionRecord) bool

// DefaultMarkers are substrings that mark a non-final tag.
//
//nolint:gochecknoglobals // Read-only default policy.
var DefaultMarkers = []string{"-rc", "REL"}

// ExcludeMarkers rejects records whose name contains any marker.
// Matching is a plain case-sensitive substring test: "REL" also rejects
// "RELEASE-1.0" and "v1.0-PRERELEASE".
func ExcludeMarkers(markers ...string) Predicate {
	return func(record release.VersionRecord) bool {
		for _, marker := range markers {
			if marker != "" && strings.Contains(record.Name, marker) {
				return false
			}
		}

		return true
	}
}

// ExcludeUnpublished rejects drafts and releases flagged as prereleases.
func ExcludeUnpublished() Predicate {
	return func(record release.VersionRecord) bool {
		return !record.IsDraft && !record.IsPrerelease
	}
}

// All accepts a record only when every predicate does.
func All(predicates ...Predicate) Predicate {
	return func(record release.VersionRecord) bool {
		for _, p := range predicates {
			if p != nil && !p(record) {
				return false
			}
		}

		return true
	}
}

// DefaultPredicate is the inclusion policy for a listing.
// Releases additionally drop drafts and prereleases.
func DefaultPredicate(listing Listing, markers []string) Predicate {
	if markers == nil {
		markers = DefaultMarkers
	}

	if listing == ListingReleases {
		return All(ExcludeUnpublished(), ExcludeMarkers(markers...))
	}

	return ExcludeMarkers(markers...)
}
