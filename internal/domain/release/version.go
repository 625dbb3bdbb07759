package release

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// LocalSuffixSeparator splits a packaged version from its packaging revision.
const LocalSuffixSeparator = "~"

// Version is a totally ordered semantic version.
// The zero value is not valid; obtain one from ParseVersion.
type Version struct {
	v *semver.Version
}

// ParseVersion parses s as a semantic version. A leading "v" and missing
// minor or patch components are accepted.
func ParseVersion(s string) (Version, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("%w: version %q: %w", ErrParse, s, err)
	}

	return Version{v: parsed}, nil
}

// ParsePackagedVersion parses a manifest version such as "2.2.0~ynh1",
// ignoring everything after the first "~".
func ParsePackagedVersion(s string) (Version, error) {
	upstream, _, _ := strings.Cut(s, LocalSuffixSeparator)

	return ParseVersion(upstream)
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.v == nil
}

// String renders the canonical form without the "v" prefix.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}

	return v.v.String()
}

// Compare returns -1, 0 or 1 when v is older, equal or newer than other.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	default:
		return v.v.Compare(other.v)
	}
}

// NewerThan reports whether v sorts strictly after other.
func (v Version) NewerThan(other Version) bool {
	return v.Compare(other) > 0
}

// Packaged returns the manifest form "<version>~<suffix>".
func (v Version) Packaged(suffix string) string {
	if suffix == "" {
		return v.String()
	}

	return v.String() + LocalSuffixSeparator + suffix
}
