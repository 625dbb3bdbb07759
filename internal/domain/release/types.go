package release

import "encoding/json"

// VersionRecord is a single tag or release listed by an upstream forge.
type VersionRecord struct {
	// Name is the tag name or release name used to address the release.
	Name string
	// TagName is the git tag behind a release; equals Name for plain tags.
	TagName string
	// IsPrerelease is set when the forge flags the record as non-final.
	IsPrerelease bool
	// IsDraft is set for unpublished releases.
	IsDraft bool
	// Raw is the undecoded forge payload, passed through untouched.
	Raw json.RawMessage
}

// Manifest is the part of the local package manifest the watcher cares about.
type Manifest struct {
	// UpstreamCode is the upstream repository web URL (upstream.code).
	UpstreamCode string
	// Version is the packaged version, "<semver>[~<suffix>]".
	Version string
}

// SourceDescriptor describes one downloadable asset of a release.
type SourceDescriptor struct {
	// Name is the descriptor file name, e.g. "app.src".
	Name string
	// URL is where the asset is downloaded from.
	URL string
	// SHA256 is the lowercase hex digest of the asset content.
	SHA256 string
	// Format is the archive format, e.g. "tar.gz" or "zip".
	Format string
	// InSubdir tells the installer the archive wraps its content in a folder.
	InSubdir bool
	// Extract tells the installer to unpack the asset.
	Extract bool
}

// Reason explains why the guard stopped a run.
type Reason string

const (
	// ReasonNone means the guard let the run through.
	ReasonNone Reason = ""
	// ReasonUpToDate means the upstream candidate is not newer than the manifest.
	ReasonUpToDate Reason = "up_to_date"
	// ReasonDuplicate means an update branch for the candidate already exists.
	ReasonDuplicate Reason = "duplicate"
)

// Decision is the verdict of the update guard.
type Decision struct {
	// Proceed is true when both gates passed.
	Proceed bool
	// Reason is set when Proceed is false.
	Reason Reason
	// Branch is the update branch name; empty when stopped at the freshness gate.
	Branch string
}

// RunOutcome is the single externally visible result of a run.
type RunOutcome struct {
	// Proceed tells the pipeline whether files were updated.
	Proceed bool
	// NewVersion is the resolved upstream version, empty when unknown.
	NewVersion string
	// BranchName is the branch the pipeline should push to, empty when unknown.
	BranchName string
}

// State is a step of the watcher state machine.
type State string

// Watcher states, in the order a successful run visits them.
const (
	StateStart            State = "START"
	StateVersionsResolved State = "VERSIONS_RESOLVED"
	StateUpToDate         State = "UP_TO_DATE"
	StateDuplicate        State = "DUPLICATE"
	StateGenerating       State = "GENERATING"
	StateManifestUpdated  State = "MANIFEST_UPDATED"
	StateExported         State = "EXPORTED"
)
