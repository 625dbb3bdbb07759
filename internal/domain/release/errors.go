package release

import "errors"

var (
	// ErrNetwork marks timeouts, connection failures and non-success HTTP statuses.
	ErrNetwork = errors.New("network error")
	// ErrParse marks malformed versions and missing fields in manifests or metadata.
	ErrParse = errors.New("parse error")
	// ErrNotFound is returned when no upstream record passes the inclusion predicate.
	ErrNotFound = errors.New("no matching version found")
	// ErrExportNotConfigured signals that the pipeline gave no export location.
	// It is only ever logged, a run never fails because of it.
	ErrExportNotConfigured = errors.New("export location not configured")
)
