// Package release contains the core domain types of the watcher.
//
// It defines the comparable Version, the upstream VersionRecord, the generated
// SourceDescriptor, the guard Decision and the RunOutcome handed to the
// pipeline, together with the error taxonomy shared by every component.
package release
