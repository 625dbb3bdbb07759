// Package manifest reads and bumps the local package manifest.
//
// Both manifest.toml and the older manifest.json layouts are supported. The
// version bump edits the top-level version value in place, so comments, key
// order and every other byte of the file survive the rewrite.
package manifest
