// Package config defines the watcher settings and helpers to load, validate
// and save them in YAML format.
//
// A missing settings file is not an error: the defaults describe a package
// tree with manifest.toml at its root, descriptors under conf/ and a GitHub
// upstream scanned by tags.
package config
