// Package watcher runs one upstream check for a package tree.
//
// The Watcher reads the packaged version, resolves the newest upstream one,
// passes both through the update guard and, when the guard lets the run
// through, writes fresh source descriptors and bumps the manifest. Whatever
// happens, the run outcome is exported last so the pipeline can branch on it.
package watcher
