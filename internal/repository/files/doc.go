// Package files is the file-system port of the watcher.
//
// Disk replaces files atomically (write to a sibling, verify the SHA-256 of
// what was written, rename into place) so a crashed run never leaves half a
// manifest behind. Memory keeps everything in a map for tests.
package files
