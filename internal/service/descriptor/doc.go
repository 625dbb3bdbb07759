// Package descriptor builds and writes source descriptor files.
//
// An AssetEnumerator lists what a release offers for download (the source
// archive by default, binaries or extra archives when configured). The Writer
// checksums every asset and serializes one descriptor per asset in a fixed
// key order. Files are always rewritten from scratch.
package descriptor
