// Package guard decides whether a resolved upstream version should produce an update.
//
// Two gates run in order and the first one to fail stops the run: the
// candidate must be strictly newer than the packaged version, and no update
// branch for it may exist on the remote yet. The second gate is what keeps
// repeated or overlapping scheduled runs from opening the same update twice.
package guard
