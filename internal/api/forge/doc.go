// Package forge resolves the newest upstream version from a code forge.
//
// A Resolver combines three injected parts: the metadata Client (short
// timeout, status checks), a Dialect that knows how a forge lays out its API,
// and a Predicate deciding which tags or releases count as final. The
// watcher only sees the VersionSource interface, so adding a forge never
// touches the orchestration code.
package forge
