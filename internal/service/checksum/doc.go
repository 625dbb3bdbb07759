// Package checksum streams remote assets into a SHA-256 digest.
//
// Content flows through a fixed-size buffer, so memory use does not depend on
// the size of the asset. Downloads get a long timeout of their own, separate
// from the short one used for forge metadata.
package checksum
