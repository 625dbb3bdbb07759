package descriptor

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/repository/files"
	"github.com/oshokin/release-watcher/internal/service/checksum"
)

// DefaultDir is where descriptor files are written.
const DefaultDir = "conf"

// Checksummer computes the digest of a remote asset.
type Checksummer interface {
	SHA256(ctx context.Context, url string) (string, error)
}

// Writer turns assets into descriptor files.
type Writer struct {
	checksum Checksummer
	store    files.Store
	dir      string
}

// NewWriter creates a writer storing descriptors under dir.
func NewWriter(sum Checksummer, store files.Store, dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}

	return &Writer{
		checksum: sum,
		store:    store,
		dir:      dir,
	}
}

// Build checksums every asset. Nothing is written, so a failed download
// leaves the package tree untouched.
func (w *Writer) Build(ctx context.Context, assets []Asset) ([]release.SourceDescriptor, error) {
	descriptors := make([]release.SourceDescriptor, 0, len(assets))

	for _, asset := range assets {
		logger.InfoKV(ctx, "Computing checksum", "asset", asset.Name, "url", asset.URL)

		sum, err := w.checksum.SHA256(ctx, asset.URL)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", asset.Name, err)
		}

		descriptors = append(descriptors, release.SourceDescriptor{
			Name:     asset.Name,
			URL:      asset.URL,
			SHA256:   sum,
			Format:   asset.Format,
			InSubdir: asset.InSubdir,
			Extract:  asset.Extract,
		})
	}

	return descriptors, nil
}

// Commit writes each descriptor to <dir>/<name>, replacing any previous file.
func (w *Writer) Commit(ctx context.Context, descriptors []release.SourceDescriptor) error {
	for _, d := range descriptors {
		path := w.Path(d.Name)

		if err := w.store.Replace(ctx, path, Encode(d)); err != nil {
			return fmt.Errorf("write descriptor %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Source descriptor written", "path", path, "sha256", d.SHA256)
	}

	return nil
}

// Generate builds and commits in one call.
func (w *Writer) Generate(ctx context.Context, assets []Asset) ([]release.SourceDescriptor, error) {
	descriptors, err := w.Build(ctx, assets)
	if err != nil {
		return nil, err
	}

	if err = w.Commit(ctx, descriptors); err != nil {
		return nil, err
	}

	return descriptors, nil
}

// Path returns the file a descriptor called name is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Encode serializes a descriptor. Key order is fixed.
func Encode(d release.SourceDescriptor) []byte {
	var b strings.Builder

	writeKV(&b, "SOURCE_URL", d.URL)
	writeKV(&b, "SOURCE_SUM", d.SHA256)
	writeKV(&b, "SOURCE_SUM_PRG", checksum.Algorithm)
	writeKV(&b, "SOURCE_FORMAT", d.Format)
	writeKV(&b, "SOURCE_IN_SUBDIR", strconv.FormatBool(d.InSubdir))
	writeKV(&b, "SOURCE_EXTRACT", strconv.FormatBool(d.Extract))

	return []byte(b.String())
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}
