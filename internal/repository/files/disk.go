package files

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

const (
	// DefaultFileMode is applied to files created by the watcher.
	DefaultFileMode os.FileMode = 0o644

	// DefaultDirMode is applied to directories created by the watcher.
	DefaultDirMode os.FileMode = 0o755
)

// Disk is a Store backed by the local file system.
type Disk struct{}

// NewDisk returns a disk-backed store.
func NewDisk() *Disk {
	return new(Disk)
}

// ReadFile reads the whole file at path.
func (*Disk) ReadFile(_ context.Context, path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return contents, nil
}

// Replace writes data next to path and renames it over the target once the
// checksum of the staged copy matches.
func (*Disk) Replace(_ context.Context, path string, data []byte) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	mode := DefaultFileMode

	info, err := os.Stat(path)
	switch {
	case err == nil:
		mode = info.Mode().Perm()
	case errors.Is(err, os.ErrNotExist):
		// The updater renames the current file away first, so it has to exist.
		if err = os.WriteFile(path, nil, mode); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}

	checksum := sha256.Sum256(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// Append opens path in append mode and writes data.
func (*Disk) Append(_ context.Context, path string, data []byte) error {
	path = filepath.Clean(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err = f.Write(data); err != nil {
		_ = f.Close()

		return fmt.Errorf("append to %s: %w", path, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
