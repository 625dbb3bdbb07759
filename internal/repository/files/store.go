package files

import (
	"context"
	"errors"
)

// Store reads and writes whole files.
type Store interface {
	// ReadFile returns the file content or an error wrapping ErrNotExist.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Replace swaps the file content for data in one step, creating it if needed.
	Replace(ctx context.Context, path string, data []byte) error
	// Append adds data at the end of the file, creating it if needed.
	Append(ctx context.Context, path string, data []byte) error
}

// ErrNotExist is returned when a file is missing.
var ErrNotExist = errors.New("file does not exist")
