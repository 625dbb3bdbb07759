package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDisk_ReplaceCreatesAndOverwrites writes a new file, then replaces it wholesale.
func TestDisk_ReplaceCreatesAndOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conf", "app.src")
	store := NewDisk()

	require.NoError(t, store.Replace(ctx, path, []byte("first\nsecond\n")))
	require.NoError(t, store.Replace(ctx, path, []byte("third\n")))

	got, err := store.ReadFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "third\n", string(got))

	// No staging leftovers next to the target.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestDisk_ReplaceKeepsMode preserves the permissions of an existing file.
func TestDisk_ReplaceKeepsMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, NewDisk().Replace(ctx, path, []byte("y")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestDisk_ReadMissing maps a missing file to ErrNotExist.
func TestDisk_ReadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewDisk().ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrNotExist)
}

// TestDisk_Append keeps earlier content.
func TestDisk_Append(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "env")
	store := NewDisk()

	require.NoError(t, store.Append(ctx, path, []byte("A=1\n")))
	require.NoError(t, store.Append(ctx, path, []byte("B=2\n")))

	got, err := store.ReadFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "A=1\nB=2\n", string(got))
}

// TestMemory covers the in-memory fake used by the service tests.
func TestMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(map[string][]byte{"manifest.toml": []byte("v")})

	data, err := m.ReadFile(ctx, "./manifest.toml")
	require.NoError(t, err)
	require.Equal(t, "v", string(data))

	// Returned slices are copies.
	data[0] = 'x'
	again, err := m.ReadFile(ctx, "manifest.toml")
	require.NoError(t, err)
	require.Equal(t, "v", string(again))

	require.Zero(t, m.Writes())
	require.NoError(t, m.Append(ctx, "env", []byte("A=1\n")))
	require.NoError(t, m.Replace(ctx, "conf/app.src", []byte("S")))
	require.Equal(t, 2, m.Writes())

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 3)
	require.Equal(t, "A=1\n", string(snapshot["env"]))

	_, err = m.ReadFile(ctx, "missing")
	require.ErrorIs(t, err, ErrNotExist)
}
