package descriptor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/repository/files"
)

// fakeChecksum returns a digest derived from the URL, or fails for listed URLs.
type fakeChecksum struct {
	fail  map[string]error
	calls []string
}

func (f *fakeChecksum) SHA256(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)

	if err := f.fail[url]; err != nil {
		return "", err
	}

	return "sum-of-" + url, nil
}

func target(t *testing.T) Target {
	t.Helper()

	v, err := release.ParseVersion("v1.2.0")
	require.NoError(t, err)

	return Target{
		RepositoryURL: "https://github.com/acme/demo/",
		Record:        release.VersionRecord{Name: "v1.2.0", TagName: "v1.2.0"},
		Version:       v,
	}
}

// TestSourceArchive follows the tag archive convention and the defaults.
func TestSourceArchive(t *testing.T) {
	t.Parallel()

	assets, err := SourceArchive{}.Assets(target(t))
	require.NoError(t, err)
	require.Equal(t, []Asset{{
		Name:     "app.src",
		URL:      "https://github.com/acme/demo/archive/refs/tags/v1.2.0.tar.gz",
		Format:   "tar.gz",
		InSubdir: true,
		Extract:  true,
	}}, assets)

	assets, err = SourceArchive{Format: "zip", URLTemplate: "{repo}/archive/{tag}.{format}"}.Assets(target(t))
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/demo/archive/v1.2.0.zip", assets[0].URL)
}

// TestChain combines enumerators and rejects duplicated names.
func TestChain(t *testing.T) {
	t.Parallel()

	binaries := Templates{{
		Name:   "amd64.src",
		URL:    "{repo}/releases/download/{tag}/demo-{version}-linux-amd64.tar.gz",
		Format: "tar.gz",
	}}

	assets, err := Chain{SourceArchive{}, binaries}.Assets(target(t))
	require.NoError(t, err)
	require.Len(t, assets, 2)
	require.Equal(t, "https://github.com/acme/demo/releases/download/v1.2.0/demo-1.2.0-linux-amd64.tar.gz", assets[1].URL)
	require.False(t, assets[1].Extract)

	_, err = Chain{SourceArchive{}, SourceArchive{}}.Assets(target(t))
	require.ErrorIs(t, err, errDuplicateAsset)

	_, err = Templates{{Name: "x"}}.Assets(target(t))
	require.ErrorIs(t, err, errIncompleteAsset)
}

// TestEncode writes keys in the fixed order with a trailing newline.
func TestEncode(t *testing.T) {
	t.Parallel()

	got := Encode(release.SourceDescriptor{
		URL:      "https://example.org/a.tar.gz",
		SHA256:   "abc",
		Format:   "tar.gz",
		InSubdir: true,
		Extract:  false,
	})

	require.Equal(t, "SOURCE_URL=https://example.org/a.tar.gz\n"+
		"SOURCE_SUM=abc\n"+
		"SOURCE_SUM_PRG=sha256sum\n"+
		"SOURCE_FORMAT=tar.gz\n"+
		"SOURCE_IN_SUBDIR=true\n"+
		"SOURCE_EXTRACT=false\n", string(got))
}

// TestGenerate overwrites previous descriptors wholesale.
func TestGenerate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := files.NewMemory(map[string][]byte{"conf/app.src": []byte("SOURCE_URL=old\nSTALE=1\n")})
	w := NewWriter(&fakeChecksum{}, store, "")

	assets, err := SourceArchive{}.Assets(target(t))
	require.NoError(t, err)

	descriptors, err := w.Generate(ctx, assets)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	got, err := store.ReadFile(ctx, "conf/app.src")
	require.NoError(t, err)
	require.Equal(t, string(Encode(descriptors[0])), string(got))
	require.NotContains(t, string(got), "STALE")
}

// TestBuild_FailureWritesNothing keeps the store untouched when any checksum fails.
func TestBuild_FailureWritesNothing(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	sum := &fakeChecksum{fail: map[string]error{"https://x/b": boom}}
	store := files.NewMemory(nil)
	w := NewWriter(sum, store, "sources")

	_, err := w.Generate(context.Background(), []Asset{
		{Name: "a.src", URL: "https://x/a"},
		{Name: "b.src", URL: "https://x/b"},
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, store.Writes())
	require.Equal(t, []string{"https://x/a", "https://x/b"}, sum.calls)
	require.Equal(t, "sources/a.src", w.Path("a.src"))
}
