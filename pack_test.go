package mvgl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thltools/mvgl/internal/testutil"
)

func TestPack_Stats(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	src := t.TempDir()
	testutil.WriteTree(t, src, files)

	var mu sync.Mutex
	stages := make(map[ProgressStage]int)
	progress := func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages[ev.Stage]++
	}

	buf := testutil.NewBuffer(nil)
	stats, err := Pack(context.Background(), src, buf, PackWithProgress(progress))
	require.NoError(t, err)

	var in uint64
	for _, c := range files {
		in += uint64(len(c))
	}
	assert.Equal(t, len(files), stats.Files)
	assert.Equal(t, in, stats.BytesIn)
	assert.Equal(t, uint64(len(buf.Bytes())), stats.BytesOut)

	assert.Equal(t, len(files), stages[StageCompressing])
	assert.Equal(t, 1, stages[StageIndexing])
	assert.Equal(t, len(files)+1, stages[StageEnumerating])
}

func TestPack_Deterministic(t *testing.T) {
	t.Parallel()

	files := manyFiles(150)
	first := packTree(t, files)
	second := packTree(t, files)
	assert.Equal(t, first, second)
}

func TestPack_RenameSymmetry(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{"tex.dds": []byte("DDS data"), "sub/other.dds": []byte("more")}
	raw := packTree(t, files, PackWithRenameImages(true))

	a := openBytes(t, raw)
	_, ok := a.Lookup("tex.img")
	assert.True(t, ok)
	_, ok = a.Resolve("sub/other.img")
	assert.True(t, ok)
	_, ok = a.Lookup("tex.dds")
	assert.False(t, ok)

	dest := t.TempDir()
	_, err := a.ExtractTo(context.Background(), dest, ExtractWithRenameImages(true))
	require.NoError(t, err)
	assert.Equal(t, files, testutil.ReadTree(t, dest))

	// Without renaming on pack, ".dds" is stored as is.
	a = openBytes(t, packTree(t, files))
	_, ok = a.Lookup("tex.dds")
	assert.True(t, ok)
}

func TestPack_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string][]byte
		opts  []PackOption
		want  error
	}{
		{
			name:  "extension too long",
			files: map[string][]byte{"pic.jpeg2": []byte("x")},
			want:  ErrExtensionTooLong,
		},
		{
			name:  "name too long",
			files: map[string][]byte{strings.Repeat("n", 130) + ".bin": []byte("x")},
			want:  ErrNameTooLong,
		},
		{
			name:  "duplicate after rename",
			files: map[string][]byte{"a.dds": []byte("1"), "a.img": []byte("2")},
			opts:  []PackOption{PackWithRenameImages(true)},
			want:  ErrDuplicatePath,
		},
		{
			name:  "too many files",
			files: manyFiles(5),
			opts:  []PackOption{PackWithMaxFiles(4)},
			want:  ErrTooManyFiles,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := t.TempDir()
			testutil.WriteTree(t, src, tc.files)
			_, err := Pack(context.Background(), src, testutil.NewBuffer(nil), tc.opts...)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPack_MaxFilesExact(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, manyFiles(4))
	stats, err := Pack(context.Background(), src, testutil.NewBuffer(nil), PackWithMaxFiles(4))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Files)
}

func TestPack_SkipsSymlinks(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{"real.txt": []byte("real")})
	if err := os.Symlink("real.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	buf := testutil.NewBuffer(nil)
	stats, err := Pack(context.Background(), src, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)

	a := openBytes(t, buf.Bytes())
	_, ok := a.Lookup("link.txt")
	assert.False(t, ok)
}

func TestPack_WriteFailure(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, sampleTree())

	w := &testutil.LimitedWriter{Limit: 100}
	_, err := Pack(context.Background(), src, w)
	require.ErrorIs(t, err, testutil.ErrWriteLimit)
}

func TestPack_Canceled(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, manyFiles(10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, src, testutil.NewBuffer(nil))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPack_MissingSource(t *testing.T) {
	t.Parallel()

	_, err := Pack(context.Background(), filepath.Join(t.TempDir(), "nope"), testutil.NewBuffer(nil))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPackFile(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	src := t.TempDir()
	testutil.WriteTree(t, src, files)
	dest := filepath.Join(t.TempDir(), "nested", "DSDBP.mvgl")

	stats, err := PackFile(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Equal(t, len(files), stats.Files)

	f, err := os.Open(dest)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	out := t.TempDir()
	_, err = Extract(context.Background(), f, out)
	require.NoError(t, err)
	assert.Equal(t, files, testutil.ReadTree(t, out))

	// Only the archive is left in the destination directory.
	names, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestPackFile_FailureKeepsDestination(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string][]byte{"ok.txt": []byte("1"), "bad.jpeg2": []byte("2")})

	dir := t.TempDir()
	dest := filepath.Join(dir, "archive.mvgl")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

	_, err := PackFile(context.Background(), src, dest)
	require.ErrorIs(t, err, ErrExtensionTooLong)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("previous"), got)

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestPackFile_DestinationInsideSource(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	src := t.TempDir()
	testutil.WriteTree(t, src, files)
	dest := filepath.Join(src, "out", "DSDBP.mvgl")

	// The second run finds the first run's archive in srcDir.
	for range 2 {
		stats, err := PackFile(context.Background(), src, dest)
		require.NoError(t, err)
		assert.Equal(t, len(files), stats.Files)
	}

	f, err := os.Open(dest)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	a, err := Open(f)
	require.NoError(t, err)
	assert.Equal(t, len(files), a.Len())
	for h := range a.Entries() {
		assert.NotContains(t, h.Entry().Path, "out/", "archive packed output file %s", h.Entry().Path)
	}
}

func TestPathsBelow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got := pathsBelow(dir,
		filepath.Join(dir, "a", ".mvgl-123"),
		filepath.Join(dir, "x.mvgl"),
		filepath.Join(filepath.Dir(dir), "outside.mvgl"),
		dir)
	assert.Equal(t, []string{"a/.mvgl-123", "x.mvgl"}, got)
}

func TestPack_ReopenFromFile(t *testing.T) {
	t.Parallel()

	files := manyFiles(40)
	src := t.TempDir()
	testutil.WriteTree(t, src, files)

	path := filepath.Join(t.TempDir(), "a.mvgl")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = Pack(context.Background(), src, f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, packTree(t, files), raw)

	a := openBytes(t, raw)
	for p, want := range files {
		got, err := a.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), p)
	}
}
