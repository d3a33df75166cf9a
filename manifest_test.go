package mvgl

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	a := openBytes(t, packTree(t, files))

	m, err := a.Manifest(false)
	require.NoError(t, err)
	require.Len(t, m.Entries, len(files))
	assert.Equal(t, a.Header(), m.Header)
	for i, e := range m.Entries {
		assert.Equal(t, i, e.ID)
		assert.Empty(t, e.Digest)
		assert.Equal(t, uint64(len(files[e.Path])), e.Size)
	}

	m, err = a.Manifest(true)
	require.NoError(t, err)
	for p, content := range files {
		e, ok := m.Entry(p)
		require.True(t, ok, p)
		assert.Equal(t, digest.FromBytes(content), e.Digest, p)
		assert.False(t, e.Stored, p)
		require.NoError(t, e.Digest.Validate())
	}

	_, ok := m.Entry("missing")
	assert.False(t, ok)
}

func TestManifest_StoredEntry(t *testing.T) {
	t.Parallel()

	plain := []byte("kept as stored bytes")
	a := openBytes(t, buildArchive(t, []rawEntry{{path: "p.bin", stored: plain, size: 4096}}))

	m, err := a.Manifest(true)
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.True(t, m.Entries[0].Stored)
	assert.Equal(t, digest.FromBytes(plain), m.Entries[0].Digest)
}

func TestRenameHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stored, external string
	}{
		{"tex.img", "tex.dds"},
		{"a/b/c.img", "a/b/c.dds"},
		{"note.txt", "note.txt"},
		{"dir.img/file", "dir.img/file"},
		{".img", ".img"},
		{"dir/.img", "dir/.img"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.external, externalName(tc.stored), tc.stored)
		assert.Equal(t, tc.stored, storedName(tc.external), tc.external)
	}
}
