package mvgl

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thltools/mvgl/internal/format"
	"github.com/thltools/mvgl/internal/testutil"
	"github.com/thltools/mvgl/internal/trie"
)

// sampleTree is a small asset tree with nested directories, empty files,
// images and files without an extension.
func sampleTree() map[string][]byte {
	return map[string][]byte{
		"a.txt":                  []byte("alpha"),
		"b.txt":                  []byte("bravo"),
		"chr/face/ui.img":        bytes.Repeat([]byte("texture "), 300),
		"chr/face/ui2.img":       bytes.Repeat([]byte{0}, 4096),
		"text/README":            []byte("no extension"),
		"text/empty.mbe":         {},
		"map/d01.geom":           bytes.Repeat([]byte("geometry data "), 50),
		"sound/se/bgm_0001.hca":  []byte("not really audio"),
		"deep/a/b/c/d/e/f/g.bin": []byte("deep"),
	}
}

// packTree writes files to a temp dir and packs it into memory.
func packTree(t *testing.T, files map[string][]byte, opts ...PackOption) []byte {
	t.Helper()
	src := t.TempDir()
	testutil.WriteTree(t, src, files)
	buf := testutil.NewBuffer(nil)
	_, err := Pack(context.Background(), src, buf, opts...)
	require.NoError(t, err)
	return buf.Bytes()
}

// rawEntry is one entry of a hand-built archive.
type rawEntry struct {
	path   string
	stored []byte
	size   uint64
}

// buildArchive assembles an archive whose entries hold exactly the given
// stored bytes, bypassing the packer.
func buildArchive(t *testing.T, entries []rawEntry) []byte {
	t.Helper()
	keys := make([]format.Key, len(entries))
	for i, e := range entries {
		k, err := format.NewKey(e.path)
		require.NoError(t, err, e.path)
		keys[i] = k
	}
	nodes, err := trie.Build(keys)
	require.NoError(t, err)
	records := trie.Records(nodes)
	nodeKeys := make([]format.Key, len(records))
	for i, r := range records {
		nodeKeys[i] = keys[r.ID]
	}

	infos := make([]format.Info, len(entries))
	var data bytes.Buffer
	for i, e := range entries {
		infos[i] = format.Info{Offset: uint64(data.Len()), Size: e.size, CompressedSize: uint64(len(e.stored))}
		data.Write(e.stored)
	}

	h := format.NewHeader(len(entries))
	h.TotalSize = h.DataStart + uint64(data.Len())

	var buf bytes.Buffer
	require.NoError(t, format.WriteHeader(&buf, h))
	require.NoError(t, format.WriteNodes(&buf, records))
	require.NoError(t, format.WriteNames(&buf, nodeKeys))
	require.NoError(t, format.WriteInfos(&buf, infos))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// withInfo returns a copy of a single-table archive with the info record of
// id replaced.
func withInfo(t *testing.T, raw []byte, id int, info format.Info) []byte {
	t.Helper()
	a := openBytes(t, raw)
	out := bytes.Clone(raw)
	var rec bytes.Buffer
	require.NoError(t, format.WriteInfos(&rec, []format.Info{info}))
	off := format.InfoTableOffset(a.Len()) + uint64(id)*format.InfoRecordSize
	copy(out[off:], rec.Bytes())
	return out
}

func openBytes(t *testing.T, raw []byte) *Archive {
	t.Helper()
	a, err := Open(bytes.NewReader(raw))
	require.NoError(t, err)
	return a
}

func manyFiles(n int) map[string][]byte {
	files := make(map[string][]byte, n)
	for i := range n {
		files[fmt.Sprintf("d%02d/f%04d.bin", i%17, i)] = bytes.Repeat([]byte{byte(i)}, i%97+1)
	}
	return files
}
