package trie

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thltools/mvgl/internal/format"
)

func mustKeys(t *testing.T, paths ...string) []format.Key {
	t.Helper()
	keys := make([]format.Key, 0, len(paths))
	for _, p := range paths {
		k, err := format.NewKey(p)
		require.NoError(t, err, p)
		keys = append(keys, k)
	}
	return keys
}

func requireResolvable(t *testing.T, nodes []Node, keys []format.Key) {
	t.Helper()
	for i, k := range keys {
		leaf, ok := Lookup(nodes, k)
		require.True(t, ok, "lookup %s", k.Path())
		require.Equal(t, i, leaf, "lookup %s", k.Path())
	}
}

func TestBuild_TwoKeys(t *testing.T) {
	t.Parallel()

	keys := mustKeys(t, "a.txt", "b.txt")
	nodes, err := Build(keys)
	require.NoError(t, err)

	// "a" and "b" first differ at bit 0 of the stem byte (bit 32).
	want := []Node{
		{CompareBit: MaxBit, Left: 0, Right: 1, Leaf: -1},
		{CompareBit: 0, Left: 2, Right: 0, Leaf: 0},
		{CompareBit: 32, Left: 2, Right: 1, Leaf: 1},
	}
	assert.Equal(t, want, nodes)
	requireResolvable(t, nodes, keys)
}

func TestBuild_Empty(t *testing.T) {
	t.Parallel()

	nodes, err := Build(nil)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	k := mustKeys(t, "missing.bin")[0]
	_, ok := Lookup(nodes, k)
	assert.False(t, ok)
}

func TestBuild_SingleKey(t *testing.T) {
	t.Parallel()

	keys := mustKeys(t, "only/one.img")
	nodes, err := Build(keys)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, uint32(1), nodes[0].Right)
	assert.Equal(t, uint32(0), nodes[1].CompareBit)
	requireResolvable(t, nodes, keys)
}

func TestBuild_DuplicateKey(t *testing.T) {
	t.Parallel()

	keys := mustKeys(t, "a/b.txt", "a/c.txt", "a/b.txt")
	_, err := Build(keys)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestBuild_PrefixKeys(t *testing.T) {
	t.Parallel()

	// Stems that are prefixes of each other only differ in the implicit NUL.
	keys := mustKeys(t, "ab", "abc", "a", "abcd", "ab.c", "ab.cd")
	nodes, err := Build(keys)
	require.NoError(t, err)
	requireResolvable(t, nodes, keys)
}

func TestBuild_ChildBitsIncrease(t *testing.T) {
	t.Parallel()

	keys := randomKeys(t, 200, 7)
	nodes, err := Build(keys)
	require.NoError(t, err)
	require.Len(t, nodes, len(keys)+1)

	// Every forward edge tests a strictly later bit, every other edge points
	// back up the tree or to the sentinel.
	seen := make(map[int]bool, len(keys))
	for i, n := range nodes[1:] {
		idx := i + 1
		require.False(t, seen[n.Leaf], "leaf %d carried twice", n.Leaf)
		seen[n.Leaf] = true
		for _, child := range []uint32{n.Left, n.Right} {
			if child == 0 {
				continue
			}
			require.Less(t, int(child), len(nodes))
			c := nodes[child]
			if int(child) > idx {
				assert.Greater(t, c.CompareBit, n.CompareBit)
			} else {
				assert.LessOrEqual(t, c.CompareBit, n.CompareBit)
			}
		}
	}
}

func TestBuild_RandomSets(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		n    int
		seed uint64
	}{
		{2, 1}, {3, 2}, {10, 3}, {64, 4}, {500, 5}, {2000, 6},
	} {
		t.Run(fmt.Sprintf("n=%d", tc.n), func(t *testing.T) {
			t.Parallel()
			keys := randomKeys(t, tc.n, tc.seed)
			nodes, err := Build(keys)
			require.NoError(t, err)
			require.Len(t, nodes, len(keys)+1)
			requireResolvable(t, nodes, keys)
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	keys := randomKeys(t, 300, 11)
	first, err := Build(keys)
	require.NoError(t, err)
	second, err := Build(keys)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLookup_Missing(t *testing.T) {
	t.Parallel()

	keys := mustKeys(t, "chr/a.img", "chr/b.img", "map/c.bin")
	nodes, err := Build(keys)
	require.NoError(t, err)

	for _, p := range []string{"chr/c.img", "zzz", "map/c.img"} {
		k := mustKeys(t, p)[0]
		leaf, ok := Lookup(nodes, k)
		if ok {
			// The walk always lands somewhere; callers compare keys.
			assert.NotEqual(t, k, keys[leaf], p)
		}
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	t.Parallel()

	keys := randomKeys(t, 50, 21)
	nodes, err := Build(keys)
	require.NoError(t, err)

	records := Records(nodes)
	require.Len(t, records, len(keys))
	for i, r := range records {
		assert.Equal(t, uint32(nodes[i+1].Leaf), r.ID)
	}

	rebuilt := FromRecords(records)
	assert.Equal(t, nodes, rebuilt)
	requireResolvable(t, rebuilt, keys)
}

func randomKeys(t *testing.T, n int, seed uint64) []format.Key {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	exts := []string{"img", "mbe", "txt", "hca", "geom", "", "b"}
	dirs := []string{"chr", "map", "text", "ui/menu", "ui", "se"}
	seen := make(map[string]bool, n)
	paths := make([]string, 0, n)
	for len(paths) < n {
		name := make([]byte, 1+rng.IntN(12))
		for i := range name {
			name[i] = "abcdefghijklmnopqrstuvwxyz0123456789_"[rng.IntN(37)]
		}
		p := dirs[rng.IntN(len(dirs))] + "/" + string(name)
		if ext := exts[rng.IntN(len(exts))]; ext != "" {
			p += "." + ext
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return mustKeys(t, paths...)
}
