// Package trie builds and walks the binary radix trie that MDB1 archives use
// to look entries up by path.
//
// Nodes live in a flat array and reference their children by index. Index 0
// is the sentinel root; its right child is the first real node. A child
// whose compare bit is not greater than its parent's is a back edge, and the
// walk stops there.
package trie

import (
	"errors"
	"fmt"

	"github.com/thltools/mvgl/internal/format"
)

// MaxBit is the compare bit of the sentinel root.
const MaxBit = format.RootCompareBit

// ErrDuplicateKey is returned when two keys are identical.
var ErrDuplicateKey = errors.New("mvgl: duplicate path")

// Node is one trie node. Leaf is the index of the key the node carries, or
// -1 for the sentinel root.
type Node struct {
	CompareBit uint32
	Left       uint32
	Right      uint32
	Leaf       int
}

// pending is a subtree waiting to be built: the keys routed below one child
// pointer of parent after testing bit.
type pending struct {
	parent uint32
	bit    uint32
	keys   []int
	left   bool
}

// Build constructs the node array for keys. The returned slice starts with
// the sentinel root; node i (i >= 1) carries keys[nodes[i].Leaf].
//
// Subtrees are expanded from an explicit stack, right child first, so the
// node order is fully determined by the order of keys.
func Build(keys []format.Key) ([]Node, error) {
	nodes := []Node{{CompareBit: MaxBit, Leaf: -1}}
	if len(keys) == 0 {
		return nodes, nil
	}
	if err := checkUnique(keys); err != nil {
		return nil, err
	}

	// owner[k] is the node carrying key k, or 0 while k has none. A key in a
	// pending list only gets a node from an item on its own root path, so
	// owner[k] != 0 means k already discriminates higher up.
	owner := make([]uint32, len(keys))
	all := make([]int, len(keys))
	for i := range all {
		all[i] = i
	}
	stack := []pending{{parent: 0, bit: MaxBit, keys: all}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var nodeless, claimed []int
		for _, k := range it.keys {
			if owner[k] != 0 {
				claimed = append(claimed, k)
			} else {
				nodeless = append(nodeless, k)
			}
		}

		if len(nodeless) == 0 {
			link(nodes, it, owner[it.keys[0]])
			continue
		}

		bit, leaf, err := firstMismatch(keys, it.bit+1, nodeless, claimed)
		if err != nil {
			return nil, err
		}

		idx := uint32(len(nodes)) //nolint:gosec // bounded by len(keys)+1
		link(nodes, it, idx)
		nodes = append(nodes, Node{CompareBit: bit, Leaf: leaf})
		owner[leaf] = idx

		var left, right []int
		for _, k := range it.keys {
			if keys[k].Bit(bit) != 0 {
				right = append(right, k)
			} else {
				left = append(left, k)
			}
		}
		if len(left) > 0 {
			stack = append(stack, pending{parent: idx, bit: bit, keys: left, left: true})
		}
		if len(right) > 0 {
			stack = append(stack, pending{parent: idx, bit: bit, keys: right})
		}
	}

	return nodes, nil
}

func link(nodes []Node, it pending, target uint32) {
	if it.left {
		nodes[it.parent].Left = target
	} else {
		nodes[it.parent].Right = target
	}
}

// firstMismatch picks the compare bit and leaf of a new node. Without
// claimed keys the node tests the next bit and carries the first nodeless
// key. Otherwise it tests the first bit from first on where the claimed keys
// disagree among themselves, or where a nodeless key disagrees with them; in
// the latter case that nodeless key becomes the leaf.
func firstMismatch(keys []format.Key, first uint32, nodeless, claimed []int) (uint32, int, error) {
	if len(claimed) == 0 {
		return first, nodeless[0], nil
	}

	var limit uint32
	for _, list := range [][]int{nodeless, claimed} {
		for _, k := range list {
			limit = max(limit, keys[k].Bits())
		}
	}

	for i := first; i < limit; i++ {
		var set, unset bool
		for _, k := range claimed {
			if keys[k].Bit(i) != 0 {
				set = true
			} else {
				unset = true
			}
			if set && unset {
				return i, nodeless[0], nil
			}
		}
		for _, k := range nodeless {
			v := keys[k].Bit(i) != 0
			if v && unset || !v && set {
				return i, k, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrDuplicateKey, keys[nodeless[0]].Path())
}

func checkUnique(keys []format.Key) error {
	seen := make(map[format.Key]int, len(keys))
	for i, k := range keys {
		if j, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s (entries %d and %d)", ErrDuplicateKey, k.Path(), j, i)
		}
		seen[k] = i
	}
	return nil
}

// Lookup walks nodes with key k and returns the leaf reached, the index of
// the only key that can equal k. Callers compare the keys themselves.
// ok is false when the walk ends at the sentinel or leaves the array.
func Lookup(nodes []Node, k format.Key) (leaf int, ok bool) {
	if len(nodes) < 2 {
		return -1, false
	}
	next := nodes[0].Right
	prev := int64(-1)
	for range len(nodes) {
		if next == 0 || int(next) >= len(nodes) {
			return -1, false
		}
		n := nodes[next]
		if int64(n.CompareBit) <= prev {
			return n.Leaf, n.Leaf >= 0
		}
		prev = int64(n.CompareBit)
		if k.Bit(n.CompareBit) != 0 {
			next = n.Right
		} else {
			next = n.Left
		}
	}
	return -1, false
}

// FromRecords rebuilds the node array from an on-disk node table, placing
// the sentinel root back at index 0.
func FromRecords(records []format.Node) []Node {
	nodes := make([]Node, 0, len(records)+1)
	nodes = append(nodes, Node{CompareBit: MaxBit, Right: 1, Leaf: -1})
	for _, r := range records {
		nodes = append(nodes, Node{
			CompareBit: r.CompareBit,
			Left:       r.Left,
			Right:      r.Right,
			Leaf:       int(r.ID),
		})
	}
	return nodes
}

// Records converts a built node array into node-table records, dropping the
// sentinel root. A node's id is the index of the key it carries.
func Records(nodes []Node) []format.Node {
	records := make([]format.Node, 0, len(nodes)-1)
	for _, n := range nodes[1:] {
		records = append(records, format.Node{
			CompareBit: n.CompareBit,
			ID:         uint32(n.Leaf), //nolint:gosec // leaf indexes a key slice bounded by MaxEntries
			Left:       n.Left,
			Right:      n.Right,
		})
	}
	return records
}
