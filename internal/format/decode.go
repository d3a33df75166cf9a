package format

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Table is the decoded index of an archive.
//
// Nodes and Keys are in node-table order; Infos are in id order. All three
// have DataEntryCount elements.
type Table struct {
	Header Header
	Nodes  []Node
	Keys   []Key
	Infos  []Info
}

// ByID returns, for every entry id, the position of its node record.
func (t *Table) ByID() []int {
	pos := make([]int, len(t.Nodes))
	for i, n := range t.Nodes {
		pos[n.ID] = i
	}
	return pos
}

// Decode reads the header and every index table from r, leaving r positioned
// somewhere past the offset/size table. No partial table is returned.
func Decode(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	t := &Table{}

	var buf [NameRecordSize]byte
	if err := readFull(br, buf[:len(Magic)], "magic", -1); err != nil {
		return nil, err
	}
	h := &t.Header
	copy(h.Magic[:], buf[:len(Magic)])
	if string(h.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrMalformedHeader, h.Magic[:])
	}
	if err := readFull(br, buf[len(Magic):HeaderSize], "header", -1); err != nil {
		return nil, err
	}
	h.FileEntryCount = le.Uint32(buf[4:])
	h.FileNameCount = le.Uint32(buf[8:])
	h.DataEntryCount = le.Uint32(buf[12:])
	h.DataStart = le.Uint64(buf[16:])
	h.TotalSize = le.Uint64(buf[24:])

	if err := readFull(br, buf[:SeparatorSize], "separator", -1); err != nil {
		return nil, err
	}
	if !bytes.Equal(buf[:SeparatorSize], Separator[:]) {
		return nil, fmt.Errorf("%w: separator % x", ErrMalformedHeader, buf[:SeparatorSize])
	}

	n := int(h.DataEntryCount)
	// Preallocation is capped so a corrupt count fails on truncation
	// instead of on allocation.
	hint := min(n, 1<<16)

	t.Nodes = make([]Node, 0, hint)
	seen := make(map[uint32]struct{}, hint)
	for i := range n {
		if err := readFull(br, buf[:NodeRecordSize], "node record", i); err != nil {
			return nil, err
		}
		node := Node{
			CompareBit: le.Uint32(buf[0:]),
			ID:         le.Uint32(buf[4:]),
			Left:       le.Uint32(buf[8:]),
			Right:      le.Uint32(buf[12:]),
		}
		if node.ID >= h.DataEntryCount {
			return nil, fmt.Errorf("%w: node record %d: id %d out of range", ErrMalformedHeader, i, node.ID)
		}
		if _, dup := seen[node.ID]; dup {
			return nil, fmt.Errorf("%w: node record %d: duplicate id %d", ErrMalformedHeader, i, node.ID)
		}
		seen[node.ID] = struct{}{}
		t.Nodes = append(t.Nodes, node)
	}

	if err := readFull(br, buf[:ReservedSize], "reserved block", -1); err != nil {
		return nil, err
	}

	t.Keys = make([]Key, 0, hint)
	for i := range n {
		if err := readFull(br, buf[:NameRecordSize], "name record", i); err != nil {
			return nil, err
		}
		t.Keys = append(t.Keys, decodeName(buf[:NameRecordSize]))
	}

	t.Infos = make([]Info, 0, hint)
	for i := range n {
		if err := readFull(br, buf[:InfoRecordSize], "info record", i); err != nil {
			return nil, err
		}
		t.Infos = append(t.Infos, Info{
			Offset:         le.Uint64(buf[0:]),
			Size:           le.Uint64(buf[8:]),
			CompressedSize: le.Uint64(buf[16:]),
		})
	}

	return t, nil
}

// readFull fills p and names the record in the error; i < 0 marks a
// record that appears only once.
func readFull(r io.Reader, p []byte, what string, i int) error {
	if _, err := io.ReadFull(r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		if i < 0 {
			return fmt.Errorf("mvgl: read %s: %w", what, err)
		}
		return fmt.Errorf("mvgl: read %s %d: %w", what, i, err)
	}
	return nil
}
