package format

import (
	"fmt"
	"io"
)

// WriteHeader writes the header followed by the sentinel root node record.
func WriteHeader(w io.Writer, h Header) error {
	var buf [HeaderSize + SeparatorSize]byte
	copy(buf[:4], h.Magic[:])
	le.PutUint32(buf[4:], h.FileEntryCount)
	le.PutUint32(buf[8:], h.FileNameCount)
	le.PutUint32(buf[12:], h.DataEntryCount)
	le.PutUint64(buf[16:], h.DataStart)
	le.PutUint64(buf[24:], h.TotalSize)
	copy(buf[HeaderSize:], Separator[:])
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("mvgl: write header: %w", err)
	}
	return nil
}

// WriteNodes writes the node table followed by the reserved block.
func WriteNodes(w io.Writer, nodes []Node) error {
	var buf [NodeRecordSize]byte
	for i, n := range nodes {
		le.PutUint32(buf[0:], n.CompareBit)
		le.PutUint32(buf[4:], n.ID)
		le.PutUint32(buf[8:], n.Left)
		le.PutUint32(buf[12:], n.Right)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("mvgl: write node record %d: %w", i, err)
		}
	}
	var reserved [ReservedSize]byte
	if _, err := w.Write(reserved[:]); err != nil {
		return fmt.Errorf("mvgl: write reserved block: %w", err)
	}
	return nil
}

// WriteNames writes one name record per key.
func WriteNames(w io.Writer, keys []Key) error {
	var buf [NameRecordSize]byte
	for i, k := range keys {
		clear(buf[:])
		k.encodeName(buf[:])
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("mvgl: write name record %d: %w", i, err)
		}
	}
	return nil
}

// WriteInfos writes the offset/size table. Infos must be in id order.
func WriteInfos(w io.Writer, infos []Info) error {
	var buf [InfoRecordSize]byte
	for i, info := range infos {
		le.PutUint64(buf[0:], info.Offset)
		le.PutUint64(buf[8:], info.Size)
		le.PutUint64(buf[16:], info.CompressedSize)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("mvgl: write info record %d: %w", i, err)
		}
	}
	return nil
}

// PutUint64 encodes v the way every u64 of the layout is stored.
func PutUint64(b []byte, v uint64) {
	le.PutUint64(b, v)
}
