// Package format implements the fixed binary layout of MDB1 archives.
//
// An archive starts with a 48-byte header (including the sentinel root node
// record), followed by the node table, a reserved block, the name table, the
// offset/size table and finally the compressed data segment:
//
//	magic "MDB1"
//	u32 file_entry_count, u32 file_name_count, u32 data_entry_count
//	u64 data_start, u64 total_size
//	16-byte sentinel root node
//	data_entry_count x {u32 compare_bit, u32 id, u32 left, u32 right}
//	0x80 reserved bytes
//	data_entry_count x 0x80-byte name records (node order)
//	data_entry_count x {u64 offset, u64 size, u64 compressed_size} (id order)
//	compressed data
//
// All integers are little-endian.
package format

import (
	"encoding/binary"
	"errors"
)

// Magic identifies an MDB1 archive.
const Magic = "MDB1"

// Record sizes and fixed offsets of the layout.
const (
	HeaderSize      = 32 // magic + counts + data_start + total_size
	SeparatorSize   = 16 // sentinel root node record
	NodeRecordSize  = 16
	ReservedSize    = 0x80
	NameRecordSize  = 0x80
	InfoRecordSize  = 24
	ExtensionSize   = 4
	MaxStemSize     = NameRecordSize - ExtensionSize
	TotalSizeOffset = 0x18

	// RootCompareBit is the compare bit of the sentinel root node.
	RootCompareBit = 0xFFFF_FFFF

	// MaxEntries is the largest entry count the u32 header fields can
	// describe once the sentinel root is accounted for.
	MaxEntries = 0xFFFF_FFFE
)

// Separator is the on-disk sentinel root node: compare bit and id are
// all-ones, left points at itself and right at the first real node.
var Separator = [SeparatorSize]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
}

// Sentinel errors.
var (
	// ErrMalformedHeader is returned when the magic, separator or node table
	// does not match the MDB1 layout.
	ErrMalformedHeader = errors.New("mvgl: malformed header")

	// ErrExtensionTooLong is returned when a file extension does not fit the
	// 4-byte extension field.
	ErrExtensionTooLong = errors.New("mvgl: extension longer than 4 bytes")

	// ErrNameTooLong is returned when a path does not fit in a name record.
	ErrNameTooLong = errors.New("mvgl: name does not fit in a name record")

	// ErrInvalidName is returned for paths the name table cannot represent.
	ErrInvalidName = errors.New("mvgl: invalid name")
)

var le = binary.LittleEndian

// Header is the fixed archive header.
type Header struct {
	Magic          [4]byte
	FileEntryCount uint32
	FileNameCount  uint32
	DataEntryCount uint32
	DataStart      uint64
	TotalSize      uint64
}

// NewHeader returns the header the packer writes for n entries. TotalSize is
// left zero and patched once the data segment is complete.
func NewHeader(n int) Header {
	h := Header{
		FileEntryCount: uint32(n) + 1, //nolint:gosec // n is bounded by MaxEntries
		FileNameCount:  uint32(n) + 1, //nolint:gosec // n is bounded by MaxEntries
		DataEntryCount: uint32(n),     //nolint:gosec // n is bounded by MaxEntries
		DataStart:      DataStart(n),
	}
	copy(h.Magic[:], Magic)
	return h
}

// Node is one record of the node table.
//
// Left and Right index the full node array, where 0 is the sentinel root and
// record i of the table is node i+1.
type Node struct {
	CompareBit uint32
	ID         uint32
	Left       uint32
	Right      uint32
}

// Info locates an entry's compressed bytes relative to DataStart.
type Info struct {
	Offset         uint64
	Size           uint64
	CompressedSize uint64
}

// End returns the offset one past the entry's compressed bytes. ok is false
// when the sum overflows.
func (i Info) End() (end uint64, ok bool) {
	end = i.Offset + i.CompressedSize
	return end, end >= i.Offset
}

// DataStart returns the data segment offset of an archive with n entries.
func DataStart(n int) uint64 {
	perEntry := uint64(NodeRecordSize + InfoRecordSize + NameRecordSize)
	return uint64(n)*perEntry + HeaderSize + SeparatorSize + ReservedSize //nolint:gosec // n is non-negative
}

// NodeTableOffset returns the offset of the first node record.
func NodeTableOffset() uint64 {
	return HeaderSize + SeparatorSize
}

// NameTableOffset returns the offset of the first name record.
func NameTableOffset(n int) uint64 {
	return NodeTableOffset() + uint64(n)*NodeRecordSize + ReservedSize //nolint:gosec // n is non-negative
}

// InfoTableOffset returns the offset of the first offset/size record.
func InfoTableOffset(n int) uint64 {
	return DataStart(n) - uint64(n)*InfoRecordSize //nolint:gosec // n is non-negative
}
