package mvgl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"sync"

	"github.com/thltools/mvgl/internal/codec"
	"github.com/thltools/mvgl/internal/format"
	"github.com/thltools/mvgl/internal/sizing"
	"github.com/thltools/mvgl/internal/trie"
)

// Header is the fixed archive header.
type Header = format.Header

// Entry describes one file of an archive.
type Entry struct {
	// ID is the dense 0-based entry id; data is stored in id order.
	ID int

	// Path is the stored relative path using forward slashes.
	Path string

	// Offset is the position of the compressed bytes relative to the start
	// of the data segment.
	Offset uint64

	// Size is the decompressed size.
	Size uint64

	// CompressedSize is the number of stored bytes.
	CompressedSize uint64

	// CompareBit, Left and Right are the fields of the trie node that
	// carries this entry.
	CompareBit uint32
	Left       uint32
	Right      uint32
}

func (e Entry) info() format.Info {
	return format.Info{Offset: e.Offset, Size: e.Size, CompressedSize: e.CompressedSize}
}

// Archive is a parsed MDB1 archive.
//
// The index is read once by Open; entry data is read on demand from the
// underlying stream. Archive methods are safe for concurrent use: reads of
// the stream are serialized, decompression is not.
type Archive struct {
	src     *leasedSource
	header  Header
	entries []Entry      // by id
	keys    []format.Key // by id
	nodes   []trie.Node
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open parses the archive index from the start of r.
//
// r must stay valid for as long as the Archive is used. The caller keeps
// ownership of r and must not read from or seek it concurrently.
func Open(r io.ReadSeeker, opts ...Option) (*Archive, error) {
	a := &Archive{}
	for _, opt := range opts {
		opt(a)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mvgl: seek to header: %w", err)
	}
	tbl, err := format.Decode(r)
	if err != nil {
		return nil, err
	}

	n := len(tbl.Nodes)
	a.header = tbl.Header
	a.entries = make([]Entry, n)
	a.keys = make([]format.Key, n)
	for i, node := range tbl.Nodes {
		id := int(node.ID)
		info := tbl.Infos[id]
		k := tbl.Keys[i]
		a.keys[id] = k
		a.entries[id] = Entry{
			ID:             id,
			Path:           k.Path(),
			Offset:         info.Offset,
			Size:           info.Size,
			CompressedSize: info.CompressedSize,
			CompareBit:     node.CompareBit,
			Left:           node.Left,
			Right:          node.Right,
		}
	}
	a.nodes = trie.FromRecords(tbl.Nodes)

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("mvgl: seek to end: %w", err)
	}
	a.src = &leasedSource{r: r, dataStart: tbl.Header.DataStart, size: uint64(end)} //nolint:gosec // seek offsets are non-negative

	a.log().Debug("opened archive",
		"entries", n,
		"data_start", tbl.Header.DataStart,
		"total_size", tbl.Header.TotalSize)
	return a, nil
}

// Header returns the parsed header.
func (a *Archive) Header() Header {
	return a.header
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entry returns the entry with the given id.
func (a *Archive) Entry(id int) (Entry, bool) {
	if id < 0 || id >= len(a.entries) {
		return Entry{}, false
	}
	return a.entries[id], true
}

// Lookup finds an entry by its stored path with a linear scan.
func (a *Archive) Lookup(path string) (Entry, bool) {
	for i := range a.entries {
		if a.entries[i].Path == path {
			return a.entries[i], true
		}
	}
	return Entry{}, false
}

// Resolve finds an entry by walking the archive's own path trie, the way
// the game engine does.
func (a *Archive) Resolve(path string) (Entry, bool) {
	k, err := format.NewKey(path)
	if err != nil {
		return Entry{}, false
	}
	id, ok := trie.Lookup(a.nodes, k)
	if !ok || id >= len(a.keys) || a.keys[id] != k {
		return Entry{}, false
	}
	return a.entries[id], true
}

// Entries iterates over all entries in id order.
func (a *Archive) Entries() iter.Seq[*Handle] {
	return func(yield func(*Handle) bool) {
		for i := range a.entries {
			if !yield(a.handle(a.entries[i])) {
				return
			}
		}
	}
}

// ReadFile returns the decompressed content of the entry stored at path.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	e, ok := a.Lookup(path)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: path, Err: fs.ErrNotExist}
	}
	data, err := a.handle(e).Read()
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: path, Err: err}
	}
	return data, nil
}

func (a *Archive) handle(e Entry) *Handle {
	return &Handle{archive: a, entry: e}
}

// Handle gives access to the content of one entry.
type Handle struct {
	archive *Archive
	entry   Entry
}

// Entry returns the entry's metadata.
func (h *Handle) Entry() Entry {
	return h.entry
}

// ReadRaw returns the stored (compressed) bytes of the entry.
func (h *Handle) ReadRaw() ([]byte, error) {
	return h.archive.src.read(h.entry.info())
}

// Read returns the decompressed content of the entry. Entries that do not
// decode are returned as stored.
func (h *Handle) Read() ([]byte, error) {
	data, _, err := h.read()
	return data, err
}

// read is Read that also reports whether the entry decompressed.
func (h *Handle) read() (data []byte, decoded bool, err error) {
	raw, err := h.ReadRaw()
	if err != nil {
		return nil, false, err
	}
	data, decoded = codec.DecompressOrRaw(raw, h.entry.Size)
	if !decoded {
		h.archive.log().Debug("entry did not decompress, returning stored bytes", "path", h.entry.Path)
	}
	return data, decoded, nil
}

// leasedSource serializes seek+read pairs on a shared stream.
type leasedSource struct {
	mu        sync.Mutex
	r         io.ReadSeeker
	dataStart uint64
	size      uint64 // stream length at Open
}

// read returns the compressed bytes of info from the data segment. Entries
// that run past the end of the stream fail before anything is allocated.
// The lock is held only for the seek and the read.
func (s *leasedSource) read(info format.Info) ([]byte, error) {
	rel, ok := info.End()
	if !ok {
		return nil, ErrSizeOverflow
	}
	end, ok := sizing.AddUint64(s.dataStart, rel)
	if !ok {
		return nil, ErrSizeOverflow
	}
	if end > s.size {
		return nil, fmt.Errorf("mvgl: entry ends at %d, past end of archive at %d: %w",
			end, s.size, io.ErrUnexpectedEOF)
	}
	pos, err := sizing.Position(s.dataStart, info.Offset, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	size, err := sizing.ToInt(info.CompressedSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mvgl: seek to %d: %w", pos, err)
	}
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("mvgl: read %d bytes at %d: %w", size, pos, err)
	}
	return buf, nil
}
