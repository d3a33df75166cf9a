package batch

import "io"

// Entry is one archive entry scheduled for extraction.
type Entry struct {
	// ID is the dense entry id.
	ID int

	// Path is the stored forward-slash path.
	Path string

	// Size is the decompressed size.
	Size uint64

	// CompressedSize is the number of stored bytes.
	CompressedSize uint64
}

// Source reads the stored bytes of an entry. Implementations must be safe
// for concurrent use.
type Source interface {
	ReadEntry(entry *Entry) ([]byte, error)
}

// Sink receives decompressed file content during batch processing.
//
// Implementations determine where content is written and can filter which
// entries to process.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped.
	// This allows implementations to skip existing files.
	ShouldProcess(entry *Entry) bool

	// Writer returns a writer for the entry's content.
	// The returned Committer must have Commit() called after a successful
	// write, or Discard() called on any error.
	Writer(entry *Entry) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should buffer or stage writes until Commit is called.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}
