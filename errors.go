package mvgl

import (
	"errors"

	"github.com/thltools/mvgl/internal/codec"
	"github.com/thltools/mvgl/internal/format"
	"github.com/thltools/mvgl/internal/platform"
	"github.com/thltools/mvgl/internal/trie"
)

// Sentinel errors.
var (
	// ErrMalformedHeader is returned when the magic, separator or node table
	// does not match the MDB1 layout.
	ErrMalformedHeader = format.ErrMalformedHeader

	// ErrDecompression is returned when an entry does not decode. Extraction
	// never fails with it; such entries are written as stored.
	ErrDecompression = codec.ErrDecompression

	// ErrExtensionTooLong is returned when a file extension does not fit the
	// 4-byte extension field.
	ErrExtensionTooLong = format.ErrExtensionTooLong

	// ErrNameTooLong is returned when a path does not fit in a name record.
	ErrNameTooLong = format.ErrNameTooLong

	// ErrInvalidName is returned for paths the name table cannot represent.
	ErrInvalidName = format.ErrInvalidName

	// ErrDuplicatePath is returned when two source files map to the same
	// stored path.
	ErrDuplicatePath = trie.ErrDuplicateKey

	// ErrSymlink is returned when a symlink is encountered where not allowed.
	ErrSymlink = platform.ErrSymlink

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("mvgl: too many files")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("mvgl: size overflow")
)
