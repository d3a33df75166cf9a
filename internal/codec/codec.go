// Package codec compresses and decompresses archive entries.
//
// Each entry is a single raw LZ4 block with no frame and no embedded length;
// the decompressed size comes from the offset/size table.
package codec

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/thltools/mvgl/internal/sizing"
)

// ErrDecompression is returned when a block does not decode to the
// expected size.
var ErrDecompression = errors.New("mvgl: decompression failed")

// Level is the LZ4 high-compression level used for every entry.
const Level = lz4.Level9

// Compress encodes src as one LZ4 block.
func Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlockHC(src, dst, Level, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("mvgl: compress block: %w", err)
	}
	if n == 0 && len(src) > 0 {
		return nil, fmt.Errorf("mvgl: compress block: no output for %d bytes", len(src))
	}
	return dst[:n], nil
}

// MaxDecompressedSize returns the largest size an LZ4 block of n bytes can
// decode to.
func MaxDecompressedSize(n int) uint64 {
	return uint64(n)*255 + 16 //nolint:gosec // n is a slice length
}

// Decompress decodes src into exactly size bytes. An empty entry decodes to
// an empty slice whatever its stored bytes. A size that src cannot expand to
// fails before anything is allocated.
func Decompress(src []byte, size uint64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if size > MaxDecompressedSize(len(src)) {
		return nil, fmt.Errorf("%w: %d bytes cannot decode to %d", ErrDecompression, len(src), size)
	}
	n, err := sizing.ToInt(size, ErrDecompression)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, n)
	got, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	if got != n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrDecompression, got, size)
	}
	return dst, nil
}

// DecompressOrRaw decodes src and falls back to src itself when it does not
// decode. ok reports whether decompression succeeded.
func DecompressOrRaw(src []byte, size uint64) (out []byte, ok bool) {
	out, err := Decompress(src, size)
	if err != nil {
		return src, false
	}
	return out, true
}
