package format

import (
	"bytes"
	"fmt"
	"path"
	"strings"
)

// Key is the sliced form of an entry path: a space-padded 4-byte extension
// followed by the extension-stripped stem using backslash separators.
//
// Keys are the bit strings the lookup trie discriminates on. Bytes past the
// end of the stem read as zero.
type Key struct {
	Ext  [ExtensionSize]byte
	Stem string
}

// NewKey slices a forward-slash relative path into a Key.
//
// The extension is the text after the last dot of the final path element.
// Names starting with a dot and names ending in a dot keep their stem as is.
func NewKey(p string) (Key, error) {
	if p == "" || strings.ContainsAny(p, "\\\x00") {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, p)
	}

	stem, ext := splitExt(p)
	if len(ext) > ExtensionSize {
		return Key{}, fmt.Errorf("%w: %q", ErrExtensionTooLong, p)
	}
	if strings.ContainsRune(ext, ' ') {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, p)
	}
	if len(stem) > MaxStemSize {
		return Key{}, fmt.Errorf("%w: %q (%d bytes)", ErrNameTooLong, p, len(stem))
	}

	k := Key{Stem: strings.ReplaceAll(stem, "/", "\\")}
	copy(k.Ext[:], "    ")
	copy(k.Ext[:], ext)
	return k, nil
}

func splitExt(p string) (stem, ext string) {
	base := path.Base(p)
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || dot == len(base)-1 {
		return p, ""
	}
	ext = base[dot+1:]
	return p[:len(p)-len(ext)-1], ext
}

// Extension returns the extension without padding.
func (k Key) Extension() string {
	end := bytes.IndexAny(k.Ext[:], " \x00")
	if end < 0 {
		end = len(k.Ext)
	}
	return string(k.Ext[:end])
}

// Path returns the forward-slash relative path of the key.
func (k Key) Path() string {
	stem := strings.ReplaceAll(k.Stem, "\\", "/")
	if ext := k.Extension(); ext != "" {
		return stem + "." + ext
	}
	return stem
}

// String renders the key as stored: the padded extension then the stem.
func (k Key) String() string {
	return string(k.Ext[:]) + k.Stem
}

// Len returns the number of declared bytes, excluding the implicit NUL.
func (k Key) Len() int {
	return ExtensionSize + len(k.Stem)
}

// Byte returns the i-th byte of the key, or zero past its end.
func (k Key) Byte(i int) byte {
	switch {
	case i < ExtensionSize:
		return k.Ext[i]
	case i-ExtensionSize < len(k.Stem):
		return k.Stem[i-ExtensionSize]
	default:
		return 0
	}
}

// Bit returns bit i of the key, least significant bit of each byte first.
func (k Key) Bit(i uint32) uint8 {
	return (k.Byte(int(i>>3)) >> (i & 7)) & 1
}

// Bits returns the number of bits a lookup may need to test to tell this
// key apart from any other, including the implicit trailing NUL byte.
func (k Key) Bits() uint32 {
	return uint32(k.Len()+1) * 8 //nolint:gosec // bounded by NameRecordSize
}

// encodeName writes k into a zeroed name record.
func (k Key) encodeName(rec []byte) {
	copy(rec[:ExtensionSize], k.Ext[:])
	copy(rec[ExtensionSize:], k.Stem)
}

// decodeName reads a name record. The stem ends at the first NUL.
func decodeName(rec []byte) Key {
	var k Key
	copy(k.Ext[:], rec[:ExtensionSize])
	stem := rec[ExtensionSize:]
	if end := bytes.IndexByte(stem, 0); end >= 0 {
		stem = stem[:end]
	}
	k.Stem = string(stem)
	return k
}
