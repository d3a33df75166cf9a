package mvgl

import (
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ManifestEntry describes one entry in a Manifest.
type ManifestEntry struct {
	ID             int
	Path           string
	Size           uint64
	CompressedSize uint64

	// Digest is the sha256 digest of the decompressed content, empty
	// unless digests were requested.
	Digest digest.Digest

	// Stored reports whether the entry did not decompress and its digest
	// covers the stored bytes.
	Stored bool
}

// Manifest lists an archive's entries in id order.
type Manifest struct {
	Header  Header
	Entries []ManifestEntry
}

// Manifest describes every entry of the archive. With withDigests set,
// every entry is read and decompressed to compute its content digest.
func (a *Archive) Manifest(withDigests bool) (*Manifest, error) {
	m := &Manifest{
		Header:  a.header,
		Entries: make([]ManifestEntry, 0, len(a.entries)),
	}
	for h := range a.Entries() {
		e := h.Entry()
		me := ManifestEntry{
			ID:             e.ID,
			Path:           e.Path,
			Size:           e.Size,
			CompressedSize: e.CompressedSize,
		}
		if withDigests {
			data, decoded, err := h.read()
			if err != nil {
				return nil, fmt.Errorf("mvgl: manifest %s: %w", e.Path, err)
			}
			me.Digest = digest.FromBytes(data)
			me.Stored = !decoded
		}
		m.Entries = append(m.Entries, me)
	}
	return m, nil
}

// Entry returns the manifest entry stored at path.
func (m *Manifest) Entry(path string) (ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}
