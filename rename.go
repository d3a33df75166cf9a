package mvgl

import "strings"

// Extensions swapped by image renaming. Archives store textures as "img";
// external tools expect "dds".
const (
	storedImageExt   = ".img"
	externalImageExt = ".dds"
)

// externalName maps a stored path to the name written on extraction.
func externalName(p string) string {
	if stem, ok := strings.CutSuffix(p, storedImageExt); ok && hasStem(stem) {
		return stem + externalImageExt
	}
	return p
}

// storedName maps a source path to the name stored by the packer.
func storedName(p string) string {
	if stem, ok := strings.CutSuffix(p, externalImageExt); ok && hasStem(stem) {
		return stem + storedImageExt
	}
	return p
}

// hasStem reports whether stem leaves a non-empty base name, so that a
// file literally named ".img" is not treated as an extension.
func hasStem(stem string) bool {
	return stem != "" && !strings.HasSuffix(stem, "/")
}
