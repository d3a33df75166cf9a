package mvgl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// PackFile packs srcDir into the file at destPath.
//
// The archive is written to a temporary file in the destination directory
// and renamed over destPath once complete, so destPath is either the
// previous file or a complete archive. Parent directories are created as
// needed.
func PackFile(ctx context.Context, srcDir, destPath string, opts ...PackOption) (PackStats, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return PackStats{}, fmt.Errorf("create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mvgl-*")
	if err != nil {
		return PackStats{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// The archive being written must not pack itself when it lands inside
	// srcDir.
	opts = append(slices.Clip(opts), packExcluding(pathsBelow(srcDir, tmpPath, destPath)...))
	stats, err := Pack(ctx, srcDir, tmp, opts...)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return stats, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return stats, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return stats, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return stats, fmt.Errorf("rename to %s: %w", destPath, err)
	}
	return stats, nil
}

// pathsBelow returns the slash-separated paths relative to dir of those
// targets that lie inside it.
func pathsBelow(dir string, targets ...string) []string {
	base, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	var rels []string
	for _, target := range targets {
		abs, err := filepath.Abs(target)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil || rel == "." || !filepath.IsLocal(rel) {
			continue
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}
