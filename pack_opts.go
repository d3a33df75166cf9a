package mvgl

import (
	"log/slog"

	"github.com/thltools/mvgl/internal/format"
)

// DefaultMaxFiles is the largest number of files an archive can hold.
const DefaultMaxFiles = format.MaxEntries

// packConfig holds configuration for packing.
type packConfig struct {
	renameImages bool
	maxFiles     int
	progress     ProgressFunc
	logger       *slog.Logger

	// exclude holds slash-separated source paths left out of the walk.
	exclude map[string]struct{}
}

// PackOption configures packing.
type PackOption func(*packConfig)

// PackWithRenameImages stores source files named ".dds" under a ".img"
// name, the inverse of ExtractWithRenameImages. Content is not touched.
func PackWithRenameImages(enabled bool) PackOption {
	return func(cfg *packConfig) {
		cfg.renameImages = enabled
	}
}

// PackWithMaxFiles limits the number of files included in the archive.
// Values <= 0 or above DefaultMaxFiles use DefaultMaxFiles.
func PackWithMaxFiles(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.maxFiles = n
	}
}

// PackWithProgress sets a callback to receive progress updates.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}

// PackWithLogger sets the logger for packing.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}

// packExcluding leaves the given slash-separated source paths out of the
// archive.
func packExcluding(paths ...string) PackOption {
	return func(cfg *packConfig) {
		if cfg.exclude == nil {
			cfg.exclude = make(map[string]struct{}, len(paths))
		}
		for _, p := range paths {
			cfg.exclude[p] = struct{}{}
		}
	}
}
