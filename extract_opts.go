package mvgl

import (
	"log/slog"
	"regexp"
)

// extractConfig holds configuration for extraction.
type extractConfig struct {
	filter       *regexp.Regexp
	renameImages bool
	overwrite    bool
	direct       bool
	workers      int
	progress     ProgressFunc
	logger       *slog.Logger
}

// ExtractOption configures extraction.
type ExtractOption func(*extractConfig)

// ExtractWithFilter limits extraction to entries whose stored path matches re.
// A nil re extracts everything.
func ExtractWithFilter(re *regexp.Regexp) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.filter = re
	}
}

// ExtractWithRenameImages writes entries stored as ".img" under a ".dds"
// name. Content is not touched.
func ExtractWithRenameImages(enabled bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.renameImages = enabled
	}
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, entries whose destination exists are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithDirectWrites writes each file straight to its final path
// instead of through a temporary file. An interrupted extraction can then
// leave a partial file behind.
func ExtractWithDirectWrites(enabled bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.direct = enabled
	}
}

// ExtractWithWorkers sets the number of workers for parallel extraction.
// Values < 0 force serial extraction in id order. Zero uses GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.workers = n
	}
}

// ExtractWithProgress sets a callback to receive progress updates.
// The callback receives events for each extracted file.
// The callback may be invoked concurrently and must be safe for concurrent use.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.progress = fn
	}
}

// ExtractWithLogger sets the logger for extraction.
// If not set, logging is disabled.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.logger = logger
	}
}
