package mvgl

import (
	"context"
	"io"
	"io/fs"
	"log/slog"

	"github.com/thltools/mvgl/internal/batch"
)

// ExtractStats summarizes an extraction.
type ExtractStats struct {
	// Extracted is the number of files written.
	Extracted int

	// Skipped is the number of entries not written, because the filter did
	// not match or the destination already existed.
	Skipped int

	// Fallbacks is the number of entries written as stored because they
	// did not decompress.
	Fallbacks int

	// BytesTotal is the compressed size of all entries selected for writing.
	BytesTotal uint64

	// BytesDone is the compressed size of all entries written.
	BytesDone uint64
}

// Extract parses the archive in r and writes its entries below dest.
//
// A stream that is not an MDB1 archive fails before anything is created.
// See Archive.ExtractTo for the extraction rules.
func Extract(ctx context.Context, r io.ReadSeeker, dest string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := Open(r, WithLogger(cfg.logger))
	if err != nil {
		return ExtractStats{}, err
	}
	return a.extract(ctx, dest, &cfg)
}

// ExtractTo writes the archive's entries below dest, creating it if needed.
//
// Entries are skipped when the filter does not match their stored path, or
// when overwrite is disabled and the destination file exists; skipped
// entries are never read. Entries that do not decompress are written as
// stored. Entry paths that would escape dest are rejected with an
// *fs.PathError before anything is written.
//
// The context is checked between entries. The first I/O error stops the
// remaining workers.
func (a *Archive) ExtractTo(ctx context.Context, dest string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{logger: a.logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	return a.extract(ctx, dest, &cfg)
}

func (a *Archive) extract(ctx context.Context, dest string, cfg *extractConfig) (ExtractStats, error) {
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	rename := func(p string) string { return p }
	if cfg.renameImages {
		rename = externalName
	}

	var stats ExtractStats
	selected := make([]*batch.Entry, 0, len(a.entries))
	for i := range a.entries {
		e := &a.entries[i]
		if cfg.filter != nil && !cfg.filter.MatchString(e.Path) {
			stats.Skipped++
			continue
		}
		if target := rename(e.Path); !fs.ValidPath(target) || target == "." {
			return stats, &fs.PathError{Op: "extract", Path: e.Path, Err: fs.ErrInvalid}
		}
		selected = append(selected, &batch.Entry{
			ID:             e.ID,
			Path:           e.Path,
			Size:           e.Size,
			CompressedSize: e.CompressedSize,
		})
	}

	log.Info("extracting archive",
		"dest", dest,
		"entries", len(a.entries),
		"selected", len(selected),
		"rename_images", cfg.renameImages,
		"overwrite", cfg.overwrite,
		"direct", cfg.direct)

	sink, err := batch.NewFileSink(dest,
		batch.WithOverwrite(cfg.overwrite),
		batch.WithDirectWrites(cfg.direct),
		batch.WithRename(rename))
	if err != nil {
		return stats, err
	}
	defer sink.Close()

	procOpts := []batch.ProcessorOption{
		batch.WithWorkers(cfg.workers),
		batch.WithProcessorLogger(log),
	}
	if cfg.progress != nil {
		progress := cfg.progress
		procOpts = append(procOpts, batch.WithProgress(func(e *batch.Entry, done, total uint64, files, filesTotal int) {
			progress(ProgressEvent{
				Stage:      StageExtracting,
				Path:       e.Path,
				BytesDone:  done,
				BytesTotal: total,
				FilesDone:  files,
				FilesTotal: filesTotal,
			})
		}))
	}

	ps, err := batch.NewProcessor(archiveSource{a}, procOpts...).Process(ctx, selected, sink)
	stats.Extracted = ps.Processed
	stats.Skipped += ps.Skipped
	stats.Fallbacks = ps.Fallbacks
	stats.BytesTotal = ps.BytesTotal
	stats.BytesDone = ps.BytesDone
	if err != nil {
		return stats, err
	}

	log.Info("extraction complete",
		"extracted", stats.Extracted,
		"skipped", stats.Skipped,
		"fallbacks", stats.Fallbacks,
		"bytes", stats.BytesDone)
	return stats, nil
}

// archiveSource reads entry data for the batch processor.
type archiveSource struct {
	a *Archive
}

func (s archiveSource) ReadEntry(e *batch.Entry) ([]byte, error) {
	return s.a.src.read(s.a.entries[e.ID].info())
}
