// Package batch extracts archive entries into a sink over a bounded pool of
// workers.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/thltools/mvgl/internal/codec"
	"github.com/thltools/mvgl/internal/sizing"
)

// ProgressFunc is called after each entry is written with the running
// compressed byte count. It may be called from several goroutines.
type ProgressFunc func(entry *Entry, bytesDone, bytesTotal uint64, filesDone, filesTotal int)

// Processor reads, decompresses and writes entries.
type Processor struct {
	source   Source
	workers  int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	progress ProgressFunc
	logger   *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers for parallel processing.
// Values < 0 force serial processing in entry order. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithProgress sets a callback invoked after each written entry.
func WithProgress(fn ProgressFunc) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new batch processor reading from source.
func NewProcessor(source Source, opts ...ProcessorOption) *Processor {
	p := &Processor{source: source}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the shared counters of one Process call.
type run struct {
	bytesTotal uint64
	filesTotal int
	bytesDone  atomic.Uint64
	filesDone  atomic.Int64
	fallbacks  atomic.Int64
}

// Process reads and processes entries, writing results to the sink.
//
// Entries are filtered through sink.ShouldProcess first; skipped entries are
// never read. Each remaining entry is read from the source, decompressed
// (falling back to the stored bytes when it does not decode) and written to
// the sink.
//
// Processing stops on the first error encountered.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) (ProcessStats, error) {
	var stats ProcessStats

	toProcess := make([]*Entry, 0, len(entries))
	var total uint64
	for _, entry := range entries {
		if !sink.ShouldProcess(entry) {
			stats.Skipped++
			p.log().Debug("skipping entry", "path", entry.Path)
			continue
		}
		next, ok := sizing.AddUint64(total, entry.CompressedSize)
		if !ok {
			next = ^uint64(0)
		}
		total = next
		toProcess = append(toProcess, entry)
	}
	stats.BytesTotal = total
	if len(toProcess) == 0 {
		return stats, nil
	}

	r := &run{bytesTotal: total, filesTotal: len(toProcess)}
	workers := p.workerCount(len(toProcess))
	p.log().Debug("batch processing", "entries", len(toProcess), "skipped", stats.Skipped, "workers", workers)

	var err error
	if workers < 2 {
		err = p.processSerial(ctx, toProcess, sink, r)
	} else {
		err = p.processParallel(ctx, toProcess, sink, r, workers)
	}

	stats.Processed = int(r.filesDone.Load())
	stats.Fallbacks = int(r.fallbacks.Load())
	stats.BytesDone = r.bytesDone.Load()
	return stats, err
}

// processSerial processes entries one at a time in order.
func (p *Processor) processSerial(ctx context.Context, entries []*Entry, sink Sink, r *run) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processEntry(entry, sink, r); err != nil {
			return err
		}
	}
	return nil
}

// processParallel processes entries over a bounded pool. The first error
// cancels the remaining work.
func (p *Processor) processParallel(ctx context.Context, entries []*Entry, sink Sink, r *run, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return p.processEntry(entry, sink, r)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// processEntry reads, decompresses and writes a single entry.
func (p *Processor) processEntry(entry *Entry, sink Sink, r *run) error {
	raw, err := p.source.ReadEntry(entry)
	if err != nil {
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}

	content, ok := codec.DecompressOrRaw(raw, entry.Size)
	if !ok {
		r.fallbacks.Add(1)
		p.log().Debug("entry did not decompress, writing stored bytes",
			"path", entry.Path, "size", entry.Size, "compressed", entry.CompressedSize)
	}

	w, err := sink.Writer(entry)
	if err != nil {
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}
	if err := writeAll(w, content); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("batch: %s: commit: %w", entry.Path, err)
	}

	done := r.bytesDone.Add(entry.CompressedSize)
	files := int(r.filesDone.Add(1))
	if p.progress != nil {
		p.progress(entry, done, r.bytesTotal, files, r.filesTotal)
	}
	return nil
}

// workerCount determines the number of workers to use for n entries.
func (p *Processor) workerCount(n int) int {
	if n < 2 || p.workers < 0 {
		return 1
	}
	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return min(workers, n)
}

// writeAll writes all data to w, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
