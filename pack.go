package mvgl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/thltools/mvgl/internal/codec"
	"github.com/thltools/mvgl/internal/format"
	"github.com/thltools/mvgl/internal/platform"
	"github.com/thltools/mvgl/internal/sizing"
	"github.com/thltools/mvgl/internal/trie"
)

// PackStats summarizes a pack operation.
type PackStats struct {
	// Files is the number of files stored.
	Files int

	// BytesIn is the total size of the source files.
	BytesIn uint64

	// BytesOut is the total size of the archive written.
	BytesOut uint64
}

// Pack builds an archive from the regular files below srcDir and writes it
// at the start of w.
//
// Files are collected in lexical walk order; that order gives the entry
// ids and the order of the data segment. Symbolic links and other
// non-regular files are skipped. The index is written first with a zeroed
// offset/size table; once every file is compressed, the total size and the
// table are patched in place.
//
// Pack builds the entire index in memory and holds at most one source file
// in memory at a time. The context is checked between files.
func Pack(ctx context.Context, srcDir string, w io.WriteSeeker, opts ...PackOption) (PackStats, error) {
	cfg := packConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, err := os.OpenRoot(srcDir)
	if err != nil {
		return PackStats{}, err
	}
	defer root.Close()

	p := &packer{cfg: cfg, root: root}
	p.log().Info("packing archive", "dir", srcDir, "rename_images", cfg.renameImages)

	files, err := p.collect(ctx)
	if err != nil {
		return PackStats{}, err
	}
	stats, err := p.write(ctx, files, w)
	if err != nil {
		return stats, err
	}

	p.log().Info("archive packed",
		"files", stats.Files,
		"bytes_in", stats.BytesIn,
		"bytes_out", stats.BytesOut)
	return stats, nil
}

// sourceFile is one file scheduled for packing.
type sourceFile struct {
	// path is the slash-separated path below the source root, before
	// renaming.
	path string
	key  format.Key
}

// packer holds state for one Pack call.
type packer struct {
	cfg  packConfig
	root *os.Root
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.cfg.logger
}

// reportProgress sends a progress event if a callback is configured.
func (p *packer) reportProgress(stage ProgressStage, path string, bytesDone, bytesTotal uint64, filesDone, filesTotal int) {
	if p.cfg.progress == nil {
		return
	}
	p.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		BytesTotal: bytesTotal,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

func (p *packer) maxFiles() uint64 {
	limit := uint64(format.MaxEntries)
	if p.cfg.maxFiles > 0 && uint64(p.cfg.maxFiles) < limit {
		limit = uint64(p.cfg.maxFiles)
	}
	return limit
}

// collect walks the source tree and builds the key of every regular file.
func (p *packer) collect(ctx context.Context) ([]sourceFile, error) {
	files := make([]sourceFile, 0, 1024)
	limit := p.maxFiles()

	p.reportProgress(StageEnumerating, "", 0, 0, 0, 0)

	err := fs.WalkDir(p.root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch kind := platform.Classify(d); kind {
		case platform.KindDir:
			return nil
		case platform.KindRegular:
			if _, skip := p.cfg.exclude[path]; skip {
				p.log().Debug("skipped output file", "path", path)
				return nil
			}
		default:
			p.log().Debug("skipped non-regular file", "path", path, "kind", kind.String())
			return nil
		}

		if uint64(len(files)) >= limit {
			return fmt.Errorf("%w: more than %d", ErrTooManyFiles, limit)
		}

		stored := path
		if p.cfg.renameImages {
			stored = storedName(path)
		}
		key, err := format.NewKey(stored)
		if err != nil {
			return fmt.Errorf("mvgl: pack %s: %w", path, err)
		}
		files = append(files, sourceFile{path: path, key: key})
		p.reportProgress(StageEnumerating, path, 0, 0, len(files), 0)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log().Debug("collected files", "count", len(files))
	return files, nil
}

// write emits the archive for files to w.
func (p *packer) write(ctx context.Context, files []sourceFile, w io.WriteSeeker) (PackStats, error) {
	var stats PackStats
	n := len(files)

	p.reportProgress(StageIndexing, "", 0, 0, 0, n)
	keys := make([]format.Key, n)
	for i, f := range files {
		keys[i] = f.key
	}
	nodes, err := trie.Build(keys)
	if err != nil {
		return stats, err
	}
	records := trie.Records(nodes)
	nodeKeys := make([]format.Key, len(records))
	for i, r := range records {
		nodeKeys[i] = keys[r.ID]
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return stats, fmt.Errorf("mvgl: seek to start: %w", err)
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	cw := &sizing.CountingWriter{W: bw}

	header := format.NewHeader(n)
	if err := format.WriteHeader(cw, header); err != nil {
		return stats, err
	}
	if err := format.WriteNodes(cw, records); err != nil {
		return stats, err
	}
	if err := format.WriteNames(cw, nodeKeys); err != nil {
		return stats, err
	}
	infos := make([]format.Info, n)
	if err := format.WriteInfos(cw, infos); err != nil {
		return stats, err
	}
	if cw.N != header.DataStart {
		return stats, fmt.Errorf("mvgl: index ends at %d, want %d", cw.N, header.DataStart)
	}

	var offset uint64
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		content, err := p.readSource(f.path)
		if err != nil {
			return stats, err
		}
		comp, err := codec.Compress(content)
		if err != nil {
			return stats, fmt.Errorf("mvgl: pack %s: %w", f.path, err)
		}
		if _, err := cw.Write(comp); err != nil {
			return stats, fmt.Errorf("mvgl: write data of %s: %w", f.path, err)
		}

		infos[i] = format.Info{
			Offset:         offset,
			Size:           uint64(len(content)),
			CompressedSize: uint64(len(comp)),
		}
		next, ok := sizing.AddUint64(offset, uint64(len(comp)))
		if !ok {
			return stats, ErrSizeOverflow
		}
		offset = next
		stats.Files++
		stats.BytesIn += uint64(len(content))
		p.reportProgress(StageCompressing, f.path, stats.BytesIn, 0, stats.Files, n)
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("mvgl: flush archive: %w", err)
	}
	total, ok := sizing.AddUint64(header.DataStart, offset)
	if !ok {
		return stats, ErrSizeOverflow
	}
	if err := p.patch(w, n, total, infos); err != nil {
		return stats, err
	}
	stats.BytesOut = total
	return stats, nil
}

// readSource reads one source file without following symbolic links.
func (p *packer) readSource(path string) ([]byte, error) {
	f, err := platform.OpenFileNoFollow(p.root, filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("mvgl: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mvgl: stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("mvgl: not a regular file: %s", path)
	}
	size, err := sizing.ToInt(uint64(info.Size()), ErrSizeOverflow) //nolint:gosec // regular file sizes are non-negative
	if err != nil {
		return nil, fmt.Errorf("mvgl: read %s: %w", path, err)
	}
	content := make([]byte, size)
	if _, err := io.ReadFull(f, content); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("mvgl: read %s: %w", path, err)
	}
	return content, nil
}

// patch writes the final total size and offset/size table, leaving w
// positioned at the end of the archive.
func (p *packer) patch(w io.WriteSeeker, n int, total uint64, infos []format.Info) error {
	var buf [8]byte
	format.PutUint64(buf[:], total)
	if _, err := w.Seek(format.TotalSizeOffset, io.SeekStart); err != nil {
		return fmt.Errorf("mvgl: seek to total size: %w", err)
	}
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("mvgl: write total size: %w", err)
	}

	infoStart, err := sizing.ToInt64(format.InfoTableOffset(n), ErrSizeOverflow)
	if err != nil {
		return err
	}
	if _, err := w.Seek(infoStart, io.SeekStart); err != nil {
		return fmt.Errorf("mvgl: seek to info table: %w", err)
	}
	bw := bufio.NewWriter(w)
	if err := format.WriteInfos(bw, infos); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("mvgl: flush info table: %w", err)
	}

	end, err := sizing.ToInt64(total, ErrSizeOverflow)
	if err != nil {
		return err
	}
	if _, err := w.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("mvgl: seek to end: %w", err)
	}
	return nil
}
