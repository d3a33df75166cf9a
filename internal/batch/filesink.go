package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// FileSink writes entries below a destination directory.
//
// Files are written to a temporary file in the same directory and renamed
// to the final path on Commit, so partially written files are never visible
// at the final path. Each parent directory is created once per sink.
type FileSink struct {
	destDir     string
	root        *os.Root
	overwrite   bool
	directWrite bool
	rename      func(string) string

	mu   sync.Mutex
	dirs map[string]struct{}
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// WithRename maps a stored path to the path written on disk.
func WithRename(fn func(string) string) FileSinkOption {
	return func(s *FileSink) {
		s.rename = fn
	}
}

// NewFileSink creates a FileSink that writes to destDir, creating destDir
// if needed. Close releases the directory handle.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", destDir, err)
	}
	s := &FileSink{
		destDir: destDir,
		root:    root,
		dirs:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the destination directory.
func (s *FileSink) Close() error {
	return s.root.Close()
}

// Target returns the slash-separated path entry is written to, relative to
// the destination directory.
func (s *FileSink) Target(entry *Entry) string {
	if s.rename == nil {
		return entry.Path
	}
	return s.rename(entry.Path)
}

// ShouldProcess returns false if the file already exists and overwrite is
// disabled. Invalid paths are reported by Writer.
func (s *FileSink) ShouldProcess(entry *Entry) bool {
	if s.overwrite {
		return true
	}
	target := s.Target(entry)
	if !fs.ValidPath(target) {
		return true
	}
	_, err := s.root.Lstat(filepath.FromSlash(target))
	return errors.Is(err, fs.ErrNotExist)
}

// Writer returns a Committer for the entry's destination file.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	target := s.Target(entry)
	if !fs.ValidPath(target) || target == "." {
		return nil, &fs.PathError{Op: "extract", Path: target, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(target)
	destPath := filepath.Join(s.destDir, destRel)

	if err := s.ensureDir(path.Dir(target)); err != nil {
		return nil, err
	}

	if s.directWrite {
		file, err := s.root.OpenFile(destRel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("create file %s: %w", destPath, err)
		}
		return &directCommitter{root: s.root, destRel: destRel, file: file}, nil
	}

	tempFile, tempRel, err := createTempFile(s.root, filepath.Dir(destRel), ".mvgl-")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &fileCommitter{
		root:     s.root,
		destPath: destPath,
		destRel:  destRel,
		tempFile: tempFile,
		tempRel:  tempRel,
	}, nil
}

// ensureDir creates dir below the root once.
func (s *FileSink) ensureDir(dir string) error {
	if dir == "." {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dirs[dir]; ok {
		return nil
	}
	if err := s.root.MkdirAll(filepath.FromSlash(dir), 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Join(s.destDir, filepath.FromSlash(dir)), err)
	}
	s.dirs[dir] = struct{}{}
	return nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	root     *os.Root
	destPath string
	destRel  string
	tempFile *os.File
	tempRel  string
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, sets its mode and renames it to the final path.
func (c *fileCommitter) Commit() error {
	if err := c.tempFile.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.root.Chmod(c.tempRel, 0o644); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return c.root.Remove(c.tempRel)
}

// directCommitter writes directly to the final path.
type directCommitter struct {
	root    *os.Root
	destRel string
	file    *os.File
}

// Write implements io.Writer.
func (c *directCommitter) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit closes the file.
func (c *directCommitter) Commit() error {
	if err := c.file.Close(); err != nil {
		_ = c.root.Remove(c.destRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// Discard closes and removes the file.
func (c *directCommitter) Discard() error {
	_ = c.file.Close() //nolint:errcheck // best-effort cleanup
	return c.root.Remove(c.destRel)
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
