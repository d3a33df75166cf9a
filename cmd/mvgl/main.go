// Command mvgl extracts, packs and lists MDB1 archives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/thltools/mvgl"
)

const usage = `usage:
  mvgl extract [-filter RE] [-rename-images] [-overwrite] [-serial] [-direct] [-v] SRC DEST
  mvgl pack [-rename-images] [-v] SRC_DIR DEST_FILE
  mvgl list [-digest] [-v] SRC
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "mvgl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "extract":
		return runExtract(ctx, args[1:], stderr)
	case "pack":
		return runPack(ctx, args[1:], stderr)
	case "list":
		return runList(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// newLogger returns a text logger on w at info level, or debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	verbose := fs.Bool("v", false, "log debug messages")
	return fs, verbose
}

func runExtract(ctx context.Context, args []string, stderr io.Writer) error {
	fs, verbose := newFlagSet("extract", stderr)
	filter := fs.String("filter", "", "only extract entries whose path matches this regular expression")
	rename := fs.Bool("rename-images", false, "write .img entries as .dds files")
	overwrite := fs.Bool("overwrite", false, "overwrite existing files")
	serial := fs.Bool("serial", false, "extract one entry at a time")
	direct := fs.Bool("direct", false, "write files in place without temporary files")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	src, dest := fs.Arg(0), fs.Arg(1)
	logger := newLogger(stderr, *verbose)

	opts := []mvgl.ExtractOption{
		mvgl.ExtractWithRenameImages(*rename),
		mvgl.ExtractWithOverwrite(*overwrite),
		mvgl.ExtractWithDirectWrites(*direct),
		mvgl.ExtractWithLogger(logger),
		mvgl.ExtractWithProgress(progressLogger(logger)),
	}
	if *filter != "" {
		re, err := regexp.Compile(*filter)
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
		opts = append(opts, mvgl.ExtractWithFilter(re))
	}
	if *serial {
		opts = append(opts, mvgl.ExtractWithWorkers(-1))
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	stats, err := mvgl.Extract(ctx, f, dest, opts...)
	if err != nil {
		return err
	}
	logger.Info("done",
		"extracted", stats.Extracted,
		"skipped", stats.Skipped,
		"fallbacks", stats.Fallbacks,
		"read", humanize.Bytes(stats.BytesDone))
	return nil
}

func runPack(ctx context.Context, args []string, stderr io.Writer) error {
	fs, verbose := newFlagSet("pack", stderr)
	rename := fs.Bool("rename-images", false, "store .dds files as .img entries")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	src, dest := fs.Arg(0), fs.Arg(1)
	logger := newLogger(stderr, *verbose)

	stats, err := mvgl.PackFile(ctx, src, dest,
		mvgl.PackWithRenameImages(*rename),
		mvgl.PackWithLogger(logger),
		mvgl.PackWithProgress(progressLogger(logger)))
	if err != nil {
		return err
	}
	ratio := 0.0
	if stats.BytesIn > 0 {
		ratio = float64(stats.BytesOut) / float64(stats.BytesIn) * 100
	}
	logger.Info("done",
		"files", stats.Files,
		"in", humanize.Bytes(stats.BytesIn),
		"out", humanize.Bytes(stats.BytesOut),
		"ratio", fmt.Sprintf("%.1f%%", ratio))
	return nil
}

func runList(args []string, stdout, stderr io.Writer) error {
	fs, verbose := newFlagSet("list", stderr)
	withDigest := fs.Bool("digest", false, "print the sha256 digest of every entry")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	logger := newLogger(stderr, *verbose)

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := mvgl.Open(f, mvgl.WithLogger(logger))
	if err != nil {
		return err
	}
	m, err := a.Manifest(*withDigest)
	if err != nil {
		return err
	}
	return printManifest(stdout, m, *withDigest)
}

func printManifest(w io.Writer, m *mvgl.Manifest, withDigest bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	var total, stored uint64
	for _, e := range m.Entries {
		total += e.Size
		stored += e.CompressedSize
		line := fmt.Sprintf("%d\t%s\t%s\t", e.ID, humanize.IBytes(e.Size), humanize.IBytes(e.CompressedSize))
		if withDigest {
			line += e.Digest.String() + "\t"
		}
		if _, err := fmt.Fprintln(tw, line+e.Path); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s entries, %s (%s stored)\n",
		humanize.Comma(int64(len(m.Entries))), humanize.IBytes(total), humanize.IBytes(stored))
	return err
}

// progressLogger logs one debug line per finished file.
func progressLogger(logger *slog.Logger) mvgl.ProgressFunc {
	return func(ev mvgl.ProgressEvent) {
		if ev.Path == "" || ev.FilesTotal == 0 {
			return
		}
		logger.Debug(ev.Stage.String(),
			"path", ev.Path,
			"files", fmt.Sprintf("%d/%d", ev.FilesDone, ev.FilesTotal),
			"bytes", humanize.Bytes(ev.BytesDone))
	}
}
