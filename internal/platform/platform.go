// Package platform isolates the filesystem behavior the packer relies on
// that differs between operating systems.
package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when attempting to open a symbolic link.
var ErrSymlink = errors.New("mvgl: symbolic links not supported")

// Kind classifies a walked directory entry.
type Kind int

const (
	KindRegular Kind = iota
	KindDir
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Classify reports what kind of file d describes without following links.
func Classify(d fs.DirEntry) Kind {
	t := d.Type()
	switch {
	case t.IsRegular():
		return KindRegular
	case t.IsDir():
		return KindDir
	case t&fs.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

// openVerified opens name under root after checking with Lstat that it is
// not a symbolic link. os.Root follows links that stay inside the root even
// with O_NOFOLLOW; the opened file must be the one Lstat saw.
func openVerified(root *os.Root, name string, flag int) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	f, err := root.OpenFile(name, flag, 0)
	if err != nil {
		return nil, err
	}
	opened, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !os.SameFile(info, opened) {
		f.Close()
		return nil, ErrSymlink
	}
	return f, nil
}
