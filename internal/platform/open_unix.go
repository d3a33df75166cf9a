//go:build unix

package platform

import (
	"errors"
	"os"
	"syscall"
)

// OpenFileNoFollow opens name under root for reading without following a
// final symbolic link. Returns ErrSymlink if name is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := openVerified(root, name, os.O_RDONLY|syscall.O_NOFOLLOW)
	if errors.Is(err, syscall.ELOOP) {
		return nil, ErrSymlink
	}
	return f, err
}
