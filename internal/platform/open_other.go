//go:build !unix

package platform

import "os"

// OpenFileNoFollow opens name under root for reading without following a
// final symbolic link. Returns ErrSymlink if name is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	return openVerified(root, name, os.O_RDONLY)
}
