// Package sizing provides checked conversions and offset arithmetic for the
// u64 fields of the archive layout.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Position returns base+offset as a seek position, or overflowErr when the
// sum does not fit in an int64.
func Position(base, offset uint64, overflowErr error) (int64, error) {
	sum, ok := AddUint64(base, offset)
	if !ok {
		return 0, overflowErr
	}
	return ToInt64(sum, overflowErr)
}
