package sizing

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ToInt(math.MaxUint64, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestPosition(t *testing.T) {
	t.Parallel()

	pos, err := Position(0xB0, 16, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, int64(0xC0), pos)

	_, err = Position(math.MaxUint64, 1, errOverflow)
	require.ErrorIs(t, err, errOverflow)

	_, err = Position(math.MaxInt64, 1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestAddUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestCountingWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	cw := &CountingWriter{W: &sb}
	_, err := cw.Write([]byte("MDB1"))
	require.NoError(t, err)
	_, err = cw.Write([]byte("...."))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), cw.N)
	assert.Equal(t, "MDB1....", sb.String())

	cw.N = math.MaxUint64 - 1
	_, err = cw.Write([]byte("xx"))
	require.ErrorIs(t, err, ErrOverflow)
}
