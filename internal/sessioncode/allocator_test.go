package sessioncode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studysync/internal/apperr"
)

// repeatReader yields the same byte forever
type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func TestAllocateShape(t *testing.T) {
	a := NewAllocator()
	for i := 0; i < 200; i++ {
		code, err := a.Allocate(nil)
		require.NoError(t, err)
		assert.True(t, Valid(code), "code %q", code)
	}
}

func TestAllocateSkipsActiveCodes(t *testing.T) {
	// first six bytes give "AAAAAA", next six give "BBBBBB"
	src := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1})
	a := NewAllocatorWithSource(src, 5)

	code, err := a.Allocate(map[string]struct{}{"AAAAAA": {}})

	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)
}

func TestAllocateRejectsBiasedBytes(t *testing.T) {
	// 255 is above the rejection limit and must be skipped
	src := bytes.NewReader([]byte{255, 26, 27, 28, 29, 30, 31})
	a := NewAllocatorWithSource(src, 1)

	code, err := a.Allocate(nil)

	require.NoError(t, err)
	assert.Equal(t, "012345", code)
}

func TestAllocateGrowingActiveSetNeverCollides(t *testing.T) {
	a := NewAllocator()
	active := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		code, err := a.Allocate(active)
		require.NoError(t, err)
		_, dup := active[code]
		require.False(t, dup, "allocated active code %s", code)
		active[code] = struct{}{}
	}
}

func TestAllocateFailsFastWhenEveryAttemptCollides(t *testing.T) {
	a := NewAllocatorWithSource(repeatReader(0), 3)

	_, err := a.Allocate(map[string]struct{}{"AAAAAA": {}})

	assert.ErrorIs(t, err, apperr.ErrCodeSpaceExhausted)
	assert.Equal(t, apperr.KindCapacity, apperr.KindOf(err))
}

func TestAllocatePropagatesReaderFailure(t *testing.T) {
	a := NewAllocatorWithSource(bytes.NewReader(nil), 3)

	_, err := a.Allocate(nil)

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrCodeSpaceExhausted))
}

func TestNormalizeAndValid(t *testing.T) {
	assert.Equal(t, "AB12CD", Normalize("  ab12cd "))
	assert.True(t, Valid("AB12CD"))
	assert.False(t, Valid("ab12cd"))
	assert.False(t, Valid("AB12C"))
	assert.False(t, Valid("AB12CD7"))
	assert.False(t, Valid("AB-2CD"))
}
