// Package secret holds passphrases in memory that is locked against
// swapping, excluded from core dumps and zeroed on release.
package secret

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var ErrEmpty = errors.New("secret is empty")

var madvise = unix.Madvise

// Buffer is an mmap-backed region outside the Go heap, so the garbage
// collector never copies its contents. A Buffer must not be copied.
type Buffer struct {
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}
	// Older kernels lack MADV_DONTDUMP. The region is still locked against
	// swap, so carry on without it.
	madvise(data, unix.MADV_DONTDUMP)

	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies source into a new buffer and zeroes source.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, ErrEmpty
	}
	buffer, err := New(len(source))
	if err != nil {
		Zero(source)
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// Bytes returns the secret. The slice aliases the locked region and must
// not outlive the Buffer. Panics after Close.
func (b *Buffer) Bytes() []byte {
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

func (b *Buffer) Len() int {
	return b.length
}

// Close zeroes, unlocks and unmaps the buffer. Close is idempotent.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)

	var firstErr error
	if err := unix.Munlock(b.data); err != nil {
		firstErr = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.data = nil
	return firstErr
}

// Zero overwrites data in place.
func Zero(data []byte) {
	clear(data)
}
