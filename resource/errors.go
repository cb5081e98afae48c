package resource

import "github.com/cockroachdb/errors"

var (
	// ErrNotHostVisible is returned when the host attempts to read or write a buffer whose memory
	// cannot be mapped
	ErrNotHostVisible = errors.New("buffer memory is not host visible")
	// ErrDoubleFree is returned when a buffer handle is freed after it has already been freed
	ErrDoubleFree = errors.New("buffer freed twice")
	// ErrUnknownBuffer is returned when a buffer handle was not created by this allocator
	ErrUnknownBuffer = errors.New("buffer was not allocated by this allocator")
	// ErrZeroSize is returned when a zero-sized buffer is requested
	ErrZeroSize = errors.New("buffer size must be greater than zero")
	// ErrOutOfBounds is returned when a host read or write does not fit in the buffer
	ErrOutOfBounds = errors.New("buffer access out of bounds")
)

// ErrMisaligned is returned when mapped memory does not satisfy the alignment of the type being
// written to it
var ErrMisaligned = errors.New("buffer memory is misaligned for the stored type")
