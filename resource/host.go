package resource

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hearth/internal/utils"
	"golang.org/x/exp/slog"
)

// StoreToBuffer copies data to the start of a host-visible buffer and flushes the written range
func (a *Allocator) StoreToBuffer(handle BufferHandle, data []byte) error {
	a.logger.Debug("Allocator::StoreToBuffer", slog.String("id", handle.ID.String()), slog.Int("size", len(data)))

	return a.store(handle, data, 1)
}

// Store copies a slice of plain values to the start of a host-visible buffer. The buffer's
// mapped memory must be aligned for T.
func Store[T any](a *Allocator, handle BufferHandle, data []T) error {
	var zero T
	a.logger.Debug("Allocator::Store", slog.String("id", handle.ID.String()), slog.Int("count", len(data)))

	if len(data) == 0 {
		return a.store(handle, nil, unsafe.Alignof(zero))
	}

	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*int(unsafe.Sizeof(zero)))
	return a.store(handle, bytes, unsafe.Alignof(zero))
}

func (a *Allocator) store(handle BufferHandle, data []byte, alignment uintptr) (err error) {
	if !handle.HostVisible {
		return utils.Violation(ErrNotHostVisible, "cannot write to %s buffer %s", handle.Purpose, handle.ID)
	}

	if len(data) > handle.Size {
		return errors.Wrapf(ErrOutOfBounds, "cannot write %d bytes to %s buffer %s of size %d", len(data), handle.Purpose, handle.ID, handle.Size)
	}

	if len(data) == 0 {
		return nil
	}

	ptr, unmap, err := a.mapHandle(handle)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, unmap())
	}()

	if uintptr(ptr)%alignment != 0 {
		return utils.Violation(ErrMisaligned, "buffer %s is mapped at %#x, which is not %d-byte aligned", handle.ID, uintptr(ptr), alignment)
	}

	copy(unsafe.Slice((*byte)(ptr), len(data)), data)

	_, err = handle.Allocation.Flush(0, len(data))
	if err != nil {
		return errors.Wrapf(err, "failed to flush buffer %s", handle.ID)
	}

	return nil
}

// LoadFromBuffer copies the start of a host-visible buffer into out, invalidating the read
// range first
func (a *Allocator) LoadFromBuffer(handle BufferHandle, out []byte) (err error) {
	a.logger.Debug("Allocator::LoadFromBuffer", slog.String("id", handle.ID.String()), slog.Int("size", len(out)))

	if !handle.HostVisible {
		return utils.Violation(ErrNotHostVisible, "cannot read from %s buffer %s", handle.Purpose, handle.ID)
	}

	if len(out) > handle.Size {
		return errors.Wrapf(ErrOutOfBounds, "cannot read %d bytes from %s buffer %s of size %d", len(out), handle.Purpose, handle.ID, handle.Size)
	}

	if len(out) == 0 {
		return nil
	}

	ptr, unmap, err := a.mapHandle(handle)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, unmap())
	}()

	_, err = handle.Allocation.Invalidate(0, len(out))
	if err != nil {
		return errors.Wrapf(err, "failed to invalidate buffer %s", handle.ID)
	}

	copy(out, unsafe.Slice((*byte)(ptr), len(out)))

	return nil
}

// mapHandle returns the handle's persistent mapping, or maps it for the duration of one
// operation and returns the matching unmap
func (a *Allocator) mapHandle(handle BufferHandle) (unsafe.Pointer, func() error, error) {
	if handle.Mapped != nil {
		return handle.Mapped, func() error { return nil }, nil
	}

	ptr, _, err := handle.Allocation.Map()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to map buffer %s", handle.ID)
	}

	return ptr, handle.Allocation.Unmap, nil
}
