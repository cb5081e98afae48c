package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/internal/utils"
	"github.com/vkngwrapper/hearth/internal/vulkan"
	"golang.org/x/exp/slog"
)

// Allocator creates buffers for each Purpose and keeps a registry of every handle it has
// handed out, so that double frees and leaks can be detected.
type Allocator struct {
	logger              *slog.Logger
	device              core1_0.Device
	memory              MemoryAllocator
	extensionData       *vulkan.ExtensionData
	allocationCallbacks *driver.AllocationCallbacks
	createFlags         CreateFlags
	sharingMode         core1_0.SharingMode
	queueFamilies       []int

	scratchAlignment uint
	scratchPool      MemoryPool

	registryMutex utils.OptionalRWMutex
	live          *swiss.Map[uuid.UUID, BufferHandle]
	freed         *swiss.Map[uuid.UUID, struct{}]
	purposeCounts [purposeCount]int
	purposeBytes  [purposeCount]int
	destroyed     bool
}

// ScratchAlignment is the alignment of every scratch buffer's device address, or 0 when no
// scratch pool is in use
func (a *Allocator) ScratchAlignment() uint {
	return a.scratchAlignment
}

// AllocBuffer creates a buffer of the requested purpose and size and binds memory to it.
// Staging and readback buffers come back persistently mapped.
func (a *Allocator) AllocBuffer(purpose Purpose, size int, name string) (BufferHandle, error) {
	a.logger.Debug("Allocator::AllocBuffer", slog.String("purpose", purpose.String()), slog.Int("size", size))

	if size <= 0 {
		return BufferHandle{}, errors.Wrapf(ErrZeroSize, "failed to allocate %s buffer", purpose)
	}

	if purpose < 0 || int(purpose) >= purposeCount {
		return BufferHandle{}, errors.Newf("unknown buffer purpose: %d", purpose)
	}

	buffer, _, err := a.device.CreateBuffer(a.allocationCallbacks, core1_0.BufferCreateInfo{
		Size:               size,
		Usage:              purpose.BufferUsage(),
		SharingMode:        a.sharingMode,
		QueueFamilyIndices: a.queueFamilies,
	})
	if err != nil {
		return BufferHandle{}, errors.Wrapf(err, "failed to create %s buffer", purpose)
	}

	allocation, err := a.allocateMemory(purpose, buffer)
	if err != nil {
		buffer.Destroy(a.allocationCallbacks)
		return BufferHandle{}, errors.Wrapf(err, "failed to allocate memory for %s buffer", purpose)
	}

	_, err = allocation.BindBufferMemory(buffer)
	if err != nil {
		return BufferHandle{}, a.discard(buffer, allocation, errors.Wrapf(err, "failed to bind memory to %s buffer", purpose))
	}

	handle := BufferHandle{
		Buffer:      buffer,
		Allocation:  allocation,
		Purpose:     purpose,
		Size:        size,
		HostVisible: allocation.MemoryType().PropertyFlags&core1_0.MemoryPropertyHostVisible != 0,
		ID:          uuid.New(),
		Name:        name,
	}

	if purpose.HostAccess() {
		if !handle.HostVisible {
			return BufferHandle{}, a.discard(buffer, allocation, errors.Wrapf(ErrNotHostVisible, "failed to map %s buffer", purpose))
		}

		handle.Mapped, _, err = allocation.Map()
		if err != nil {
			return BufferHandle{}, a.discard(buffer, allocation, errors.Wrapf(err, "failed to map %s buffer", purpose))
		}
	}

	if a.createFlags&CreateDebugNames != 0 {
		if handle.Name == "" {
			handle.Name = purpose.String() + "-" + handle.ID.String()
		}
		allocation.SetName(handle.Name)
	}

	a.register(handle)

	return handle, nil
}

func (a *Allocator) allocateMemory(purpose Purpose, buffer core1_0.Buffer) (Allocation, error) {
	allocInfo := purpose.allocationCreateInfo()

	if purpose == PurposeAccelerationStructureScratch && a.scratchPool != nil {
		return a.scratchPool.AllocateMemoryForBuffer(buffer, allocInfo)
	}

	return a.memory.AllocateMemoryForBuffer(buffer, allocInfo)
}

func (a *Allocator) discard(buffer core1_0.Buffer, allocation Allocation, err error) error {
	freeErr := allocation.Free()
	buffer.Destroy(a.allocationCallbacks)

	if freeErr != nil {
		a.logger.Error("failed to free memory of a partially-created buffer", slog.Any("error", freeErr))
	}

	return err
}

func (a *Allocator) register(handle BufferHandle) {
	a.registryMutex.Lock()
	defer a.registryMutex.Unlock()

	a.live.Put(handle.ID, handle)
	a.purposeCounts[handle.Purpose]++
	a.purposeBytes[handle.Purpose] += handle.Size
}

func (a *Allocator) unregister(handle BufferHandle) error {
	a.registryMutex.Lock()
	defer a.registryMutex.Unlock()

	registered, ok := a.live.Get(handle.ID)
	if !ok {
		if a.freed.Has(handle.ID) {
			return utils.Violation(ErrDoubleFree, "buffer %s (%s) was already freed", handle.ID, handle.Name)
		}
		return utils.Violation(ErrUnknownBuffer, "buffer %s (%s) is not registered", handle.ID, handle.Name)
	}

	a.live.Delete(handle.ID)
	a.freed.Put(handle.ID, struct{}{})
	a.purposeCounts[registered.Purpose]--
	a.purposeBytes[registered.Purpose] -= registered.Size

	return nil
}

// FreeBuffer immediately unmaps, destroys, and frees the memory of a buffer. The device must
// no longer be using it.
func (a *Allocator) FreeBuffer(handle BufferHandle) error {
	a.logger.Debug("Allocator::FreeBuffer", slog.String("id", handle.ID.String()), slog.String("purpose", handle.Purpose.String()))

	err := a.unregister(handle)
	if err != nil {
		return err
	}

	if handle.Mapped != nil {
		err = handle.Allocation.Unmap()
	}

	handle.Buffer.Destroy(a.allocationCallbacks)

	return errors.CombineErrors(err, handle.Allocation.Free())
}

// BufferDeviceAddress retrieves the device address of a buffer created with the
// ShaderDeviceAddress usage
func (a *Allocator) BufferDeviceAddress(handle BufferHandle) (uint64, error) {
	a.logger.Debug("Allocator::BufferDeviceAddress", slog.String("id", handle.ID.String()))

	if a.extensionData.BufferDeviceAddress == nil {
		return 0, errors.New("the device does not support buffer device addresses")
	}

	address, err := a.extensionData.BufferDeviceAddress.GetBufferDeviceAddress(core1_2.BufferDeviceAddressInfo{
		Buffer: handle.Buffer,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get the device address of buffer %s", handle.ID)
	}

	return address, nil
}

// Outstanding is the number of buffers that have been allocated but not yet freed
func (a *Allocator) Outstanding() int {
	a.registryMutex.RLock()
	defer a.registryMutex.RUnlock()

	return a.live.Count()
}

// IsLive reports whether the handle has been allocated and not yet freed
func (a *Allocator) IsLive(handle BufferHandle) bool {
	a.registryMutex.RLock()
	defer a.registryMutex.RUnlock()

	return a.live.Has(handle.ID)
}

// Destroy releases the scratch pool. Buffers still outstanding are reported in the log; they
// should have been freed before this point.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	a.registryMutex.Lock()
	defer a.registryMutex.Unlock()

	if a.destroyed {
		return errors.New("allocator was already destroyed")
	}
	a.destroyed = true

	a.live.Iter(func(id uuid.UUID, handle BufferHandle) bool {
		a.logger.Error("buffer leaked at allocator destruction",
			slog.String("id", id.String()),
			slog.String("name", handle.Name),
			slog.String("purpose", handle.Purpose.String()),
			slog.Int("size", handle.Size))
		return false
	})

	if a.scratchPool != nil {
		err := a.scratchPool.Destroy()
		a.scratchPool = nil
		if err != nil {
			return errors.Wrap(err, "failed to destroy the scratch pool")
		}
	}

	return nil
}
