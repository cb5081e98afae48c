package resource

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/vam"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// Allocation is a block of device memory backing one buffer. *vam.Allocation satisfies it.
type Allocation interface {
	BindBufferMemory(buffer core1_0.Buffer) (common.VkResult, error)
	Map() (unsafe.Pointer, common.VkResult, error)
	Unmap() error
	Flush(offset, size int) (common.VkResult, error)
	Invalidate(offset, size int) (common.VkResult, error)
	MemoryType() core1_0.MemoryType
	Size() int
	SetName(name string)
	Free() error
}

// MemoryPool is a custom pool of device memory, used for allocations that need an alignment the
// default block lists do not guarantee
type MemoryPool interface {
	AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (Allocation, error)
	Destroy() error
}

// MemoryAllocator places device memory for buffers. Production code wraps a vam.Allocator with
// NewVAM.
type MemoryAllocator interface {
	AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (Allocation, error)
	FindMemoryTypeIndexForBufferInfo(bufferInfo core1_0.BufferCreateInfo, o vam.AllocationCreateInfo) (int, error)
	CreatePool(o vam.PoolCreateInfo) (MemoryPool, error)
}

// VAM adapts a vam.Allocator to MemoryAllocator
type VAM struct {
	allocator *vam.Allocator
}

func NewVAM(allocator *vam.Allocator) *VAM {
	return &VAM{allocator: allocator}
}

// CreateVAM creates a new vam.Allocator for the provided device. The caller owns the result and
// must Destroy it after every allocation and pool made from it is gone.
func CreateVAM(logger *slog.Logger, instance core1_0.Instance, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options vam.CreateOptions) (*VAM, error) {
	allocator, err := vam.New(logger, instance, physicalDevice, device, options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create memory allocator")
	}

	return NewVAM(allocator), nil
}

func (a *VAM) AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (Allocation, error) {
	allocation := &vam.Allocation{}
	_, err := a.allocator.AllocateMemoryForBuffer(buffer, o, allocation)
	if err != nil {
		return nil, err
	}

	return allocation, nil
}

func (a *VAM) FindMemoryTypeIndexForBufferInfo(bufferInfo core1_0.BufferCreateInfo, o vam.AllocationCreateInfo) (int, error) {
	index, _, err := a.allocator.FindMemoryTypeIndexForBufferInfo(bufferInfo, o)
	return index, err
}

func (a *VAM) CreatePool(o vam.PoolCreateInfo) (MemoryPool, error) {
	pool, _, err := a.allocator.CreatePool(o)
	if err != nil {
		return nil, err
	}

	return &vamPool{allocator: a.allocator, pool: pool}, nil
}

// Destroy releases the allocator's memory blocks. It fails while allocations or pools remain.
func (a *VAM) Destroy() error {
	return a.allocator.Destroy()
}

type vamPool struct {
	allocator *vam.Allocator
	pool      *vam.Pool
}

func (p *vamPool) AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (Allocation, error) {
	o.Pool = p.pool

	allocation := &vam.Allocation{}
	_, err := p.allocator.AllocateMemoryForBuffer(buffer, o, allocation)
	if err != nil {
		return nil, err
	}

	return allocation, nil
}

func (p *vamPool) Destroy() error {
	return p.pool.Destroy()
}
