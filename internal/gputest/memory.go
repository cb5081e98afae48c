package gputest

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/arsenal/vam"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/resource"
)

// Memory is a fake resource.MemoryAllocator that backs every allocation with host memory and
// tracks which allocations are outstanding
type Memory struct {
	mutex       sync.Mutex
	allocations int
	outstanding map[*Allocation]struct{}

	// FailAt makes the allocation with this 1-based sequence number fail. 0 never fails.
	FailAt int
	// DoubleFrees counts Free calls on allocations that were already freed
	DoubleFrees int
	Pools       []*Pool
	// Infos records the create info of every allocation, in order
	Infos []vam.AllocationCreateInfo
}

func NewMemory() *Memory {
	return &Memory{
		outstanding: make(map[*Allocation]struct{}),
	}
}

func (m *Memory) AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (resource.Allocation, error) {
	return m.allocate(buffer, o, nil)
}

func (m *Memory) allocate(buffer core1_0.Buffer, o vam.AllocationCreateInfo, pool *Pool) (*Allocation, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.allocations++
	m.Infos = append(m.Infos, o)
	if m.FailAt > 0 && m.allocations == m.FailAt {
		return nil, core1_0.VKErrorOutOfDeviceMemory.ToError()
	}

	size := buffer.MemoryRequirements().Size
	hostAccess := memutils.AllocationCreateHostAccessSequentialWrite | memutils.AllocationCreateHostAccessRandom

	allocation := &Allocation{
		memory:      m,
		pool:        pool,
		size:        size,
		storage:     make([]uint64, (size+7)/8),
		hostVisible: o.Flags&hostAccess != 0 || o.RequiredFlags&core1_0.MemoryPropertyHostVisible != 0,
	}
	m.outstanding[allocation] = struct{}{}

	return allocation, nil
}

func (m *Memory) FindMemoryTypeIndexForBufferInfo(bufferInfo core1_0.BufferCreateInfo, o vam.AllocationCreateInfo) (int, error) {
	return 0, nil
}

func (m *Memory) CreatePool(o vam.PoolCreateInfo) (resource.MemoryPool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	pool := &Pool{memory: m, Info: o}
	m.Pools = append(m.Pools, pool)
	return pool, nil
}

// Outstanding counts allocations that have not been freed
func (m *Memory) Outstanding() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.outstanding)
}

// Allocations counts every allocation attempt, including failed ones
func (m *Memory) Allocations() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.allocations
}

func (m *Memory) free(allocation *Allocation) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.outstanding[allocation]; !ok {
		m.DoubleFrees++
		return errors.New("allocation freed twice")
	}

	delete(m.outstanding, allocation)
	return nil
}

type Pool struct {
	memory *Memory

	Info         vam.PoolCreateInfo
	DestroyCount int
}

func (p *Pool) AllocateMemoryForBuffer(buffer core1_0.Buffer, o vam.AllocationCreateInfo) (resource.Allocation, error) {
	return p.memory.allocate(buffer, o, p)
}

func (p *Pool) Destroy() error {
	p.DestroyCount++
	if p.DestroyCount > 1 {
		return errors.New("pool destroyed twice")
	}
	return nil
}

// Allocation is a fake allocation whose memory lives on the host. Its storage is 8-byte aligned.
type Allocation struct {
	memory *Memory
	pool   *Pool

	size        int
	storage     []uint64
	hostVisible bool

	Name        string
	MapCount    int
	FlushCount  int
	Invalidates int
	Bound       core1_0.Buffer
}

// Bytes is the allocation's backing memory
func (a *Allocation) Bytes() []byte {
	if len(a.storage) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&a.storage[0])), a.size)
}

// Pool is the pool this allocation came from, or nil
func (a *Allocation) Pool() *Pool {
	return a.pool
}

func (a *Allocation) BindBufferMemory(buffer core1_0.Buffer) (common.VkResult, error) {
	fake, ok := buffer.(*Buffer)
	if !ok {
		return core1_0.VKErrorUnknown, errors.New("buffer was not created by the fake device")
	}

	a.Bound = buffer
	fake.memory = a
	return core1_0.VKSuccess, nil
}

func (a *Allocation) Map() (unsafe.Pointer, common.VkResult, error) {
	if !a.hostVisible {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.New("memory is not host visible")
	}

	a.MapCount++
	return unsafe.Pointer(&a.storage[0]), core1_0.VKSuccess, nil
}

func (a *Allocation) Unmap() error {
	if a.MapCount == 0 {
		return errors.New("allocation is not mapped")
	}

	a.MapCount--
	return nil
}

func (a *Allocation) Flush(offset, size int) (common.VkResult, error) {
	a.FlushCount++
	return core1_0.VKSuccess, nil
}

func (a *Allocation) Invalidate(offset, size int) (common.VkResult, error) {
	a.Invalidates++
	return core1_0.VKSuccess, nil
}

func (a *Allocation) MemoryType() core1_0.MemoryType {
	if a.hostVisible {
		return core1_0.MemoryType{
			PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
			HeapIndex:     1,
		}
	}

	return core1_0.MemoryType{
		PropertyFlags: core1_0.MemoryPropertyDeviceLocal,
		HeapIndex:     0,
	}
}

func (a *Allocation) Size() int {
	return a.size
}

func (a *Allocation) SetName(name string) {
	a.Name = name
}

func (a *Allocation) Free() error {
	return a.memory.free(a)
}
