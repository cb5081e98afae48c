package gputest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/core/v2/driver"
)

const addressAlignment uint64 = 256

// Device is a fake core1_0.Device. Only the methods used by this module are implemented; any
// other method panics through the nil embedded interface.
type Device struct {
	core1_0.Device

	mutex       sync.Mutex
	nextAddress uint64
	queues      map[int]*Queue

	Buffers      []*Buffer
	Fences       []*Fence
	Semaphores   []*Semaphore
	CommandPools []*CommandPool

	// FailCreateBuffer, when set, is returned from every CreateBuffer call
	FailCreateBuffer error
	Destroyed        bool
	WaitIdleCount    int
}

func NewDevice() *Device {
	return &Device{
		nextAddress: addressAlignment,
		queues:      make(map[int]*Queue),
	}
}

func (d *Device) CreateBuffer(allocationCallbacks *driver.AllocationCallbacks, o core1_0.BufferCreateInfo) (core1_0.Buffer, common.VkResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.FailCreateBuffer != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, d.FailCreateBuffer
	}

	buffer := &Buffer{
		Info:    o,
		Address: d.nextAddress,
	}
	d.nextAddress += (uint64(o.Size) + addressAlignment - 1) / addressAlignment * addressAlignment
	d.Buffers = append(d.Buffers, buffer)

	return buffer, core1_0.VKSuccess, nil
}

func (d *Device) CreateFence(allocationCallbacks *driver.AllocationCallbacks, o core1_0.FenceCreateInfo) (core1_0.Fence, common.VkResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	fence := &Fence{Signalled: o.Flags&core1_0.FenceCreateSignaled != 0}
	d.Fences = append(d.Fences, fence)

	return fence, core1_0.VKSuccess, nil
}

func (d *Device) CreateSemaphore(allocationCallbacks *driver.AllocationCallbacks, o core1_0.SemaphoreCreateInfo) (core1_0.Semaphore, common.VkResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	semaphore := &Semaphore{}
	d.Semaphores = append(d.Semaphores, semaphore)

	return semaphore, core1_0.VKSuccess, nil
}

func (d *Device) CreateCommandPool(allocationCallbacks *driver.AllocationCallbacks, o core1_0.CommandPoolCreateInfo) (core1_0.CommandPool, common.VkResult, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	pool := &CommandPool{Info: o}
	d.CommandPools = append(d.CommandPools, pool)

	return pool, core1_0.VKSuccess, nil
}

func (d *Device) AllocateCommandBuffers(o core1_0.CommandBufferAllocateInfo) ([]core1_0.CommandBuffer, common.VkResult, error) {
	pool, ok := o.CommandPool.(*CommandPool)
	if !ok {
		return nil, core1_0.VKErrorUnknown, errors.New("command pool was not created by the fake device")
	}

	var buffers []core1_0.CommandBuffer
	for i := 0; i < o.CommandBufferCount; i++ {
		buffer := &CommandBuffer{Pool: pool}
		pool.Allocated = append(pool.Allocated, buffer)
		buffers = append(buffers, buffer)
	}

	return buffers, core1_0.VKSuccess, nil
}

func (d *Device) FreeCommandBuffers(buffers []core1_0.CommandBuffer) {
	for _, buffer := range buffers {
		buffer.(*CommandBuffer).FreeCount++
	}
}

func (d *Device) GetQueue(queueFamilyIndex int, queueIndex int) core1_0.Queue {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	queue, ok := d.queues[queueFamilyIndex]
	if !ok {
		queue = &Queue{Family: queueFamilyIndex}
		d.queues[queueFamilyIndex] = queue
	}

	return queue
}

// Queue returns the fake queue for a family, or nil if GetQueue was never called for it
func (d *Device) Queue(queueFamilyIndex int) *Queue {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.queues[queueFamilyIndex]
}

func (d *Device) WaitForFences(waitForAll bool, timeout time.Duration, fences []core1_0.Fence) (common.VkResult, error) {
	for _, fence := range fences {
		res, err := fence.Wait(timeout)
		if err != nil {
			return res, err
		}
	}

	return core1_0.VKSuccess, nil
}

func (d *Device) ResetFences(fences []core1_0.Fence) (common.VkResult, error) {
	for _, fence := range fences {
		fence.(*Fence).Signalled = false
	}

	return core1_0.VKSuccess, nil
}

func (d *Device) WaitIdle() (common.VkResult, error) {
	d.WaitIdleCount++
	return core1_0.VKSuccess, nil
}

func (d *Device) IsDeviceExtensionActive(extensionName string) bool {
	return false
}

func (d *Device) Destroy(callbacks *driver.AllocationCallbacks) {
	d.Destroyed = true
}

// GetBufferDeviceAddress resolves the address the fake device assigned to a buffer
func (d *Device) GetBufferDeviceAddress(o core1_2.BufferDeviceAddressInfo) (uint64, error) {
	buffer, ok := o.Buffer.(*Buffer)
	if !ok {
		return 0, errors.New("buffer was not created by the fake device")
	}

	return buffer.Address, nil
}

// LiveBuffers counts buffers that have been created and not destroyed
func (d *Device) LiveBuffers() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	count := 0
	for _, buffer := range d.Buffers {
		if buffer.DestroyCount == 0 {
			count++
		}
	}

	return count
}

// BufferAt finds the buffer the fake device assigned address to, including destroyed buffers.
// Memory contents stay readable after a buffer is freed.
func (d *Device) BufferAt(address uint64) *Buffer {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, buffer := range d.Buffers {
		if buffer.Address == address {
			return buffer
		}
	}

	return nil
}
