package renderer

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/resource"
)

// Bootstrap is everything the renderer needs from instance and device creation
type Bootstrap struct {
	Instance       core1_0.Instance
	PhysicalDevice core1_0.PhysicalDevice
	Device         core1_0.Device
	QueueFamilies  command.QueueFamilyIndices

	// MemoryAllocator places buffer memory. When it is nil, a vam allocator is created for the
	// device.
	MemoryAllocator resource.MemoryAllocator

	AccelerationStructure           khr_acceleration_structure.Extension
	AccelerationStructureProperties khr_acceleration_structure.PhysicalDeviceProperties

	// BufferDeviceAddress overrides the device address entry points resolved from the device
	BufferDeviceAddress resource.BufferAddressQuerier
	AllocationCallbacks *driver.AllocationCallbacks

	// OwnsDevice makes the renderer destroy the device last at teardown
	OwnsDevice bool
}

// FrameTarget is the swapchain image a frame renders to
type FrameTarget struct {
	ImageIndex int
	ImageView  core1_0.ImageView
	Extent     core1_0.Extent2D
}

// Presenter is the swapchain side of RenderAndPresent
type Presenter interface {
	// AcquireNextImage acquires the next image to render to, signalling imageAvailable once it
	// can be written. outOfDate reports that the swapchain must be recreated, in which case
	// nothing was acquired.
	AcquireNextImage(imageAvailable core1_0.Semaphore) (target FrameTarget, outOfDate bool, err error)
	// Present queues the image at imageIndex for presentation once renderFinished is signalled.
	// recreate reports that the swapchain is out of date or suboptimal.
	Present(queue core1_0.Queue, renderFinished core1_0.Semaphore, imageIndex int) (recreate bool, err error)
}

// FrameRecorder records the commands of one frame
type FrameRecorder func(commandBuffer core1_0.CommandBuffer, target FrameTarget) error
