// Package command records and submits one-time command buffers and owns the device's queues,
// each paired with a command pool and guarded by a mutex shared by every role that aliases it.
package command

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// RecordOneTime allocates a primary command buffer from pool, begins it for one-time submission,
// records body into it, and ends it. If recording fails, the command buffer is freed before
// returning.
func RecordOneTime(device core1_0.Device, pool core1_0.CommandPool, body func(commandBuffer core1_0.CommandBuffer) error) (core1_0.CommandBuffer, error) {
	commandBuffers, _, err := device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate command buffer")
	}
	commandBuffer := commandBuffers[0]

	_, err = commandBuffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		device.FreeCommandBuffers(commandBuffers)
		return nil, errors.Wrap(err, "failed to begin command buffer")
	}

	err = body(commandBuffer)
	if err != nil {
		device.FreeCommandBuffers(commandBuffers)
		return nil, err
	}

	_, err = commandBuffer.End()
	if err != nil {
		device.FreeCommandBuffers(commandBuffers)
		return nil, errors.Wrap(err, "failed to end command buffer")
	}

	return commandBuffer, nil
}

// SubmitOptions describes the synchronization of a single command buffer submission
type SubmitOptions struct {
	WaitSemaphores   []core1_0.Semaphore
	WaitDstStageMask []core1_0.PipelineStageFlags
	SignalSemaphores []core1_0.Semaphore
	// Fence is signalled when the submission completes. If it is nil, Submit creates one.
	Fence core1_0.Fence

	AllocationCallbacks *driver.AllocationCallbacks
}

// Submit submits one command buffer to queue without waiting for it and returns the fence that
// will be signalled on completion
func Submit(device core1_0.Device, queue core1_0.Queue, commandBuffer core1_0.CommandBuffer, o SubmitOptions) (core1_0.Fence, error) {
	fence := o.Fence
	if fence == nil {
		var err error
		fence, _, err = device.CreateFence(o.AllocationCallbacks, core1_0.FenceCreateInfo{})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create submission fence")
		}
	}

	_, err := queue.Submit(fence, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   o.WaitSemaphores,
			WaitDstStageMask: o.WaitDstStageMask,
			CommandBuffers:   []core1_0.CommandBuffer{commandBuffer},
			SignalSemaphores: o.SignalSemaphores,
		},
	})
	if err != nil {
		if o.Fence == nil {
			fence.Destroy(o.AllocationCallbacks)
		}
		return nil, errors.Wrap(err, "failed to submit command buffer")
	}

	return fence, nil
}

// SubmitAndWait submits one command buffer, blocks until it completes, and then releases the
// fence (if Submit created it) and the command buffer
func SubmitAndWait(device core1_0.Device, queue core1_0.Queue, commandBuffer core1_0.CommandBuffer, o SubmitOptions) error {
	fence, err := Submit(device, queue, commandBuffer, o)
	if err != nil {
		device.FreeCommandBuffers([]core1_0.CommandBuffer{commandBuffer})
		return err
	}

	err = Wait(fence)
	if o.Fence == nil {
		fence.Destroy(o.AllocationCallbacks)
	}
	device.FreeCommandBuffers([]core1_0.CommandBuffer{commandBuffer})

	return err
}

// Wait blocks until fence is signalled
func Wait(fence core1_0.Fence) error {
	_, err := fence.Wait(common.NoTimeout)
	if err != nil {
		return errors.Wrap(err, "failed to wait on fence")
	}

	return nil
}
