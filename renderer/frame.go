package renderer

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/command"
)

// RenderAndPresent renders one frame: it waits for the previous frame, acquires an image from
// target, records the frame with record on the graphics queue, and presents the image once
// rendering completes. recreate reports that the swapchain is out of date or suboptimal and
// should be recreated before the next frame. When the image could not be acquired, nothing is
// rendered.
func (r *Renderer) RenderAndPresent(target Presenter, record FrameRecorder) (recreate bool, err error) {
	r.logger.Debug("Renderer::RenderAndPresent")

	r.frameMutex.Lock()
	defer r.frameMutex.Unlock()

	if r.destroyed.Load() {
		return false, ErrDestroyed
	}

	graphics := r.queues.Graphics()
	if graphics == nil {
		return false, command.ErrNoGraphicsQueue
	}

	present := r.queues.Present()
	if present == nil {
		return false, command.ErrNoPresentQueue
	}

	err = r.waitForFrame()
	if err != nil {
		return false, err
	}

	if r.frameCommands != nil {
		graphics.Free(r.device, r.frameCommands)
		r.frameCommands = nil
	}

	frame, outOfDate, err := target.AcquireNextImage(r.imageAvailable)
	if err != nil {
		return false, errors.Wrap(err, "failed to acquire swapchain image")
	}
	if outOfDate {
		return true, nil
	}

	commandBuffer, err := graphics.Record(r.device, func(commandBuffer core1_0.CommandBuffer) error {
		return record(commandBuffer, frame)
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to record frame")
	}

	// The fence is only reset once there is a command buffer to submit. A reset fence is never
	// waited on unless the submission went through.
	_, err = r.device.ResetFences([]core1_0.Fence{r.inFlight})
	if err != nil {
		graphics.Free(r.device, commandBuffer)
		return false, errors.Wrap(err, "failed to reset in flight fence")
	}

	_, err = graphics.Submit(r.device, commandBuffer, command.SubmitOptions{
		WaitSemaphores:      []core1_0.Semaphore{r.imageAvailable},
		WaitDstStageMask:    []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
		SignalSemaphores:    []core1_0.Semaphore{r.renderFinished},
		Fence:               r.inFlight,
		AllocationCallbacks: r.callbacks,
	})
	if err != nil {
		graphics.Free(r.device, commandBuffer)
		return false, errors.Wrap(err, "failed to submit frame")
	}

	r.frameCommands = commandBuffer
	r.awaitingFrame = true

	err = present.WithQueue(func(queue core1_0.Queue) error {
		var presentErr error
		recreate, presentErr = target.Present(queue, r.renderFinished, frame.ImageIndex)
		return presentErr
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to present frame")
	}

	return recreate, nil
}

func (r *Renderer) waitForFrame() error {
	if !r.awaitingFrame {
		return nil
	}

	timeout := common.NoTimeout
	if r.options.FenceTimeout > 0 {
		timeout = time.Duration(r.options.FenceTimeout)
	}

	res, err := r.inFlight.Wait(timeout)
	if res == core1_0.VKTimeout {
		return errors.Wrapf(ErrFrameTimeout, "frame did not finish within %s", timeout)
	}
	if err != nil {
		return errors.Wrap(err, "failed to wait for previous frame")
	}

	r.awaitingFrame = false
	return nil
}
