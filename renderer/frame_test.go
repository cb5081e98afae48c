package renderer_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/internal/gputest"
	"github.com/vkngwrapper/hearth/renderer"
)

type presenter struct {
	next      int
	outOfDate bool
	recreate  bool

	acquired  []core1_0.Semaphore
	presented []int
	waitedOn  []core1_0.Semaphore
	queues    []core1_0.Queue
}

func (p *presenter) AcquireNextImage(imageAvailable core1_0.Semaphore) (renderer.FrameTarget, bool, error) {
	p.acquired = append(p.acquired, imageAvailable)
	if p.outOfDate {
		return renderer.FrameTarget{}, true, nil
	}

	target := renderer.FrameTarget{
		ImageIndex: p.next,
		Extent:     core1_0.Extent2D{Width: 640, Height: 480},
	}
	p.next = (p.next + 1) % 3
	return target, false, nil
}

func (p *presenter) Present(queue core1_0.Queue, renderFinished core1_0.Semaphore, imageIndex int) (bool, error) {
	p.queues = append(p.queues, queue)
	p.waitedOn = append(p.waitedOn, renderFinished)
	p.presented = append(p.presented, imageIndex)
	return p.recreate, nil
}

func TestRenderAndPresent(t *testing.T) {
	device, _, r := readyRenderer(t, nil)
	target := &presenter{}

	var recorded []renderer.FrameTarget
	record := func(commandBuffer core1_0.CommandBuffer, frame renderer.FrameTarget) error {
		commandBuffer.(*gputest.CommandBuffer).Record("draw")
		recorded = append(recorded, frame)
		return nil
	}

	for i := 0; i < 4; i++ {
		recreate, err := r.RenderAndPresent(target, record)
		require.NoError(t, err)
		require.False(t, recreate)
	}

	require.Equal(t, []int{0, 1, 2, 0}, target.presented)
	require.Len(t, recorded, 4)
	require.Equal(t, 640, recorded[0].Extent.Width)

	imageAvailable := device.Semaphores[0]
	renderFinished := device.Semaphores[1]
	for i := range target.acquired {
		require.Same(t, imageAvailable, target.acquired[i])
		require.Same(t, renderFinished, target.waitedOn[i])
		require.Same(t, device.Queue(0), target.queues[i])
	}

	submissions := device.Queue(0).Submissions
	require.Len(t, submissions, 4)
	require.Equal(t, []core1_0.Semaphore{imageAvailable}, submissions[0].WaitSemaphores)
	require.Equal(t, []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput}, submissions[0].WaitDstStageMask)
	require.Equal(t, []core1_0.Semaphore{renderFinished}, submissions[0].SignalSemaphores)

	// Only the last frame's command buffer is still allocated
	graphicsPool := device.CommandPools[0]
	require.Len(t, graphicsPool.Allocated, 4)
	require.Equal(t, 1, graphicsPool.LiveCommandBuffers())
	require.Equal(t, []string{"draw"}, graphicsPool.Allocated[3].Commands)

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, graphicsPool.LiveCommandBuffers())
}

func TestRenderAndPresentOutOfDate(t *testing.T) {
	device, _, r := readyRenderer(t, nil)
	target := &presenter{outOfDate: true}

	recreate, err := r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error {
		t.Fatal("an out of date frame must not be recorded")
		return nil
	})
	require.NoError(t, err)
	require.True(t, recreate)
	require.Empty(t, device.Queue(0).Submissions)
	require.Empty(t, target.presented)

	// The fence was never reset, so the next frame does not block
	target.outOfDate = false
	recreate, err = r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error { return nil })
	require.NoError(t, err)
	require.False(t, recreate)

	require.NoError(t, r.Destroy())
}

func TestRenderAndPresentSuboptimal(t *testing.T) {
	_, _, r := readyRenderer(t, nil)
	target := &presenter{recreate: true}

	recreate, err := r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error { return nil })
	require.NoError(t, err)
	require.True(t, recreate)
	require.Equal(t, []int{0}, target.presented)

	require.NoError(t, r.Destroy())
}

func TestRenderAndPresentRecordFailure(t *testing.T) {
	device, _, r := readyRenderer(t, nil)
	target := &presenter{}
	failure := errors.New("pipeline missing")

	_, err := r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error { return failure })
	require.ErrorIs(t, err, failure)
	require.Empty(t, device.Queue(0).Submissions)
	require.Equal(t, 0, device.CommandPools[0].LiveCommandBuffers())

	_, err = r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error { return nil })
	require.NoError(t, err)

	require.NoError(t, r.Destroy())
}

func TestRenderAndPresentSubmitFailure(t *testing.T) {
	device, _, r := readyRenderer(t, nil)
	target := &presenter{}

	device.Queue(0).FailSubmit = errors.New("device lost")
	_, err := r.RenderAndPresent(target, func(core1_0.CommandBuffer, renderer.FrameTarget) error { return nil })
	require.Error(t, err)
	require.Empty(t, target.presented)

	// Nothing will signal the fence, so teardown must not wait on it
	require.NoError(t, r.Destroy())
}
