package command_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/internal/gputest"
)

func readyPool(t *testing.T) (*gputest.Device, core1_0.CommandPool) {
	device := gputest.NewDevice()
	pool, _, err := device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{})
	require.NoError(t, err)

	return device, pool
}

func TestRecordOneTime(t *testing.T) {
	device, pool := readyPool(t)

	var recorded core1_0.CommandBuffer
	commandBuffer, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error {
		recorded = commandBuffer
		return nil
	})
	require.NoError(t, err)
	require.Same(t, recorded, commandBuffer)

	fake := commandBuffer.(*gputest.CommandBuffer)
	require.True(t, fake.Began)
	require.True(t, fake.Ended)
	require.Equal(t, core1_0.CommandBufferUsageOneTimeSubmit, fake.BeginInfo.Flags)
}

func TestRecordOneTimeBodyFailure(t *testing.T) {
	device, pool := readyPool(t)

	bodyErr := errors.New("body failed")
	_, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error {
		return bodyErr
	})
	require.ErrorIs(t, err, bodyErr)

	fakePool := pool.(*gputest.CommandPool)
	require.Len(t, fakePool.Allocated, 1)
	require.Equal(t, 0, fakePool.LiveCommandBuffers())
}

func TestSubmitCreatesFence(t *testing.T) {
	device, pool := readyPool(t)
	queue := device.GetQueue(0, 0)

	commandBuffer, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error { return nil })
	require.NoError(t, err)

	semaphore, _, err := device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	require.NoError(t, err)

	fence, err := command.Submit(device, queue, commandBuffer, command.SubmitOptions{
		SignalSemaphores: []core1_0.Semaphore{semaphore},
	})
	require.NoError(t, err)
	require.Len(t, device.Fences, 1)
	require.Same(t, device.Fences[0], fence)
	require.NoError(t, command.Wait(fence))

	submissions := queue.(*gputest.Queue).Submissions
	require.Len(t, submissions, 1)
	require.Equal(t, []core1_0.Semaphore{semaphore}, submissions[0].SignalSemaphores)
	require.Equal(t, []core1_0.CommandBuffer{commandBuffer}, submissions[0].CommandBuffers)
}

func TestSubmitAndWait(t *testing.T) {
	device, pool := readyPool(t)
	queue := device.GetQueue(0, 0)

	commandBuffer, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error { return nil })
	require.NoError(t, err)

	require.NoError(t, command.SubmitAndWait(device, queue, commandBuffer, command.SubmitOptions{}))

	require.Len(t, device.Fences, 1)
	require.Equal(t, 1, device.Fences[0].DestroyCount)
	require.Equal(t, 0, pool.(*gputest.CommandPool).LiveCommandBuffers())
}

func TestSubmitAndWaitSuppliedFence(t *testing.T) {
	device, pool := readyPool(t)
	queue := device.GetQueue(0, 0)

	fence, _, err := device.CreateFence(nil, core1_0.FenceCreateInfo{})
	require.NoError(t, err)

	commandBuffer, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error { return nil })
	require.NoError(t, err)

	require.NoError(t, command.SubmitAndWait(device, queue, commandBuffer, command.SubmitOptions{Fence: fence}))
	require.Len(t, device.Fences, 1)
	require.Equal(t, 0, device.Fences[0].DestroyCount)
	require.True(t, device.Fences[0].Signalled)
}

func TestSubmitFailureReleasesFence(t *testing.T) {
	device, pool := readyPool(t)
	queue := device.GetQueue(0, 0).(*gputest.Queue)
	queue.FailSubmit = errors.New("device lost")

	commandBuffer, err := command.RecordOneTime(device, pool, func(commandBuffer core1_0.CommandBuffer) error { return nil })
	require.NoError(t, err)

	err = command.SubmitAndWait(device, queue, commandBuffer, command.SubmitOptions{})
	require.Error(t, err)
	require.Equal(t, 1, device.Fences[0].DestroyCount)
	require.Equal(t, 0, pool.(*gputest.CommandPool).LiveCommandBuffers())
}
