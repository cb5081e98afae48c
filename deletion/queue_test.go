package deletion

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/internal/gputest"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure/mocks"
	"github.com/vkngwrapper/hearth/resource"
	"go.uber.org/mock/gomock"
)

type recordingExecutor struct {
	executed []string
	fail     map[string]error
}

func (e *recordingExecutor) Execute(action Action) error {
	e.executed = append(e.executed, action.String())
	return e.fail[action.String()]
}

func named(name string) Func {
	return Func{Name: name, Fn: func() error { return nil }}
}

func TestDrainLIFO(t *testing.T) {
	queue := NewQueue("alloc", gputest.Logger())
	queue.Push(named("A"))
	queue.Push(named("B"))
	queue.Push(named("C"))
	require.Equal(t, 3, queue.Len())

	executor := &recordingExecutor{}
	require.NoError(t, queue.Drain(executor))

	require.Equal(t, []string{"Func(C)", "Func(B)", "Func(A)"}, executor.executed)
	require.Equal(t, 0, queue.Len())

	require.NoError(t, queue.Drain(executor))
	require.Len(t, executor.executed, 3)
}

func TestPushConcurrently(t *testing.T) {
	queue := NewQueue("main", gputest.Logger())

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				queue.Push(named(fmt.Sprintf("%d-%d", g, i)))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, goroutines*perGoroutine, queue.Len())

	executor := &recordingExecutor{}
	require.NoError(t, queue.Drain(executor))
	require.Len(t, executor.executed, goroutines*perGoroutine)
	require.Contains(t, executor.executed, "Func(7-49)")
	require.Equal(t, 0, queue.Len())
}

func TestDrainContinuesAfterFailure(t *testing.T) {
	queue := NewQueue("main", gputest.Logger())
	queue.Push(named("A"))
	queue.Push(named("B"))
	queue.Push(named("C"))

	errB := errors.New("B failed")
	errA := errors.New("A failed")
	executor := &recordingExecutor{fail: map[string]error{
		"Func(B)": errB,
		"Func(A)": errA,
	}}

	err := queue.Drain(executor)
	require.ErrorIs(t, err, errB)
	require.Contains(t, err.Error(), "Func(B)")
	// later failures ride along as secondary errors
	require.Contains(t, fmt.Sprintf("%+v", err), "A failed")
	require.Equal(t, []string{"Func(C)", "Func(B)", "Func(A)"}, executor.executed)
	require.Equal(t, 0, queue.Len())
}

func TestDispatcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	device := gputest.NewDevice()
	memory := gputest.NewMemory()
	extension := mocks.NewMockExtension(ctrl)

	allocator, err := resource.New(gputest.Logger(), device, memory, resource.CreateOptions{BufferDeviceAddress: device})
	require.NoError(t, err)

	buffer, err := allocator.AllocBuffer(resource.PurposeAccelerationStructureStorage, 256, "")
	require.NoError(t, err)
	fence, _, err := device.CreateFence(nil, core1_0.FenceCreateInfo{})
	require.NoError(t, err)
	semaphore, _, err := device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	require.NoError(t, err)
	pool, _, err := device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{})
	require.NoError(t, err)

	var order []string
	funcRan := 0

	extension.EXPECT().DestroyAccelerationStructure(khr_acceleration_structure.AccelerationStructure(7), gomock.Nil()).Do(
		func(structure khr_acceleration_structure.AccelerationStructure, callbacks interface{}) {
			order = append(order, "structure")
		})

	queue := NewQueue("alloc", gputest.Logger())
	queue.Push(DestroyDevice{Device: device})
	queue.Push(DestroyCommandPool{CommandPool: pool})
	queue.Push(DestroySemaphore{Semaphore: semaphore})
	queue.Push(DestroyFence{Fence: fence})
	queue.Push(FreeBuffer{Buffer: buffer})
	queue.Push(DestroyAccelerationStructure{Structure: 7})
	queue.Push(Func{Name: "collaborator", Fn: func() error {
		funcRan++
		order = append(order, "func")
		return nil
	}})

	require.NoError(t, queue.Drain(Dispatcher{Allocator: allocator, Extension: extension}))

	require.Equal(t, []string{"func", "structure"}, order)
	require.Equal(t, 1, funcRan)
	require.Equal(t, 0, allocator.Outstanding())
	require.Equal(t, 0, memory.Outstanding())
	require.Equal(t, 1, device.Fences[0].DestroyCount)
	require.Equal(t, 1, device.Semaphores[0].DestroyCount)
	require.Equal(t, 1, device.CommandPools[0].DestroyCount)
	require.True(t, device.Destroyed)
}

type unknownAction struct{ Func }

func TestDispatcherUnknownAction(t *testing.T) {
	err := Dispatcher{}.Execute(unknownAction{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown deletion action")

	err = Dispatcher{}.Execute(FreeBuffer{})
	require.Error(t, err)
}
