package renderer_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/deletion"
	"github.com/vkngwrapper/hearth/internal/gputest"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure/mocks"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/renderer"
	"github.com/vkngwrapper/hearth/resource"
	"go.uber.org/mock/gomock"
)

var families = command.QueueFamilyIndices{
	Graphics: 0,
	Compute:  0,
	Transfer: 1,
	Present:  0,
}

func readyRenderer(t *testing.T, extension khr_acceleration_structure.Extension) (*gputest.Device, *gputest.Memory, *renderer.Renderer) {
	device := gputest.NewDevice()
	memory := gputest.NewMemory()

	r, err := renderer.New(renderer.Bootstrap{
		Device:                device,
		QueueFamilies:         families,
		MemoryAllocator:       memory,
		AccelerationStructure: extension,
		AccelerationStructureProperties: khr_acceleration_structure.PhysicalDeviceProperties{
			MinAccelerationStructureScratchOffsetAlignment: 128,
		},
		BufferDeviceAddress: device,
	}, renderer.Options{Logger: gputest.Logger()})
	require.NoError(t, err)

	return device, memory, r
}

func fakeExtension(t *testing.T) *mocks.MockExtension {
	extension := mocks.NewMockExtension(gomock.NewController(t))
	next := khr_acceleration_structure.AccelerationStructure(1)

	extension.EXPECT().GetAccelerationStructureBuildSizes(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		khr_acceleration_structure.BuildSizesInfo{AccelerationStructureSize: 2048, BuildScratchSize: 512}, nil).AnyTimes()
	extension.EXPECT().CreateAccelerationStructure(gomock.Any(), gomock.Any()).DoAndReturn(
		func(callbacks *driver.AllocationCallbacks, o khr_acceleration_structure.CreateInfo) (khr_acceleration_structure.AccelerationStructure, common.VkResult, error) {
			structure := next
			next++
			return structure, core1_0.VKSuccess, nil
		}).AnyTimes()
	extension.EXPECT().GetAccelerationStructureDeviceAddress(gomock.Any()).DoAndReturn(
		func(o khr_acceleration_structure.DeviceAddressInfo) uint64 {
			return uint64(o.AccelerationStructure) << 20
		}).AnyTimes()
	extension.EXPECT().CmdBuildAccelerationStructures(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return extension
}

var triangle = []layout.Vertex{
	{Position: [3]float32{0, 1, 0}},
	{Position: [3]float32{-1, -1, 0}},
	{Position: [3]float32{1, -1, 0}},
}

var triangleIndices = []layout.Index{0, 1, 2}

func TestNewAndDestroy(t *testing.T) {
	device, memory, r := readyRenderer(t, nil)

	require.Len(t, device.Semaphores, 2)
	require.Len(t, device.Fences, 1)
	require.True(t, device.Fences[0].Signalled)
	require.Len(t, device.CommandPools, 2)
	require.Same(t, r.Queues().Graphics(), r.Queues().Present())

	require.NoError(t, r.Destroy())

	for _, semaphore := range device.Semaphores {
		require.Equal(t, 1, semaphore.DestroyCount)
	}
	require.Equal(t, 1, device.Fences[0].DestroyCount)
	for _, pool := range device.CommandPools {
		require.Equal(t, 1, pool.DestroyCount)
	}
	require.False(t, device.Destroyed)
	require.Equal(t, 0, memory.Outstanding())

	require.ErrorIs(t, r.Destroy(), renderer.ErrDestroyed)
}

func TestOwnsDevice(t *testing.T) {
	device := gputest.NewDevice()

	r, err := renderer.New(renderer.Bootstrap{
		Device:              device,
		QueueFamilies:       families,
		MemoryAllocator:     gputest.NewMemory(),
		BufferDeviceAddress: device,
		OwnsDevice:          true,
	}, renderer.Options{Logger: gputest.Logger()})
	require.NoError(t, err)

	require.NoError(t, r.Destroy())
	require.True(t, device.Destroyed)
}

func TestNewFailureTearsDown(t *testing.T) {
	device := gputest.NewDevice()

	_, err := renderer.New(renderer.Bootstrap{
		Device:          device,
		QueueFamilies:   families,
		MemoryAllocator: gputest.NewMemory(),
		AccelerationStructureProperties: khr_acceleration_structure.PhysicalDeviceProperties{
			MinAccelerationStructureScratchOffsetAlignment: 100,
		},
		OwnsDevice: true,
	}, renderer.Options{Logger: gputest.Logger()})
	require.Error(t, err)

	for _, pool := range device.CommandPools {
		require.Equal(t, 1, pool.DestroyCount)
	}
	require.True(t, device.Destroyed)
}

func TestMeshLifecycle(t *testing.T) {
	device, memory, r := readyRenderer(t, fakeExtension(t))

	mesh, err := r.CreateMesh(triangle, triangleIndices, []layout.SubMesh{{VertexCount: 3, IndexCount: 3}})
	require.NoError(t, err)
	require.Equal(t, 1, r.Store().Len())
	require.Equal(t, 3*layout.VertexStride, mesh.VertexBuffer.Size)
	require.Equal(t, 2, r.Allocator().Outstanding())

	// Staging buffers are already gone
	require.Len(t, device.Queue(1).Submissions, 1)

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, r.Allocator().Outstanding())
	require.Equal(t, 0, memory.Outstanding())
	require.Equal(t, 0, memory.DoubleFrees)
}

func TestCreateMeshInvalidSubMesh(t *testing.T) {
	_, memory, r := readyRenderer(t, nil)

	_, err := r.CreateMesh(triangle, triangleIndices, []layout.SubMesh{{VertexCount: 4, IndexCount: 3}})
	require.Error(t, err)
	require.Equal(t, 0, r.Store().Len())
	require.Equal(t, 0, r.Allocator().Outstanding())
	require.Equal(t, 0, memory.Outstanding())

	require.NoError(t, r.Destroy())
}

func TestCreateMeshSubmitFailure(t *testing.T) {
	device, memory, r := readyRenderer(t, nil)
	device.Queue(1).FailSubmit = errors.New("device lost")

	mesh, err := r.CreateMesh(triangle, triangleIndices, []layout.SubMesh{{VertexCount: 3, IndexCount: 3}})
	require.Error(t, err)
	require.Nil(t, mesh)

	require.Equal(t, 0, r.Store().Len())
	_, ok := r.Store().VertexBuffer(0)
	require.False(t, ok)
	_, ok = r.Store().IndexBuffer(0)
	require.False(t, ok)
	require.Equal(t, 0, r.Allocator().Outstanding())

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, memory.Outstanding())
	require.Equal(t, 0, memory.DoubleFrees)
}

func TestCreateBufferSubmitFailure(t *testing.T) {
	device, memory, r := readyRenderer(t, nil)
	device.Queue(1).FailSubmit = errors.New("device lost")

	vertices, err := r.CreateVertexBuffer(triangle)
	require.Error(t, err)
	require.True(t, vertices.IsNull())
	require.Equal(t, resource.BufferHandle{}, vertices)

	indices, err := r.CreateIndexBuffer(triangleIndices)
	require.Error(t, err)
	require.Equal(t, resource.BufferHandle{}, indices)

	require.Equal(t, 0, r.Allocator().Outstanding())

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, memory.Outstanding())
}

func TestSingleTriangleRayTracing(t *testing.T) {
	extension := fakeExtension(t)
	_, memory, r := readyRenderer(t, extension)

	mesh, err := r.CreateMesh(triangle, triangleIndices, []layout.SubMesh{{VertexStart: 0, VertexCount: 3, IndexStart: 0, IndexCount: 3}})
	require.NoError(t, err)

	blases, err := r.CreateBLAS(r.Store().Meshes(), khr_acceleration_structure.BuildPreferFastTrace)
	require.NoError(t, err)
	require.Len(t, blases, 1)
	require.Equal(t, mesh.ID, blases[0].Mesh)

	tlas, err := r.CreateTLAS(blases, khr_acceleration_structure.BuildPreferFastTrace)
	require.NoError(t, err)
	require.Len(t, tlas.Instances(), 1)
	require.Equal(t, blases[0].Address, tlas.Instances()[0].AccelerationStructureReference)

	extension.EXPECT().DestroyAccelerationStructure(tlas.Structure, gomock.Any())
	extension.EXPECT().DestroyAccelerationStructure(blases[0].Structure, gomock.Any())

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, memory.Outstanding())
	require.Equal(t, 0, memory.DoubleFrees)
}

func TestAccelerationStructuresDisabled(t *testing.T) {
	_, _, r := readyRenderer(t, nil)

	_, err := r.CreateBLAS(nil, 0)
	require.ErrorIs(t, err, renderer.ErrNoAccelerationStructures)

	_, err = r.CreateTLAS(nil, 0)
	require.ErrorIs(t, err, renderer.ErrNoAccelerationStructures)

	require.NoError(t, r.Destroy())
}

func TestFreeBufferOnExit(t *testing.T) {
	_, memory, r := readyRenderer(t, nil)

	vertices, err := r.CreateVertexBuffer(triangle)
	require.NoError(t, err)
	indices, err := r.CreateIndexBuffer(triangleIndices)
	require.NoError(t, err)

	require.NoError(t, r.FreeBufferOnExit(vertices))
	require.NoError(t, r.FreeBuffer(indices))
	require.Equal(t, 1, r.Allocator().Outstanding())

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, memory.Outstanding())
}

func TestFreeMeshOnExit(t *testing.T) {
	_, memory, r := readyRenderer(t, nil)

	mesh, err := r.CreateMesh(triangle, triangleIndices, []layout.SubMesh{{VertexCount: 3, IndexCount: 3}})
	require.NoError(t, err)

	require.NoError(t, r.FreeMeshOnExit(mesh.ID))
	require.Equal(t, 0, r.Store().Len())
	require.Equal(t, 2, r.Allocator().Outstanding())

	require.NoError(t, r.Destroy())
	require.Equal(t, 0, memory.Outstanding())
	require.Equal(t, 0, memory.DoubleFrees)
}

func TestRegisterMainDeletion(t *testing.T) {
	_, _, r := readyRenderer(t, nil)

	var outstandingAtRun = -1
	require.NoError(t, r.RegisterMainDeletion(deletion.Func{
		Name: "swapchain",
		Fn: func() error {
			outstandingAtRun = r.Allocator().Outstanding()
			return nil
		},
	}))

	vertices, err := r.CreateVertexBuffer(triangle)
	require.NoError(t, err)
	require.NoError(t, r.FreeBufferOnExit(vertices))

	failure := errors.New("swapchain already gone")
	require.NoError(t, r.RegisterMainDeletion(deletion.Func{
		Name: "debug messenger",
		Fn:   func() error { return failure },
	}))

	// Main deletions run after every buffer is freed, and a failing one does not stop the rest
	err = r.Destroy()
	require.ErrorIs(t, err, failure)
	require.Equal(t, 0, outstandingAtRun)
}

func TestUseAfterDestroy(t *testing.T) {
	_, _, r := readyRenderer(t, nil)
	require.NoError(t, r.Destroy())

	_, err := r.StartTransfer()
	require.ErrorIs(t, err, renderer.ErrDestroyed)
	_, err = r.CreateVertexBuffer(triangle)
	require.ErrorIs(t, err, renderer.ErrDestroyed)
	_, err = r.CreateMesh(triangle, triangleIndices, nil)
	require.ErrorIs(t, err, renderer.ErrDestroyed)
	require.ErrorIs(t, r.FreeBuffer(resource.BufferHandle{}), renderer.ErrDestroyed)
	require.ErrorIs(t, r.FreeBufferOnExit(resource.BufferHandle{}), renderer.ErrDestroyed)
	require.ErrorIs(t, r.RegisterMainDeletion(deletion.Func{Name: "late"}), renderer.ErrDestroyed)

	_, err = r.RenderAndPresent(&presenter{}, nil)
	require.ErrorIs(t, err, renderer.ErrDestroyed)
}
