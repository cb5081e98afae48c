// Package renderer ties the allocator, queues, deletion queues, mesh store, and acceleration
// structure builder together around one device, and drives the per-frame acquire, record,
// submit, and present cycle.
package renderer

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/arsenal/vam"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/accel"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/deletion"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/resource"
	"github.com/vkngwrapper/hearth/store"
	"github.com/vkngwrapper/hearth/transfer"
	"golang.org/x/exp/slog"
)

var (
	// ErrDestroyed is returned by every operation on a renderer that has been destroyed
	ErrDestroyed = errors.New("renderer was destroyed")
	// ErrNoAccelerationStructures is returned by acceleration structure builds when the device
	// was bootstrapped without the acceleration structure extension
	ErrNoAccelerationStructures = errors.New("acceleration structures are not enabled")
	// ErrFrameTimeout is returned when the previous frame does not finish within FenceTimeout
	ErrFrameTimeout = errors.New("timed out waiting for the previous frame")
)

type Renderer struct {
	logger    *slog.Logger
	options   Options
	device    core1_0.Device
	extension khr_acceleration_structure.Extension
	callbacks *driver.AllocationCallbacks

	queues    *command.DeviceQueues
	allocator *resource.Allocator
	store     *store.Store
	builder   *accel.Builder

	// mainDeletion holds device-level objects and is drained last. allocDeletion holds buffers
	// and acceleration structures and is drained before the allocator is destroyed.
	mainDeletion  *deletion.Queue
	allocDeletion *deletion.Queue

	frameMutex     sync.Mutex
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
	// frameCommands is the command buffer of the frame most recently submitted
	frameCommands core1_0.CommandBuffer
	// awaitingFrame is set while inFlight has been reset and handed to a submission that has
	// not been waited on
	awaitingFrame bool

	destroyed atomic.Bool
}

// New creates a renderer around a bootstrapped device. If creation fails, everything created
// so far is destroyed.
func New(bootstrap Bootstrap, options Options) (*Renderer, error) {
	logger, err := options.logger()
	if err != nil {
		return nil, err
	}

	logger.Debug("Renderer::New", slog.Any("queueFamilies", bootstrap.QueueFamilies))

	if bootstrap.Device == nil {
		return nil, errors.New("a device is required")
	}

	r := &Renderer{
		logger:        logger,
		options:       options,
		device:        bootstrap.Device,
		extension:     bootstrap.AccelerationStructure,
		callbacks:     bootstrap.AllocationCallbacks,
		mainDeletion:  deletion.NewQueue("main", logger),
		allocDeletion: deletion.NewQueue("alloc", logger),
	}

	if bootstrap.OwnsDevice {
		r.mainDeletion.Push(deletion.DestroyDevice{Device: bootstrap.Device})
	}

	memory := bootstrap.MemoryAllocator
	if memory == nil {
		var flags vam.CreateFlags
		if options.ExternallySynchronized {
			flags |= vam.AllocatorCreateExternallySynchronized
		}

		created, err := resource.CreateVAM(logger, bootstrap.Instance, bootstrap.PhysicalDevice, bootstrap.Device, vam.CreateOptions{
			Flags:                       flags,
			PreferredLargeHeapBlockSize: options.PreferredLargeHeapBlockSize,
			VulkanCallbacks:             bootstrap.AllocationCallbacks,
		})
		if err != nil {
			return nil, r.abandon(err)
		}
		r.mainDeletion.Push(deletion.Func{Name: "memory allocator", Fn: created.Destroy})
		memory = created
	}

	r.queues, err = command.NewDeviceQueues(logger, bootstrap.Device, bootstrap.QueueFamilies, bootstrap.AllocationCallbacks)
	if err != nil {
		return nil, r.abandon(err)
	}
	r.mainDeletion.Push(deletion.Func{Name: "device queues", Fn: r.queues.Destroy})

	scratchAlignment := uint(bootstrap.AccelerationStructureProperties.MinAccelerationStructureScratchOffsetAlignment)
	if options.ScratchAlignmentOverride > 0 {
		scratchAlignment = options.ScratchAlignmentOverride
	}

	var createFlags resource.CreateFlags
	if options.DebugNames {
		createFlags |= resource.CreateDebugNames
	}
	if options.ExternallySynchronized {
		createFlags |= resource.CreateExternallySynchronized
	}

	r.allocator, err = resource.New(logger, bootstrap.Device, memory, resource.CreateOptions{
		Flags:               createFlags,
		ScratchAlignment:    scratchAlignment,
		AllocationCallbacks: bootstrap.AllocationCallbacks,
		QueueFamilies:       bootstrap.QueueFamilies.UniqueFamilies(),
		BufferDeviceAddress: bootstrap.BufferDeviceAddress,
	})
	if err != nil {
		return nil, r.abandon(err)
	}

	r.store = store.New(logger)
	r.builder = accel.NewBuilder(accel.BuilderDeps{
		Logger:     logger,
		Device:     bootstrap.Device,
		Allocator:  r.allocator,
		Queues:     r.queues,
		Extension:  bootstrap.AccelerationStructure,
		AllocQueue: r.allocDeletion,
		Transfer:   r.startTransfer,
		Callbacks:  bootstrap.AllocationCallbacks,
	})

	err = r.createSyncObjects()
	if err != nil {
		return nil, r.abandon(err)
	}

	return r, nil
}

func (r *Renderer) createSyncObjects() error {
	var err error

	r.imageAvailable, _, err = r.device.CreateSemaphore(r.callbacks, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "failed to create image available semaphore")
	}
	r.mainDeletion.Push(deletion.DestroySemaphore{Semaphore: r.imageAvailable})

	r.renderFinished, _, err = r.device.CreateSemaphore(r.callbacks, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "failed to create render finished semaphore")
	}
	r.mainDeletion.Push(deletion.DestroySemaphore{Semaphore: r.renderFinished})

	r.inFlight, _, err = r.device.CreateFence(r.callbacks, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create in flight fence")
	}
	r.mainDeletion.Push(deletion.DestroyFence{Fence: r.inFlight})

	return nil
}

func (r *Renderer) dispatcher() deletion.Dispatcher {
	return deletion.Dispatcher{
		Allocator: r.allocator,
		Extension: r.extension,
		Callbacks: r.callbacks,
	}
}

// abandon tears down a partially constructed renderer
func (r *Renderer) abandon(err error) error {
	r.destroyed.Store(true)

	var teardownErr error
	if r.allocator != nil {
		teardownErr = r.allocator.Destroy()
	}
	teardownErr = errors.CombineErrors(teardownErr, r.mainDeletion.Drain(r.dispatcher()))

	if teardownErr != nil {
		r.logger.Error("failed to tear down renderer after creation failure", slog.Any("error", teardownErr))
	}

	return err
}

func (r *Renderer) Allocator() *resource.Allocator {
	return r.allocator
}

func (r *Renderer) Store() *store.Store {
	return r.store
}

func (r *Renderer) Queues() *command.DeviceQueues {
	return r.queues
}

// StartTransfer begins a batch of uploads that will execute on the transfer queue
func (r *Renderer) StartTransfer() (*transfer.Context, error) {
	if r.destroyed.Load() {
		return nil, ErrDestroyed
	}

	return r.startTransfer(), nil
}

func (r *Renderer) startTransfer() *transfer.Context {
	return transfer.Start(transfer.Deps{
		Logger:    r.logger,
		Device:    r.device,
		Allocator: r.allocator,
		Queues:    r.queues,
		Callbacks: r.callbacks,
	})
}

// CreateVertexBuffer uploads vertices to a new device-local vertex buffer and waits for the upload
func (r *Renderer) CreateVertexBuffer(vertices []layout.Vertex) (resource.BufferHandle, error) {
	r.logger.Debug("Renderer::CreateVertexBuffer", slog.Int("vertices", len(vertices)))

	uploads, err := r.StartTransfer()
	if err != nil {
		return resource.BufferHandle{}, err
	}

	handle, err := uploads.CreateVertexBuffer(vertices)
	if err != nil {
		return resource.BufferHandle{}, err
	}

	err = uploads.SubmitAndWait()
	if err != nil {
		return resource.BufferHandle{}, err
	}

	return handle, nil
}

// CreateIndexBuffer uploads indices to a new device-local index buffer and waits for the upload
func (r *Renderer) CreateIndexBuffer(indices []layout.Index) (resource.BufferHandle, error) {
	r.logger.Debug("Renderer::CreateIndexBuffer", slog.Int("indices", len(indices)))

	uploads, err := r.StartTransfer()
	if err != nil {
		return resource.BufferHandle{}, err
	}

	handle, err := uploads.CreateIndexBuffer(indices)
	if err != nil {
		return resource.BufferHandle{}, err
	}

	err = uploads.SubmitAndWait()
	if err != nil {
		return resource.BufferHandle{}, err
	}

	return handle, nil
}

// CreateMesh uploads a mesh's vertices and indices in one batch and adds the mesh to the store.
// If the upload fails the mesh is removed again and both buffers are freed.
func (r *Renderer) CreateMesh(vertices []layout.Vertex, indices []layout.Index, subMeshes []layout.SubMesh) (*store.Mesh, error) {
	r.logger.Debug("Renderer::CreateMesh", slog.Int("vertices", len(vertices)), slog.Int("indices", len(indices)))

	uploads, err := r.StartTransfer()
	if err != nil {
		return nil, err
	}

	vertexBuffer, err := uploads.CreateVertexBuffer(vertices)
	if err != nil {
		return nil, err
	}

	indexBuffer, err := uploads.CreateIndexBuffer(indices)
	if err != nil {
		return nil, err
	}

	mesh, err := r.store.CreateMesh(vertexBuffer, indexBuffer, subMeshes)
	if err != nil {
		return nil, errors.CombineErrors(err, uploads.Abort())
	}

	err = uploads.SubmitAndWait()
	if err != nil {
		r.store.RemoveMesh(mesh.ID)
		return nil, err
	}

	return mesh, nil
}

// CreateBLAS builds one bottom-level acceleration structure per mesh
func (r *Renderer) CreateBLAS(meshes []*store.Mesh, flags khr_acceleration_structure.BuildFlags) ([]*accel.BLAS, error) {
	if r.destroyed.Load() {
		return nil, ErrDestroyed
	}

	if r.extension == nil {
		return nil, ErrNoAccelerationStructures
	}

	return r.builder.BuildBLAS(meshes, flags)
}

// CreateTLAS builds a top-level acceleration structure instancing every BLAS once
func (r *Renderer) CreateTLAS(blases []*accel.BLAS, flags khr_acceleration_structure.BuildFlags) (*accel.TLAS, error) {
	if r.destroyed.Load() {
		return nil, ErrDestroyed
	}

	if r.extension == nil {
		return nil, ErrNoAccelerationStructures
	}

	return r.builder.BuildTLAS(blases, flags)
}

// FreeBuffer frees a buffer immediately. The device must no longer be using it.
func (r *Renderer) FreeBuffer(handle resource.BufferHandle) error {
	if r.destroyed.Load() {
		return ErrDestroyed
	}

	return r.allocator.FreeBuffer(handle)
}

// FreeBufferOnExit defers freeing a buffer to renderer teardown
func (r *Renderer) FreeBufferOnExit(handle resource.BufferHandle) error {
	if r.destroyed.Load() {
		return ErrDestroyed
	}

	r.allocDeletion.Push(deletion.FreeBuffer{Buffer: handle})
	return nil
}

// FreeMeshOnExit removes a mesh from the store and defers freeing its buffers to renderer teardown
func (r *Renderer) FreeMeshOnExit(id uuid.UUID) error {
	if r.destroyed.Load() {
		return ErrDestroyed
	}

	return r.store.FreeMeshOnExit(id, r.allocDeletion)
}

// RegisterMainDeletion defers an action to the end of renderer teardown, after every buffer
// has been freed. Objects owned by collaborators, such as the swapchain, are registered here.
func (r *Renderer) RegisterMainDeletion(action deletion.Action) error {
	if r.destroyed.Load() {
		return ErrDestroyed
	}

	r.mainDeletion.Push(action)
	return nil
}

// Destroy waits for the last frame, frees every buffer and acceleration structure registered
// for teardown along with every mesh still in the store, destroys the allocator, and finally
// runs the main deletion queue. Errors do not stop the teardown.
func (r *Renderer) Destroy() error {
	r.logger.Debug("Renderer::Destroy")

	if !r.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}

	r.frameMutex.Lock()
	defer r.frameMutex.Unlock()

	var err error
	if r.awaitingFrame {
		err = errors.Wrap(command.Wait(r.inFlight), "failed to wait for the last frame")
		r.awaitingFrame = false
	}

	if r.frameCommands != nil {
		r.queues.Graphics().Free(r.device, r.frameCommands)
		r.frameCommands = nil
	}

	r.store.FreeAllOnExit(r.allocDeletion)

	err = errors.CombineErrors(err, r.allocDeletion.Drain(r.dispatcher()))
	err = errors.CombineErrors(err, r.allocator.Destroy())
	err = errors.CombineErrors(err, r.mainDeletion.Drain(r.dispatcher()))

	if err != nil {
		r.logger.Error("renderer teardown failed", slog.Any("error", err))
	}

	return err
}
