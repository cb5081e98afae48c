package accel

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/deletion"
	"github.com/vkngwrapper/hearth/internal/utils"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/resource"
	"github.com/vkngwrapper/hearth/transfer"
	"golang.org/x/exp/slog"
)

type BuilderDeps struct {
	Logger    *slog.Logger
	Device    core1_0.Device
	Allocator *resource.Allocator
	Queues    *command.DeviceQueues
	Extension khr_acceleration_structure.Extension
	// AllocQueue receives the destruction of every structure the builder creates
	AllocQueue *deletion.Queue
	// Transfer starts the transfer context used to upload instance records
	Transfer  func() *transfer.Context
	Callbacks *driver.AllocationCallbacks
}

type Builder struct {
	deps BuilderDeps
}

func NewBuilder(deps BuilderDeps) *Builder {
	return &Builder{deps: deps}
}

// build is one structure of a batch: its geometry, its sizes, and once allocated, its output
type build struct {
	info   khr_acceleration_structure.BuildGeometryInfo
	ranges []khr_acceleration_structure.BuildRangeInfo
	sizes  khr_acceleration_structure.BuildSizesInfo
	out    AsData
}

func (b *Builder) querySizes(pending *build) error {
	maxPrimitiveCounts := make([]int, 0, len(pending.ranges))
	for _, buildRange := range pending.ranges {
		maxPrimitiveCounts = append(maxPrimitiveCounts, buildRange.PrimitiveCount)
	}

	sizes, err := b.deps.Extension.GetAccelerationStructureBuildSizes(khr_acceleration_structure.BuildTypeDevice, pending.info, maxPrimitiveCounts)
	if err != nil {
		return errors.Wrapf(err, "failed to query %s acceleration structure build sizes", pending.info.Type)
	}

	pending.sizes = sizes
	return nil
}

// allocateScratch allocates a single scratch buffer large enough for the largest build. Builds
// in a batch are serialized by barriers, so they share it.
func (b *Builder) allocateScratch(builds []*build, undo *rollback) (resource.BufferHandle, error) {
	var scratchSize int
	for _, pending := range builds {
		if pending.sizes.BuildScratchSize > scratchSize {
			scratchSize = pending.sizes.BuildScratchSize
		}
	}
	scratchSize = utils.AlignUp(scratchSize, int(b.deps.Allocator.ScratchAlignment()))

	scratch, err := b.deps.Allocator.AllocBuffer(resource.PurposeAccelerationStructureScratch, scratchSize, "acceleration structure scratch")
	if err != nil {
		return resource.BufferHandle{}, errors.Wrap(err, "failed to allocate scratch buffer")
	}
	undo.buffers = append(undo.buffers, scratch)

	address, err := b.deps.Allocator.BufferDeviceAddress(scratch)
	if err != nil {
		return resource.BufferHandle{}, err
	}

	alignment := uint64(b.deps.Allocator.ScratchAlignment())
	if alignment > 0 && address%alignment != 0 {
		return resource.BufferHandle{}, utils.Violation(resource.ErrMisaligned, "scratch address %#x is not aligned to %d", address, alignment)
	}

	for _, pending := range builds {
		pending.info.ScratchData = address
	}

	return scratch, nil
}

// allocateStructure creates the storage buffer and acceleration structure object a build writes to
func (b *Builder) allocateStructure(pending *build, name string, undo *rollback) error {
	storage, err := b.deps.Allocator.AllocBuffer(resource.PurposeAccelerationStructureStorage, pending.sizes.AccelerationStructureSize, name)
	if err != nil {
		return errors.Wrapf(err, "failed to allocate storage for %s", name)
	}
	undo.buffers = append(undo.buffers, storage)

	structure, _, err := b.deps.Extension.CreateAccelerationStructure(b.deps.Callbacks, khr_acceleration_structure.CreateInfo{
		Buffer: storage.Buffer,
		Offset: 0,
		Size:   pending.sizes.AccelerationStructureSize,
		Type:   pending.info.Type,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", name)
	}
	undo.structures = append(undo.structures, structure)

	pending.info.DstAccelerationStructure = structure
	pending.out = AsData{
		Structure: structure,
		Buffer:    storage,
		Address: b.deps.Extension.GetAccelerationStructureDeviceAddress(khr_acceleration_structure.DeviceAddressInfo{
			AccelerationStructure: structure,
		}),
		Level: pending.info.Type,
	}

	return nil
}

// recordAndWait records every build into one command buffer on the compute queue, each build
// followed by a barrier so the next one can reuse the scratch buffer, and waits for it
func (b *Builder) recordAndWait(builds []*build) error {
	queue := b.deps.Queues.Compute()
	if queue == nil {
		return errors.New("no compute queue to build acceleration structures on")
	}

	return queue.RunOneTime(b.deps.Device, b.deps.Callbacks, func(commandBuffer core1_0.CommandBuffer) error {
		for _, pending := range builds {
			err := b.deps.Extension.CmdBuildAccelerationStructures(commandBuffer,
				[]khr_acceleration_structure.BuildGeometryInfo{pending.info},
				[][]khr_acceleration_structure.BuildRangeInfo{pending.ranges})
			if err != nil {
				return errors.Wrap(err, "failed to record acceleration structure build")
			}

			err = commandBuffer.CmdPipelineBarrier(
				khr_acceleration_structure.PipelineStageAccelerationStructureBuild,
				khr_acceleration_structure.PipelineStageAccelerationStructureBuild,
				0,
				[]core1_0.MemoryBarrier{
					{
						SrcAccessMask: khr_acceleration_structure.AccessAccelerationStructureWrite,
						DstAccessMask: khr_acceleration_structure.AccessAccelerationStructureRead,
					},
				}, nil, nil)
			if err != nil {
				return errors.Wrap(err, "failed to record acceleration structure barrier")
			}
		}

		return nil
	})
}

// retire defers the destruction of a finished structure to the alloc queue. The structure is
// destroyed before its storage is freed.
func (b *Builder) retire(out AsData) {
	b.deps.AllocQueue.Push(deletion.FreeBuffer{Buffer: out.Buffer})
	b.deps.AllocQueue.Push(deletion.DestroyAccelerationStructure{Structure: out.Structure})
}

// rollback tracks everything a build call has created so a failed call leaves nothing behind
type rollback struct {
	buffers    []resource.BufferHandle
	structures []khr_acceleration_structure.AccelerationStructure
}

func (r *rollback) forget(handle resource.BufferHandle) {
	for i, buffer := range r.buffers {
		if buffer.ID == handle.ID {
			r.buffers = append(r.buffers[:i], r.buffers[i+1:]...)
			return
		}
	}
}

func (b *Builder) fail(undo *rollback, err error) error {
	for i := len(undo.structures) - 1; i >= 0; i-- {
		b.deps.Extension.DestroyAccelerationStructure(undo.structures[i], b.deps.Callbacks)
	}

	var rollbackErr error
	for i := len(undo.buffers) - 1; i >= 0; i-- {
		rollbackErr = errors.CombineErrors(rollbackErr, b.deps.Allocator.FreeBuffer(undo.buffers[i]))
	}

	if rollbackErr != nil {
		b.deps.Logger.Error("failed to roll back acceleration structure build", slog.Any("error", rollbackErr))
	}

	return err
}
