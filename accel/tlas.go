package accel

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/layout"
	"golang.org/x/exp/slog"
)

// instanceMask makes every instance visible to every ray
const instanceMask uint8 = 0xff

// BuildTLAS builds a top-level acceleration structure with one untransformed instance per
// BLAS. The instance records are uploaded through a transfer context and freed once the build
// completes.
func (b *Builder) BuildTLAS(blases []*BLAS, flags khr_acceleration_structure.BuildFlags) (*TLAS, error) {
	b.deps.Logger.Debug("Builder::BuildTLAS", slog.Int("blases", len(blases)), slog.String("flags", flags.String()))

	if len(blases) == 0 {
		return nil, errors.Wrap(ErrEmptyBuild, "no BLASes were provided for top-level build")
	}

	instances := make([]layout.Instance, 0, len(blases))
	for i, blas := range blases {
		instances = append(instances, layout.NewInstance(
			layout.IdentityTransform,
			uint32(i),
			instanceMask,
			0,
			layout.GeometryInstanceTriangleFacingCullDisable,
			blas.Address,
		))
	}

	undo := &rollback{}

	uploads := b.deps.Transfer()
	instanceBuffer, err := uploads.CreateInstanceBuffer(instances)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stage instances")
	}

	err = uploads.SubmitAndWait()
	if b.deps.Allocator.IsLive(instanceBuffer) {
		undo.buffers = append(undo.buffers, instanceBuffer)
	}
	if err != nil {
		return nil, b.fail(undo, errors.Wrap(err, "failed to upload instances"))
	}

	instanceAddress, err := b.deps.Allocator.BufferDeviceAddress(instanceBuffer)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	pending := &build{
		info: khr_acceleration_structure.BuildGeometryInfo{
			Type:  khr_acceleration_structure.TypeTopLevel,
			Flags: flags,
			Mode:  khr_acceleration_structure.BuildModeBuild,
			Geometries: []khr_acceleration_structure.Geometry{
				{
					Type: khr_acceleration_structure.GeometryTypeInstances,
					Instances: khr_acceleration_structure.GeometryInstancesData{
						ArrayOfPointers: false,
						Data:            instanceAddress,
					},
				},
			},
		},
		ranges: []khr_acceleration_structure.BuildRangeInfo{
			{PrimitiveCount: len(instances)},
		},
	}

	err = b.querySizes(pending)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	scratch, err := b.allocateScratch([]*build{pending}, undo)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	err = b.allocateStructure(pending, "tlas", undo)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	err = b.recordAndWait([]*build{pending})
	if err != nil {
		return nil, b.fail(undo, err)
	}

	undo.forget(scratch)
	undo.forget(instanceBuffer)
	err = errors.CombineErrors(b.deps.Allocator.FreeBuffer(scratch), b.deps.Allocator.FreeBuffer(instanceBuffer))
	if err != nil {
		return nil, b.fail(undo, err)
	}

	b.retire(pending.out)

	return &TLAS{
		AsData:    pending.out,
		instances: instances,
	}, nil
}
