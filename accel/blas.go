package accel

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/store"
	"golang.org/x/exp/slog"
)

// BuildBLAS builds one bottom-level acceleration structure per mesh, with one opaque triangle
// geometry per sub mesh. The BLASes are returned in mesh order, and their destruction is
// registered on the alloc queue.
func (b *Builder) BuildBLAS(meshes []*store.Mesh, flags khr_acceleration_structure.BuildFlags) ([]*BLAS, error) {
	b.deps.Logger.Debug("Builder::BuildBLAS", slog.Int("meshes", len(meshes)), slog.String("flags", flags.String()))

	if len(meshes) == 0 {
		return nil, errors.Wrap(ErrEmptyBuild, "no meshes were provided for bottom-level build")
	}

	builds := make([]*build, 0, len(meshes))
	for _, mesh := range meshes {
		pending, err := b.meshGeometry(mesh, flags)
		if err != nil {
			return nil, err
		}

		err = b.querySizes(pending)
		if err != nil {
			return nil, err
		}

		builds = append(builds, pending)
	}

	undo := &rollback{}

	scratch, err := b.allocateScratch(builds, undo)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	for i, pending := range builds {
		err = b.allocateStructure(pending, "blas "+meshes[i].ID.String(), undo)
		if err != nil {
			return nil, b.fail(undo, err)
		}
	}

	err = b.recordAndWait(builds)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	undo.forget(scratch)
	err = b.deps.Allocator.FreeBuffer(scratch)
	if err != nil {
		return nil, b.fail(undo, err)
	}

	blases := make([]*BLAS, 0, len(builds))
	for i, pending := range builds {
		b.retire(pending.out)
		blases = append(blases, &BLAS{
			AsData: pending.out,
			Mesh:   meshes[i].ID,
		})
	}

	return blases, nil
}

func (b *Builder) meshGeometry(mesh *store.Mesh, flags khr_acceleration_structure.BuildFlags) (*build, error) {
	if len(mesh.SubMeshes) == 0 {
		return nil, errors.Wrapf(ErrEmptyBuild, "mesh %s has no sub meshes", mesh.ID)
	}

	vertexAddress, err := b.deps.Allocator.BufferDeviceAddress(mesh.VertexBuffer)
	if err != nil {
		return nil, err
	}

	indexAddress, err := b.deps.Allocator.BufferDeviceAddress(mesh.IndexBuffer)
	if err != nil {
		return nil, err
	}

	pending := &build{
		info: khr_acceleration_structure.BuildGeometryInfo{
			Type:  khr_acceleration_structure.TypeBottomLevel,
			Flags: flags,
			Mode:  khr_acceleration_structure.BuildModeBuild,
		},
	}

	for _, subMesh := range mesh.SubMeshes {
		pending.info.Geometries = append(pending.info.Geometries, khr_acceleration_structure.Geometry{
			Type:  khr_acceleration_structure.GeometryTypeTriangles,
			Flags: khr_acceleration_structure.GeometryOpaque,
			Triangles: khr_acceleration_structure.GeometryTrianglesData{
				VertexFormat: layout.VertexPositionFormat,
				VertexData:   vertexAddress,
				VertexStride: layout.VertexStride,
				MaxVertex:    subMesh.MaxVertexIndex(),
				IndexType:    layout.IndexType,
				IndexData:    indexAddress,
			},
		})

		// Count and offset are in indices, not triangles and bytes, matching what mesh import hands us
		pending.ranges = append(pending.ranges, khr_acceleration_structure.BuildRangeInfo{
			PrimitiveCount:  subMesh.IndexCount,
			PrimitiveOffset: subMesh.IndexStart,
			FirstVertex:     subMesh.VertexStart,
			TransformOffset: 0,
		})
	}

	return pending, nil
}
