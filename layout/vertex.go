// Package layout holds the host-side memory layouts that are uploaded to the GPU: mesh
// vertices and indices, the sub-mesh ranges that describe them, and the packed instance
// records consumed by top-level acceleration structure builds.
package layout

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/core1_0"
)

// Vertex is the only vertex layout accepted by the upload and build paths: three float
// position components, three float normal components and two float texture coordinates.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// Index is the mesh index type
type Index uint16

const (
	// VertexStride is the size in bytes of a single Vertex
	VertexStride int = int(unsafe.Sizeof(Vertex{}))
	// IndexStride is the size in bytes of a single Index
	IndexStride int = int(unsafe.Sizeof(Index(0)))

	// VertexPositionFormat is the format of the position attribute, which is the one
	// acceleration structure builds read
	VertexPositionFormat core1_0.Format = core1_0.FormatR32G32B32SignedFloat
	// IndexType is the index type matching Index
	IndexType core1_0.IndexType = core1_0.IndexTypeUInt16
)

// SubMesh is a contiguous range of a mesh's vertex and index buffers
type SubMesh struct {
	VertexStart int
	VertexCount int
	IndexStart  int
	IndexCount  int
}

// MaxVertexIndex is the highest vertex index an acceleration structure build may read for
// this sub mesh
func (s SubMesh) MaxVertexIndex() int {
	return s.IndexStart + s.IndexCount - 1
}

// VertexBytes reinterprets a vertex slice as its raw bytes without copying
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*VertexStride)
}

// IndexBytes reinterprets an index slice as its raw bytes without copying
func IndexBytes(indices []Index) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*IndexStride)
}
