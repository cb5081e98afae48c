// Package store keeps track of the vertex and index buffers uploaded for rendering and of the
// meshes built from them.
package store

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/vkngwrapper/hearth/deletion"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/resource"
	"golang.org/x/exp/slog"
)

var (
	// ErrInvalidSubMesh is returned when a sub mesh range does not fit in its mesh's buffers
	ErrInvalidSubMesh = errors.New("sub mesh out of range")
	// ErrUnknownMesh is returned for mesh IDs that are not in the store
	ErrUnknownMesh = errors.New("unknown mesh")
)

// Mesh is a vertex buffer and an index buffer along with the ranges of them that make up each
// sub mesh. A mesh owns its buffers.
type Mesh struct {
	ID           uuid.UUID
	VertexBuffer resource.BufferHandle
	IndexBuffer  resource.BufferHandle
	SubMeshes    []layout.SubMesh

	// VertexSlot and IndexSlot are the buffers' positions in the store's registration lists
	VertexSlot int
	IndexSlot  int
}

func (m *Mesh) VertexCount() int {
	return m.VertexBuffer.Size / layout.VertexStride
}

func (m *Mesh) IndexCount() int {
	return m.IndexBuffer.Size / layout.IndexStride
}

type Store struct {
	logger *slog.Logger

	mutex         sync.RWMutex
	vertexBuffers []resource.BufferHandle
	indexBuffers  []resource.BufferHandle
	meshes        *swiss.Map[uuid.UUID, *Mesh]
	order         []uuid.UUID
}

func New(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		meshes: swiss.NewMap[uuid.UUID, *Mesh](16),
	}
}

// RegisterVertexBuffer records a vertex buffer and returns its slot. Registration does not
// transfer ownership.
func (s *Store) RegisterVertexBuffer(handle resource.BufferHandle) int {
	s.logger.Debug("Store::RegisterVertexBuffer", slog.String("id", handle.ID.String()))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.vertexBuffers = append(s.vertexBuffers, handle)
	return len(s.vertexBuffers) - 1
}

// RegisterIndexBuffer records an index buffer and returns its slot. Registration does not
// transfer ownership.
func (s *Store) RegisterIndexBuffer(handle resource.BufferHandle) int {
	s.logger.Debug("Store::RegisterIndexBuffer", slog.String("id", handle.ID.String()))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.indexBuffers = append(s.indexBuffers, handle)
	return len(s.indexBuffers) - 1
}

// VertexBuffer returns the buffer registered at slot. Slots released by RemoveMesh report false.
func (s *Store) VertexBuffer(slot int) (resource.BufferHandle, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if slot < 0 || slot >= len(s.vertexBuffers) || s.vertexBuffers[slot].IsNull() {
		return resource.BufferHandle{}, false
	}
	return s.vertexBuffers[slot], true
}

// IndexBuffer returns the buffer registered at slot. Slots released by RemoveMesh report false.
func (s *Store) IndexBuffer(slot int) (resource.BufferHandle, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if slot < 0 || slot >= len(s.indexBuffers) || s.indexBuffers[slot].IsNull() {
		return resource.BufferHandle{}, false
	}
	return s.indexBuffers[slot], true
}

// CreateMesh registers both buffers and creates a mesh that owns them. Every sub mesh must be
// non-empty and lie within the buffers.
func (s *Store) CreateMesh(vertices, indices resource.BufferHandle, subMeshes []layout.SubMesh) (*Mesh, error) {
	s.logger.Debug("Store::CreateMesh", slog.Int("subMeshes", len(subMeshes)))

	vertexCount := vertices.Size / layout.VertexStride
	indexCount := indices.Size / layout.IndexStride

	for i, subMesh := range subMeshes {
		if subMesh.VertexStart < 0 || subMesh.VertexCount <= 0 || subMesh.VertexStart+subMesh.VertexCount > vertexCount {
			return nil, errors.Wrapf(ErrInvalidSubMesh, "sub mesh %d covers vertices [%d, %d) of %d", i, subMesh.VertexStart, subMesh.VertexStart+subMesh.VertexCount, vertexCount)
		}

		if subMesh.IndexStart < 0 || subMesh.IndexCount <= 0 || subMesh.IndexStart+subMesh.IndexCount > indexCount {
			return nil, errors.Wrapf(ErrInvalidSubMesh, "sub mesh %d covers indices [%d, %d) of %d", i, subMesh.IndexStart, subMesh.IndexStart+subMesh.IndexCount, indexCount)
		}
	}

	mesh := &Mesh{
		ID:           uuid.New(),
		VertexBuffer: vertices,
		IndexBuffer:  indices,
		SubMeshes:    append([]layout.SubMesh(nil), subMeshes...),
		VertexSlot:   s.RegisterVertexBuffer(vertices),
		IndexSlot:    s.RegisterIndexBuffer(indices),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.meshes.Put(mesh.ID, mesh)
	s.order = append(s.order, mesh.ID)

	return mesh, nil
}

func (s *Store) Mesh(id uuid.UUID) (*Mesh, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.meshes.Get(id)
}

// Meshes lists every mesh in creation order
func (s *Store) Meshes() []*Mesh {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	meshes := make([]*Mesh, 0, len(s.order))
	for _, id := range s.order {
		mesh, _ := s.meshes.Get(id)
		meshes = append(meshes, mesh)
	}

	return meshes
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.meshes.Count()
}

// RemoveMesh takes a mesh out of the store and hands ownership of its buffers to the caller.
// The mesh's registration slots are released; other slots keep their positions.
func (s *Store) RemoveMesh(id uuid.UUID) (*Mesh, bool) {
	s.logger.Debug("Store::RemoveMesh", slog.String("id", id.String()))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.removeMesh(id)
}

func (s *Store) removeMesh(id uuid.UUID) (*Mesh, bool) {
	mesh, ok := s.meshes.Get(id)
	if !ok {
		return nil, false
	}

	s.meshes.Delete(id)
	s.vertexBuffers[mesh.VertexSlot] = resource.BufferHandle{}
	s.indexBuffers[mesh.IndexSlot] = resource.BufferHandle{}
	for i, orderID := range s.order {
		if orderID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return mesh, true
}

// FreeMeshOnExit removes a mesh and defers freeing its buffers to queue
func (s *Store) FreeMeshOnExit(id uuid.UUID, queue *deletion.Queue) error {
	s.logger.Debug("Store::FreeMeshOnExit", slog.String("id", id.String()))

	mesh, ok := s.RemoveMesh(id)
	if !ok {
		return errors.Wrapf(ErrUnknownMesh, "cannot free mesh %s", id)
	}

	queue.Push(deletion.FreeBuffer{Buffer: mesh.VertexBuffer})
	queue.Push(deletion.FreeBuffer{Buffer: mesh.IndexBuffer})

	return nil
}

// FreeAllOnExit removes every mesh and defers freeing their buffers to queue
func (s *Store) FreeAllOnExit(queue *deletion.Queue) {
	s.logger.Debug("Store::FreeAllOnExit")

	s.mutex.Lock()
	ids := append([]uuid.UUID(nil), s.order...)
	var meshes []*Mesh
	for _, id := range ids {
		mesh, _ := s.removeMesh(id)
		meshes = append(meshes, mesh)
	}
	s.mutex.Unlock()

	for _, mesh := range meshes {
		queue.Push(deletion.FreeBuffer{Buffer: mesh.VertexBuffer})
		queue.Push(deletion.FreeBuffer{Buffer: mesh.IndexBuffer})
	}
}
