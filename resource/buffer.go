package resource

import (
	"unsafe"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// BufferHandle is a buffer along with the memory bound to it. Handles are values and may be
// copied freely, but each buffer must be freed exactly once, either with Allocator.FreeBuffer or
// by a deferred deletion action.
type BufferHandle struct {
	Buffer     core1_0.Buffer
	Allocation Allocation
	Purpose    Purpose
	Size       int
	// HostVisible is true when the host may read and write the buffer's memory directly
	HostVisible bool
	// Mapped is the persistent mapping of the buffer's memory, or nil
	Mapped unsafe.Pointer
	ID     uuid.UUID
	Name   string
}

// IsNull is true for the zero handle
func (h BufferHandle) IsNull() bool {
	return h.Buffer == nil
}
