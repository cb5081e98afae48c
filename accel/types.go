// Package accel builds ray tracing acceleration structures: one bottom-level structure per
// mesh, and a top-level structure instancing a set of bottom-level structures.
package accel

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/resource"
)

// ErrEmptyBuild is returned when a build is requested with nothing to build
var ErrEmptyBuild = errors.New("nothing to build")

// AsData is a built acceleration structure along with the buffer backing it
type AsData struct {
	Structure khr_acceleration_structure.AccelerationStructure
	Buffer    resource.BufferHandle
	// Address is the device address instances use to reference the structure
	Address uint64
	Level   khr_acceleration_structure.Type
}

// BLAS is a bottom-level acceleration structure over the sub meshes of one mesh
type BLAS struct {
	AsData
	Mesh uuid.UUID
}

// TLAS is a top-level acceleration structure over a set of BLASes
type TLAS struct {
	AsData
	instances []layout.Instance
}

// Instances returns the instance records the TLAS was built from. Instance i references the
// i-th BLAS passed to the build.
func (t *TLAS) Instances() []layout.Instance {
	return t.instances
}
