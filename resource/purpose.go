package resource

import (
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/arsenal/vam"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
)

// Purpose selects the buffer usage flags and memory placement of a new buffer
type Purpose int32

const (
	// PurposeStaging is a host-written transfer source, persistently mapped
	PurposeStaging Purpose = iota
	// PurposeVertex is a device-local vertex buffer that can be read by acceleration structure builds
	PurposeVertex
	// PurposeIndex is a device-local index buffer that can be read by acceleration structure builds
	PurposeIndex
	// PurposeAccelerationStructureStorage backs an acceleration structure object
	PurposeAccelerationStructureStorage
	// PurposeAccelerationStructureScratch is scratch memory for acceleration structure builds. These
	// are suballocated from a pool that honours the device's scratch offset alignment.
	PurposeAccelerationStructureScratch
	// PurposeAccelerationStructureInstance holds the instance records of a top-level build
	PurposeAccelerationStructureInstance
	// PurposeReadback is a host-read transfer destination, persistently mapped
	PurposeReadback

	purposeCount int = iota
)

var purposeMapping = map[Purpose]string{
	PurposeStaging:                       "Staging",
	PurposeVertex:                        "Vertex",
	PurposeIndex:                         "Index",
	PurposeAccelerationStructureStorage:  "AccelerationStructureStorage",
	PurposeAccelerationStructureScratch:  "AccelerationStructureScratch",
	PurposeAccelerationStructureInstance: "AccelerationStructureInstance",
	PurposeReadback:                      "Readback",
}

func (p Purpose) String() string {
	str, ok := purposeMapping[p]
	if !ok {
		return "unknown"
	}
	return str
}

// BufferUsage is the set of usage flags buffers of this purpose are created with
func (p Purpose) BufferUsage() core1_0.BufferUsageFlags {
	switch p {
	case PurposeStaging:
		return core1_0.BufferUsageTransferSrc
	case PurposeVertex:
		return core1_0.BufferUsageVertexBuffer | core1_0.BufferUsageTransferDst |
			khr_buffer_device_address.BufferUsageShaderDeviceAddress |
			khr_acceleration_structure.BufferUsageAccelerationStructureBuildInputReadOnly
	case PurposeIndex:
		return core1_0.BufferUsageIndexBuffer | core1_0.BufferUsageTransferDst |
			khr_buffer_device_address.BufferUsageShaderDeviceAddress |
			khr_acceleration_structure.BufferUsageAccelerationStructureBuildInputReadOnly
	case PurposeAccelerationStructureStorage:
		return khr_acceleration_structure.BufferUsageAccelerationStructureStorage |
			khr_buffer_device_address.BufferUsageShaderDeviceAddress
	case PurposeAccelerationStructureScratch:
		return core1_0.BufferUsageStorageBuffer | khr_buffer_device_address.BufferUsageShaderDeviceAddress
	case PurposeAccelerationStructureInstance:
		return khr_buffer_device_address.BufferUsageShaderDeviceAddress |
			khr_acceleration_structure.BufferUsageAccelerationStructureBuildInputReadOnly |
			core1_0.BufferUsageTransferDst
	case PurposeReadback:
		return core1_0.BufferUsageTransferDst
	}

	return 0
}

// HostAccess reports whether buffers of this purpose are persistently mapped for the host
func (p Purpose) HostAccess() bool {
	return p == PurposeStaging || p == PurposeReadback
}

func (p Purpose) allocationCreateInfo() vam.AllocationCreateInfo {
	switch p {
	case PurposeStaging:
		return vam.AllocationCreateInfo{
			Usage: vam.MemoryUsageAutoPreferHost,
			Flags: memutils.AllocationCreateHostAccessSequentialWrite | memutils.AllocationCreateMapped,
		}
	case PurposeReadback:
		return vam.AllocationCreateInfo{
			Usage: vam.MemoryUsageAutoPreferHost,
			Flags: memutils.AllocationCreateHostAccessRandom | memutils.AllocationCreateMapped,
		}
	}

	return vam.AllocationCreateInfo{
		Usage: vam.MemoryUsageAutoPreferDevice,
	}
}
