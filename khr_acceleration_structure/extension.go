// Package khr_acceleration_structure describes the VK_KHR_acceleration_structure entry points
// this module builds ray tracing acceleration structures with. The function table is supplied
// by whatever bootstraps the device, in the same shape the vkngwrapper extension packages use.
package khr_acceleration_structure

//go:generate mockgen -source extension.go -destination ./mocks/extension.go -package mocks

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// Extension is the set of VK_KHR_acceleration_structure commands used by the builder
type Extension interface {
	// GetAccelerationStructureBuildSizes returns the storage and scratch sizes required to build
	// info, where maxPrimitiveCounts holds one primitive count per geometry
	GetAccelerationStructureBuildSizes(buildType BuildType, info BuildGeometryInfo, maxPrimitiveCounts []int) (BuildSizesInfo, error)
	CreateAccelerationStructure(allocationCallbacks *driver.AllocationCallbacks, o CreateInfo) (AccelerationStructure, common.VkResult, error)
	DestroyAccelerationStructure(accelerationStructure AccelerationStructure, allocationCallbacks *driver.AllocationCallbacks)
	GetAccelerationStructureDeviceAddress(o DeviceAddressInfo) uint64
	// CmdBuildAccelerationStructures records one build per entry in infos; buildRanges must
	// hold one range slice per info, with one range per geometry
	CmdBuildAccelerationStructures(commandBuffer core1_0.CommandBuffer, infos []BuildGeometryInfo, buildRanges [][]BuildRangeInfo) error
}
