package khr_acceleration_structure

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ExtensionName is "VK_KHR_acceleration_structure"
const ExtensionName string = "VK_KHR_acceleration_structure"

// AccelerationStructure is an opaque acceleration structure handle
type AccelerationStructure uint64

// NullAccelerationStructure is the zero handle
const NullAccelerationStructure AccelerationStructure = 0

// Type distinguishes top-level from bottom-level acceleration structures
type Type int32

var typeMapping = make(map[Type]string)

func (e Type) Register(str string) {
	typeMapping[e] = str
}

func (e Type) String() string {
	return typeMapping[e]
}

// BuildType selects whether a build runs on the host or the device
type BuildType int32

var buildTypeMapping = make(map[BuildType]string)

func (e BuildType) Register(str string) {
	buildTypeMapping[e] = str
}

func (e BuildType) String() string {
	return buildTypeMapping[e]
}

// BuildMode selects between a fresh build and an in-place update
type BuildMode int32

var buildModeMapping = make(map[BuildMode]string)

func (e BuildMode) Register(str string) {
	buildModeMapping[e] = str
}

func (e BuildMode) String() string {
	return buildModeMapping[e]
}

// GeometryType identifies which member of Geometry.Data is populated
type GeometryType int32

var geometryTypeMapping = make(map[GeometryType]string)

func (e GeometryType) Register(str string) {
	geometryTypeMapping[e] = str
}

func (e GeometryType) String() string {
	return geometryTypeMapping[e]
}

// BuildFlags tune an acceleration structure build
type BuildFlags int32

var buildFlagsMapping = common.NewFlagStringMapping[BuildFlags]()

func (f BuildFlags) Register(str string) {
	buildFlagsMapping.Register(f, str)
}
func (f BuildFlags) String() string {
	return buildFlagsMapping.FlagsToString(f)
}

// GeometryFlags modify how a single geometry is traced
type GeometryFlags int32

var geometryFlagsMapping = common.NewFlagStringMapping[GeometryFlags]()

func (f GeometryFlags) Register(str string) {
	geometryFlagsMapping.Register(f, str)
}
func (f GeometryFlags) String() string {
	return geometryFlagsMapping.FlagsToString(f)
}

const (
	TypeTopLevel    Type = 0
	TypeBottomLevel Type = 1
	TypeGeneric     Type = 2

	BuildTypeHost         BuildType = 0
	BuildTypeDevice       BuildType = 1
	BuildTypeHostOrDevice BuildType = 2

	BuildModeBuild  BuildMode = 0
	BuildModeUpdate BuildMode = 1

	GeometryTypeTriangles GeometryType = 0
	GeometryTypeAABBs     GeometryType = 1
	GeometryTypeInstances GeometryType = 2

	BuildAllowUpdate     BuildFlags = 0x00000001
	BuildAllowCompaction BuildFlags = 0x00000002
	BuildPreferFastTrace BuildFlags = 0x00000004
	BuildPreferFastBuild BuildFlags = 0x00000008
	BuildLowMemory       BuildFlags = 0x00000010

	GeometryOpaque                      GeometryFlags = 0x00000001
	GeometryNoDuplicateAnyHitInvocation GeometryFlags = 0x00000002

	// PipelineStageAccelerationStructureBuild is the pipeline stage acceleration structure builds execute in
	PipelineStageAccelerationStructureBuild core1_0.PipelineStageFlags = 0x02000000
	// AccessAccelerationStructureRead covers reads of acceleration structures and their build inputs
	AccessAccelerationStructureRead core1_0.AccessFlags = 0x00200000
	// AccessAccelerationStructureWrite covers writes to acceleration structures during a build
	AccessAccelerationStructureWrite core1_0.AccessFlags = 0x00400000

	// BufferUsageAccelerationStructureBuildInputReadOnly allows a buffer to be read as build geometry
	BufferUsageAccelerationStructureBuildInputReadOnly core1_0.BufferUsageFlags = 0x00080000
	// BufferUsageAccelerationStructureStorage allows a buffer to back an acceleration structure
	BufferUsageAccelerationStructureStorage core1_0.BufferUsageFlags = 0x00100000
)

func init() {
	TypeTopLevel.Register("Top Level")
	TypeBottomLevel.Register("Bottom Level")
	TypeGeneric.Register("Generic")

	BuildTypeHost.Register("Host")
	BuildTypeDevice.Register("Device")
	BuildTypeHostOrDevice.Register("Host Or Device")

	BuildModeBuild.Register("Build")
	BuildModeUpdate.Register("Update")

	GeometryTypeTriangles.Register("Triangles")
	GeometryTypeAABBs.Register("AABBs")
	GeometryTypeInstances.Register("Instances")

	BuildAllowUpdate.Register("BuildAllowUpdate")
	BuildAllowCompaction.Register("BuildAllowCompaction")
	BuildPreferFastTrace.Register("BuildPreferFastTrace")
	BuildPreferFastBuild.Register("BuildPreferFastBuild")
	BuildLowMemory.Register("BuildLowMemory")

	GeometryOpaque.Register("GeometryOpaque")
	GeometryNoDuplicateAnyHitInvocation.Register("GeometryNoDuplicateAnyHitInvocation")
}

// GeometryTrianglesData describes indexed triangle geometry living in device-addressable buffers
type GeometryTrianglesData struct {
	VertexFormat  core1_0.Format
	VertexData    uint64
	VertexStride  int
	MaxVertex     int
	IndexType     core1_0.IndexType
	IndexData     uint64
	TransformData uint64
}

// GeometryInstancesData points at a tightly-packed array of instance records
type GeometryInstancesData struct {
	ArrayOfPointers bool
	Data            uint64
}

// Geometry is a single geometry of a build. Triangles is read when Type is
// GeometryTypeTriangles and Instances when Type is GeometryTypeInstances.
type Geometry struct {
	Type      GeometryType
	Flags     GeometryFlags
	Triangles GeometryTrianglesData
	Instances GeometryInstancesData
}

type BuildGeometryInfo struct {
	Type                     Type
	Flags                    BuildFlags
	Mode                     BuildMode
	SrcAccelerationStructure AccelerationStructure
	DstAccelerationStructure AccelerationStructure
	Geometries               []Geometry
	ScratchData              uint64
}

// BuildRangeInfo selects the primitives of one geometry to build
type BuildRangeInfo struct {
	PrimitiveCount  int
	PrimitiveOffset int
	FirstVertex     int
	TransformOffset int
}

type BuildSizesInfo struct {
	AccelerationStructureSize int
	UpdateScratchSize         int
	BuildScratchSize          int
}

type CreateInfo struct {
	Buffer        core1_0.Buffer
	Offset        int
	Size          int
	Type          Type
	DeviceAddress uint64
}

type DeviceAddressInfo struct {
	AccelerationStructure AccelerationStructure
}

// PhysicalDeviceProperties holds the limits relevant to building acceleration structures
type PhysicalDeviceProperties struct {
	MaxGeometryCount                               uint64
	MaxInstanceCount                               uint64
	MaxPrimitiveCount                              uint64
	MinAccelerationStructureScratchOffsetAlignment int
}
