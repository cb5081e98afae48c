package layout

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/common"
)

// GeometryInstanceFlags modify how a single top-level instance is traced
type GeometryInstanceFlags int32

var geometryInstanceFlagsMapping = common.NewFlagStringMapping[GeometryInstanceFlags]()

func (f GeometryInstanceFlags) Register(str string) {
	geometryInstanceFlagsMapping.Register(f, str)
}
func (f GeometryInstanceFlags) String() string {
	return geometryInstanceFlagsMapping.FlagsToString(f)
}

const (
	// GeometryInstanceTriangleFacingCullDisable disables face culling for the instance
	GeometryInstanceTriangleFacingCullDisable GeometryInstanceFlags = 1 << iota
	// GeometryInstanceTriangleFlipFacing inverts the facing determination for the instance
	GeometryInstanceTriangleFlipFacing
	// GeometryInstanceForceOpaque treats every geometry of the instance as opaque
	GeometryInstanceForceOpaque
	// GeometryInstanceForceNoOpaque treats every geometry of the instance as non-opaque
	GeometryInstanceForceNoOpaque
)

func init() {
	GeometryInstanceTriangleFacingCullDisable.Register("GeometryInstanceTriangleFacingCullDisable")
	GeometryInstanceTriangleFlipFacing.Register("GeometryInstanceTriangleFlipFacing")
	GeometryInstanceForceOpaque.Register("GeometryInstanceForceOpaque")
	GeometryInstanceForceNoOpaque.Register("GeometryInstanceForceNoOpaque")
}

const (
	instanceCustomIndexMask uint32 = 0x00ffffff
	instanceHighByteShift          = 24
)

// Instance is the 64-byte record a top-level acceleration structure build reads for every
// instance: a row-major 3x4 transform, a 24-bit custom index packed with an 8-bit mask, a
// 24-bit shader binding table offset packed with 8 bits of GeometryInstanceFlags, and the
// device address of the referenced bottom-level structure.
type Instance struct {
	Transform                        [12]float32
	CustomIndexAndMask               uint32
	ShaderBindingTableOffsetAndFlags uint32
	AccelerationStructureReference   uint64
}

// InstanceStride is the size in bytes of a single Instance
const InstanceStride int = int(unsafe.Sizeof(Instance{}))

// IdentityTransform is the row-major 3x4 identity matrix
var IdentityTransform = [12]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
}

// NewInstance packs an instance record. customIndex and sbtOffset are truncated to 24 bits.
func NewInstance(transform [12]float32, customIndex uint32, mask uint8, sbtOffset uint32, flags GeometryInstanceFlags, reference uint64) Instance {
	return Instance{
		Transform:                        transform,
		CustomIndexAndMask:               customIndex&instanceCustomIndexMask | uint32(mask)<<instanceHighByteShift,
		ShaderBindingTableOffsetAndFlags: sbtOffset&instanceCustomIndexMask | uint32(flags)<<instanceHighByteShift,
		AccelerationStructureReference:   reference,
	}
}

func (i Instance) CustomIndex() uint32 {
	return i.CustomIndexAndMask & instanceCustomIndexMask
}

func (i Instance) Mask() uint8 {
	return uint8(i.CustomIndexAndMask >> instanceHighByteShift)
}

func (i Instance) ShaderBindingTableOffset() uint32 {
	return i.ShaderBindingTableOffsetAndFlags & instanceCustomIndexMask
}

func (i Instance) Flags() GeometryInstanceFlags {
	return GeometryInstanceFlags(i.ShaderBindingTableOffsetAndFlags >> instanceHighByteShift)
}

// InstanceBytes reinterprets an instance slice as its raw bytes without copying
func InstanceBytes(instances []Instance) []byte {
	if len(instances) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&instances[0])), len(instances)*InstanceStride)
}
