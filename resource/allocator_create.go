package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/google/uuid"
	"github.com/vkngwrapper/arsenal/vam"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/internal/utils"
	"github.com/vkngwrapper/hearth/internal/vulkan"
	"golang.org/x/exp/slog"
)

type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized disables the mutex guarding the allocator's handle registry.
	// Only use it when every call into the allocator is made from one goroutine at a time.
	CreateExternallySynchronized CreateFlags = 1 << iota
	// CreateDebugNames attaches each buffer's name to its allocation
	CreateDebugNames
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
	CreateDebugNames.Register("CreateDebugNames")
}

// BufferAddressQuerier resolves buffer device addresses
type BufferAddressQuerier = vulkan.BufferAddressQuerier

// CreateOptions configures a new Allocator. The zero value is a usable configuration without a
// scratch pool.
type CreateOptions struct {
	Flags CreateFlags
	// ScratchAlignment is the device's minAccelerationStructureScratchOffsetAlignment. When it is
	// nonzero, acceleration structure scratch buffers are allocated from a pool whose allocations
	// are aligned to it. It must be a power of two.
	ScratchAlignment uint
	// ScratchPoolBlockSize is the block size of the scratch pool. 0 lets the memory allocator decide.
	ScratchPoolBlockSize int
	// AllocationCallbacks are passed to every buffer create and destroy
	AllocationCallbacks *driver.AllocationCallbacks
	// QueueFamilies lists the queue families buffers are used from. When more than one family is
	// listed, buffers are created with concurrent sharing so no ownership transfers are needed.
	QueueFamilies []int
	// BufferDeviceAddress overrides the device address entry points normally resolved from the
	// device's version and extensions
	BufferDeviceAddress BufferAddressQuerier
}

// New creates an Allocator that creates buffers on device and places their memory with memory
func New(logger *slog.Logger, device core1_0.Device, memory MemoryAllocator, options CreateOptions) (*Allocator, error) {
	if options.ScratchAlignment > 0 {
		err := utils.CheckPow2(options.ScratchAlignment, "ScratchAlignment")
		if err != nil {
			return nil, err
		}
	}

	allocator := &Allocator{
		logger:              logger,
		device:              device,
		memory:              memory,
		extensionData:       vulkan.NewExtensionData(device, options.BufferDeviceAddress),
		allocationCallbacks: options.AllocationCallbacks,
		createFlags:         options.Flags,
		scratchAlignment:    options.ScratchAlignment,
		sharingMode:         core1_0.SharingModeExclusive,

		registryMutex: utils.OptionalRWMutex{UseMutex: options.Flags&CreateExternallySynchronized == 0},
		live:          swiss.NewMap[uuid.UUID, BufferHandle](64),
		freed:         swiss.NewMap[uuid.UUID, struct{}](64),
	}

	if len(options.QueueFamilies) > 1 {
		allocator.sharingMode = core1_0.SharingModeConcurrent
		allocator.queueFamilies = append([]int(nil), options.QueueFamilies...)
	}

	if options.ScratchAlignment > 0 {
		err := allocator.createScratchPool(options.ScratchPoolBlockSize)
		if err != nil {
			return nil, err
		}
	}

	return allocator, nil
}

func (a *Allocator) createScratchPool(blockSize int) error {
	allocInfo := PurposeAccelerationStructureScratch.allocationCreateInfo()
	memoryTypeIndex, err := a.memory.FindMemoryTypeIndexForBufferInfo(core1_0.BufferCreateInfo{
		Size:               int(a.scratchAlignment),
		Usage:              PurposeAccelerationStructureScratch.BufferUsage(),
		SharingMode:        a.sharingMode,
		QueueFamilyIndices: a.queueFamilies,
	}, allocInfo)
	if err != nil {
		return errors.Wrap(err, "failed to find a memory type for the scratch pool")
	}

	pool, err := a.memory.CreatePool(vam.PoolCreateInfo{
		MemoryTypeIndex:        memoryTypeIndex,
		BlockSize:              blockSize,
		MinAllocationAlignment: a.scratchAlignment,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create the scratch pool")
	}

	a.scratchPool = pool
	return nil
}
