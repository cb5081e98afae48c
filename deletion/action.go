package deletion

import (
	"fmt"

	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/resource"
)

// Action is a deferred destruction. The set of actions is closed: the Dispatcher knows how to
// execute each of them, and Func covers objects owned by collaborators.
type Action interface {
	fmt.Stringer
	action()
}

// FreeBuffer frees a buffer and its memory
type FreeBuffer struct {
	Buffer resource.BufferHandle
}

// DestroyAccelerationStructure destroys an acceleration structure object. Its backing buffer is
// freed by a separate FreeBuffer action.
type DestroyAccelerationStructure struct {
	Structure khr_acceleration_structure.AccelerationStructure
}

type DestroyFence struct {
	Fence core1_0.Fence
}

type DestroySemaphore struct {
	Semaphore core1_0.Semaphore
}

type DestroyCommandPool struct {
	CommandPool core1_0.CommandPool
}

type DestroyDevice struct {
	Device core1_0.Device
}

// Func runs an arbitrary teardown function once
type Func struct {
	Name string
	Fn   func() error
}

func (a FreeBuffer) action()                   {}
func (a DestroyAccelerationStructure) action() {}
func (a DestroyFence) action()                 {}
func (a DestroySemaphore) action()             {}
func (a DestroyCommandPool) action()           {}
func (a DestroyDevice) action()                {}
func (a Func) action()                         {}

func (a FreeBuffer) String() string {
	return fmt.Sprintf("FreeBuffer(%s %s)", a.Buffer.Purpose, a.Buffer.ID)
}

func (a DestroyAccelerationStructure) String() string {
	return fmt.Sprintf("DestroyAccelerationStructure(%#x)", uint64(a.Structure))
}

func (a DestroyFence) String() string       { return "DestroyFence" }
func (a DestroySemaphore) String() string   { return "DestroySemaphore" }
func (a DestroyCommandPool) String() string { return "DestroyCommandPool" }
func (a DestroyDevice) String() string      { return "DestroyDevice" }

func (a Func) String() string {
	return fmt.Sprintf("Func(%s)", a.Name)
}
