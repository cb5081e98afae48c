package deletion

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/khr_acceleration_structure"
	"github.com/vkngwrapper/hearth/resource"
)

// Dispatcher executes each kind of Action against the objects that own them
type Dispatcher struct {
	Allocator *resource.Allocator
	Extension khr_acceleration_structure.Extension
	Callbacks *driver.AllocationCallbacks
}

func (d Dispatcher) Execute(action Action) error {
	switch a := action.(type) {
	case FreeBuffer:
		if d.Allocator == nil {
			return errors.New("no allocator to free buffers with")
		}
		return d.Allocator.FreeBuffer(a.Buffer)
	case DestroyAccelerationStructure:
		if d.Extension == nil {
			return errors.New("no acceleration structure extension to destroy acceleration structures with")
		}
		d.Extension.DestroyAccelerationStructure(a.Structure, d.Callbacks)
		return nil
	case DestroyFence:
		a.Fence.Destroy(d.Callbacks)
		return nil
	case DestroySemaphore:
		a.Semaphore.Destroy(d.Callbacks)
		return nil
	case DestroyCommandPool:
		a.CommandPool.Destroy(d.Callbacks)
		return nil
	case DestroyDevice:
		a.Device.Destroy(d.Callbacks)
		return nil
	case Func:
		return a.Fn()
	}

	return errors.Newf("unknown deletion action: %T", action)
}
