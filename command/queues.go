package command

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slog"
)

var (
	ErrNoGraphicsQueue = errors.New("no queue family supports graphics")
	ErrNoComputeQueue  = errors.New("no queue family supports compute")
	ErrNoTransferQueue = errors.New("no queue family supports transfer")
	ErrNoPresentQueue  = errors.New("no queue family supports presentation")
)

// Role is a kind of work submitted to the device. Several roles may resolve to the same queue
// family.
type Role int32

const (
	RoleGraphics Role = iota
	RoleCompute
	RoleTransfer
	RolePresent

	roleCount int = iota
)

var roleMapping = map[Role]string{
	RoleGraphics: "Graphics",
	RoleCompute:  "Compute",
	RoleTransfer: "Transfer",
	RolePresent:  "Present",
}

func (r Role) String() string {
	str, ok := roleMapping[r]
	if !ok {
		return "unknown"
	}
	return str
}

// QueueFamilyIndices maps each role to a queue family index
type QueueFamilyIndices struct {
	Graphics int
	Compute  int
	Transfer int
	// Present is -1 when presentation was not requested
	Present int
}

// ForRole is the family index serving role
func (i QueueFamilyIndices) ForRole(role Role) int {
	switch role {
	case RoleGraphics:
		return i.Graphics
	case RoleCompute:
		return i.Compute
	case RoleTransfer:
		return i.Transfer
	case RolePresent:
		return i.Present
	}

	return -1
}

// UniqueFamilies lists every family index in use exactly once, in role order. This is the set of
// families queues should be requested for at device creation.
func (i QueueFamilyIndices) UniqueFamilies() []int {
	var families []int
	seen := make(map[int]struct{}, roleCount)

	for role := 0; role < roleCount; role++ {
		family := i.ForRole(Role(role))
		if family < 0 {
			continue
		}

		if _, ok := seen[family]; ok {
			continue
		}

		seen[family] = struct{}{}
		families = append(families, family)
	}

	return families
}

// FindQueueFamilies picks a family for each role. Graphics uses the first family with graphics
// support. Compute and transfer use the last family with the capability that does not also
// support graphics, falling back to the first family with the capability. Present uses the first
// family for which presentSupport returns true; when presentSupport is nil, no present family is
// selected.
func FindQueueFamilies(families []*core1_0.QueueFamilyProperties, presentSupport func(family int) bool) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{
		Graphics: findFamily(families, core1_0.QueueGraphics, 0),
		Compute:  findFamily(families, core1_0.QueueCompute, core1_0.QueueGraphics),
		Transfer: findFamily(families, core1_0.QueueTransfer, core1_0.QueueGraphics),
		Present:  -1,
	}

	if indices.Graphics < 0 {
		return indices, ErrNoGraphicsQueue
	}

	if indices.Compute < 0 {
		return indices, ErrNoComputeQueue
	}

	// Graphics and compute families implicitly support transfer
	if indices.Transfer < 0 {
		indices.Transfer = indices.Compute
	}

	if presentSupport != nil {
		for family := range families {
			if presentSupport(family) {
				indices.Present = family
				break
			}
		}

		if indices.Present < 0 {
			return indices, ErrNoPresentQueue
		}
	}

	return indices, nil
}

func findFamily(families []*core1_0.QueueFamilyProperties, find core1_0.QueueFlags, avoid core1_0.QueueFlags) int {
	found := -1

	for index, family := range families {
		if family.QueueFlags&find != find {
			continue
		}

		if found < 0 || (avoid != 0 && family.QueueFlags&avoid == 0) {
			found = index
		}
	}

	return found
}

// QueueWithPool is a device queue together with a command pool for its family. The mutex
// guards both: pools and queues must be externally synchronized in Vulkan.
type QueueWithPool struct {
	family int
	queue  core1_0.Queue
	pool   core1_0.CommandPool
	mutex  sync.Mutex
}

func (q *QueueWithPool) Family() int {
	return q.family
}

// Queue is the unguarded queue. Callers must not submit to it directly while other goroutines
// use this QueueWithPool.
func (q *QueueWithPool) Queue() core1_0.Queue {
	return q.queue
}

// WithPool runs fn while holding the family's lock
func (q *QueueWithPool) WithPool(fn func(pool core1_0.CommandPool) error) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return fn(q.pool)
}

// WithQueue runs fn while holding the family's lock, for queue operations other than Submit
// such as presentation
func (q *QueueWithPool) WithQueue(fn func(queue core1_0.Queue) error) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return fn(q.queue)
}

// Submit submits one command buffer while holding the family's lock
func (q *QueueWithPool) Submit(device core1_0.Device, commandBuffer core1_0.CommandBuffer, o SubmitOptions) (core1_0.Fence, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return Submit(device, q.queue, commandBuffer, o)
}

// Record records a one-time command buffer from this family's pool
func (q *QueueWithPool) Record(device core1_0.Device, body func(commandBuffer core1_0.CommandBuffer) error) (core1_0.CommandBuffer, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return RecordOneTime(device, q.pool, body)
}

// Free returns command buffers allocated by Record to the pool
func (q *QueueWithPool) Free(device core1_0.Device, commandBuffers ...core1_0.CommandBuffer) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	device.FreeCommandBuffers(commandBuffers)
}

// RunOneTime records body into a one-time command buffer, submits it, and blocks until the device
// has executed it. The lock is released while waiting, so other roles sharing the family are
// not blocked by the wait.
func (q *QueueWithPool) RunOneTime(device core1_0.Device, callbacks *driver.AllocationCallbacks, body func(commandBuffer core1_0.CommandBuffer) error) error {
	commandBuffer, err := q.Record(device, body)
	if err != nil {
		return err
	}

	fence, err := q.Submit(device, commandBuffer, SubmitOptions{AllocationCallbacks: callbacks})
	if err != nil {
		q.Free(device, commandBuffer)
		return err
	}

	err = Wait(fence)
	fence.Destroy(callbacks)
	q.Free(device, commandBuffer)

	return err
}

// DeviceQueues resolves roles to a QueueWithPool. Roles sharing a family share one QueueWithPool.
type DeviceQueues struct {
	logger    *slog.Logger
	callbacks *driver.AllocationCallbacks
	indices   QueueFamilyIndices

	families map[int]*QueueWithPool
	roles    [roleCount]*QueueWithPool
}

// NewDeviceQueues fetches the first queue of every family in indices and creates a resettable
// command pool for it
func NewDeviceQueues(logger *slog.Logger, device core1_0.Device, indices QueueFamilyIndices, callbacks *driver.AllocationCallbacks) (*DeviceQueues, error) {
	logger.Debug("DeviceQueues::New",
		slog.Int("graphics", indices.Graphics),
		slog.Int("compute", indices.Compute),
		slog.Int("transfer", indices.Transfer),
		slog.Int("present", indices.Present))

	queues := &DeviceQueues{
		logger:    logger,
		callbacks: callbacks,
		indices:   indices,
		families:  make(map[int]*QueueWithPool),
	}

	for _, family := range indices.UniqueFamilies() {
		pool, _, err := device.CreateCommandPool(callbacks, core1_0.CommandPoolCreateInfo{
			Flags:            core1_0.CommandPoolCreateResetBuffer,
			QueueFamilyIndex: family,
		})
		if err != nil {
			return nil, errors.CombineErrors(errors.Wrapf(err, "failed to create command pool for queue family %d", family), queues.Destroy())
		}

		queues.families[family] = &QueueWithPool{
			family: family,
			queue:  device.GetQueue(family, 0),
			pool:   pool,
		}
	}

	for role := 0; role < roleCount; role++ {
		family := indices.ForRole(Role(role))
		if family >= 0 {
			queues.roles[role] = queues.families[family]
		}
	}

	return queues, nil
}

func (q *DeviceQueues) Indices() QueueFamilyIndices {
	return q.indices
}

// ForRole returns the queue serving role, or nil if no family was selected for it
func (q *DeviceQueues) ForRole(role Role) *QueueWithPool {
	if role < 0 || int(role) >= roleCount {
		return nil
	}
	return q.roles[role]
}

func (q *DeviceQueues) Graphics() *QueueWithPool { return q.roles[RoleGraphics] }
func (q *DeviceQueues) Compute() *QueueWithPool  { return q.roles[RoleCompute] }
func (q *DeviceQueues) Transfer() *QueueWithPool { return q.roles[RoleTransfer] }
func (q *DeviceQueues) Present() *QueueWithPool  { return q.roles[RolePresent] }

// Destroy destroys every command pool. The device must be idle.
func (q *DeviceQueues) Destroy() error {
	q.logger.Debug("DeviceQueues::Destroy")

	for family, queue := range q.families {
		queue.mutex.Lock()
		queue.pool.Destroy(q.callbacks)
		queue.mutex.Unlock()

		delete(q.families, family)
	}

	for role := range q.roles {
		q.roles[role] = nil
	}

	return nil
}
