// Package transfer batches host-to-device uploads. Each upload is written to a staging buffer
// and a copy into a device-local destination is recorded; the copies are submitted together in
// one command buffer on the transfer queue.
package transfer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/hearth/command"
	"github.com/vkngwrapper/hearth/layout"
	"github.com/vkngwrapper/hearth/resource"
	"golang.org/x/exp/slog"
)

var (
	// ErrContextSubmitted is returned when a context is used after it was submitted or rolled back
	ErrContextSubmitted = errors.New("transfer context was already submitted")
	// ErrEmptyUpload is returned when an upload has no data
	ErrEmptyUpload = errors.New("upload is empty")
)

type State int32

const (
	StateIdle State = iota
	StateAccumulating
	StateSubmitted
)

var stateMapping = map[State]string{
	StateIdle:         "Idle",
	StateAccumulating: "Accumulating",
	StateSubmitted:    "Submitted",
}

func (s State) String() string {
	str, ok := stateMapping[s]
	if !ok {
		return "unknown"
	}
	return str
}

// Deps are the collaborators a Context records and submits with
type Deps struct {
	Logger    *slog.Logger
	Device    core1_0.Device
	Allocator *resource.Allocator
	Queues    *command.DeviceQueues
	Callbacks *driver.AllocationCallbacks
}

type copyOp struct {
	src  resource.BufferHandle
	dst  resource.BufferHandle
	size int
}

// Context accumulates uploads until SubmitAndWait. Copies execute in the order they were
// recorded. A Context is not safe for concurrent use.
//
// Any failure rolls the context back: every staging buffer and every destination buffer the
// context created is freed, and the context can no longer be used.
type Context struct {
	deps  Deps
	state State

	copies  []copyOp
	staging []resource.BufferHandle
	created []resource.BufferHandle
}

func Start(deps Deps) *Context {
	deps.Logger.Debug("TransferContext::Start")

	return &Context{
		deps:  deps,
		state: StateIdle,
	}
}

func (c *Context) State() State {
	return c.state
}

// Pending is the number of copies recorded but not yet submitted
func (c *Context) Pending() int {
	return len(c.copies)
}

func (c *Context) CreateVertexBuffer(vertices []layout.Vertex) (resource.BufferHandle, error) {
	return c.CreateBuffer(resource.PurposeVertex, layout.VertexBytes(vertices), "vertices")
}

func (c *Context) CreateIndexBuffer(indices []layout.Index) (resource.BufferHandle, error) {
	return c.CreateBuffer(resource.PurposeIndex, layout.IndexBytes(indices), "indices")
}

func (c *Context) CreateInstanceBuffer(instances []layout.Instance) (resource.BufferHandle, error) {
	return c.CreateBuffer(resource.PurposeAccelerationStructureInstance, layout.InstanceBytes(instances), "instances")
}

// CreateBuffer creates a buffer of the given purpose whose contents will be data once the
// context is submitted. The returned handle must not be read by the device before then.
func (c *Context) CreateBuffer(purpose resource.Purpose, data []byte, name string) (resource.BufferHandle, error) {
	c.deps.Logger.Debug("TransferContext::CreateBuffer", slog.String("purpose", purpose.String()), slog.Int("size", len(data)))

	if c.state == StateSubmitted {
		return resource.BufferHandle{}, ErrContextSubmitted
	}

	if len(data) == 0 {
		return resource.BufferHandle{}, c.fail(errors.Wrapf(ErrEmptyUpload, "failed to create %s buffer", purpose))
	}

	staging, err := c.deps.Allocator.AllocBuffer(resource.PurposeStaging, len(data), name+" staging")
	if err != nil {
		return resource.BufferHandle{}, c.fail(err)
	}
	c.staging = append(c.staging, staging)

	destination, err := c.deps.Allocator.AllocBuffer(purpose, len(data), name)
	if err != nil {
		return resource.BufferHandle{}, c.fail(err)
	}
	c.created = append(c.created, destination)

	err = c.deps.Allocator.StoreToBuffer(staging, data)
	if err != nil {
		return resource.BufferHandle{}, c.fail(err)
	}

	c.copies = append(c.copies, copyOp{src: staging, dst: destination, size: len(data)})
	c.state = StateAccumulating

	return destination, nil
}

// Copy records a device-side copy of the first size bytes of src into dst
func (c *Context) Copy(src, dst resource.BufferHandle, size int) error {
	c.deps.Logger.Debug("TransferContext::Copy", slog.String("src", src.ID.String()), slog.String("dst", dst.ID.String()), slog.Int("size", size))

	if c.state == StateSubmitted {
		return ErrContextSubmitted
	}

	if size <= 0 {
		return c.fail(errors.Wrap(ErrEmptyUpload, "failed to record copy"))
	}

	if size > src.Size || size > dst.Size {
		return c.fail(errors.Wrapf(resource.ErrOutOfBounds, "cannot copy %d bytes from a %d byte buffer to a %d byte buffer", size, src.Size, dst.Size))
	}

	c.copies = append(c.copies, copyOp{src: src, dst: dst, size: size})
	c.state = StateAccumulating

	return nil
}

// SubmitAndWait records every copy into one command buffer, submits it to the transfer queue,
// waits for it to complete, and frees the staging buffers. The context cannot be used again.
func (c *Context) SubmitAndWait() error {
	c.deps.Logger.Debug("TransferContext::SubmitAndWait", slog.Int("copies", len(c.copies)))

	if c.state == StateSubmitted {
		return ErrContextSubmitted
	}

	if len(c.copies) > 0 {
		queue := c.deps.Queues.Transfer()
		if queue == nil {
			return c.fail(errors.New("no transfer queue"))
		}

		err := queue.RunOneTime(c.deps.Device, c.deps.Callbacks, c.record)
		if err != nil {
			return c.fail(errors.Wrap(err, "failed to submit transfer"))
		}
	}

	c.state = StateSubmitted
	c.copies = nil
	c.created = nil

	var err error
	for _, staging := range c.staging {
		err = errors.CombineErrors(err, c.deps.Allocator.FreeBuffer(staging))
	}
	c.staging = nil

	return err
}

func (c *Context) record(commandBuffer core1_0.CommandBuffer) error {
	for _, op := range c.copies {
		err := commandBuffer.CmdCopyBuffer(op.src.Buffer, op.dst.Buffer, []core1_0.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      op.size,
			},
		})
		if err != nil {
			return errors.Wrap(err, "failed to record buffer copy")
		}
	}

	return nil
}

// Abort discards every pending copy and frees every buffer the context created. Buffers passed
// to Copy are not freed.
func (c *Context) Abort() error {
	c.deps.Logger.Debug("TransferContext::Abort")

	if c.state == StateSubmitted {
		return ErrContextSubmitted
	}

	return c.rollback()
}

func (c *Context) fail(err error) error {
	rollbackErr := c.rollback()
	if rollbackErr != nil {
		c.deps.Logger.Error("failed to roll back transfer context", slog.Any("error", rollbackErr))
	}

	return err
}

func (c *Context) rollback() error {
	c.state = StateSubmitted

	var err error
	for i := len(c.created) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, c.deps.Allocator.FreeBuffer(c.created[i]))
	}
	for i := len(c.staging) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, c.deps.Allocator.FreeBuffer(c.staging[i]))
	}

	c.copies = nil
	c.created = nil
	c.staging = nil

	return err
}
