package gputest

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

type Buffer struct {
	core1_0.Buffer

	Info         core1_0.BufferCreateInfo
	Address      uint64
	DestroyCount int

	memory *Allocation
}

func (b *Buffer) MemoryRequirements() *core1_0.MemoryRequirements {
	return &core1_0.MemoryRequirements{
		Size:           b.Info.Size,
		Alignment:      int(addressAlignment),
		MemoryTypeBits: 0x3,
	}
}

func (b *Buffer) Destroy(callbacks *driver.AllocationCallbacks) {
	b.DestroyCount++
}

// Memory is the allocation bound to the buffer, or nil
func (b *Buffer) Memory() *Allocation {
	return b.memory
}

type Fence struct {
	core1_0.Fence

	Signalled    bool
	DestroyCount int
}

func (f *Fence) Wait(timeout time.Duration) (common.VkResult, error) {
	if !f.Signalled {
		return core1_0.VKTimeout, errors.New("fence waited on without a pending submission")
	}

	return core1_0.VKSuccess, nil
}

func (f *Fence) Reset() (common.VkResult, error) {
	f.Signalled = false
	return core1_0.VKSuccess, nil
}

func (f *Fence) Destroy(callbacks *driver.AllocationCallbacks) {
	f.DestroyCount++
}

type Semaphore struct {
	core1_0.Semaphore

	DestroyCount int
}

func (s *Semaphore) Destroy(callbacks *driver.AllocationCallbacks) {
	s.DestroyCount++
}

type CommandPool struct {
	core1_0.CommandPool

	Info         core1_0.CommandPoolCreateInfo
	Allocated    []*CommandBuffer
	DestroyCount int
}

func (p *CommandPool) Destroy(callbacks *driver.AllocationCallbacks) {
	p.DestroyCount++
}

// LiveCommandBuffers counts buffers allocated from the pool and not yet freed
func (p *CommandPool) LiveCommandBuffers() int {
	count := 0
	for _, buffer := range p.Allocated {
		if buffer.FreeCount == 0 {
			count++
		}
	}
	return count
}

// CopyCommand is a recorded CmdCopyBuffer
type CopyCommand struct {
	Src     core1_0.Buffer
	Dst     core1_0.Buffer
	Regions []core1_0.BufferCopy
}

// BarrierCommand is a recorded CmdPipelineBarrier
type BarrierCommand struct {
	SrcStageMask   core1_0.PipelineStageFlags
	DstStageMask   core1_0.PipelineStageFlags
	MemoryBarriers []core1_0.MemoryBarrier
	BufferBarriers []core1_0.BufferMemoryBarrier
}

type CommandBuffer struct {
	core1_0.CommandBuffer

	Pool      *CommandPool
	BeginInfo core1_0.CommandBufferBeginInfo
	Began     bool
	Ended     bool
	FreeCount int

	Copies   []CopyCommand
	Barriers []BarrierCommand
	// Commands lists the names of recorded commands in order
	Commands []string
}

func (c *CommandBuffer) Begin(o core1_0.CommandBufferBeginInfo) (common.VkResult, error) {
	if c.Began {
		return core1_0.VKErrorUnknown, errors.New("command buffer was already begun")
	}

	c.BeginInfo = o
	c.Began = true
	return core1_0.VKSuccess, nil
}

func (c *CommandBuffer) End() (common.VkResult, error) {
	if !c.Began || c.Ended {
		return core1_0.VKErrorUnknown, errors.New("command buffer is not recording")
	}

	c.Ended = true
	return core1_0.VKSuccess, nil
}

func (c *CommandBuffer) CmdCopyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, copyRegions []core1_0.BufferCopy) error {
	c.Copies = append(c.Copies, CopyCommand{Src: srcBuffer, Dst: dstBuffer, Regions: copyRegions})
	c.Commands = append(c.Commands, "CmdCopyBuffer")
	return nil
}

func (c *CommandBuffer) CmdPipelineBarrier(srcStageMask, dstStageMask core1_0.PipelineStageFlags, dependencies core1_0.DependencyFlags, memoryBarriers []core1_0.MemoryBarrier, bufferMemoryBarriers []core1_0.BufferMemoryBarrier, imageMemoryBarriers []core1_0.ImageMemoryBarrier) error {
	c.Barriers = append(c.Barriers, BarrierCommand{
		SrcStageMask:   srcStageMask,
		DstStageMask:   dstStageMask,
		MemoryBarriers: memoryBarriers,
		BufferBarriers: bufferMemoryBarriers,
	})
	c.Commands = append(c.Commands, "CmdPipelineBarrier")
	return nil
}

// Record appends a command name, for fakes of extension commands recorded on this buffer
func (c *CommandBuffer) Record(command string) {
	c.Commands = append(c.Commands, command)
}

type Queue struct {
	core1_0.Queue

	Family      int
	Submissions []core1_0.SubmitInfo
	// FailSubmit, when set, is returned from every Submit call
	FailSubmit error
}

// Submit replays every recorded copy of the submitted command buffers and signals fence
func (q *Queue) Submit(fence core1_0.Fence, o []core1_0.SubmitInfo) (common.VkResult, error) {
	if q.FailSubmit != nil {
		return core1_0.VKErrorDeviceLost, q.FailSubmit
	}

	for _, info := range o {
		for _, commandBuffer := range info.CommandBuffers {
			buffer := commandBuffer.(*CommandBuffer)
			if !buffer.Ended {
				return core1_0.VKErrorUnknown, errors.New("submitted a command buffer that was not ended")
			}

			for _, copyCommand := range buffer.Copies {
				err := replayCopy(copyCommand)
				if err != nil {
					return core1_0.VKErrorUnknown, err
				}
			}
		}
	}

	q.Submissions = append(q.Submissions, o...)
	if fence != nil {
		fence.(*Fence).Signalled = true
	}

	return core1_0.VKSuccess, nil
}

func (q *Queue) WaitIdle() (common.VkResult, error) {
	return core1_0.VKSuccess, nil
}

func replayCopy(command CopyCommand) error {
	src := command.Src.(*Buffer).memory
	dst := command.Dst.(*Buffer).memory
	if src == nil || dst == nil {
		return errors.New("copy between buffers without bound memory")
	}

	for _, region := range command.Regions {
		if region.SrcOffset+region.Size > len(src.Bytes()) || region.DstOffset+region.Size > len(dst.Bytes()) {
			return errors.Newf("copy region %+v out of bounds", region)
		}
		copy(dst.Bytes()[region.DstOffset:region.DstOffset+region.Size], src.Bytes()[region.SrcOffset:region.SrcOffset+region.Size])
	}

	return nil
}
