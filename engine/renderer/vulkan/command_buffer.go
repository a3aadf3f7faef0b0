package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type commandBufferState int

const (
	commandBufferReady commandBufferState = iota
	commandBufferRecording
	commandBufferInRenderPass
	commandBufferRecordingEnded
	commandBufferSubmitted
	commandBufferNotAllocated
)

// CommandBuffer is a primary command buffer from the graphics pool.
type CommandBuffer struct {
	device *Device
	handle vk.CommandBuffer
	state  commandBufferState
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func (d *Device) allocateCommandBuffer() (*CommandBuffer, error) {
	cb := &CommandBuffer{device: d, state: commandBufferNotAllocated}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := d.locks.call(commandPoolManagement, func() error {
		if res := vk.AllocateCommandBuffers(d.logical, &info, handles); res != vk.Success {
			return resultError("vkAllocateCommandBuffers", res, core.ErrResourceCreation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cb.handle = handles[0]
	cb.state = commandBufferReady
	return cb, nil
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	return d.allocateCommandBuffer()
}

func (d *Device) FreeCommandBuffer(cmd gpu.CommandBuffer) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb.handle == nil {
		return
	}
	_ = d.locks.call(commandPoolManagement, func() error {
		vk.FreeCommandBuffers(d.logical, d.commandPool, 1, []vk.CommandBuffer{cb.handle})
		return nil
	})
	cb.handle = nil
	cb.state = commandBufferNotAllocated
}

func (c *CommandBuffer) begin(flags vk.CommandBufferUsageFlagBits) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	}
	if res := vk.BeginCommandBuffer(c.handle, &info); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res, nil)
	}
	c.state = commandBufferRecording
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.state == commandBufferNotAllocated {
		return fmt.Errorf("begin on a freed command buffer: %w", core.ErrInvalidState)
	}
	return c.begin(0)
}

func (c *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(c.handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res, nil)
	}
	c.state = commandBufferRecordingEnded
	return nil
}

// BeginRenderPass clears attachment 0 with the color of clear[0] and any
// further attachment with the depth and stencil of its entry.
func (c *CommandBuffer) BeginRenderPass(renderPass, framebuffer gpu.Handle, extent gpu.Extent, clear []gpu.ClearValue) {
	rp, ok1 := c.device.renderPasses.Get(uint64(renderPass))
	fb, ok2 := c.device.framebuffers.Get(uint64(framebuffer))
	if !ok1 || !ok2 {
		core.LogError("BeginRenderPass with unknown render pass %d or framebuffer %d", renderPass, framebuffer)
		return
	}
	clears := make([]vk.ClearValue, len(clear))
	for i, cv := range clear {
		if i == 0 {
			clears[i].SetColor(cv.Color[:])
		} else {
			clears[i].SetDepthStencil(cv.Depth, cv.Stencil)
		}
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(c.handle, &info, vk.SubpassContentsInline)
	c.state = commandBufferInRenderPass
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
	c.state = commandBufferRecording
}

func (c *CommandBuffer) SetViewport(v gpu.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (c *CommandBuffer) SetScissor(extent gpu.Extent) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Handle) {
	p, ok := c.device.pipelines.Get(uint64(pipeline))
	if !ok {
		core.LogError("BindPipeline with unknown pipeline %d", pipeline)
		return
	}
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p)
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.Handle, set uint32, descriptorSet gpu.Handle) {
	l, ok1 := c.device.pipelineLayouts.Get(uint64(layout))
	s, ok2 := c.device.sets.Get(uint64(descriptorSet))
	if !ok1 || !ok2 {
		core.LogError("BindDescriptorSet with unknown layout %d or set %d", layout, descriptorSet)
		return
	}
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, l, set, 1, []vk.DescriptorSet{s}, 0, nil)
}

func (c *CommandBuffer) PushConstants(layout gpu.Handle, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	l, ok := c.device.pipelineLayouts.Get(uint64(layout))
	if !ok {
		core.LogError("PushConstants with unknown layout %d", layout)
		return
	}
	vk.CmdPushConstants(c.handle, l, toVkShaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) BindVertexBuffer(buffer *gpu.Buffer, offset uint64) {
	b, ok := c.device.buffers.Get(uint64(buffer.Handle))
	if !ok {
		core.LogError("BindVertexBuffer with unknown buffer %d", buffer.Handle)
		return
	}
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *CommandBuffer) BindIndexBuffer(buffer *gpu.Buffer, offset uint64, indexType gpu.IndexType) {
	b, ok := c.device.buffers.Get(uint64(buffer.Handle))
	if !ok {
		core.LogError("BindIndexBuffer with unknown buffer %d", buffer.Handle)
		return
	}
	vk.CmdBindIndexBuffer(c.handle, b, vk.DeviceSize(offset), toVkIndexType(indexType))
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *Device) semaphoreList(handles []gpu.Handle) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, 0, len(handles))
	for _, h := range handles {
		s, ok := d.semaphores.Get(uint64(h))
		if !ok {
			return nil, fmt.Errorf("semaphore %d: %w", h, core.ErrUnknownHandle)
		}
		out = append(out, s)
	}
	return out, nil
}

// Submit queues cmd and signals the device submit fence on completion. The
// previous submission must have finished first.
func (d *Device) Submit(cmd gpu.CommandBuffer, wait []gpu.Handle, waitStages []gpu.PipelineStage, signal []gpu.Handle) error {
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("submit of a foreign command buffer %T: %w", cmd, core.ErrUnknownHandle)
	}
	if len(wait) != len(waitStages) {
		return fmt.Errorf("%d wait semaphores with %d wait stages", len(wait), len(waitStages))
	}
	waitSems, err := d.semaphoreList(wait)
	if err != nil {
		return err
	}
	signalSems, err := d.semaphoreList(signal)
	if err != nil {
		return err
	}
	stages := make([]vk.PipelineStageFlags, len(waitStages))
	for i, s := range waitStages {
		stages[i] = toVkPipelineStages(s)
	}

	if err := d.submitFence.wait(fenceTimeout); err != nil {
		return err
	}
	if err := d.submitFence.reset(); err != nil {
		return err
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.handle},
		SignalSemaphoreCount: uint32(len(signalSems)),
		PSignalSemaphores:    signalSems,
	}
	err = d.locks.queueCall(d.families.graphics, func() error {
		if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{info}, d.submitFence.handle); res != vk.Success {
			return resultError("vkQueueSubmit", res, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cb.state = commandBufferSubmitted
	return nil
}

// beginSingleUse allocates a command buffer for one transfer or layout
// transition.
func (d *Device) beginSingleUse() (*CommandBuffer, error) {
	cb, err := d.allocateCommandBuffer()
	if err != nil {
		return nil, err
	}
	if err := cb.begin(vk.CommandBufferUsageOneTimeSubmitBit); err != nil {
		d.FreeCommandBuffer(cb)
		return nil, err
	}
	return cb, nil
}

// endSingleUse submits cb, waits for the graphics queue and frees it.
func (d *Device) endSingleUse(cb *CommandBuffer) error {
	defer d.FreeCommandBuffer(cb)
	if err := cb.End(); err != nil {
		return err
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	return d.locks.queueCall(d.families.graphics, func() error {
		if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{info}, vk.NullFence); res != vk.Success {
			return resultError("vkQueueSubmit", res, nil)
		}
		if res := vk.QueueWaitIdle(d.graphicsQueue); res != vk.Success {
			return resultError("vkQueueWaitIdle", res, nil)
		}
		return nil
	})
}
