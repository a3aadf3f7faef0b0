package gputest

import (
	"fmt"
	"math"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Op int

const (
	OpBeginRenderPass Op = iota
	OpEndRenderPass
	OpSetViewport
	OpSetScissor
	OpBindPipeline
	OpBindDescriptorSet
	OpPushConstants
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpDrawIndexed
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op            Op
	RenderPass    gpu.Handle
	Framebuffer   gpu.Handle
	Extent        gpu.Extent
	Clear         []gpu.ClearValue
	Pipeline      gpu.Handle
	Layout        gpu.Handle
	SetIndex      uint32
	DescriptorSet gpu.Handle
	Data          []byte
	Buffer        *gpu.Buffer
	IndexCount    uint32
	FirstIndex    uint32
}

// Draw is a DrawIndexed together with the state bound when it was issued.
type Draw struct {
	IndexCount  uint32
	FirstIndex  uint32
	Pipeline    gpu.Handle
	GlobalSet   gpu.Handle
	MaterialSet gpu.Handle
	Model       []byte
}

type CommandBuffer struct {
	id        uint64
	recording bool
	Commands  []Command
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return fmt.Errorf("command buffer already recording: %w", core.ErrInvalidState)
	}
	c.recording = true
	c.Commands = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("command buffer not recording: %w", core.ErrInvalidState)
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) record(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(renderPass, framebuffer gpu.Handle, extent gpu.Extent, clear []gpu.ClearValue) {
	c.record(Command{Op: OpBeginRenderPass, RenderPass: renderPass, Framebuffer: framebuffer, Extent: extent, Clear: clear})
}

func (c *CommandBuffer) EndRenderPass() {
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) SetViewport(viewport gpu.Viewport) {
	c.record(Command{Op: OpSetViewport, Extent: gpu.Extent{Width: uint32(viewport.Width), Height: uint32(viewport.Height)}})
}

func (c *CommandBuffer) SetScissor(extent gpu.Extent) {
	c.record(Command{Op: OpSetScissor, Extent: extent})
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Handle) {
	c.record(Command{Op: OpBindPipeline, Pipeline: pipeline})
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.Handle, set uint32, descriptorSet gpu.Handle) {
	c.record(Command{Op: OpBindDescriptorSet, Layout: layout, SetIndex: set, DescriptorSet: descriptorSet})
}

func (c *CommandBuffer) PushConstants(layout gpu.Handle, stages gpu.ShaderStage, offset uint32, data []byte) {
	c.record(Command{Op: OpPushConstants, Layout: layout, Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) BindVertexBuffer(buffer *gpu.Buffer, offset uint64) {
	c.record(Command{Op: OpBindVertexBuffer, Buffer: buffer})
}

func (c *CommandBuffer) BindIndexBuffer(buffer *gpu.Buffer, offset uint64, indexType gpu.IndexType) {
	c.record(Command{Op: OpBindIndexBuffer, Buffer: buffer})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record(Command{Op: OpDrawIndexed, IndexCount: indexCount, FirstIndex: firstIndex})
}

// Count returns how many commands of op were recorded.
func (c *CommandBuffer) Count(op Op) int {
	n := 0
	for _, cmd := range c.Commands {
		if cmd.Op == op {
			n++
		}
	}
	return n
}

// Draws replays the recording and returns every draw with its bound state.
func (c *CommandBuffer) Draws() []Draw {
	var draws []Draw
	var pipeline gpu.Handle
	var model []byte
	sets := map[uint32]gpu.Handle{}
	for _, cmd := range c.Commands {
		switch cmd.Op {
		case OpBindPipeline:
			pipeline = cmd.Pipeline
		case OpBindDescriptorSet:
			sets[cmd.SetIndex] = cmd.DescriptorSet
		case OpPushConstants:
			model = cmd.Data
		case OpDrawIndexed:
			draws = append(draws, Draw{
				IndexCount:  cmd.IndexCount,
				FirstIndex:  cmd.FirstIndex,
				Pipeline:    pipeline,
				GlobalSet:   sets[0],
				MaterialSet: sets[1],
				Model:       model,
			})
		}
	}
	return draws
}

func (c *CommandBuffer) snapshot() *CommandBuffer {
	return &CommandBuffer{
		id:       c.id,
		Commands: append([]Command(nil), c.Commands...),
	}
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
