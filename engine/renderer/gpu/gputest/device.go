// Package gputest provides an in-memory gpu.Device that records every call,
// for testing code above the graphics API without a GPU.
package gputest

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Object kinds tracked by the device.
const (
	KindBuffer              = "buffer"
	KindImage               = "image"
	KindImageView           = "image_view"
	KindSampler             = "sampler"
	KindShaderModule        = "shader_module"
	KindDescriptorSetLayout = "descriptor_set_layout"
	KindDescriptorPool      = "descriptor_pool"
	KindDescriptorSet       = "descriptor_set"
	KindRenderPass          = "render_pass"
	KindFramebuffer         = "framebuffer"
	KindPipelineLayout      = "pipeline_layout"
	KindPipeline            = "pipeline"
	KindSemaphore           = "semaphore"
	KindCommandBuffer       = "command_buffer"
)

const spirvMagic uint32 = 0x07230203

type Submit struct {
	Commands   *CommandBuffer
	Wait       []gpu.Handle
	WaitStages []gpu.PipelineStage
	Signal     []gpu.Handle
}

// Device is a recording gpu.Device. The exported fields can be inspected by
// tests; the Fail* switches inject errors.
type Device struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]string

	memory  map[gpu.Allocation][]byte
	mapped  map[gpu.Allocation]bool
	modules map[gpu.Handle][]uint32

	Pipelines        map[gpu.Handle]gpu.PipelineDescriptor
	PipelineLayouts  map[gpu.Handle][]gpu.Handle
	Framebuffers     map[gpu.Handle]gpu.Extent
	DescriptorWrites map[gpu.Handle]map[uint32]gpu.DescriptorWrite
	SetLayouts       map[gpu.Handle][]gpu.DescriptorBinding
	Submits          []Submit
	Transitions      []gpu.ImageLayout

	PresentIdleWaits int
	IdleWaits        int

	FailCreateBuffer bool
	FailSubmit       bool
}

func NewDevice() *Device {
	return &Device{
		live:             make(map[uint64]string),
		memory:           make(map[gpu.Allocation][]byte),
		mapped:           make(map[gpu.Allocation]bool),
		modules:          make(map[gpu.Handle][]uint32),
		Pipelines:        make(map[gpu.Handle]gpu.PipelineDescriptor),
		PipelineLayouts:  make(map[gpu.Handle][]gpu.Handle),
		Framebuffers:     make(map[gpu.Handle]gpu.Extent),
		DescriptorWrites: make(map[gpu.Handle]map[uint32]gpu.DescriptorWrite),
		SetLayouts:       make(map[gpu.Handle][]gpu.DescriptorBinding),
	}
}

// ValidSPIRV returns a minimal word stream that passes the device's bytecode
// check.
func ValidSPIRV() []uint32 {
	return []uint32{spirvMagic, 0x00010000, 0, 1, 0}
}

func (d *Device) acquire(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Device) release(id uint64, kind string) {
	if d.live[id] == kind {
		delete(d.live, id)
	}
}

// Live returns the number of live objects of kind.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Memory returns the content of an allocation.
func (d *Device) Memory(allocation gpu.Allocation) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory[allocation]
}

// IsLive reports whether h is a live object of kind.
func (d *Device) IsLive(h gpu.Handle, kind string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[uint64(h)] == kind
}

// LastSubmit returns the most recent submission.
func (d *Device) LastSubmit() (Submit, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Submits) == 0 {
		return Submit{}, false
	}
	return d.Submits[len(d.Submits)-1], true
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (*gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCreateBuffer {
		return nil, fmt.Errorf("create buffer: %w", core.ErrResourceCreation)
	}
	h := d.acquire(KindBuffer)
	alloc := gpu.Allocation(h)
	d.memory[alloc] = make([]byte, size)
	return gpu.NewBuffer(d, gpu.Handle(h), alloc, size, usage, memory), nil
}

func (d *Device) DestroyBuffer(buffer *gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(buffer.Handle), KindBuffer)
	delete(d.memory, buffer.Allocation)
}

func (d *Device) MapMemory(allocation gpu.Allocation) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.memory[allocation]
	if !ok {
		return nil, fmt.Errorf("map allocation %d: %w", allocation, core.ErrMapMemory)
	}
	if d.mapped[allocation] {
		return nil, fmt.Errorf("allocation %d already mapped: %w", allocation, core.ErrMapMemory)
	}
	d.mapped[allocation] = true
	return mem, nil
}

func (d *Device) UnmapMemory(allocation gpu.Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mapped, allocation)
}

func (d *Device) CreateImage(desc gpu.ImageDescriptor, memory gpu.MemoryUsage) (*gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.acquire(KindImage)
	return gpu.NewImage(d, gpu.Handle(h), gpu.Allocation(h), desc), nil
}

func (d *Device) DestroyImage(image *gpu.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(image.Handle), KindImage)
}

func (d *Device) CopyBuffer(src, dst *gpu.Buffer, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.memory[src.Allocation]
	if !ok {
		return fmt.Errorf("copy from unknown buffer: %w", core.ErrUnknownHandle)
	}
	t, ok := d.memory[dst.Allocation]
	if !ok {
		return fmt.Errorf("copy to unknown buffer: %w", core.ErrUnknownHandle)
	}
	copy(t[:size], s[:size])
	return nil
}

func (d *Device) CopyBufferToImage(src *gpu.Buffer, dst *gpu.Image, width, height uint32) error {
	if src.IsDestroyed() || dst.IsDestroyed() {
		return fmt.Errorf("copy buffer to image: %w", core.ErrUnknownHandle)
	}
	return nil
}

func (d *Device) TransitionImageLayout(image *gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Transitions = append(d.Transitions, newLayout)
	return nil
}

func (d *Device) CreateImageView(image *gpu.Image, aspect gpu.ImageAspect) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Handle(d.acquire(KindImageView)), nil
}

func (d *Device) DestroyImageView(view gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(view), KindImageView)
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Handle(d.acquire(KindSampler)), nil
}

func (d *Device) DestroySampler(sampler gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(sampler), KindSampler)
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(code) == 0 {
		return 0, fmt.Errorf("empty shader module: %w", core.ErrInvalidSPIRV)
	}
	h := gpu.Handle(d.acquire(KindShaderModule))
	d.modules[h] = append([]uint32(nil), code...)
	return h, nil
}

func (d *Device) DestroyShaderModule(module gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(module), KindShaderModule)
	delete(d.modules, module)
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Handle(d.acquire(KindDescriptorSetLayout))
	d.SetLayouts[h] = append([]gpu.DescriptorBinding(nil), bindings...)
	return h, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(layout), KindDescriptorSetLayout)
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Handle(d.acquire(KindDescriptorPool)), nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(pool), KindDescriptorPool)
}

func (d *Device) AllocateDescriptorSet(pool, layout gpu.Handle) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live[uint64(pool)] != KindDescriptorPool {
		return 0, fmt.Errorf("allocate descriptor set from pool %d: %w", pool, core.ErrUnknownHandle)
	}
	if d.live[uint64(layout)] != KindDescriptorSetLayout {
		return 0, fmt.Errorf("allocate descriptor set with layout %d: %w", layout, core.ErrUnknownHandle)
	}
	return gpu.Handle(d.acquire(KindDescriptorSet)), nil
}

func (d *Device) FreeDescriptorSet(pool, set gpu.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.live[uint64(set)] != KindDescriptorSet {
		return fmt.Errorf("free descriptor set %d: %w", set, core.ErrUnknownHandle)
	}
	d.release(uint64(set), KindDescriptorSet)
	delete(d.DescriptorWrites, set)
	return nil
}

func (d *Device) UpdateDescriptorSet(set gpu.Handle, writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DescriptorWrites[set] == nil {
		d.DescriptorWrites[set] = make(map[uint32]gpu.DescriptorWrite)
	}
	for _, w := range writes {
		d.DescriptorWrites[set][w.Binding] = w
	}
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Handle(d.acquire(KindRenderPass)), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(renderPass), KindRenderPass)
}

func (d *Device) CreateFramebuffer(renderPass gpu.Handle, attachments []gpu.Handle, extent gpu.Extent) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Handle(d.acquire(KindFramebuffer))
	d.Framebuffers[h] = extent
	return h, nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(framebuffer), KindFramebuffer)
	delete(d.Framebuffers, framebuffer)
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.Handle, pushConstants []gpu.PushConstantRange) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Handle(d.acquire(KindPipelineLayout))
	d.PipelineLayouts[h] = append([]gpu.Handle(nil), setLayouts...)
	return h, nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(layout), KindPipelineLayout)
	delete(d.PipelineLayouts, layout)
}

// CreateGraphicsPipeline rejects stages whose bytecode lacks the SPIR-V magic
// number, the way a driver rejects invalid shaders.
func (d *Device) CreateGraphicsPipeline(desc gpu.PipelineDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range desc.Stages {
		code, ok := d.modules[s.Module]
		if !ok || len(code) == 0 || code[0] != spirvMagic {
			return 0, fmt.Errorf("stage %d has invalid bytecode: %w", s.Stage, core.ErrPipelineCompile)
		}
	}
	h := gpu.Handle(d.acquire(KindPipeline))
	d.Pipelines[h] = desc
	return h, nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(pipeline), KindPipeline)
	delete(d.Pipelines, pipeline)
}

func (d *Device) CreateSemaphore() (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Handle(d.acquire(KindSemaphore)), nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(semaphore), KindSemaphore)
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &CommandBuffer{id: d.acquire(KindCommandBuffer)}, nil
}

func (d *Device) FreeCommandBuffer(cmd gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := cmd.(*CommandBuffer); ok {
		d.release(cb.id, KindCommandBuffer)
	}
}

func (d *Device) Submit(cmd gpu.CommandBuffer, wait []gpu.Handle, waitStages []gpu.PipelineStage, signal []gpu.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSubmit {
		return fmt.Errorf("queue submit: %w", core.ErrUnknown)
	}
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("submit of foreign command buffer: %w", core.ErrUnknownHandle)
	}
	if cb.recording {
		return fmt.Errorf("submit of command buffer still recording: %w", core.ErrInvalidState)
	}
	d.Submits = append(d.Submits, Submit{
		Commands:   cb.snapshot(),
		Wait:       wait,
		WaitStages: waitStages,
		Signal:     signal,
	})
	return nil
}

func (d *Device) WaitPresentIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PresentIdleWaits++
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.IdleWaits++
	return nil
}

// Float32At decodes a little endian float32 from b at offset.
func Float32At(b []byte, offset int) float32 {
	return float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

// Uint32At decodes a little endian uint32 from b at offset.
func Uint32At(b []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(b[offset:])
}
