package gpu

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
)

// ResourceManager creates and copies buffers and images against a device
// memory allocator. Every call is synchronous for the caller.
type ResourceManager interface {
	CreateBuffer(size uint64, usage BufferUsage, memory MemoryUsage) (*Buffer, error)
	DestroyBuffer(buffer *Buffer)
	// MapMemory returns the whole allocation as a byte slice valid until UnmapMemory.
	MapMemory(allocation Allocation) ([]byte, error)
	UnmapMemory(allocation Allocation)
	CreateImage(desc ImageDescriptor, memory MemoryUsage) (*Image, error)
	DestroyImage(image *Image)
	CopyBuffer(src, dst *Buffer, size uint64) error
	CopyBufferToImage(src *Buffer, dst *Image, width, height uint32) error
	TransitionImageLayout(image *Image, format Format, oldLayout, newLayout ImageLayout) error
}

// Buffer is a device buffer and its allocation. Destroy releases both and is
// safe to call more than once.
type Buffer struct {
	Handle     Handle
	Allocation Allocation
	Size       uint64
	Usage      BufferUsage
	Memory     MemoryUsage

	owner ResourceManager
}

// NewBuffer binds a backend-created buffer to the manager that releases it.
func NewBuffer(owner ResourceManager, handle Handle, allocation Allocation, size uint64, usage BufferUsage, memory MemoryUsage) *Buffer {
	return &Buffer{
		Handle:     handle,
		Allocation: allocation,
		Size:       size,
		Usage:      usage,
		Memory:     memory,
		owner:      owner,
	}
}

func (b *Buffer) IsDestroyed() bool {
	return b == nil || b.owner == nil
}

func (b *Buffer) Destroy() {
	if b.IsDestroyed() {
		return
	}
	owner := b.owner
	b.owner = nil
	owner.DestroyBuffer(b)
	b.Handle = 0
	b.Allocation = 0
}

// Write maps the buffer, copies data at offset and unmaps it again.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.IsDestroyed() {
		return fmt.Errorf("write to destroyed buffer: %w", core.ErrUnknownHandle)
	}
	if !b.Memory.Mappable() {
		return fmt.Errorf("buffer memory is not host visible: %w", core.ErrMapMemory)
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at offset %d overflows buffer of %d bytes", len(data), offset, b.Size)
	}
	mapped, err := b.owner.MapMemory(b.Allocation)
	if err != nil {
		return err
	}
	defer b.owner.UnmapMemory(b.Allocation)
	copy(mapped[offset:], data)
	return nil
}

// NewHostBuffer creates a host visible buffer and fills it with data.
func NewHostBuffer(rm ResourceManager, usage BufferUsage, data []byte) (*Buffer, error) {
	buf, err := rm.CreateBuffer(uint64(len(data)), usage, MemoryCPUToGPU)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(0, data); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// NewDeviceLocalBuffer uploads data into a device local buffer through a
// temporary staging buffer.
func NewDeviceLocalBuffer(rm ResourceManager, usage BufferUsage, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("device local buffer with no data: %w", core.ErrResourceCreation)
	}
	staging, err := NewHostBuffer(rm, BufferUsageTransferSrc, data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	buf, err := rm.CreateBuffer(uint64(len(data)), usage|BufferUsageTransferDst, MemoryGPUOnly)
	if err != nil {
		return nil, err
	}
	if err := rm.CopyBuffer(staging, buf, uint64(len(data))); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

type ImageDescriptor struct {
	Extent    Extent
	Format    Format
	Usage     ImageUsage
	MipLevels uint32
}

// Image is a device image and its allocation. Destroy is idempotent.
type Image struct {
	Handle     Handle
	Allocation Allocation
	Descriptor ImageDescriptor

	owner ResourceManager
}

func NewImage(owner ResourceManager, handle Handle, allocation Allocation, desc ImageDescriptor) *Image {
	return &Image{
		Handle:     handle,
		Allocation: allocation,
		Descriptor: desc,
		owner:      owner,
	}
}

func (i *Image) IsDestroyed() bool {
	return i == nil || i.owner == nil
}

func (i *Image) Destroy() {
	if i.IsDestroyed() {
		return
	}
	owner := i.owner
	i.owner = nil
	owner.DestroyImage(i)
	i.Handle = 0
	i.Allocation = 0
}
