package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (*gpu.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer of size 0: %w", core.ErrResourceCreation)
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       toVkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.logical, &info, nil, &buffer); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res, core.ErrResourceCreation)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical, buffer, &reqs)
	id, a, err := d.allocate(reqs, memory)
	if err != nil {
		vk.DestroyBuffer(d.logical, buffer, nil)
		return nil, err
	}
	if res := vk.BindBufferMemory(d.logical, buffer, a.memory, 0); res != vk.Success {
		d.free(id)
		vk.DestroyBuffer(d.logical, buffer, nil)
		return nil, resultError("vkBindBufferMemory", res, core.ErrResourceCreation)
	}

	handle := gpu.Handle(d.buffers.Acquire(buffer))
	return gpu.NewBuffer(d, handle, id, size, usage, memory), nil
}

func (d *Device) DestroyBuffer(buffer *gpu.Buffer) {
	b, err := d.buffers.Release(uint64(buffer.Handle))
	if err != nil {
		core.LogWarn("destroy buffer: %s", err)
		return
	}
	vk.DestroyBuffer(d.logical, b, nil)
	d.free(buffer.Allocation)
}

func (d *Device) CopyBuffer(src, dst *gpu.Buffer, size uint64) error {
	s, ok1 := d.buffers.Get(uint64(src.Handle))
	t, ok2 := d.buffers.Get(uint64(dst.Handle))
	if !ok1 || !ok2 {
		return fmt.Errorf("copy between buffers %d and %d: %w", src.Handle, dst.Handle, core.ErrUnknownHandle)
	}
	if size > src.Size || size > dst.Size {
		return fmt.Errorf("copy of %d bytes exceeds buffer sizes %d/%d", size, src.Size, dst.Size)
	}
	cb, err := d.beginSingleUse()
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cb.handle, s, t, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
	return d.endSingleUse(cb)
}
