package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// allocation is one dedicated device memory block.
type allocation struct {
	memory vk.DeviceMemory
	size   uint64
	usage  gpu.MemoryUsage
	mapped unsafe.Pointer
}

func memoryProperties(usage gpu.MemoryUsage) vk.MemoryPropertyFlagBits {
	switch usage {
	case gpu.MemoryCPUToGPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case gpu.MemoryCPUOnly:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func (d *Device) findMemoryIndex(typeFilter uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(d.memory.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&want == want {
			return i, true
		}
	}
	return 0, false
}

// allocate backs reqs with memory for usage. Host cached memory falls back
// to plain host visible memory when the device has none.
func (d *Device) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage) (gpu.Allocation, *allocation, error) {
	reqs.Deref()
	want := memoryProperties(usage)
	index, ok := d.findMemoryIndex(reqs.MemoryTypeBits, want)
	if !ok && usage == gpu.MemoryCPUOnly {
		index, ok = d.findMemoryIndex(reqs.MemoryTypeBits, memoryProperties(gpu.MemoryCPUToGPU))
	}
	if !ok {
		return 0, nil, fmt.Errorf("no memory type for usage %d: %w", usage, core.ErrResourceCreation)
	}

	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.logical, &info, nil, &mem); res != vk.Success {
		return 0, nil, resultError("vkAllocateMemory", res, core.ErrResourceCreation)
	}
	a := &allocation{memory: mem, size: uint64(reqs.Size), usage: usage}
	return gpu.Allocation(d.allocations.Acquire(a)), a, nil
}

func (d *Device) free(id gpu.Allocation) {
	a, err := d.allocations.Release(uint64(id))
	if err != nil {
		core.LogWarn("free of allocation: %s", err)
		return
	}
	if a.mapped != nil {
		vk.UnmapMemory(d.logical, a.memory)
	}
	vk.FreeMemory(d.logical, a.memory, nil)
}

func (d *Device) MapMemory(id gpu.Allocation) ([]byte, error) {
	a, ok := d.allocations.Get(uint64(id))
	if !ok {
		return nil, fmt.Errorf("map of allocation %d: %w", id, core.ErrUnknownHandle)
	}
	if !a.usage.Mappable() {
		return nil, fmt.Errorf("allocation %d is device local: %w", id, core.ErrMapMemory)
	}
	if a.mapped == nil {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(d.logical, a.memory, 0, vk.DeviceSize(a.size), 0, &ptr); res != vk.Success {
			return nil, resultError("vkMapMemory", res, core.ErrMapMemory)
		}
		a.mapped = ptr
	}
	return unsafe.Slice((*byte)(a.mapped), a.size), nil
}

func (d *Device) UnmapMemory(id gpu.Allocation) {
	a, ok := d.allocations.Get(uint64(id))
	if !ok || a.mapped == nil {
		return
	}
	vk.UnmapMemory(d.logical, a.memory)
	a.mapped = nil
}
