package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.Handle, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.logical, &info, nil, &layout); res != vk.Success {
		return 0, resultError("vkCreateDescriptorSetLayout", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.setLayouts.Acquire(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.Handle) {
	l, err := d.setLayouts.Release(uint64(layout))
	if err != nil {
		core.LogWarn("destroy descriptor set layout: %s", err)
		return
	}
	vk.DestroyDescriptorSetLayout(d.logical, l, nil)
}

// CreateDescriptorPool creates a pool whose sets can be freed one by one.
// Sizes with a zero count are skipped.
func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.Handle, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(desc.Sizes))
	for _, s := range desc.Sizes {
		if s.Count == 0 {
			continue
		}
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            toVkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		})
	}
	if desc.MaxSets == 0 || len(sizes) == 0 {
		return 0, fmt.Errorf("descriptor pool without sets or descriptors: %w", core.ErrResourceCreation)
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.logical, &info, nil, &pool); res != vk.Success {
		return 0, resultError("vkCreateDescriptorPool", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.pools.Acquire(pool)), nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.Handle) {
	p, err := d.pools.Release(uint64(pool))
	if err != nil {
		core.LogWarn("destroy descriptor pool: %s", err)
		return
	}
	vk.DestroyDescriptorPool(d.logical, p, nil)
}

func (d *Device) AllocateDescriptorSet(pool, layout gpu.Handle) (gpu.Handle, error) {
	p, ok1 := d.pools.Get(uint64(pool))
	l, ok2 := d.setLayouts.Get(uint64(layout))
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("allocate from pool %d with layout %d: %w", pool, layout, core.ErrUnknownHandle)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}
	var set vk.DescriptorSet
	err := d.locks.call(descriptorManagement, func() error {
		if res := vk.AllocateDescriptorSets(d.logical, &info, &set); res != vk.Success {
			return resultError("vkAllocateDescriptorSets", res, core.ErrResourceCreation)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return gpu.Handle(d.sets.Acquire(set)), nil
}

func (d *Device) FreeDescriptorSet(pool, set gpu.Handle) error {
	p, ok := d.pools.Get(uint64(pool))
	if !ok {
		return fmt.Errorf("free into pool %d: %w", pool, core.ErrUnknownHandle)
	}
	s, err := d.sets.Release(uint64(set))
	if err != nil {
		return err
	}
	return d.locks.call(descriptorManagement, func() error {
		if res := vk.FreeDescriptorSets(d.logical, p, 1, &s); res != vk.Success {
			return resultError("vkFreeDescriptorSets", res, nil)
		}
		return nil
	})
}

func (d *Device) UpdateDescriptorSet(set gpu.Handle, writes []gpu.DescriptorWrite) {
	s, ok := d.sets.Get(uint64(set))
	if !ok {
		core.LogError("update of unknown descriptor set %d", set)
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  toVkDescriptorType(w.Type),
		}
		switch w.Type {
		case gpu.DescriptorTypeUniformBuffer:
			b, ok := d.buffers.Get(uint64(w.Buffer.Handle))
			if !ok {
				core.LogError("descriptor write of unknown buffer %d", w.Buffer.Handle)
				continue
			}
			size := w.Range
			if size == 0 {
				size = w.Buffer.Size - w.Offset
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(size),
			}}
		case gpu.DescriptorTypeCombinedImageSampler:
			view, ok1 := d.imageViews.Get(uint64(w.ImageView))
			sampler, ok2 := d.samplers.Get(uint64(w.Sampler))
			if !ok1 || !ok2 {
				core.LogError("descriptor write of unknown view %d or sampler %d", w.ImageView, w.Sampler)
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.logical, uint32(len(vkWrites)), vkWrites, 0, nil)
}
