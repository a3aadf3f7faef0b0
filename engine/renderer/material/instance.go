package material

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Instance is one parameterization of a Material. Setters only change CPU
// state; WriteAllData, WriteDescriptorSet and WriteInstanceData push it to the
// GPU.
type Instance struct {
	material *Material
	device   gpu.Device
	pool     gpu.Handle

	sets         map[RenderMode]gpu.Handle
	instanceData *gpu.Buffer
	textures     map[TextureSlot]*gpu.Texture
	owned        []*gpu.Texture
	parameters   map[ParameterSlot]math.Vec4
}

// NewInstance allocates one descriptor set per supported render mode from
// pool, plus the parameter uniform buffer when the material needs one.
func NewInstance(material *Material, pool gpu.Handle) (*Instance, error) {
	inst := &Instance{
		material:   material,
		device:     material.device,
		pool:       pool,
		sets:       make(map[RenderMode]gpu.Handle),
		textures:   make(map[TextureSlot]*gpu.Texture),
		parameters: make(map[ParameterSlot]math.Vec4),
	}
	for _, mode := range material.Modes() {
		layout := material.DescriptorSetLayout(mode)
		if layout.IsNull() {
			continue
		}
		set, err := inst.device.AllocateDescriptorSet(pool, layout)
		if err != nil {
			inst.Destroy()
			return nil, fmt.Errorf("material instance of '%s' mode %s: %w", material.name, mode, err)
		}
		inst.sets[mode] = set
	}
	if material.NeedsInstanceData() {
		buf, err := inst.device.CreateBuffer(InstanceDataSize, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU)
		if err != nil {
			inst.Destroy()
			return nil, fmt.Errorf("material instance of '%s' instance data: %w", material.name, err)
		}
		inst.instanceData = buf
	}
	return inst, nil
}

func (i *Instance) Material() *Material { return i.material }

// SetTexture binds a texture the caller keeps ownership of.
func (i *Instance) SetTexture(slot TextureSlot, texture *gpu.Texture) {
	i.textures[slot] = texture
}

// AdoptTexture binds a texture and takes ownership of it.
func (i *Instance) AdoptTexture(slot TextureSlot, texture *gpu.Texture) {
	i.textures[slot] = texture
	i.owned = append(i.owned, texture)
}

// Texture resolves slot: the instance texture, else the material default,
// else nil.
func (i *Instance) Texture(slot TextureSlot) *gpu.Texture {
	if t, ok := i.textures[slot]; ok && t != nil {
		return t
	}
	return i.material.DefaultTexture(slot)
}

func (i *Instance) SetParameter(slot ParameterSlot, value math.Vec4) {
	i.parameters[slot] = value
}

// GetParameter returns the value set for slot, or def when it was never set.
func (i *Instance) GetParameter(slot ParameterSlot, def math.Vec4) math.Vec4 {
	if v, ok := i.parameters[slot]; ok {
		return v
	}
	return def
}

// DescriptorSet returns the set for mode, or the null handle.
func (i *Instance) DescriptorSet(mode RenderMode) gpu.Handle {
	return i.sets[mode]
}

// InstanceData returns the parameter uniform buffer, or nil.
func (i *Instance) InstanceData() *gpu.Buffer {
	return i.instanceData
}

// WriteInstanceData packs every parameter slot as a vec4 into the uniform
// buffer. Unset slots take the material default, else zero.
func (i *Instance) WriteInstanceData() error {
	if i.instanceData == nil {
		return nil
	}
	var data [parameterSlotCount]math.Vec4
	for slot := ParameterSlot(0); slot < parameterSlotCount; slot++ {
		data[slot] = i.GetParameter(slot, i.material.DefaultParameter(slot, math.Vec4{}))
	}
	return i.instanceData.Write(0, gpu.SliceBytes(data[:]))
}

// WriteDescriptorSet points the set of mode at the instance data and the
// resolved textures. A slot with neither an instance nor a default texture is
// an error.
func (i *Instance) WriteDescriptorSet(mode RenderMode) error {
	set, ok := i.sets[mode]
	if !ok {
		if i.material.Supports(mode) {
			return nil
		}
		return fmt.Errorf("material '%s' mode %s: %w", i.material.name, mode, core.ErrUnsupportedRenderMode)
	}

	ms := i.material.modes[mode]
	writes := make([]gpu.DescriptorWrite, 0, len(ms.desc.Textures)+1)
	if ms.desc.InstanceData {
		writes = append(writes, gpu.DescriptorWrite{
			Binding: InstanceDataBinding,
			Type:    gpu.DescriptorTypeUniformBuffer,
			Buffer:  i.instanceData,
			Range:   InstanceDataSize,
		})
	}
	for idx, slot := range ms.desc.Textures {
		tex := i.Texture(slot)
		if tex == nil {
			return fmt.Errorf("material '%s' slot %d: %w", i.material.name, slot, core.ErrNoTexture)
		}
		writes = append(writes, gpu.DescriptorWrite{
			Binding:   firstTextureBinding + uint32(idx),
			Type:      gpu.DescriptorTypeCombinedImageSampler,
			ImageView: tex.View,
			Sampler:   tex.Sampler,
		})
	}
	i.device.UpdateDescriptorSet(set, writes)
	return nil
}

// WriteAllData uploads the parameters and rewrites every descriptor set.
func (i *Instance) WriteAllData() error {
	if err := i.WriteInstanceData(); err != nil {
		return err
	}
	for _, mode := range i.material.Modes() {
		if err := i.WriteDescriptorSet(mode); err != nil {
			return err
		}
	}
	return nil
}

// Destroy frees the descriptor sets back to the pool and releases the
// instance buffer and adopted textures.
func (i *Instance) Destroy() {
	for mode, set := range i.sets {
		if err := i.device.FreeDescriptorSet(i.pool, set); err != nil {
			core.LogWarn("free descriptor set of '%s' mode %s: %s", i.material.name, mode, err)
		}
		delete(i.sets, mode)
	}
	if i.instanceData != nil {
		i.instanceData.Destroy()
		i.instanceData = nil
	}
	for _, t := range i.owned {
		t.Destroy()
	}
	i.owned = nil
}

// NewDescriptorPool sizes a pool for maxInstances instances of materials
// binding up to texturesPerSet textures.
func NewDescriptorPool(device gpu.Device, maxInstances, texturesPerSet uint32) (gpu.Handle, error) {
	return device.CreateDescriptorPool(gpu.DescriptorPoolDescriptor{
		MaxSets: maxInstances,
		Sizes: []gpu.DescriptorPoolSize{
			{Type: gpu.DescriptorTypeUniformBuffer, Count: maxInstances},
			{Type: gpu.DescriptorTypeCombinedImageSampler, Count: maxInstances * texturesPerSet},
		},
	})
}
