// Package material describes shading techniques, their parameterizations and
// the pipelines compiled for them.
package material

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// RenderMode is a pass variant a material may support.
type RenderMode uint8

const (
	RenderModeColor RenderMode = iota
	RenderModeShadow
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeColor:
		return "color"
	case RenderModeShadow:
		return "shadow"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

type TextureSlot uint32

const (
	TextureSlotBaseColor TextureSlot = iota
	TextureSlotNormal
	TextureSlotMetallicRoughness
	TextureSlotOcclusion
	TextureSlotEmissive
)

// MaxTextureSlots is the number of texture slots a mode can bind.
const MaxTextureSlots = uint32(TextureSlotEmissive) + 1

type ParameterSlot uint32

const (
	ParameterBaseColorFactor ParameterSlot = iota
	ParameterEmissiveFactor
	// X is metallic, Y is roughness.
	ParameterMetallicRoughness
	ParameterAlphaCutoff
	parameterSlotCount
)

// ParameterStride is the std140 size of one parameter slot (a vec4).
const ParameterStride = 16

// InstanceDataSize is the size of the uniform block holding every parameter slot.
const InstanceDataSize = uint64(parameterSlotCount) * ParameterStride

// Binding indices inside the material descriptor set (set 1).
const (
	InstanceDataBinding uint32 = 0
	firstTextureBinding uint32 = 1
)

type ShaderSource struct {
	Stage gpu.ShaderStage
	// SPIR-V words.
	Code  []uint32
	Entry string
}

// ModeDescriptor declares what a material needs in one render mode.
type ModeDescriptor struct {
	Shaders []ShaderSource
	// Textures are bound at set 1, binding 1+i, in declaration order.
	Textures []TextureSlot
	// InstanceData binds the parameter uniform block at set 1, binding 0.
	InstanceData bool
}

func (d ModeDescriptor) hasDescriptorSet() bool {
	return d.InstanceData || len(d.Textures) > 0
}

type Descriptor struct {
	Name              string
	Modes             map[RenderMode]ModeDescriptor
	VertexLayout      gpu.VertexLayout
	State             PipelineState
	DefaultTextures   map[TextureSlot]*gpu.Texture
	DefaultParameters map[ParameterSlot]math.Vec4
}

// PipelineState is the fixed function state a material asks for.
type PipelineState struct {
	Topology   gpu.Topology
	CullMode   gpu.CullMode
	Blend      gpu.BlendMode
	DepthTest  bool
	DepthWrite bool
	Wireframe  bool
}

func DefaultPipelineState() PipelineState {
	return PipelineState{
		Topology:   gpu.TopologyTriangleList,
		CullMode:   gpu.CullModeBack,
		Blend:      gpu.BlendModeOpaque,
		DepthTest:  true,
		DepthWrite: true,
	}
}

type modeState struct {
	desc    ModeDescriptor
	modules []gpu.ShaderStageModule
	layout  gpu.Handle
}

// Material is a shading technique shared by all of its instances. Default
// textures are borrowed: the caller keeps ownership.
type Material struct {
	id     uuid.UUID
	name   string
	device gpu.Device

	modes        map[RenderMode]*modeState
	vertexLayout gpu.VertexLayout
	state        PipelineState
	textures     map[TextureSlot]*gpu.Texture
	parameters   map[ParameterSlot]math.Vec4
}

func NewMaterial(device gpu.Device, desc Descriptor) (*Material, error) {
	if len(desc.Modes) == 0 {
		return nil, fmt.Errorf("material '%s' declares no render mode", desc.Name)
	}
	m := &Material{
		id:           uuid.New(),
		name:         desc.Name,
		device:       device,
		modes:        make(map[RenderMode]*modeState, len(desc.Modes)),
		vertexLayout: desc.VertexLayout,
		state:        desc.State,
		textures:     make(map[TextureSlot]*gpu.Texture, len(desc.DefaultTextures)),
		parameters:   make(map[ParameterSlot]math.Vec4, len(desc.DefaultParameters)),
	}
	for slot, tex := range desc.DefaultTextures {
		m.textures[slot] = tex
	}
	for slot, v := range desc.DefaultParameters {
		m.parameters[slot] = v
	}

	for mode, md := range desc.Modes {
		ms := &modeState{desc: md}
		m.modes[mode] = ms
		if err := m.createModules(ms, md.Shaders); err != nil {
			m.Destroy()
			return nil, fmt.Errorf("material '%s' mode %s: %w", desc.Name, mode, err)
		}
		if !md.hasDescriptorSet() {
			continue
		}
		layout, err := device.CreateDescriptorSetLayout(md.bindings())
		if err != nil {
			m.Destroy()
			return nil, fmt.Errorf("material '%s' mode %s descriptor set layout: %w", desc.Name, mode, err)
		}
		ms.layout = layout
	}
	core.LogDebug("material '%s' created with id %s", m.name, m.id)
	return m, nil
}

func (d ModeDescriptor) bindings() []gpu.DescriptorBinding {
	var bindings []gpu.DescriptorBinding
	if d.InstanceData {
		bindings = append(bindings, gpu.DescriptorBinding{
			Binding: InstanceDataBinding,
			Type:    gpu.DescriptorTypeUniformBuffer,
			Count:   1,
			Stages:  gpu.ShaderStageVertex | gpu.ShaderStageFragment,
		})
	}
	for i := range d.Textures {
		bindings = append(bindings, gpu.DescriptorBinding{
			Binding: firstTextureBinding + uint32(i),
			Type:    gpu.DescriptorTypeCombinedImageSampler,
			Count:   1,
			Stages:  gpu.ShaderStageFragment,
		})
	}
	return bindings
}

func (m *Material) createModules(ms *modeState, shaders []ShaderSource) error {
	modules := make([]gpu.ShaderStageModule, 0, len(shaders))
	for _, s := range shaders {
		h, err := m.device.CreateShaderModule(s.Code)
		if err != nil {
			for _, created := range modules {
				m.device.DestroyShaderModule(created.Module)
			}
			return err
		}
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		modules = append(modules, gpu.ShaderStageModule{Stage: s.Stage, Module: h, Entry: entry})
	}
	ms.modules = modules
	return nil
}

func (m *Material) destroyModules(ms *modeState) {
	for _, s := range ms.modules {
		m.device.DestroyShaderModule(s.Module)
	}
	ms.modules = nil
}

// ID is stable for the lifetime of the material and keys the pipeline cache.
func (m *Material) ID() uuid.UUID { return m.id }

func (m *Material) Name() string { return m.name }

func (m *Material) Supports(mode RenderMode) bool {
	_, ok := m.modes[mode]
	return ok
}

// Modes returns the supported render modes in ascending order.
func (m *Material) Modes() []RenderMode {
	modes := make([]RenderMode, 0, len(m.modes))
	for mode := RenderModeColor; mode <= RenderModeShadow; mode++ {
		if m.Supports(mode) {
			modes = append(modes, mode)
		}
	}
	return modes
}

func (m *Material) ShaderStages(mode RenderMode) []gpu.ShaderStageModule {
	ms, ok := m.modes[mode]
	if !ok {
		return nil
	}
	return ms.modules
}

// ShaderSources returns the sources the modules of mode were created from.
func (m *Material) ShaderSources(mode RenderMode) []ShaderSource {
	if ms, ok := m.modes[mode]; ok {
		return ms.desc.Shaders
	}
	return nil
}

// DescriptorSetLayout returns the layout of the material set for mode, or the
// null handle when the mode binds no material resources.
func (m *Material) DescriptorSetLayout(mode RenderMode) gpu.Handle {
	ms, ok := m.modes[mode]
	if !ok {
		return 0
	}
	return ms.layout
}

func (m *Material) textureSlots(mode RenderMode) []TextureSlot {
	if ms, ok := m.modes[mode]; ok {
		return ms.desc.Textures
	}
	return nil
}

// NeedsInstanceData reports whether any mode binds the parameter block.
func (m *Material) NeedsInstanceData() bool {
	for _, ms := range m.modes {
		if ms.desc.InstanceData {
			return true
		}
	}
	return false
}

func (m *Material) DefaultTexture(slot TextureSlot) *gpu.Texture {
	return m.textures[slot]
}

// DefaultParameter returns the material level value of slot, or def.
func (m *Material) DefaultParameter(slot ParameterSlot, def math.Vec4) math.Vec4 {
	if v, ok := m.parameters[slot]; ok {
		return v
	}
	return def
}

func (m *Material) VertexLayout() gpu.VertexLayout { return m.vertexLayout }

func (m *Material) State() PipelineState { return m.state }

// ReloadShaders replaces the shader modules of mode. Pipelines built from the
// old modules must be rebuilt by the caller, with the device idle.
func (m *Material) ReloadShaders(mode RenderMode, shaders []ShaderSource) error {
	ms, ok := m.modes[mode]
	if !ok {
		return fmt.Errorf("material '%s' mode %s: %w", m.name, mode, core.ErrUnsupportedRenderMode)
	}
	old := ms.modules
	if err := m.createModules(ms, shaders); err != nil {
		ms.modules = old
		return fmt.Errorf("material '%s' shader reload: %w", m.name, err)
	}
	for _, s := range old {
		m.device.DestroyShaderModule(s.Module)
	}
	ms.desc.Shaders = shaders
	core.LogInfo("material '%s' reloaded %d shader stages for mode %s", m.name, len(shaders), mode)
	return nil
}

func (m *Material) Destroy() {
	for _, ms := range m.modes {
		m.destroyModules(ms)
		if !ms.layout.IsNull() {
			m.device.DestroyDescriptorSetLayout(ms.layout)
			ms.layout = 0
		}
	}
}

// StandardVertexLayout describes math.Vertex3D.
func StandardVertexLayout() gpu.VertexLayout {
	return gpu.VertexLayout{
		Stride: 48,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
			{Location: 1, Format: gpu.FormatR32G32B32Sfloat, Offset: 12},
			{Location: 2, Format: gpu.FormatR32G32Sfloat, Offset: 24},
			{Location: 3, Format: gpu.FormatR32G32B32A32Sfloat, Offset: 32},
		},
	}
}
