package material

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// ModelPushConstantSize is the per draw push constant block: one mat4.
const ModelPushConstantSize = 64

// ModelPushConstantRange is shared by every pipeline layout, which keeps the
// global set bound across pipeline switches.
var ModelPushConstantRange = gpu.PushConstantRange{
	Stages: gpu.ShaderStageVertex,
	Offset: 0,
	Size:   ModelPushConstantSize,
}

// Configuration is the target state every cached pipeline is compiled for.
type Configuration struct {
	Extent          gpu.Extent
	SampleCount     uint32
	RenderPass      gpu.Handle
	GlobalSetLayout gpu.Handle
	Blend           gpu.BlendMode
}

// Pipeline is the compiled pipeline of one material.
type Pipeline struct {
	Material *Material
	Layout   gpu.Handle
	Handle   gpu.Handle
	Extent   gpu.Extent
	// MaterialSet is true when set 1 carries the instance descriptor set.
	MaterialSet bool
}

// PipelineManager caches at most one pipeline per material for one render
// mode. Callers serialize it with in-flight frames.
type PipelineManager struct {
	device    gpu.Device
	mode      RenderMode
	config    Configuration
	pipelines map[uuid.UUID]*Pipeline
	order     []uuid.UUID
}

func NewPipelineManager(device gpu.Device, mode RenderMode, config Configuration) *PipelineManager {
	return &PipelineManager{
		device:    device,
		mode:      mode,
		config:    config,
		pipelines: make(map[uuid.UUID]*Pipeline),
	}
}

func (pm *PipelineManager) Mode() RenderMode { return pm.mode }

func (pm *PipelineManager) Configuration() Configuration { return pm.config }

func (pm *PipelineManager) Len() int { return len(pm.pipelines) }

func (pm *PipelineManager) Pipeline(m *Material) (*Pipeline, bool) {
	p, ok := pm.pipelines[m.ID()]
	return p, ok
}

// AddMaterial compiles a pipeline for m if none is cached. Calling it again
// for the same material does nothing.
func (pm *PipelineManager) AddMaterial(m *Material) error {
	if _, ok := pm.pipelines[m.ID()]; ok {
		return nil
	}
	p, err := pm.compile(m)
	if err != nil {
		return err
	}
	pm.pipelines[m.ID()] = p
	pm.order = append(pm.order, m.ID())
	core.LogDebug("pipeline compiled for material '%s' (%s, %s)", m.Name(), pm.mode, pm.config.Extent)
	return nil
}

// RemoveMaterial destroys the pipeline of m, if any.
func (pm *PipelineManager) RemoveMaterial(m *Material) {
	p, ok := pm.pipelines[m.ID()]
	if !ok {
		return
	}
	pm.destroyPipeline(p)
	delete(pm.pipelines, m.ID())
	for i, id := range pm.order {
		if id == m.ID() {
			pm.order = append(pm.order[:i], pm.order[i+1:]...)
			break
		}
	}
}

// Rebuild recompiles the pipeline of m against the current configuration.
// The cached pipeline is replaced only once the new one compiled.
func (pm *PipelineManager) Rebuild(m *Material) error {
	p, ok := pm.pipelines[m.ID()]
	if !ok {
		return fmt.Errorf("material '%s': %w", m.Name(), core.ErrMaterialNotRegistered)
	}
	np, err := pm.compile(m)
	if err != nil {
		return err
	}
	pm.destroyPipeline(p)
	pm.pipelines[m.ID()] = np
	return nil
}

// SetConfiguration destroys every cached pipeline and compiles it again for
// config. The device must be idle. A material that fails to compile is
// dropped from the cache and must be added again.
func (pm *PipelineManager) SetConfiguration(config Configuration) error {
	pm.config = config
	var errs []error
	order := make([]uuid.UUID, 0, len(pm.order))
	for _, id := range pm.order {
		old := pm.pipelines[id]
		pm.destroyPipeline(old)
		p, err := pm.compile(old.Material)
		if err != nil {
			delete(pm.pipelines, id)
			errs = append(errs, err)
			continue
		}
		pm.pipelines[id] = p
		order = append(order, id)
	}
	pm.order = order
	core.LogDebug("%d pipelines recompiled for %s", len(pm.order), config.Extent)
	return errors.Join(errs...)
}

func (pm *PipelineManager) compile(m *Material) (*Pipeline, error) {
	if !m.Supports(pm.mode) {
		return nil, fmt.Errorf("material '%s' mode %s: %w", m.Name(), pm.mode, core.ErrUnsupportedRenderMode)
	}
	setLayouts := []gpu.Handle{pm.config.GlobalSetLayout}
	materialLayout := m.DescriptorSetLayout(pm.mode)
	if !materialLayout.IsNull() {
		setLayouts = append(setLayouts, materialLayout)
	}

	layout, err := pm.device.CreatePipelineLayout(setLayouts, []gpu.PushConstantRange{ModelPushConstantRange})
	if err != nil {
		return nil, fmt.Errorf("material '%s' pipeline layout: %w", m.Name(), err)
	}

	state := m.State()
	blend := pm.config.Blend
	if state.Blend == gpu.BlendModeAlpha {
		blend = gpu.BlendModeAlpha
	}
	handle, err := pm.device.CreateGraphicsPipeline(gpu.PipelineDescriptor{
		Layout:       layout,
		RenderPass:   pm.config.RenderPass,
		Stages:       m.ShaderStages(pm.mode),
		VertexLayout: m.VertexLayout(),
		Topology:     state.Topology,
		Extent:       pm.config.Extent,
		SampleCount:  pm.config.SampleCount,
		CullMode:     state.CullMode,
		Blend:        blend,
		DepthTest:    state.DepthTest,
		DepthWrite:   state.DepthWrite,
		Wireframe:    state.Wireframe,
		LineWidth:    1.0,
	})
	if err != nil {
		pm.device.DestroyPipelineLayout(layout)
		err = fmt.Errorf("material '%s': %w: %w", m.Name(), core.ErrPipelineCompile, err)
		core.LogError(err.Error())
		return nil, err
	}
	return &Pipeline{
		Material:    m,
		Layout:      layout,
		Handle:      handle,
		Extent:      pm.config.Extent,
		MaterialSet: !materialLayout.IsNull(),
	}, nil
}

func (pm *PipelineManager) destroyPipeline(p *Pipeline) {
	if p == nil {
		return
	}
	if !p.Handle.IsNull() {
		pm.device.DestroyPipeline(p.Handle)
		p.Handle = 0
	}
	if !p.Layout.IsNull() {
		pm.device.DestroyPipelineLayout(p.Layout)
		p.Layout = 0
	}
}

// Destroy releases every cached pipeline.
func (pm *PipelineManager) Destroy() {
	for _, id := range pm.order {
		pm.destroyPipeline(pm.pipelines[id])
	}
	pm.pipelines = make(map[uuid.UUID]*Pipeline)
	pm.order = nil
}
