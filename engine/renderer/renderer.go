// Package renderer turns a scene graph into per frame GPU commands.
package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
	"github.com/spaghettifunk/lumen/engine/renderer/target"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// State is the lifecycle state of a Renderer.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateFrameLoop
	StateReconfiguring
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateFrameLoop:
		return "frame_loop"
	case StateReconfiguring:
		return "reconfiguring"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds the renderer settings that do not depend on the target.
type Config struct {
	ClearColor [4]float32
	// MaxSpotLights limits the spot lights uploaded each frame, up to
	// MaxSpotLights.
	MaxSpotLights int
	// DepthFormat is used when the renderer creates its own depth image.
	DepthFormat gpu.Format
	SampleCount uint32
	// ColorFinalLayout is the layout color images are left in after the
	// pass: PresentSrc for a swapchain, ShaderReadOnly for offscreen.
	ColorFinalLayout gpu.ImageLayout
	Blend            gpu.BlendMode
}

// DefaultConfig returns the settings for presenting to a swapchain.
func DefaultConfig() Config {
	return Config{
		ClearColor:       [4]float32{0, 0, 0.2, 1},
		MaxSpotLights:    MaxSpotLights,
		DepthFormat:      gpu.FormatD32Sfloat,
		SampleCount:      1,
		ColorFinalLayout: gpu.ImageLayoutPresentSrc,
		Blend:            gpu.BlendModeOpaque,
	}
}

// FrameStats describes the last recorded frame.
type FrameStats struct {
	DrawCalls     int
	Indices       int
	PipelineBinds int
}

// Renderer owns the render pass, framebuffers, global descriptor set and its
// uniform buffers, and the pipeline cache. It is driven from a single
// goroutine.
type Renderer struct {
	device gpu.Device
	config Config

	color      target.RenderTarget
	depth      target.DepthTarget
	ownedDepth *target.DepthImage
	callbackID int

	state State

	renderPass     gpu.Handle
	framebuffers   []gpu.Handle
	commandBuffers []gpu.CommandBuffer

	globalSetLayout      gpu.Handle
	globalPipelineLayout gpu.Handle
	descriptorPool       gpu.Handle
	globalSet            gpu.Handle
	matrixBuffer         *gpu.Buffer
	lightingBuffer       *gpu.Buffer
	cameraBuffer         *gpu.Buffer

	pipelines *material.PipelineManager

	scene  *scene.Scene
	camera *scene.Camera
	stats  FrameStats

	reconfigureErr error
}

// New creates every frame independent resource against color and, when
// given, depth. With a nil depth target the renderer owns a depth image.
func New(device gpu.Device, color target.RenderTarget, depth target.DepthTarget, config Config) (*Renderer, error) {
	r := &Renderer{
		device: device,
		config: config,
		color:  color,
		depth:  depth,
		state:  StateUninitialized,
	}
	if err := r.configure(); err != nil {
		r.Destroy()
		return nil, err
	}
	r.callbackID = color.RegisterChangeCallback(r.onTargetChanged)
	r.state = StateConfigured
	core.LogInfo("renderer configured for %s with %d images", color.GetExtent(), len(r.framebuffers))
	return r, nil
}

func (r *Renderer) configure() error {
	if r.depth == nil {
		if err := r.createDepth(); err != nil {
			return err
		}
	}

	var err error
	r.renderPass, err = r.device.CreateRenderPass(gpu.RenderPassDescriptor{
		Color: gpu.AttachmentDescriptor{
			Format:      r.color.GetFormat(),
			Clear:       true,
			FinalLayout: r.config.ColorFinalLayout,
		},
		Depth: &gpu.AttachmentDescriptor{
			Format:      r.depthTarget().GetFormat(),
			Clear:       true,
			FinalLayout: gpu.ImageLayoutDepthStencilAttachment,
		},
	})
	if err != nil {
		return fmt.Errorf("renderer render pass: %w", err)
	}

	if err := r.createGlobalDescriptors(); err != nil {
		return err
	}
	if err := r.createFramebuffers(); err != nil {
		return err
	}
	if err := r.createCommandBuffers(); err != nil {
		return err
	}
	r.pipelines = material.NewPipelineManager(r.device, material.RenderModeColor, r.pipelineConfiguration())
	return nil
}

func (r *Renderer) depthTarget() target.DepthTarget {
	if r.ownedDepth != nil {
		return r.ownedDepth
	}
	return r.depth
}

func (r *Renderer) createDepth() error {
	d, err := target.NewDepthImage(r.device, r.color.GetExtent(), r.config.DepthFormat)
	if err != nil {
		return fmt.Errorf("renderer depth image: %w", err)
	}
	r.ownedDepth = d
	return nil
}

func (r *Renderer) createGlobalDescriptors() error {
	var err error
	r.globalSetLayout, err = r.device.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: MatrixBinding, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
		{Binding: LightingBinding, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageFragment},
		{Binding: CameraBinding, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageFragment},
	})
	if err != nil {
		return fmt.Errorf("renderer global set layout: %w", err)
	}
	// Same set 0 layout and push constant range as every material pipeline,
	// so set 0 stays bound when pipelines change.
	r.globalPipelineLayout, err = r.device.CreatePipelineLayout(
		[]gpu.Handle{r.globalSetLayout},
		[]gpu.PushConstantRange{material.ModelPushConstantRange},
	)
	if err != nil {
		return fmt.Errorf("renderer global pipeline layout: %w", err)
	}
	r.descriptorPool, err = r.device.CreateDescriptorPool(gpu.DescriptorPoolDescriptor{
		MaxSets: 1,
		Sizes:   []gpu.DescriptorPoolSize{{Type: gpu.DescriptorTypeUniformBuffer, Count: 3}},
	})
	if err != nil {
		return fmt.Errorf("renderer descriptor pool: %w", err)
	}
	r.globalSet, err = r.device.AllocateDescriptorSet(r.descriptorPool, r.globalSetLayout)
	if err != nil {
		return fmt.Errorf("renderer global set: %w", err)
	}

	if r.matrixBuffer, err = r.device.CreateBuffer(MatrixUniformsSize, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
		return fmt.Errorf("renderer matrix uniforms: %w", err)
	}
	if r.lightingBuffer, err = r.device.CreateBuffer(LightingUniformsSize, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
		return fmt.Errorf("renderer lighting uniforms: %w", err)
	}
	if r.cameraBuffer, err = r.device.CreateBuffer(CameraUniformsSize, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU); err != nil {
		return fmt.Errorf("renderer camera uniforms: %w", err)
	}

	r.device.UpdateDescriptorSet(r.globalSet, []gpu.DescriptorWrite{
		{Binding: MatrixBinding, Type: gpu.DescriptorTypeUniformBuffer, Buffer: r.matrixBuffer, Range: MatrixUniformsSize},
		{Binding: LightingBinding, Type: gpu.DescriptorTypeUniformBuffer, Buffer: r.lightingBuffer, Range: LightingUniformsSize},
		{Binding: CameraBinding, Type: gpu.DescriptorTypeUniformBuffer, Buffer: r.cameraBuffer, Range: CameraUniformsSize},
	})
	return nil
}

func (r *Renderer) createFramebuffers() error {
	extent := r.color.GetExtent()
	depthView := r.depthTarget().GetImageView()
	for i, view := range r.color.GetImageViews() {
		fb, err := r.device.CreateFramebuffer(r.renderPass, []gpu.Handle{view, depthView}, extent)
		if err != nil {
			return fmt.Errorf("renderer framebuffer %d: %w", i, err)
		}
		r.framebuffers = append(r.framebuffers, fb)
	}
	return nil
}

func (r *Renderer) destroyFramebuffers() {
	for _, fb := range r.framebuffers {
		r.device.DestroyFramebuffer(fb)
	}
	r.framebuffers = nil
}

// createCommandBuffers keeps one command buffer per target image.
func (r *Renderer) createCommandBuffers() error {
	want := len(r.color.GetImageViews())
	for len(r.commandBuffers) > want {
		last := len(r.commandBuffers) - 1
		r.device.FreeCommandBuffer(r.commandBuffers[last])
		r.commandBuffers = r.commandBuffers[:last]
	}
	for len(r.commandBuffers) < want {
		cmd, err := r.device.AllocateCommandBuffer()
		if err != nil {
			return fmt.Errorf("renderer command buffer: %w", err)
		}
		r.commandBuffers = append(r.commandBuffers, cmd)
	}
	return nil
}

func (r *Renderer) pipelineConfiguration() material.Configuration {
	return material.Configuration{
		Extent:          r.color.GetExtent(),
		SampleCount:     r.config.SampleCount,
		RenderPass:      r.renderPass,
		GlobalSetLayout: r.globalSetLayout,
		Blend:           r.config.Blend,
	}
}

// State returns the current lifecycle state.
func (r *Renderer) State() State { return r.state }

// Stats describes the last recorded frame.
func (r *Renderer) Stats() FrameStats { return r.stats }

// Extent is the extent of the color target.
func (r *Renderer) Extent() gpu.Extent { return r.color.GetExtent() }

// FramebufferCount is the number of framebuffers, one per color image.
func (r *Renderer) FramebufferCount() int { return len(r.framebuffers) }

// Pipelines exposes the pipeline cache, read only.
func (r *Renderer) Pipelines() *material.PipelineManager { return r.pipelines }

// SetScene sets the scene drawn by DrawFrame. The scene is borrowed.
func (r *Renderer) SetScene(s *scene.Scene) { r.scene = s }

// SetCamera sets the camera the scene is viewed through.
func (r *Renderer) SetCamera(c *scene.Camera) { r.camera = c }

// AddMaterial compiles the pipeline of m. Every material drawn must be added
// first.
func (r *Renderer) AddMaterial(m *material.Material) error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	return r.pipelines.AddMaterial(m)
}

// RemoveMaterial destroys the pipeline of m, if one is cached.
func (r *Renderer) RemoveMaterial(m *material.Material) {
	if r.pipelines != nil {
		r.pipelines.RemoveMaterial(m)
	}
}

// ReloadMaterial swaps the color mode shaders of m and rebuilds its
// pipeline. The device is drained first. When the new pipeline fails to
// compile, m gets its previous shaders back and keeps its current pipeline.
func (r *Renderer) ReloadMaterial(m *material.Material, shaders []material.ShaderSource) error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	previous := m.ShaderSources(material.RenderModeColor)
	if err := m.ReloadShaders(material.RenderModeColor, shaders); err != nil {
		return err
	}
	if err := r.pipelines.Rebuild(m); err != nil {
		if rerr := m.ReloadShaders(material.RenderModeColor, previous); rerr != nil {
			core.LogWarn("material '%s' previous shaders not restored: %s", m.Name(), rerr)
		}
		return err
	}
	return nil
}

func (r *Renderer) checkAlive() error {
	if r.state == StateUninitialized || r.state == StateDestroyed {
		return fmt.Errorf("renderer is %s: %w", r.state, core.ErrInvalidState)
	}
	return nil
}

// onTargetChanged is registered on the color target.
func (r *Renderer) onTargetChanged() {
	if err := r.Reconfigure(); err != nil {
		core.LogError("renderer reconfiguration failed: %s", err)
		r.reconfigureErr = err
	}
}

// Reconfigure rebuilds everything that depends on the color target: owned
// depth first, then pipelines, then framebuffers.
func (r *Renderer) Reconfigure() error {
	if err := r.checkAlive(); err != nil {
		return err
	}
	previous := r.state
	r.state = StateReconfiguring
	if err := r.device.WaitIdle(); err != nil {
		return err
	}

	if r.ownedDepth != nil {
		r.ownedDepth.Destroy()
		r.ownedDepth = nil
		if err := r.createDepth(); err != nil {
			return err
		}
	}
	if err := r.pipelines.SetConfiguration(r.pipelineConfiguration()); err != nil {
		return err
	}
	r.destroyFramebuffers()
	if err := r.createFramebuffers(); err != nil {
		return err
	}
	if err := r.createCommandBuffers(); err != nil {
		return err
	}

	r.state = previous
	core.LogDebug("renderer reconfigured for %s with %d framebuffers", r.color.GetExtent(), len(r.framebuffers))
	return nil
}

// Destroy releases every GPU resource in reverse order of creation. It is
// safe to call more than once.
func (r *Renderer) Destroy() {
	if r.state == StateDestroyed {
		return
	}
	if r.state != StateUninitialized {
		r.color.UnregisterChangeCallback(r.callbackID)
		if err := r.device.WaitIdle(); err != nil {
			core.LogWarn("renderer destroy: %s", err)
		}
	}
	if r.pipelines != nil {
		r.pipelines.Destroy()
	}
	for _, cmd := range r.commandBuffers {
		r.device.FreeCommandBuffer(cmd)
	}
	r.commandBuffers = nil
	r.destroyFramebuffers()

	r.cameraBuffer.Destroy()
	r.lightingBuffer.Destroy()
	r.matrixBuffer.Destroy()
	if !r.globalSet.IsNull() {
		if err := r.device.FreeDescriptorSet(r.descriptorPool, r.globalSet); err != nil {
			core.LogWarn("renderer destroy: %s", err)
		}
		r.globalSet = 0
	}
	if !r.descriptorPool.IsNull() {
		r.device.DestroyDescriptorPool(r.descriptorPool)
		r.descriptorPool = 0
	}
	if !r.globalPipelineLayout.IsNull() {
		r.device.DestroyPipelineLayout(r.globalPipelineLayout)
		r.globalPipelineLayout = 0
	}
	if !r.globalSetLayout.IsNull() {
		r.device.DestroyDescriptorSetLayout(r.globalSetLayout)
		r.globalSetLayout = 0
	}
	if !r.renderPass.IsNull() {
		r.device.DestroyRenderPass(r.renderPass)
		r.renderPass = 0
	}
	if r.ownedDepth != nil {
		r.ownedDepth.Destroy()
		r.ownedDepth = nil
	}
	r.scene = nil
	r.camera = nil
	r.state = StateDestroyed
	core.LogInfo("renderer destroyed")
}
