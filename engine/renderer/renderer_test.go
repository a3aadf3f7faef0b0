package renderer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
	"github.com/spaghettifunk/lumen/engine/renderer/target"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type fixture struct {
	dev      *gputest.Device
	color    *target.Offscreen
	renderer *Renderer
	scene    *scene.Scene
	camera   *scene.Camera
	material *material.Material
	pool     gpu.Handle
	assets   scene.Assets
}

func unlitDescriptor(name string) material.Descriptor {
	return material.Descriptor{
		Name: name,
		Modes: map[material.RenderMode]material.ModeDescriptor{
			material.RenderModeColor: {
				Shaders: []material.ShaderSource{
					{Stage: gpu.ShaderStageVertex, Code: gputest.ValidSPIRV()},
					{Stage: gpu.ShaderStageFragment, Code: gputest.ValidSPIRV()},
				},
				InstanceData: true,
			},
		},
		VertexLayout: material.StandardVertexLayout(),
		State:        material.DefaultPipelineState(),
	}
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{dev: gputest.NewDevice()}

	var err error
	f.color, err = target.NewOffscreen(f.dev, gpu.Extent{Width: 800, Height: 600}, gpu.FormatB8G8R8A8Srgb, 2)
	require.NoError(t, err)

	config := DefaultConfig()
	config.ColorFinalLayout = gpu.ImageLayoutShaderReadOnly
	f.renderer, err = New(f.dev, f.color, nil, config)
	require.NoError(t, err)

	f.material, err = material.NewMaterial(f.dev, unlitDescriptor("unlit"))
	require.NoError(t, err)
	require.NoError(t, f.renderer.AddMaterial(f.material))
	f.pool, err = material.NewDescriptorPool(f.dev, 8, 1)
	require.NoError(t, err)

	f.scene = scene.NewScene("test")
	camNode := scene.NewNode("camera")
	require.NoError(t, camNode.AddComponent(scene.NewTransformAt(math.NewVec3(0, 0, 5))))
	f.camera = scene.NewPerspectiveCamera(math.DegToRad(60), 1, 0.1, 100)
	require.NoError(t, camNode.AddComponent(f.camera))
	require.NoError(t, f.scene.Root().AddChild(camNode))

	f.renderer.SetScene(f.scene)
	f.renderer.SetCamera(f.camera)
	return f
}

func (f *fixture) addQuad(t *testing.T, name string, m *material.Material, position math.Vec3) *scene.Node {
	inst, err := material.NewInstance(m, f.pool)
	require.NoError(t, err)
	f.assets.AddInstance(inst)

	vertices, indices := math.GenerateQuad(1, 1, math.NewVec4One())
	mesh, err := scene.NewMesh(f.dev, name, vertices, indices, []scene.Primitive{{Material: inst, IndexCount: 6}})
	require.NoError(t, err)
	f.assets.AddMesh(mesh)

	n := scene.NewNode(name)
	require.NoError(t, n.AddComponent(scene.NewTransformAt(position)))
	require.NoError(t, n.AddComponent(scene.NewMeshComponent(mesh)))
	require.NoError(t, f.scene.Root().AddChild(n))
	return n
}

func (f *fixture) destroy() {
	f.renderer.Destroy()
	f.assets.Destroy()
	f.material.Destroy()
	f.dev.DestroyDescriptorPool(f.pool)
	f.color.Destroy()
}

func TestUniformBlockSizes(t *testing.T) {
	assert.Equal(t, uintptr(MatrixUniformsSize), unsafe.Sizeof(MatrixUniforms{}))
	assert.Equal(t, uintptr(LightingUniformsSize), unsafe.Sizeof(LightingUniforms{}))
	assert.Equal(t, uintptr(CameraUniformsSize), unsafe.Sizeof(CameraUniforms{}))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(SpotLightUniform{}))

	var l LightingUniforms
	assert.Equal(t, uintptr(16), unsafe.Offsetof(l.DirectionalDirection))
	assert.Equal(t, uintptr(32), unsafe.Offsetof(l.DirectionalColor))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(l.SpotLights))
}

func TestNewConfiguresFromTarget(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, StateConfigured, f.renderer.State())
	assert.Equal(t, 2, f.renderer.FramebufferCount())
	assert.Equal(t, 2, f.dev.Live(gputest.KindFramebuffer))
	assert.Equal(t, 1, f.dev.Live(gputest.KindRenderPass))
	assert.Equal(t, 1, f.renderer.Pipelines().Len())

	writes := f.dev.DescriptorWrites[f.renderer.globalSet]
	require.Len(t, writes, 3)
	assert.Equal(t, uint64(LightingUniformsSize), writes[LightingBinding].Range)

	f.destroy()
	assert.Equal(t, StateDestroyed, f.renderer.State())
	assert.Equal(t, 0, f.dev.LiveTotal())
}

func TestDrawFrameSingleQuad(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	f.addQuad(t, "quad", f.material, math.NewVec3Zero())

	wait := []gpu.Handle{101}
	signal := []gpu.Handle{202}
	stages := []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput}
	require.NoError(t, f.renderer.DrawFrame(1, wait, stages, signal))

	assert.Equal(t, StateFrameLoop, f.renderer.State())
	assert.Equal(t, 1, f.dev.PresentIdleWaits)

	submit, ok := f.dev.LastSubmit()
	require.True(t, ok)
	assert.Equal(t, wait, submit.Wait)
	assert.Equal(t, stages, submit.WaitStages)
	assert.Equal(t, signal, submit.Signal)

	draws := submit.Commands.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(6), draws[0].IndexCount)
	assert.Equal(t, f.renderer.globalSet, draws[0].GlobalSet)
	assert.NotZero(t, draws[0].MaterialSet)
	assert.Len(t, draws[0].Model, 64)

	begin := submit.Commands.Commands[0]
	assert.Equal(t, gputest.OpBeginRenderPass, begin.Op)
	assert.Equal(t, f.renderer.framebuffers[1], begin.Framebuffer)
	require.Len(t, begin.Clear, 2)
	assert.Equal(t, DefaultConfig().ClearColor, begin.Clear[0].Color)
	assert.Equal(t, float32(1), begin.Clear[1].Depth)

	assert.Equal(t, FrameStats{DrawCalls: 1, Indices: 6, PipelineBinds: 1}, f.renderer.Stats())

	// The camera looks down -Z from z=5; the view moves the world by -5.
	view := gputest.Float32At(f.dev.Memory(f.renderer.matrixBuffer.Allocation), 14*4)
	assert.InDelta(t, -5, view, 1e-5)
}

func TestDrawFramePushesWorldMatrix(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	parent := f.addQuad(t, "parent", f.material, math.NewVec3(1, 0, 0))
	child := scene.NewNode("child")
	require.NoError(t, child.AddComponent(scene.NewTransformAt(math.NewVec3(0, 2, 0))))
	require.NoError(t, parent.AddChild(child))
	mesh := f.assets.Meshes[0]
	require.NoError(t, child.AddComponent(scene.NewMeshComponent(mesh)))

	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))
	submit, _ := f.dev.LastSubmit()
	draws := submit.Commands.Draws()
	require.Len(t, draws, 2)

	assert.InDelta(t, 1, gputest.Float32At(draws[0].Model, 12*4), 1e-6)
	assert.InDelta(t, 0, gputest.Float32At(draws[0].Model, 13*4), 1e-6)
	assert.InDelta(t, 1, gputest.Float32At(draws[1].Model, 12*4), 1e-6)
	assert.InDelta(t, 2, gputest.Float32At(draws[1].Model, 13*4), 1e-6)

	// Same material on both nodes: the pipeline is bound once.
	assert.Equal(t, 1, submit.Commands.Count(gputest.OpBindPipeline))
	assert.Equal(t, 2, submit.Commands.Count(gputest.OpPushConstants))
}

func TestDrawFrameSwitchesPipelines(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	other, err := material.NewMaterial(f.dev, unlitDescriptor("other"))
	require.NoError(t, err)
	defer other.Destroy()
	require.NoError(t, f.renderer.AddMaterial(other))

	f.addQuad(t, "a", f.material, math.NewVec3Zero())
	f.addQuad(t, "b", other, math.NewVec3One())

	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))
	submit, _ := f.dev.LastSubmit()
	draws := submit.Commands.Draws()
	require.Len(t, draws, 2)
	assert.NotEqual(t, draws[0].Pipeline, draws[1].Pipeline)
	assert.Equal(t, 2, f.renderer.Stats().PipelineBinds)
	assert.Equal(t, 3, submit.Commands.Count(gputest.OpBindDescriptorSet))

	f.renderer.RemoveMaterial(other)
}

func TestDrawFrameUnregisteredMaterial(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	other, err := material.NewMaterial(f.dev, unlitDescriptor("stray"))
	require.NoError(t, err)
	defer other.Destroy()
	f.addQuad(t, "stray", other, math.NewVec3Zero())

	err = f.renderer.DrawFrame(0, nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrMaterialNotRegistered)
	assert.Empty(t, f.dev.Submits)
}

func TestDrawFrameRequiresSceneAndCamera(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	f.renderer.SetCamera(nil)
	assert.ErrorIs(t, f.renderer.DrawFrame(0, nil, nil, nil), core.ErrCameraNotSet)
	f.renderer.SetScene(nil)
	assert.ErrorIs(t, f.renderer.DrawFrame(0, nil, nil, nil), core.ErrSceneNotSet)
	assert.Empty(t, f.dev.Submits)

	f.renderer.SetScene(f.scene)
	f.renderer.SetCamera(f.camera)
	assert.ErrorIs(t, f.renderer.DrawFrame(7, nil, nil, nil), core.ErrInvalidState)
}

func TestLightingWithoutDirectionalLight(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	f.scene.AmbientIntensity = 0.25

	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))
	mem := f.dev.Memory(f.renderer.lightingBuffer.Allocation)
	assert.Equal(t, float32(0.25), gputest.Float32At(mem, 0))
	assert.Equal(t, uint32(0), gputest.Uint32At(mem, 4))
	assert.Equal(t, uint32(0), gputest.Uint32At(mem, 8))
	for off := 16; off < 48; off += 4 {
		assert.Equal(t, uint32(0), gputest.Uint32At(mem, off), "offset %d", off)
	}
}

func TestLightingUploadsLights(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	sun := scene.NewNode("sun")
	require.NoError(t, sun.AddComponent(scene.NewDirectionalLight(math.NewVec3(1, 0.5, 0.25), 3)))
	require.NoError(t, f.scene.Root().AddChild(sun))
	for i := 0; i < MaxSpotLights+2; i++ {
		n := scene.NewNode("spot")
		require.NoError(t, n.AddComponent(scene.NewTransformAt(math.NewVec3(float32(i), 0, 0))))
		require.NoError(t, n.AddComponent(scene.NewSpotLight(math.NewVec3One(), 1, 10, 0, math.K_HALF_PI)))
		require.NoError(t, f.scene.Root().AddChild(n))
	}

	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))
	mem := f.dev.Memory(f.renderer.lightingBuffer.Allocation)
	assert.Equal(t, uint32(1), gputest.Uint32At(mem, 4))
	assert.Equal(t, uint32(MaxSpotLights), gputest.Uint32At(mem, 8))
	assert.InDelta(t, -1, gputest.Float32At(mem, 24), 1e-6)
	assert.Equal(t, float32(3), gputest.Float32At(mem, 28))
	assert.Equal(t, float32(0.5), gputest.Float32At(mem, 36))

	second := 48 + 64
	assert.Equal(t, float32(1), gputest.Float32At(mem, second))
	assert.Equal(t, float32(10), gputest.Float32At(mem, second+12))
	assert.InDelta(t, 1, gputest.Float32At(mem, second+44), 1e-6)
	assert.InDelta(t, 0, gputest.Float32At(mem, second+48), 1e-6)
}

func TestMaxSpotLightsLimit(t *testing.T) {
	s := scene.NewScene("spots")
	for i := 0; i < 4; i++ {
		n := scene.NewNode("spot")
		require.NoError(t, n.AddComponent(scene.NewSpotLight(math.NewVec3One(), 1, 10, 0.1, 0.2)))
		require.NoError(t, s.Root().AddChild(n))
	}
	assert.Equal(t, uint32(2), newLightingUniforms(s, 2).SpotLightCount)
	assert.Equal(t, uint32(4), newLightingUniforms(s, 99).SpotLightCount)
	assert.Equal(t, uint32(0), newLightingUniforms(s, -1).SpotLightCount)
}

func TestResizeRebuildsPipelinesAndFramebuffers(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	f.camera.AutoAspect = true
	f.addQuad(t, "quad", f.material, math.NewVec3Zero())
	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))

	before, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	oldHandle := before.Handle
	idleWaits := f.dev.IdleWaits

	require.NoError(t, f.color.Resize(gpu.Extent{Width: 1024, Height: 768}))

	after, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	assert.NotEqual(t, oldHandle, after.Handle)
	assert.False(t, f.dev.IsLive(oldHandle, gputest.KindPipeline))
	assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, f.dev.Pipelines[after.Handle].Extent)
	assert.Greater(t, f.dev.IdleWaits, idleWaits)

	assert.Equal(t, len(f.color.GetImageViews()), f.renderer.FramebufferCount())
	assert.Equal(t, 2, f.dev.Live(gputest.KindFramebuffer))
	for _, fb := range f.renderer.framebuffers {
		assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, f.dev.Framebuffers[fb])
	}
	assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, f.renderer.ownedDepth.Extent())
	assert.Equal(t, StateFrameLoop, f.renderer.State())

	require.NoError(t, f.renderer.DrawFrame(1, nil, nil, nil))
	assert.InDelta(t, float32(1024)/768, f.camera.Aspect, 1e-6)
}

func TestExternalDepthTargetIsBorrowed(t *testing.T) {
	dev := gputest.NewDevice()
	color, err := target.NewOffscreen(dev, gpu.Extent{Width: 64, Height: 64}, gpu.FormatR8G8B8A8Unorm, 1)
	require.NoError(t, err)
	depth, err := target.NewDepthImage(dev, color.GetExtent(), gpu.FormatD24UnormS8Uint)
	require.NoError(t, err)

	r, err := New(dev, color, depth, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, r.ownedDepth)

	r.Destroy()
	r.Destroy()
	assert.True(t, dev.IsLive(depth.GetImageView(), gputest.KindImageView))
	assert.ErrorIs(t, r.AddMaterial(nil), core.ErrInvalidState)

	depth.Destroy()
	color.Destroy()
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestReloadMaterialFailureKeepsDrawing(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	f.addQuad(t, "quad", f.material, math.NewVec3Zero())
	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))

	before, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	handle := before.Handle
	sources := f.material.ShaderSources(material.RenderModeColor)

	broken := []material.ShaderSource{
		{Stage: gpu.ShaderStageVertex, Code: []uint32{0xdeadbeef, 0, 0, 0, 0}},
		{Stage: gpu.ShaderStageFragment, Code: []uint32{0xdeadbeef, 0, 0, 0, 0}},
	}
	err := f.renderer.ReloadMaterial(f.material, broken)
	assert.ErrorIs(t, err, core.ErrPipelineCompile)

	after, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	assert.Equal(t, handle, after.Handle)
	assert.Equal(t, sources, f.material.ShaderSources(material.RenderModeColor))
	assert.Equal(t, 2, f.dev.Live(gputest.KindShaderModule))
	require.NoError(t, f.renderer.DrawFrame(1, nil, nil, nil))

	require.NoError(t, f.color.Resize(gpu.Extent{Width: 1024, Height: 768}))
	resized, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, resized.Extent)
	require.NoError(t, f.renderer.DrawFrame(0, nil, nil, nil))
	assert.Equal(t, 1, f.renderer.Stats().DrawCalls)
}

func TestReloadMaterialSwapsPipeline(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()
	before, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	handle := before.Handle

	require.NoError(t, f.renderer.ReloadMaterial(f.material, unlitDescriptor("unlit").Modes[material.RenderModeColor].Shaders))

	after, ok := f.renderer.Pipelines().Pipeline(f.material)
	require.True(t, ok)
	assert.NotEqual(t, handle, after.Handle)
	assert.False(t, f.dev.IsLive(handle, gputest.KindPipeline))
	assert.Equal(t, 1, f.dev.Live(gputest.KindPipeline))
}
