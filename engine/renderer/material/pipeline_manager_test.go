package material

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

func newManager(t *testing.T, dev *gputest.Device, extent gpu.Extent) *PipelineManager {
	global, err := dev.CreateDescriptorSetLayout(nil)
	require.NoError(t, err)
	rp, err := dev.CreateRenderPass(gpu.RenderPassDescriptor{})
	require.NoError(t, err)
	return NewPipelineManager(dev, RenderModeColor, Configuration{
		Extent:          extent,
		SampleCount:     1,
		RenderPass:      rp,
		GlobalSetLayout: global,
	})
}

func TestAddMaterialIsIdempotent(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)

	require.NoError(t, pm.AddMaterial(m))
	require.NoError(t, pm.AddMaterial(m))

	assert.Equal(t, 1, pm.Len())
	assert.Equal(t, 1, dev.Live(gputest.KindPipeline))
	assert.Equal(t, 1, dev.Live(gputest.KindPipelineLayout))

	p, ok := pm.Pipeline(m)
	require.True(t, ok)
	assert.True(t, p.MaterialSet)
	assert.Len(t, dev.PipelineLayouts[p.Layout], 2)
	assert.Equal(t, pm.Configuration().GlobalSetLayout, dev.PipelineLayouts[p.Layout][0])
}

func TestRemoveMaterial(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)

	pm.RemoveMaterial(m)
	require.NoError(t, pm.AddMaterial(m))
	pm.RemoveMaterial(m)
	pm.RemoveMaterial(m)

	assert.Equal(t, 0, pm.Len())
	assert.Equal(t, 0, dev.Live(gputest.KindPipeline))
	assert.Equal(t, 0, dev.Live(gputest.KindPipelineLayout))
}

func TestSetConfigurationRecompilesEveryPipeline(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	a, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	b, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	require.NoError(t, pm.AddMaterial(a))
	require.NoError(t, pm.AddMaterial(b))

	oldA, _ := pm.Pipeline(a)
	oldHandle := oldA.Handle

	cfg := pm.Configuration()
	cfg.Extent = gpu.Extent{Width: 1024, Height: 768}
	require.NoError(t, pm.SetConfiguration(cfg))

	assert.False(t, dev.IsLive(oldHandle, gputest.KindPipeline))
	assert.Equal(t, 2, dev.Live(gputest.KindPipeline))
	for _, m := range []*Material{a, b} {
		p, ok := pm.Pipeline(m)
		require.True(t, ok)
		assert.Equal(t, cfg.Extent, p.Extent)
		assert.Equal(t, cfg.Extent, dev.Pipelines[p.Handle].Extent)
	}
}

func TestInvalidBytecodeFailsCompilation(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	m, err := NewMaterial(dev, Descriptor{
		Name: "broken",
		Modes: map[RenderMode]ModeDescriptor{
			RenderModeColor: {Shaders: []ShaderSource{{Stage: gpu.ShaderStageVertex, Code: []uint32{0xdeadbeef}}}},
		},
		State: DefaultPipelineState(),
	})
	require.NoError(t, err)

	err = pm.AddMaterial(m)
	assert.True(t, errors.Is(err, core.ErrPipelineCompile))
	assert.Equal(t, 0, pm.Len())
	assert.Equal(t, 0, dev.Live(gputest.KindPipelineLayout))
}

func TestUnsupportedModeIsRejected(t *testing.T) {
	dev := gputest.NewDevice()
	pm := NewPipelineManager(dev, RenderModeShadow, Configuration{})
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	assert.True(t, errors.Is(pm.AddMaterial(m), core.ErrUnsupportedRenderMode))
}

func TestRebuildAndDestroy(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)

	assert.True(t, errors.Is(pm.Rebuild(m), core.ErrMaterialNotRegistered))
	require.NoError(t, pm.AddMaterial(m))
	before, _ := pm.Pipeline(m)
	old := before.Handle
	require.NoError(t, pm.Rebuild(m))
	after, _ := pm.Pipeline(m)
	assert.NotEqual(t, old, after.Handle)
	assert.Equal(t, 1, dev.Live(gputest.KindPipeline))

	pm.Destroy()
	assert.Equal(t, 0, dev.Live(gputest.KindPipeline))
	assert.Equal(t, 0, pm.Len())
}

func brokenShaders() []ShaderSource {
	return []ShaderSource{
		{Stage: gpu.ShaderStageVertex, Code: []uint32{0xdeadbeef, 0, 0, 0, 0}},
		{Stage: gpu.ShaderStageFragment, Code: []uint32{0xdeadbeef, 0, 0, 0, 0}},
	}
}

func validShaders() []ShaderSource {
	return []ShaderSource{
		{Stage: gpu.ShaderStageVertex, Code: gputest.ValidSPIRV()},
		{Stage: gpu.ShaderStageFragment, Code: gputest.ValidSPIRV()},
	}
}

func TestRebuildFailureKeepsCachedPipeline(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	require.NoError(t, pm.AddMaterial(m))
	before, _ := pm.Pipeline(m)
	handle := before.Handle

	require.NoError(t, m.ReloadShaders(RenderModeColor, brokenShaders()))
	assert.True(t, errors.Is(pm.Rebuild(m), core.ErrPipelineCompile))

	after, ok := pm.Pipeline(m)
	require.True(t, ok)
	assert.Equal(t, handle, after.Handle)
	assert.True(t, dev.IsLive(handle, gputest.KindPipeline))
	assert.Equal(t, 1, pm.Len())
	assert.Equal(t, 1, dev.Live(gputest.KindPipelineLayout))

	require.NoError(t, m.ReloadShaders(RenderModeColor, validShaders()))
	cfg := pm.Configuration()
	cfg.Extent = gpu.Extent{Width: 1024, Height: 768}
	require.NoError(t, pm.SetConfiguration(cfg))
	p, ok := pm.Pipeline(m)
	require.True(t, ok)
	assert.Equal(t, cfg.Extent, p.Extent)
}

func TestSetConfigurationDropsMaterialsThatFailToCompile(t *testing.T) {
	dev := gputest.NewDevice()
	pm := newManager(t, dev, gpu.Extent{Width: 800, Height: 600})
	a, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	b, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	require.NoError(t, pm.AddMaterial(a))
	require.NoError(t, pm.AddMaterial(b))

	require.NoError(t, b.ReloadShaders(RenderModeColor, brokenShaders()))
	cfg := pm.Configuration()
	cfg.Extent = gpu.Extent{Width: 1024, Height: 768}
	assert.True(t, errors.Is(pm.SetConfiguration(cfg), core.ErrPipelineCompile))

	pa, ok := pm.Pipeline(a)
	require.True(t, ok)
	assert.Equal(t, cfg.Extent, pa.Extent)
	_, ok = pm.Pipeline(b)
	assert.False(t, ok)
	assert.Equal(t, 1, pm.Len())
	assert.Equal(t, 1, dev.Live(gputest.KindPipeline))
	assert.Equal(t, 1, dev.Live(gputest.KindPipelineLayout))

	// The cache stays usable: another configuration change and re-adding b.
	cfg.Extent = gpu.Extent{Width: 640, Height: 480}
	require.NoError(t, pm.SetConfiguration(cfg))
	require.NoError(t, b.ReloadShaders(RenderModeColor, validShaders()))
	require.NoError(t, pm.AddMaterial(b))
	assert.Equal(t, 2, pm.Len())

	pm.Destroy()
	assert.Equal(t, 0, dev.Live(gputest.KindPipeline))
}
