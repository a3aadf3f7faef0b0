package material

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

func texturedDescriptor(defaults map[TextureSlot]*gpu.Texture) Descriptor {
	return Descriptor{
		Name: "textured",
		Modes: map[RenderMode]ModeDescriptor{
			RenderModeColor: {
				Shaders: []ShaderSource{
					{Stage: gpu.ShaderStageVertex, Code: gputest.ValidSPIRV()},
					{Stage: gpu.ShaderStageFragment, Code: gputest.ValidSPIRV()},
				},
				Textures:     []TextureSlot{TextureSlotBaseColor},
				InstanceData: true,
			},
		},
		VertexLayout:    StandardVertexLayout(),
		State:           DefaultPipelineState(),
		DefaultTextures: defaults,
	}
}

func newPool(t *testing.T, dev gpu.Device) gpu.Handle {
	pool, err := NewDescriptorPool(dev, 16, 4)
	require.NoError(t, err)
	return pool
}

func TestStandardVertexLayoutMatchesVertex3D(t *testing.T) {
	var v math.Vertex3D
	layout := StandardVertexLayout()
	assert.Equal(t, uint32(unsafe.Sizeof(v)), layout.Stride)
	assert.Equal(t, uint32(unsafe.Offsetof(v.Normal)), layout.Attributes[1].Offset)
	assert.Equal(t, uint32(unsafe.Offsetof(v.Texcoord)), layout.Attributes[2].Offset)
	assert.Equal(t, uint32(unsafe.Offsetof(v.Colour)), layout.Attributes[3].Offset)
}

func TestParameterRoundTrip(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)

	def := math.NewVec4(9, 9, 9, 9)
	assert.Equal(t, def, inst.GetParameter(ParameterBaseColorFactor, def))

	v := math.NewVec4(0.5, 0.25, 1, 1)
	inst.SetParameter(ParameterBaseColorFactor, v)
	assert.Equal(t, v, inst.GetParameter(ParameterBaseColorFactor, def))
	assert.Equal(t, def, inst.GetParameter(ParameterAlphaCutoff, def))
}

func TestSettersDoNotUploadUntilWrite(t *testing.T) {
	dev := gputest.NewDevice()
	white, err := gpu.NewSolidTexture(dev, "white", 255, 255, 255, 255)
	require.NoError(t, err)
	m, err := NewMaterial(dev, texturedDescriptor(map[TextureSlot]*gpu.Texture{TextureSlotBaseColor: white}))
	require.NoError(t, err)
	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)

	inst.SetParameter(ParameterMetallicRoughness, math.NewVec4(0.1, 0.7, 0, 0))
	mem := dev.Memory(inst.InstanceData().Allocation)
	assert.Equal(t, float32(0), gputest.Float32At(mem, int(ParameterMetallicRoughness)*ParameterStride+4))
	assert.Empty(t, dev.DescriptorWrites[inst.DescriptorSet(RenderModeColor)])

	require.NoError(t, inst.WriteAllData())
	mem = dev.Memory(inst.InstanceData().Allocation)
	assert.Equal(t, float32(0.7), gputest.Float32At(mem, int(ParameterMetallicRoughness)*ParameterStride+4))
	assert.Len(t, dev.DescriptorWrites[inst.DescriptorSet(RenderModeColor)], 2)
}

func TestWriteInstanceDataPacksEverySlot(t *testing.T) {
	dev := gputest.NewDevice()
	white, err := gpu.NewSolidTexture(dev, "white", 255, 255, 255, 255)
	require.NoError(t, err)
	desc := texturedDescriptor(map[TextureSlot]*gpu.Texture{TextureSlotBaseColor: white})
	desc.DefaultParameters = map[ParameterSlot]math.Vec4{
		ParameterEmissiveFactor: math.NewVec4(0.25, 0.5, 0.75, 1),
	}
	m, err := NewMaterial(dev, desc)
	require.NoError(t, err)
	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)

	inst.SetParameter(ParameterBaseColorFactor, math.NewVec4(1, 2, 3, 4))
	inst.SetParameter(ParameterAlphaCutoff, math.NewVec4(0.5, 0, 0, 0))
	require.NoError(t, inst.WriteInstanceData())

	mem := dev.Memory(inst.InstanceData().Allocation)
	require.GreaterOrEqual(t, len(mem), int(InstanceDataSize))
	expected := [][4]float32{
		ParameterBaseColorFactor:   {1, 2, 3, 4},
		ParameterEmissiveFactor:    {0.25, 0.5, 0.75, 1},
		ParameterMetallicRoughness: {0, 0, 0, 0},
		ParameterAlphaCutoff:       {0.5, 0, 0, 0},
	}
	for slot, v := range expected {
		for c := 0; c < 4; c++ {
			assert.Equal(t, v[c], gputest.Float32At(mem, slot*ParameterStride+c*4), "slot %d component %d", slot, c)
		}
	}
}

func TestMissingTextureFallsBackToMaterialDefault(t *testing.T) {
	dev := gputest.NewDevice()
	white, err := gpu.NewSolidTexture(dev, "white", 255, 255, 255, 255)
	require.NoError(t, err)
	m, err := NewMaterial(dev, texturedDescriptor(map[TextureSlot]*gpu.Texture{TextureSlotBaseColor: white}))
	require.NoError(t, err)
	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)

	require.NoError(t, inst.WriteDescriptorSet(RenderModeColor))
	w := dev.DescriptorWrites[inst.DescriptorSet(RenderModeColor)][1]
	assert.Equal(t, gpu.DescriptorTypeCombinedImageSampler, w.Type)
	assert.Equal(t, white.View, w.ImageView)
	assert.Equal(t, white.Sampler, w.Sampler)

	red, err := gpu.NewSolidTexture(dev, "red", 255, 0, 0, 255)
	require.NoError(t, err)
	inst.SetTexture(TextureSlotBaseColor, red)
	require.NoError(t, inst.WriteDescriptorSet(RenderModeColor))
	assert.Equal(t, red.View, dev.DescriptorWrites[inst.DescriptorSet(RenderModeColor)][1].ImageView)
}

func TestMissingTextureWithoutDefaultIsAnError(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)

	err = inst.WriteDescriptorSet(RenderModeColor)
	assert.True(t, errors.Is(err, core.ErrNoTexture))
}

func TestInstanceDestroyReleasesResources(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	pool := newPool(t, dev)
	inst, err := NewInstance(m, pool)
	require.NoError(t, err)
	owned, err := gpu.NewSolidTexture(dev, "owned", 1, 2, 3, 4)
	require.NoError(t, err)
	inst.AdoptTexture(TextureSlotBaseColor, owned)

	assert.Equal(t, 1, dev.Live(gputest.KindDescriptorSet))
	inst.Destroy()
	assert.Equal(t, 0, dev.Live(gputest.KindDescriptorSet))
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
	assert.Equal(t, 0, dev.Live(gputest.KindImage))

	m.Destroy()
	dev.DestroyDescriptorPool(pool)
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestMaterialWithoutResourcesHasNoLayout(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewMaterial(dev, Descriptor{
		Name: "unlit",
		Modes: map[RenderMode]ModeDescriptor{
			RenderModeColor: {Shaders: []ShaderSource{{Stage: gpu.ShaderStageVertex, Code: gputest.ValidSPIRV()}}},
		},
		State: DefaultPipelineState(),
	})
	require.NoError(t, err)
	assert.True(t, m.DescriptorSetLayout(RenderModeColor).IsNull())
	assert.False(t, m.Supports(RenderModeShadow))
	assert.Equal(t, "main", m.ShaderStages(RenderModeColor)[0].Entry)

	inst, err := NewInstance(m, newPool(t, dev))
	require.NoError(t, err)
	assert.True(t, inst.DescriptorSet(RenderModeColor).IsNull())
	assert.Nil(t, inst.InstanceData())
	assert.NoError(t, inst.WriteAllData())
}

func TestReloadShadersReplacesModules(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewMaterial(dev, texturedDescriptor(nil))
	require.NoError(t, err)
	before := m.ShaderStages(RenderModeColor)[0].Module

	require.NoError(t, m.ReloadShaders(RenderModeColor, []ShaderSource{
		{Stage: gpu.ShaderStageVertex, Code: gputest.ValidSPIRV()},
		{Stage: gpu.ShaderStageFragment, Code: gputest.ValidSPIRV()},
	}))
	assert.NotEqual(t, before, m.ShaderStages(RenderModeColor)[0].Module)
	assert.Equal(t, 2, dev.Live(gputest.KindShaderModule))

	err = m.ReloadShaders(RenderModeShadow, nil)
	assert.True(t, errors.Is(err, core.ErrUnsupportedRenderMode))
}
