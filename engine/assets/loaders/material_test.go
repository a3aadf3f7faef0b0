package loaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

const texturedMaterial = `
name = "crate"
cull_mode = "none"
blend = "alpha"

[modes.color]
vertex = "shaders/textured.vert.spv"
fragment = "shaders/textured.frag.spv"
textures = ["base_color", "normal"]
instance_data = true

[modes.shadow]
vertex = "shaders/shadow.vert.spv"
fragment = "shaders/shadow.frag.spv"

[textures]
base_color = "textures/crate.png"

[parameters]
base_color_factor = [1.0, 0.5, 0.25, 1.0]
`

func TestParseMaterialFile(t *testing.T) {
	f, err := ParseMaterialFile([]byte(texturedMaterial))
	require.NoError(t, err)

	assert.Equal(t, "crate", f.Name)
	assert.Equal(t, []string{"color", "shadow"}, f.ModeNames())
	assert.Equal(t, "textures/crate.png", f.Textures["base_color"])

	state := f.PipelineState()
	assert.Equal(t, gpu.TopologyTriangleList, state.Topology)
	assert.Equal(t, gpu.CullModeNone, state.CullMode)
	assert.Equal(t, gpu.BlendModeAlpha, state.Blend)
	assert.True(t, state.DepthTest)
	assert.True(t, state.DepthWrite)
	assert.False(t, state.Wireframe)

	color := f.Modes["color"]
	assert.True(t, color.InstanceData)
	assert.Equal(t, []material.TextureSlot{material.TextureSlotBaseColor, material.TextureSlotNormal}, color.TextureSlots())
	assert.Empty(t, f.Modes["shadow"].TextureSlots())

	params := f.DefaultParameters()
	assert.Equal(t, math.NewVec4(1, 0.5, 0.25, 1), params[material.ParameterBaseColorFactor])
}

func TestParseMaterialFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", "[modes.color]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\n"},
		{"no modes", "name = \"x\"\n"},
		{"unknown mode", "name = \"x\"\n[modes.depth]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\n"},
		{"missing fragment", "name = \"x\"\n[modes.color]\nvertex = \"a.spv\"\n"},
		{"unknown topology", "name = \"x\"\ntopology = \"fans\"\n[modes.color]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\n"},
		{"unknown texture slot", "name = \"x\"\n[modes.color]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\ntextures = [\"albedo\"]\n"},
		{"unknown parameter", "name = \"x\"\n[modes.color]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\n[parameters]\nshininess = [1.0, 1.0, 1.0, 1.0]\n"},
		{"unknown key", "name = \"x\"\ncolour = \"red\"\n[modes.color]\nvertex = \"a.spv\"\nfragment = \"b.spv\"\n"},
		{"syntax", "name = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMaterialFile([]byte(tt.data))
			assert.ErrorIs(t, err, core.ErrAssetLoad)
		})
	}
}

func TestLookups(t *testing.T) {
	mode, ok := RenderMode("shadow")
	assert.True(t, ok)
	assert.Equal(t, material.RenderModeShadow, mode)

	_, ok = RenderMode("deferred")
	assert.False(t, ok)

	slot, ok := TextureSlot("emissive")
	assert.True(t, ok)
	assert.Equal(t, material.TextureSlotEmissive, slot)
}
