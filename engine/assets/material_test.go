package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

const crateMaterial = `
name = "crate"

[modes.color]
vertex = "shaders/textured.vert.spv"
fragment = "shaders/textured.frag.spv"
textures = ["base_color"]
instance_data = true

[modes.shadow]
vertex = "shaders/shadow.vert.spv"
fragment = "shaders/textured.frag.spv"

[textures]
base_color = "textures/crate.png"
`

func pngBytes(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func crateRoot(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "materials/crate.material.toml", []byte(crateMaterial))
	writeFile(t, root, "shaders/textured.vert.spv", minimalModule)
	writeFile(t, root, "shaders/textured.frag.spv", minimalModule)
	writeFile(t, root, "shaders/shadow.vert.spv", minimalModule)
	writeFile(t, root, "textures/crate.png", pngBytes(t))
	return root
}

func TestLoadMaterial(t *testing.T) {
	dev := gputest.NewDevice()
	m, err := NewManager(crateRoot(t), nil, false)
	require.NoError(t, err)
	defer m.Close()

	lm, err := m.LoadMaterial(dev, "materials/crate.material.toml")
	require.NoError(t, err)

	assert.Equal(t, "crate", lm.Material.Name())
	assert.True(t, lm.Material.Supports(material.RenderModeColor))
	assert.True(t, lm.Material.Supports(material.RenderModeShadow))
	assert.True(t, lm.Material.NeedsInstanceData())
	require.NotNil(t, lm.Material.DefaultTexture(material.TextureSlotBaseColor))
	assert.Equal(t, 1, dev.Live(gputest.KindImage))

	assert.True(t, lm.UsesShader("shaders/textured.frag.spv"))
	assert.ElementsMatch(t,
		[]material.RenderMode{material.RenderModeColor, material.RenderModeShadow},
		lm.ModesUsing("shaders/textured.frag.spv"))
	assert.Equal(t, []material.RenderMode{material.RenderModeShadow}, lm.ModesUsing("shaders/shadow.vert.spv"))
	assert.False(t, lm.UsesShader("shaders/other.vert.spv"))

	sources, err := m.ReloadSources(lm, material.RenderModeColor)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "main", sources[0].Entry)

	lm.Destroy()
	assert.Zero(t, dev.LiveTotal())
}

func TestLoadMaterialMissingShader(t *testing.T) {
	dev := gputest.NewDevice()
	root := crateRoot(t)
	writeFile(t, root, "materials/broken.material.toml", []byte(`
name = "broken"
[modes.color]
vertex = "shaders/missing.vert.spv"
fragment = "shaders/textured.frag.spv"
`))
	m, err := NewManager(root, nil, false)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.LoadMaterial(dev, "materials/broken.material.toml")
	assert.ErrorIs(t, err, core.ErrAssetLoad)
	assert.Zero(t, dev.LiveTotal())
}

func TestLoadMaterialBadTexture(t *testing.T) {
	dev := gputest.NewDevice()
	root := crateRoot(t)
	writeFile(t, root, "textures/crate.png", []byte("corrupt"))
	m, err := NewManager(root, nil, false)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.LoadMaterial(dev, "materials/crate.material.toml")
	assert.ErrorIs(t, err, core.ErrAssetLoad)
	assert.Zero(t, dev.LiveTotal())
}
