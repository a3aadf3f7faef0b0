package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[application]
name = "testbed"
width = 800
height = 600
log_level = "debug"

[renderer]
clear_color = [0.1, 0.2, 0.3, 1.0]
max_spot_lights = 4
present_mode = "mailbox"
`))
	require.NoError(t, err)

	assert.Equal(t, "testbed", cfg.Application.Name)
	assert.Equal(t, uint32(800), cfg.Application.Width)
	assert.Equal(t, int32(100), cfg.Application.X)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, cfg.Renderer.ClearColor)
	assert.Equal(t, 4, cfg.Renderer.MaxSpotLights)
	assert.Equal(t, PresentModeMailbox, cfg.Renderer.PresentMode)
	assert.True(t, cfg.Renderer.AutoAspect)
	assert.Equal(t, "assets", cfg.Assets.Root)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[renderer]\nshadows = true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shadows")
}

func TestParseValidates(t *testing.T) {
	_, err := Parse([]byte("[renderer]\nmax_spot_lights = 9\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[renderer]\npresent_mode = \"vsync\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[application]\nwidth = 0\n"))
	assert.Error(t, err)
}

func TestSaveLoadAndFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg.Application.Name = "saved"
	cfg.Assets.Watch = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	require.NoError(t, os.WriteFile(path, []byte("not = [toml"), 0o644))
	_, err = LoadOrDefault(path)
	assert.Error(t, err)
}
