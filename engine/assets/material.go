package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

// LoadedMaterial is a material built from a material file, together with the
// textures it owns and the shader files it was compiled from.
type LoadedMaterial struct {
	Path     string
	File     *loaders.MaterialFile
	Material *material.Material

	textures []*gpu.Texture
	// shader path -> modes that use it
	shaders map[string][]material.RenderMode
}

// LoadMaterial reads the material file at rel (relative to the asset root),
// its SPIR-V stages and default textures, and creates the material on device.
func (m *Manager) LoadMaterial(device gpu.Device, rel string) (*LoadedMaterial, error) {
	file, err := loaders.LoadMaterialFile(m.Resolve(rel))
	if err != nil {
		return nil, err
	}
	lm := &LoadedMaterial{
		Path:    rel,
		File:    file,
		shaders: make(map[string][]material.RenderMode),
	}

	desc := material.Descriptor{
		Name:              file.Name,
		Modes:             make(map[material.RenderMode]material.ModeDescriptor, len(file.Modes)),
		VertexLayout:      material.StandardVertexLayout(),
		State:             file.PipelineState(),
		DefaultTextures:   make(map[material.TextureSlot]*gpu.Texture, len(file.Textures)),
		DefaultParameters: file.DefaultParameters(),
	}

	for _, name := range file.ModeNames() {
		mode, _ := loaders.RenderMode(name)
		mf := file.Modes[name]
		shaders, err := m.loadStages(mf)
		if err != nil {
			lm.destroyTextures()
			return nil, fmt.Errorf("material '%s' mode '%s': %w", file.Name, name, err)
		}
		desc.Modes[mode] = material.ModeDescriptor{
			Shaders:      shaders,
			Textures:     mf.TextureSlots(),
			InstanceData: mf.InstanceData,
		}
		lm.shaders[mf.Vertex] = append(lm.shaders[mf.Vertex], mode)
		lm.shaders[mf.Fragment] = append(lm.shaders[mf.Fragment], mode)
	}

	slots := make([]string, 0, len(file.Textures))
	for slot := range file.Textures {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	paths := make([]string, len(slots))
	for i, slot := range slots {
		paths[i] = file.Textures[slot]
	}
	images, err := m.decodeImages(paths)
	if err != nil {
		return nil, fmt.Errorf("material '%s': %w", file.Name, err)
	}
	for i, slot := range slots {
		img := images[i]
		tex, err := gpu.NewTexture(device, paths[i], img.Width, img.Height, img.Pixels, gpu.DefaultSampler())
		if err != nil {
			lm.destroyTextures()
			return nil, fmt.Errorf("material '%s': %w", file.Name, err)
		}
		lm.textures = append(lm.textures, tex)
		s, _ := loaders.TextureSlot(slot)
		desc.DefaultTextures[s] = tex
	}

	if lm.Material, err = material.NewMaterial(device, desc); err != nil {
		lm.destroyTextures()
		return nil, err
	}
	core.LogInfo("Loaded material '%s' from '%s'.", file.Name, rel)
	return lm, nil
}

// decodeImages decodes the images at paths on the job system. The result is
// in the order of paths.
func (m *Manager) decodeImages(paths []string) ([]*loaders.Image, error) {
	images := make([]*loaders.Image, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		m.jobs.Submit(core.Job{
			Run: func() error {
				img, err := loaders.LoadImage(m.Resolve(path), false)
				images[i] = img
				return err
			},
			OnFailure: func(err error) { errs[i] = err },
			OnDone:    wg.Done,
		})
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return images, nil
}

func (m *Manager) loadStages(mf loaders.ModeFile) ([]material.ShaderSource, error) {
	vert, err := loaders.LoadSPIRV(m.Resolve(mf.Vertex))
	if err != nil {
		return nil, err
	}
	frag, err := loaders.LoadSPIRV(m.Resolve(mf.Fragment))
	if err != nil {
		return nil, err
	}
	return []material.ShaderSource{
		{Stage: gpu.ShaderStageVertex, Code: vert, Entry: "main"},
		{Stage: gpu.ShaderStageFragment, Code: frag, Entry: "main"},
	}, nil
}

// ReloadSources reads the current SPIR-V of every stage of mode from disk.
func (m *Manager) ReloadSources(lm *LoadedMaterial, mode material.RenderMode) ([]material.ShaderSource, error) {
	for name, mf := range lm.File.Modes {
		if rm, _ := loaders.RenderMode(name); rm == mode {
			return m.loadStages(mf)
		}
	}
	return nil, fmt.Errorf("material '%s' has no mode %s: %w", lm.File.Name, mode, core.ErrAssetLoad)
}

// ModesUsing returns the render modes compiled from the shader at rel.
func (lm *LoadedMaterial) ModesUsing(rel string) []material.RenderMode {
	return lm.shaders[rel]
}

func (lm *LoadedMaterial) UsesShader(rel string) bool {
	return len(lm.shaders[rel]) > 0
}

func (lm *LoadedMaterial) destroyTextures() {
	for _, t := range lm.textures {
		t.Destroy()
	}
	lm.textures = nil
}

// Destroy releases the material and its default textures. The caller must
// make sure no instance of the material is still alive.
func (lm *LoadedMaterial) Destroy() {
	if lm.Material != nil {
		lm.Material.Destroy()
		lm.Material = nil
	}
	lm.destroyTextures()
}
