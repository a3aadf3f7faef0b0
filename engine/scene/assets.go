package scene

import (
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

// Assets owns the meshes, material instances and textures produced by a
// load. Destroy releases them in reverse order of creation kind.
type Assets struct {
	Meshes    []*Mesh
	Instances []*material.Instance
	Textures  []*gpu.Texture
}

func (a *Assets) AddMesh(m *Mesh) *Mesh {
	a.Meshes = append(a.Meshes, m)
	return m
}

func (a *Assets) AddInstance(i *material.Instance) *material.Instance {
	a.Instances = append(a.Instances, i)
	return i
}

func (a *Assets) AddTexture(t *gpu.Texture) *gpu.Texture {
	a.Textures = append(a.Textures, t)
	return t
}

func (a *Assets) Destroy() {
	for _, m := range a.Meshes {
		m.Destroy()
	}
	for _, i := range a.Instances {
		i.Destroy()
	}
	for _, t := range a.Textures {
		t.Destroy()
	}
	a.Meshes = nil
	a.Instances = nil
	a.Textures = nil
}
