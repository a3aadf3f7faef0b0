package scene

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
)

// Primitive is a range of the index buffer drawn with one material instance.
// The instance is borrowed.
type Primitive struct {
	Material    *material.Instance
	IndexCount  uint32
	IndexOffset uint32
}

// Mesh owns device local vertex and index buffers.
type Mesh struct {
	Name         string
	VertexBuffer *gpu.Buffer
	IndexBuffer  *gpu.Buffer
	IndexType    gpu.IndexType
	VertexCount  uint32
	Primitives   []Primitive
}

// NewMesh uploads vertices and indices eagerly. Primitives index into the
// uploaded index list.
func NewMesh(rm gpu.ResourceManager, name string, vertices []math.Vertex3D, indices []uint32, primitives []Primitive) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("mesh '%s' has no geometry", name)
	}
	for i, p := range primitives {
		if uint64(p.IndexOffset)+uint64(p.IndexCount) > uint64(len(indices)) {
			return nil, fmt.Errorf("mesh '%s' primitive %d spans [%d, %d) beyond %d indices", name, i, p.IndexOffset, p.IndexOffset+p.IndexCount, len(indices))
		}
	}

	vb, err := gpu.NewDeviceLocalBuffer(rm, gpu.BufferUsageVertex, gpu.SliceBytes(vertices))
	if err != nil {
		return nil, fmt.Errorf("mesh '%s' vertex buffer: %w", name, err)
	}
	ib, err := gpu.NewDeviceLocalBuffer(rm, gpu.BufferUsageIndex, gpu.SliceBytes(indices))
	if err != nil {
		vb.Destroy()
		return nil, fmt.Errorf("mesh '%s' index buffer: %w", name, err)
	}
	return &Mesh{
		Name:         name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexType:    gpu.IndexTypeUint32,
		VertexCount:  uint32(len(vertices)),
		Primitives:   primitives,
	}, nil
}

// IndexCount is the number of indices in the index buffer.
func (m *Mesh) IndexCount() uint32 {
	if m.IndexBuffer == nil {
		return 0
	}
	return uint32(m.IndexBuffer.Size / m.IndexType.Size())
}

func (m *Mesh) Destroy() {
	m.VertexBuffer.Destroy()
	m.IndexBuffer.Destroy()
}

// MeshComponent references a mesh; the mesh is owned by an asset container.
type MeshComponent struct {
	componentBase
	Mesh *Mesh
}

func NewMeshComponent(mesh *Mesh) *MeshComponent {
	return &MeshComponent{Mesh: mesh}
}

func (c *MeshComponent) Kind() ComponentKind { return KindMesh }
