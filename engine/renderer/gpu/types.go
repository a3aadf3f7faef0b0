// Package gpu describes the device the renderer records against. The vulkan
// package implements it on goki/vulkan; gputest implements it in memory.
package gpu

import "fmt"

// Handle is an opaque device object. The zero Handle is the null object.
type Handle uint64

func (h Handle) IsNull() bool { return h == 0 }

// Allocation is the opaque memory token paired with a Buffer or Image.
type Allocation uint64

type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// AspectRatio returns width / height, or 1 for a degenerate extent.
func (e Extent) AspectRatio() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageIndex
	BufferUsageVertex
)

// MemoryUsage hints where an allocation should live.
type MemoryUsage int

const (
	// MemoryGPUOnly is device local and not mappable.
	MemoryGPUOnly MemoryUsage = iota
	// MemoryCPUToGPU is host visible and coherent, for staging and uniforms.
	MemoryCPUToGPU
	// MemoryCPUOnly is host visible, used for readback.
	MemoryCPUOnly
)

func (m MemoryUsage) Mappable() bool {
	return m != MemoryGPUOnly
}

type Format int

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
)

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f.HasStencil()
}

type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

type ImageAspect uint32

const (
	ImageAspectColor ImageAspect = 1 << iota
	ImageAspectDepth
	ImageAspectStencil
)

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferDst
	ImageLayoutShaderReadOnly
	ImageLayoutColorAttachment
	ImageLayoutDepthStencilAttachment
	ImageLayoutPresentSrc
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe PipelineStage = 1 << iota
	PipelineStageColorAttachmentOutput
	PipelineStageEarlyFragmentTests
	PipelineStageTransfer
	PipelineStageFragmentShader
)

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeCombinedImageSampler
)

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

// Size returns the byte size of one index.
func (t IndexType) Size() uint64 {
	if t == IndexTypeUint16 {
		return 2
	}
	return 4
}

type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyLineList
	TopologyPointList
)

type CullMode int

const (
	CullModeBack CullMode = iota
	CullModeFront
	CullModeNone
)

type BlendMode int

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
)

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode int

const (
	AddressModeRepeat AddressMode = iota
	AddressModeClampToEdge
	AddressModeMirroredRepeat
)

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}
