package gpu

// Device is everything the renderer needs from the graphics API beyond
// resource management.
type Device interface {
	ResourceManager

	CreateImageView(image *Image, aspect ImageAspect) (Handle, error)
	DestroyImageView(view Handle)
	CreateSampler(desc SamplerDescriptor) (Handle, error)
	DestroySampler(sampler Handle)

	// CreateShaderModule takes SPIR-V words.
	CreateShaderModule(code []uint32) (Handle, error)
	DestroyShaderModule(module Handle)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (Handle, error)
	DestroyDescriptorSetLayout(layout Handle)
	CreateDescriptorPool(desc DescriptorPoolDescriptor) (Handle, error)
	DestroyDescriptorPool(pool Handle)
	AllocateDescriptorSet(pool, layout Handle) (Handle, error)
	FreeDescriptorSet(pool, set Handle) error
	UpdateDescriptorSet(set Handle, writes []DescriptorWrite)

	CreateRenderPass(desc RenderPassDescriptor) (Handle, error)
	DestroyRenderPass(renderPass Handle)
	CreateFramebuffer(renderPass Handle, attachments []Handle, extent Extent) (Handle, error)
	DestroyFramebuffer(framebuffer Handle)

	CreatePipelineLayout(setLayouts []Handle, pushConstants []PushConstantRange) (Handle, error)
	DestroyPipelineLayout(layout Handle)
	CreateGraphicsPipeline(desc PipelineDescriptor) (Handle, error)
	DestroyPipeline(pipeline Handle)

	CreateSemaphore() (Handle, error)
	DestroySemaphore(semaphore Handle)

	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cmd CommandBuffer)
	// Submit queues cmd on the graphics queue. waitStages pairs with wait.
	Submit(cmd CommandBuffer, wait []Handle, waitStages []PipelineStage, signal []Handle) error

	// WaitPresentIdle blocks until the present queue has no pending work.
	WaitPresentIdle() error
	WaitIdle() error
}

// CommandBuffer records GPU work. Begin resets any previous recording.
type CommandBuffer interface {
	Begin() error
	End() error

	BeginRenderPass(renderPass, framebuffer Handle, extent Extent, clear []ClearValue)
	EndRenderPass()
	SetViewport(viewport Viewport)
	SetScissor(extent Extent)

	BindPipeline(pipeline Handle)
	BindDescriptorSet(layout Handle, set uint32, descriptorSet Handle)
	PushConstants(layout Handle, stages ShaderStage, offset uint32, data []byte)
	BindVertexBuffer(buffer *Buffer, offset uint64)
	BindIndexBuffer(buffer *Buffer, offset uint64, indexType IndexType)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

type SamplerDescriptor struct {
	MinFilter   Filter
	MagFilter   Filter
	AddressMode AddressMode
	Anisotropy  float32
}

func DefaultSampler() SamplerDescriptor {
	return SamplerDescriptor{
		MinFilter:   FilterLinear,
		MagFilter:   FilterLinear,
		AddressMode: AddressModeRepeat,
	}
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

// DescriptorWrite points one binding of a set at a buffer range or a texture.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType

	Buffer *Buffer
	Offset uint64
	Range  uint64

	ImageView Handle
	Sampler   Handle
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type AttachmentDescriptor struct {
	Format Format
	// Clear the attachment at the beginning of the pass, otherwise load it.
	Clear bool
	// FinalLayout is the layout the attachment is left in.
	FinalLayout ImageLayout
}

type RenderPassDescriptor struct {
	Color AttachmentDescriptor
	// Depth is optional.
	Depth *AttachmentDescriptor
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type ShaderStageModule struct {
	Stage  ShaderStage
	Module Handle
	Entry  string
}

// PipelineDescriptor is the full fixed function and programmable state of a
// graphics pipeline.
type PipelineDescriptor struct {
	Layout       Handle
	RenderPass   Handle
	Stages       []ShaderStageModule
	VertexLayout VertexLayout
	Topology     Topology
	Extent       Extent
	SampleCount  uint32
	CullMode     CullMode
	Blend        BlendMode
	DepthTest    bool
	DepthWrite   bool
	Wireframe    bool
	LineWidth    float32
}
