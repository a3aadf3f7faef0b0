package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const spirvMagic = 0x07230203

func (d *Device) CreateShaderModule(code []uint32) (gpu.Handle, error) {
	if len(code) < 5 || code[0] != spirvMagic {
		return 0, fmt.Errorf("shader module of %d words: %w", len(code), core.ErrInvalidSPIRV)
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.logical, &info, nil, &module); res != vk.Success {
		return 0, resultError("vkCreateShaderModule", res, core.ErrPipelineCompile)
	}
	return gpu.Handle(d.shaderModules.Acquire(module)), nil
}

func (d *Device) DestroyShaderModule(module gpu.Handle) {
	m, err := d.shaderModules.Release(uint64(module))
	if err != nil {
		core.LogWarn("destroy shader module: %s", err)
		return
	}
	vk.DestroyShaderModule(d.logical, m, nil)
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.Handle, pushConstants []gpu.PushConstantRange) (gpu.Handle, error) {
	layouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, h := range setLayouts {
		l, ok := d.setLayouts.Get(uint64(h))
		if !ok {
			return 0, fmt.Errorf("pipeline layout set %d: %w", i, core.ErrUnknownHandle)
		}
		layouts[i] = l
	}
	limit := d.properties.Limits.MaxPushConstantsSize
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		if r.Offset+r.Size > limit {
			return 0, fmt.Errorf("push constant range %d..%d exceeds the device limit of %d bytes: %w",
				r.Offset, r.Offset+r.Size, limit, core.ErrResourceCreation)
		}
		ranges[i] = vk.PushConstantRange{
			StageFlags: toVkShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.logical, &info, nil, &layout); res != vk.Success {
		return 0, resultError("vkCreatePipelineLayout", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.pipelineLayouts.Acquire(layout)), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.Handle) {
	l, err := d.pipelineLayouts.Release(uint64(layout))
	if err != nil {
		core.LogWarn("destroy pipeline layout: %s", err)
		return
	}
	vk.DestroyPipelineLayout(d.logical, l, nil)
}

func blendAttachment(mode gpu.BlendMode) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if mode == gpu.BlendModeAlpha {
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.ColorBlendOp = vk.BlendOpAdd
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.AlphaBlendOp = vk.BlendOpAdd
	}
	return state
}

// CreateGraphicsPipeline compiles desc. Viewport and scissor are dynamic,
// desc.Extent only seeds the static state.
func (d *Device) CreateGraphicsPipeline(desc gpu.PipelineDescriptor) (gpu.Handle, error) {
	layout, ok1 := d.pipelineLayouts.Get(uint64(desc.Layout))
	rp, ok2 := d.renderPasses.Get(uint64(desc.RenderPass))
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("pipeline with layout %d and render pass %d: %w", desc.Layout, desc.RenderPass, core.ErrUnknownHandle)
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Stages))
	for _, s := range desc.Stages {
		module, ok := d.shaderModules.Get(uint64(s.Module))
		if !ok {
			return 0, fmt.Errorf("pipeline shader stage %d: %w", s.Stage, core.ErrUnknownHandle)
		}
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  toVkShaderStage(s.Stage),
			Module: module,
			PName:  safeString(entry),
		})
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexLayout.Attributes))
	for i, a := range desc.VertexLayout.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexLayout.Stride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               toVkTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			Width:    float32(desc.Extent.Width),
			Height:   float32(desc.Extent.Height),
			MaxDepth: 1,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Extent: vk.Extent2D{Width: desc.Extent.Width, Height: desc.Extent.Height},
		}},
	}

	polygonMode := vk.PolygonModeFill
	if desc.Wireframe {
		if d.features.FillModeNonSolid == vk.True {
			polygonMode = vk.PolygonModeLine
		} else {
			core.LogWarn("wireframe requested but fillModeNonSolid is not supported, using fill")
		}
	}
	lineWidth := desc.LineWidth
	if lineWidth <= 0 {
		lineWidth = 1
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonMode,
		CullMode:                toVkCullMode(desc.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		LineWidth:               lineWidth,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: toVkSampleCount(desc.SampleCount),
		MinSampleShading:     1,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLess,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if desc.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment(desc.Blend)},
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          rp,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.logical, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		return 0, resultError("vkCreateGraphicsPipelines", res, core.ErrPipelineCompile)
	}
	core.LogDebug("Graphics pipeline created.")
	return gpu.Handle(d.pipelines.Acquire(pipelines[0])), nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Handle) {
	p, err := d.pipelines.Release(uint64(pipeline))
	if err != nil {
		core.LogWarn("destroy pipeline: %s", err)
		return
	}
	vk.DestroyPipeline(d.logical, p, nil)
}
