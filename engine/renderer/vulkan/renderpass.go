package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func loadOp(clear bool) vk.AttachmentLoadOp {
	if clear {
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpLoad
}

// CreateRenderPass creates a single subpass pass with one color and an
// optional depth attachment.
func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.Handle, error) {
	initial := vk.ImageLayoutUndefined
	if !desc.Color.Clear {
		initial = toVkLayout(desc.Color.FinalLayout)
	}
	attachments := []vk.AttachmentDescription{{
		Format:         toVkFormat(desc.Color.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         loadOp(desc.Color.Clear),
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  initial,
		FinalLayout:    toVkLayout(desc.Color.FinalLayout),
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	stages := vk.PipelineStageColorAttachmentOutputBit
	access := vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
	if desc.Depth != nil {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(desc.Depth.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(desc.Depth.Clear),
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageEarlyFragmentTestsBit
		access |= vk.AccessDepthStencilAttachmentWriteBit
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(stages),
		DstStageMask:  vk.PipelineStageFlags(stages),
		DstAccessMask: vk.AccessFlags(access),
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var rp vk.RenderPass
	if res := vk.CreateRenderPass(d.logical, &info, nil, &rp); res != vk.Success {
		return 0, resultError("vkCreateRenderPass", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.renderPasses.Acquire(rp)), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.Handle) {
	rp, err := d.renderPasses.Release(uint64(renderPass))
	if err != nil {
		core.LogWarn("destroy render pass: %s", err)
		return
	}
	vk.DestroyRenderPass(d.logical, rp, nil)
}

func (d *Device) CreateFramebuffer(renderPass gpu.Handle, attachments []gpu.Handle, extent gpu.Extent) (gpu.Handle, error) {
	rp, ok := d.renderPasses.Get(uint64(renderPass))
	if !ok {
		return 0, fmt.Errorf("framebuffer for render pass %d: %w", renderPass, core.ErrUnknownHandle)
	}
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		v, ok := d.imageViews.Get(uint64(a))
		if !ok {
			return 0, fmt.Errorf("framebuffer attachment %d: %w", a, core.ErrUnknownHandle)
		}
		views[i] = v
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(d.logical, &info, nil, &fb); res != vk.Success {
		return 0, resultError("vkCreateFramebuffer", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.framebuffers.Acquire(fb)), nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Handle) {
	fb, err := d.framebuffers.Release(uint64(framebuffer))
	if err != nil {
		core.LogWarn("destroy framebuffer: %s", err)
		return
	}
	vk.DestroyFramebuffer(d.logical, fb, nil)
}

func (d *Device) CreateSemaphore() (gpu.Handle, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var s vk.Semaphore
	if res := vk.CreateSemaphore(d.logical, &info, nil, &s); res != vk.Success {
		return 0, resultError("vkCreateSemaphore", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.semaphores.Acquire(s)), nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Handle) {
	s, err := d.semaphores.Release(uint64(semaphore))
	if err != nil {
		core.LogWarn("destroy semaphore: %s", err)
		return
	}
	vk.DestroySemaphore(d.logical, s, nil)
}
