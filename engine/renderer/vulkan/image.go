package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateImage(desc gpu.ImageDescriptor, memory gpu.MemoryUsage) (*gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("image with extent %s: %w", desc.Extent, core.ErrResourceCreation)
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(d.logical, &info, nil, &image); res != vk.Success {
		return nil, resultError("vkCreateImage", res, core.ErrResourceCreation)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logical, image, &reqs)
	id, a, err := d.allocate(reqs, memory)
	if err != nil {
		vk.DestroyImage(d.logical, image, nil)
		return nil, err
	}
	if res := vk.BindImageMemory(d.logical, image, a.memory, 0); res != vk.Success {
		d.free(id)
		vk.DestroyImage(d.logical, image, nil)
		return nil, resultError("vkBindImageMemory", res, core.ErrResourceCreation)
	}

	handle := gpu.Handle(d.images.Acquire(image))
	return gpu.NewImage(d, handle, id, desc), nil
}

func (d *Device) DestroyImage(image *gpu.Image) {
	img, err := d.images.Release(uint64(image.Handle))
	if err != nil {
		core.LogWarn("destroy image: %s", err)
		return
	}
	vk.DestroyImage(d.logical, img, nil)
	d.free(image.Allocation)
}

func (d *Device) CopyBufferToImage(src *gpu.Buffer, dst *gpu.Image, width, height uint32) error {
	b, ok1 := d.buffers.Get(uint64(src.Handle))
	img, ok2 := d.images.Get(uint64(dst.Handle))
	if !ok1 || !ok2 {
		return fmt.Errorf("copy buffer %d to image %d: %w", src.Handle, dst.Handle, core.ErrUnknownHandle)
	}
	cb, err := d.beginSingleUse()
	if err != nil {
		return err
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.handle, b, img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	return d.endSingleUse(cb)
}

type transition struct {
	srcAccess, dstAccess vk.AccessFlagBits
	srcStage, dstStage   vk.PipelineStageFlagBits
}

func layoutTransition(oldLayout, newLayout gpu.ImageLayout) (transition, bool) {
	switch {
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutTransferDst:
		return transition{
			dstAccess: vk.AccessTransferWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageTransferBit,
		}, true
	case oldLayout == gpu.ImageLayoutTransferDst && newLayout == gpu.ImageLayoutShaderReadOnly:
		return transition{
			srcAccess: vk.AccessTransferWriteBit,
			dstAccess: vk.AccessShaderReadBit,
			srcStage:  vk.PipelineStageTransferBit,
			dstStage:  vk.PipelineStageFragmentShaderBit,
		}, true
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutDepthStencilAttachment:
		return transition{
			dstAccess: vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageEarlyFragmentTestsBit,
		}, true
	case oldLayout == gpu.ImageLayoutUndefined && newLayout == gpu.ImageLayoutColorAttachment:
		return transition{
			dstAccess: vk.AccessColorAttachmentWriteBit,
			srcStage:  vk.PipelineStageTopOfPipeBit,
			dstStage:  vk.PipelineStageColorAttachmentOutputBit,
		}, true
	}
	return transition{}, false
}

func (d *Device) TransitionImageLayout(image *gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	img, ok := d.images.Get(uint64(image.Handle))
	if !ok {
		return fmt.Errorf("transition of image %d: %w", image.Handle, core.ErrUnknownHandle)
	}
	t, ok := layoutTransition(oldLayout, newLayout)
	if !ok {
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	aspect := gpu.ImageAspectColor
	if format.IsDepth() {
		aspect = gpu.ImageAspectDepth
		if format.HasStencil() {
			aspect |= gpu.ImageAspectStencil
		}
	}

	cb, err := d.beginSingleUse()
	if err != nil {
		return err
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(t.srcAccess),
		DstAccessMask:       vk.AccessFlags(t.dstAccess),
		OldLayout:           toVkLayout(oldLayout),
		NewLayout:           toVkLayout(newLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toVkAspect(aspect),
			LevelCount: image.Descriptor.MipLevels,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cb.handle,
		vk.PipelineStageFlags(t.srcStage), vk.PipelineStageFlags(t.dstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return d.endSingleUse(cb)
}

// CreateImageView creates a 2D view over every mip level of image.
func (d *Device) CreateImageView(image *gpu.Image, aspect gpu.ImageAspect) (gpu.Handle, error) {
	img, ok := d.images.Get(uint64(image.Handle))
	if !ok {
		return 0, fmt.Errorf("view of image %d: %w", image.Handle, core.ErrUnknownHandle)
	}
	return d.createImageView(img, image.Descriptor.Format, aspect, image.Descriptor.MipLevels)
}

func (d *Device) createImageView(img vk.Image, format gpu.Format, aspect gpu.ImageAspect, levels uint32) (gpu.Handle, error) {
	if levels == 0 {
		levels = 1
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toVkAspect(aspect),
			LevelCount: levels,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.logical, &info, nil, &view); res != vk.Success {
		return 0, resultError("vkCreateImageView", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.imageViews.Acquire(view)), nil
}

func (d *Device) DestroyImageView(view gpu.Handle) {
	v, err := d.imageViews.Release(uint64(view))
	if err != nil {
		core.LogWarn("destroy image view: %s", err)
		return
	}
	vk.DestroyImageView(d.logical, v, nil)
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Handle, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toVkFilter(desc.MagFilter),
		MinFilter:               toVkFilter(desc.MinFilter),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            toVkAddressMode(desc.AddressMode),
		AddressModeV:            toVkAddressMode(desc.AddressMode),
		AddressModeW:            toVkAddressMode(desc.AddressMode),
		MaxAnisotropy:           1,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if desc.Anisotropy > 1 && d.features.SamplerAnisotropy == vk.True {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = desc.Anisotropy
		if limit := d.properties.Limits.MaxSamplerAnisotropy; info.MaxAnisotropy > limit {
			info.MaxAnisotropy = limit
		}
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.logical, &info, nil, &sampler); res != vk.Success {
		return 0, resultError("vkCreateSampler", res, core.ErrResourceCreation)
	}
	return gpu.Handle(d.samplers.Acquire(sampler)), nil
}

func (d *Device) DestroySampler(sampler gpu.Handle) {
	s, err := d.samplers.Release(uint64(sampler))
	if err != nil {
		core.LogWarn("destroy sampler: %s", err)
		return
	}
	vk.DestroySampler(d.logical, s, nil)
}
