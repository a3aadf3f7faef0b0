package target

import (
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// DepthImage is a depth attachment owned by whoever created it.
type DepthImage struct {
	device gpu.Device
	image  *gpu.Image
	view   gpu.Handle
	format gpu.Format
}

func NewDepthImage(device gpu.Device, extent gpu.Extent, format gpu.Format) (*DepthImage, error) {
	img, err := device.CreateImage(gpu.ImageDescriptor{
		Extent:    extent,
		Format:    format,
		Usage:     gpu.ImageUsageDepthStencilAttachment,
		MipLevels: 1,
	}, gpu.MemoryGPUOnly)
	if err != nil {
		return nil, err
	}
	aspect := gpu.ImageAspectDepth
	if format.HasStencil() {
		aspect |= gpu.ImageAspectStencil
	}
	view, err := device.CreateImageView(img, aspect)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return &DepthImage{
		device: device,
		image:  img,
		view:   view,
		format: format,
	}, nil
}

func (d *DepthImage) GetImageView() gpu.Handle { return d.view }

func (d *DepthImage) GetFormat() gpu.Format { return d.format }

func (d *DepthImage) Extent() gpu.Extent { return d.image.Descriptor.Extent }

func (d *DepthImage) Destroy() {
	if d == nil || d.image.IsDestroyed() {
		return
	}
	d.device.DestroyImageView(d.view)
	d.view = 0
	d.image.Destroy()
}
