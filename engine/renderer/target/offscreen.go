package target

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Offscreen is a render target backed by images it owns. The images can be
// sampled once rendering completes.
type Offscreen struct {
	Notifier

	device gpu.Device
	extent gpu.Extent
	format gpu.Format
	count  int
	images []*gpu.Image
	views  []gpu.Handle
}

func NewOffscreen(device gpu.Device, extent gpu.Extent, format gpu.Format, count int) (*Offscreen, error) {
	if count < 1 {
		return nil, fmt.Errorf("offscreen target needs at least one image, got %d", count)
	}
	o := &Offscreen{
		device: device,
		format: format,
		count:  count,
	}
	if err := o.create(extent); err != nil {
		o.destroyImages()
		return nil, err
	}
	return o, nil
}

func (o *Offscreen) create(extent gpu.Extent) error {
	if extent.IsZero() {
		return fmt.Errorf("offscreen target with extent %s: %w", extent, core.ErrResourceCreation)
	}
	o.extent = extent
	for i := 0; i < o.count; i++ {
		img, err := o.device.CreateImage(gpu.ImageDescriptor{
			Extent:    extent,
			Format:    o.format,
			Usage:     gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled | gpu.ImageUsageTransferSrc,
			MipLevels: 1,
		}, gpu.MemoryGPUOnly)
		if err != nil {
			return err
		}
		o.images = append(o.images, img)

		view, err := o.device.CreateImageView(img, gpu.ImageAspectColor)
		if err != nil {
			return err
		}
		o.views = append(o.views, view)
	}
	core.LogDebug("offscreen target created with %d images of %s", o.count, extent)
	return nil
}

func (o *Offscreen) destroyImages() {
	for _, v := range o.views {
		o.device.DestroyImageView(v)
	}
	for _, img := range o.images {
		img.Destroy()
	}
	o.views = nil
	o.images = nil
}

// Resize recreates the images with the new extent and notifies listeners.
func (o *Offscreen) Resize(extent gpu.Extent) error {
	if extent == o.extent {
		return nil
	}
	o.destroyImages()
	if err := o.create(extent); err != nil {
		return err
	}
	o.Notify()
	return nil
}

func (o *Offscreen) GetExtent() gpu.Extent { return o.extent }

func (o *Offscreen) GetFormat() gpu.Format { return o.format }

func (o *Offscreen) GetImageViews() []gpu.Handle {
	return append([]gpu.Handle(nil), o.views...)
}

// Images exposes the color images, e.g. for readback.
func (o *Offscreen) Images() []*gpu.Image {
	return append([]*gpu.Image(nil), o.images...)
}

func (o *Offscreen) Destroy() {
	o.destroyImages()
}
