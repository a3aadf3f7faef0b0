package gpu

import (
	"fmt"
)

// Texture bundles an image with its view and sampler.
type Texture struct {
	Name    string
	Image   *Image
	View    Handle
	Sampler Handle

	device Device
}

// NewTexture uploads width*height RGBA8 pixels into a sampled image.
func NewTexture(dev Device, name string, width, height uint32, pixels []byte, sampler SamplerDescriptor) (*Texture, error) {
	if uint64(len(pixels)) != uint64(width)*uint64(height)*4 {
		return nil, fmt.Errorf("texture '%s': expected %d bytes of RGBA8 pixels, got %d", name, width*height*4, len(pixels))
	}
	staging, err := NewHostBuffer(dev, BufferUsageTransferSrc, pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	format := FormatR8G8B8A8Unorm
	img, err := dev.CreateImage(ImageDescriptor{
		Extent:    Extent{Width: width, Height: height},
		Format:    format,
		Usage:     ImageUsageTransferDst | ImageUsageSampled,
		MipLevels: 1,
	}, MemoryGPUOnly)
	if err != nil {
		return nil, err
	}

	t := &Texture{Name: name, Image: img, device: dev}
	if err := dev.TransitionImageLayout(img, format, ImageLayoutUndefined, ImageLayoutTransferDst); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := dev.CopyBufferToImage(staging, img, width, height); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := dev.TransitionImageLayout(img, format, ImageLayoutTransferDst, ImageLayoutShaderReadOnly); err != nil {
		t.Destroy()
		return nil, err
	}
	if t.View, err = dev.CreateImageView(img, ImageAspectColor); err != nil {
		t.Destroy()
		return nil, err
	}
	if t.Sampler, err = dev.CreateSampler(sampler); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// NewSolidTexture creates a 1x1 texture of the given colour, used as the
// fallback for unbound material slots.
func NewSolidTexture(dev Device, name string, r, g, b, a uint8) (*Texture, error) {
	return NewTexture(dev, name, 1, 1, []byte{r, g, b, a}, DefaultSampler())
}

func (t *Texture) Destroy() {
	if t == nil || t.device == nil {
		return
	}
	if !t.Sampler.IsNull() {
		t.device.DestroySampler(t.Sampler)
		t.Sampler = 0
	}
	if !t.View.IsNull() {
		t.device.DestroyImageView(t.View)
		t.View = 0
	}
	t.Image.Destroy()
	t.device = nil
}
