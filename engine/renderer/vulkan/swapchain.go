package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/target"
)

var presentModes = map[string]vk.PresentMode{
	"fifo":      vk.PresentModeFifo,
	"mailbox":   vk.PresentModeMailbox,
	"immediate": vk.PresentModeImmediate,
}

// Swapchain presents to the window surface. It is a target.RenderTarget
// whose change callbacks fire after every Recreate.
type Swapchain struct {
	target.Notifier

	device      *Device
	handle      vk.Swapchain
	surface     vk.SurfaceFormat
	format      gpu.Format
	presentMode vk.PresentMode
	extent      gpu.Extent
	images      []vk.Image
	views       []gpu.Handle
}

var _ target.RenderTarget = (*Swapchain)(nil)

func NewSwapchain(device *Device, extent gpu.Extent) (*Swapchain, error) {
	s := &Swapchain{device: device}
	if err := s.create(extent); err != nil {
		return nil, err
	}
	return s, nil
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, gpu.Format) {
	for _, want := range []vk.Format{vk.FormatB8g8r8a8Srgb, vk.FormatR8g8b8a8Srgb} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				gf, _ := fromVkFormat(f.Format)
				return f, gf
			}
		}
	}
	for _, f := range formats {
		if gf, ok := fromVkFormat(f.Format); ok {
			return f, gf
		}
	}
	return formats[0], gpu.FormatUndefined
}

func choosePresentMode(available []vk.PresentMode, preferred string) vk.PresentMode {
	want, ok := presentModes[preferred]
	if !ok {
		return vk.PresentModeFifo
	}
	for _, m := range available {
		if m == want {
			return m
		}
	}
	core.LogWarn("present mode '%s' not available, falling back to fifo", preferred)
	return vk.PresentModeFifo
}

func (s *Swapchain) create(requested gpu.Extent) error {
	d := s.device
	support, err := d.SwapchainSupport()
	if err != nil {
		return err
	}
	if len(support.formats) == 0 {
		return fmt.Errorf("surface reports no formats: %w", core.ErrResourceCreation)
	}
	s.surface, s.format = chooseSurfaceFormat(support.formats)
	if s.format == gpu.FormatUndefined {
		return fmt.Errorf("no surface format the renderer can use: %w", core.ErrResourceCreation)
	}
	s.presentMode = choosePresentMode(support.presentModes, d.context.options.PresentMode)

	caps := support.capabilities
	extent := vk.Extent2D{Width: requested.Width, Height: requested.Height}
	if caps.CurrentExtent.Width != ^uint32(0) {
		extent = caps.CurrentExtent
	}
	extent.Width = math.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = math.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("surface extent %dx%d: %w", extent.Width, extent.Height, core.ErrSwapchainBooting)
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.surface.Format,
		ImageColorSpace:  s.surface.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      s.presentMode,
		Clipped:          vk.True,
		OldSwapchain:     s.handle,
	}
	if d.families.graphics != d.families.present {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{d.families.graphics, d.families.present}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.logical, &info, nil, &handle); res != vk.Success {
		return resultError("vkCreateSwapchain", res, core.ErrResourceCreation)
	}
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(d.logical, s.handle, nil)
	}
	s.handle = handle
	s.extent = gpu.Extent{Width: extent.Width, Height: extent.Height}

	var count uint32
	if res := vk.GetSwapchainImages(d.logical, s.handle, &count, nil); res != vk.Success {
		return resultError("vkGetSwapchainImages", res, core.ErrResourceCreation)
	}
	s.images = make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.logical, s.handle, &count, s.images); res != vk.Success {
		return resultError("vkGetSwapchainImages", res, core.ErrResourceCreation)
	}
	s.views = make([]gpu.Handle, 0, count)
	for _, img := range s.images {
		view, err := d.createImageView(img, s.format, gpu.ImageAspectColor, 1)
		if err != nil {
			s.destroyViews()
			return err
		}
		s.views = append(s.views, view)
	}
	core.LogInfo("Swapchain created with %d images of %s.", count, s.extent)
	return nil
}

func (s *Swapchain) destroyViews() {
	for _, v := range s.views {
		s.device.DestroyImageView(v)
	}
	s.views = nil
}

// Recreate rebuilds the swapchain for extent, then notifies listeners. A
// zero extent, e.g. a minimised window, returns ErrSwapchainBooting and
// leaves the current swapchain alone.
func (s *Swapchain) Recreate(extent gpu.Extent) error {
	if extent.IsZero() {
		return fmt.Errorf("recreate with extent %s: %w", extent, core.ErrSwapchainBooting)
	}
	if err := s.device.WaitIdle(); err != nil {
		return err
	}
	s.destroyViews()
	if err := s.create(extent); err != nil {
		return err
	}
	s.Notify()
	return nil
}

// AcquireNextImage returns the index of the next image to render into.
// signal is signalled once the image is available.
func (s *Swapchain) AcquireNextImage(signal gpu.Handle) (uint32, error) {
	sem, ok := s.device.semaphores.Get(uint64(signal))
	if !ok {
		return 0, fmt.Errorf("acquire with semaphore %d: %w", signal, core.ErrUnknownHandle)
	}
	var index uint32
	res := vk.AcquireNextImage(s.device.logical, s.handle, ^uint64(0), sem, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	}
	return 0, resultError("vkAcquireNextImage", res, nil)
}

// Present queues imageIndex for presentation after wait. An out of date or
// suboptimal swapchain is reported with the matching sentinel error.
func (s *Swapchain) Present(imageIndex uint32, wait []gpu.Handle) error {
	sems, err := s.device.semaphoreList(wait)
	if err != nil {
		return err
	}
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(sems)),
		PWaitSemaphores:    sems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return s.device.locks.queueCall(s.device.families.present, func() error {
		switch res := vk.QueuePresent(s.device.presentQueue, &info); res {
		case vk.Success:
			return nil
		case vk.Suboptimal:
			return core.ErrSwapchainSuboptimal
		case vk.ErrorOutOfDate:
			return core.ErrSwapchainOutOfDate
		default:
			return resultError("vkQueuePresent", res, nil)
		}
	})
}

func (s *Swapchain) GetExtent() gpu.Extent { return s.extent }

func (s *Swapchain) GetFormat() gpu.Format { return s.format }

func (s *Swapchain) GetImageViews() []gpu.Handle {
	return append([]gpu.Handle(nil), s.views...)
}

func (s *Swapchain) ImageCount() int { return len(s.images) }

func (s *Swapchain) Destroy() {
	if s.handle == vk.NullSwapchain {
		return
	}
	s.destroyViews()
	vk.DestroySwapchain(s.device.logical, s.handle, nil)
	s.handle = vk.NullSwapchain
	s.images = nil
}
