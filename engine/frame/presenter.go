// Package frame drives one frame of presentation: acquire a swapchain image,
// draw into it and present it, recreating the swapchain when the window
// changes.
package frame

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/target"
)

// Window is the part of the platform layer the presenter needs.
type Window interface {
	// WaitMessages blocks until at least one window event arrives.
	WaitMessages()
	FramebufferSize() gpu.Extent
}

// Surface is a presentable render target, implemented by the Vulkan
// swapchain.
type Surface interface {
	target.RenderTarget
	ImageCount() int
	AcquireNextImage(signal gpu.Handle) (uint32, error)
	Present(imageIndex uint32, wait []gpu.Handle) error
	// Recreate rebuilds the images for extent and notifies the registered
	// callbacks. A zero extent returns core.ErrSwapchainBooting.
	Recreate(extent gpu.Extent) error
}

// Presenter owns the renderer for a surface and the semaphores that order
// acquire, submit and present.
type Presenter struct {
	device   gpu.Device
	surface  Surface
	window   Window
	renderer *renderer.Renderer

	// DrawFrame waits for the previous submission, so one acquire semaphore
	// is enough. Render finished semaphores are per image.
	imageAvailable gpu.Handle
	renderFinished []gpu.Handle

	suspended     bool
	resizePending bool

	// OnResize is called after the surface was recreated.
	OnResize func(extent gpu.Extent)
}

func NewPresenter(device gpu.Device, surface Surface, window Window, config renderer.Config) (*Presenter, error) {
	p := &Presenter{
		device:  device,
		surface: surface,
		window:  window,
	}
	r, err := renderer.New(device, surface, nil, config)
	if err != nil {
		return nil, err
	}
	p.renderer = r
	if p.imageAvailable, err = device.CreateSemaphore(); err != nil {
		p.Destroy()
		return nil, err
	}
	if err := p.createRenderFinished(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Presenter) createRenderFinished() error {
	p.destroyRenderFinished()
	count := p.surface.ImageCount()
	p.renderFinished = make([]gpu.Handle, 0, count)
	for i := 0; i < count; i++ {
		s, err := p.device.CreateSemaphore()
		if err != nil {
			return err
		}
		p.renderFinished = append(p.renderFinished, s)
	}
	return nil
}

func (p *Presenter) destroyRenderFinished() {
	for _, s := range p.renderFinished {
		p.device.DestroySemaphore(s)
	}
	p.renderFinished = nil
}

func (p *Presenter) Renderer() *renderer.Renderer { return p.renderer }

// Suspended reports whether the window is minimized.
func (p *Presenter) Suspended() bool { return p.suspended }

// RequestResize recreates the surface before the next frame.
func (p *Presenter) RequestResize() { p.resizePending = true }

// Frame draws and presents one frame. Out of date and suboptimal surfaces are
// recreated and are not errors. Any other error is fatal for the frame loop.
func (p *Presenter) Frame() error {
	if p.suspended {
		p.window.WaitMessages()
		return p.recreate()
	}
	if p.resizePending {
		if err := p.recreate(); err != nil || p.suspended {
			return err
		}
	}

	index, err := p.surface.AcquireNextImage(p.imageAvailable)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return p.recreate()
	}
	if err != nil {
		return err
	}
	if int(index) >= len(p.renderFinished) {
		return fmt.Errorf("acquired image %d of %d: %w", index, len(p.renderFinished), core.ErrInvalidState)
	}

	signal := []gpu.Handle{p.renderFinished[index]}
	if err := p.renderer.DrawFrame(index,
		[]gpu.Handle{p.imageAvailable},
		[]gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
		signal); err != nil {
		return err
	}

	err = p.surface.Present(index, signal)
	switch {
	case errors.Is(err, core.ErrSwapchainOutOfDate), errors.Is(err, core.ErrSwapchainSuboptimal):
		return p.recreate()
	case err != nil:
		return err
	}
	return nil
}

// recreate rebuilds the surface for the current framebuffer size. A minimized
// window suspends the presenter until it has a size again.
func (p *Presenter) recreate() error {
	extent := p.window.FramebufferSize()
	err := p.surface.Recreate(extent)
	if errors.Is(err, core.ErrSwapchainBooting) {
		if !p.suspended {
			core.LogInfo("Window minimized, suspending presentation.")
		}
		p.suspended = true
		return nil
	}
	if err != nil {
		return err
	}
	if p.suspended {
		core.LogInfo("Window restored, resuming presentation.")
	}
	p.suspended = false
	p.resizePending = false

	if len(p.renderFinished) != p.surface.ImageCount() {
		if err := p.createRenderFinished(); err != nil {
			return err
		}
	}
	if p.OnResize != nil {
		p.OnResize(p.surface.GetExtent())
	}
	return nil
}

// Destroy waits for the device and releases the renderer and the semaphores.
// The surface is owned by the caller.
func (p *Presenter) Destroy() {
	if err := p.device.WaitIdle(); err != nil {
		core.LogWarn("presenter destroy: %s", err)
	}
	if p.renderer != nil {
		p.renderer.Destroy()
		p.renderer = nil
	}
	p.destroyRenderFinished()
	if !p.imageAvailable.IsNull() {
		p.device.DestroySemaphore(p.imageAvailable)
		p.imageAvailable = 0
	}
}
