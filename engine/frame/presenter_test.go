package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/target"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type fakeWindow struct {
	size  gpu.Extent
	waits int
}

func (w *fakeWindow) WaitMessages()               { w.waits++ }
func (w *fakeWindow) FramebufferSize() gpu.Extent { return w.size }

// fakeSurface presents offscreen images and replays queued errors.
type fakeSurface struct {
	*target.Offscreen

	next        uint32
	acquireErrs []error
	presentErrs []error
	presented   []uint32
	recreated   int
}

func (s *fakeSurface) ImageCount() int { return len(s.GetImageViews()) }

func (s *fakeSurface) AcquireNextImage(signal gpu.Handle) (uint32, error) {
	if len(s.acquireErrs) > 0 {
		err := s.acquireErrs[0]
		s.acquireErrs = s.acquireErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	index := s.next
	s.next = (s.next + 1) % uint32(s.ImageCount())
	return index, nil
}

func (s *fakeSurface) Present(imageIndex uint32, wait []gpu.Handle) error {
	s.presented = append(s.presented, imageIndex)
	if len(s.presentErrs) > 0 {
		err := s.presentErrs[0]
		s.presentErrs = s.presentErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSurface) Recreate(extent gpu.Extent) error {
	if extent.IsZero() {
		return core.ErrSwapchainBooting
	}
	s.recreated++
	return s.Resize(extent)
}

type fixture struct {
	dev       *gputest.Device
	surface   *fakeSurface
	window    *fakeWindow
	presenter *Presenter
	scene     *scene.Scene
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		dev:    gputest.NewDevice(),
		window: &fakeWindow{size: gpu.Extent{Width: 640, Height: 480}},
	}
	off, err := target.NewOffscreen(f.dev, f.window.size, gpu.FormatB8G8R8A8Srgb, 3)
	require.NoError(t, err)
	f.surface = &fakeSurface{Offscreen: off}

	f.presenter, err = NewPresenter(f.dev, f.surface, f.window, renderer.DefaultConfig())
	require.NoError(t, err)

	f.scene = scene.NewScene("frame")
	cam := scene.NewNode("camera")
	require.NoError(t, cam.AddComponent(scene.NewTransformAt(math.NewVec3(0, 0, 3))))
	camera := scene.NewPerspectiveCamera(math.DegToRad(45), 1, 0.1, 50)
	require.NoError(t, cam.AddComponent(camera))
	require.NoError(t, f.scene.Root().AddChild(cam))

	f.presenter.Renderer().SetScene(f.scene)
	f.presenter.Renderer().SetCamera(camera)
	return f
}

func (f *fixture) destroy() {
	f.presenter.Destroy()
	f.surface.Destroy()
}

func TestPresenterFrame(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.presenter.Frame())
	require.NoError(t, f.presenter.Frame())

	assert.Equal(t, []uint32{0, 1}, f.surface.presented)
	require.Len(t, f.dev.Submits, 2)

	last := f.dev.Submits[1]
	assert.Equal(t, []gpu.Handle{f.presenter.imageAvailable}, last.Wait)
	assert.Equal(t, []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput}, last.WaitStages)
	assert.Equal(t, []gpu.Handle{f.presenter.renderFinished[1]}, last.Signal)

	f.destroy()
	assert.Zero(t, f.dev.LiveTotal())
}

func TestPresenterAcquireOutOfDate(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	f.surface.acquireErrs = []error{core.ErrSwapchainOutOfDate}
	f.window.size = gpu.Extent{Width: 800, Height: 600}

	var resized []gpu.Extent
	f.presenter.OnResize = func(e gpu.Extent) { resized = append(resized, e) }

	require.NoError(t, f.presenter.Frame())
	assert.Empty(t, f.surface.presented, "the frame is skipped")
	assert.Empty(t, f.dev.Submits)
	assert.Equal(t, 1, f.surface.recreated)
	assert.Equal(t, []gpu.Extent{{Width: 800, Height: 600}}, resized)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, f.presenter.Renderer().Extent())

	require.NoError(t, f.presenter.Frame())
	assert.Len(t, f.surface.presented, 1)
}

func TestPresenterPresentSuboptimal(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	f.surface.presentErrs = []error{core.ErrSwapchainSuboptimal}
	require.NoError(t, f.presenter.Frame())
	assert.Len(t, f.surface.presented, 1)
	assert.Equal(t, 1, f.surface.recreated)
}

func TestPresenterMinimize(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	f.window.size = gpu.Extent{}
	f.presenter.RequestResize()
	require.NoError(t, f.presenter.Frame())
	assert.True(t, f.presenter.Suspended())
	assert.Empty(t, f.surface.presented)

	require.NoError(t, f.presenter.Frame())
	assert.Equal(t, 1, f.window.waits)
	assert.True(t, f.presenter.Suspended())

	f.window.size = gpu.Extent{Width: 320, Height: 200}
	require.NoError(t, f.presenter.Frame())
	assert.False(t, f.presenter.Suspended())
	assert.Equal(t, 2, f.window.waits)
	assert.Empty(t, f.surface.presented, "the restoring frame only recreates")

	require.NoError(t, f.presenter.Frame())
	assert.Len(t, f.surface.presented, 1)
	assert.Equal(t, gpu.Extent{Width: 320, Height: 200}, f.presenter.Renderer().Extent())
}

func TestPresenterFatalErrors(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	lost := errors.New("device lost")
	f.surface.acquireErrs = []error{lost}
	assert.ErrorIs(t, f.presenter.Frame(), lost)

	f.dev.FailSubmit = true
	assert.Error(t, f.presenter.Frame())
	f.dev.FailSubmit = false

	f.surface.presentErrs = []error{lost}
	assert.ErrorIs(t, f.presenter.Frame(), lost)
}

func TestPresenterNoScene(t *testing.T) {
	f := newFixture(t)
	defer f.destroy()

	f.presenter.Renderer().SetScene(nil)
	assert.ErrorIs(t, f.presenter.Frame(), core.ErrSceneNotSet)
}
