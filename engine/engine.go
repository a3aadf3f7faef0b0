package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/frame"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	EngineStageShutdown
)

type Engine struct {
	currentStage Stage
	config       *config.Config
	gameInstance *Game
	isRunning    atomic.Bool

	events   *core.EventBus
	input    *core.Input
	clock    *core.Clock
	metrics  *core.Metrics
	platform *platform.Platform

	context   *vulkan.Context
	device    *vulkan.Device
	swapchain *vulkan.Swapchain
	presenter *frame.Presenter

	assetManager *assets.Manager
	materials    []*assets.LoadedMaterial
	descriptors  gpu.Handle

	scene    *scene.Scene
	lastTime float64
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		g.Config = config.Default()
	}
	if err := core.SetLogLevel(g.Config.Application.LogLevel); err != nil {
		return nil, err
	}
	events := core.NewEventBus()
	input := core.NewInput(events)
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       g.Config,
		gameInstance: g,
		events:       events,
		input:        input,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     platform.New(input, events),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := e.config.Application

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(app.Name, app.X, app.Y, app.Width, app.Height); err != nil {
		return err
	}

	var err error
	e.context, err = vulkan.NewContext(e.platform, vulkan.Options{
		AppName:     app.Name,
		Validation:  e.config.Renderer.Validation,
		PresentMode: string(e.config.Renderer.PresentMode),
	})
	if err != nil {
		return err
	}
	if e.device, err = vulkan.NewDevice(e.context); err != nil {
		return err
	}
	depthFormat, err := e.device.DetectDepthFormat()
	if err != nil {
		return err
	}
	if e.swapchain, err = vulkan.NewSwapchain(e.device, e.platform.FramebufferSize()); err != nil {
		return err
	}

	rc := renderer.DefaultConfig()
	rc.ClearColor = e.config.Renderer.ClearColor
	rc.MaxSpotLights = e.config.Renderer.MaxSpotLights
	rc.DepthFormat = depthFormat
	if e.presenter, err = frame.NewPresenter(e.device, e.swapchain, e.platform, rc); err != nil {
		return err
	}
	e.presenter.OnResize = e.onSurfaceResized

	if e.assetManager, err = assets.NewManager(e.config.Assets.Root, e.events, e.config.Assets.Watch); err != nil {
		return err
	}
	if e.compiledShaders() == 0 {
		core.LogWarn("No compiled shaders under '%s/%s', run 'mage build:shaders'.", e.config.Assets.Root, e.config.Assets.Shaders)
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.scene == nil {
		return core.ErrSceneNotSet
	}
	extent := e.swapchain.GetExtent()
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(extent.Width, extent.Height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized: %s at %s.", app.Name, extent)
	return nil
}

func (e *Engine) compiledShaders() int {
	prefix := strings.TrimSuffix(e.config.Assets.Shaders, "/") + "/"
	count := 0
	for _, info := range e.assetManager.List(assets.TypeShader) {
		if strings.HasPrefix(info.Path, prefix) {
			count++
		}
	}
	return count
}

func (e *Engine) Device() gpu.Device { return e.device }

func (e *Engine) Renderer() *renderer.Renderer { return e.presenter.Renderer() }

func (e *Engine) Input() *core.Input { return e.input }

func (e *Engine) Events() *core.EventBus { return e.events }

func (e *Engine) Assets() *assets.Manager { return e.assetManager }

func (e *Engine) Config() *config.Config { return e.config }

func (e *Engine) Metrics() *core.Metrics { return e.metrics }

func (e *Engine) Platform() *platform.Platform { return e.platform }

// SetScene makes s the rendered scene, seen through its first camera.
func (e *Engine) SetScene(s *scene.Scene) error {
	camera, ok := s.Camera()
	if !ok {
		return fmt.Errorf("scene '%s': %w", s.Name, core.ErrCameraNotSet)
	}
	camera.AutoAspect = camera.AutoAspect || e.config.Renderer.AutoAspect
	e.scene = s
	r := e.presenter.Renderer()
	r.SetScene(s)
	r.SetCamera(camera)
	return nil
}

// LoadMaterial loads a material file from the asset root and registers the
// material with the renderer. The engine destroys it on shutdown.
func (e *Engine) LoadMaterial(rel string) (*material.Material, error) {
	lm, err := e.assetManager.LoadMaterial(e.device, rel)
	if err != nil {
		return nil, err
	}
	if err := e.presenter.Renderer().AddMaterial(lm.Material); err != nil {
		lm.Destroy()
		return nil, err
	}
	e.materials = append(e.materials, lm)
	return lm.Material, nil
}

// DescriptorPool returns a pool for material instances, created on first use.
func (e *Engine) DescriptorPool() (gpu.Handle, error) {
	if e.descriptors.IsNull() {
		pool, err := material.NewDescriptorPool(e.device, maxMaterialInstances, material.MaxTextureSlots)
		if err != nil {
			return 0, err
		}
		e.descriptors = pool
	}
	return e.descriptors, nil
}

const maxMaterialInstances = 256

// Stop ends the frame loop after the current frame. It is safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("run while engine stage is %d: %w", e.currentStage, core.ErrInvalidState)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if fps := e.config.Application.TargetFPS; fps > 0 {
		targetFrameSeconds = 1.0 / float64(fps)
	}

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			break
		}
		e.assetManager.Poll()

		if e.presenter.Suspended() {
			// Frame blocks on window events until the window has a size again
			if err := e.presenter.Frame(); err != nil {
				return e.fatal(err)
			}
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				return e.fatal(fmt.Errorf("game update: %w", err))
			}
		}
		e.scene.Update(delta)

		if err := e.presenter.Frame(); err != nil {
			return e.fatal(err)
		}

		frameElapsedTime := e.platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		if remaining := targetFrameSeconds - frameElapsedTime; targetFrameSeconds > 0 && remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		// Input is updated last so the next frame sees this frame as the
		// previous state.
		e.input.Update()
		e.lastTime = currentTime
	}
	e.isRunning.Store(false)
	return nil
}

func (e *Engine) fatal(err error) error {
	core.LogError("frame loop stopped: %s", err)
	e.isRunning.Store(false)
	return err
}

// Shutdown releases everything in reverse order of creation. Run must have
// returned.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.gameInstance.FnShutdown != nil && e.device != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.presenter != nil {
		for _, lm := range e.materials {
			e.presenter.Renderer().RemoveMaterial(lm.Material)
		}
		e.presenter.Destroy()
	}
	for _, lm := range e.materials {
		lm.Destroy()
	}
	e.materials = nil
	if !e.descriptors.IsNull() {
		e.device.DestroyDescriptorPool(e.descriptors)
		e.descriptors = 0
	}
	if e.swapchain != nil {
		e.swapchain.Destroy()
	}
	if e.assetManager != nil {
		if err := e.assetManager.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.context != nil {
		e.context.Destroy()
	}
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	e.events.Shutdown()
	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return errors.Join(errs...)
}

func (e *Engine) onSurfaceResized(extent gpu.Extent) {
	core.LogDebug("Surface resized to %s.", extent)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(extent.Width, extent.Height); err != nil {
			core.LogError("game resize: %s", err)
		}
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		// Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	core.LogDebug("Window resize: %d, %d", width, height)
	if e.presenter != nil {
		e.presenter.RequestResize()
	}
	return false
}

// onAssetChanged reloads the color shaders of every loaded material compiled
// from the changed file. A failed reload keeps the previous pipeline.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	path, ok := sender.(string)
	if !ok || assets.TypeOf(path) != assets.TypeShader {
		return false
	}
	for _, lm := range e.materials {
		for _, mode := range lm.ModesUsing(path) {
			if mode != material.RenderModeColor {
				continue
			}
			sources, err := e.assetManager.ReloadSources(lm, mode)
			if err != nil {
				core.LogError("reload '%s': %s", lm.Path, err)
				continue
			}
			if err := e.presenter.Renderer().ReloadMaterial(lm.Material, sources); err != nil {
				core.LogError("reload '%s': %s", lm.Path, err)
				continue
			}
			core.LogInfo("Reloaded material '%s' after '%s' changed.", lm.Material.Name(), path)
		}
	}
	return false
}
