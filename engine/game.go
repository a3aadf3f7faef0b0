package engine

import (
	"github.com/spaghettifunk/lumen/engine/config"
)

// Game holds the hooks an application plugs into the engine.
type Game struct {
	Config *config.Config
	State  interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once the device, renderer and asset manager exist. The game
// builds its scene and hands it over with Engine.SetScene.
type Initialize func(e *Engine) error

// Update runs before the scene update of every frame.
type Update func(deltaTime float64) error

type OnResize func(width uint32, height uint32) error

// Shutdown runs before the renderer is destroyed, with the device idle.
type Shutdown func() error
