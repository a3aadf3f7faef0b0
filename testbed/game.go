package testbed

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
	"github.com/spaghettifunk/lumen/engine/scene"
)

const (
	texturedMaterial = "materials/textured.material.toml"
	coloredMaterial  = "materials/colored.material.toml"
	pointsMaterial   = "materials/points.material.toml"
)

type TestGame struct {
	*engine.Game
	engine *engine.Engine
}

type gameState struct {
	scene  *scene.Scene
	assets scene.Assets

	cube       *scene.Node
	controller *scene.FirstPersonController

	titleTimer float64
	width      uint32
	height     uint32
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State:  &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	g.engine = e
	state := g.State.(*gameState)

	textured, err := e.LoadMaterial(texturedMaterial)
	if err != nil {
		return err
	}
	colored, err := e.LoadMaterial(coloredMaterial)
	if err != nil {
		return err
	}
	points, err := e.LoadMaterial(pointsMaterial)
	if err != nil {
		return err
	}

	state.scene = scene.NewScene("testbed")
	state.scene.AmbientIntensity = 0.15
	root := state.scene.Root()

	// Camera with a first person controller, mouse look while the right
	// button is held.
	cameraNode := scene.NewNode("camera")
	if err := cameraNode.AddComponent(scene.NewTransformAt(math.NewVec3(0, 1.5, 6))); err != nil {
		return err
	}
	camera := scene.NewPerspectiveCamera(math.DegToRad(60), float32(g.Config.Application.Width)/float32(g.Config.Application.Height), 0.1, 500)
	camera.AutoAspect = true
	if err := cameraNode.AddComponent(camera); err != nil {
		return err
	}
	state.controller = scene.NewFirstPersonController(e.Input())
	state.controller.RequireLookButton = true
	state.controller.LookButton = core.BUTTON_RIGHT
	if err := cameraNode.AddComponent(state.controller); err != nil {
		return err
	}
	if err := root.AddChild(cameraNode); err != nil {
		return err
	}

	if err := g.addLights(root); err != nil {
		return err
	}

	vertices, indices := math.GenerateQuad(2, 2, math.NewVec4One())
	if _, err := g.addMesh(root, "quad", textured, vertices, indices, math.NewTransformFromPosition(math.NewVec3(-2, 1, 0)), nil); err != nil {
		return err
	}

	vertices, indices = math.GenerateCube(1, math.NewVec4(0.9, 0.4, 0.1, 1))
	state.cube, err = g.addMesh(root, "cube", colored, vertices, indices, math.NewTransformFromPosition(math.NewVec3(2, 1, 0)),
		map[material.ParameterSlot]math.Vec4{material.ParameterBaseColorFactor: math.NewVec4(1, 0.8, 0.8, 1)})
	if err != nil {
		return err
	}

	// A second cube parented to the first orbits with it.
	vertices, indices = math.GenerateCube(0.4, math.NewVec4(0.2, 0.6, 1, 1))
	if _, err := g.addMesh(state.cube, "moon", colored, vertices, indices, math.NewTransformFromPosition(math.NewVec3(1.2, 0, 0)), nil); err != nil {
		return err
	}

	vertices, indices = math.GeneratePointGrid(64, 64, 0.25, math.NewVec4(0.6, 0.9, 0.6, 1))
	if _, err := g.addMesh(root, "ground", points, vertices, indices, math.NewTransformFromPosition(math.NewVec3(-8, 0, -8)), nil); err != nil {
		return err
	}

	return e.SetScene(state.scene)
}

func (g *TestGame) addLights(root *scene.Node) error {
	sun := scene.NewNode("sun")
	sunTransform := &scene.Transform{Transform: math.NewTransformFromPositionRotationScale(
		math.NewVec3Zero(),
		math.NewQuatFromEuler(math.DegToRad(-50), math.DegToRad(30), 0),
		math.NewVec3One())}
	if err := sun.AddComponent(sunTransform); err != nil {
		return err
	}
	if err := sun.AddComponent(scene.NewDirectionalLight(math.NewVec3(1, 0.95, 0.85), 0.8)); err != nil {
		return err
	}
	if err := root.AddChild(sun); err != nil {
		return err
	}

	lamp := scene.NewNode("lamp")
	lampTransform := &scene.Transform{Transform: math.NewTransformFromPositionRotationScale(
		math.NewVec3(0, 4, 2),
		math.NewQuatFromEuler(math.DegToRad(-70), 0, 0),
		math.NewVec3One())}
	if err := lamp.AddComponent(lampTransform); err != nil {
		return err
	}
	spot := scene.NewSpotLight(math.NewVec3(0.4, 0.6, 1), 3, 15, math.DegToRad(20), math.DegToRad(30))
	if err := lamp.AddComponent(spot); err != nil {
		return err
	}
	return root.AddChild(lamp)
}

func (g *TestGame) addMesh(parent *scene.Node, name string, m *material.Material, vertices []math.Vertex3D, indices []uint32, transform math.Transform, params map[material.ParameterSlot]math.Vec4) (*scene.Node, error) {
	state := g.State.(*gameState)
	pool, err := g.engine.DescriptorPool()
	if err != nil {
		return nil, err
	}
	inst, err := material.NewInstance(m, pool)
	if err != nil {
		return nil, err
	}
	state.assets.AddInstance(inst)
	for slot, v := range params {
		inst.SetParameter(slot, v)
	}
	if err := inst.WriteAllData(); err != nil {
		return nil, err
	}

	if m.State().Topology == gpu.TopologyTriangleList {
		math.GeometryGenerateNormals(vertices, indices)
	}
	mesh, err := scene.NewMesh(g.engine.Device(), name, vertices, indices, []scene.Primitive{{Material: inst, IndexCount: uint32(len(indices))}})
	if err != nil {
		return nil, err
	}
	state.assets.AddMesh(mesh)

	node := scene.NewNode(name)
	if err := node.AddComponent(&scene.Transform{Transform: transform}); err != nil {
		return nil, err
	}
	if err := node.AddComponent(scene.NewMeshComponent(mesh)); err != nil {
		return nil, err
	}
	if err := parent.AddChild(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)

	t, err := state.cube.Transform()
	if err != nil {
		return err
	}
	t.Rotate(math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime)))

	input := g.engine.Input()
	if input.IsKeyDown(core.KEY_F1) && !input.WasKeyDown(core.KEY_F1) {
		stats := g.engine.Renderer().Stats()
		core.LogInfo("draw calls %d, indices %d, pipeline binds %d", stats.DrawCalls, stats.Indices, stats.PipelineBinds)
	}

	state.titleTimer += deltaTime
	if state.titleTimer >= 1 {
		state.titleTimer = 0
		metrics := g.engine.Metrics()
		g.engine.Platform().SetTitle(fmt.Sprintf("%s - %.0f fps (%.2f ms)", g.Config.Application.Name, metrics.FPS(), metrics.FrameTime()))
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	var err error
	if state.scene != nil {
		err = state.scene.Destroy()
	}
	state.assets.Destroy()
	return err
}
