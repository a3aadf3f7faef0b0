package core

import (
	"errors"
)

// scene graph usage errors
var (
	ErrNodeAlreadyParented = errors.New("node already has a parent")
	ErrNodeCycle           = errors.New("node cannot be a child of itself or of its descendants")
	ErrNodeIsRoot          = errors.New("scene root cannot be attached to another node")
	ErrNodeNotChild        = errors.New("node is not a child of this parent")
	ErrComponentOwned      = errors.New("component already belongs to another node")
	ErrTransformExists     = errors.New("node already holds a transform component")
	ErrNoTransform         = errors.New("node has no transform component")
	ErrTreeLocked          = errors.New("scene tree cannot be mutated during traversal")
)

// renderer usage errors
var (
	ErrSceneNotSet           = errors.New("renderer has no active scene")
	ErrCameraNotSet          = errors.New("renderer has no active camera")
	ErrMaterialNotRegistered = errors.New("material has no pipeline, call AddMaterial first")
	ErrInvalidState          = errors.New("operation not allowed in the current state")
	ErrNoTexture             = errors.New("no texture bound and no default texture for slot")
	ErrUnsupportedRenderMode = errors.New("render mode not supported by material")
)

// gpu errors
var (
	ErrResourceCreation = errors.New("gpu resource creation failed")
	ErrPipelineCompile  = errors.New("pipeline compilation failed")
	ErrMapMemory        = errors.New("unable to map device memory")
	ErrUnknownHandle    = errors.New("unknown gpu handle")
)

// presentation errors
var (
	ErrSwapchainBooting    = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate  = errors.New("swapchain out of date")
	ErrSwapchainSuboptimal = errors.New("swapchain suboptimal")
)

// asset errors
var (
	ErrAssetLoad    = errors.New("asset load failed")
	ErrInvalidSPIRV = errors.New("invalid SPIR-V bytecode")
)

var ErrUnknown = errors.New("unknown")
