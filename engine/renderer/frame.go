package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/material"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// DrawFrame records and submits one frame into the target image imageIndex.
// The submission waits on wait at waitStages and signals signal. DrawFrame
// blocks until the presentation queue is idle before returning.
func (r *Renderer) DrawFrame(imageIndex uint32, wait []gpu.Handle, waitStages []gpu.PipelineStage, signal []gpu.Handle) error {
	if r.reconfigureErr != nil {
		return r.reconfigureErr
	}
	switch r.state {
	case StateConfigured, StateFrameLoop:
	default:
		return fmt.Errorf("draw frame while %s: %w", r.state, core.ErrInvalidState)
	}
	if r.scene == nil {
		return core.ErrSceneNotSet
	}
	if r.camera == nil {
		return core.ErrCameraNotSet
	}
	if int(imageIndex) >= len(r.framebuffers) {
		return fmt.Errorf("image index %d out of %d framebuffers: %w", imageIndex, len(r.framebuffers), core.ErrInvalidState)
	}
	r.state = StateFrameLoop

	if err := r.updateUniforms(); err != nil {
		return err
	}

	cmd := r.commandBuffers[imageIndex]
	if err := cmd.Begin(); err != nil {
		return err
	}
	stats, recordErr := r.record(cmd, r.framebuffers[imageIndex])
	if err := cmd.End(); err != nil {
		return err
	}
	if recordErr != nil {
		return recordErr
	}

	if err := r.device.Submit(cmd, wait, waitStages, signal); err != nil {
		return fmt.Errorf("renderer submit: %w", err)
	}
	r.stats = stats
	return r.device.WaitPresentIdle()
}

func (r *Renderer) updateUniforms() error {
	if r.camera.AutoAspect && r.camera.Projection == scene.ProjectionPerspective {
		r.camera.Aspect = r.color.GetExtent().AspectRatio()
	}

	matrices := newMatrixUniforms(r.camera)
	if err := r.matrixBuffer.Write(0, gpu.Bytes(&matrices)); err != nil {
		return fmt.Errorf("matrix uniforms: %w", err)
	}
	lighting := newLightingUniforms(r.scene, r.config.MaxSpotLights)
	if err := r.lightingBuffer.Write(0, gpu.Bytes(&lighting)); err != nil {
		return fmt.Errorf("lighting uniforms: %w", err)
	}
	camera := CameraUniforms{Position: r.camera.Position()}
	if err := r.cameraBuffer.Write(0, gpu.Bytes(&camera)); err != nil {
		return fmt.Errorf("camera uniforms: %w", err)
	}
	return nil
}

// record fills the render pass. Set 0 is bound once through the global
// layout; every material layout is compatible with it.
func (r *Renderer) record(cmd gpu.CommandBuffer, framebuffer gpu.Handle) (FrameStats, error) {
	extent := r.color.GetExtent()
	clear := []gpu.ClearValue{
		{Color: r.config.ClearColor},
		{Depth: 1},
	}
	cmd.BeginRenderPass(r.renderPass, framebuffer, extent, clear)
	defer cmd.EndRenderPass()

	cmd.SetViewport(gpu.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	})
	cmd.SetScissor(extent)
	cmd.BindDescriptorSet(r.globalPipelineLayout, 0, r.globalSet)

	var (
		stats   FrameStats
		err     error
		current *material.Pipeline
	)
	r.scene.Root().TraversePreOrder(func(n *scene.Node) {
		if err != nil {
			return
		}
		for _, c := range n.Components() {
			mc, ok := c.(*scene.MeshComponent)
			if !ok || mc.Mesh == nil {
				continue
			}
			if err = r.recordMesh(cmd, n, mc.Mesh, &current, &stats); err != nil {
				return
			}
		}
	})
	return stats, err
}

func (r *Renderer) recordMesh(cmd gpu.CommandBuffer, n *scene.Node, mesh *scene.Mesh, current **material.Pipeline, stats *FrameStats) error {
	cmd.BindVertexBuffer(mesh.VertexBuffer, 0)
	cmd.BindIndexBuffer(mesh.IndexBuffer, 0, mesh.IndexType)

	model := n.WorldMatrix()
	cmd.PushConstants(r.globalPipelineLayout, material.ModelPushConstantRange.Stages, 0, gpu.Bytes(&model.Data))

	for i, prim := range mesh.Primitives {
		if prim.Material == nil {
			return fmt.Errorf("node '%s' mesh '%s' primitive %d has no material instance", n.Name, mesh.Name, i)
		}
		m := prim.Material.Material()
		p, ok := r.pipelines.Pipeline(m)
		if !ok {
			return fmt.Errorf("material '%s' on node '%s': %w", m.Name(), n.Name, core.ErrMaterialNotRegistered)
		}
		if p != *current {
			cmd.BindPipeline(p.Handle)
			*current = p
			stats.PipelineBinds++
		}
		if p.MaterialSet {
			cmd.BindDescriptorSet(p.Layout, 1, prim.Material.DescriptorSet(material.RenderModeColor))
		}
		cmd.DrawIndexed(prim.IndexCount, 1, prim.IndexOffset, 0, 0)
		stats.DrawCalls++
		stats.Indices += int(prim.IndexCount)
	}
	return nil
}
