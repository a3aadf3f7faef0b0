package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const portabilitySubset = "VK_KHR_portability_subset"

type queueFamilies struct {
	graphics, present       uint32
	hasGraphics, hasPresent bool
}

func (q queueFamilies) complete() bool { return q.hasGraphics && q.hasPresent }

// swapchainSupport is what a surface offers on a physical device.
type swapchainSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

// Device is the logical device plus the identifiers it hands out for the
// objects it creates. It implements gpu.Device.
type Device struct {
	context *Context

	physical   vk.PhysicalDevice
	logical    vk.Device
	properties vk.PhysicalDeviceProperties
	features   vk.PhysicalDeviceFeatures
	memory     vk.PhysicalDeviceMemoryProperties

	families      queueFamilies
	graphicsQueue vk.Queue
	presentQueue  vk.Queue
	commandPool   vk.CommandPool
	locks         *lockPool

	// signalled by every Submit, waited on by WaitPresentIdle
	submitFence *fence

	buffers         *core.Registry[vk.Buffer]
	allocations     *core.Registry[*allocation]
	images          *core.Registry[vk.Image]
	imageViews      *core.Registry[vk.ImageView]
	samplers        *core.Registry[vk.Sampler]
	shaderModules   *core.Registry[vk.ShaderModule]
	setLayouts      *core.Registry[vk.DescriptorSetLayout]
	pools           *core.Registry[vk.DescriptorPool]
	sets            *core.Registry[vk.DescriptorSet]
	renderPasses    *core.Registry[vk.RenderPass]
	framebuffers    *core.Registry[vk.Framebuffer]
	pipelineLayouts *core.Registry[vk.PipelineLayout]
	pipelines       *core.Registry[vk.Pipeline]
	semaphores      *core.Registry[vk.Semaphore]
}

var _ gpu.Device = (*Device)(nil)

func NewDevice(context *Context) (*Device, error) {
	d := &Device{
		context:         context,
		locks:           newLockPool(),
		buffers:         core.NewRegistry[vk.Buffer](64),
		allocations:     core.NewRegistry[*allocation](64),
		images:          core.NewRegistry[vk.Image](16),
		imageViews:      core.NewRegistry[vk.ImageView](16),
		samplers:        core.NewRegistry[vk.Sampler](16),
		shaderModules:   core.NewRegistry[vk.ShaderModule](16),
		setLayouts:      core.NewRegistry[vk.DescriptorSetLayout](8),
		pools:           core.NewRegistry[vk.DescriptorPool](8),
		sets:            core.NewRegistry[vk.DescriptorSet](32),
		renderPasses:    core.NewRegistry[vk.RenderPass](2),
		framebuffers:    core.NewRegistry[vk.Framebuffer](4),
		pipelineLayouts: core.NewRegistry[vk.PipelineLayout](8),
		pipelines:       core.NewRegistry[vk.Pipeline](8),
		semaphores:      core.NewRegistry[vk.Semaphore](8),
	}
	if err := d.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}
	f, err := newFence(d, true)
	if err != nil {
		d.Destroy()
		return nil, err
	}
	d.submitFence = f
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res, core.ErrResourceCreation)
	}
	if count == 0 {
		return fmt.Errorf("no device with Vulkan support found: %w", core.ErrResourceCreation)
	}
	candidates := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &count, candidates); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res, core.ErrResourceCreation)
	}

	bestScore := -1
	for _, candidate := range candidates {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &props)
		props.Deref()
		name := cString(props.DeviceName[:])

		families, ok := d.findQueueFamilies(candidate)
		if !ok {
			core.LogDebug("device '%s' skipped: missing graphics or present queue", name)
			continue
		}
		if !hasDeviceExtension(candidate, vk.KhrSwapchainExtensionName) {
			core.LogDebug("device '%s' skipped: no swapchain extension", name)
			continue
		}
		support, err := querySwapchainSupport(candidate, d.context.Surface)
		if err != nil || len(support.formats) == 0 || len(support.presentModes) == 0 {
			core.LogDebug("device '%s' skipped: surface not supported", name)
			continue
		}

		score := 1
		switch props.DeviceType {
		case vk.PhysicalDeviceTypeDiscreteGpu:
			score += 100
		case vk.PhysicalDeviceTypeIntegratedGpu:
			score += 10
		}
		if score > bestScore {
			bestScore = score
			d.physical = candidate
			d.properties = props
			d.families = families
		}
	}
	if d.physical == nil {
		return fmt.Errorf("no device meets the requirements: %w", core.ErrResourceCreation)
	}

	d.properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(d.physical, &d.features)
	d.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()

	v := vk.Version(d.properties.ApiVersion)
	core.LogInfo("Selected device '%s' (Vulkan %d.%d.%d).", cString(d.properties.DeviceName[:]), v.Major(), v.Minor(), v.Patch())
	return nil
}

func (d *Device) findQueueFamilies(physical vk.PhysicalDevice) (queueFamilies, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, props)

	var q queueFamilies
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueCount == 0 {
			continue
		}
		if !q.hasGraphics && vk.QueueFlagBits(props[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			q.graphics, q.hasGraphics = i, true
		}
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(physical, i, d.context.Surface, &supported)
		// prefer a family that does both
		if supported == vk.True && (!q.hasPresent || (q.hasGraphics && q.graphics == i)) {
			q.present, q.hasPresent = i, true
		}
	}
	return q, q.complete()
}

func deviceExtensions(physical vk.PhysicalDevice) []string {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, nil); res != vk.Success || count == 0 {
		return nil
	}
	props := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, props); res != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, cString(props[i].ExtensionName[:]))
	}
	return names
}

func hasDeviceExtension(physical vk.PhysicalDevice, name string) bool {
	for _, ext := range deviceExtensions(physical) {
		if ext == name {
			return true
		}
	}
	return false
}

func querySwapchainSupport(physical vk.PhysicalDevice, surface vk.Surface) (swapchainSupport, error) {
	var s swapchainSupport
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &s.capabilities); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res, nil)
	}
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, nil); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfaceFormats", res, nil)
	}
	if count > 0 {
		s.formats = make([]vk.SurfaceFormat, count)
		vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, s.formats)
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	count = 0
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &count, nil); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfacePresentModes", res, nil)
	}
	if count > 0 {
		s.presentModes = make([]vk.PresentMode, count)
		vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &count, s.presentModes)
	}
	return s, nil
}

func (d *Device) createLogicalDevice() error {
	priorities := []float32{1.0}
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.families.graphics,
		QueueCount:       1,
		PQueuePriorities: priorities,
	}}
	if d.families.present != d.families.graphics {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.families.present,
			QueueCount:       1,
			PQueuePriorities: priorities,
		})
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(d.physical, portabilitySubset) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	var features vk.PhysicalDeviceFeatures
	if d.features.SamplerAnisotropy == vk.True {
		features.SamplerAnisotropy = vk.True
	}
	if d.features.FillModeNonSolid == vk.True {
		features.FillModeNonSolid = vk.True
	}

	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	var logical vk.Device
	if res := vk.CreateDevice(d.physical, &info, nil, &logical); res != vk.Success {
		return resultError("vkCreateDevice", res, core.ErrResourceCreation)
	}
	d.logical = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.logical, d.families.graphics, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.logical, d.families.present, 0, &d.presentQueue)
	d.locks.addQueue(d.families.graphics)
	d.locks.addQueue(d.families.present)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.families.graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.logical, &poolInfo, nil, &pool); res != vk.Success {
		vk.DestroyDevice(d.logical, nil)
		d.logical = nil
		return resultError("vkCreateCommandPool", res, core.ErrResourceCreation)
	}
	d.commandPool = pool
	return nil
}

// SwapchainSupport re-queries the surface, e.g. after a resize.
func (d *Device) SwapchainSupport() (swapchainSupport, error) {
	return querySwapchainSupport(d.physical, d.context.Surface)
}

// DetectDepthFormat returns the first depth format usable as an optimal
// tiling attachment.
func (d *Device) DetectDepthFormat() (gpu.Format, error) {
	for _, candidate := range []gpu.Format{gpu.FormatD32Sfloat, gpu.FormatD32SfloatS8Uint, gpu.FormatD24UnormS8Uint} {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physical, toVkFormat(candidate), &props)
		props.Deref()
		want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
		if props.OptimalTilingFeatures&want == want {
			return candidate, nil
		}
	}
	return gpu.FormatUndefined, fmt.Errorf("no supported depth format: %w", core.ErrResourceCreation)
}

func (d *Device) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.logical); res != vk.Success {
		return resultError("vkDeviceWaitIdle", res, nil)
	}
	return nil
}

// WaitPresentIdle drains the present queue and the last submission, so the
// host can rewrite per frame data afterwards.
func (d *Device) WaitPresentIdle() error {
	err := d.locks.queueCall(d.families.present, func() error {
		if res := vk.QueueWaitIdle(d.presentQueue); res != vk.Success {
			return resultError("vkQueueWaitIdle", res, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return d.submitFence.wait(fenceTimeout)
}

// Destroy releases the device. Every object created from it must have been
// destroyed already, leftovers are reported.
func (d *Device) Destroy() {
	if d.logical == nil {
		return
	}
	vk.DeviceWaitIdle(d.logical)
	d.reportLeaks()
	if d.submitFence != nil {
		d.submitFence.destroy()
		d.submitFence = nil
	}
	if d.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.logical, d.commandPool, nil)
		d.commandPool = vk.NullCommandPool
	}
	vk.DestroyDevice(d.logical, nil)
	d.logical = nil
	d.graphicsQueue = nil
	d.presentQueue = nil
	core.LogDebug("Logical device destroyed.")
}

func (d *Device) reportLeaks() {
	counts := map[string]int{
		"buffer":                d.buffers.Len(),
		"image":                 d.images.Len(),
		"image view":            d.imageViews.Len(),
		"sampler":               d.samplers.Len(),
		"shader module":         d.shaderModules.Len(),
		"descriptor set layout": d.setLayouts.Len(),
		"descriptor pool":       d.pools.Len(),
		"render pass":           d.renderPasses.Len(),
		"framebuffer":           d.framebuffers.Len(),
		"pipeline layout":       d.pipelineLayouts.Len(),
		"pipeline":              d.pipelines.Len(),
		"semaphore":             d.semaphores.Len(),
	}
	for kind, n := range counts {
		if n > 0 {
			core.LogWarn("%d %s object(s) still alive at device destruction", n, kind)
		}
	}
}
