package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

// nanoseconds
const fenceTimeout = uint64(5_000_000_000)

type fence struct {
	device   *Device
	handle   vk.Fence
	signaled bool
}

func newFence(device *Device, signaled bool) (*fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(device.logical, &info, nil, &handle); res != vk.Success {
		return nil, resultError("vkCreateFence", res, core.ErrResourceCreation)
	}
	return &fence{device: device, handle: handle, signaled: signaled}, nil
}

func (f *fence) wait(timeout uint64) error {
	if f.signaled {
		return nil
	}
	res := vk.WaitForFences(f.device.logical, 1, []vk.Fence{f.handle}, vk.True, timeout)
	switch res {
	case vk.Success:
		f.signaled = true
		return nil
	case vk.Timeout:
		err := fmt.Errorf("fence wait timed out after %dns", timeout)
		core.LogWarn(err.Error())
		return err
	}
	return resultError("vkWaitForFences", res, nil)
}

func (f *fence) reset() error {
	if !f.signaled {
		return nil
	}
	if res := vk.ResetFences(f.device.logical, 1, []vk.Fence{f.handle}); res != vk.Success {
		return resultError("vkResetFences", res, nil)
	}
	f.signaled = false
	return nil
}

func (f *fence) destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device.logical, f.handle, nil)
		f.handle = vk.NullFence
	}
	f.signaled = false
}
