package gpu_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

func TestBufferWriteAndScopedDestroy(t *testing.T) {
	dev := gputest.NewDevice()
	buf, err := dev.CreateBuffer(8, gpu.BufferUsageUniform, gpu.MemoryCPUToGPU)
	require.NoError(t, err)

	require.NoError(t, buf.Write(4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, dev.Memory(buf.Allocation))

	assert.Error(t, buf.Write(6, []byte{1, 2, 3}))

	buf.Destroy()
	buf.Destroy()
	assert.True(t, buf.IsDestroyed())
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
	assert.True(t, errors.Is(buf.Write(0, []byte{1}), core.ErrUnknownHandle))
}

func TestDeviceLocalBufferIsUploadedThroughStaging(t *testing.T) {
	dev := gputest.NewDevice()
	data := []uint32{7, 8, 9}

	buf, err := gpu.NewDeviceLocalBuffer(dev, gpu.BufferUsageIndex, gpu.SliceBytes(data))
	require.NoError(t, err)
	defer buf.Destroy()

	assert.Equal(t, gpu.MemoryGPUOnly, buf.Memory)
	assert.Equal(t, uint64(12), buf.Size)
	assert.Equal(t, uint32(8), gputest.Uint32At(dev.Memory(buf.Allocation), 4))
	// the staging buffer is gone
	assert.Equal(t, 1, dev.Live(gputest.KindBuffer))

	err = buf.Write(0, []byte{1})
	assert.True(t, errors.Is(err, core.ErrMapMemory))
}

func TestTextureLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	tex, err := gpu.NewSolidTexture(dev, "white", 255, 255, 255, 255)
	require.NoError(t, err)

	assert.False(t, tex.View.IsNull())
	assert.False(t, tex.Sampler.IsNull())
	assert.Equal(t, []gpu.ImageLayout{gpu.ImageLayoutTransferDst, gpu.ImageLayoutShaderReadOnly}, dev.Transitions)

	tex.Destroy()
	tex.Destroy()
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestTextureRejectsShortPixelData(t *testing.T) {
	dev := gputest.NewDevice()
	_, err := gpu.NewTexture(dev, "bad", 2, 2, []byte{0, 0, 0, 0}, gpu.DefaultSampler())
	assert.Error(t, err)
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestExtentAspectRatio(t *testing.T) {
	assert.Equal(t, float32(2), gpu.Extent{Width: 800, Height: 400}.AspectRatio())
	assert.Equal(t, float32(1), gpu.Extent{Width: 800}.AspectRatio())
	assert.True(t, gpu.Extent{Width: 800}.IsZero())
}
