package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
)

// twoRows is a 2x2 image with a red top row and a blue bottom row.
func twoRows(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{R: 255, A: 255})
		img.SetNRGBA(x, 1, color.NRGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(bytes.NewReader(twoRows(t)), false)
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	require.Len(t, img.Pixels, 16)
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[0:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[8:12])
}

func TestDecodeImageFlip(t *testing.T) {
	img, err := DecodeImage(bytes.NewReader(twoRows(t)), true)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[0:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[8:12])
}

func TestDecodeImageGarbage(t *testing.T) {
	_, err := DecodeImage(bytes.NewReader([]byte("not an image")), false)
	assert.ErrorIs(t, err, core.ErrAssetLoad)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checker.png")
	require.NoError(t, os.WriteFile(path, twoRows(t), 0o644))

	img, err := LoadImage(path, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)

	_, err = LoadImage(path+".missing", false)
	assert.ErrorIs(t, err, core.ErrAssetLoad)
}
