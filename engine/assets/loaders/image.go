package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Image is decoded, tightly packed, non-premultiplied RGBA8 pixel data.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
	Format string
}

func LoadImage(path string, flipY bool) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image '%s': %w: %w", path, core.ErrAssetLoad, err)
	}
	defer f.Close()

	img, err := DecodeImage(f, flipY)
	if err != nil {
		return nil, fmt.Errorf("image '%s': %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes PNG, JPEG, BMP, TIFF or WebP data.
func DecodeImage(r io.Reader, flipY bool) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w: %w", core.ErrAssetLoad, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels: %w", core.ErrAssetLoad)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	pixels := dst.Pix
	if flipY {
		pixels = flipRows(dst.Pix, dst.Stride, b.Dy())
	}
	return &Image{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: pixels,
		Format: format,
	}, nil
}

func flipRows(pix []byte, stride, rows int) []byte {
	out := make([]byte, len(pix))
	for y := 0; y < rows; y++ {
		copy(out[y*stride:(y+1)*stride], pix[(rows-1-y)*stride:(rows-y)*stride])
	}
	return out
}
